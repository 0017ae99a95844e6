package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/giancarlothiella/gtsw-engine/internal/eventbus"
	"github.com/giancarlothiella/gtsw-engine/internal/metadata"
	"github.com/giancarlothiella/gtsw-engine/internal/page"
	"github.com/giancarlothiella/gtsw-engine/internal/remote"
)

// dispatch executes one active step and returns its canRun gate. For
// message steps with no pending answer it also returns the resume token the
// suspension is keyed on. Errors are metadata faults and propagate; remote
// failures surface as canRun=false.
func (e *Engine) dispatch(ctx context.Context, pc *page.Context, actionName string, index int, level DebugLevel, step metadata.Step) (bool, string, error) {
	key := pc.Key
	switch step.ActionType {
	case metadata.StepGetData:
		if step.LookupSQLID != "" {
			rows, ok, err := pc.FetchLookup(ctx, e.client, step.LookupSQLID, step.Params, step.ConnCode)
			if err != nil {
				return false, "", err
			}
			if ok {
				e.publishLookup(ctx, key, step.LookupSQLID, rows)
			}
			return ok, "", nil
		}
		ok, err := pc.FetchAdapter(ctx, e.client, step.DataAdapter, step.Params, step.ConnCode)
		if err != nil {
			return false, "", err
		}
		if ok {
			if adapter := pc.Adapter(step.DataAdapter); adapter != nil {
				for _, ds := range adapter.DataSets {
					e.publishGridReload(ctx, key, eventbus.GridReload{DataSetName: ds.Name})
				}
			}
		}
		return ok, "", nil

	case metadata.StepRemoveData:
		pc.RemoveData(step.DataAdapter)
		return true, "", nil

	case metadata.StepSetView:
		return e.resolver.SetView(ctx, pc, step.ViewName, false), "", nil

	case metadata.StepSetPreviousView:
		return e.resolver.SetView(ctx, pc, "", true), "", nil

	case metadata.StepSelectDS:
		err := pc.SetDataSetSelected(step.DataSetName, true, step.GoToFirstRow, step.GoToLastRow)
		return err == nil, "", err

	case metadata.StepUnselectDS:
		err := pc.SetDataSetSelected(step.DataSetName, false, false, false)
		return err == nil, "", err

	case metadata.StepGoToFirstRow:
		err := pc.SetDataSetSelected(step.DataSetName, true, true, false)
		return err == nil, "", err

	case metadata.StepGoToLastRow:
		err := pc.SetDataSetSelected(step.DataSetName, true, false, true)
		return err == nil, "", err

	case metadata.StepExecProc:
		return e.execProc(ctx, pc, step)

	case metadata.StepExecCustom:
		e.bus.Publish(ctx, eventbus.Event{
			Kind:    eventbus.KindCustomCode,
			PrjID:   key.PrjID,
			FormID:  key.FormID,
			Payload: eventbus.CustomCode{Name: step.CustomName},
		})
		return true, "", nil

	case metadata.StepSetRule:
		pc.Rules.Set(step.CondID, step.CondValue)
		return true, "", nil

	case metadata.StepGetFormData:
		return true, "", pc.GetFormData(step.FormName)

	case metadata.StepClearFields:
		return true, "", pc.ClearFields(step.FormName)

	case metadata.StepPKLock:
		return true, "", pc.PKLock(step.FormName)

	case metadata.StepPKUnlock:
		return true, "", pc.PKUnlock(step.FormName)

	case metadata.StepSaveFormData:
		return true, "", pc.SaveFormData(step.FormName)

	case metadata.StepGetExportedData:
		sqlID := step.LookupSQLID
		if sqlID == "" {
			sqlID = step.SQLID
		}
		rows, ok, err := pc.FetchLookup(ctx, e.client, sqlID, step.Params, step.ConnCode)
		if err != nil {
			return false, "", err
		}
		if ok {
			e.publishLookup(ctx, key, sqlID, rows)
		}
		return ok, "", nil

	case metadata.StepDSInsert:
		return true, "", pc.SetDataSetStatus(step.DataSetName, page.StatusInsert)

	case metadata.StepDSEdit:
		return true, "", pc.SetDataSetStatus(step.DataSetName, page.StatusEdit)

	case metadata.StepDSCancel:
		if err := pc.SetDataSetStatus(step.DataSetName, page.StatusIdle); err != nil {
			return false, "", err
		}
		// Restore form fields from the row the edit started on.
		for i := range pc.Meta.Forms {
			if pc.Meta.Forms[i].DataSetName == step.DataSetName {
				if err := pc.GetFormData(pc.Meta.Forms[i].FormName); err != nil {
					return false, "", err
				}
			}
		}
		return true, "", nil

	case metadata.StepDSRefresh:
		ok, err := pc.DataSetRefresh(ctx, e.client, step.DataSetName, true)
		if ok {
			e.publishGridReload(ctx, key, eventbus.GridReload{DataSetName: step.DataSetName})
		}
		return ok, "", err

	case metadata.StepDSRefreshSel:
		ok, err := pc.DataSetRefresh(ctx, e.client, step.DataSetName, false)
		if ok {
			e.publishGridReload(ctx, key, eventbus.GridReload{DataSetName: step.DataSetName})
		}
		return ok, "", err

	case metadata.StepDSPost:
		ok, err := pc.DataSetAction(ctx, e.client, step.DataSetName, page.ActionPost)
		if ok {
			e.publishGridReload(ctx, key, eventbus.GridReload{DataSetName: step.DataSetName})
		}
		return ok, "", err

	case metadata.StepDSDelete:
		ok, err := pc.DataSetAction(ctx, e.client, step.DataSetName, page.ActionDelete)
		if ok {
			e.publishGridReload(ctx, key, eventbus.GridReload{DataSetName: step.DataSetName})
		}
		return ok, "", err

	case metadata.StepShowMsg, metadata.StepShowOKCancel:
		return e.messageStep(ctx, pc, actionName, index, level, step)

	case metadata.StepGridSetIdle:
		return e.setGridStatus(ctx, pc, step.GridName, metadata.GridIdle)

	case metadata.StepGridSetEdit:
		return e.setGridStatus(ctx, pc, step.GridName, metadata.GridEdit)

	case metadata.StepGridSetInsert:
		return e.setGridStatus(ctx, pc, step.GridName, metadata.GridInsert)

	case metadata.StepGridAllowDelete:
		g, err := pc.Meta.Grid(step.GridName)
		if err != nil {
			return false, "", err
		}
		g.AllowDelete = true
		return true, "", nil

	case metadata.StepGridPostChanges:
		g, err := pc.Meta.Grid(step.GridName)
		if err != nil {
			return false, "", err
		}
		e.publishGridReload(ctx, pc.Key, eventbus.GridReload{DataSetName: g.DataSetName, GridName: g.GridName, Post: true})
		return true, "", nil

	case metadata.StepGridRollback:
		g, err := pc.Meta.Grid(step.GridName)
		if err != nil {
			return false, "", err
		}
		g.Status = metadata.GridIdle
		e.publishGridReload(ctx, pc.Key, eventbus.GridReload{DataSetName: g.DataSetName, GridName: g.GridName, Rollback: true})
		return true, "", nil

	default:
		return false, "", fmt.Errorf("engine: unknown actionType %q", step.ActionType)
	}
}

// execProc resolves the step's parameter bindings, merges any literal
// params, and invokes the remote procedure. Success is audited in the page
// dbLog.
func (e *Engine) execProc(ctx context.Context, pc *page.Context, step metadata.Step) (bool, string, error) {
	params, err := pc.ResolveParams(step.SQLParams)
	if err != nil {
		return false, "", err
	}
	for k, v := range step.Params {
		params[k] = v
	}
	res, err := e.client.ExecProc(ctx, remote.ProcRequest{
		PrjID:    pc.Key.PrjID,
		SQLID:    step.SQLID,
		ConnCode: step.ConnCode,
		Params:   params,
	})
	if err != nil {
		log.Printf("engine: execProc %s failed: %v", step.SQLID, err)
		return false, "", nil
	}
	if !res.Valid {
		return false, "", nil
	}
	pc.AppendLog("execProc", step.SQLID, params)
	return true, "", nil
}

// messageStep implements the pseudo-suspension of showMsg/showOKCancel.
// With no pending answer it publishes a message request and suspends behind
// a fresh resume token; at most one question is outstanding per page, so a
// second message while one is pending re-enters the same suspension instead
// of opening a second dialog. With a pending answer (set by Resume) the
// answer is consumed and becomes the step's canRun.
func (e *Engine) messageStep(ctx context.Context, pc *page.Context, actionName string, index int, level DebugLevel, step metadata.Step) (bool, string, error) {
	if answer := pc.MessageStatus(); answer != "" {
		pc.SetMessageStatus("")
		return answer == "OK", "", nil
	}

	if token := e.pendingTokenFor(pc.Key); token != "" {
		return false, token, nil
	}

	token := uuid.New().String()
	e.mu.Lock()
	e.pending[token] = pendingResume{key: pc.Key, actionName: actionName, index: index, level: level}
	e.mu.Unlock()

	e.bus.Publish(ctx, eventbus.Event{
		Kind:   eventbus.KindMessageRequest,
		PrjID:  pc.Key.PrjID,
		FormID: pc.Key.FormID,
		Payload: eventbus.MessageRequest{
			Text:        step.MsgText,
			MsgType:     step.MsgType,
			OKCancel:    step.ActionType == metadata.StepShowOKCancel,
			ResumeToken: token,
		},
	})
	return false, token, nil
}

func (e *Engine) setGridStatus(ctx context.Context, pc *page.Context, gridName string, status metadata.GridStatus) (bool, string, error) {
	g, err := pc.Meta.Grid(gridName)
	if err != nil {
		return false, "", err
	}
	g.Status = status
	e.publishGridReload(ctx, pc.Key, eventbus.GridReload{DataSetName: g.DataSetName, GridName: g.GridName})
	return true, "", nil
}

func (e *Engine) publishGridReload(ctx context.Context, key page.Key, payload eventbus.GridReload) {
	e.bus.Publish(ctx, eventbus.Event{
		Kind:    eventbus.KindGridReload,
		PrjID:   key.PrjID,
		FormID:  key.FormID,
		Payload: payload,
	})
}

func (e *Engine) publishLookup(ctx context.Context, key page.Key, name string, rows []page.Row) {
	e.bus.Publish(ctx, eventbus.Event{
		Kind:    eventbus.KindLookupRequest,
		PrjID:   key.PrjID,
		FormID:  key.FormID,
		Payload: eventbus.LookupRequest{Name: name, Rows: rows},
	})
}
