package engine

import (
	"context"
	"testing"

	"github.com/giancarlothiella/gtsw-engine/internal/eventbus"
	"github.com/giancarlothiella/gtsw-engine/internal/metadata"
	"github.com/giancarlothiella/gtsw-engine/internal/page"
	"github.com/giancarlothiella/gtsw-engine/internal/remote"
	"github.com/giancarlothiella/gtsw-engine/internal/view"
)

// recorder collects events synchronously.
type recorder struct {
	events []eventbus.Event
}

func (r *recorder) Publish(_ context.Context, evt eventbus.Event) {
	r.events = append(r.events, evt)
}

func (r *recorder) byKind(kind eventbus.Kind) []eventbus.Event {
	var out []eventbus.Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// fakeClient scripts remote results per adapter/lookup/sql id.
type fakeClient struct {
	dataResults map[string]*remote.DataResult
	procResults map[string]*remote.ProcResult
	procCalls   []remote.ProcRequest
}

func (f *fakeClient) FetchPage(ctx context.Context, prjID, formID string) (*metadata.Page, error) {
	return nil, &metadata.NotFoundError{Kind: "page", Name: prjID + "/" + formID}
}

func (f *fakeClient) GetData(ctx context.Context, req remote.DataRequest) (*remote.DataResult, error) {
	key := req.DataAdapter
	if req.LookupSQLID != "" {
		key = req.LookupSQLID
	}
	if res, ok := f.dataResults[key]; ok {
		return res, nil
	}
	return &remote.DataResult{Valid: false}, nil
}

func (f *fakeClient) ExecProc(ctx context.Context, req remote.ProcRequest) (*remote.ProcResult, error) {
	f.procCalls = append(f.procCalls, req)
	if res, ok := f.procResults[req.SQLID]; ok {
		return res, nil
	}
	return &remote.ProcResult{Valid: false}, nil
}

func engineMeta() *metadata.Page {
	m := &metadata.Page{
		PrjID:  "demo",
		FormID: "orders",
		Actions: []metadata.Action{
			{
				ObjectName: "aLoad",
				Steps: []metadata.Step{
					{ActionType: metadata.StepGetData, DataAdapter: "adOrders"},
					{ActionType: metadata.StepSetView, ViewName: "vBrowse"},
				},
			},
			{
				ObjectName: "aConfirmProc",
				Steps: []metadata.Step{
					{ActionType: metadata.StepShowOKCancel, MsgText: "Proceed?", MsgType: "question"},
					{ActionType: metadata.StepExecProc, SQLID: "proc7"},
				},
			},
			{
				ObjectName: "aConditional",
				Steps: []metadata.Step{
					{ActionType: metadata.StepSetRule, CondID: 5, CondValue: 1},
					{ActionType: metadata.StepExecProc, SQLID: "proc7",
						ExecCond: []metadata.CondRef{{CondID: 1, Value: 1}}},
					{ActionType: metadata.StepSetRule, CondID: 6, CondValue: 1},
				},
			},
		},
		Views: []metadata.View{
			{ViewName: "vStart", ViewLevel: 10, Objects: []metadata.ViewObject{
				{ObjectType: "grid", ObjectName: "grOrders", Selected: "U"},
			}},
			{ViewName: "vBrowse", ViewLevel: 10, Objects: []metadata.ViewObject{
				{ObjectType: "grid", ObjectName: "grOrders", Selected: "U"},
			}},
		},
		Rules: []metadata.RuleDef{
			{CondID: 1, Default: 0},
			{CondID: 5, Default: 0},
			{CondID: 6, Default: 0},
		},
		DataSets: []metadata.DataSetDef{
			{DataSetName: "qOrders", DataAdapter: "adOrders", SQLKeys: []string{"orderId"}},
		},
		Grids: []metadata.Grid{
			{GridName: "grOrders", DataSetName: "qOrders"},
		},
	}
	m.FlattenViews()
	return m
}

func newTestEngine(client *fakeClient) (*Engine, *page.Context, *recorder) {
	rec := &recorder{}
	reg := page.NewRegistry(client)
	pc := page.NewContext(page.Key{PrjID: "demo", FormID: "orders"}, engineMeta())
	reg.Put(pc)
	resolver := view.New(rec)
	return New(reg, client, resolver, rec), pc, rec
}

func okData() *remote.DataResult {
	return &remote.DataResult{
		Valid: true,
		DataSets: []remote.DataPayload{
			{Name: "qOrders", Rows: []map[string]any{{"orderId": float64(1)}}},
		},
	}
}

func TestRunExecutesAllSteps(t *testing.T) {
	client := &fakeClient{
		dataResults: map[string]*remote.DataResult{"adOrders": okData()},
		procResults: map[string]*remote.ProcResult{},
	}
	eng, pc, _ := newTestEngine(client)

	out, err := eng.Run(context.Background(), pc.Key, "aLoad", 0, LevelRun)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Ran || !out.CanRun {
		t.Errorf("outcome = %+v, want ran with open gate", out)
	}
	if out.LastIndex != 1 {
		t.Errorf("lastIndex = %d, want 1", out.LastIndex)
	}
	if pc.ActiveView != "vBrowse" {
		t.Errorf("active view = %s, want vBrowse", pc.ActiveView)
	}
	if _, err := pc.DataSet("qOrders"); err != nil {
		t.Errorf("dataset should exist after getData: %v", err)
	}
}

func TestRunUnknownActionIsNoOp(t *testing.T) {
	client := &fakeClient{dataResults: map[string]*remote.DataResult{}}
	eng, pc, rec := newTestEngine(client)

	out, err := eng.Run(context.Background(), pc.Key, "nope", 0, LevelRun)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.CanRun || out.Ran {
		t.Errorf("outcome = %+v, want completion signal without running", out)
	}
	if len(rec.events) != 0 {
		t.Errorf("no events expected, got %v", rec.events)
	}
}

func TestFailedGetDataAbortsRemainingSteps(t *testing.T) {
	client := &fakeClient{dataResults: map[string]*remote.DataResult{}} // fetch fails
	eng, pc, _ := newTestEngine(client)

	out, err := eng.Run(context.Background(), pc.Key, "aLoad", 0, LevelRun)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.CanRun {
		t.Error("gate should close on failed fetch")
	}
	if out.LastIndex != 0 {
		t.Errorf("lastIndex = %d, want 0", out.LastIndex)
	}
	// The setView step never ran: view remains whatever it was before.
	if pc.ActiveView != "" {
		t.Errorf("active view = %s, want unchanged empty", pc.ActiveView)
	}
}

func TestInactiveStepIsSkipped(t *testing.T) {
	client := &fakeClient{
		dataResults: map[string]*remote.DataResult{},
		procResults: map[string]*remote.ProcResult{"proc7": {Valid: true}},
	}
	eng, pc, _ := newTestEngine(client)

	// Rule 1 stays 0: the execProc step is inactive and must not run,
	// but the loop continues past it.
	out, err := eng.Run(context.Background(), pc.Key, "aConditional", 0, LevelRun)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.CanRun {
		t.Error("skipping an inactive step must not close the gate")
	}
	if len(client.procCalls) != 0 {
		t.Errorf("proc calls = %d, want 0", len(client.procCalls))
	}
	if v, _ := pc.Rules.Value(6); v != 1 {
		t.Error("steps after the inactive one must still run")
	}
}

func TestMessageSuspendAndResumeOK(t *testing.T) {
	client := &fakeClient{
		dataResults: map[string]*remote.DataResult{},
		procResults: map[string]*remote.ProcResult{"proc7": {Valid: true}},
	}
	eng, pc, rec := newTestEngine(client)
	ctx := context.Background()

	out, err := eng.Run(ctx, pc.Key, "aConfirmProc", 0, LevelRun)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Suspended || out.ResumeToken == "" {
		t.Fatalf("outcome = %+v, want suspension with token", out)
	}
	if len(client.procCalls) != 0 {
		t.Fatal("execProc must not run before the user answers")
	}

	msgs := rec.byKind(eventbus.KindMessageRequest)
	if len(msgs) != 1 {
		t.Fatalf("message requests = %d, want 1", len(msgs))
	}
	payload := msgs[0].Payload.(eventbus.MessageRequest)
	if !payload.OKCancel || payload.Text != "Proceed?" {
		t.Errorf("payload = %+v", payload)
	}
	if payload.ResumeToken != out.ResumeToken {
		t.Error("event token must match the outcome token")
	}

	out, err = eng.Resume(ctx, out.ResumeToken, "OK")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !out.CanRun {
		t.Error("OK answer should keep the gate open")
	}
	if len(client.procCalls) != 1 {
		t.Errorf("proc calls = %d, want exactly 1", len(client.procCalls))
	}
}

func TestMessageResumeCancelAborts(t *testing.T) {
	client := &fakeClient{
		dataResults: map[string]*remote.DataResult{},
		procResults: map[string]*remote.ProcResult{"proc7": {Valid: true}},
	}
	eng, pc, _ := newTestEngine(client)
	ctx := context.Background()

	out, _ := eng.Run(ctx, pc.Key, "aConfirmProc", 0, LevelRun)
	out, err := eng.Resume(ctx, out.ResumeToken, "Cancel")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if out.CanRun {
		t.Error("Cancel must close the gate")
	}
	if len(client.procCalls) != 0 {
		t.Error("execProc must not run after Cancel")
	}
}

func TestSecondMessageReentersSameSuspension(t *testing.T) {
	client := &fakeClient{dataResults: map[string]*remote.DataResult{}}
	eng, pc, rec := newTestEngine(client)
	ctx := context.Background()

	first, _ := eng.Run(ctx, pc.Key, "aConfirmProc", 0, LevelRun)
	second, _ := eng.Run(ctx, pc.Key, "aConfirmProc", 0, LevelRun)

	if second.ResumeToken != first.ResumeToken {
		t.Error("a pending question must be re-entered, not duplicated")
	}
	if got := len(rec.byKind(eventbus.KindMessageRequest)); got != 1 {
		t.Errorf("message requests = %d, want 1 (no second dialog)", got)
	}
}

func TestResumeUnknownToken(t *testing.T) {
	client := &fakeClient{dataResults: map[string]*remote.DataResult{}}
	eng, _, _ := newTestEngine(client)

	if _, err := eng.Resume(context.Background(), "bogus", "OK"); err == nil {
		t.Error("unknown token must error")
	}
}

func TestRunPropagatesMetadataFault(t *testing.T) {
	client := &fakeClient{dataResults: map[string]*remote.DataResult{}}
	eng, pc, _ := newTestEngine(client)

	// A selectDS step naming an undeclared dataset is a programmer/data
	// error, not a closed gate.
	pc.Meta.Actions = append(pc.Meta.Actions, metadata.Action{
		ObjectName: "aBroken",
		Steps: []metadata.Step{
			{ActionType: metadata.StepSelectDS, DataSetName: "qGhost"},
		},
	})

	_, err := eng.Run(context.Background(), pc.Key, "aBroken", 0, LevelRun)
	if err == nil {
		t.Fatal("missing metadata must propagate")
	}
}

func TestLoaderWrapsRun(t *testing.T) {
	client := &fakeClient{
		dataResults: map[string]*remote.DataResult{"adOrders": okData()},
	}
	eng, pc, rec := newTestEngine(client)

	if _, err := eng.Run(context.Background(), pc.Key, "aLoad", 0, LevelRun); err != nil {
		t.Fatalf("Run: %v", err)
	}
	loaders := rec.byKind(eventbus.KindLoader)
	if len(loaders) != 2 {
		t.Fatalf("loader events = %d, want 2", len(loaders))
	}
	if !loaders[0].Payload.(eventbus.Loader).Visible {
		t.Error("first loader event should assert")
	}
	if loaders[1].Payload.(eventbus.Loader).Visible {
		t.Error("second loader event should clear")
	}
}
