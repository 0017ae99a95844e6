package page

import (
	"context"
	"log"

	"github.com/giancarlothiella/gtsw-engine/internal/metadata"
	"github.com/giancarlothiella/gtsw-engine/internal/remote"
)

// FetchAdapter remote-fetches every dataset under one adapter. On success
// existing rows are replaced in place (the adapter object keeps its
// identity), each dataset's status resets to idle, and selection clears.
// On failure nothing is mutated and the result is false.
func (c *Context) FetchAdapter(ctx context.Context, client remote.Client, adapterName string, params map[string]any, connCode string) (bool, error) {
	res, err := client.GetData(ctx, remote.DataRequest{
		PrjID:       c.Key.PrjID,
		FormID:      c.Key.FormID,
		DataAdapter: adapterName,
		ConnCode:    connCode,
		Params:      params,
	})
	if err != nil {
		log.Printf("page: getData %s failed: %v", adapterName, err)
		return false, nil
	}
	if !res.Valid {
		return false, nil
	}

	adapter := c.Adapter(adapterName)
	if adapter == nil {
		adapter = &DataAdapter{PrjID: c.Key.PrjID, FormID: c.Key.FormID, Name: adapterName}
		c.Adapters = append(c.Adapters, adapter)
	}
	for _, payload := range res.DataSets {
		coerceNumericColumns(payload.Rows, payload.NumericColumns)
		ds := adapter.dataSet(payload.Name)
		if ds == nil {
			ds = &DataSet{Name: payload.Name, Status: StatusIdle}
			adapter.DataSets = append(adapter.DataSets, ds)
		}
		ds.Rows = payload.Rows
		ds.Status = StatusIdle
		ds.clearSelection()
	}
	return true, nil
}

func (a *DataAdapter) dataSet(name string) *DataSet {
	for _, ds := range a.DataSets {
		if ds.Name == name {
			return ds
		}
	}
	return nil
}

// FetchLookup runs a single lookup statement and returns its rows. Used by
// getData steps carrying a lookupSqlId and by getExportedData.
func (c *Context) FetchLookup(ctx context.Context, client remote.Client, lookupSQLID string, params map[string]any, connCode string) ([]Row, bool, error) {
	res, err := client.GetData(ctx, remote.DataRequest{
		PrjID:       c.Key.PrjID,
		FormID:      c.Key.FormID,
		LookupSQLID: lookupSQLID,
		ConnCode:    connCode,
		Params:      params,
	})
	if err != nil {
		log.Printf("page: lookup %s failed: %v", lookupSQLID, err)
		return nil, false, nil
	}
	if !res.Valid || len(res.DataSets) == 0 {
		return nil, false, nil
	}
	payload := res.DataSets[0]
	coerceNumericColumns(payload.Rows, payload.NumericColumns)
	return payload.Rows, true, nil
}

// RemoveData detaches an adapter entirely so the next getData acts as a
// fresh load.
func (c *Context) RemoveData(adapterName string) {
	for i, a := range c.Adapters {
		if a.Name == adapterName {
			c.Adapters = append(c.Adapters[:i], c.Adapters[i+1:]...)
			return
		}
	}
}

// SetDataSetStatus transitions a dataset between idle/insert/edit/delete.
func (c *Context) SetDataSetStatus(dataSetName string, status Status) error {
	ds, err := c.DataSet(dataSetName)
	if err != nil {
		return err
	}
	ds.Status = status
	return nil
}

// SetDataSetSelected sets a dataset's selection state. With goToFirstRow or
// goToLastRow the selection moves to that end of the row list; otherwise the
// previously selected row is kept when it still exists. The selected row's
// fields propagate into PageFields for every bound form field, and the
// dataset's condition rules are re-derived.
func (c *Context) SetDataSetSelected(dataSetName string, isSelected, goToFirstRow, goToLastRow bool) error {
	def, err := c.Meta.DataSetDef(dataSetName)
	if err != nil {
		return err
	}
	ds, err := c.DataSet(dataSetName)
	if err != nil {
		return err
	}

	if !isSelected || len(ds.Rows) == 0 {
		ds.clearSelection()
		c.deriveRules(ds)
		return nil
	}

	var row Row
	switch {
	case goToFirstRow:
		row = ds.Rows[0]
	case goToLastRow:
		row = ds.Rows[len(ds.Rows)-1]
	case len(ds.SelectedKeys) > 0:
		row = ds.rowByKeys(ds.SelectedKeys[0])
	}
	if row == nil {
		row = ds.Rows[0]
	}

	ds.SelectedRows = []Row{row}
	ds.SelectedKeys = []map[string]any{keysOf(def, row)}
	ds.IsSelected = true

	c.propagateSelection(ds, row)
	c.deriveRules(ds)
	return nil
}

// propagateSelection copies the selected row's fields into PageFields for
// every form field bound to the dataset.
func (c *Context) propagateSelection(ds *DataSet, row Row) {
	for i := range c.Meta.Forms {
		for _, f := range c.Meta.Forms[i].Fields {
			if f.DataSetName == ds.Name {
				c.PageFields[f.FieldName] = row[f.FieldName]
			}
		}
	}
}

// deriveRules recomputes the live value of every rule bound to the dataset:
// 1 when the selected row's field equals the declared value, otherwise the
// rule's default.
func (c *Context) deriveRules(ds *DataSet) {
	row := ds.SelectedRow()
	for _, rd := range c.Meta.Rules {
		if rd.DataSetName != ds.Name {
			continue
		}
		if row != nil && looseEqual(row[rd.FieldName], rd.Value) {
			c.Rules.Set(rd.CondID, 1)
		} else {
			c.Rules.Set(rd.CondID, rd.Default)
		}
	}
}

// SaveFormData snapshots the form's page-field values into its dataset's
// selected row. When the dataset is in insert status with no selection, a
// new row is created, appended, and selected.
func (c *Context) SaveFormData(formName string) error {
	form, err := c.Meta.Form(formName)
	if err != nil {
		return err
	}
	if form.DataSetName == "" {
		return nil
	}
	def, err := c.Meta.DataSetDef(form.DataSetName)
	if err != nil {
		return err
	}
	ds, err := c.DataSet(form.DataSetName)
	if err != nil {
		return err
	}

	row := ds.SelectedRow()
	if row == nil {
		if ds.Status != StatusInsert {
			return nil
		}
		row = make(Row)
		ds.Rows = append(ds.Rows, row)
		ds.SelectedRows = []Row{row}
		ds.IsSelected = true
	}
	for _, f := range form.Fields {
		if f.DataSetName != form.DataSetName {
			continue
		}
		if v, ok := c.PageFields[f.FieldName]; ok {
			row[f.FieldName] = v
		}
	}
	ds.SelectedKeys = []map[string]any{keysOf(def, row)}
	return nil
}

// GetFormData loads the bound dataset's selected row into the form's page
// fields.
func (c *Context) GetFormData(formName string) error {
	form, err := c.Meta.Form(formName)
	if err != nil {
		return err
	}
	if form.DataSetName == "" {
		return nil
	}
	ds, err := c.DataSet(form.DataSetName)
	if err != nil {
		return err
	}
	row := ds.SelectedRow()
	if row == nil {
		return nil
	}
	for _, f := range form.Fields {
		c.PageFields[f.FieldName] = row[f.FieldName]
	}
	return nil
}

// ClearFields blanks the form's page fields, skipping locked key fields.
func (c *Context) ClearFields(formName string) error {
	form, err := c.Meta.Form(formName)
	if err != nil {
		return err
	}
	for _, f := range form.Fields {
		if c.lockedFields[f.FieldName] {
			continue
		}
		c.PageFields[f.FieldName] = nil
	}
	return nil
}

// PKLock locks the form's key fields so clearFields leaves them intact,
// letting insert flows keep the parent keys in place.
func (c *Context) PKLock(formName string) error {
	return c.setKeyLock(formName, true)
}

// PKUnlock releases the form's key fields.
func (c *Context) PKUnlock(formName string) error {
	return c.setKeyLock(formName, false)
}

func (c *Context) setKeyLock(formName string, locked bool) error {
	form, err := c.Meta.Form(formName)
	if err != nil {
		return err
	}
	for _, f := range form.Fields {
		if f.IsKey {
			c.lockedFields[f.FieldName] = locked
		}
	}
	return nil
}

// ResolveParams builds the parameter object of a procedure call from
// declared bindings: each parameter comes from a named page field or from a
// dataset's selected-row field.
func (c *Context) ResolveParams(bindings []metadata.SQLParam) (map[string]any, error) {
	params := make(map[string]any, len(bindings))
	for _, b := range bindings {
		switch b.Source {
		case "field":
			params[b.Name] = c.PageFields[b.FieldName]
		case "dataset":
			ds, err := c.DataSet(b.DataSetName)
			if err != nil {
				return nil, err
			}
			if row := ds.SelectedRow(); row != nil {
				params[b.Name] = row[b.FieldName]
			} else {
				params[b.Name] = nil
			}
		}
	}
	return params, nil
}

// DataSetActionKind selects the flavor of DataSetAction.
type DataSetActionKind string

const (
	ActionPost   DataSetActionKind = "post"
	ActionDelete DataSetActionKind = "delete"
)

// DataSetAction backs the dsPost and dsDelete steps: it snapshots bound form
// values into the row, resolves the SQL identifier from the dataset's
// status, resolves parameters from the declared bindings, invokes the remote
// procedure, applies output bindings back onto the row, resets status to
// idle, and appends an audit entry. A failed call leaves the row and status
// untouched and yields false.
func (c *Context) DataSetAction(ctx context.Context, client remote.Client, dataSetName string, kind DataSetActionKind) (bool, error) {
	def, err := c.Meta.DataSetDef(dataSetName)
	if err != nil {
		return false, err
	}
	ds, err := c.DataSet(dataSetName)
	if err != nil {
		return false, err
	}

	for i := range c.Meta.Forms {
		if c.Meta.Forms[i].DataSetName == dataSetName {
			if err := c.SaveFormData(c.Meta.Forms[i].FormName); err != nil {
				return false, err
			}
		}
	}

	sqlID := def.SQLUpdateID
	switch {
	case kind == ActionDelete || ds.Status == StatusDelete:
		sqlID = def.SQLDeleteID
	case ds.Status == StatusInsert:
		sqlID = def.SQLInsertID
	}
	if sqlID == "" {
		log.Printf("page: dataset %s has no SQL id for %s in status %s", dataSetName, kind, ds.Status)
		return false, nil
	}

	params, err := c.ResolveParams(def.Params)
	if err != nil {
		return false, err
	}

	res, err := client.ExecProc(ctx, remote.ProcRequest{
		PrjID:    c.Key.PrjID,
		SQLID:    sqlID,
		ConnCode: def.ConnCode,
		Params:   params,
	})
	if err != nil {
		log.Printf("page: execProc %s failed: %v", sqlID, err)
		return false, nil
	}
	if !res.Valid {
		return false, nil
	}

	if kind == ActionDelete || ds.Status == StatusDelete {
		c.removeSelectedRow(ds)
	} else if row := ds.SelectedRow(); row != nil {
		for k, v := range res.OutBinds {
			row[k] = v
		}
		ds.SelectedKeys = []map[string]any{keysOf(def, row)}
		c.propagateSelection(ds, row)
	}
	ds.Status = StatusIdle
	c.AppendLog(string(kind), sqlID, params)
	return true, nil
}

func (c *Context) removeSelectedRow(ds *DataSet) {
	row := ds.SelectedRow()
	if row == nil {
		return
	}
	for i := range ds.Rows {
		if sameRow(ds.Rows[i], row) {
			ds.Rows = append(ds.Rows[:i], ds.Rows[i+1:]...)
			break
		}
	}
	ds.clearSelection()
}

func sameRow(a, b Row) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if !looseEqual(b[k], v) {
			return false
		}
	}
	return true
}

// DataSetRefresh re-fetches either the whole dataset (all=true) or just the
// selected row, keyed by its current selected keys, replacing data in place.
// Condition rules are re-derived from the refreshed selection.
func (c *Context) DataSetRefresh(ctx context.Context, client remote.Client, dataSetName string, all bool) (bool, error) {
	def, err := c.Meta.DataSetDef(dataSetName)
	if err != nil {
		return false, err
	}
	ds, err := c.DataSet(dataSetName)
	if err != nil {
		return false, err
	}

	params := make(map[string]any)
	if !all && len(ds.SelectedKeys) > 0 {
		for k, v := range ds.SelectedKeys[0] {
			params[k] = v
		}
	}

	res, err := client.GetData(ctx, remote.DataRequest{
		PrjID:       c.Key.PrjID,
		FormID:      c.Key.FormID,
		DataAdapter: def.DataAdapter,
		ConnCode:    def.ConnCode,
		Params:      params,
	})
	if err != nil {
		log.Printf("page: refresh %s failed: %v", dataSetName, err)
		return false, nil
	}
	if !res.Valid {
		return false, nil
	}

	var payload *remote.DataPayload
	for i := range res.DataSets {
		if res.DataSets[i].Name == dataSetName {
			payload = &res.DataSets[i]
			break
		}
	}
	if payload == nil {
		return false, nil
	}
	coerceNumericColumns(payload.Rows, payload.NumericColumns)

	if all {
		ds.Rows = payload.Rows
		if len(ds.SelectedKeys) > 0 {
			if row := ds.rowByKeys(ds.SelectedKeys[0]); row != nil {
				ds.SelectedRows = []Row{row}
				c.propagateSelection(ds, row)
			} else {
				ds.clearSelection()
			}
		}
	} else if len(payload.Rows) > 0 {
		fresh := payload.Rows[0]
		if row := ds.SelectedRow(); row != nil {
			// Copy into the existing row so shared references see the update.
			for k, v := range fresh {
				row[k] = v
			}
			ds.SelectedKeys = []map[string]any{keysOf(def, row)}
			c.propagateSelection(ds, row)
		}
	}
	c.deriveRules(ds)
	return true, nil
}
