package page

import (
	"fmt"
	"strconv"

	"github.com/giancarlothiella/gtsw-engine/internal/metadata"
)

// Row is one record of a dataset. Rows are map-backed so a selected row and
// its entry in the dataset's row list are the same mutable object.
type Row = map[string]any

// Status is the editing state of a dataset. It selects which SQL identifier
// a later dsPost/dsDelete step invokes.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusInsert Status = "insert"
	StatusEdit   Status = "edit"
	StatusDelete Status = "delete"
)

// DataSet holds the live rows and selection state of one declared dataset.
// SelectedKeys stores key-field values; the selected row is always resolved
// against Rows by key equality, never cloned, so field edits land on the
// canonical row.
type DataSet struct {
	Name         string
	Rows         []Row
	SelectedRows []Row
	SelectedKeys []map[string]any
	IsSelected   bool
	Status       Status
}

// DataAdapter groups the datasets fetched together from one server-side
// data source.
type DataAdapter struct {
	PrjID    string
	FormID   string
	Name     string
	DataSets []*DataSet
}

// Adapter returns the named adapter, or nil when no getData has created it
// yet.
func (c *Context) Adapter(name string) *DataAdapter {
	for _, a := range c.Adapters {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// DataSet returns the named live dataset across all adapters.
func (c *Context) DataSet(name string) (*DataSet, error) {
	for _, a := range c.Adapters {
		for _, ds := range a.DataSets {
			if ds.Name == name {
				return ds, nil
			}
		}
	}
	return nil, &metadata.NotFoundError{Kind: "dataSet", Name: name}
}

// keysOf extracts the declared key fields of a row.
func keysOf(def *metadata.DataSetDef, row Row) map[string]any {
	keys := make(map[string]any, len(def.SQLKeys))
	for _, k := range def.SQLKeys {
		keys[k] = row[k]
	}
	return keys
}

// rowByKeys locates a row by key-field equality.
func (ds *DataSet) rowByKeys(keys map[string]any) Row {
	for _, row := range ds.Rows {
		match := true
		for k, v := range keys {
			if !looseEqual(row[k], v) {
				match = false
				break
			}
		}
		if match && len(keys) > 0 {
			return row
		}
	}
	return nil
}

// SelectedRow resolves the current selected row against the dataset's rows.
func (ds *DataSet) SelectedRow() Row {
	if !ds.IsSelected || len(ds.SelectedRows) == 0 {
		return nil
	}
	return ds.SelectedRows[0]
}

// clearSelection empties selection state. SelectedRows/SelectedKeys are
// empty iff IsSelected is false.
func (ds *DataSet) clearSelection() {
	ds.SelectedRows = nil
	ds.SelectedKeys = nil
	ds.IsSelected = false
}

// looseEqual compares row field values across the numeric representations
// JSON decoding produces (float64, int, numeric strings).
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// coerceNumericColumns converts server-flagged numeric columns from string
// to float64, in place.
func coerceNumericColumns(rows []Row, columns []string) {
	if len(columns) == 0 {
		return
	}
	for _, row := range rows {
		for _, col := range columns {
			if s, ok := row[col].(string); ok {
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					row[col] = f
				}
			}
		}
	}
}
