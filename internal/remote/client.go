// Package remote defines the engine's inbound collaborator boundary: the
// server that owns page metadata and executes SQL/stored procedures. The
// engine treats both calls as opaque; a failed call is a result with
// Valid=false, not an error.
package remote

import (
	"context"

	"github.com/giancarlothiella/gtsw-engine/internal/metadata"
)

// DataRequest asks for all datasets of one adapter, or, when LookupSQLID is
// set, for the rows of a single lookup statement.
type DataRequest struct {
	PrjID       string         `json:"prjId"`
	FormID      string         `json:"formId"`
	DataAdapter string         `json:"dataAdapterName,omitempty"`
	LookupSQLID string         `json:"lookupSqlId,omitempty"`
	ConnCode    string         `json:"connCode,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// DataPayload is the rows of one dataset. NumericColumns names columns the
// server serialised as strings but that are numeric; the data model coerces
// them on receipt.
type DataPayload struct {
	Name           string           `json:"dataSetName"`
	Rows           []map[string]any `json:"rows"`
	NumericColumns []string         `json:"numericColumns,omitempty"`
}

// DataResult is the outcome of a data fetch.
type DataResult struct {
	Valid    bool          `json:"valid"`
	DataSets []DataPayload `json:"data,omitempty"`
}

// ProcRequest executes one stored procedure / SQL statement.
type ProcRequest struct {
	PrjID    string         `json:"prjId"`
	SQLID    string         `json:"sqlId"`
	ConnCode string         `json:"connCode,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

// ProcResult is the outcome of a procedure call. OutBinds carries output
// bindings applied back onto the posted row.
type ProcResult struct {
	Valid    bool           `json:"valid"`
	OutBinds map[string]any `json:"outBinds,omitempty"`
}

// Client is the remote collaborator. Implementations: HTTPClient in this
// package, the in-process client assembled by the reference server, and
// test fakes.
type Client interface {
	FetchPage(ctx context.Context, prjID, formID string) (*metadata.Page, error)
	GetData(ctx context.Context, req DataRequest) (*DataResult, error)
	ExecProc(ctx context.Context, req ProcRequest) (*ProcResult, error)
}
