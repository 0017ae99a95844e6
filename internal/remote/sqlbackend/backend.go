// Package sqlbackend is the reference implementation of the server-side
// collaborator: it maps SQL identifiers to registered statements and
// executes them against SQLite, serving the engine's getData and execProc
// calls in development and tests. Production deployments talk to the real
// page server instead.
package sqlbackend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/giancarlothiella/gtsw-engine/internal/remote"
)

// Statement is one registered SQL identifier. Query statements fill a
// dataset; exec statements back stored-procedure calls, with OutColumns
// read from a RETURNING row into the result's output bindings.
type Statement struct {
	SQL            string   `json:"sql"`
	DataSet        string   `json:"dataSet,omitempty"`
	NumericColumns []string `json:"numericColumns,omitempty"`
	OutColumns     []string `json:"outColumns,omitempty"`
}

// Backend executes registered statements against one SQLite database.
type Backend struct {
	db *sql.DB

	mu         sync.RWMutex
	statements map[string]Statement
	adapters   map[string][]string // adapter name -> sqlIds fetched together
}

// Open opens the SQLite database at dsn.
func Open(dsn string) (*Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Backend{
		db:         db,
		statements: make(map[string]Statement),
		adapters:   make(map[string][]string),
	}, nil
}

// DB exposes the underlying handle for schema setup and seeding.
func (b *Backend) DB() *sql.DB { return b.db }

// Close closes the database.
func (b *Backend) Close() error { return b.db.Close() }

// RegisterStatement maps a SQL identifier to a statement.
func (b *Backend) RegisterStatement(sqlID string, st Statement) {
	b.mu.Lock()
	b.statements[sqlID] = st
	b.mu.Unlock()
}

// RegisterAdapter declares which statements one adapter fetches together.
func (b *Backend) RegisterAdapter(name string, sqlIDs ...string) {
	b.mu.Lock()
	b.adapters[name] = sqlIDs
	b.mu.Unlock()
}

// configFile is the on-disk shape consumed by LoadConfig.
type configFile struct {
	Statements map[string]Statement `json:"statements"`
	Adapters   map[string][]string  `json:"adapters"`
}

// LoadConfig registers statements and adapters from a JSON file.
func (b *Backend) LoadConfig(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading backend config: %w", err)
	}
	var cfg configFile
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("decoding backend config: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, st := range cfg.Statements {
		b.statements[id] = st
	}
	for name, ids := range cfg.Adapters {
		b.adapters[name] = ids
	}
	return nil
}

// GetData serves a data request: all statements of an adapter, or one
// lookup statement. Errors yield Valid=false, never a Go error — the
// engine's contract treats remote failure as a gate, not a fault.
func (b *Backend) GetData(ctx context.Context, req remote.DataRequest) (*remote.DataResult, error) {
	b.mu.RLock()
	var sqlIDs []string
	if req.LookupSQLID != "" {
		sqlIDs = []string{req.LookupSQLID}
	} else {
		sqlIDs = b.adapters[req.DataAdapter]
	}
	b.mu.RUnlock()

	if len(sqlIDs) == 0 {
		log.Printf("sqlbackend: no statements for adapter %q / lookup %q", req.DataAdapter, req.LookupSQLID)
		return &remote.DataResult{Valid: false}, nil
	}

	var payloads []remote.DataPayload
	for _, id := range sqlIDs {
		b.mu.RLock()
		st, ok := b.statements[id]
		b.mu.RUnlock()
		if !ok {
			log.Printf("sqlbackend: unknown sqlId %q", id)
			return &remote.DataResult{Valid: false}, nil
		}
		rows, err := b.queryRows(ctx, st, req.Params)
		if err != nil {
			log.Printf("sqlbackend: query %s: %v", id, err)
			return &remote.DataResult{Valid: false}, nil
		}
		name := st.DataSet
		if name == "" {
			name = id
		}
		payloads = append(payloads, remote.DataPayload{
			Name:           name,
			Rows:           rows,
			NumericColumns: st.NumericColumns,
		})
	}
	return &remote.DataResult{Valid: true, DataSets: payloads}, nil
}

// ExecProc executes one statement. With OutColumns declared the statement
// is expected to return one row (e.g. via RETURNING) whose columns become
// the output bindings.
func (b *Backend) ExecProc(ctx context.Context, req remote.ProcRequest) (*remote.ProcResult, error) {
	b.mu.RLock()
	st, ok := b.statements[req.SQLID]
	b.mu.RUnlock()
	if !ok {
		log.Printf("sqlbackend: unknown sqlId %q", req.SQLID)
		return &remote.ProcResult{Valid: false}, nil
	}

	args := bindNamed(st.SQL, req.Params)
	if len(st.OutColumns) > 0 {
		rows, err := b.db.QueryContext(ctx, st.SQL, args...)
		if err != nil {
			log.Printf("sqlbackend: exec %s: %v", req.SQLID, err)
			return &remote.ProcResult{Valid: false}, nil
		}
		defer rows.Close()
		maps, err := rowsToMaps(rows)
		if err != nil || len(maps) == 0 {
			log.Printf("sqlbackend: exec %s returned no out row: %v", req.SQLID, err)
			return &remote.ProcResult{Valid: false}, nil
		}
		out := make(map[string]any, len(st.OutColumns))
		for _, col := range st.OutColumns {
			out[col] = maps[0][col]
		}
		return &remote.ProcResult{Valid: true, OutBinds: out}, nil
	}

	if _, err := b.db.ExecContext(ctx, st.SQL, args...); err != nil {
		log.Printf("sqlbackend: exec %s: %v", req.SQLID, err)
		return &remote.ProcResult{Valid: false}, nil
	}
	return &remote.ProcResult{Valid: true}, nil
}

func (b *Backend) queryRows(ctx context.Context, st Statement, params map[string]any) ([]map[string]any, error) {
	rows, err := b.db.QueryContext(ctx, st.SQL, bindNamed(st.SQL, params)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rowsToMaps(rows)
}

var namedParamRe = regexp.MustCompile(`[:@$]([A-Za-z_][A-Za-z0-9_]*)`)

// bindNamed binds only the parameters the statement references, so callers
// may pass a superset.
func bindNamed(sqlText string, params map[string]any) []any {
	seen := make(map[string]bool)
	var args []any
	for _, m := range namedParamRe.FindAllStringSubmatch(sqlText, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		args = append(args, sql.Named(name, params[name]))
	}
	return args
}

func rowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
