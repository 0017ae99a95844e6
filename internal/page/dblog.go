package page

import "time"

// LogEntry is one audit record of a successful dataset mutation. The log is
// append-only, in-memory, and exists for developer-facing inspection only.
type LogEntry struct {
	Time   time.Time      `json:"time"`
	Kind   string         `json:"kind"`
	SQLID  string         `json:"sqlId"`
	Params map[string]any `json:"params,omitempty"`
}

// AppendLog records a successful mutation.
func (c *Context) AppendLog(kind, sqlID string, params map[string]any) {
	c.dbLog = append(c.dbLog, LogEntry{
		Time:   time.Now(),
		Kind:   kind,
		SQLID:  sqlID,
		Params: params,
	})
}

// DBLogSnapshot copies the audit log.
func (c *Context) DBLogSnapshot() []LogEntry {
	out := make([]LogEntry, len(c.dbLog))
	copy(out, c.dbLog)
	return out
}
