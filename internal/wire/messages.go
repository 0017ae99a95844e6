// Package wire exposes the debug stepping protocol over a websocket: a
// debugger UI attaches to a page, toggles observed mode, receives
// started/progress events, and drives the interpreter with stepOne/runAll.
package wire

import "encoding/json"

// ClientMessage is the envelope the debugger sends.
type ClientMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is the envelope pushed to the debugger.
type ServerMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// AttachData scopes the connection to one page.
type AttachData struct {
	PrjID  string `json:"prjId"`
	FormID string `json:"formId"`
}

// DebugModeData toggles observed mode.
type DebugModeData struct {
	On bool `json:"on"`
}

// RunData starts an observed action run.
type RunData struct {
	PrjID      string `json:"prjId"`
	FormID     string `json:"formId"`
	ActionName string `json:"actionName"`
}

// StepData drives a waiting session.
type StepData struct {
	PrjID  string `json:"prjId"`
	FormID string `json:"formId"`
}

// AnswerData resolves a suspended message step.
type AnswerData struct {
	Token  string `json:"token"`
	Answer string `json:"answer"` // "OK", "Cancel", "Close"
}

// ErrorData reports a protocol or execution error.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
