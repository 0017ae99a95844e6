package eventbus

import "github.com/giancarlothiella/gtsw-engine/internal/metadata"

// Kind discriminates page events.
type Kind string

const (
	KindViewChanged    Kind = "viewChanged"
	KindLoader         Kind = "loader"
	KindMessageRequest Kind = "messageRequest"
	KindGridReload     Kind = "gridReload"
	KindLookupRequest  Kind = "lookupRequest"
	KindCustomCode     Kind = "customCode"
	KindFormReply      Kind = "formReply"
	KindDebugStarted   Kind = "debugStarted"
	KindDebugProgress  Kind = "debugProgress"
)

// Event is one notification published by the engine or the view resolver.
// Payload holds the kind-specific struct below.
type Event struct {
	Kind   Kind
	PrjID  string
	FormID string
	Payload any
}

// ViewChanged announces the new active view after a successful setView.
type ViewChanged struct {
	ViewName string
}

// Loader toggles the page loading indicator.
type Loader struct {
	Visible bool
}

// MessageRequest asks the message-box collaborator to pose a question. The
// collaborator answers by calling Engine.Resume with the token.
type MessageRequest struct {
	Text        string
	MsgType     string
	OKCancel    bool
	ResumeToken string
}

// GridReload tells grid components to re-read their dataset. Post and
// Rollback flag pending-edit handling for gridPostChanges/gridRollback.
type GridReload struct {
	DataSetName string
	GridName    string
	Post        bool
	Rollback    bool
}

// LookupRequest delivers rows fetched for a lookup editor or an export.
type LookupRequest struct {
	Name string
	Rows []map[string]any
}

// CustomCode hands control to the external custom-code collaborator. The
// loader stays up until that collaborator clears it.
type CustomCode struct {
	Name string
}

// FormReply carries a custom-validation result back toward the engine's
// resume entry point.
type FormReply struct {
	FormName string
	Valid    bool
	Message  string
}

// DebugStarted opens a debug session: the intercepted action, the live rule
// values, and the cursor at 0.
type DebugStarted struct {
	SessionID  string
	ActionName string
	Steps      []metadata.Step
	RuleValues map[int]int
	Cursor     int
}

// DebugProgress reports one visited step.
type DebugProgress struct {
	SessionID     string
	ActionName    string
	Step          metadata.Step
	RuleValues    map[int]int
	CanRun        bool
	WasStepActive bool
	CursorIndex   int
	IsLastStep    bool
}
