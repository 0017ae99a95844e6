// Package metadata defines the page document: the action catalogue, view
// catalogue, condition-rule definitions, dataset definitions, and the
// form/grid/toolbar/tab/report declarations a server describes for one
// (project, form) pair. The document is decoded from JSON and validated
// against an embedded CUE schema before anything else touches it.
package metadata

// CondRef is one condition predicate: the rule identified by CondID must
// currently hold Value for the predicate to pass.
type CondRef struct {
	CondID int `json:"condId"`
	Value  int `json:"value"`
}

// StepKind discriminates action steps. The set is closed; the engine
// dispatches with an exhaustive switch and the CUE schema rejects unknown
// kinds at load time.
type StepKind string

const (
	StepGetData         StepKind = "getData"
	StepRemoveData      StepKind = "removeData"
	StepSetView         StepKind = "setView"
	StepSetPreviousView StepKind = "setPreviousView"
	StepSelectDS        StepKind = "selectDS"
	StepUnselectDS      StepKind = "unselectDS"
	StepGoToFirstRow    StepKind = "goToFirstRow"
	StepGoToLastRow     StepKind = "goToLastRow"
	StepExecProc        StepKind = "execProc"
	StepExecCustom      StepKind = "execCustom"
	StepSetRule         StepKind = "setRule"
	StepGetFormData     StepKind = "getFormData"
	StepClearFields     StepKind = "clearFields"
	StepPKLock          StepKind = "pkLock"
	StepPKUnlock        StepKind = "pkUnlock"
	StepSaveFormData    StepKind = "saveFormData"
	StepGetExportedData StepKind = "getExportedData"
	StepDSInsert        StepKind = "dsInsert"
	StepDSEdit          StepKind = "dsEdit"
	StepDSCancel        StepKind = "dsCancel"
	StepDSRefresh       StepKind = "dsRefresh"
	StepDSRefreshSel    StepKind = "dsRefreshSel"
	StepDSPost          StepKind = "dsPost"
	StepDSDelete        StepKind = "dsDelete"
	StepShowMsg         StepKind = "showMsg"
	StepShowOKCancel    StepKind = "showOKCancel"
	StepGridSetIdle     StepKind = "gridSetIdle"
	StepGridSetEdit     StepKind = "gridSetEdit"
	StepGridSetInsert   StepKind = "gridSetInsert"
	StepGridAllowDelete StepKind = "gridAllowDelete"
	StepGridPostChanges StepKind = "gridPostChanges"
	StepGridRollback    StepKind = "gridRollback"
)

// Step is one entry of an action's step list. Which parameter fields are
// meaningful depends on ActionType; the rest stay at their zero value.
type Step struct {
	ActionType StepKind  `json:"actionType"`
	ExecCond   []CondRef `json:"execCond,omitempty"`

	DataAdapter  string         `json:"dataAdapter,omitempty"`
	DataSetName  string         `json:"dataSetName,omitempty"`
	ViewName     string         `json:"viewName,omitempty"`
	SQLID        string         `json:"sqlId,omitempty"`
	LookupSQLID  string         `json:"lookupSqlId,omitempty"`
	ConnCode     string         `json:"connCode,omitempty"`
	FormName     string         `json:"formName,omitempty"`
	GridName     string         `json:"gridName,omitempty"`
	CondID       int            `json:"condId,omitempty"`
	CondValue    int            `json:"condValue,omitempty"`
	MsgText      string         `json:"msgText,omitempty"`
	MsgType      string         `json:"msgType,omitempty"`
	CustomName   string         `json:"customName,omitempty"`
	GoToFirstRow bool           `json:"goToFirstRow,omitempty"`
	GoToLastRow  bool           `json:"goToLastRow,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
	SQLParams    []SQLParam     `json:"sqlParams,omitempty"`
}

// Action is a named, ordered step list. Immutable once loaded.
type Action struct {
	ObjectName string `json:"objectName"`
	Steps      []Step `json:"steps"`
}

// SQLParam binds one stored-procedure parameter to its source: a page field
// or the current field of a dataset's selected row. Output parameters are
// applied back onto the row after a successful call.
type SQLParam struct {
	Name        string `json:"name"`
	Source      string `json:"source"` // "field" or "dataset"
	FieldName   string `json:"fieldName,omitempty"`
	DataSetName string `json:"dataSetName,omitempty"`
	Output      bool   `json:"output,omitempty"`
}

// DataSetDef declares a dataset: its owning adapter, the SQL identifiers per
// status, its key fields, and its parameter bindings.
type DataSetDef struct {
	DataSetName string     `json:"dataSetName"`
	DataAdapter string     `json:"dataAdapter"`
	SQLID       string     `json:"sqlId,omitempty"`
	SQLInsertID string     `json:"sqlInsertId,omitempty"`
	SQLUpdateID string     `json:"sqlUpdateId,omitempty"`
	SQLDeleteID string     `json:"sqlDeleteId,omitempty"`
	SQLKeys     []string   `json:"sqlKeys,omitempty"`
	ConnCode    string     `json:"connCode,omitempty"`
	Params      []SQLParam `json:"params,omitempty"`
}

// RuleDef declares a condition rule. Rules without a dataset binding only
// change through setRule steps; rules bound to a dataset field are re-derived
// whenever that dataset's selection changes: the live value becomes 1 when
// the selected row's field equals Value, otherwise Default.
type RuleDef struct {
	CondID      int    `json:"condId"`
	DataSetName string `json:"dataSetName,omitempty"`
	FieldName   string `json:"fieldName,omitempty"`
	Value       any    `json:"value,omitempty"`
	Default     int    `json:"default,omitempty"`
}

// ViewObject declares the visibility/enablement contribution of one view
// layer for one UI object.
type ViewObject struct {
	ObjectType         string    `json:"objectType"` // tab, grid, form, toolbar, toolbarItem, reportGroup
	ObjectName         string    `json:"objectName"`
	Selected           string    `json:"selected"` // "U", "Y", "N"
	SelectedObjectName string    `json:"selectedObjectName,omitempty"`
	ExecCond           []CondRef `json:"execCond,omitempty"`
	ExecCondNotVisible bool      `json:"execCondNotVisible,omitempty"`
	TabsName           string    `json:"tabsName,omitempty"`
	TabIndex           int       `json:"tabIndex,omitempty"`
}

// View is one named visibility layer.
type View struct {
	ViewName             string       `json:"viewName"`
	ViewLevel            int          `json:"viewLevel"`
	ViewFlagAlwaysActive bool         `json:"viewFlagAlwaysActive,omitempty"`
	Objects              []ViewObject `json:"objects"`

	// effective is the flattened, level-sorted object list: the view's own
	// objects plus every always-active view's. Built once by Decode.
	effective []LayeredObject
}

// LayeredObject pairs a view object with the level of the view that
// contributed it, so layers compose lowest-first.
type LayeredObject struct {
	Level  int
	Object ViewObject
}

// Effective returns the flattened object list, ascending by level. Objects
// from the same level keep their declaration order.
func (v *View) Effective() []LayeredObject { return v.effective }

// FormField binds one page field to a dataset column of the same name.
type FormField struct {
	FieldName   string `json:"fieldName"`
	DataSetName string `json:"dataSetName,omitempty"`
	IsKey       bool   `json:"isKey,omitempty"`
}

// Form declares a data-entry form and its field bindings. Visible/Enabled
// are live flags owned by the view resolver.
type Form struct {
	FormName    string      `json:"formName"`
	DataSetName string      `json:"dataSetName,omitempty"`
	Fields      []FormField `json:"fields,omitempty"`
	Visible     bool        `json:"visible,omitempty"`
	Enabled     bool        `json:"enabled,omitempty"`
}

// GridStatus is the editing mode of a grid declaration.
type GridStatus string

const (
	GridIdle   GridStatus = "idle"
	GridEdit   GridStatus = "edit"
	GridInsert GridStatus = "insert"
)

// Grid declares a data grid bound to a dataset.
type Grid struct {
	GridName    string     `json:"gridName"`
	DataSetName string     `json:"dataSetName"`
	Visible     bool       `json:"visible,omitempty"`
	Enabled     bool       `json:"enabled,omitempty"`
	AllowDelete bool       `json:"allowDelete,omitempty"`
	Status      GridStatus `json:"status,omitempty"`
}

// ToolbarItem declares one toolbar button and the action it triggers.
type ToolbarItem struct {
	ItemName   string `json:"itemName"`
	ActionName string `json:"actionName,omitempty"`
	Visible    bool   `json:"visible,omitempty"`
	Enabled    bool   `json:"enabled,omitempty"`
}

// Toolbar declares a toolbar and its items.
type Toolbar struct {
	ToolbarName string        `json:"toolbarName"`
	Items       []ToolbarItem `json:"items,omitempty"`
	Visible     bool          `json:"visible,omitempty"`
}

// Tabs declares a tab container. ActiveIndex is mutated by the UI; objects
// nested in the container are gated on it by the resolver.
type Tabs struct {
	TabsName    string   `json:"tabsName"`
	Sheets      []string `json:"sheets,omitempty"`
	ActiveIndex int      `json:"activeIndex,omitempty"`
	Visible     bool     `json:"visible,omitempty"`
}

// ReportGroup declares a group of reports toggled as one view object.
type ReportGroup struct {
	GroupName string `json:"groupName"`
	Visible   bool   `json:"visible,omitempty"`
}

// Report declares a single report. Reports are not view objects; their
// visibility is recomputed from ExecCond on every view change.
type Report struct {
	ReportName string    `json:"reportName"`
	GroupName  string    `json:"groupName,omitempty"`
	SQLID      string    `json:"sqlId,omitempty"`
	ExecCond   []CondRef `json:"execCond,omitempty"`
	Visible    bool      `json:"visible,omitempty"`
}

// Page is the full metadata document for one (projectId, formId) pair.
// Actions, views, rules, and dataset definitions are immutable after load;
// the declaration flags (Visible/Enabled/Status/ActiveIndex) are live state
// mutated by the view resolver and the engine.
type Page struct {
	PrjID         string        `json:"prjId"`
	FormID        string        `json:"formId"`
	StartViewName string        `json:"startViewName,omitempty"`
	Actions       []Action      `json:"actions,omitempty"`
	Views         []View        `json:"views,omitempty"`
	Rules         []RuleDef     `json:"rules,omitempty"`
	DataSets      []DataSetDef  `json:"dataSets,omitempty"`
	Forms         []Form        `json:"forms,omitempty"`
	Grids         []Grid        `json:"grids,omitempty"`
	Toolbars      []Toolbar     `json:"toolbars,omitempty"`
	Tabs          []Tabs        `json:"tabs,omitempty"`
	ReportGroups  []ReportGroup `json:"reportGroups,omitempty"`
	Reports       []Report      `json:"reports,omitempty"`
}
