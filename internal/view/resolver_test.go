package view

import (
	"context"
	"reflect"
	"testing"

	"github.com/giancarlothiella/gtsw-engine/internal/eventbus"
	"github.com/giancarlothiella/gtsw-engine/internal/metadata"
	"github.com/giancarlothiella/gtsw-engine/internal/page"
)

// recorder collects events synchronously.
type recorder struct {
	events []eventbus.Event
}

func (r *recorder) Publish(_ context.Context, evt eventbus.Event) {
	r.events = append(r.events, evt)
}

func (r *recorder) kinds() []eventbus.Kind {
	var out []eventbus.Kind
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func testMeta() *metadata.Page {
	m := &metadata.Page{
		PrjID:  "demo",
		FormID: "orders",
		Views: []metadata.View{
			{
				ViewName:             "vShared",
				ViewLevel:            0,
				ViewFlagAlwaysActive: true,
				Objects: []metadata.ViewObject{
					{ObjectType: "toolbar", ObjectName: "tbMain", Selected: "U"},
				},
			},
			{
				ViewName:  "vBrowse",
				ViewLevel: 10,
				Objects: []metadata.ViewObject{
					{ObjectType: "grid", ObjectName: "grOrders", Selected: "U"},
					{ObjectType: "form", ObjectName: "frOrder", Selected: "Y", SelectedObjectName: "qOrders"},
				},
			},
			{
				ViewName:  "vEdit",
				ViewLevel: 20,
				Objects: []metadata.ViewObject{
					{ObjectType: "form", ObjectName: "frOrder", Selected: "U",
						ExecCond: []metadata.CondRef{{CondID: 1, Value: 1}}, ExecCondNotVisible: false},
					{ObjectType: "toolbarItem", ObjectName: "btnSave", Selected: "U",
						ExecCond: []metadata.CondRef{{CondID: 2, Value: 1}}, ExecCondNotVisible: true},
				},
			},
			{
				ViewName:  "vTabs",
				ViewLevel: 10,
				Objects: []metadata.ViewObject{
					{ObjectType: "tab", ObjectName: "tabsMain", Selected: "U"},
					{ObjectType: "grid", ObjectName: "grOrders", Selected: "U", TabsName: "tabsMain", TabIndex: 0},
					{ObjectType: "form", ObjectName: "frOrder", Selected: "U", TabsName: "tabsMain", TabIndex: 1},
				},
			},
		},
		Rules: []metadata.RuleDef{
			{CondID: 1, Default: 0},
			{CondID: 2, Default: 0},
		},
		Forms: []metadata.Form{
			{FormName: "frOrder", DataSetName: "qOrders"},
		},
		Grids: []metadata.Grid{
			{GridName: "grOrders", DataSetName: "qOrders"},
		},
		Toolbars: []metadata.Toolbar{
			{ToolbarName: "tbMain", Items: []metadata.ToolbarItem{
				{ItemName: "btnSave", ActionName: "aSave"},
			}},
		},
		Tabs: []metadata.Tabs{
			{TabsName: "tabsMain", Sheets: []string{"List", "Detail"}},
		},
		Reports: []metadata.Report{
			{ReportName: "rptOrders", ExecCond: []metadata.CondRef{{CondID: 1, Value: 1}}},
		},
	}
	m.FlattenViews()
	return m
}

func newTestPage() (*page.Context, *recorder, *Resolver) {
	rec := &recorder{}
	pc := page.NewContext(page.Key{PrjID: "demo", FormID: "orders"}, testMeta())
	return pc, rec, New(rec)
}

// snapshot captures all live visibility flags for idempotence checks.
func snapshot(m *metadata.Page) map[string][2]bool {
	out := make(map[string][2]bool)
	for _, g := range m.Grids {
		out["grid/"+g.GridName] = [2]bool{g.Visible, g.Enabled}
	}
	for _, f := range m.Forms {
		out["form/"+f.FormName] = [2]bool{f.Visible, f.Enabled}
	}
	for _, tb := range m.Toolbars {
		out["toolbar/"+tb.ToolbarName] = [2]bool{tb.Visible, true}
		for _, it := range tb.Items {
			out["item/"+it.ItemName] = [2]bool{it.Visible, it.Enabled}
		}
	}
	for _, tt := range m.Tabs {
		out["tabs/"+tt.TabsName] = [2]bool{tt.Visible, true}
	}
	for _, r := range m.Reports {
		out["report/"+r.ReportName] = [2]bool{r.Visible, true}
	}
	return out
}

func TestSetViewAppliesLayers(t *testing.T) {
	pc, _, r := newTestPage()

	if !r.SetView(context.Background(), pc, "vBrowse", false) {
		t.Fatal("SetView should succeed")
	}

	g, _ := pc.Meta.Grid("grOrders")
	if !g.Visible || !g.Enabled {
		t.Error("grid should be visible and enabled")
	}
	// Always-active view's toolbar composes into vBrowse.
	if !pc.Meta.Toolbars[0].Visible {
		t.Error("always-active toolbar should be visible")
	}
	// frOrder requires a selected qOrders row; no datasets exist yet.
	f, _ := pc.Meta.Form("frOrder")
	if f.Visible {
		t.Error("selected='Y' object must be hidden without a selected row")
	}
	if pc.ActiveView != "vBrowse" {
		t.Errorf("active view = %s, want vBrowse", pc.ActiveView)
	}
}

func TestSetViewEmptyNameFails(t *testing.T) {
	pc, rec, r := newTestPage()
	if r.SetView(context.Background(), pc, "", false) {
		t.Error("empty view name must fail")
	}
	if len(rec.events) != 0 {
		t.Error("failed SetView must not publish")
	}
}

func TestSetViewIdempotent(t *testing.T) {
	pc, _, r := newTestPage()
	pc.Rules.Set(1, 1)

	if !r.SetView(context.Background(), pc, "vEdit", false) {
		t.Fatal("SetView should succeed")
	}
	first := snapshot(pc.Meta)

	if !r.SetView(context.Background(), pc, "vEdit", false) {
		t.Fatal("second SetView should succeed")
	}
	second := snapshot(pc.Meta)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("visibility snapshots differ:\nfirst:  %v\nsecond: %v", first, second)
	}
	// Repeating the same view must not grow the back-stack.
	if pc.ViewStackDepth() != 0 {
		t.Errorf("stack depth = %d, want 0", pc.ViewStackDepth())
	}
}

func TestBackStack(t *testing.T) {
	pc, _, r := newTestPage()
	ctx := context.Background()

	r.SetView(ctx, pc, "vBrowse", false)
	r.SetView(ctx, pc, "vEdit", false)
	r.SetView(ctx, pc, "vTabs", false)

	if !r.SetView(ctx, pc, "", true) {
		t.Fatal("previous should succeed")
	}
	if pc.ActiveView != "vEdit" {
		t.Errorf("active view = %s, want vEdit", pc.ActiveView)
	}
	if !r.SetView(ctx, pc, "", true) {
		t.Fatal("previous should succeed")
	}
	if pc.ActiveView != "vBrowse" {
		t.Errorf("active view = %s, want vBrowse", pc.ActiveView)
	}
	// Stack exhausted: popping yields the empty view and false.
	if r.SetView(ctx, pc, "", true) {
		t.Error("underflow must fail, not wrap")
	}
	if pc.ActiveView != "vBrowse" {
		t.Error("failed previous must not change the active view")
	}
}

func TestExecCondGatesEnablement(t *testing.T) {
	pc, _, r := newTestPage()
	ctx := context.Background()

	// Rule 1 mismatches (live 0, wanted 1): form disabled but visible.
	// Rule 2 mismatches with execCondNotVisible: item forced invisible.
	if !r.SetView(ctx, pc, "vEdit", false) {
		t.Fatal("SetView should succeed")
	}
	f, _ := pc.Meta.Form("frOrder")
	if !f.Visible {
		t.Error("form should stay visible on rule mismatch")
	}
	if f.Enabled {
		t.Error("form must be disabled on rule mismatch")
	}
	item := &pc.Meta.Toolbars[0].Items[0]
	if item.Visible {
		t.Error("execCondNotVisible must force the item invisible")
	}

	// Satisfy both rules and re-resolve.
	pc.Rules.Set(1, 1)
	pc.Rules.Set(2, 1)
	r.SetView(ctx, pc, "vEdit", false)
	if !f.Enabled {
		t.Error("form should enable once the rule matches")
	}
	if !item.Visible || !item.Enabled {
		t.Error("item should show once the rule matches")
	}
}

func TestResetClearsStaleVisibility(t *testing.T) {
	pc, _, r := newTestPage()
	ctx := context.Background()

	r.SetView(ctx, pc, "vBrowse", false)
	if g, _ := pc.Meta.Grid("grOrders"); !g.Visible {
		t.Fatal("sanity: grid visible in vBrowse")
	}

	pc.Rules.Set(1, 1)
	r.SetView(ctx, pc, "vEdit", false)
	// vEdit declares no grid: the reset must have hidden it.
	if g, _ := pc.Meta.Grid("grOrders"); g.Visible {
		t.Error("grid must not retain visibility from the previous view")
	}
}

func TestTabGating(t *testing.T) {
	pc, _, r := newTestPage()
	ctx := context.Background()

	tabs, _ := pc.Meta.TabsByName("tabsMain")
	tabs.ActiveIndex = 0

	r.SetView(ctx, pc, "vTabs", false)
	g, _ := pc.Meta.Grid("grOrders")
	f, _ := pc.Meta.Form("frOrder")
	if !g.Visible {
		t.Error("grid on the active tab slot should be visible")
	}
	if f.Visible {
		t.Error("form on the inactive tab slot should be hidden")
	}

	tabs.ActiveIndex = 1
	r.SetView(ctx, pc, "vTabs", false)
	if g.Visible {
		t.Error("grid should hide when its tab slot deactivates")
	}
	if !f.Visible {
		t.Error("form should show on its tab slot")
	}
}

func TestReportVisibilityFollowsRules(t *testing.T) {
	pc, _, r := newTestPage()
	ctx := context.Background()

	r.SetView(ctx, pc, "vBrowse", false)
	if pc.Meta.Reports[0].Visible {
		t.Error("report rule unmet: report should be hidden")
	}

	pc.Rules.Set(1, 1)
	r.SetView(ctx, pc, "vBrowse", false)
	if !pc.Meta.Reports[0].Visible {
		t.Error("report should show once its rule holds")
	}
}

func TestSetViewPublishesViewChanged(t *testing.T) {
	pc, rec, r := newTestPage()

	r.SetView(context.Background(), pc, "vBrowse", false)
	kinds := rec.kinds()
	if len(kinds) != 1 || kinds[0] != eventbus.KindViewChanged {
		t.Fatalf("events = %v, want one viewChanged", kinds)
	}
	payload := rec.events[0].Payload.(eventbus.ViewChanged)
	if payload.ViewName != "vBrowse" {
		t.Errorf("payload view = %s, want vBrowse", payload.ViewName)
	}
}
