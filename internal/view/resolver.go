// Package view resolves, from declarative view metadata, which UI objects
// are visible and enabled at any moment. Views compose as layers: the
// target view's objects plus every always-active view's, lowest level
// first, so more specific layers override more general ones.
package view

import (
	"context"
	"log"

	"github.com/giancarlothiella/gtsw-engine/internal/eventbus"
	"github.com/giancarlothiella/gtsw-engine/internal/metadata"
	"github.com/giancarlothiella/gtsw-engine/internal/page"
)

// Resolver computes and applies visibility state. It publishes a
// ViewChanged event after every successful switch.
type Resolver struct {
	bus eventbus.Publisher
}

// New creates a resolver publishing on the given bus.
func New(bus eventbus.Publisher) *Resolver {
	return &Resolver{bus: bus}
}

// objectFlags is the resolved state of one view object before application.
type objectFlags struct {
	visible bool
	enabled bool
}

type objectKey struct {
	objectType string
	objectName string
}

// SetView switches the page to the named view. A normal call pushes the
// current view onto the back-stack; isPrevious pops the stack instead and
// ignores viewName. Returns false, with no visibility change, when the
// resolved name is empty or unknown.
func (r *Resolver) SetView(ctx context.Context, pc *page.Context, viewName string, isPrevious bool) bool {
	name := viewName
	if isPrevious {
		name = pc.PopView()
	}
	if name == "" {
		return false
	}

	v, err := pc.Meta.View(name)
	if err != nil {
		log.Printf("view: %v", err)
		return false
	}

	if !isPrevious && pc.ActiveView != "" && pc.ActiveView != name {
		pc.PushView(pc.ActiveView)
	}

	resolved := r.resolve(pc, v)
	resetFlags(pc.Meta)
	applyFlags(pc.Meta, v, resolved)
	r.resolveReports(pc)

	pc.ActiveView = name
	r.bus.Publish(ctx, eventbus.Event{
		Kind:    eventbus.KindViewChanged,
		PrjID:   pc.Key.PrjID,
		FormID:  pc.Key.FormID,
		Payload: eventbus.ViewChanged{ViewName: name},
	})
	return true
}

// resolve computes per-object flags in level order so higher layers
// override lower ones, then gates tab-nested objects on their container.
func (r *Resolver) resolve(pc *page.Context, v *metadata.View) map[objectKey]objectFlags {
	flags := make(map[objectKey]objectFlags)
	for _, layered := range v.Effective() {
		obj := layered.Object
		f := objectFlags{visible: true, enabled: true}

		switch obj.Selected {
		case "Y":
			f.visible = datasetSelected(pc, obj.SelectedObjectName)
		case "N":
			f.visible = !datasetSelected(pc, obj.SelectedObjectName)
		}

		if len(obj.ExecCond) > 0 && !pc.Rules.Satisfied(obj.ExecCond) {
			f.enabled = false
			if obj.ExecCondNotVisible {
				f.visible = false
			}
		}

		flags[objectKey{obj.ObjectType, obj.ObjectName}] = f
	}

	// Second pass: objects nested in a tab container are visible only while
	// the container itself is visible and shows their tab slot.
	for _, layered := range v.Effective() {
		obj := layered.Object
		if obj.TabsName == "" {
			continue
		}
		key := objectKey{obj.ObjectType, obj.ObjectName}
		f := flags[key]
		tabFlags, ok := flags[objectKey{"tab", obj.TabsName}]
		tabVisible := ok && tabFlags.visible
		tabs, err := pc.Meta.TabsByName(obj.TabsName)
		if err != nil || !tabVisible || tabs.ActiveIndex != obj.TabIndex {
			f.visible = false
		}
		flags[key] = f
	}
	return flags
}

func datasetSelected(pc *page.Context, dataSetName string) bool {
	ds, err := pc.DataSet(dataSetName)
	if err != nil {
		return false
	}
	return ds.IsSelected
}

// resetFlags hides and disables every declared object. The reset-then-apply
// ordering guarantees no object retains stale visibility from a previous
// view.
func resetFlags(m *metadata.Page) {
	for i := range m.Tabs {
		m.Tabs[i].Visible = false
	}
	for i := range m.Grids {
		m.Grids[i].Visible = false
		m.Grids[i].Enabled = false
	}
	for i := range m.Forms {
		m.Forms[i].Visible = false
		m.Forms[i].Enabled = false
	}
	for i := range m.Toolbars {
		m.Toolbars[i].Visible = false
		for j := range m.Toolbars[i].Items {
			m.Toolbars[i].Items[j].Visible = false
			m.Toolbars[i].Items[j].Enabled = false
		}
	}
	for i := range m.ReportGroups {
		m.ReportGroups[i].Visible = false
	}
	for i := range m.Reports {
		m.Reports[i].Visible = false
	}
}

// applyFlags writes the resolved objects' flags back into the metadata
// declarations.
func applyFlags(m *metadata.Page, v *metadata.View, flags map[objectKey]objectFlags) {
	for _, layered := range v.Effective() {
		obj := layered.Object
		f := flags[objectKey{obj.ObjectType, obj.ObjectName}]
		switch obj.ObjectType {
		case "tab":
			if t, err := m.TabsByName(obj.ObjectName); err == nil {
				t.Visible = f.visible
			}
		case "grid":
			if g, err := m.Grid(obj.ObjectName); err == nil {
				g.Visible = f.visible
				g.Enabled = f.enabled
			}
		case "form":
			if fm, err := m.Form(obj.ObjectName); err == nil {
				fm.Visible = f.visible
				fm.Enabled = f.enabled
			}
		case "toolbar":
			for i := range m.Toolbars {
				if m.Toolbars[i].ToolbarName == obj.ObjectName {
					m.Toolbars[i].Visible = f.visible
				}
			}
		case "toolbarItem":
			for i := range m.Toolbars {
				for j := range m.Toolbars[i].Items {
					if m.Toolbars[i].Items[j].ItemName == obj.ObjectName {
						m.Toolbars[i].Items[j].Visible = f.visible
						m.Toolbars[i].Items[j].Enabled = f.enabled
					}
				}
			}
		case "reportGroup":
			for i := range m.ReportGroups {
				if m.ReportGroups[i].GroupName == obj.ObjectName {
					m.ReportGroups[i].Visible = f.visible
				}
			}
		}
	}
}

// resolveReports recomputes each report's visibility from its own execCond.
// Reports are not view objects but follow the same rule predicate.
func (r *Resolver) resolveReports(pc *page.Context) {
	for i := range pc.Meta.Reports {
		rep := &pc.Meta.Reports[i]
		rep.Visible = pc.Rules.Satisfied(rep.ExecCond)
	}
}
