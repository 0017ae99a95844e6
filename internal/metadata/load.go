package metadata

import (
	"encoding/json"
	"fmt"
	"sort"
)

// NotFoundError reports a step or caller referencing a name the page
// document never declared. This is a programmer/data error, not a runtime
// condition: the engine propagates it instead of skipping silently.
type NotFoundError struct {
	Kind string // "action", "view", "dataSet", "form", "grid", "toolbar", "tabs"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("metadata: %s %q not found", e.Kind, e.Name)
}

// Decode validates raw JSON against the page schema, unmarshals it, and
// flattens the always-active views into every view's effective object list.
func Decode(data []byte) (*Page, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var p Page
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding page document: %w", err)
	}
	p.FlattenViews()
	return &p, nil
}

// FlattenViews builds each view's effective object list: its own objects
// plus the objects of every always-active view, sorted ascending by the
// contributing view's level. Decode calls this once at load so setView
// never re-walks the catalogue; callers assembling a Page in code must call
// it themselves.
func (p *Page) FlattenViews() {
	var alwaysActive []*View
	for i := range p.Views {
		if p.Views[i].ViewFlagAlwaysActive {
			alwaysActive = append(alwaysActive, &p.Views[i])
		}
	}
	for i := range p.Views {
		v := &p.Views[i]
		layered := make([]LayeredObject, 0, len(v.Objects))
		for _, obj := range v.Objects {
			layered = append(layered, LayeredObject{Level: v.ViewLevel, Object: obj})
		}
		for _, aa := range alwaysActive {
			if aa == v {
				continue
			}
			for _, obj := range aa.Objects {
				layered = append(layered, LayeredObject{Level: aa.ViewLevel, Object: obj})
			}
		}
		sort.SliceStable(layered, func(a, b int) bool { return layered[a].Level < layered[b].Level })
		v.effective = layered
	}
}

// Action returns the named action, or nil if the page declares no such
// action. A missing action is deliberately not an error: running an unknown
// action is a no-op at the engine level.
func (p *Page) Action(name string) *Action {
	for i := range p.Actions {
		if p.Actions[i].ObjectName == name {
			return &p.Actions[i]
		}
	}
	return nil
}

// View returns the named view.
func (p *Page) View(name string) (*View, error) {
	for i := range p.Views {
		if p.Views[i].ViewName == name {
			return &p.Views[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "view", Name: name}
}

// DataSetDef returns the named dataset definition.
func (p *Page) DataSetDef(name string) (*DataSetDef, error) {
	for i := range p.DataSets {
		if p.DataSets[i].DataSetName == name {
			return &p.DataSets[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "dataSet", Name: name}
}

// Form returns the named form declaration.
func (p *Page) Form(name string) (*Form, error) {
	for i := range p.Forms {
		if p.Forms[i].FormName == name {
			return &p.Forms[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "form", Name: name}
}

// Grid returns the named grid declaration.
func (p *Page) Grid(name string) (*Grid, error) {
	for i := range p.Grids {
		if p.Grids[i].GridName == name {
			return &p.Grids[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "grid", Name: name}
}

// TabsByName returns the named tab container.
func (p *Page) TabsByName(name string) (*Tabs, error) {
	for i := range p.Tabs {
		if p.Tabs[i].TabsName == name {
			return &p.Tabs[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "tabs", Name: name}
}
