// Package page owns the live state of one (project, form) pair: the decoded
// metadata document, the data adapters and their datasets, the flat page
// field store, the condition-rule store, the view back-stack, and the
// in-memory audit log. Everything else in the engine reads and mutates page
// state through this package.
package page

import (
	"context"
	"fmt"
	"sync"

	"github.com/giancarlothiella/gtsw-engine/internal/metadata"
	"github.com/giancarlothiella/gtsw-engine/internal/remote"
	"github.com/giancarlothiella/gtsw-engine/internal/rules"
)

// Key identifies one page instance.
type Key struct {
	PrjID  string
	FormID string
}

func (k Key) String() string { return k.PrjID + "/" + k.FormID }

// Context is the per-page state handle passed into every engine call.
// A Context is not safe for concurrent mutation; callers serialise access
// per page via Lock/Unlock, which the engine does around every action run.
type Context struct {
	mu sync.Mutex

	Key        Key
	Meta       *metadata.Page
	Adapters   []*DataAdapter
	PageFields map[string]any
	Rules      *rules.Store

	viewStack  []string
	ActiveView string

	lockedFields map[string]bool
	msgStatus    string // "", "OK", "Cancel", "Close"
	dbLog        []LogEntry
}

// NewContext wraps a decoded metadata document into a live page context.
func NewContext(key Key, meta *metadata.Page) *Context {
	return &Context{
		Key:          key,
		Meta:         meta,
		PageFields:   make(map[string]any),
		Rules:        rules.NewStore(meta.Rules),
		lockedFields: make(map[string]bool),
	}
}

// Lock serialises access to this page instance. One action-execution loop
// advances at a time per page.
func (c *Context) Lock() { c.mu.Lock() }

// Unlock releases the page instance.
func (c *Context) Unlock() { c.mu.Unlock() }

// PushView records the current view before adopting a new one.
func (c *Context) PushView(name string) {
	c.viewStack = append(c.viewStack, name)
}

// PopView removes and returns the most recent view, or "" when the stack is
// empty. The stack never underflows.
func (c *Context) PopView() string {
	if len(c.viewStack) == 0 {
		return ""
	}
	name := c.viewStack[len(c.viewStack)-1]
	c.viewStack = c.viewStack[:len(c.viewStack)-1]
	return name
}

// ViewStackDepth reports how many views are behind the active one.
func (c *Context) ViewStackDepth() int { return len(c.viewStack) }

// MessageStatus returns the pending message-box answer, if any. One question
// may be outstanding per page at a time.
func (c *Context) MessageStatus() string { return c.msgStatus }

// SetMessageStatus records the user's answer ("OK", "Cancel", "Close") or
// clears the slot with "".
func (c *Context) SetMessageStatus(status string) { c.msgStatus = status }

// Registry creates page contexts lazily from the remote metadata fetch and
// caches them for the session. Contexts of a removed project are dropped so
// the next navigation rebuilds them from the server.
type Registry struct {
	mu     sync.RWMutex
	pages  map[Key]*Context
	client remote.Client
}

// NewRegistry creates a registry backed by the given remote client.
func NewRegistry(client remote.Client) *Registry {
	return &Registry{
		pages:  make(map[Key]*Context),
		client: client,
	}
}

// Get returns the page context for key, fetching and decoding its metadata
// on first use.
func (r *Registry) Get(ctx context.Context, key Key) (*Context, error) {
	r.mu.RLock()
	pc, ok := r.pages[key]
	r.mu.RUnlock()
	if ok {
		return pc, nil
	}

	meta, err := r.client.FetchPage(ctx, key.PrjID, key.FormID)
	if err != nil {
		return nil, fmt.Errorf("loading page %s: %w", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.pages[key]; ok {
		return existing, nil
	}
	pc = NewContext(key, meta)
	r.pages[key] = pc
	return pc, nil
}

// Peek returns the cached context for key without loading, or nil.
func (r *Registry) Peek(key Key) *Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pages[key]
}

// Put registers a pre-built context. Used by tests and by callers that load
// metadata out of band.
func (r *Registry) Put(pc *Context) {
	r.mu.Lock()
	r.pages[pc.Key] = pc
	r.mu.Unlock()
}

// RemoveProject drops every cached page of one project.
func (r *Registry) RemoveProject(prjID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.pages {
		if key.PrjID == prjID {
			delete(r.pages, key)
		}
	}
}
