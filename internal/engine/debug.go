package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/giancarlothiella/gtsw-engine/internal/eventbus"
	"github.com/giancarlothiella/gtsw-engine/internal/metadata"
	"github.com/giancarlothiella/gtsw-engine/internal/page"
)

// debugSession tracks one observed action: the cursor is the index of the
// next step to execute. Steps before the cursor are Executed when the last
// gate was open, Locked otherwise; a Locked step never runs again within
// the session — a fresh Run from index 0 is required.
type debugSession struct {
	ID         string
	ActionName string
	Cursor     int
}

// SessionInfo is a read-only snapshot for debugger UIs.
type SessionInfo struct {
	ID         string
	ActionName string
	Cursor     int
}

// SetDebugMode toggles observed mode for the whole engine. Turning it off
// discards any waiting sessions.
func (e *Engine) SetDebugMode(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.debugMode = on
	if !on {
		e.sessions = make(map[page.Key]*debugSession)
	}
}

// DebugMode reports whether actions run observed.
func (e *Engine) DebugMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.debugMode
}

// interceptForDebug captures a level-0 invocation when debug mode is on:
// instead of running, a session is opened (or an existing one keeps
// waiting) and a DebugStarted event announces the action, the live rule
// values, and cursor 0. Returns true when the invocation was intercepted.
func (e *Engine) interceptForDebug(ctx context.Context, key page.Key, pc *page.Context, action *metadata.Action) bool {
	e.mu.Lock()
	if !e.debugMode {
		e.mu.Unlock()
		return false
	}
	if _, ok := e.sessions[key]; ok {
		// Already waiting for a debugger command; nothing runs until
		// StepOne or RunAll re-enters.
		e.mu.Unlock()
		return true
	}
	sess := &debugSession{
		ID:         uuid.New().String(),
		ActionName: action.ObjectName,
	}
	e.sessions[key] = sess
	e.mu.Unlock()

	e.bus.Publish(ctx, eventbus.Event{
		Kind:   eventbus.KindDebugStarted,
		PrjID:  key.PrjID,
		FormID: key.FormID,
		Payload: eventbus.DebugStarted{
			SessionID:  sess.ID,
			ActionName: sess.ActionName,
			Steps:      action.Steps,
			RuleValues: pc.Rules.Snapshot(),
			Cursor:     0,
		},
	})
	return true
}

// StepOne executes exactly one step of the waiting session.
func (e *Engine) StepOne(ctx context.Context, key page.Key) (Outcome, error) {
	sess, ok := e.Session(key)
	if !ok {
		return Outcome{}, fmt.Errorf("engine: no debug session for %s", key)
	}
	return e.Run(ctx, key, sess.ActionName, sess.Cursor, LevelStep)
}

// RunAll executes the remaining steps of the waiting session uninterrupted.
func (e *Engine) RunAll(ctx context.Context, key page.Key) (Outcome, error) {
	sess, ok := e.Session(key)
	if !ok {
		return Outcome{}, fmt.Errorf("engine: no debug session for %s", key)
	}
	return e.Run(ctx, key, sess.ActionName, sess.Cursor, LevelAll)
}

// Session snapshots the waiting session for a page, if any.
func (e *Engine) Session(key page.Key) (SessionInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[key]
	if !ok {
		return SessionInfo{}, false
	}
	return SessionInfo{ID: sess.ID, ActionName: sess.ActionName, Cursor: sess.Cursor}, true
}

// reportDebug publishes a progress event for a visited step and advances
// the cursor. The session ends when the gate closes or the last step
// completes, reverting subsequent invocations to level 0.
func (e *Engine) reportDebug(ctx context.Context, key page.Key, pc *page.Context, step metadata.Step, canRun, active bool, index int, isLast bool) {
	e.mu.Lock()
	sess, ok := e.sessions[key]
	if !ok {
		e.mu.Unlock()
		return
	}
	sess.Cursor = index + 1
	sessID := sess.ID
	actionName := sess.ActionName
	if !canRun || isLast {
		delete(e.sessions, key)
	}
	e.mu.Unlock()

	e.bus.Publish(ctx, eventbus.Event{
		Kind:   eventbus.KindDebugProgress,
		PrjID:  key.PrjID,
		FormID: key.FormID,
		Payload: eventbus.DebugProgress{
			SessionID:     sessID,
			ActionName:    actionName,
			Step:          step,
			RuleValues:    pc.Rules.Snapshot(),
			CanRun:        canRun,
			WasStepActive: active,
			CursorIndex:   index,
			IsLastStep:    isLast,
		},
	})
}

// endSession discards a session after a propagated fault.
func (e *Engine) endSession(key page.Key) {
	e.mu.Lock()
	delete(e.sessions, key)
	e.mu.Unlock()
}
