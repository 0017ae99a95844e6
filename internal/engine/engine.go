// Package engine interprets a named action's step list against the page
// data model and rule store. The loop is a resumable, abortable, steppable
// state machine: each step yields a canRun gate that aborts the remainder
// when false, message steps suspend the loop behind a resume token, and the
// optional debug protocol pauses the interpreter between steps.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/giancarlothiella/gtsw-engine/internal/eventbus"
	"github.com/giancarlothiella/gtsw-engine/internal/metadata"
	"github.com/giancarlothiella/gtsw-engine/internal/page"
	"github.com/giancarlothiella/gtsw-engine/internal/remote"
	"github.com/giancarlothiella/gtsw-engine/internal/view"
)

// DebugLevel selects how an invocation interacts with the stepping protocol.
type DebugLevel int

const (
	// LevelRun is a normal invocation; intercepted when debug mode is on.
	LevelRun DebugLevel = 0
	// LevelStep executes exactly one step.
	LevelStep DebugLevel = 1
	// LevelAll executes the remaining steps uninterrupted.
	LevelAll DebugLevel = 2
	// levelWait marks a session waiting for a debugger command.
	levelWait DebugLevel = 3
)

// Outcome reports how a run ended. Suspended means a message step published
// a question; the caller continues via Resume with the token.
type Outcome struct {
	Ran         bool
	CanRun      bool
	Suspended   bool
	ResumeToken string
	LastIndex   int
}

type pendingResume struct {
	key        page.Key
	actionName string
	index      int
	level      DebugLevel
}

// Engine executes actions against page contexts.
type Engine struct {
	registry *page.Registry
	client   remote.Client
	resolver *view.Resolver
	bus      eventbus.Publisher

	mu        sync.Mutex
	debugMode bool
	sessions  map[page.Key]*debugSession
	pending   map[string]pendingResume
}

// New creates an engine over the given registry, remote client, view
// resolver, and event bus.
func New(registry *page.Registry, client remote.Client, resolver *view.Resolver, bus eventbus.Publisher) *Engine {
	return &Engine{
		registry: registry,
		client:   client,
		resolver: resolver,
		bus:      bus,
		sessions: make(map[page.Key]*debugSession),
		pending:  make(map[string]pendingResume),
	}
}

// Run executes the named action from startIndex. A missing action is a
// no-op that signals completion. Steps whose execCond fails are skipped but
// still visited for debug bookkeeping. The first step yielding canRun=false
// aborts the remainder of this invocation; nothing already executed rolls
// back.
func (e *Engine) Run(ctx context.Context, key page.Key, actionName string, startIndex int, debugLevel DebugLevel) (Outcome, error) {
	pc, err := e.registry.Get(ctx, key)
	if err != nil {
		return Outcome{}, err
	}

	action := pc.Meta.Action(actionName)
	if action == nil {
		log.Printf("engine: action %q not declared on %s, nothing to do", actionName, key)
		return Outcome{CanRun: true}, nil
	}

	if debugLevel == LevelRun && e.interceptForDebug(ctx, key, pc, action) {
		return Outcome{}, nil
	}

	pc.Lock()
	defer pc.Unlock()

	steps := action.Steps
	if startIndex < 0 || startIndex >= len(steps) {
		return Outcome{CanRun: true}, nil
	}
	end := len(steps)
	if debugLevel == LevelStep {
		end = startIndex + 1
	}

	e.publishLoader(ctx, key, true)

	out := Outcome{Ran: true, CanRun: true}
	var lastKind metadata.StepKind
	for i := startIndex; i < end; i++ {
		step := steps[i]
		active := pc.Rules.Satisfied(step.ExecCond)
		canRun := true
		var token string
		if active {
			canRun, token, err = e.dispatch(ctx, pc, actionName, i, debugLevel, step)
			if err != nil {
				e.publishLoader(ctx, key, false)
				e.endSession(key)
				return Outcome{}, err
			}
			lastKind = step.ActionType
		}

		out.CanRun = canRun
		out.LastIndex = i
		e.reportDebug(ctx, key, pc, step, canRun, active, i, i == len(steps)-1)

		if !canRun {
			if token != "" {
				out.Suspended = true
				out.ResumeToken = token
			}
			break
		}
	}

	// The custom-code collaborator owns the loader after an execCustom
	// hand-off; the engine does not know when it finishes.
	if lastKind != metadata.StepExecCustom {
		e.publishLoader(ctx, key, false)
	}
	return out, nil
}

// Resume continues a suspended run with the user's answer ("OK", "Cancel",
// "Close"). The answer becomes the canRun result of the message step that
// asked the question.
func (e *Engine) Resume(ctx context.Context, token, answer string) (Outcome, error) {
	e.mu.Lock()
	pr, ok := e.pending[token]
	if ok {
		delete(e.pending, token)
	}
	e.mu.Unlock()
	if !ok {
		return Outcome{}, fmt.Errorf("engine: unknown resume token %q", token)
	}

	pc := e.registry.Peek(pr.key)
	if pc == nil {
		return Outcome{}, fmt.Errorf("engine: page %s gone while suspended", pr.key)
	}
	pc.Lock()
	pc.SetMessageStatus(answer)
	pc.Unlock()

	return e.Run(ctx, pr.key, pr.actionName, pr.index, pr.level)
}

// pendingTokenFor returns the outstanding resume token for a page, if any.
func (e *Engine) pendingTokenFor(key page.Key) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	for token, pr := range e.pending {
		if pr.key == key {
			return token
		}
	}
	return ""
}

func (e *Engine) publishLoader(ctx context.Context, key page.Key, visible bool) {
	e.bus.Publish(ctx, eventbus.Event{
		Kind:    eventbus.KindLoader,
		PrjID:   key.PrjID,
		FormID:  key.FormID,
		Payload: eventbus.Loader{Visible: visible},
	})
}
