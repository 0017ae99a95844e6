package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/giancarlothiella/gtsw-engine/internal/engine"
	"github.com/giancarlothiella/gtsw-engine/internal/eventbus"
	"github.com/giancarlothiella/gtsw-engine/internal/page"
)

// Handler manages websocket connections for the debug stepping protocol.
type Handler struct {
	engine *engine.Engine
	bus    *eventbus.Bus
}

// NewHandler creates a websocket handler over the engine and bus.
func NewHandler(eng *engine.Engine, bus *eventbus.Bus) *Handler {
	return &Handler{engine: eng, bus: bus}
}

// conn wraps a websocket connection with a write lock: events arrive from
// the bus consumer goroutine while replies come from the message loop.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) send(ctx context.Context, msg ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := wsjson.Write(ctx, c.ws, msg); err != nil {
		log.Printf("wire: write error: %v", err)
	}
}

// ServeHTTP upgrades to websocket and runs the message loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("wire: websocket accept: %v", err)
		return
	}
	defer ws.CloseNow()

	ctx := r.Context()
	c := &conn{ws: ws}
	connID := uuid.New().String()

	c.send(ctx, ServerMessage{
		Type: "session",
		Data: map[string]string{"connectionId": connID},
	})

	// Attached page; zero value matches nothing until an attach arrives.
	var (
		attachMu sync.Mutex
		attached page.Key
	)
	subName := "wire-" + connID
	h.bus.Subscribe(subName, eventbus.HandlerFunc(func(ctx context.Context, evt eventbus.Event) error {
		attachMu.Lock()
		key := attached
		attachMu.Unlock()
		if evt.PrjID != key.PrjID || evt.FormID != key.FormID {
			return nil
		}
		switch evt.Kind {
		case eventbus.KindDebugStarted:
			c.send(ctx, ServerMessage{Type: "started", Data: evt.Payload})
		case eventbus.KindDebugProgress:
			c.send(ctx, ServerMessage{Type: "progress", Data: evt.Payload})
		case eventbus.KindMessageRequest:
			c.send(ctx, ServerMessage{Type: "message", Data: evt.Payload})
		}
		return nil
	}))
	defer h.bus.Unsubscribe(subName)

	for {
		var msg ClientMessage
		err := wsjson.Read(ctx, ws, &msg)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("wire: connection closed: %v", websocket.CloseStatus(err))
			}
			return
		}

		switch msg.Type {
		case "attach":
			var data AttachData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				h.sendError(ctx, c, msg.ID, "invalid_data", "invalid attach data")
				continue
			}
			attachMu.Lock()
			attached = page.Key{PrjID: data.PrjID, FormID: data.FormID}
			attachMu.Unlock()
			c.send(ctx, ServerMessage{Type: "attached", RequestID: msg.ID})

		case "debugMode":
			var data DebugModeData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				h.sendError(ctx, c, msg.ID, "invalid_data", "invalid debugMode data")
				continue
			}
			h.engine.SetDebugMode(data.On)
			c.send(ctx, ServerMessage{Type: "debugMode", RequestID: msg.ID, Data: DebugModeData{On: data.On}})

		case "run":
			var data RunData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				h.sendError(ctx, c, msg.ID, "invalid_data", "invalid run data")
				continue
			}
			key := page.Key{PrjID: data.PrjID, FormID: data.FormID}
			out, err := h.engine.Run(ctx, key, data.ActionName, 0, engine.LevelRun)
			if err != nil {
				h.sendError(ctx, c, msg.ID, "run_error", err.Error())
				continue
			}
			c.send(ctx, ServerMessage{Type: "done", RequestID: msg.ID, Data: out})

		case "stepOne", "runAll":
			var data StepData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				h.sendError(ctx, c, msg.ID, "invalid_data", "invalid step data")
				continue
			}
			key := page.Key{PrjID: data.PrjID, FormID: data.FormID}
			var out engine.Outcome
			if msg.Type == "stepOne" {
				out, err = h.engine.StepOne(ctx, key)
			} else {
				out, err = h.engine.RunAll(ctx, key)
			}
			if err != nil {
				h.sendError(ctx, c, msg.ID, "step_error", err.Error())
				continue
			}
			c.send(ctx, ServerMessage{Type: "done", RequestID: msg.ID, Data: out})

		case "answer":
			var data AnswerData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				h.sendError(ctx, c, msg.ID, "invalid_data", "invalid answer data")
				continue
			}
			out, err := h.engine.Resume(ctx, data.Token, data.Answer)
			if err != nil {
				h.sendError(ctx, c, msg.ID, "resume_error", err.Error())
				continue
			}
			c.send(ctx, ServerMessage{Type: "done", RequestID: msg.ID, Data: out})

		case "ping":
			c.send(ctx, ServerMessage{Type: "pong", RequestID: msg.ID})

		default:
			h.sendError(ctx, c, msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

func (h *Handler) sendError(ctx context.Context, c *conn, requestID, code, message string) {
	c.send(ctx, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data: ErrorData{
			Code:    code,
			Message: message,
		},
	})
}
