// Package server assembles the reference page server: it serves page
// metadata, executes data and procedure calls against the SQLite backend,
// runs actions through the engine, and exposes the debug stepping protocol
// over a websocket.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/giancarlothiella/gtsw-engine/internal/engine"
	"github.com/giancarlothiella/gtsw-engine/internal/page"
	"github.com/giancarlothiella/gtsw-engine/internal/remote"
	"github.com/giancarlothiella/gtsw-engine/internal/remote/sqlbackend"
	"github.com/giancarlothiella/gtsw-engine/internal/wire"
)

// Config holds server configuration.
type Config struct {
	Port     int
	Pages    *PageStore
	Backend  *sqlbackend.Backend
	Engine   *engine.Engine
	Registry *page.Registry
	Debug    *wire.Handler
}

// Run starts the HTTP server with all routes registered.
func Run(ctx context.Context, cfg Config) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/v1/pages/{prjID}/{formID}", func(w http.ResponseWriter, req *http.Request) {
		raw, ok := cfg.Pages.Raw(chi.URLParam(req, "prjID"), chi.URLParam(req, "formID"))
		if !ok {
			writeError(w, http.StatusNotFound, "PAGE_NOT_FOUND", "no such page")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(raw)
	})

	r.Get("/v1/pages/{prjID}/{formID}/dblog", func(w http.ResponseWriter, req *http.Request) {
		key := page.Key{PrjID: chi.URLParam(req, "prjID"), FormID: chi.URLParam(req, "formID")}
		pc := cfg.Registry.Peek(key)
		if pc == nil {
			writeError(w, http.StatusNotFound, "PAGE_NOT_LOADED", "page not loaded")
			return
		}
		writeJSON(w, http.StatusOK, pc.DBLogSnapshot())
	})

	r.Post("/v1/data", func(w http.ResponseWriter, req *http.Request) {
		var dr remote.DataRequest
		if err := decodeJSON(req, &dr); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		res, err := cfg.Backend.GetData(req.Context(), dr)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "DATA_ERROR", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Post("/v1/proc", func(w http.ResponseWriter, req *http.Request) {
		var pr remote.ProcRequest
		if err := decodeJSON(req, &pr); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		res, err := cfg.Backend.ExecProc(req.Context(), pr)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "PROC_ERROR", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Post("/v1/actions/run", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			PrjID      string `json:"prjId"`
			FormID     string `json:"formId"`
			ActionName string `json:"actionName"`
			StartIndex int    `json:"startIndex"`
		}
		if err := decodeJSON(req, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		out, err := cfg.Engine.Run(req.Context(), page.Key{PrjID: body.PrjID, FormID: body.FormID}, body.ActionName, body.StartIndex, engine.LevelRun)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "RUN_ERROR", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Post("/v1/actions/resume", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Token  string `json:"token"`
			Answer string `json:"answer"`
		}
		if err := decodeJSON(req, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		out, err := cfg.Engine.Resume(req.Context(), body.Token, body.Answer)
		if err != nil {
			writeError(w, http.StatusBadRequest, "RESUME_ERROR", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	if cfg.Debug != nil {
		r.Get("/v1/debug", cfg.Debug.ServeHTTP)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("starting page server on %s", addr)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	return srv.ListenAndServe()
}
