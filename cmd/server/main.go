package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/giancarlothiella/gtsw-engine/internal/engine"
	"github.com/giancarlothiella/gtsw-engine/internal/eventbus"
	"github.com/giancarlothiella/gtsw-engine/internal/page"
	"github.com/giancarlothiella/gtsw-engine/internal/remote/sqlbackend"
	"github.com/giancarlothiella/gtsw-engine/internal/server"
	"github.com/giancarlothiella/gtsw-engine/internal/view"
	"github.com/giancarlothiella/gtsw-engine/internal/wire"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "file:pages.db?_pragma=foreign_keys(1)"
	}

	backend, err := sqlbackend.Open(dsn)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer backend.Close()

	if cfgPath := os.Getenv("BACKEND_CONFIG"); cfgPath != "" {
		if err := backend.LoadConfig(cfgPath); err != nil {
			log.Fatalf("loading backend config: %v", err)
		}
	}

	pages := server.NewPageStore()
	pagesDir := os.Getenv("PAGES_DIR")
	if pagesDir == "" {
		pagesDir = "pages"
	}
	if err := pages.LoadDir(pagesDir); err != nil {
		log.Fatalf("loading pages: %v", err)
	}

	bus := eventbus.New(256)
	bus.Start(ctx)

	client := &server.LocalClient{Pages: pages, Backend: backend}
	registry := page.NewRegistry(client)
	resolver := view.New(bus)
	eng := engine.New(registry, client, resolver, bus)

	port := 8080
	if p := os.Getenv("PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	if err := server.Run(ctx, server.Config{
		Port:     port,
		Pages:    pages,
		Backend:  backend,
		Engine:   eng,
		Registry: registry,
		Debug:    wire.NewHandler(eng, bus),
	}); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
