package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"manuscript/internal/config"
	mcpserver "manuscript/internal/mcp"
)

// shutdownGrace bounds how long Serve waits for in-flight writes on exit.
const shutdownGrace = 5 * time.Second

// Serve runs the engine headless: background surfaces plus the MCP server
// on stdio. It blocks until the client disconnects or the process receives
// SIGINT or SIGTERM.
func Serve(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Startup(ctx); err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		a.Shutdown(shutdownCtx)
	}()

	srv := mcpserver.New(mcpserver.Deps{
		Projects: a.projects,
		Blocks:   a.blocks,
		Sync:     a.syncSvc,
		Outline:  a.outline,
	})

	log.Printf("manuscript: serving MCP on stdio (driver=%s)", cfg.Driver)
	return srv.ServeStdio()
}
