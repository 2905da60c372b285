// Package app wires the stores, services and background surfaces into one
// process. Nothing here owns domain logic; the app only builds the graph,
// routes events between its parts and manages their lifecycle.
package app

import (
	"context"
	"fmt"
	"sync"

	"manuscript/internal/config"
	"manuscript/internal/mirror"
	"manuscript/internal/service"
	"manuscript/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Event relay
// ─────────────────────────────────────────────────────────────

// relayEmitter fans service events out to in-process subscribers. Services
// see only the EventEmitter side; surfaces subscribe on the other.
type relayEmitter struct {
	mu   sync.RWMutex
	subs []func(ctx context.Context, event string, data any)
}

func (r *relayEmitter) Subscribe(fn func(ctx context.Context, event string, data any)) {
	r.mu.Lock()
	r.subs = append(r.subs, fn)
	r.mu.Unlock()
}

func (r *relayEmitter) Emit(ctx context.Context, event string, data any) {
	r.mu.RLock()
	subs := make([]func(context.Context, string, any), len(r.subs))
	copy(subs, r.subs)
	r.mu.RUnlock()
	for _, fn := range subs {
		fn(ctx, event, data)
	}
}

// ─────────────────────────────────────────────────────────────
// App
// ─────────────────────────────────────────────────────────────

// App owns one database handle and the service graph on top of it.
type App struct {
	cfg     config.Config
	db      *storage.DB
	guard   *service.WriteGuard
	emitter *relayEmitter

	projects *service.ProjectService
	blocks   *service.BlockService
	syncSvc  *service.SyncService
	outline  *service.OutlineService
	maint    *service.MaintenanceService

	mirror  *mirror.Mirror
	watcher *outlineWatcher
}

// New opens the store and builds the service graph. Background surfaces are
// created here but not started; Startup runs them.
func New(cfg config.Config) (*App, error) {
	db, err := storage.Open(storage.Driver(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a := &App{
		cfg:     cfg,
		db:      db,
		guard:   &service.WriteGuard{},
		emitter: &relayEmitter{},
	}

	projectStore := storage.NewProjectStore(db)
	blockStore := storage.NewBlockStore(db)
	snapshotStore := storage.NewSnapshotStore(db)

	a.projects = service.NewProjectService(projectStore, blockStore, snapshotStore, a.guard, a.emitter)
	a.blocks = service.NewBlockService(blockStore, a.emitter)
	a.syncSvc = service.NewSyncService(blockStore, snapshotStore, a.guard, a.emitter)
	a.outline = service.NewOutlineService(blockStore, a.guard, a.emitter)
	a.maint = service.NewMaintenanceService(projectStore, a.outline)

	if cfg.MirrorDir != "" {
		a.mirror = mirror.New(cfg.MirrorDir, a.syncSvc, a.projects)
	}
	if cfg.WatchOutline {
		a.watcher = newOutlineWatcher(db, a.outline, projectStore, a.emitter)
	}
	return a, nil
}

// Startup connects the event relay to the surfaces and starts them.
func (a *App) Startup(ctx context.Context) error {
	a.emitter.Subscribe(func(_ context.Context, event string, data any) {
		if event != "blocks:changed" {
			return
		}
		payload, ok := data.(map[string]string)
		if !ok {
			return
		}
		projectID := payload["projectId"]
		if projectID == "" {
			return
		}
		if a.mirror != nil {
			a.mirror.ScheduleExport(projectID)
		}
		if a.watcher != nil {
			a.watcher.Kick(projectID)
		}
	})

	if a.mirror != nil {
		if err := a.mirror.Start(ctx); err != nil {
			return fmt.Errorf("start mirror: %w", err)
		}
	}
	if a.watcher != nil {
		a.watcher.Start(ctx)
	}
	if err := a.maint.Start(ctx, a.cfg.MaintenanceSchedule); err != nil {
		return err
	}
	return nil
}

// Shutdown stops the surfaces and waits for in-flight writes to land.
func (a *App) Shutdown(ctx context.Context) {
	a.maint.Stop()
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.mirror != nil {
		a.mirror.Stop()
	}
	a.guard.WaitAll(ctx)
}

// Close releases the database handle.
func (a *App) Close() error {
	return a.db.Close()
}

// Subscribe registers a listener for service events, for surfaces built
// outside this package.
func (a *App) Subscribe(fn func(ctx context.Context, event string, data any)) {
	a.emitter.Subscribe(fn)
}

func (a *App) Projects() *service.ProjectService { return a.projects }

func (a *App) Blocks() *service.BlockService { return a.blocks }

func (a *App) Sync() *service.SyncService { return a.syncSvc }

func (a *App) Outline() *service.OutlineService { return a.outline }

func (a *App) Maintenance() *service.MaintenanceService { return a.maint }
