package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"manuscript/internal/service"
	"manuscript/internal/storage"
)

// pollInterval is how often every project is re-checked even without a kick.
const pollInterval = 2 * time.Second

// outlineWatcher polls the store and emits outline:changed when a project's
// outline differs from the last one seen. Writes that leave the outline
// identical (a renumber that keeps order, an edit that keeps the word count)
// are absorbed here so subscribers never rebuild for nothing.
type outlineWatcher struct {
	db       *storage.DB
	outline  *service.OutlineService
	projects *storage.ProjectStore
	emitter  service.EventEmitter

	kick   chan string
	cancel context.CancelFunc

	mu       sync.Mutex
	rows     map[string]string // projectID -> cheap row fingerprint
	outlines map[string]string // projectID -> serialized outline
}

func newOutlineWatcher(db *storage.DB, outline *service.OutlineService, projects *storage.ProjectStore, emitter service.EventEmitter) *outlineWatcher {
	return &outlineWatcher{
		db:       db,
		outline:  outline,
		projects: projects,
		emitter:  emitter,
		kick:     make(chan string, 16),
		rows:     make(map[string]string),
		outlines: make(map[string]string),
	}
}

// Start begins polling. The first pass primes fingerprints silently so a
// restart does not replay outline:changed for every project.
func (w *outlineWatcher) Start(ctx context.Context) {
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.pollLoop(watchCtx)
	log.Printf("outline watcher: polling every %s", pollInterval)
}

func (w *outlineWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

// Kick asks for an immediate re-check of one project. A dropped kick is
// fine; the next poll covers it.
func (w *outlineWatcher) Kick(projectID string) {
	select {
	case w.kick <- projectID:
	default:
	}
}

func (w *outlineWatcher) pollLoop(ctx context.Context) {
	w.sweep(ctx)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case projectID := <-w.kick:
			w.check(ctx, projectID)
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep re-checks every project and forgets state for deleted ones.
func (w *outlineWatcher) sweep(ctx context.Context) {
	projects, err := w.projects.ListProjects()
	if err != nil {
		log.Printf("outline watcher: list projects: %v", err)
		return
	}
	alive := make(map[string]bool, len(projects))
	for _, p := range projects {
		alive[p.ID] = true
		w.check(ctx, p.ID)
	}
	w.mu.Lock()
	for id := range w.rows {
		if !alive[id] {
			delete(w.rows, id)
			delete(w.outlines, id)
		}
	}
	w.mu.Unlock()
}

func (w *outlineWatcher) check(ctx context.Context, projectID string) {
	rowFP, err := w.rowFingerprint(projectID)
	if err != nil {
		log.Printf("outline watcher: fingerprint %s: %v", projectID, err)
		return
	}
	w.mu.Lock()
	prevRow, primed := w.rows[projectID]
	w.mu.Unlock()
	if primed && rowFP == prevRow {
		return
	}

	items, err := w.outline.Outline(projectID)
	if err != nil {
		log.Printf("outline watcher: outline %s: %v", projectID, err)
		return
	}
	buf, err := json.Marshal(items)
	if err != nil {
		log.Printf("outline watcher: encode outline %s: %v", projectID, err)
		return
	}

	w.mu.Lock()
	prevOutline := w.outlines[projectID]
	w.rows[projectID] = rowFP
	w.outlines[projectID] = string(buf)
	w.mu.Unlock()

	if !primed || prevOutline == string(buf) {
		return
	}
	w.emitter.Emit(ctx, "outline:changed", map[string]string{"projectId": projectID})
}

// rowFingerprint is the cheap change test; the outline itself is only
// rebuilt when this moves. MAX(updated_at) is scanned as text since an
// aggregate loses the column's declared type and the drivers disagree on
// what comes back for it.
func (w *outlineWatcher) rowFingerprint(projectID string) (string, error) {
	var count int
	var updated sql.NullString
	row := w.db.QueryRow(`SELECT COUNT(*), MAX(updated_at) FROM blocks WHERE project_id = ?`, projectID)
	if err := row.Scan(&count, &updated); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d:%s", count, updated.String), nil
}
