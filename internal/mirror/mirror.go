// Package mirror keeps a directory of markdown files in step with the
// store: one <projectID>.md per project. Files are rewritten when the
// document changes and imported back, debounced, when something else
// edits them on disk.
package mirror

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"manuscript/internal/service"
)

// debounceDelay batches editor save bursts into one import.
const debounceDelay = 500 * time.Millisecond

// selfWriteWindow is how long an exported file's events stay suppressed.
const selfWriteWindow = 2 * time.Second

// Mirror is the two-way bridge between the block store and a directory of
// plain markdown files.
type Mirror struct {
	dir      string
	sync     *service.SyncService
	projects *service.ProjectService

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc

	mu           sync.Mutex
	selfWrite    map[string]time.Time
	timers       map[string]*time.Timer
	exportTimers map[string]*time.Timer
}

func New(dir string, syncSvc *service.SyncService, projects *service.ProjectService) *Mirror {
	return &Mirror{
		dir:          dir,
		sync:         syncSvc,
		projects:     projects,
		selfWrite:    make(map[string]time.Time),
		timers:       make(map[string]*time.Timer),
		exportTimers: make(map[string]*time.Timer),
	}
}

// Start exports every project once, then watches the directory for edits.
func (m *Mirror) Start(ctx context.Context) error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}
	if err := m.ExportAll(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(m.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch mirror dir: %w", err)
	}
	m.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.watchLoop(watchCtx)

	log.Printf("mirror: watching %s", m.dir)
	return nil
}

// Stop tears the watcher down and drops pending imports.
func (m *Mirror) Stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.watcher != nil {
		m.watcher.Close()
		m.watcher = nil
	}
	m.mu.Lock()
	for _, t := range m.timers {
		t.Stop()
	}
	for _, t := range m.exportTimers {
		t.Stop()
	}
	m.timers = make(map[string]*time.Timer)
	m.exportTimers = make(map[string]*time.Timer)
	m.mu.Unlock()
}

// ExportAll writes a fresh mirror file for every project.
func (m *Mirror) ExportAll() error {
	projects, err := m.projects.ListProjects()
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	for _, p := range projects {
		if err := m.ExportProject(p.ID); err != nil {
			log.Printf("mirror: export %s failed: %v", p.ID, err)
		}
	}
	return nil
}

// ExportProject serializes one project into its mirror file. The write is
// marked so the watcher does not import it right back.
func (m *Mirror) ExportProject(projectID string) error {
	doc, err := m.sync.ExportDocument(projectID, false)
	if err != nil {
		return err
	}
	path := m.pathFor(projectID)
	m.markSelfWrite(path)
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		return fmt.Errorf("write mirror file: %w", err)
	}
	return nil
}

// ScheduleExport rewrites the project's mirror file after a short delay,
// collapsing a burst of changes into one write.
func (m *Mirror) ScheduleExport(projectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, exists := m.exportTimers[projectID]; exists {
		t.Stop()
	}
	m.exportTimers[projectID] = time.AfterFunc(debounceDelay, func() {
		if err := m.ExportProject(projectID); err != nil {
			log.Printf("mirror: export %s failed: %v", projectID, err)
		}
	})
}

func (m *Mirror) pathFor(projectID string) string {
	return filepath.Join(m.dir, projectID+".md")
}

// markSelfWrite records the path in the same absolute form the watcher
// resolves event names to.
func (m *Mirror) markSelfWrite(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	m.mu.Lock()
	m.selfWrite[path] = time.Now()
	m.mu.Unlock()
}

func (m *Mirror) isSelfWrite(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.selfWrite[path]
	if !ok {
		return false
	}
	if time.Since(at) > selfWriteWindow {
		delete(m.selfWrite, path)
		return false
	}
	return true
}

func (m *Mirror) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Ext(event.Name) != ".md" {
				continue
			}
			absPath, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if m.isSelfWrite(absPath) {
				continue
			}
			m.scheduleImport(ctx, absPath)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("mirror: watcher error: %v", err)
		}
	}
}

// scheduleImport resets the per-file debounce timer.
func (m *Mirror) scheduleImport(ctx context.Context, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, exists := m.timers[path]; exists {
		t.Stop()
	}
	m.timers[path] = time.AfterFunc(debounceDelay, func() {
		m.importFile(ctx, path)
	})
}

// importFile replaces the project's document with the file's content, then
// writes the canonical serialization back out.
func (m *Mirror) importFile(ctx context.Context, path string) {
	projectID := strings.TrimSuffix(filepath.Base(path), ".md")
	if _, err := m.projects.GetProject(projectID); err != nil {
		log.Printf("mirror: ignoring %s, no such project: %v", filepath.Base(path), err)
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		log.Printf("mirror: read %s failed: %v", path, err)
		return
	}

	log.Printf("mirror: importing %s", filepath.Base(path))
	if err := m.sync.ReplaceDocument(ctx, projectID, string(content)); err != nil {
		log.Printf("mirror: import %s failed: %v", filepath.Base(path), err)
		return
	}

	if err := m.ExportProject(projectID); err != nil {
		log.Printf("mirror: re-export %s failed: %v", projectID, err)
	}
}
