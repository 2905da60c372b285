package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// WriteGuard
// ─────────────────────────────────────────────────────────────

// WriteGuard keeps the engine's one-writer-per-project discipline when
// several surfaces (MCP host, mirror import, maintenance) share a store.
// Lock blocks until the project is free; TryLock lets periodic jobs skip
// a project that is mid-write instead of queueing behind it.
//
// The zero value is ready to use.
type WriteGuard struct {
	mu      sync.Mutex
	cond    *sync.Cond
	running map[string]struct{}
	wg      sync.WaitGroup
}

// Lock waits until projectID is free, then marks it busy.
func (g *WriteGuard) Lock(projectID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	for {
		if _, busy := g.running[projectID]; !busy {
			break
		}
		g.cond.Wait()
	}
	g.running[projectID] = struct{}{}
	g.wg.Add(1)
}

// TryLock attempts to mark projectID as busy. Returns false if a writer
// already holds it.
func (g *WriteGuard) TryLock(projectID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	if _, busy := g.running[projectID]; busy {
		return false
	}
	g.running[projectID] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock releases the project. Must be called after Lock, or after TryLock
// returns true.
func (g *WriteGuard) Unlock(projectID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, projectID)
	g.cond.Broadcast()
	g.wg.Done()
}

// WaitAll blocks until all in-flight writes complete or ctx is cancelled.
func (g *WriteGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// init must run with mu held.
func (g *WriteGuard) init() {
	if g.running == nil {
		g.running = make(map[string]struct{})
		g.cond = sync.NewCond(&g.mu)
	}
}
