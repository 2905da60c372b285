package service

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"manuscript/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Maintenance Service
// ─────────────────────────────────────────────────────────────

// MaintenanceService periodically renumbers every project's sort keys so
// midpoint insertion never runs out of float64 headroom between busy
// neighbors. Sweeps skip projects that are mid-write.
type MaintenanceService struct {
	projects *storage.ProjectStore
	outline  *OutlineService
	sched    *cron.Cron
}

func NewMaintenanceService(projects *storage.ProjectStore, outline *OutlineService) *MaintenanceService {
	return &MaintenanceService{projects: projects, outline: outline}
}

// Start schedules the sweep with a standard cron expression. An empty
// expression leaves maintenance disabled.
func (s *MaintenanceService) Start(ctx context.Context, expr string) error {
	if expr == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(expr, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", expr, err)
	}
	c.Start()
	s.sched = c
	log.Printf("maintenance: normalization scheduled (%s)", expr)
	return nil
}

// RunOnce sweeps every project once. Projects held by a writer are skipped
// rather than queued behind it; the next sweep picks them up.
func (s *MaintenanceService) RunOnce(ctx context.Context) {
	projects, err := s.projects.ListProjects()
	if err != nil {
		log.Printf("maintenance: list projects failed: %v", err)
		return
	}
	for _, p := range projects {
		n, ok, err := s.outline.TryNormalizeSortOrders(ctx, p.ID)
		switch {
		case err != nil:
			log.Printf("maintenance: normalize %s failed: %v", p.ID, err)
		case !ok:
			log.Printf("maintenance: project %s busy, skipped", p.ID)
		case n > 0:
			log.Printf("maintenance: project %s renumbered %d block(s)", p.ID, n)
		}
	}
}

// Stop halts the schedule. Safe to call when never started.
func (s *MaintenanceService) Stop() {
	if s.sched != nil {
		s.sched.Stop()
		s.sched = nil
	}
}
