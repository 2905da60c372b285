package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"manuscript/internal/domain"
	"manuscript/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Project Service
// ─────────────────────────────────────────────────────────────

// ProjectService manages projects and their snapshot history.
type ProjectService struct {
	projects  *storage.ProjectStore
	blocks    *storage.BlockStore
	snapshots *storage.SnapshotStore
	guard     *WriteGuard
	emitter   EventEmitter
}

func NewProjectService(projects *storage.ProjectStore, blocks *storage.BlockStore, snapshots *storage.SnapshotStore, guard *WriteGuard, emitter EventEmitter) *ProjectService {
	return &ProjectService{projects: projects, blocks: blocks, snapshots: snapshots, guard: guard, emitter: emitter}
}

// CreateProject creates an empty project.
func (s *ProjectService) CreateProject(ctx context.Context, title string) (*domain.Project, error) {
	if title == "" {
		title = "Untitled"
	}
	p := &domain.Project{
		ID:    uuid.New().String(),
		Title: title,
	}
	if err := s.projects.CreateProject(p); err != nil {
		return nil, err
	}
	if s.emitter != nil {
		s.emitter.Emit(ctx, "project:created", map[string]string{"projectId": p.ID})
	}
	return p, nil
}

// GetProject returns a project by ID.
func (s *ProjectService) GetProject(id string) (*domain.Project, error) {
	return s.projects.GetProject(id)
}

// ListProjects returns all projects, oldest first.
func (s *ProjectService) ListProjects() ([]domain.Project, error) {
	return s.projects.ListProjects()
}

// RenameProject changes a project's title.
func (s *ProjectService) RenameProject(ctx context.Context, id, title string) error {
	p, err := s.projects.GetProject(id)
	if err != nil {
		return err
	}
	p.Title = title
	if err := s.projects.UpdateProject(p); err != nil {
		return fmt.Errorf("rename project: %w", err)
	}
	if s.emitter != nil {
		s.emitter.Emit(ctx, "project:renamed", map[string]string{"projectId": id})
	}
	return nil
}

// DeleteProject removes a project with its blocks and snapshot history.
func (s *ProjectService) DeleteProject(ctx context.Context, id string) error {
	s.guard.Lock(id)
	defer s.guard.Unlock(id)

	if err := s.projects.DeleteProject(id); err != nil {
		return err
	}
	if s.emitter != nil {
		s.emitter.Emit(ctx, "project:deleted", map[string]string{"projectId": id})
	}
	return nil
}

// Snapshot saves the project's current blocks under the given label.
func (s *ProjectService) Snapshot(ctx context.Context, projectID, label string) (*storage.Snapshot, error) {
	if label == "" {
		label = "manual"
	}
	blocks, err := s.blocks.ListBlocks(projectID)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	snap, err := s.snapshots.Push(projectID, label, blocks)
	if err != nil {
		return nil, err
	}
	if s.emitter != nil {
		s.emitter.Emit(ctx, "snapshot:created", map[string]string{
			"projectId":  projectID,
			"snapshotId": snap.ID,
		})
	}
	return snap, nil
}

// ListSnapshots returns the project's snapshot history, newest first.
func (s *ProjectService) ListSnapshots(projectID string) ([]storage.Snapshot, error) {
	return s.snapshots.List(projectID)
}

// RestoreSnapshot swaps the project's content back to a saved state. The
// state being replaced is snapshotted first, so a restore is undoable.
func (s *ProjectService) RestoreSnapshot(ctx context.Context, snapshotID string) error {
	snap, blocks, err := s.snapshots.Get(snapshotID)
	if err != nil {
		return err
	}

	s.guard.Lock(snap.ProjectID)
	defer s.guard.Unlock(snap.ProjectID)

	current, err := s.blocks.ListBlocks(snap.ProjectID)
	if err != nil {
		return fmt.Errorf("load blocks: %w", err)
	}
	if len(current) > 0 {
		if _, err := s.snapshots.Push(snap.ProjectID, "before restore", current); err != nil {
			return fmt.Errorf("snapshot before restore: %w", err)
		}
	}

	if err := s.blocks.ReplaceProjectBlocks(snap.ProjectID, blocks); err != nil {
		return err
	}
	emitBlocksChanged(ctx, s.emitter, snap.ProjectID)
	return nil
}

// DeleteSnapshot removes one snapshot from the history.
func (s *ProjectService) DeleteSnapshot(id string) error {
	return s.snapshots.Delete(id)
}
