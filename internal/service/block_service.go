package service

import (
	"context"
	"fmt"

	"manuscript/internal/domain"
	"manuscript/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Block Service
// ─────────────────────────────────────────────────────────────

// BlockService manages per-block metadata: section status, tags, writing
// goals, list nesting, and image attributes. Content changes go through
// SyncService; this service never touches markdown or text.
type BlockService struct {
	store   *storage.BlockStore
	emitter EventEmitter
}

func NewBlockService(store *storage.BlockStore, emitter EventEmitter) *BlockService {
	return &BlockService{store: store, emitter: emitter}
}

// GetBlock returns a block by ID.
func (s *BlockService) GetBlock(id string) (*domain.Block, error) {
	return s.store.GetBlock(id)
}

// ListBlocks returns all blocks of a project in document order.
func (s *BlockService) ListBlocks(projectID string) ([]domain.Block, error) {
	return s.store.ListBlocks(projectID)
}

// SetSectionStatus sets the writing status of a block. An empty status
// clears it.
func (s *BlockService) SetSectionStatus(ctx context.Context, id string, status domain.SectionStatus) error {
	if !validStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}
	b, err := s.store.GetBlock(id)
	if err != nil {
		return err
	}
	patch := &domain.BlockPatch{ID: id, Status: domain.Some(status)}
	if err := s.store.PatchBlock(patch); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	s.notifyChanged(ctx, b.ProjectID)
	return nil
}

// CycleSectionStatus advances the block's status one step through the
// writing cycle and returns the new value.
func (s *BlockService) CycleSectionStatus(ctx context.Context, id string) (domain.SectionStatus, error) {
	b, err := s.store.GetBlock(id)
	if err != nil {
		return "", err
	}
	next := b.Status.Cycle()
	patch := &domain.BlockPatch{ID: id, Status: domain.Some(next)}
	if err := s.store.PatchBlock(patch); err != nil {
		return "", fmt.Errorf("cycle status: %w", err)
	}
	s.notifyChanged(ctx, b.ProjectID)
	return next, nil
}

// SetSectionTags replaces the block's tag list.
func (s *BlockService) SetSectionTags(ctx context.Context, id string, tags []string) error {
	b, err := s.store.GetBlock(id)
	if err != nil {
		return err
	}
	patch := &domain.BlockPatch{ID: id, Tags: domain.Some(tags)}
	if err := s.store.PatchBlock(patch); err != nil {
		return fmt.Errorf("set tags: %w", err)
	}
	s.notifyChanged(ctx, b.ProjectID)
	return nil
}

// SetWordGoal sets the section's own goal. A goal of zero or less clears
// goal and unit together.
func (s *BlockService) SetWordGoal(ctx context.Context, id string, goal int, goalType domain.GoalType) error {
	b, err := s.store.GetBlock(id)
	if err != nil {
		return err
	}
	patch := &domain.BlockPatch{ID: id}
	if goal <= 0 {
		patch.WordGoal = domain.Null[int]()
		patch.GoalType = domain.Null[domain.GoalType]()
	} else {
		gt, err := normalizeGoalType(goalType)
		if err != nil {
			return err
		}
		patch.WordGoal = domain.Some(goal)
		patch.GoalType = domain.Some(gt)
	}
	if err := s.store.PatchBlock(patch); err != nil {
		return fmt.Errorf("set word goal: %w", err)
	}
	s.notifyChanged(ctx, b.ProjectID)
	return nil
}

// SetAggregateGoal sets the goal covering the section plus everything it
// outranks. A goal of zero or less clears it.
func (s *BlockService) SetAggregateGoal(ctx context.Context, id string, goal int, goalType domain.GoalType) error {
	b, err := s.store.GetBlock(id)
	if err != nil {
		return err
	}
	patch := &domain.BlockPatch{ID: id}
	if goal <= 0 {
		patch.AggregateGoal = domain.Null[int]()
		patch.AggregateGoalType = domain.Null[domain.GoalType]()
	} else {
		gt, err := normalizeGoalType(goalType)
		if err != nil {
			return err
		}
		patch.AggregateGoal = domain.Some(goal)
		patch.AggregateGoalType = domain.Some(gt)
	}
	if err := s.store.PatchBlock(patch); err != nil {
		return fmt.Errorf("set aggregate goal: %w", err)
	}
	s.notifyChanged(ctx, b.ProjectID)
	return nil
}

// SetParent nests a list item under a list block, or clears the nesting
// when parentID is empty.
func (s *BlockService) SetParent(ctx context.Context, id, parentID string) error {
	b, err := s.store.GetBlock(id)
	if err != nil {
		return err
	}
	if parentID == "" {
		patch := &domain.BlockPatch{ID: id, ParentID: domain.Null[string]()}
		if err := s.store.PatchBlock(patch); err != nil {
			return fmt.Errorf("clear parent: %w", err)
		}
		s.notifyChanged(ctx, b.ProjectID)
		return nil
	}
	if parentID == id {
		return fmt.Errorf("block %s cannot be its own parent", id)
	}
	parent, err := s.store.GetBlock(parentID)
	if err != nil {
		return fmt.Errorf("resolve parent: %w", err)
	}
	if parent.ProjectID != b.ProjectID {
		return fmt.Errorf("parent %s belongs to a different project", parentID)
	}
	if parent.Type != domain.BlockTypeBulletList && parent.Type != domain.BlockTypeOrderedList {
		return fmt.Errorf("parent %s is not a list block", parentID)
	}
	patch := &domain.BlockPatch{ID: id, ParentID: domain.Some(parentID)}
	if err := s.store.PatchBlock(patch); err != nil {
		return fmt.Errorf("set parent: %w", err)
	}
	s.notifyChanged(ctx, b.ProjectID)
	return nil
}

// SetImageMeta updates an image block's display attributes.
func (s *BlockService) SetImageMeta(ctx context.Context, id, src, alt, caption string, width int) error {
	b, err := s.store.GetBlock(id)
	if err != nil {
		return err
	}
	if b.Type != domain.BlockTypeImage {
		return fmt.Errorf("block %s is not an image", id)
	}
	patch := &domain.BlockPatch{
		ID:           id,
		ImageSrc:     domain.Some(src),
		ImageAlt:     domain.Some(alt),
		ImageCaption: domain.Some(caption),
		ImageWidth:   domain.Some(width),
	}
	if err := s.store.PatchBlock(patch); err != nil {
		return fmt.Errorf("set image meta: %w", err)
	}
	s.notifyChanged(ctx, b.ProjectID)
	return nil
}

// SetNotesFlag marks or unmarks a section as notes, excluding it from
// compiled output.
func (s *BlockService) SetNotesFlag(ctx context.Context, id string, isNotes bool) error {
	b, err := s.store.GetBlock(id)
	if err != nil {
		return err
	}
	patch := &domain.BlockPatch{ID: id, IsNotes: domain.Some(isNotes)}
	if err := s.store.PatchBlock(patch); err != nil {
		return fmt.Errorf("set notes flag: %w", err)
	}
	s.notifyChanged(ctx, b.ProjectID)
	return nil
}

func (s *BlockService) notifyChanged(ctx context.Context, projectID string) {
	emitBlocksChanged(ctx, s.emitter, projectID)
}

func validStatus(st domain.SectionStatus) bool {
	switch st {
	case domain.StatusNone, domain.StatusNext, domain.StatusWriting,
		domain.StatusWaiting, domain.StatusReview, domain.StatusFinal:
		return true
	}
	return false
}

func normalizeGoalType(gt domain.GoalType) (domain.GoalType, error) {
	switch gt {
	case "":
		return domain.GoalWords, nil
	case domain.GoalWords, domain.GoalChars:
		return gt, nil
	}
	return "", fmt.Errorf("invalid goal type %q", gt)
}
