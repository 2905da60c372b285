package service

import (
	"context"
	"fmt"
	"log"
	"sort"

	"manuscript/internal/domain"
	"manuscript/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Outline Service
// ─────────────────────────────────────────────────────────────

// OutlineService derives the section hierarchy from the flat block table
// and owns the operations that rewrite sort keys: section reordering and
// normalization. Hierarchy is never stored; it is grouped on every read.
type OutlineService struct {
	blocks  *storage.BlockStore
	guard   *WriteGuard
	emitter EventEmitter
}

func NewOutlineService(blocks *storage.BlockStore, guard *WriteGuard, emitter EventEmitter) *OutlineService {
	return &OutlineService{blocks: blocks, guard: guard, emitter: emitter}
}

// GroupBlocks splits an ordered block list into sections: anything before
// the first leader is the preamble (nil Leader), every other block belongs
// to the nearest preceding leader.
func GroupBlocks(blocks []domain.Block) []domain.Section {
	var sections []domain.Section
	cur := domain.Section{}
	flush := func() {
		if cur.Leader != nil || len(cur.Body) > 0 {
			sections = append(sections, cur)
		}
	}
	for i := range blocks {
		if blocks[i].IsLeader() {
			flush()
			cur = domain.Section{Leader: &blocks[i]}
			continue
		}
		cur.Body = append(cur.Body, blocks[i])
	}
	flush()
	return sections
}

// Sections returns the project's derived hierarchy in document order.
func (s *OutlineService) Sections(projectID string) ([]domain.Section, error) {
	all, err := s.blocks.ListBlocks(projectID)
	if err != nil {
		return nil, err
	}
	return GroupBlocks(all), nil
}

// ReorderSections rewrites the document so sections appear in the given
// leader order. Each section moves as a unit, leader plus body run, with
// the preamble staying first. Unknown leader ids are skipped; leaders not
// named keep their original relative order at the end. Content updates on
// the entries are applied in the same transaction.
func (s *OutlineService) ReorderSections(ctx context.Context, projectID string, order []domain.LeaderUpdate) error {
	s.guard.Lock(projectID)
	defer s.guard.Unlock(projectID)

	all, err := s.blocks.ListBlocks(projectID)
	if err != nil {
		return fmt.Errorf("load blocks: %w", err)
	}
	sections := GroupBlocks(all)

	bySection := make(map[string]*domain.Section, len(sections))
	for i := range sections {
		if sections[i].Leader != nil {
			bySection[sections[i].Leader.ID] = &sections[i]
		}
	}

	var seq []*domain.Block
	appendSection := func(sec *domain.Section) {
		if sec.Leader != nil {
			seq = append(seq, sec.Leader)
		}
		for i := range sec.Body {
			seq = append(seq, &sec.Body[i])
		}
	}

	// Preamble first, always.
	for i := range sections {
		if sections[i].Leader == nil {
			appendSection(&sections[i])
		}
	}

	var changes []domain.BlockChange
	used := make(map[string]bool, len(order))
	for i := range order {
		lu := &order[i]
		sec := bySection[lu.ID]
		if sec == nil {
			log.Printf("outline: reorder skipped unknown leader %s", lu.ID)
			continue
		}
		if used[lu.ID] {
			log.Printf("outline: reorder ignored duplicate leader %s", lu.ID)
			continue
		}
		used[lu.ID] = true
		appendSection(sec)

		u := &domain.BlockUpdate{ID: lu.ID, Markdown: lu.Markdown, HeadingLevel: lu.HeadingLevel}
		if patch := applyUpdate(sec.Leader, u); patch != nil {
			changes = append(changes, domain.BlockChange{Patch: patch})
		}
	}

	// Sections the caller did not mention keep their relative order.
	for i := range sections {
		sec := &sections[i]
		if sec.Leader == nil || used[sec.Leader.ID] {
			continue
		}
		appendSection(sec)
	}

	changes = append(changes, resequence(seq)...)
	if err := s.blocks.ApplyChanges(projectID, changes); err != nil {
		return err
	}
	if len(changes) > 0 {
		emitBlocksChanged(ctx, s.emitter, projectID)
	}
	return nil
}

// NormalizeSortOrders compacts the project's keys back to small integers,
// restoring midpoint headroom lost to repeated fractional inserts. Returns
// the number of rewritten blocks; running it twice in a row returns zero
// the second time.
func (s *OutlineService) NormalizeSortOrders(ctx context.Context, projectID string) (int, error) {
	s.guard.Lock(projectID)
	defer s.guard.Unlock(projectID)
	return s.normalizeLocked(ctx, projectID)
}

// TryNormalizeSortOrders is NormalizeSortOrders for periodic jobs: it skips
// the project instead of queueing when a writer holds it.
func (s *OutlineService) TryNormalizeSortOrders(ctx context.Context, projectID string) (int, bool, error) {
	if !s.guard.TryLock(projectID) {
		return 0, false, nil
	}
	defer s.guard.Unlock(projectID)
	n, err := s.normalizeLocked(ctx, projectID)
	return n, true, err
}

func (s *OutlineService) normalizeLocked(ctx context.Context, projectID string) (int, error) {
	all, err := s.blocks.ListBlocks(projectID)
	if err != nil {
		return 0, fmt.Errorf("load blocks: %w", err)
	}

	seq := make([]*domain.Block, len(all))
	for i := range all {
		seq[i] = &all[i]
	}
	// Leaders win ties so a section head never sorts under its own body.
	sort.SliceStable(seq, func(i, j int) bool {
		if seq[i].SortOrder != seq[j].SortOrder {
			return seq[i].SortOrder < seq[j].SortOrder
		}
		return seq[i].IsLeader() && !seq[j].IsLeader()
	})

	changes := resequence(seq)
	if err := s.blocks.ApplyChanges(projectID, changes); err != nil {
		return 0, err
	}
	if len(changes) > 0 {
		emitBlocksChanged(ctx, s.emitter, projectID)
	}
	return len(changes), nil
}

// resequence assigns integer keys 1..n in slice order and returns patches
// for the blocks whose key actually changes.
func resequence(seq []*domain.Block) []domain.BlockChange {
	var changes []domain.BlockChange
	for i, b := range seq {
		want := float64(i + 1)
		if b.SortOrder == want {
			continue
		}
		b.SortOrder = want
		changes = append(changes, domain.BlockChange{Patch: &domain.BlockPatch{
			ID:        b.ID,
			SortOrder: domain.Some(want),
		}})
	}
	return changes
}

// Outline returns the sidebar view: one row per leader, bibliography pinned
// last regardless of its key, word counts aggregated over each body run.
func (s *OutlineService) Outline(projectID string) ([]domain.OutlineItem, error) {
	all, err := s.blocks.ListBlocks(projectID)
	if err != nil {
		return nil, err
	}

	bodyWords := make(map[string]int)
	for _, sec := range GroupBlocks(all) {
		if sec.Leader == nil {
			continue
		}
		sum := 0
		for _, b := range sec.Body {
			sum += b.WordCount
		}
		bodyWords[sec.Leader.ID] = sum
	}

	pinned := make([]domain.Block, len(all))
	copy(pinned, all)
	sort.SliceStable(pinned, func(i, j int) bool {
		if pinned[i].IsBibliography != pinned[j].IsBibliography {
			return !pinned[i].IsBibliography
		}
		return pinned[i].SortOrder < pinned[j].SortOrder
	})

	items := make([]domain.OutlineItem, 0, len(pinned))
	for i := range pinned {
		b := &pinned[i]
		if !b.IsLeader() {
			continue
		}
		items = append(items, domain.OutlineItem{
			ID:              b.ID,
			Title:           b.Title(),
			Level:           b.HeadingLevel,
			IsPseudoSection: b.IsPseudoSection,
			IsBibliography:  b.IsBibliography,
			Status:          b.Status,
			Tags:            b.Tags,
			WordCount:       bodyWords[b.ID],
			WordGoal:        b.WordGoal,
		})
	}
	return items, nil
}
