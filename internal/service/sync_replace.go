package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"manuscript/internal/domain"
	"manuscript/internal/markdown"
)

// ─────────────────────────────────────────────────────────────
// Scoped Replace
// ─────────────────────────────────────────────────────────────

// ReplaceDocument parses doc and swaps it in as the project's full content.
// Headings whose text matches an existing leader keep that leader's id and
// section metadata. The previous content is snapshotted first.
func (s *SyncService) ReplaceDocument(ctx context.Context, projectID, doc string) error {
	s.guard.Lock(projectID)
	defer s.guard.Unlock(projectID)

	existing, err := s.blocks.ListBlocks(projectID)
	if err != nil {
		return fmt.Errorf("load blocks: %w", err)
	}

	if len(existing) > 0 && s.snapshots != nil {
		if _, err := s.snapshots.Push(projectID, "before replace", existing); err != nil {
			log.Printf("sync: snapshot before replace failed: %v", err)
		}
	}

	next := buildReplacement(projectID, markdown.Parse(doc), leaderTitleMap(existing))
	for i := range next {
		next[i].SortOrder = float64(i + 1)
	}
	enforceBibliographySingleton(next)

	if err := s.blocks.ReplaceProjectBlocks(projectID, next); err != nil {
		return err
	}
	emitBlocksChanged(ctx, s.emitter, projectID)
	return nil
}

// ReplaceRange swaps the blocks whose sortOrder falls in [start, end) for
// the parsed content of doc, leaving everything before and after in place.
// Title matching is scoped to the replaced range. The whole document is
// renumbered to integer keys on the way out.
func (s *SyncService) ReplaceRange(ctx context.Context, projectID string, start, end float64, doc string) error {
	if start >= end {
		return fmt.Errorf("invalid range [%v, %v)", start, end)
	}

	s.guard.Lock(projectID)
	defer s.guard.Unlock(projectID)

	all, err := s.blocks.ListBlocks(projectID)
	if err != nil {
		return fmt.Errorf("load blocks: %w", err)
	}

	var prefix, rng, tail []domain.Block
	for _, b := range all {
		switch {
		case b.SortOrder < start:
			prefix = append(prefix, b)
		case b.SortOrder < end:
			rng = append(rng, b)
		default:
			tail = append(tail, b)
		}
	}

	replacement := buildReplacement(projectID, markdown.Parse(doc), leaderTitleMap(rng))

	final := make([]domain.Block, 0, len(prefix)+len(replacement)+len(tail))
	final = append(final, prefix...)
	final = append(final, replacement...)
	final = append(final, tail...)
	for i := range final {
		final[i].SortOrder = float64(i + 1)
	}
	enforceBibliographySingleton(final)

	if err := s.blocks.ReplaceProjectBlocks(projectID, final); err != nil {
		return err
	}
	emitBlocksChanged(ctx, s.emitter, projectID)
	return nil
}

// ExportDocument serializes the project back to markdown, the inverse of
// ReplaceDocument. With excludeNotes set, sections flagged as notes are
// dropped, leader and body both, the way compiled output wants them.
func (s *SyncService) ExportDocument(projectID string, excludeNotes bool) (string, error) {
	all, err := s.blocks.ListBlocks(projectID)
	if err != nil {
		return "", fmt.Errorf("load blocks: %w", err)
	}
	if !excludeNotes {
		return markdown.Serialize(all), nil
	}

	var kept []domain.Block
	for _, sec := range GroupBlocks(all) {
		if sec.Leader != nil {
			if sec.Leader.IsNotes {
				continue
			}
			kept = append(kept, *sec.Leader)
		}
		kept = append(kept, sec.Body...)
	}
	return markdown.Serialize(kept), nil
}

// leaderTitleMap indexes leaders by their display title, first occurrence
// wins. Pseudo sections have no title and never match.
func leaderTitleMap(blocks []domain.Block) map[string]*domain.Block {
	m := make(map[string]*domain.Block)
	for i := range blocks {
		b := &blocks[i]
		if !b.IsLeader() {
			continue
		}
		title := b.Title()
		if title == "" {
			continue
		}
		if _, taken := m[title]; !taken {
			m[title] = b
		}
	}
	return m
}

// buildReplacement turns parsed descriptors into blocks, re-binding each
// titled leader to its old identity and metadata when the title matches.
// Sort orders are left for the caller to assign.
func buildReplacement(projectID string, parsed []domain.ParsedBlock, titles map[string]*domain.Block) []domain.Block {
	out := make([]domain.Block, 0, len(parsed))
	for _, p := range parsed {
		b := domain.Block{
			ID:              uuid.New().String(),
			ProjectID:       projectID,
			Type:            p.Type,
			TextContent:     p.TextContent,
			Markdown:        p.Markdown,
			HeadingLevel:    p.HeadingLevel,
			WordCount:       markdown.CountWords(p.TextContent),
			ImageSrc:        p.ImageSrc,
			ImageAlt:        p.ImageAlt,
			ImageCaption:    p.ImageCaption,
			IsPseudoSection: p.IsPseudoSection,
		}
		if b.Type.IsLeader() && !b.IsPseudoSection {
			if old, ok := titles[b.TextContent]; ok {
				delete(titles, b.TextContent)
				b.ID = old.ID
				b.CreatedAt = old.CreatedAt
				b.Status = old.Status
				b.Tags = old.Tags
				b.WordGoal = old.WordGoal
				b.GoalType = old.GoalType
				b.AggregateGoal = old.AggregateGoal
				b.AggregateGoalType = old.AggregateGoalType
				b.IsBibliography = old.IsBibliography
				b.IsNotes = old.IsNotes
				if old.Type == domain.BlockTypeBibliography {
					b.Type = old.Type
				}
			}
		}
		if b.Type == domain.BlockTypeBibliography {
			b.IsBibliography = true
		}
		out = append(out, b)
	}
	return out
}

// enforceBibliographySingleton keeps the flag on the first bibliography in
// document order and drops it from any later one.
func enforceBibliographySingleton(blocks []domain.Block) {
	seen := false
	for i := range blocks {
		if !blocks[i].IsBibliography {
			continue
		}
		if !seen {
			seen = true
			continue
		}
		blocks[i].IsBibliography = false
		log.Printf("sync: duplicate bibliography flag dropped on %s", blocks[i].ID)
	}
}
