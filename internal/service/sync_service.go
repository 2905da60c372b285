package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"manuscript/internal/domain"
	"manuscript/internal/markdown"
	"manuscript/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Sync Service
// ─────────────────────────────────────────────────────────────

// SyncService turns edit bursts from the editing surface into atomic block
// mutations. It owns the write path for content: diffs, whole-document
// replaces, and scoped range replaces all go through here.
type SyncService struct {
	blocks    *storage.BlockStore
	snapshots *storage.SnapshotStore
	guard     *WriteGuard
	emitter   EventEmitter
}

func NewSyncService(blocks *storage.BlockStore, snapshots *storage.SnapshotStore, guard *WriteGuard, emitter EventEmitter) *SyncService {
	return &SyncService{blocks: blocks, snapshots: snapshots, guard: guard, emitter: emitter}
}

// ApplyDiff reconciles one diff against the project's blocks: deletes first,
// then updates, then inserts, all committed in a single transaction. The
// returned map carries the permanent id for every temp id the diff created.
func (s *SyncService) ApplyDiff(ctx context.Context, projectID string, diff *domain.BlockDiff) (map[string]string, error) {
	idMap := map[string]string{}
	if diff == nil || diff.Empty() {
		return idMap, nil
	}

	s.guard.Lock(projectID)
	defer s.guard.Unlock(projectID)

	stored, err := s.blocks.ListBlocks(projectID)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	doc := newWorkingDoc(stored)

	var changes []domain.BlockChange

	for _, id := range diff.Deletes {
		if doc.remove(id) {
			changes = append(changes, domain.BlockChange{Delete: id})
		} else {
			log.Printf("sync: delete skipped, unknown block %s", id)
		}
	}

	for i := range diff.Updates {
		u := &diff.Updates[i]
		b := doc.byID(u.ID)
		if b == nil {
			if !isTempID(u.ID) {
				log.Printf("sync: update skipped, unknown block %s", u.ID)
				continue
			}
			// The first edit in a fresh document can arrive before the row
			// exists; promote the update to an append.
			nb := blockFromPromotedUpdate(projectID, u)
			changes = append(changes, doc.insertAfter("", nb)...)
			changes = append(changes, domain.BlockChange{Insert: nb})
			idMap[u.ID] = nb.ID
			continue
		}
		if patch := applyUpdate(b, u); patch != nil {
			changes = append(changes, domain.BlockChange{Patch: patch})
		}
	}

	for i := range diff.Inserts {
		ins := &diff.Inserts[i]
		nb := blockFromInsert(projectID, ins)
		if nb.IsBibliography && doc.hasBibliography() {
			nb.IsBibliography = false
			log.Printf("sync: project %s already has a bibliography, flag dropped on %s", projectID, nb.ID)
		}
		after := ins.AfterBlockID
		if mapped, ok := idMap[after]; ok {
			after = mapped
		}
		changes = append(changes, doc.insertAfter(after, nb)...)
		changes = append(changes, domain.BlockChange{Insert: nb})
		if ins.TempID != "" {
			idMap[ins.TempID] = nb.ID
		}
	}

	if err := s.blocks.ApplyChanges(projectID, changes); err != nil {
		return nil, err
	}
	emitBlocksChanged(ctx, s.emitter, projectID)
	return idMap, nil
}

// isTempID reports whether id is a caller-chosen placeholder rather than an
// engine-assigned uuid.
func isTempID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err != nil
}

// midpoint returns a key strictly between a and b, or false when float64
// precision has no room left between them.
func midpoint(a, b float64) (float64, bool) {
	m := a + (b-a)/2
	if m <= a || m >= b {
		return 0, false
	}
	return m, true
}

func clampLevel(lvl int) int {
	if lvl < 1 {
		return 1
	}
	if lvl > 6 {
		return 6
	}
	return lvl
}

// resolveInsertType decides the effective type of a new block. Structural
// markers in the fragment win over the caller's claim; heading marks always
// win. Plain content keeps a caller-chosen body type, so list items survive.
func resolveInsertType(caller domain.BlockType, callerLevel int, fragment string) (domain.BlockType, int) {
	if fragment == "" {
		if caller == "" {
			return domain.BlockTypeParagraph, 0
		}
		if caller == domain.BlockTypeHeading {
			return caller, clampLevel(callerLevel)
		}
		return caller, 0
	}

	det, detLevel := markdown.DetectType(fragment)
	switch {
	case det == domain.BlockTypeHeading:
		if caller == domain.BlockTypeBibliography {
			return caller, detLevel
		}
		return domain.BlockTypeHeading, detLevel
	case det == domain.BlockTypeHR && caller == domain.BlockTypeSectionBreak:
		return caller, 0
	case det != domain.BlockTypeParagraph:
		return det, 0
	case caller == "" || caller == domain.BlockTypeHeading:
		// A claimed heading without heading marks is demoted.
		return domain.BlockTypeParagraph, 0
	default:
		return caller, 0
	}
}

// resolveUpdateType re-derives a block's type after its fragment changed.
// Section breaks and the bibliography keep their identity across edits that
// still look like their degraded markdown form.
func resolveUpdateType(b *domain.Block, fragment string) (domain.BlockType, int) {
	det, detLevel := markdown.DetectType(fragment)
	switch {
	case det == domain.BlockTypeHeading:
		if b.Type == domain.BlockTypeBibliography {
			return b.Type, detLevel
		}
		return domain.BlockTypeHeading, detLevel
	case b.Type == domain.BlockTypeSectionBreak && det == domain.BlockTypeHR:
		return b.Type, 0
	case det == domain.BlockTypeParagraph:
		if b.Type == domain.BlockTypeHeading {
			return domain.BlockTypeParagraph, 0
		}
		// Fragments of list items and similar body types carry no marker of
		// their own; the stored type stands.
		return b.Type, b.HeadingLevel
	default:
		return det, 0
	}
}

func optString(o domain.Opt[string]) string {
	if o.HasValue() {
		return o.Value
	}
	return ""
}

// applyUpdate builds the patch for one update and mirrors it onto the
// in-memory block. Returns nil when the update defines nothing.
func applyUpdate(b *domain.Block, u *domain.BlockUpdate) *domain.BlockPatch {
	patch := &domain.BlockPatch{ID: b.ID}
	touched := false

	setText := func(text string) {
		if text == b.TextContent {
			return
		}
		patch.TextContent = domain.Some(text)
		b.TextContent = text
		wc := markdown.CountWords(text)
		patch.WordCount = domain.Some(wc)
		b.WordCount = wc
	}

	if u.Markdown.Defined {
		md := optString(u.Markdown)
		newType, newLevel := resolveUpdateType(b, md)

		patch.Markdown = domain.Some(md)
		b.Markdown = md
		touched = true

		if newType != b.Type {
			patch.Type = domain.Some(newType)
			b.Type = newType
		}
		if newLevel != b.HeadingLevel {
			patch.HeadingLevel = domain.Some(newLevel)
			b.HeadingLevel = newLevel
		}
		if b.Type == domain.BlockTypeImage {
			if src, alt, caption, ok := markdown.ImageMeta(md); ok {
				patch.ImageSrc = domain.Some(src)
				patch.ImageAlt = domain.Some(alt)
				patch.ImageCaption = domain.Some(caption)
				b.ImageSrc, b.ImageAlt, b.ImageCaption = src, alt, caption
			}
		}

		text := markdown.PlainText(md, b.Type)
		if u.TextContent.Defined {
			text = optString(u.TextContent)
		}
		setText(text)
		return patch
	}

	if u.TextContent.Defined {
		setText(optString(u.TextContent))
		touched = true
	}
	if u.HeadingLevel.Defined && b.Type == domain.BlockTypeHeading {
		lvl := clampLevel(u.HeadingLevel.Value)
		if lvl != b.HeadingLevel {
			patch.HeadingLevel = domain.Some(lvl)
			b.HeadingLevel = lvl
		}
		touched = true
	}

	if !touched {
		return nil
	}
	return patch
}

func blockFromInsert(projectID string, ins *domain.BlockInsert) *domain.Block {
	typ, level := resolveInsertType(ins.Type, ins.HeadingLevel, ins.Markdown)
	text := ins.TextContent
	if text == "" && ins.Markdown != "" {
		text = markdown.PlainText(ins.Markdown, typ)
	}

	b := &domain.Block{
		ID:           uuid.New().String(),
		ProjectID:    projectID,
		Type:         typ,
		TextContent:  text,
		Markdown:     ins.Markdown,
		HeadingLevel: level,
		WordCount:    markdown.CountWords(text),
	}
	switch typ {
	case domain.BlockTypeBibliography:
		b.IsBibliography = true
	case domain.BlockTypeSectionBreak:
		b.IsPseudoSection = true
	case domain.BlockTypeImage:
		if src, alt, caption, ok := markdown.ImageMeta(ins.Markdown); ok {
			b.ImageSrc, b.ImageAlt, b.ImageCaption = src, alt, caption
		}
	}
	return b
}

func blockFromPromotedUpdate(projectID string, u *domain.BlockUpdate) *domain.Block {
	return blockFromInsert(projectID, &domain.BlockInsert{
		Markdown:     optString(u.Markdown),
		TextContent:  optString(u.TextContent),
		HeadingLevel: u.HeadingLevel.Value,
	})
}

// ─────────────────────────────────────────────────────────────
// workingDoc
// ─────────────────────────────────────────────────────────────

// workingDoc tracks the block sequence while a diff is reconciled, so
// placement decisions see earlier changes from the same diff.
type workingDoc struct {
	list  []*domain.Block
	index map[string]*domain.Block
	fresh map[string]bool // inserted this diff, not yet persisted
}

func newWorkingDoc(stored []domain.Block) *workingDoc {
	d := &workingDoc{
		index: make(map[string]*domain.Block, len(stored)),
		fresh: make(map[string]bool),
	}
	for i := range stored {
		b := &stored[i]
		d.list = append(d.list, b)
		d.index[b.ID] = b
	}
	return d
}

func (d *workingDoc) byID(id string) *domain.Block {
	return d.index[id]
}

func (d *workingDoc) pos(id string) int {
	for i, b := range d.list {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (d *workingDoc) remove(id string) bool {
	i := d.pos(id)
	if i < 0 {
		return false
	}
	d.list = append(d.list[:i], d.list[i+1:]...)
	delete(d.index, id)
	return true
}

func (d *workingDoc) hasBibliography() bool {
	for _, b := range d.list {
		if b.IsBibliography {
			return true
		}
	}
	return false
}

// insertAfter places nb after the named block, at the midpoint to its
// successor, or appends when afterID is empty, unknown, or last. When two
// neighboring keys have no representable midpoint the whole document is
// renumbered first; the returned patches carry those renumberings and must
// precede nb's insert in the batch.
func (d *workingDoc) insertAfter(afterID string, nb *domain.Block) []domain.BlockChange {
	var renumbered []domain.BlockChange

	pos := -1
	if afterID != "" {
		pos = d.pos(afterID)
	}

	switch {
	case pos < 0:
		nb.SortOrder = d.tailSort() + 1
		d.insertAt(len(d.list), nb)
	case pos == len(d.list)-1:
		nb.SortOrder = d.list[pos].SortOrder + 1
		d.insertAt(len(d.list), nb)
	default:
		mid, ok := midpoint(d.list[pos].SortOrder, d.list[pos+1].SortOrder)
		if !ok {
			renumbered = d.renumber()
			mid, _ = midpoint(d.list[pos].SortOrder, d.list[pos+1].SortOrder)
		}
		nb.SortOrder = mid
		d.insertAt(pos+1, nb)
	}
	return renumbered
}

func (d *workingDoc) insertAt(i int, nb *domain.Block) {
	d.list = append(d.list, nil)
	copy(d.list[i+1:], d.list[i:])
	d.list[i] = nb
	d.index[nb.ID] = nb
	d.fresh[nb.ID] = true
}

func (d *workingDoc) tailSort() float64 {
	if len(d.list) == 0 {
		return 0
	}
	return d.list[len(d.list)-1].SortOrder
}

// renumber reassigns integer keys in current order. Blocks inserted earlier
// in this diff are only mutated in place; their pending inserts pick the new
// key up. Persisted blocks get sort-order patches.
func (d *workingDoc) renumber() []domain.BlockChange {
	var changes []domain.BlockChange
	for i, b := range d.list {
		want := float64(i + 1)
		if b.SortOrder == want {
			continue
		}
		b.SortOrder = want
		if d.fresh[b.ID] {
			continue
		}
		changes = append(changes, domain.BlockChange{Patch: &domain.BlockPatch{
			ID:        b.ID,
			SortOrder: domain.Some(want),
		}})
	}
	return changes
}
