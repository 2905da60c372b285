package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"manuscript/internal/domain"
)

// BlockStore implements domain.BlockStore over the dialected DB.
type BlockStore struct {
	db *DB
}

func NewBlockStore(db *DB) *BlockStore {
	return &BlockStore{db: db}
}

const blockColumns = `id, project_id, parent_id, sort_order, type, text_content, markdown, heading_level, status, tags_json, word_goal, goal_type, aggregate_goal, aggregate_goal_type, word_count, image_src, image_alt, image_caption, image_width, is_bibliography, is_pseudo_section, is_notes, created_at, updated_at`

const blockPlaceholders = `?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?`

// execer is satisfied by both *DB and *Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(r rowScanner) (*domain.Block, error) {
	b := &domain.Block{}
	var parent sql.NullString
	var tags string
	err := r.Scan(
		&b.ID, &b.ProjectID, &parent, &b.SortOrder, &b.Type, &b.TextContent, &b.Markdown,
		&b.HeadingLevel, &b.Status, &tags, &b.WordGoal, &b.GoalType, &b.AggregateGoal,
		&b.AggregateGoalType, &b.WordCount, &b.ImageSrc, &b.ImageAlt, &b.ImageCaption,
		&b.ImageWidth, &b.IsBibliography, &b.IsPseudoSection, &b.IsNotes, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.ParentID = parent.String
	if tags != "" && tags != "[]" {
		if err := json.Unmarshal([]byte(tags), &b.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for block %s: %w", b.ID, err)
		}
	}
	return b, nil
}

func marshalTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// nullable maps the empty string onto SQL NULL for optional id columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func insertBlock(ex execer, b *domain.Block) error {
	_, err := ex.Exec(
		`INSERT INTO blocks (`+blockColumns+`) VALUES (`+blockPlaceholders+`)`,
		b.ID, b.ProjectID, nullable(b.ParentID), b.SortOrder, b.Type, b.TextContent, b.Markdown,
		b.HeadingLevel, b.Status, marshalTags(b.Tags), b.WordGoal, b.GoalType, b.AggregateGoal,
		b.AggregateGoalType, b.WordCount, b.ImageSrc, b.ImageAlt, b.ImageCaption,
		b.ImageWidth, b.IsBibliography, b.IsPseudoSection, b.IsNotes, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (s *BlockStore) CreateBlock(b *domain.Block) error {
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	if err := insertBlock(s.db, b); err != nil {
		return fmt.Errorf("create block: %w", err)
	}
	return nil
}

func (s *BlockStore) GetBlock(id string) (*domain.Block, error) {
	row := s.db.QueryRow(`SELECT `+blockColumns+` FROM blocks WHERE id = ?`, id)
	b, err := scanBlock(row)
	if err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}
	return b, nil
}

func (s *BlockStore) queryBlocks(query string, args ...any) ([]domain.Block, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []domain.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *b)
	}
	return blocks, rows.Err()
}

// ListBlocks returns the project's blocks in document order.
func (s *BlockStore) ListBlocks(projectID string) ([]domain.Block, error) {
	return s.queryBlocks(
		`SELECT `+blockColumns+` FROM blocks WHERE project_id = ? ORDER BY sort_order ASC`,
		projectID,
	)
}

func (s *BlockStore) ListBlocksByType(projectID string, t domain.BlockType) ([]domain.Block, error) {
	return s.queryBlocks(
		`SELECT `+blockColumns+` FROM blocks WHERE project_id = ? AND type = ? ORDER BY sort_order ASC`,
		projectID, t,
	)
}

func (s *BlockStore) ListChildren(parentID string) ([]domain.Block, error) {
	return s.queryBlocks(
		`SELECT `+blockColumns+` FROM blocks WHERE parent_id = ? ORDER BY sort_order ASC`,
		parentID,
	)
}

// ListRange returns blocks with start <= sortOrder < end, in document order.
func (s *BlockStore) ListRange(projectID string, start, end float64) ([]domain.Block, error) {
	return s.queryBlocks(
		`SELECT `+blockColumns+` FROM blocks WHERE project_id = ? AND sort_order >= ? AND sort_order < ? ORDER BY sort_order ASC`,
		projectID, start, end,
	)
}

func (s *BlockStore) UpdateBlock(b *domain.Block) error {
	b.UpdatedAt = time.Now()
	_, err := s.db.Exec(
		`UPDATE blocks SET parent_id = ?, sort_order = ?, type = ?, text_content = ?, markdown = ?, heading_level = ?, status = ?, tags_json = ?, word_goal = ?, goal_type = ?, aggregate_goal = ?, aggregate_goal_type = ?, word_count = ?, image_src = ?, image_alt = ?, image_caption = ?, image_width = ?, is_bibliography = ?, is_pseudo_section = ?, is_notes = ?, updated_at = ? WHERE id = ?`,
		nullable(b.ParentID), b.SortOrder, b.Type, b.TextContent, b.Markdown, b.HeadingLevel,
		b.Status, marshalTags(b.Tags), b.WordGoal, b.GoalType, b.AggregateGoal, b.AggregateGoalType,
		b.WordCount, b.ImageSrc, b.ImageAlt, b.ImageCaption, b.ImageWidth,
		b.IsBibliography, b.IsPseudoSection, b.IsNotes, b.UpdatedAt, b.ID,
	)
	return err
}

// PatchBlock writes only the defined fields of p. A patch with nothing
// defined is a no-op.
func (s *BlockStore) PatchBlock(p *domain.BlockPatch) error {
	return patchBlock(s.db, p, time.Now())
}

func patchBlock(ex execer, p *domain.BlockPatch, now time.Time) error {
	var set []string
	var args []any
	add := func(col string, v any) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}

	if p.ParentID.Defined {
		if p.ParentID.HasValue() && p.ParentID.Value != "" {
			add("parent_id", p.ParentID.Value)
		} else {
			set = append(set, "parent_id = NULL")
		}
	}
	if p.SortOrder.Defined {
		add("sort_order", p.SortOrder.Value)
	}
	if p.Type.Defined {
		add("type", p.Type.Value)
	}
	if p.TextContent.Defined {
		add("text_content", p.TextContent.Value)
	}
	if p.Markdown.Defined {
		add("markdown", p.Markdown.Value)
	}
	if p.HeadingLevel.Defined {
		add("heading_level", p.HeadingLevel.Value)
	}
	if p.Status.Defined {
		add("status", p.Status.Value)
	}
	if p.Tags.Defined {
		add("tags_json", marshalTags(p.Tags.Value))
	}
	if p.WordGoal.Defined {
		add("word_goal", p.WordGoal.Value)
	}
	if p.GoalType.Defined {
		add("goal_type", p.GoalType.Value)
	}
	if p.AggregateGoal.Defined {
		add("aggregate_goal", p.AggregateGoal.Value)
	}
	if p.AggregateGoalType.Defined {
		add("aggregate_goal_type", p.AggregateGoalType.Value)
	}
	if p.WordCount.Defined {
		add("word_count", p.WordCount.Value)
	}
	if p.ImageSrc.Defined {
		add("image_src", p.ImageSrc.Value)
	}
	if p.ImageAlt.Defined {
		add("image_alt", p.ImageAlt.Value)
	}
	if p.ImageCaption.Defined {
		add("image_caption", p.ImageCaption.Value)
	}
	if p.ImageWidth.Defined {
		add("image_width", p.ImageWidth.Value)
	}
	if p.IsBibliography.Defined {
		add("is_bibliography", p.IsBibliography.Value)
	}
	if p.IsPseudoSection.Defined {
		add("is_pseudo_section", p.IsPseudoSection.Value)
	}
	if p.IsNotes.Defined {
		add("is_notes", p.IsNotes.Value)
	}

	if len(set) == 0 {
		return nil
	}
	add("updated_at", now)
	args = append(args, p.ID)

	_, err := ex.Exec(`UPDATE blocks SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	return err
}

func (s *BlockStore) DeleteBlock(id string) error {
	_, err := s.db.Exec(`DELETE FROM blocks WHERE id = ?`, id)
	return err
}

func (s *BlockStore) DeleteBlocksByProject(projectID string) error {
	_, err := s.db.Exec(`DELETE FROM blocks WHERE project_id = ?`, projectID)
	return err
}

// ApplyChanges runs an ordered batch of inserts, patches, and deletes in one
// transaction. Any failure rolls the whole batch back.
func (s *BlockStore) ApplyChanges(projectID string, changes []domain.BlockChange) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, c := range changes {
		switch {
		case c.Insert != nil:
			b := c.Insert
			b.ProjectID = projectID
			if b.CreatedAt.IsZero() {
				b.CreatedAt = now
			}
			b.UpdatedAt = now
			if err := insertBlock(tx, b); err != nil {
				return fmt.Errorf("insert block %s: %w", b.ID, err)
			}
		case c.Patch != nil:
			if err := patchBlock(tx, c.Patch, now); err != nil {
				return fmt.Errorf("patch block %s: %w", c.Patch.ID, err)
			}
		case c.Delete != "":
			if _, err := tx.Exec(`DELETE FROM blocks WHERE id = ?`, c.Delete); err != nil {
				return fmt.Errorf("delete block %s: %w", c.Delete, err)
			}
		}
	}
	return tx.Commit()
}

// ReplaceProjectBlocks atomically replaces all blocks of a project with the
// given sequence. Ids are kept as passed in, so callers can preserve block
// identity across a replace.
func (s *BlockStore) ReplaceProjectBlocks(projectID string, blocks []domain.Block) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM blocks WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("delete blocks: %w", err)
	}

	now := time.Now()
	for i := range blocks {
		b := blocks[i]
		b.ProjectID = projectID
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		b.UpdatedAt = now
		if err := insertBlock(tx, &b); err != nil {
			return fmt.Errorf("insert block %s: %w", b.ID, err)
		}
	}

	return tx.Commit()
}
