package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"manuscript/internal/domain"
)

// Snapshot is one saved document state. The full block list is serialized
// into blocks_json; List omits the payload, Get loads it back.
type Snapshot struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
}

// maxSnapshots bounds the per-project history; older entries are pruned.
const maxSnapshots = 40

// SnapshotStore manages per-project document snapshots.
type SnapshotStore struct {
	db *DB
}

func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Push saves the given block list as a new snapshot and prunes history
// beyond the cap.
func (s *SnapshotStore) Push(projectID, label string, blocks []domain.Block) (*Snapshot, error) {
	if blocks == nil {
		blocks = []domain.Block{}
	}
	raw, err := json.Marshal(blocks)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	snap := &Snapshot{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Label:     label,
		CreatedAt: time.Now(),
	}
	_, err = s.db.Exec(
		`INSERT INTO snapshots (id, project_id, label, blocks_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.ProjectID, snap.Label, string(raw), snap.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}

	s.pruneIfNeeded(projectID, maxSnapshots)
	return snap, nil
}

// List returns snapshot metadata for a project, newest first, without the
// block payloads.
func (s *SnapshotStore) List(projectID string) ([]Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, label, created_at FROM snapshots WHERE project_id = ? ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.ProjectID, &snap.Label, &snap.CreatedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Get loads one snapshot together with its block list.
func (s *SnapshotStore) Get(id string) (*Snapshot, []domain.Block, error) {
	snap := &Snapshot{}
	var raw string
	err := s.db.QueryRow(
		`SELECT id, project_id, label, blocks_json, created_at FROM snapshots WHERE id = ?`, id,
	).Scan(&snap.ID, &snap.ProjectID, &snap.Label, &raw, &snap.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("get snapshot: %w", err)
	}

	var blocks []domain.Block
	if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snap, blocks, nil
}

func (s *SnapshotStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM snapshots WHERE id = ?`, id)
	return err
}

func (s *SnapshotStore) DeleteByProject(projectID string) error {
	_, err := s.db.Exec(`DELETE FROM snapshots WHERE project_id = ?`, projectID)
	return err
}

// pruneIfNeeded removes the oldest snapshots when count exceeds max.
func (s *SnapshotStore) pruneIfNeeded(projectID string, max int) {
	var count int
	s.db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE project_id = ?`, projectID).Scan(&count)
	if count <= max {
		return
	}

	// Collect ids first, then delete, so no rows cursor stays open across
	// writes on the single sqlite connection.
	rows, err := s.db.Query(
		`SELECT id FROM snapshots WHERE project_id = ? ORDER BY created_at ASC LIMIT ?`,
		projectID, count-max,
	)
	if err != nil {
		return
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		s.db.Exec(`DELETE FROM snapshots WHERE id = ?`, id)
	}
}
