package storage

import (
	"fmt"
	"time"

	"manuscript/internal/domain"
)

// ProjectStore implements domain.ProjectStore.
type ProjectStore struct {
	db *DB
}

func NewProjectStore(db *DB) *ProjectStore {
	return &ProjectStore{db: db}
}

func (s *ProjectStore) CreateProject(p *domain.Project) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.db.Exec(
		`INSERT INTO projects (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Title, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *ProjectStore) GetProject(id string) (*domain.Project, error) {
	p := &domain.Project{}
	err := s.db.QueryRow(
		`SELECT id, title, created_at, updated_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Title, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *ProjectStore) ListProjects() ([]domain.Project, error) {
	rows, err := s.db.Query(`SELECT id, title, created_at, updated_at FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Title, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *ProjectStore) UpdateProject(p *domain.Project) error {
	p.UpdatedAt = time.Now()
	_, err := s.db.Exec(
		`UPDATE projects SET title = ?, updated_at = ? WHERE id = ?`,
		p.Title, p.UpdatedAt, p.ID,
	)
	return err
}

// DeleteProject removes the project together with its blocks and snapshots.
func (s *ProjectStore) DeleteProject(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM blocks WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("delete blocks: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM snapshots WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	return tx.Commit()
}
