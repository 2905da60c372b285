package domain

import "time"

// Project is one document: a titled, ordered set of blocks.
type Project struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ProjectStore interface {
	CreateProject(p *Project) error
	GetProject(id string) (*Project, error)
	ListProjects() ([]Project, error)
	UpdateProject(p *Project) error
	DeleteProject(id string) error
}
