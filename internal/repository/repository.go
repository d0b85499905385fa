// Package repository declares the storage contracts the services depend on.
//
// The services only ever see these interfaces. The SQLite implementation
// lives in repository/sqlite; tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/mockapi/internal/model"
)

// ListOptions pages a list query. Limit <= 0 means no limit.
type ListOptions struct {
	Limit  int
	Offset int
}

type ProjectRepository interface {
	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context, opts ListOptions) ([]model.Project, error)
	UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// EndpointRepository stores endpoint definitions. Every lookup is scoped
// to the owning project, so an id from another project reads as missing.
type EndpointRepository interface {
	CreateEndpoint(ctx context.Context, endpoint *model.Endpoint) error
	GetEndpoint(ctx context.Context, projectID, id string) (*model.Endpoint, error)
	// FindEndpointByRoute returns apperror.ErrNotFound when no endpoint of
	// the project answers method and path.
	FindEndpointByRoute(ctx context.Context, projectID string, method model.Method, path string) (*model.Endpoint, error)
	ListEndpoints(ctx context.Context, projectID string) ([]model.Endpoint, error)
	UpdateEndpoint(ctx context.Context, projectID, id string, patch model.EndpointPatch) (*model.Endpoint, error)
	DeleteEndpoint(ctx context.Context, projectID, id string) error
}

// Store is the whole persistence layer with an explicit lifecycle.
// Whoever opens a Store closes it.
type Store interface {
	ProjectRepository
	EndpointRepository
	Ping(ctx context.Context) error
	Close() error
}
