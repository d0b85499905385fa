// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never *sqlite.DB, and know nothing
// about HTTP. The same ProjectService backs the admin API, the CLI and the
// fixture importer.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/mockapi/internal/apperror"
	"github.com/sakif/mockapi/internal/model"
	"github.com/sakif/mockapi/internal/repository"
)

// Validation limits.
const (
	MaxProjectNameLength        = 100
	MaxProjectDescriptionLength = 1000
	MaxListLimit                = 100
)

// ProjectService handles business logic for projects.
type ProjectService struct {
	repo   repository.ProjectRepository
	logger *slog.Logger
}

func NewProjectService(repo repository.ProjectRepository, logger *slog.Logger) *ProjectService {
	return &ProjectService{
		repo:   repo,
		logger: logger,
	}
}

func validateProjectName(name string) error {
	if name == "" {
		return apperror.ValidationFailed("name", "project name is required")
	}
	if len(name) > MaxProjectNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("project name must be %d characters or less", MaxProjectNameLength))
	}
	return nil
}

func validateProjectDescription(description string) error {
	if len(description) > MaxProjectDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("project description must be %d characters or less", MaxProjectDescriptionLength))
	}
	return nil
}

// Create validates and saves a new project. Both fields are trimmed; the
// description may end up empty, the name may not.
func (s *ProjectService) Create(ctx context.Context, name, description string) (*model.Project, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)

	if err := validateProjectName(name); err != nil {
		return nil, err
	}
	if err := validateProjectDescription(description); err != nil {
		return nil, err
	}

	project := &model.Project{
		Name:        name,
		Description: description,
	}

	if err := s.repo.CreateProject(ctx, project); err != nil {
		s.logger.Error("failed to create project",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating project: %w", err)
	}

	s.logger.Info("project created",
		slog.String("id", project.ID),
		slog.String("name", project.Name),
	)

	return project, nil
}

// GetByID returns apperror.ErrNotFound if the project doesn't exist.
func (s *ProjectService) GetByID(ctx context.Context, id string) (*model.Project, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "project ID is required")
	}

	// NotFound is a normal answer here, so it propagates without logging.
	return s.repo.GetProject(ctx, id)
}

// List returns projects newest first.
//
// PAGINATION:
// limit <= 0 returns every project, which is what the authoring UI asks
// for. A positive limit is capped at MaxListLimit so one call can't drag
// out an arbitrarily large page.
func (s *ProjectService) List(ctx context.Context, limit, offset int) ([]model.Project, error) {
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	projects, err := s.repo.ListProjects(ctx, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list projects", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	return projects, nil
}

// Update applies a partial change. Fields left nil in patch keep their
// stored values; a patch with no fields at all is rejected.
func (s *ProjectService) Update(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "project ID is required")
	}
	if patch.IsEmpty() {
		return nil, apperror.ValidationFailed("", "at least one of name or description is required")
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if err := validateProjectName(name); err != nil {
			return nil, err
		}
		patch.Name = &name
	}
	if patch.Description != nil {
		description := strings.TrimSpace(*patch.Description)
		if err := validateProjectDescription(description); err != nil {
			return nil, err
		}
		patch.Description = &description
	}

	project, err := s.repo.UpdateProject(ctx, id, patch)
	if err != nil {
		if isAppError(err) {
			return nil, err
		}
		s.logger.Error("failed to update project",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating project: %w", err)
	}

	s.logger.Info("project updated",
		slog.String("id", project.ID),
		slog.String("name", project.Name),
	)

	return project, nil
}

// Delete removes the project and, through the store's cascade, every
// endpoint it owns.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "project ID is required")
	}

	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return err
	}

	s.logger.Info("project deleted", slog.String("id", id))
	return nil
}
