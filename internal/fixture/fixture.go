// Package fixture moves a project and its endpoints in and out of a YAML
// document, so a set of mocks can be checked into a repository and loaded
// into another database.
//
// Import goes through the administrative services rather than the store,
// so a fixture is held to exactly the same validation as the HTTP API.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/sakif/mockapi/internal/service"
)

// Version is the document version written by Export and accepted by Import.
const Version = 1

type Document struct {
	Version   int        `yaml:"version"`
	Project   Project    `yaml:"project"`
	Endpoints []Endpoint `yaml:"endpoints,omitempty"`
}

type Project struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// Endpoint is one mock definition. Response holds the body as a YAML
// node tree; it is converted to and from JSON at the edges.
type Endpoint struct {
	Method     string            `yaml:"method"`
	Path       string            `yaml:"path"`
	StatusCode int               `yaml:"statusCode,omitempty"`
	Headers    map[string]string `yaml:"headers,omitempty"`
	Response   yaml.Node         `yaml:"response"`
}

// Services bundles what Export and Import need.
type Services struct {
	Projects  *service.ProjectService
	Endpoints *service.EndpointService
	Logger    *slog.Logger
}

// Export reads projectID and its endpoints into a Document. Endpoints are
// listed oldest first so an import recreates them in the same order.
func Export(ctx context.Context, svc Services, projectID string) (*Document, error) {
	project, err := svc.Projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	endpoints, err := svc.Endpoints.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	slices.Reverse(endpoints)

	doc := &Document{
		Version: Version,
		Project: Project{Name: project.Name, Description: project.Description},
	}
	for _, e := range endpoints {
		response, err := responseNode(e.Response)
		if err != nil {
			return nil, fmt.Errorf("endpoint %s %s: %w", e.Method, e.Path, err)
		}
		doc.Endpoints = append(doc.Endpoints, Endpoint{
			Method:     string(e.Method),
			Path:       e.Path,
			StatusCode: e.StatusCode,
			Headers:    e.Headers,
			Response:   response,
		})
	}
	return doc, nil
}

// Import creates a new project from doc and adds every endpoint to it.
// If any endpoint is rejected the new project is deleted again, so a
// failed import leaves nothing behind.
func Import(ctx context.Context, svc Services, doc *Document) (string, error) {
	if doc.Version != Version {
		return "", fmt.Errorf("unsupported fixture version %d (want %d)", doc.Version, Version)
	}

	project, err := svc.Projects.Create(ctx, doc.Project.Name, doc.Project.Description)
	if err != nil {
		return "", err
	}

	for i, e := range doc.Endpoints {
		if err := importEndpoint(ctx, svc, project.ID, e); err != nil {
			if delErr := svc.Projects.Delete(ctx, project.ID); delErr != nil {
				svc.Logger.Error("failed to roll back import",
					slog.String("project_id", project.ID),
					slog.String("error", delErr.Error()),
				)
			}
			return "", fmt.Errorf("endpoint %d (%s %s): %w", i, e.Method, e.Path, err)
		}
	}

	svc.Logger.Info("fixture imported",
		slog.String("project_id", project.ID),
		slog.Int("endpoints", len(doc.Endpoints)),
	)
	return project.ID, nil
}

func importEndpoint(ctx context.Context, svc Services, projectID string, e Endpoint) error {
	raw, err := responseJSON(&e.Response)
	if err != nil {
		return err
	}

	in := service.EndpointInput{
		Method:   e.Method,
		Path:     e.Path,
		Response: raw,
		Headers:  e.Headers,
	}
	if e.StatusCode != 0 {
		status := e.StatusCode
		in.StatusCode = &status
	}

	_, err = svc.Endpoints.Create(ctx, projectID, in)
	return err
}

// Encode writes doc as YAML.
func Encode(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	return enc.Close()
}

// Decode reads one YAML document. Unknown keys are rejected.
func Decode(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("decode fixture: empty document")
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &doc, nil
}
