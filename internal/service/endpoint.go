package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/textproto"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/sakif/mockapi/internal/apperror"
	"github.com/sakif/mockapi/internal/model"
	"github.com/sakif/mockapi/internal/repository"
)

const (
	MaxPathLength     = 2048
	MaxResponseLength = 1 << 20 // 1 MiB of JSON
	MaxHeaders        = 50
)

// EndpointInput is the full definition of an endpoint as submitted by a
// caller. Create and Update both take the whole definition.
//
// Response distinguishes absent (nil) from JSON null (the bytes "null"):
// the former is rejected, the latter is a valid canned response.
type EndpointInput struct {
	Method     string
	Path       string
	Response   json.RawMessage
	StatusCode *int
	Headers    map[string]string
}

// EndpointService handles business logic for endpoint definitions.
type EndpointService struct {
	projects  repository.ProjectRepository
	endpoints repository.EndpointRepository
	logger    *slog.Logger
}

func NewEndpointService(projects repository.ProjectRepository, endpoints repository.EndpointRepository, logger *slog.Logger) *EndpointService {
	return &EndpointService{
		projects:  projects,
		endpoints: endpoints,
		logger:    logger,
	}
}

// validateInput checks every field and returns the endpoint it describes,
// with method upper-cased, path normalized and response compacted.
func validateInput(in EndpointInput) (*model.Endpoint, error) {
	if strings.TrimSpace(in.Method) == "" {
		return nil, apperror.ValidationFailed("method", "method is required")
	}
	method, ok := model.ParseMethod(in.Method)
	if !ok {
		return nil, apperror.ValidationFailed("method",
			fmt.Sprintf("invalid HTTP method %q: must be one of GET, POST, PUT, DELETE, PATCH", in.Method))
	}

	if strings.TrimSpace(in.Path) == "" {
		return nil, apperror.ValidationFailed("path", "path is required")
	}
	path := model.NormalizePath(in.Path)
	if len(path) > MaxPathLength {
		return nil, apperror.ValidationFailed("path",
			fmt.Sprintf("path must be %d characters or less", MaxPathLength))
	}

	if len(in.Response) == 0 {
		return nil, apperror.ValidationFailed("response", "response is required")
	}
	if len(in.Response) > MaxResponseLength {
		return nil, apperror.ValidationFailed("response",
			fmt.Sprintf("response must be %d bytes or less", MaxResponseLength))
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, in.Response); err != nil {
		return nil, apperror.ValidationFailed("response", "response must be valid JSON")
	}

	status := model.DefaultStatusCode
	if in.StatusCode != nil {
		status = *in.StatusCode
	}
	if status < model.MinStatusCode || status > model.MaxStatusCode {
		return nil, apperror.ValidationFailed("statusCode",
			fmt.Sprintf("status code must be between %d and %d", model.MinStatusCode, model.MaxStatusCode))
	}

	headers, err := validateHeaders(in.Headers)
	if err != nil {
		return nil, err
	}

	return &model.Endpoint{
		Name:       model.RouteName(method, path),
		Method:     method,
		Path:       path,
		Response:   json.RawMessage(compact.Bytes()),
		StatusCode: status,
		Headers:    headers,
	}, nil
}

// validateHeaders rejects names and values that could not be written to
// an HTTP response as given, and names that collide once canonicalized.
// Names come back in canonical form; an empty map comes back as nil.
func validateHeaders(headers map[string]string) (map[string]string, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	if len(headers) > MaxHeaders {
		return nil, apperror.ValidationFailed("headers",
			fmt.Sprintf("at most %d custom headers are allowed", MaxHeaders))
	}
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		if !httpguts.ValidHeaderFieldName(name) {
			return nil, apperror.ValidationFailed("headers", fmt.Sprintf("invalid header name %q", name))
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return nil, apperror.ValidationFailed("headers", fmt.Sprintf("invalid value for header %q", name))
		}
		key := textproto.CanonicalMIMEHeaderKey(name)
		if _, dup := out[key]; dup {
			return nil, apperror.ValidationFailed("headers", fmt.Sprintf("duplicate header %q", key))
		}
		out[key] = value
	}
	return out, nil
}

// checkRouteFree returns apperror.ErrConflict when another endpoint of the
// project already answers method and path. selfID is ignored so an update
// may keep its own route.
//
// The store's unique index is the real guarantee; this check only gives
// callers a clearer message in the common case.
func (s *EndpointService) checkRouteFree(ctx context.Context, projectID string, method model.Method, path, selfID string) error {
	existing, err := s.endpoints.FindEndpointByRoute(ctx, projectID, method, path)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("checking route %s: %w", model.RouteName(method, path), err)
	case existing.ID == selfID:
		return nil
	case selfID == "":
		return apperror.Conflict(fmt.Sprintf(
			"an endpoint for %s already exists in this project", model.RouteName(method, path)))
	default:
		return apperror.Conflict(fmt.Sprintf(
			"another endpoint for %s already exists in this project", model.RouteName(method, path)))
	}
}

// Create validates in and stores it under projectID.
func (s *EndpointService) Create(ctx context.Context, projectID string, in EndpointInput) (*model.Endpoint, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, apperror.ValidationFailed("projectId", "project ID is required")
	}

	endpoint, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	if _, err := s.projects.GetProject(ctx, projectID); err != nil {
		return nil, s.storeError("create", projectID, "", err)
	}
	if err := s.checkRouteFree(ctx, projectID, endpoint.Method, endpoint.Path, ""); err != nil {
		return nil, s.storeError("create", projectID, "", err)
	}

	endpoint.ProjectID = projectID
	if err := s.endpoints.CreateEndpoint(ctx, endpoint); err != nil {
		return nil, s.storeError("create", projectID, "", err)
	}

	s.logger.Info("endpoint created",
		slog.String("id", endpoint.ID),
		slog.String("project_id", projectID),
		slog.String("route", endpoint.Name),
	)

	return endpoint, nil
}

// Get returns apperror.ErrNotFound unless the endpoint exists in projectID.
func (s *EndpointService) Get(ctx context.Context, projectID, id string) (*model.Endpoint, error) {
	projectID, id = strings.TrimSpace(projectID), strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "endpoint ID is required")
	}

	endpoint, err := s.endpoints.GetEndpoint(ctx, projectID, id)
	if err != nil {
		return nil, s.storeError("get", projectID, id, err)
	}
	return endpoint, nil
}

// List returns the project's endpoints newest first. An unknown project
// yields an empty list.
func (s *EndpointService) List(ctx context.Context, projectID string) ([]model.Endpoint, error) {
	endpoints, err := s.endpoints.ListEndpoints(ctx, strings.TrimSpace(projectID))
	if err != nil {
		return nil, s.storeError("list", projectID, "", err)
	}
	return endpoints, nil
}

// Update replaces the whole definition of endpoint id. The new route may
// equal the endpoint's current one but not any other endpoint's.
func (s *EndpointService) Update(ctx context.Context, projectID, id string, in EndpointInput) (*model.Endpoint, error) {
	projectID, id = strings.TrimSpace(projectID), strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "endpoint ID is required")
	}

	next, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	if err := s.checkRouteFree(ctx, projectID, next.Method, next.Path, id); err != nil {
		return nil, s.storeError("update", projectID, id, err)
	}

	headers := next.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	endpoint, err := s.endpoints.UpdateEndpoint(ctx, projectID, id, model.EndpointPatch{
		Name:       &next.Name,
		Method:     &next.Method,
		Path:       &next.Path,
		Response:   &next.Response,
		StatusCode: &next.StatusCode,
		Headers:    &headers,
	})
	if err != nil {
		return nil, s.storeError("update", projectID, id, err)
	}

	s.logger.Info("endpoint updated",
		slog.String("id", endpoint.ID),
		slog.String("project_id", projectID),
		slog.String("route", endpoint.Name),
	)

	return endpoint, nil
}

// Delete returns apperror.ErrNotFound unless the endpoint exists in projectID.
func (s *EndpointService) Delete(ctx context.Context, projectID, id string) error {
	projectID, id = strings.TrimSpace(projectID), strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "endpoint ID is required")
	}

	if err := s.endpoints.DeleteEndpoint(ctx, projectID, id); err != nil {
		return s.storeError("delete", projectID, id, err)
	}

	s.logger.Info("endpoint deleted",
		slog.String("id", id),
		slog.String("project_id", projectID),
	)
	return nil
}

// storeError passes taxonomy errors through untouched and logs anything
// else before wrapping it.
func (s *EndpointService) storeError(op, projectID, id string, err error) error {
	if isAppError(err) {
		return err
	}
	s.logger.Error("endpoint store failure",
		slog.String("op", op),
		slog.String("project_id", projectID),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%s endpoint: %w", op, err)
}

// isAppError reports whether err already belongs to the error taxonomy.
func isAppError(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr)
}
