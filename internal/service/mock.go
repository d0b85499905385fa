package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/mockapi/internal/apperror"
	"github.com/sakif/mockapi/internal/model"
	"github.com/sakif/mockapi/internal/repository"
)

// Headers stamped on every served mock response. They override any custom
// header of the same name stored with the endpoint.
const (
	HeaderContentType = "Content-Type"
	HeaderMockAPI     = "X-Mock-API"
	HeaderProjectID   = "X-Project-ID"
	HeaderEndpointID  = "X-Endpoint-ID"
)

// MockService answers mock requests from the stored endpoint definitions.
//
// Every call reads the store. There is no cache, so an edit made through
// the admin API is visible to the very next mock request.
type MockService struct {
	endpoints repository.EndpointRepository
	logger    *slog.Logger
}

func NewMockService(endpoints repository.EndpointRepository, logger *slog.Logger) *MockService {
	return &MockService{
		endpoints: endpoints,
		logger:    logger,
	}
}

type notFoundBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Serve finds the endpoint of projectID registered for method and rawPath
// and renders it.
//
// The method is used verbatim as part of the lookup key, so HEAD, OPTIONS
// or anything else outside the stored set simply never matches. A path
// with one trailing slash is tried as given first, then without the slash,
// so "/users/" reaches "/users" unless an endpoint claims "/users/". A miss is
// a normal outcome: it comes back as a 404 MockResponse with Matched set
// to false, not as an error. Errors are reserved for store failures and
// corrupt stored payloads, and always wrap apperror.ErrInternal.
func (s *MockService) Serve(ctx context.Context, projectID, method, rawPath string) (*model.MockResponse, error) {
	path := model.NormalizePath(rawPath)

	endpoint, err := s.endpoints.FindEndpointByRoute(ctx, projectID, model.Method(method), path)
	if errors.Is(err, apperror.ErrNotFound) && len(path) > 1 && strings.HasSuffix(path, "/") {
		endpoint, err = s.endpoints.FindEndpointByRoute(ctx, projectID, model.Method(method), strings.TrimSuffix(path, "/"))
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return notFound(projectID, method, path), nil
	}
	if err != nil {
		s.logger.Error("mock lookup failed",
			slog.String("project_id", projectID),
			slog.String("route", method+" "+path),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal("failed to serve mock endpoint", err)
	}

	if !json.Valid(endpoint.Response) {
		err := fmt.Errorf("endpoint %s holds malformed response JSON", endpoint.ID)
		s.logger.Error("mock response corrupt",
			slog.String("project_id", projectID),
			slog.String("endpoint_id", endpoint.ID),
		)
		return nil, apperror.Internal("failed to serve mock endpoint", err)
	}

	headers := make(map[string]string, len(endpoint.Headers)+4)
	for name, value := range endpoint.Headers {
		if !isReservedHeader(name) {
			headers[name] = value
		}
	}
	headers[HeaderContentType] = "application/json"
	headers[HeaderMockAPI] = "true"
	headers[HeaderProjectID] = projectID
	headers[HeaderEndpointID] = endpoint.ID

	return &model.MockResponse{
		StatusCode: endpoint.StatusCode,
		Headers:    headers,
		Body:       endpoint.Response,
		Matched:    true,
		EndpointID: endpoint.ID,
	}, nil
}

func isReservedHeader(name string) bool {
	for _, reserved := range []string{HeaderContentType, HeaderMockAPI, HeaderProjectID, HeaderEndpointID} {
		if strings.EqualFold(name, reserved) {
			return true
		}
	}
	return false
}

func notFound(projectID, method, path string) *model.MockResponse {
	// Marshalling two plain strings cannot fail.
	body, _ := json.Marshal(notFoundBody{
		Error:   "Mock endpoint not found",
		Message: fmt.Sprintf("No mock endpoint found for %s %s in project %s", method, path, projectID),
	})
	return &model.MockResponse{
		StatusCode: 404,
		Headers:    map[string]string{HeaderContentType: "application/json"},
		Body:       body,
		Matched:    false,
	}
}
