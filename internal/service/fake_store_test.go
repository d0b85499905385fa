package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/sakif/mockapi/internal/apperror"
	"github.com/sakif/mockapi/internal/model"
	"github.com/sakif/mockapi/internal/repository"
)

// fakeStore is an in-memory stand-in for the SQLite store. It keeps the
// same observable contract: newest-first lists, route uniqueness, scoped
// endpoint lookups and cascade delete.
//
// Setting failWith makes every call return that error, which is how tests
// simulate the database being unavailable.
type fakeStore struct {
	projects      map[string]*model.Project
	endpoints     map[string]*model.Endpoint
	projectOrder  []string
	endpointOrder []string
	nextID        int
	failWith      error
}

var (
	_ repository.ProjectRepository  = (*fakeStore)(nil)
	_ repository.EndpointRepository = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects:  make(map[string]*model.Project),
		endpoints: make(map[string]*model.Endpoint),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) CreateProject(_ context.Context, project *model.Project) error {
	if f.failWith != nil {
		return f.failWith
	}
	project.ID = f.id("p")
	stored := *project
	f.projects[project.ID] = &stored
	f.projectOrder = append(f.projectOrder, project.ID)
	return nil
}

func (f *fakeStore) GetProject(_ context.Context, id string) (*model.Project, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	p, ok := f.projects[id]
	if !ok {
		return nil, apperror.NotFound("project", id)
	}
	result := *p
	return &result, nil
}

func (f *fakeStore) ListProjects(_ context.Context, opts repository.ListOptions) ([]model.Project, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	result := []model.Project{}
	for i := len(f.projectOrder) - 1; i >= 0; i-- {
		if p, ok := f.projects[f.projectOrder[i]]; ok {
			result = append(result, *p)
		}
	}
	if opts.Offset >= len(result) {
		return []model.Project{}, nil
	}
	result = result[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (f *fakeStore) UpdateProject(_ context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	p, ok := f.projects[id]
	if !ok {
		return nil, apperror.NotFound("project", id)
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	result := *p
	return &result, nil
}

func (f *fakeStore) DeleteProject(_ context.Context, id string) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.projects[id]; !ok {
		return apperror.NotFound("project", id)
	}
	delete(f.projects, id)
	for eid, e := range f.endpoints {
		if e.ProjectID == id {
			delete(f.endpoints, eid)
		}
	}
	return nil
}

func (f *fakeStore) routeTaken(projectID string, method model.Method, path, exceptID string) bool {
	for _, e := range f.endpoints {
		if e.ProjectID == projectID && e.Method == method && e.Path == path && e.ID != exceptID {
			return true
		}
	}
	return false
}

func (f *fakeStore) CreateEndpoint(_ context.Context, endpoint *model.Endpoint) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.projects[endpoint.ProjectID]; !ok {
		return apperror.NotFound("project", endpoint.ProjectID)
	}
	if f.routeTaken(endpoint.ProjectID, endpoint.Method, endpoint.Path, "") {
		return apperror.Conflict("duplicate route")
	}
	endpoint.ID = f.id("e")
	stored := *endpoint
	f.endpoints[endpoint.ID] = &stored
	f.endpointOrder = append(f.endpointOrder, endpoint.ID)
	return nil
}

func (f *fakeStore) GetEndpoint(_ context.Context, projectID, id string) (*model.Endpoint, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	e, ok := f.endpoints[id]
	if !ok || e.ProjectID != projectID {
		return nil, apperror.NotFound("endpoint", id)
	}
	result := *e
	return &result, nil
}

func (f *fakeStore) FindEndpointByRoute(_ context.Context, projectID string, method model.Method, path string) (*model.Endpoint, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, e := range f.endpoints {
		if e.ProjectID == projectID && e.Method == method && e.Path == path {
			result := *e
			return &result, nil
		}
	}
	return nil, apperror.NotFound("endpoint", model.RouteName(method, path))
}

func (f *fakeStore) ListEndpoints(_ context.Context, projectID string) ([]model.Endpoint, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	result := []model.Endpoint{}
	for i := len(f.endpointOrder) - 1; i >= 0; i-- {
		if e, ok := f.endpoints[f.endpointOrder[i]]; ok && e.ProjectID == projectID {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (f *fakeStore) UpdateEndpoint(_ context.Context, projectID, id string, patch model.EndpointPatch) (*model.Endpoint, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	e, ok := f.endpoints[id]
	if !ok || e.ProjectID != projectID {
		return nil, apperror.NotFound("endpoint", id)
	}
	next := *e
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Method != nil {
		next.Method = *patch.Method
	}
	if patch.Path != nil {
		next.Path = *patch.Path
	}
	if patch.Response != nil {
		next.Response = *patch.Response
	}
	if patch.StatusCode != nil {
		next.StatusCode = *patch.StatusCode
	}
	if patch.Headers != nil {
		next.Headers = *patch.Headers
		if len(next.Headers) == 0 {
			next.Headers = nil
		}
	}
	if f.routeTaken(projectID, next.Method, next.Path, id) {
		return nil, apperror.Conflict("duplicate route")
	}
	f.endpoints[id] = &next
	result := next
	return &result, nil
}

func (f *fakeStore) DeleteEndpoint(_ context.Context, projectID, id string) error {
	if f.failWith != nil {
		return f.failWith
	}
	e, ok := f.endpoints[id]
	if !ok || e.ProjectID != projectID {
		return apperror.NotFound("endpoint", id)
	}
	delete(f.endpoints, id)
	return nil
}

// putEndpoint stores e as-is, bypassing validation. Tests use it to plant
// rows the services would never write.
func (f *fakeStore) putEndpoint(e model.Endpoint) {
	f.endpoints[e.ID] = &e
	f.endpointOrder = append(f.endpointOrder, e.ID)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServices wires all three services to one fake store.
func newTestServices(t *testing.T) (*ProjectService, *EndpointService, *MockService, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	logger := discardLogger()
	return NewProjectService(store, logger),
		NewEndpointService(store, store, logger),
		NewMockService(store, logger),
		store
}

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func rawJSON(s string) json.RawMessage { return json.RawMessage(s) }
