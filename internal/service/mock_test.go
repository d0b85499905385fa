package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/mockapi/internal/apperror"
	"github.com/sakif/mockapi/internal/model"
)

func TestServe_Hit(t *testing.T) {
	projects, endpoints, mock, _ := newTestServices(t)
	ctx := context.Background()

	project, err := projects.Create(ctx, "Demo", "")
	require.NoError(t, err)
	endpoint, err := endpoints.Create(ctx, project.ID, EndpointInput{
		Method: "GET", Path: "profile", Response: rawJSON(`{"ok":true}`),
	})
	require.NoError(t, err)

	resp, err := mock.Serve(ctx, project.ID, "GET", "/profile")
	require.NoError(t, err)

	assert.True(t, resp.Matched)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, endpoint.ID, resp.EndpointID)
	assert.Equal(t, "application/json", resp.Headers[HeaderContentType])
	assert.Equal(t, "true", resp.Headers[HeaderMockAPI])
	assert.Equal(t, project.ID, resp.Headers[HeaderProjectID])
	assert.Equal(t, endpoint.ID, resp.Headers[HeaderEndpointID])
}

func TestServe_NormalizesRequestPath(t *testing.T) {
	projects, endpoints, mock, _ := newTestServices(t)
	ctx := context.Background()

	project, _ := projects.Create(ctx, "Demo", "")
	_, err := endpoints.Create(ctx, project.ID, EndpointInput{Method: "GET", Path: "/", Response: rawJSON(`"root"`)})
	require.NoError(t, err)

	for _, raw := range []string{"", "/"} {
		resp, err := mock.Serve(ctx, project.ID, "GET", raw)
		require.NoError(t, err)
		assert.True(t, resp.Matched, "path %q should match the root endpoint", raw)
		assert.Equal(t, `"root"`, string(resp.Body))
	}
}

func TestServe_TrailingSlash(t *testing.T) {
	projects, endpoints, mock, _ := newTestServices(t)
	ctx := context.Background()

	project, _ := projects.Create(ctx, "Demo", "")
	profile, err := endpoints.Create(ctx, project.ID, EndpointInput{Method: "GET", Path: "/profile", Response: rawJSON(`"profile"`)})
	require.NoError(t, err)
	bare, err := endpoints.Create(ctx, project.ID, EndpointInput{Method: "GET", Path: "/users", Response: rawJSON(`"bare"`)})
	require.NoError(t, err)
	slashed, err := endpoints.Create(ctx, project.ID, EndpointInput{Method: "GET", Path: "/users/", Response: rawJSON(`"slashed"`)})
	require.NoError(t, err)

	tests := []struct {
		path   string
		wantID string
	}{
		{"/profile", profile.ID},
		{"/profile/", profile.ID},
		{"/users", bare.ID},
		{"/users/", slashed.ID},
		{"/profile//", ""},
		{"/missing/", ""},
	}
	for _, tt := range tests {
		resp, err := mock.Serve(ctx, project.ID, "GET", tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.wantID != "", resp.Matched, tt.path)
		assert.Equal(t, tt.wantID, resp.EndpointID, tt.path)
	}

	resp, err := mock.Serve(ctx, project.ID, "GET", "/missing/")
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body), "GET /missing/ in project")
}

func TestServe_StoredStatusAndCustomHeaders(t *testing.T) {
	projects, endpoints, mock, _ := newTestServices(t)
	ctx := context.Background()

	project, _ := projects.Create(ctx, "Demo", "")
	_, err := endpoints.Create(ctx, project.ID, EndpointInput{
		Method: "POST", Path: "/users", Response: rawJSON(`{"id":"u1"}`), StatusCode: intPtr(201),
		Headers: map[string]string{"Location": "/users/u1", "content-type": "text/plain"},
	})
	require.NoError(t, err)

	resp, err := mock.Serve(ctx, project.ID, "POST", "/users")
	require.NoError(t, err)

	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "/users/u1", resp.Headers["Location"])
	assert.Equal(t, "application/json", resp.Headers[HeaderContentType], "fixed headers win over custom ones")
	for name := range resp.Headers {
		if name != HeaderContentType {
			assert.NotEqual(t, "text/plain", resp.Headers[name])
		}
	}
}

func TestServe_Miss(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"unknown path", "GET", "/missing"},
		{"method mismatch", "POST", "/profile"},
		{"head never matches", "HEAD", "/profile"},
		{"options never matches", "OPTIONS", "/profile"},
		{"lower-case method is not rewritten", "get", "/profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			projects, endpoints, mock, _ := newTestServices(t)
			ctx := context.Background()
			project, _ := projects.Create(ctx, "Demo", "")
			_, err := endpoints.Create(ctx, project.ID, EndpointInput{Method: "GET", Path: "/profile", Response: rawJSON(`{}`)})
			require.NoError(t, err)

			resp, err := mock.Serve(ctx, project.ID, tt.method, tt.path)
			require.NoError(t, err, "a miss is not an error")

			assert.False(t, resp.Matched)
			assert.Equal(t, 404, resp.StatusCode)
			assert.JSONEq(t,
				`{"error":"Mock endpoint not found","message":"No mock endpoint found for `+tt.method+` `+tt.path+` in project `+project.ID+`"}`,
				string(resp.Body))
		})
	}
}

func TestServe_UnknownProjectIsAMiss(t *testing.T) {
	_, _, mock, _ := newTestServices(t)

	resp, err := mock.Serve(context.Background(), "p1", "GET", "x")
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.JSONEq(t,
		`{"error":"Mock endpoint not found","message":"No mock endpoint found for GET /x in project p1"}`,
		string(resp.Body))
}

func TestServe_CorruptStoredResponseIsInternal(t *testing.T) {
	_, _, mock, store := newTestServices(t)
	store.putEndpoint(model.Endpoint{
		ID: "e-bad", ProjectID: "p1", Method: model.MethodGet, Path: "/bad",
		Response: rawJSON(`{"broken`), StatusCode: 200,
	})

	_, err := mock.Serve(context.Background(), "p1", "GET", "/bad")
	assert.True(t, errors.Is(err, apperror.ErrInternal), "error = %v, want ErrInternal", err)
}

func TestServe_StoreFailureIsInternal(t *testing.T) {
	_, _, mock, store := newTestServices(t)
	store.failWith = errors.New("database is locked")

	_, err := mock.Serve(context.Background(), "p1", "GET", "/x")
	assert.True(t, errors.Is(err, apperror.ErrInternal), "error = %v, want ErrInternal", err)
	assert.False(t, errors.Is(err, apperror.ErrNotFound))
}

func TestServe_SeesEditsImmediately(t *testing.T) {
	projects, endpoints, mock, _ := newTestServices(t)
	ctx := context.Background()

	project, _ := projects.Create(ctx, "Demo", "")
	created, err := endpoints.Create(ctx, project.ID, EndpointInput{Method: "GET", Path: "/v", Response: rawJSON(`1`)})
	require.NoError(t, err)

	_, err = endpoints.Update(ctx, project.ID, created.ID, EndpointInput{Method: "GET", Path: "/v", Response: rawJSON(`2`)})
	require.NoError(t, err)

	resp, err := mock.Serve(ctx, project.ID, "GET", "/v")
	require.NoError(t, err)
	assert.Equal(t, "2", string(resp.Body))

	require.NoError(t, endpoints.Delete(ctx, project.ID, created.ID))
	resp, err = mock.Serve(ctx, project.ID, "GET", "/v")
	require.NoError(t, err)
	assert.False(t, resp.Matched)
}
