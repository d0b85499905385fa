package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/mockapi/internal/config"
	"github.com/sakif/mockapi/internal/repository/sqlite"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(config.Default().Server, logger, db)
}

func call(t *testing.T, ts *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

// TestDemoScenario walks the whole flow over real HTTP: create a project,
// define an endpoint with a relative path, hit it through /mock, miss
// another path, then delete the project and watch the mock disappear.
func TestDemoScenario(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	resp, body := call(t, ts, http.MethodPost, "/api/projects", `{"name":"Demo"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var project struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(body, &project))
	assert.Equal(t, "Demo", project.Name)

	resp, body = call(t, ts, http.MethodPost, "/api/projects/"+project.ID+"/endpoints",
		`{"method":"GET","path":"profile","response":{"ok":true},"statusCode":200}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var endpoint struct {
		ID   string `json:"id"`
		Path string `json:"path"`
	}
	require.NoError(t, json.Unmarshal(body, &endpoint))
	assert.Equal(t, "/profile", endpoint.Path)

	resp, body = call(t, ts, http.MethodGet, "/mock/"+project.ID+"/profile", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "true", resp.Header.Get("X-Mock-API"))
	assert.Equal(t, project.ID, resp.Header.Get("X-Project-ID"))
	assert.Equal(t, endpoint.ID, resp.Header.Get("X-Endpoint-ID"))

	resp, body = call(t, ts, http.MethodGet, "/mock/"+project.ID+"/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var miss map[string]string
	require.NoError(t, json.Unmarshal(body, &miss))
	assert.Equal(t, "Mock endpoint not found", miss["error"])
	assert.NotEmpty(t, miss["message"])

	resp, _ = call(t, ts, http.MethodHead, "/mock/"+project.ID+"/profile", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "HEAD is its own lookup key")

	resp, body = call(t, ts, http.MethodDelete, "/api/projects/"+project.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = call(t, ts, http.MethodGet, "/api/projects/"+project.ID+"/endpoints/"+endpoint.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = call(t, ts, http.MethodGet, "/mock/"+project.ID+"/profile", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResponseBodyRoundTripsExactly(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	resp, body := call(t, ts, http.MethodPost, "/api/projects", `{"name":"bytes"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var project struct{ ID string }
	require.NoError(t, json.Unmarshal(body, &project))

	const payload = `{"z":1,"a":[true,null,"<tag>&"],"n":1.50,"u":"é"}`
	resp, body = call(t, ts, http.MethodPost, "/api/projects/"+project.ID+"/endpoints",
		`{"method":"POST","path":"/echo","response":`+payload+`,"statusCode":418}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = call(t, ts, http.MethodPost, "/mock/"+project.ID+"/echo", `{"anything":1}`)
	assert.Equal(t, 418, resp.StatusCode)
	assert.Equal(t, payload, string(body), "key order, number formatting and escapes are preserved")
}

func TestHealthz(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	resp, body := call(t, ts, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestRecovererKeepsServerAlive(t *testing.T) {
	s := newTestServer(t)
	s.router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestServe_ShutsDownWhenContextEnds(t *testing.T) {
	s := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
