package model

// MockResponse is a rendered answer to a mock request.
//
// Matched is false when no endpoint is configured for the request; the
// response then carries a 404 and a structured error body. That is a
// normal outcome, not a failure of the server.
type MockResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Matched    bool
	EndpointID string
}
