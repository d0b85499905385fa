package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Method is an HTTP method an endpoint can be registered for.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
	MethodPatch  Method = "PATCH"
)

// Methods is the fixed set of methods an endpoint may use.
var Methods = []Method{MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch}

// Status code bounds and default for stored endpoints. 1xx codes are
// excluded: net/http writes them as informational responses and then
// sends an implicit 200, so the stored code would never be the final one.
const (
	DefaultStatusCode = 200
	MinStatusCode     = 200
	MaxStatusCode     = 599
)

// ParseMethod maps s (any case, surrounding space ignored) onto the
// supported set. The second result is false for anything else,
// including HEAD and OPTIONS.
func ParseMethod(s string) (Method, bool) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Methods {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// NormalizePath makes p begin with "/". An empty path becomes "/".
// Normalizing twice gives the same result as normalizing once.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// RouteName is the display name stored with an endpoint, e.g. "GET /users".
func RouteName(method Method, path string) string {
	return string(method) + " " + path
}

// Endpoint is a stored definition of how to answer one (method, path)
// pair within a project.
//
// Response holds compact JSON exactly as it will be served.
type Endpoint struct {
	ID         string            `json:"id"`
	ProjectID  string            `json:"projectId"`
	Name       string            `json:"name"`
	Method     Method            `json:"method"`
	Path       string            `json:"path"`
	Response   json.RawMessage   `json:"response"`
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// EndpointPatch lists the endpoint fields an update may change.
// A nil field is left untouched; a non-nil Headers pointing at an
// empty map clears the stored headers.
type EndpointPatch struct {
	Name       *string
	Method     *Method
	Path       *string
	Response   *json.RawMessage
	StatusCode *int
	Headers    *map[string]string
}

// IsEmpty reports whether the patch changes nothing.
func (p EndpointPatch) IsEmpty() bool {
	return p.Name == nil && p.Method == nil && p.Path == nil &&
		p.Response == nil && p.StatusCode == nil && p.Headers == nil
}
