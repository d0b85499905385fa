package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/mockapi/internal/service"
)

// EndpointHandler serves the endpoint half of the admin API. Every route
// is nested under a project: /api/projects/{id}/endpoints.
type EndpointHandler struct {
	svc    *service.EndpointService
	logger *slog.Logger
}

func NewEndpointHandler(svc *service.EndpointService, logger *slog.Logger) *EndpointHandler {
	return &EndpointHandler{
		svc:    svc,
		logger: logger,
	}
}

// endpointRequest is the body of both create and update.
//
// Response stays raw so the canned payload is stored exactly as sent.
// An absent "response" leaves it nil; "response": null yields the bytes
// `null`, which is a legitimate canned answer.
type endpointRequest struct {
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Response   json.RawMessage   `json:"response"`
	StatusCode *int              `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
}

func (req endpointRequest) input() service.EndpointInput {
	return service.EndpointInput{
		Method:     req.Method,
		Path:       req.Path,
		Response:   req.Response,
		StatusCode: req.StatusCode,
		Headers:    req.Headers,
	}
}

// HandleList returns a project's endpoints, newest first.
//
// HTTP: GET /api/projects/{id}/endpoints
func (h *EndpointHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.svc.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, endpoints)
}

// HandleCreate defines a new mock endpoint.
//
// HTTP: POST /api/projects/{id}/endpoints
// REQUEST BODY:
//
//	{"method": "GET", "path": "/users", "response": [...], "statusCode": 200, "headers": {...}}
//
// statusCode and headers are optional.
func (h *EndpointHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req endpointRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	endpoint, err := h.svc.Create(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, endpoint)
}

// HandleGet returns one endpoint of the project.
//
// HTTP: GET /api/projects/{id}/endpoints/{endpointId}
func (h *EndpointHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	endpoint, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "endpointId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, endpoint)
}

// HandleUpdate replaces an endpoint's definition.
//
// HTTP: PUT /api/projects/{id}/endpoints/{endpointId}
// REQUEST BODY: same as create.
func (h *EndpointHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req endpointRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	endpoint, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "endpointId"), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, endpoint)
}

// HandleDelete removes an endpoint.
//
// HTTP: DELETE /api/projects/{id}/endpoints/{endpointId}
func (h *EndpointHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "endpointId")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
