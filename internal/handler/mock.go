package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/mockapi/internal/service"
)

// MockHandler answers requests under /mock/{projectId}/... with the
// canned responses stored for that project.
type MockHandler struct {
	svc    *service.MockService
	logger *slog.Logger
}

func NewMockHandler(svc *service.MockService, logger *slog.Logger) *MockHandler {
	return &MockHandler{
		svc:    svc,
		logger: logger,
	}
}

// HandleMock serves a mock request.
//
// HTTP: ANY /mock/{projectId}/*
//
// The request method and everything after the project ID form the lookup
// key; query string and body are ignored. A trailing slash is forgiven
// when only the bare path is defined. For HEAD requests net/http
// drops the body and keeps the headers.
func (h *MockHandler) HandleMock(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")
	path := chi.URLParam(r, "*")

	resp, err := h.svc.Serve(r.Context(), projectID, r.Method, path)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(resp.StatusCode)

	// Statuses such as 204 and 304 forbid a body; http.ErrBodyNotAllowed
	// is expected there and not worth logging.
	if _, err := w.Write(resp.Body); err != nil && !errors.Is(err, http.ErrBodyNotAllowed) {
		h.logger.Debug("failed to write mock response", slog.String("error", err.Error()))
	}
}
