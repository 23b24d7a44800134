package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-flow/pkg/flowexec"
	"github.com/tendant/simple-flow/pkg/flowplan"
	"github.com/tendant/simple-flow/pkg/flowtoken"
)

// SessionCookieName identifies the browser session the executor parks
// plans under.
const SessionCookieName = "flow_session"

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler exposes the flow executor over HTTP
type Handler struct {
	executor *flowexec.Executor
}

// NewHandler creates a new flow API handler
func NewHandler(executor *flowexec.Executor) *Handler {
	return &Handler{executor: executor}
}

// Routes mounts the flow endpoints
func (h *Handler) Routes(r chi.Router) {
	r.Get("/flows/{slug}", h.GetFlow)
	r.Post("/flows/{slug}", h.PostFlow)
}

// GetFlow handles GET /flows/{slug}. A flow_token query parameter
// resumes the tokenized plan; otherwise the session's parked plan
// continues, or a fresh flow begins.
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	sessionID := h.sessionID(w, r)

	if key := r.URL.Query().Get(flowexec.QSKeyToken); key != "" {
		result, err := h.executor.RestoreFromToken(r.Context(), sessionID, key)
		if err == nil {
			h.renderResult(w, r, result)
			return
		}
		if !errors.Is(err, flowtoken.ErrTokenNotFound) {
			h.renderError(w, r, err)
			return
		}
		// Unknown or consumed token; fall back to the session's plan
		slog.Info("Flow token not found, continuing session flow", "flow", slug)
	}

	result, err := h.executor.GetChallenge(r.Context(), sessionID, slug)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.renderResult(w, r, result)
}

// PostFlow handles POST /flows/{slug}, submitting the client's response
// to the current stage.
func (h *Handler) PostFlow(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	sessionID := h.sessionID(w, r)

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	result, err := h.executor.SubmitResponse(r.Context(), sessionID, slug, body)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.renderResult(w, r, result)
}

func (h *Handler) renderResult(w http.ResponseWriter, r *http.Request, result *flowexec.ExecutionResult) {
	status := http.StatusOK
	if result.Status == flowexec.StatusStageInvalid && result.Challenge == nil {
		// Aborted flow, nothing to retry
		status = http.StatusBadRequest
	}
	render.Status(r, status)
	render.JSON(w, r, result)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "An error occurred while executing the flow"

	switch {
	case errors.Is(err, flowexec.ErrNoActiveFlow):
		status = http.StatusNotFound
		message = "No active flow for this session"
	case errors.Is(err, flowplan.ErrUnknownFlow):
		status = http.StatusNotFound
		message = "Unknown flow"
	case errors.Is(err, flowexec.ErrUnknownStage):
		slog.Error("Plan references unregistered stage", "error", err)
		message = "Flow is misconfigured"
	case errors.Is(err, flowtoken.ErrInvalidKey), errors.Is(err, flowplan.ErrInvalidSnapshot):
		status = http.StatusBadRequest
		message = "Invalid flow token"
	default:
		slog.Error("Flow execution failed", "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message})
}

// sessionID reads the session cookie, minting one when absent
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
	return id
}
