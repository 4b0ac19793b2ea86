package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vilaca/triage-dashboard/internal/api"
	"github.com/vilaca/triage-dashboard/internal/domain"
	"github.com/vilaca/triage-dashboard/internal/export"
	"github.com/vilaca/triage-dashboard/internal/service"
	"github.com/vilaca/triage-dashboard/internal/store"
)

// requestTimeout bounds a full organization fetch triggered by one request.
const requestTimeout = 2 * time.Minute

// maxBodyBytes caps PUT bodies.
const maxBodyBytes = 1 << 20

// IssueFetcher interface for upstream issue listing (Dependency Inversion Principle).
type IssueFetcher interface {
	Fetch(ctx context.Context, org string, exclude map[int64]struct{}) (*domain.FetchResult, error)
}

// TriageService interface for the persisted triage workflow.
type TriageService interface {
	Sync(ctx context.Context) ([]domain.Issue, error)
	List(ctx context.Context) ([]domain.Issue, error)
	Issueless() []domain.IssuelessRepo
	UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Issue, error)
	Export(ctx context.Context, w io.Writer) error
}

// Handler handles HTTP requests for the dashboard.
// Each handler method has a Single Responsibility (SRP).
type Handler struct {
	renderer        Renderer
	logger          *slog.Logger
	fetcher         IssueFetcher
	triage          TriageService
	org             string
	tokenConfigured bool
}

// HandlerConfig holds configuration for creating a new Handler
type HandlerConfig struct {
	Renderer        Renderer
	Logger          *slog.Logger
	Fetcher         IssueFetcher
	Triage          TriageService
	Org             string
	TokenConfigured bool
}

// NewHandler creates a new Handler with injected dependencies (Dependency Inversion Principle).
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		renderer:        cfg.Renderer,
		logger:          cfg.Logger,
		fetcher:         cfg.Fetcher,
		triage:          cfg.Triage,
		org:             cfg.Org,
		tokenConfigured: cfg.TokenConfigured,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/github", h.handleGitHub)
	mux.HandleFunc("GET /api/issues", h.handleListIssues)
	mux.HandleFunc("PUT /api/issues", h.handleUpdateIssue)
	mux.HandleFunc("GET /api/issues/export.csv", h.handleExport)
}

// handleHealth serves the health check endpoint.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := h.renderer.RenderHealth(w); err != nil {
		h.logger.Error("failed to render health", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// handleIndex serves the triage overview page from persisted state only.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	issues, err := h.triage.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list issues", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	view := NewIndexView(h.org, issues, h.triage.Issueless())
	if err := h.renderer.RenderIndex(w, view); err != nil {
		h.logger.Error("failed to render index", "error", err)
	}
}

// handleGitHub returns open issues of the organization minus the ids
// listed in validIds and invalidIds.
func (h *Handler) handleGitHub(w http.ResponseWriter, r *http.Request) {
	if !h.tokenConfigured {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "GitHub token is not configured"})
		return
	}
	if h.org == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "GitHub organization is not configured"})
		return
	}

	query := r.URL.Query()
	exclude := make(map[int64]struct{})
	for _, id := range ParseIDs(query.Get("validIds")) {
		exclude[id] = struct{}{}
	}
	for _, id := range ParseIDs(query.Get("invalidIds")) {
		exclude[id] = struct{}{}
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := h.fetcher.Fetch(ctx, h.org, exclude)
	if err != nil {
		h.writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeFetchError(w http.ResponseWriter, err error) {
	h.logger.Error("failed to fetch issues", "org", h.org, "error", err)

	var fetchErr *service.FetchError
	if !errors.As(err, &fetchErr) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to fetch issues"})
		return
	}

	status := api.StatusCode(err)
	body := ""
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		body = apiErr.Body
	} else {
		body = fetchErr.Err.Error()
	}
	if status < 400 {
		status = http.StatusInternalServerError
	}

	message := "Failed to fetch teams"
	if fetchErr.Stage == service.StageRepos {
		message = "Failed to fetch repos"
	}
	writeJSON(w, status, map[string]string{"message": message, "error": body})
}

// handleListIssues syncs upstream issues into the store and returns every record.
func (h *Handler) handleListIssues(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	issues, err := h.triage.Sync(ctx)
	if err != nil {
		h.logger.Error("failed to sync issues", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch issues"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

type updateRequest struct {
	ID     json.RawMessage `json:"id"`
	Status string          `json:"status"`
}

// handleUpdateIssue sets the status of a persisted issue.
func (h *Handler) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	id := decodeID(req.ID)
	if id == "" || req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing fields"})
		return
	}

	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid status"})
		return
	}

	updated, err := h.triage.UpdateStatus(r.Context(), id, status)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Issue not found"})
	case err != nil:
		h.logger.Error("failed to update issue", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update issue"})
	default:
		writeJSON(w, http.StatusOK, updated)
	}
}

// handleExport streams every persisted record as a CSV download.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf strings.Builder
	err := h.triage.Export(r.Context(), &buf)
	switch {
	case errors.Is(err, export.ErrNoRecords):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No issues to export"})
		return
	case err != nil:
		h.logger.Error("failed to export issues", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to export issues"})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="issues.csv"`)
	io.WriteString(w, buf.String())
}

// ParseIDs parses a comma-separated id list, dropping anything that is not an integer.
func ParseIDs(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// decodeID accepts the id as a JSON string or number.
func decodeID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
