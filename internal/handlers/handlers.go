package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/runesmith/dashboard/internal/dashboard"
	"github.com/runesmith/dashboard/internal/db"
	"github.com/runesmith/dashboard/internal/dispatch"
	"github.com/runesmith/dashboard/internal/live"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	App     *dashboard.App
	DB      *db.DB
	Hub     *live.Hub
	Version string
	Commit  string
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Health handles GET /healthz. It needs no auth and returns 503 when the
// preference database is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.Version,
		"commit":  h.Commit,
		"poller":  string(h.App.PollerState()),
	})
}

// Dashboard handles GET /api/v1/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.App.View())
}

// Items handles GET /api/v1/items. The catalog is fetched from the backend
// on every call; on failure the previous catalog is returned and a toast
// records the error.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	h.App.FetchItems(r.Context())
	writeJSON(w, http.StatusOK, h.App.Items())
}

// Forge handles POST /api/v1/forge.
func (h *Handler) Forge(w http.ResponseWriter, r *http.Request) {
	res := h.App.Forge(r.Context())

	status := http.StatusCreated
	switch res.Outcome {
	case dispatch.RateLimited:
		status = http.StatusTooManyRequests
		if res.RetryAfter != "" {
			w.Header().Set("Retry-After", res.RetryAfter)
		}
	case dispatch.Failed, dispatch.RequestFailed:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

type themeBody struct {
	Theme string `json:"theme"`
}

// GetTheme handles GET /api/v1/theme.
func (h *Handler) GetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.DB.Theme()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load theme")
		return
	}
	writeJSON(w, http.StatusOK, themeBody{Theme: theme})
}

// PutTheme handles PUT /api/v1/theme.
func (h *Handler) PutTheme(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4*1024)
	var req themeBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !db.ValidThemes[req.Theme] {
		writeError(w, http.StatusBadRequest, "theme must be light or dark")
		return
	}
	if err := h.DB.SetTheme(req.Theme); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store theme")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Live handles GET /api/v1/live by upgrading to a websocket feed of views.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	h.Hub.Handle(w, r)
}
