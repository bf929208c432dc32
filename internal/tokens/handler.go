// Package tokens holds the placeholder token pages. Purchasing is not wired
// to any payment backend.
package tokens

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexusride/nexusride-web/internal/access"
	"github.com/nexusride/nexusride-web/internal/shared"
	"github.com/nexusride/nexusride-web/internal/view"
)

// Entry is one line of the token history.
type Entry struct {
	Date      string
	Activity  string
	RouteName string
	Status    string
}

// sampleHistory is shown until the backend exposes token activity.
var sampleHistory = []Entry{
	{Date: "2026-01-22", Activity: "Single ride token", RouteName: "Route-1", Status: "USED"},
	{Date: "2026-01-20", Activity: "Single ride token", RouteName: "Route-2", Status: "CANCELLED"},
	{Date: "2026-01-18", Activity: "Single ride token", RouteName: "Route-1", Status: "USED"},
}

// Handler serves the token pages.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	gate      *access.Gate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, gate *access.Gate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, templates: templates, csrf: csrf, gate: gate}
}

// MountRoutes registers token routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.gate.Require(access.PathTokenHistory)).Get(access.PathTokenHistory, h.showHistory)
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(access.PathTokenHistory))
		r.Post("/tokens/buy", h.unavailable("Buying tokens is not available yet."))
		r.Post("/tokens/cancel", h.unavailable("Cancelling tokens is not available yet."))
	})
}

type historyPageData struct {
	Entries []Entry
}

func (h *Handler) showHistory(w http.ResponseWriter, r *http.Request) {
	data := historyPageData{Entries: sampleHistory}
	if err := h.templates.Render(w, "pages/token_history.html", view.Page(r, h.csrf, "Token history", data)); err != nil {
		h.logger.Error("render token history", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) unavailable(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shared.SessionFromContext(r.Context()).AddFlash(shared.FlashMessage{Kind: shared.FlashInfo, Message: message})
		http.Redirect(w, r, access.PathDashboard, http.StatusSeeOther)
	}
}
