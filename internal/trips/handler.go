package trips

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nexusride/nexusride-web/internal/access"
	"github.com/nexusride/nexusride-web/internal/backend"
	"github.com/nexusride/nexusride-web/internal/shared"
	"github.com/nexusride/nexusride-web/internal/view"
)

// Source is the slice of the backend gateway serving trip snapshots.
type Source interface {
	FetchTripAvailability(ctx context.Context, token string, filter backend.TripFilter) ([]backend.Trip, error)
}

// Handler serves the seat availability page.
type Handler struct {
	logger    *slog.Logger
	source    Source
	templates *view.Engine
	csrf      *shared.CSRFManager
	gate      *access.Gate
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, source Source, templates *view.Engine, csrf *shared.CSRFManager, gate *access.Gate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		source:    source,
		templates: templates,
		csrf:      csrf,
		gate:      gate,
		validator: validator.New(),
	}
}

// MountRoutes registers trip routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.gate.Require(access.PathSeatAvailability)).Get(access.PathSeatAvailability, h.showAvailability)
}

type filterForm struct {
	DateFrom string `validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `validate:"omitempty,datetime=2006-01-02"`
	RouteID  string `validate:"omitempty,max=64"`
}

type availabilityPageData struct {
	Filter filterForm
	Errors map[string]string
	Banner string
	Routes []Route
	Groups []RouteGroup
	Totals Totals
}

// parseFilter validates the query filters. Invalid input yields an empty
// filter plus a message for the page.
func (h *Handler) parseFilter(form filterForm) (backend.TripFilter, string) {
	if err := h.validator.Struct(form); err != nil {
		return backend.TripFilter{}, "Dates must use the YYYY-MM-DD format."
	}
	var filter backend.TripFilter
	if form.DateFrom != "" {
		filter.DateFrom, _ = time.Parse(time.DateOnly, form.DateFrom)
	}
	if form.DateTo != "" {
		filter.DateTo, _ = time.Parse(time.DateOnly, form.DateTo)
	}
	if !filter.DateFrom.IsZero() && !filter.DateTo.IsZero() && filter.DateTo.Before(filter.DateFrom) {
		return backend.TripFilter{}, "The end date must not be before the start date."
	}
	if form.RouteID != "" {
		if _, ok := RouteByID(form.RouteID); !ok {
			return backend.TripFilter{}, "Unknown route."
		}
		filter.RouteID = form.RouteID
	}
	return filter, ""
}

func (h *Handler) showAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := shared.IdentityFromContext(ctx)
	q := r.URL.Query()
	form := filterForm{
		DateFrom: q.Get("date_from"),
		DateTo:   q.Get("date_to"),
		RouteID:  q.Get("route_id"),
	}
	data := availabilityPageData{Filter: form, Errors: map[string]string{}, Routes: Catalog()}

	filter, problem := h.parseFilter(form)
	if problem != "" {
		data.Errors["general"] = problem
	}

	trips, err := h.source.FetchTripAvailability(ctx, id.Credential, filter)
	if ctx.Err() != nil {
		return
	}
	switch {
	case backend.IsAuth(err):
		access.Expire(w, r)
		return
	case err != nil:
		h.logger.Warn("fetch trip availability", slog.Any("error", err))
		data.Banner = backend.Message(err, "Seat availability is unavailable right now. Please try again.")
	default:
		data.Groups = GroupByRoute(trips)
		data.Totals = Sum(trips)
	}

	status := http.StatusOK
	if problem != "" {
		status = http.StatusUnprocessableEntity
	}
	if err := h.templates.RenderStatus(w, status, "pages/seat_availability.html", view.Page(r, h.csrf, "Seat availability", data)); err != nil {
		h.logger.Error("render seat availability", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
