// Package dashboard serves the rider, subscriber and officer dashboards and
// the subscription request form.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nexusride/nexusride-web/internal/access"
	"github.com/nexusride/nexusride-web/internal/backend"
	"github.com/nexusride/nexusride-web/internal/shared"
	"github.com/nexusride/nexusride-web/internal/trips"
	"github.com/nexusride/nexusride-web/internal/view"
)

// submissionScope namespaces subscription form ids in the idempotency store.
const submissionScope = "subscription.request"

// Gateway is the slice of the backend client the dashboards use.
type Gateway interface {
	FetchTripAvailability(ctx context.Context, token string, filter backend.TripFilter) ([]backend.Trip, error)
	CreateSubscription(ctx context.Context, token string, req backend.SubscriptionRequest) (*backend.Subscription, error)
	ListSubscriptionRequests(ctx context.Context, token string) ([]backend.Subscription, error)
}

// Notifier announces new subscription requests to the transport office.
type Notifier interface {
	SubscriptionRequested(ctx context.Context, sub backend.Subscription, riderEmail string) error
}

// Handler serves the dashboard pages.
type Handler struct {
	logger    *slog.Logger
	gateway   Gateway
	templates *view.Engine
	csrf      *shared.CSRFManager
	gate      *access.Gate
	guard     shared.SubmissionGuard
	audit     shared.AuditRecorder
	notifier  Notifier
	validator *validator.Validate
	now       func() time.Time
}

// Options carries the optional collaborators of a Handler.
type Options struct {
	Guard    shared.SubmissionGuard
	Audit    shared.AuditRecorder
	Notifier Notifier
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, gateway Gateway, templates *view.Engine, csrf *shared.CSRFManager, gate *access.Gate, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		gateway:   gateway,
		templates: templates,
		csrf:      csrf,
		gate:      gate,
		guard:     opts.Guard,
		audit:     opts.Audit,
		notifier:  opts.Notifier,
		validator: newValidator(),
		now:       time.Now,
	}
}

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.gate.Require(access.PathDashboard, h.loadTodayTrips)).Get(access.PathDashboard, h.showRider)
	r.With(h.gate.Require(access.PathDashboard)).Post("/dashboard/subscribe", h.handleSubscribe)
	r.With(h.gate.Require(access.PathSubscriber, h.loadTodayTrips)).Get(access.PathSubscriber, h.showSubscriber)
	r.With(h.gate.Require(access.PathOfficerDashboard, h.loadRequests)).Get(access.PathOfficerDashboard, h.showOfficer)
}

type riderPageData struct {
	Banner       string
	Totals       trips.Totals
	Subscription *backend.Subscription
	Form         subscribeForm
	Errors       map[string]string
	SubmissionID string
	Months       []int
	Years        []int
	Routes       []trips.Route
}

type subscriberPageData struct {
	Banner       string
	Subscription *backend.Subscription
	Groups       []trips.RouteGroup
}

type officerPageData struct {
	Banner       string
	PendingCount int
}

func (h *Handler) loadTodayTrips(ctx context.Context, id shared.Identity) (any, error) {
	today := h.now()
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return h.gateway.FetchTripAvailability(ctx, id.Credential, backend.TripFilter{DateFrom: day, DateTo: day})
}

func (h *Handler) loadRequests(ctx context.Context, id shared.Identity) (any, error) {
	return h.gateway.ListSubscriptionRequests(ctx, id.Credential)
}

func (h *Handler) newRiderData() riderPageData {
	now := h.now()
	return riderPageData{
		Form:         defaultForm(now),
		Errors:       map[string]string{},
		SubmissionID: uuid.NewString(),
		Months:       monthOptions(),
		Years:        yearOptions(now),
		Routes:       trips.Catalog(),
	}
}

func (h *Handler) showRider(w http.ResponseWriter, r *http.Request) {
	grant, _ := access.GrantFromContext(r.Context())
	data := h.newRiderData()
	data.Subscription = grant.Lookup.Subscription
	if grant.Lookup.Err != nil {
		data.Banner = "We could not load your subscription status. Please try again shortly."
	}
	if grant.CompanionErr != nil {
		h.logger.Warn("fetch trips for dashboard", slog.Any("error", grant.CompanionErr))
		data.Banner = backend.Message(grant.CompanionErr, "Trip information is unavailable right now.")
	} else if list, ok := grant.Companion.([]backend.Trip); ok {
		data.Totals = trips.Sum(list)
	}
	h.render(w, r, http.StatusOK, "pages/dashboard.html", "Dashboard", data)
}

func (h *Handler) showSubscriber(w http.ResponseWriter, r *http.Request) {
	grant, _ := access.GrantFromContext(r.Context())
	data := subscriberPageData{Subscription: grant.Lookup.Subscription}
	if grant.CompanionErr != nil {
		h.logger.Warn("fetch trips for subscriber", slog.Any("error", grant.CompanionErr))
		data.Banner = backend.Message(grant.CompanionErr, "Trip information is unavailable right now.")
	} else if list, ok := grant.Companion.([]backend.Trip); ok {
		data.Groups = trips.GroupByRoute(routeTrips(list, data.Subscription))
	}
	h.render(w, r, http.StatusOK, "pages/subscriber.html", "My subscription", data)
}

// routeTrips narrows list to the subscription's route, derived from the stop
// when the backend leaves the route name out.
func routeTrips(list []backend.Trip, sub *backend.Subscription) []backend.Trip {
	if sub == nil {
		return list
	}
	name := sub.RouteName
	if name == "" {
		if route, ok := trips.RouteForStop(sub.StopName); ok {
			name = route.Name
		}
	}
	if name == "" {
		return list
	}
	return trips.OnRoute(list, name)
}

func (h *Handler) showOfficer(w http.ResponseWriter, r *http.Request) {
	grant, _ := access.GrantFromContext(r.Context())
	var data officerPageData
	if grant.CompanionErr != nil {
		h.logger.Warn("list subscription requests", slog.Any("error", grant.CompanionErr))
		data.Banner = backend.Message(grant.CompanionErr, "Subscription requests are unavailable right now.")
	} else if list, ok := grant.Companion.([]backend.Subscription); ok {
		data.PendingCount = countPending(list)
	}
	h.render(w, r, http.StatusOK, "pages/officer.html", "Transport office", data)
}

func countPending(list []backend.Subscription) int {
	n := 0
	for i := range list {
		if list[i].NormalizedStatus() == backend.StatusPending {
			n++
		}
	}
	return n
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	grant, _ := access.GrantFromContext(ctx)
	id := grant.Identity
	sess := shared.SessionFromContext(ctx)

	form := parseSubscribeForm(r)
	data := h.newRiderData()
	data.Form = form
	data.Subscription = grant.Lookup.Subscription
	if form.SubmissionID != "" {
		data.SubmissionID = form.SubmissionID
	}
	if errs := form.validate(h.validator, h.now()); len(errs) > 0 {
		data.Errors = errs
		h.render(w, r, http.StatusUnprocessableEntity, "pages/dashboard.html", "Dashboard", data)
		return
	}

	if h.guard != nil {
		if err := h.guard.CheckAndInsert(ctx, form.SubmissionID, submissionScope); err != nil {
			if errors.Is(err, shared.ErrDuplicateSubmission) {
				sess.AddFlash(shared.FlashMessage{Kind: shared.FlashInfo, Message: "This request was already submitted."})
				http.Redirect(w, r, access.PathSubscriber, http.StatusSeeOther)
				return
			}
			h.logger.Warn("idempotency check", slog.Any("error", err))
		}
	}

	req := backend.NewSubscriptionRequest(form.StartMonth, form.EndMonth, form.Year, form.StopName)
	sub, err := h.gateway.CreateSubscription(ctx, id.Credential, req)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		h.forget(form.SubmissionID)
		switch {
		case backend.IsAuth(err):
			access.Expire(w, r)
		case backend.IsValidation(err):
			field := "general"
			var be *backend.Error
			if errors.As(err, &be) {
				if mapped, ok := backendFields[be.Field]; ok {
					field = mapped
				}
			}
			data.Errors[field] = backend.Message(err, "Please check the form.")
			h.render(w, r, http.StatusUnprocessableEntity, "pages/dashboard.html", "Dashboard", data)
		default:
			h.logger.Warn("create subscription", slog.String("user", id.Email), slog.Any("error", err))
			data.Banner = backend.Message(err, "Your request could not be submitted. Please try again.")
			h.render(w, r, http.StatusBadGateway, "pages/dashboard.html", "Dashboard", data)
		}
		return
	}

	if h.audit != nil {
		entry := shared.AuditLog{
			Actor:    id.Email,
			Action:   shared.AuditSubscriptionRequest,
			Entity:   "subscription",
			EntityID: string(sub.ID),
			Meta:     map[string]any{"stop_name": req.StopName, "start_month": req.StartMonth, "end_month": req.EndMonth, "year": req.Year},
			At:       h.now().UTC(),
		}
		if err := h.audit.Record(ctx, entry); err != nil {
			h.logger.Warn("audit subscription request", slog.Any("error", err))
		}
	}
	if h.notifier != nil {
		if err := h.notifier.SubscriptionRequested(ctx, *sub, id.Email); err != nil {
			h.logger.Warn("enqueue subscription notification", slog.Any("error", err))
		}
	}

	sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: "Subscription request submitted. It is now pending approval."})
	http.Redirect(w, r, access.PathSubscriber, http.StatusSeeOther)
}

// forget releases a submission id so the rider can retry after a failure.
func (h *Handler) forget(submissionID string) {
	if h.guard == nil || submissionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.guard.Delete(ctx, submissionID, submissionScope); err != nil {
		h.logger.Warn("release submission id", slog.Any("error", err))
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	if err := h.templates.RenderStatus(w, status, name, view.Page(r, h.csrf, title, data)); err != nil {
		h.logger.Error("render dashboard", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
