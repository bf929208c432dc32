// Package approvals lets the transport officer review subscription requests.
package approvals

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nexusride/nexusride-web/internal/access"
	"github.com/nexusride/nexusride-web/internal/backend"
	"github.com/nexusride/nexusride-web/internal/shared"
	"github.com/nexusride/nexusride-web/internal/view"
)

// Decision verbs.
const (
	DecisionApprove = "approve"
	DecisionDecline = "decline"
)

// Gateway is the slice of the backend client used by the officer pages.
type Gateway interface {
	ListSubscriptionRequests(ctx context.Context, token string) ([]backend.Subscription, error)
	ApproveSubscriptionRequest(ctx context.Context, token, id string) (*backend.Subscription, error)
	DeclineSubscriptionRequest(ctx context.Context, token, id string) (*backend.Subscription, error)
}

// Notifier tells the rider about the officer's decision.
type Notifier interface {
	SubscriptionDecided(ctx context.Context, sub backend.Subscription, decision, officerEmail string) error
}

// Handler serves /subscription-requests.
type Handler struct {
	logger    *slog.Logger
	gateway   Gateway
	templates *view.Engine
	csrf      *shared.CSRFManager
	gate      *access.Gate
	audit     shared.AuditRecorder
	notifier  Notifier
}

// NewHandler constructs a Handler. audit and notifier may be nil.
func NewHandler(logger *slog.Logger, gateway Gateway, templates *view.Engine, csrf *shared.CSRFManager, gate *access.Gate, audit shared.AuditRecorder, notifier Notifier) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		gateway:   gateway,
		templates: templates,
		csrf:      csrf,
		gate:      gate,
		audit:     audit,
		notifier:  notifier,
	}
}

// MountRoutes registers officer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(access.PathSubscriptionRequests))
		r.Get(access.PathSubscriptionRequests, h.list)
		r.Post(access.PathSubscriptionRequests+"/{id}/approve", h.decide(DecisionApprove))
		r.Post(access.PathSubscriptionRequests+"/{id}/decline", h.decide(DecisionDecline))
	})
}

type listPageData struct {
	Banner   string
	Requests []backend.Subscription
}

// SortRequests orders pending requests first, then by creation time, newest first.
func SortRequests(list []backend.Subscription) {
	sort.SliceStable(list, func(i, j int) bool {
		pi := list[i].NormalizedStatus() == backend.StatusPending
		pj := list[j].NormalizedStatus() == backend.StatusPending
		if pi != pj {
			return pi
		}
		return list[i].CreatedAt > list[j].CreatedAt
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	grant, _ := access.GrantFromContext(ctx)

	var data listPageData
	requests, err := h.gateway.ListSubscriptionRequests(ctx, grant.Identity.Credential)
	if ctx.Err() != nil {
		return
	}
	switch {
	case backend.IsAuth(err):
		access.Expire(w, r)
		return
	case err != nil:
		h.logger.Warn("list subscription requests", slog.Any("error", err))
		data.Banner = backend.Message(err, "Subscription requests are unavailable right now.")
	default:
		SortRequests(requests)
		data.Requests = requests
	}

	if err := h.templates.Render(w, "pages/subscription_requests.html", view.Page(r, h.csrf, "Subscription requests", data)); err != nil {
		h.logger.Error("render subscription requests", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) decide(verb string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		grant, _ := access.GrantFromContext(ctx)
		officer := grant.Identity
		sess := shared.SessionFromContext(ctx)
		id := chi.URLParam(r, "id")

		var (
			sub *backend.Subscription
			err error
		)
		if verb == DecisionApprove {
			sub, err = h.gateway.ApproveSubscriptionRequest(ctx, officer.Credential, id)
		} else {
			sub, err = h.gateway.DeclineSubscriptionRequest(ctx, officer.Credential, id)
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if backend.IsAuth(err) {
				access.Expire(w, r)
				return
			}
			h.logger.Warn("subscription decision failed", slog.String("decision", verb), slog.String("id", id), slog.Any("error", err))
			sess.AddFlash(shared.FlashMessage{Kind: shared.FlashError, Message: backend.Message(err, "The request could not be updated. Please try again.")})
			http.Redirect(w, r, access.PathSubscriptionRequests, http.StatusSeeOther)
			return
		}
		if sub.ID == "" {
			sub.ID = backend.ID(id)
		}

		action := shared.AuditSubscriptionApprove
		message := "Subscription approved."
		if verb == DecisionDecline {
			action = shared.AuditSubscriptionDecline
			message = "Subscription declined."
		}
		if h.audit != nil {
			entry := shared.AuditLog{
				Actor:    officer.Email,
				Action:   action,
				Entity:   "subscription",
				EntityID: string(sub.ID),
				Meta:     map[string]any{"rider": sub.UserEmail, "status": sub.NormalizedStatus()},
				At:       time.Now().UTC(),
			}
			if err := h.audit.Record(ctx, entry); err != nil {
				h.logger.Warn("audit subscription decision", slog.Any("error", err))
			}
		}
		if h.notifier != nil {
			if err := h.notifier.SubscriptionDecided(ctx, *sub, verb, officer.Email); err != nil {
				h.logger.Warn("enqueue decision notification", slog.Any("error", err))
			}
		}

		sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: message})
		http.Redirect(w, r, access.PathSubscriptionRequests, http.StatusSeeOther)
	}
}
