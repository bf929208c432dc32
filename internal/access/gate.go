package access

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/nexusride/nexusride-web/internal/backend"
	"github.com/nexusride/nexusride-web/internal/shared"
)

// SubscriptionFetcher is the slice of the backend gateway the gate needs.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, token string) (*backend.Subscription, error)
}

// Observer receives every decision, typically for metrics.
type Observer interface {
	ObserveAccessDecision(path string, d Decision)
}

// Loader fetches page data alongside the subscription lookup.
type Loader func(ctx context.Context, id shared.Identity) (any, error)

// Grant is what a rendering page learns from the gate.
type Grant struct {
	Decision Decision
	Identity shared.Identity
	Lookup   Lookup
	// Companion holds the Loader result; CompanionErr its error.
	Companion    any
	CompanionErr error
}

type grantContextKey struct{}

// ContextWithGrant stores g in ctx.
func ContextWithGrant(ctx context.Context, g Grant) context.Context {
	return context.WithValue(ctx, grantContextKey{}, g)
}

// GrantFromContext returns the grant stored by the gate.
func GrantFromContext(ctx context.Context) (Grant, bool) {
	g, ok := ctx.Value(grantContextKey{}).(Grant)
	return g, ok
}

// Gate runs the evaluator in front of gated pages.
type Gate struct {
	fetcher  SubscriptionFetcher
	logger   *slog.Logger
	observer Observer
}

// NewGate constructs a Gate. observer may be nil.
func NewGate(fetcher SubscriptionFetcher, logger *slog.Logger, observer Observer) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{fetcher: fetcher, logger: logger, observer: observer}
}

// Require guards a page served at path. A loader runs once the decision is to
// render, except on the subscriber page where it runs concurrently with the
// subscription lookup and the gate waits for both.
func (g *Gate) Require(path string, loader ...Loader) func(http.Handler) http.Handler {
	var load Loader
	if len(loader) > 0 {
		load = loader[0]
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess := shared.SessionFromContext(ctx)
			id := sess.Restore()
			subject := SubjectOf(id)

			grant := Grant{Identity: id}
			needLookup := NeedsSubscription(subject, path)
			alongside := load != nil && needLookup && path == PathSubscriber
			var lookupErr error

			if needLookup {
				var eg errgroup.Group
				eg.Go(func() error {
					sub, err := g.fetcher.FetchSubscription(ctx, id.Credential)
					lookupErr = err
					if err != nil {
						grant.Lookup = Failed(err)
					} else {
						grant.Lookup = Found(sub)
					}
					return nil
				})
				if alongside {
					eg.Go(func() error {
						grant.Companion, grant.CompanionErr = load(ctx, id)
						return nil
					})
				}
				_ = eg.Wait()

				if ctx.Err() != nil {
					// The visitor left; nothing may be written to the session.
					return
				}
				if backend.IsAuth(lookupErr) || backend.IsAuth(grant.CompanionErr) {
					g.observe(path, Redirect(PathLogin))
					Expire(w, r)
					return
				}
				if lookupErr != nil {
					g.logger.Warn("subscription lookup failed, treating as none",
						slog.String("path", path),
						slog.Any("error", lookupErr))
				}
			}

			grant.Decision = Evaluate(subject, grant.Lookup, path)
			if grant.Decision.IsRedirect() {
				g.redirect(w, r, path, grant.Decision)
				return
			}

			if load != nil && !alongside {
				grant.Companion, grant.CompanionErr = load(ctx, id)
				if ctx.Err() != nil {
					return
				}
				if backend.IsAuth(grant.CompanionErr) {
					g.observe(path, Redirect(PathLogin))
					Expire(w, r)
					return
				}
			}

			g.observe(path, grant.Decision)
			next.ServeHTTP(w, r.WithContext(ContextWithGrant(ctx, grant)))
		})
	}
}

func (g *Gate) redirect(w http.ResponseWriter, r *http.Request, path string, d Decision) {
	g.observe(path, d)
	http.Redirect(w, r, d.Target, http.StatusSeeOther)
}

func (g *Gate) observe(path string, d Decision) {
	if g.observer != nil {
		g.observer.ObserveAccessDecision(path, d)
	}
}

// Expire signs the visitor out after the backend rejected the credential and
// sends them to the login page.
func Expire(w http.ResponseWriter, r *http.Request) {
	shared.SessionFromContext(r.Context()).ExpireIdentity()
	http.Redirect(w, r, PathLogin, http.StatusSeeOther)
}
