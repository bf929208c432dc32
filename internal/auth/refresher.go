package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nexusride/nexusride-web/internal/backend"
	"github.com/nexusride/nexusride-web/internal/shared"
)

// CredentialExpired reports whether token is a JWT whose exp lies in the past.
// The signature is not checked; the backend owns the key. Tokens that are not
// JWTs, or carry no exp, never count as expired here.
func CredentialExpired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}

// Refresher keeps the optimistic session identity in line with the backend.
type Refresher struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewRefresher constructs a Refresher re-checking the profile every interval.
func NewRefresher(service *Service, interval time.Duration, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{service: service, interval: interval, logger: logger, now: time.Now}
}

// Middleware expires dead credentials and refreshes stale profiles before the
// request reaches a page.
func (rf *Refresher) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := shared.SessionFromContext(ctx)
		id := sess.Restore()
		if !id.Authenticated() {
			next.ServeHTTP(w, r)
			return
		}

		now := rf.now()
		if CredentialExpired(id.Credential, now) {
			rf.logger.Info("credential expired", slog.String("user", id.Email))
			sess.ExpireIdentity()
			next.ServeHTTP(w, r)
			return
		}

		if rf.interval <= 0 || now.Sub(id.ProfileCheckedAt) < rf.interval {
			next.ServeHTTP(w, r)
			return
		}

		updated, err := rf.service.Refresh(ctx, id)
		if ctx.Err() != nil {
			return
		}
		switch {
		case backend.IsAuth(err):
			rf.logger.Info("credential rejected on refresh", slog.String("user", id.Email))
			sess.ExpireIdentity()
		case err != nil:
			rf.logger.Warn("profile refresh failed", slog.String("user", id.Email), slog.Any("error", err))
			id.ProfileCheckedAt = now.UTC()
			sess.SetIdentity(id)
		default:
			sess.SetIdentity(updated)
		}
		next.ServeHTTP(w, r)
	})
}
