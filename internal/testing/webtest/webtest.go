// Package webtest holds helpers for handler tests: a miniredis backed session
// manager and requests that carry a session the way the middleware does.
package webtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/nexusride/nexusride-web/internal/shared"
)

// Env bundles the session and CSRF managers of a test.
type Env struct {
	Sessions *shared.SessionManager
	CSRF     *shared.CSRFManager
	Redis    *miniredis.Miniredis
}

// New starts miniredis and the managers on top of it.
func New(t *testing.T) *Env {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Env{
		Sessions: shared.NewSessionManager(client, "test_session", time.Hour, false),
		CSRF:     shared.NewCSRFManager("test-csrf-secret"),
		Redis:    mr,
	}
}

// Session returns a fresh session holding id.
func (e *Env) Session(t *testing.T, id shared.Identity) *shared.Session {
	t.Helper()
	sess, err := e.Sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetIdentity(id)
	return sess
}

// Get builds a GET request bound to sess.
func (e *Env) Get(sess *shared.Session, target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

// Post builds a form POST bound to sess. A CSRF token is added unless the
// form already carries one.
func (e *Env) Post(t *testing.T, sess *shared.Session, target string, form url.Values) *http.Request {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if form.Get(shared.CSRFFormField) == "" {
		token, err := e.CSRF.EnsureToken(context.Background(), sess)
		require.NoError(t, err)
		form.Set(shared.CSRFFormField, token)
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

// Rider is a signed-in rider identity.
func Rider() shared.Identity {
	return shared.Identity{Credential: "rider-token", Email: "rider@iut-dhaka.edu", DisplayName: "Rafi Rahman", Role: shared.RoleRider}
}

// Officer is a signed-in transport officer identity.
func Officer() shared.Identity {
	return shared.Identity{Credential: "officer-token", Email: "officer@iut-dhaka.edu", DisplayName: "Transport Office", Role: shared.RoleOfficer}
}
