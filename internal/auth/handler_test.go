package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusride/nexusride-web/internal/auth"
	"github.com/nexusride/nexusride-web/internal/backend"
	"github.com/nexusride/nexusride-web/internal/shared"
	"github.com/nexusride/nexusride-web/internal/testing/webtest"
	"github.com/nexusride/nexusride-web/internal/view"
	_ "github.com/nexusride/nexusride-web/testing"
)

type memoryAudit struct {
	entries []shared.AuditLog
}

func (a *memoryAudit) Record(_ context.Context, entry shared.AuditLog) error {
	a.entries = append(a.entries, entry)
	return nil
}

type harness struct {
	env     *webtest.Env
	fake    *webtest.FakeBackend
	router  chi.Router
	entries *[]shared.AuditLog
}

func newHarness(t *testing.T, attemptsPerMinute int) *harness {
	t.Helper()
	env := webtest.New(t)
	fake := webtest.NewFakeBackend(t)
	client := backend.NewClient(fake.URL(), 5*time.Second)
	templates, err := view.NewEngine()
	require.NoError(t, err)

	audit := &memoryAudit{}
	handler := auth.NewHandler(nil, auth.NewService(client, "officer@iut-dhaka.edu"), templates, env.Sessions, env.CSRF, auth.NewThrottle(attemptsPerMinute), audit)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return &harness{env: env, fake: fake, router: r, entries: &audit.entries}
}

func (h *harness) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func login(email, password string) url.Values {
	return url.Values{"email": {email}, "password": {password}}
}

func TestLoginPage(t *testing.T) {
	h := newHarness(t, 10)
	sess := h.env.Session(t, shared.Identity{})

	rec := h.serve(h.env.Get(sess, "/login"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<form")
	assert.NotEmpty(t, sess.Get(shared.CSRFSessionKey))
}

func TestOfficerLoginLandsOnOfficerDashboard(t *testing.T) {
	h := newHarness(t, 10)
	h.fake.AddUser(webtest.FakeUser{Email: "officer@iut-dhaka.edu", Password: "officerpass", FullName: "Transport Office"})
	sess := h.env.Session(t, shared.Identity{})
	before := sess.ID

	rec := h.serve(h.env.Post(t, sess, "/login", login("officer@iut-dhaka.edu", "officerpass")))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/to-dashboard", rec.Header().Get("Location"))
	id := sess.Restore()
	assert.True(t, id.IsOfficer())
	assert.Equal(t, "Transport Office", id.DisplayName)
	assert.NotEqual(t, before, sess.ID)
	require.Len(t, *h.entries, 1)
	assert.Equal(t, shared.AuditLogin, (*h.entries)[0].Action)
}

func TestProfileRoleGrantsOfficer(t *testing.T) {
	h := newHarness(t, 10)
	h.fake.AddUser(webtest.FakeUser{Email: "deputy@iut-dhaka.edu", Password: "password1", Role: "TO"})
	sess := h.env.Session(t, shared.Identity{})

	rec := h.serve(h.env.Post(t, sess, "/login", login("deputy@iut-dhaka.edu", "password1")))
	assert.Equal(t, "/to-dashboard", rec.Header().Get("Location"))
}

func TestRiderLoginLandsOnDashboard(t *testing.T) {
	h := newHarness(t, 10)
	h.fake.AddUser(webtest.FakeUser{Email: "rider@iut-dhaka.edu", Password: "password1", FullName: "Rafi"})
	sess := h.env.Session(t, shared.Identity{})

	rec := h.serve(h.env.Post(t, sess, "/login", login("rider@iut-dhaka.edu", "password1")))
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Welcome back, rider.", flash.Message)
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newHarness(t, 10)
	h.fake.AddUser(webtest.FakeUser{Email: "rider@iut-dhaka.edu", Password: "password1"})
	sess := h.env.Session(t, shared.Identity{})

	rec := h.serve(h.env.Post(t, sess, "/login", login("rider@iut-dhaka.edu", "wrongpass")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password.")
	assert.False(t, sess.Restore().Authenticated())
}

func TestLoginValidation(t *testing.T) {
	h := newHarness(t, 10)
	sess := h.env.Session(t, shared.Identity{})

	rec := h.serve(h.env.Post(t, sess, "/login", login("not-an-email", "")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Enter a valid email address.")
	assert.Empty(t, h.fake.Calls())
}

func TestLoginThrottled(t *testing.T) {
	h := newHarness(t, 2)
	h.fake.AddUser(webtest.FakeUser{Email: "rider@iut-dhaka.edu", Password: "password1"})
	sess := h.env.Session(t, shared.Identity{})

	for i := 0; i < 2; i++ {
		rec := h.serve(h.env.Post(t, sess, "/login", login("rider@iut-dhaka.edu", "wrongpass")))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := h.serve(h.env.Post(t, sess, "/login", login("rider@iut-dhaka.edu", "password1")))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, sess.Restore().Authenticated())
}

func TestSignedInVisitorSkipsLogin(t *testing.T) {
	h := newHarness(t, 10)
	rec := h.serve(h.env.Get(h.env.Session(t, webtest.Officer()), "/login"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/to-dashboard", rec.Header().Get("Location"))
}

func TestSignupRedirectsToLogin(t *testing.T) {
	h := newHarness(t, 10)
	sess := h.env.Session(t, shared.Identity{})
	form := url.Values{
		"full_name":        {"Nadia Karim"},
		"email":            {"nadia@iut-dhaka.edu"},
		"password":         {"password1"},
		"confirm_password": {"password1"},
	}

	rec := h.serve(h.env.Post(t, sess, "/signup", form))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.False(t, sess.Restore().Authenticated())
}

func TestSignupBackendFieldError(t *testing.T) {
	h := newHarness(t, 10)
	sess := h.env.Session(t, shared.Identity{})
	form := url.Values{
		"full_name":        {"Nadia Karim"},
		"email":            {"nadia@gmail.com"},
		"password":         {"password1"},
		"confirm_password": {"password1"},
	}

	rec := h.serve(h.env.Post(t, sess, "/signup", form))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Only iut-dhaka.edu addresses may register")
}

func TestSignupPasswordMismatch(t *testing.T) {
	h := newHarness(t, 10)
	sess := h.env.Session(t, shared.Identity{})
	form := url.Values{
		"full_name":        {"Nadia Karim"},
		"email":            {"nadia@iut-dhaka.edu"},
		"password":         {"password1"},
		"confirm_password": {"password2"},
	}

	rec := h.serve(h.env.Post(t, sess, "/signup", form))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Does not match.")
	assert.Empty(t, h.fake.Calls())
}

func TestLogoutDestroysSession(t *testing.T) {
	h := newHarness(t, 10)
	sess := h.env.Session(t, webtest.Rider())

	rec := h.serve(h.env.Post(t, sess, "/logout", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.False(t, sess.Restore().Authenticated())
	require.Len(t, *h.entries, 1)
	assert.Equal(t, shared.AuditLogout, (*h.entries)[0].Action)
}
