package dashboard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusride/nexusride-web/internal/access"
	"github.com/nexusride/nexusride-web/internal/backend"
	"github.com/nexusride/nexusride-web/internal/dashboard"
	"github.com/nexusride/nexusride-web/internal/shared"
	"github.com/nexusride/nexusride-web/internal/testing/webtest"
	"github.com/nexusride/nexusride-web/internal/view"
	_ "github.com/nexusride/nexusride-web/testing"
)

type memoryGuard struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (g *memoryGuard) CheckAndInsert(_ context.Context, key, scope string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if key == "" {
		return nil
	}
	if g.seen[scope+key] {
		return shared.ErrDuplicateSubmission
	}
	g.seen[scope+key] = true
	return nil
}

func (g *memoryGuard) Delete(_ context.Context, key, scope string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, scope+key)
	return nil
}

type notifySpy struct {
	emails []string
}

func (n *notifySpy) SubscriptionRequested(_ context.Context, _ backend.Subscription, email string) error {
	n.emails = append(n.emails, email)
	return nil
}

type harness struct {
	env    *webtest.Env
	fake   *webtest.FakeBackend
	router chi.Router
	notify *notifySpy
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	env := webtest.New(t)
	fake := webtest.NewFakeBackend(t)
	client := backend.NewClient(fake.URL(), 5*time.Second)
	templates, err := view.NewEngine()
	require.NoError(t, err)
	notify := &notifySpy{}

	gate := access.NewGate(client, nil, nil)
	handler := dashboard.NewHandler(nil, client, templates, env.CSRF, gate, dashboard.Options{
		Guard:    &memoryGuard{seen: map[string]bool{}},
		Notifier: notify,
	})
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return &harness{env: env, fake: fake, router: r, notify: notify}
}

func (h *harness) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) rider(t *testing.T) (*shared.Session, webtest.FakeUser) {
	t.Helper()
	u := h.fake.AddUser(webtest.FakeUser{Email: "rider@iut-dhaka.edu", Password: "password1", FullName: "Rafi Rahman"})
	id := webtest.Rider()
	id.Credential = u.Token
	return h.env.Session(t, id), u
}

func subscribeForm(start, end, year int, stop string) url.Values {
	return url.Values{
		"start_month":   {strconv.Itoa(start)},
		"end_month":     {strconv.Itoa(end)},
		"year":          {strconv.Itoa(year)},
		"stop_name":     {stop},
		"submission_id": {uuid.NewString()},
	}
}

func countCalls(calls []string, call string) int {
	n := 0
	for _, c := range calls {
		if c == call {
			n++
		}
	}
	return n
}

func TestRiderWithoutSubscriptionSeesForm(t *testing.T) {
	h := newHarness(t)
	sess, _ := h.rider(t)
	h.fake.SetTrips([]backend.Trip{{ID: "TRP-1", RouteName: "Route-1", TotalCapacity: 30, BookedSeats: 12, AvailableSeats: 18}})

	rec := h.serve(h.env.Get(sess, "/dashboard"))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Welcome, rider")
	assert.Contains(t, body, `action="/dashboard/subscribe"`)
	assert.Contains(t, body, "Mirpur 10")
	assert.Contains(t, body, ">18<")
}

func TestSubscribeThenPending(t *testing.T) {
	h := newHarness(t)
	sess, u := h.rider(t)
	year := time.Now().Year()

	rec := h.serve(h.env.Post(t, sess, "/dashboard/subscribe", subscribeForm(1, 3, year, "Mirpur 10")))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/subscriber", rec.Header().Get("Location"))

	sub := h.fake.Subscription(u.Token)
	require.NotNil(t, sub)
	assert.Equal(t, backend.StatusPending, sub.NormalizedStatus())
	assert.Equal(t, strconv.Itoa(year)+"-01-01", sub.StartDate)
	assert.Equal(t, []string{"rider@iut-dhaka.edu"}, h.notify.emails)

	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashSuccess, flash.Kind)

	rec = h.serve(h.env.Get(sess, "/subscriber"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pending")
	assert.Contains(t, rec.Body.String(), "Mirpur 10")

	// A pending rider still gets the rider dashboard.
	rec = h.serve(h.env.Get(sess, "/dashboard"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Your latest request")
}

func TestActiveSubscriberIsSentToSubscriberPage(t *testing.T) {
	h := newHarness(t)
	sess, u := h.rider(t)
	h.fake.SetSubscription(u.Token, &backend.Subscription{ID: "7", Status: "active", StopName: "Airport", RouteName: "Route-1"})
	h.fake.SetTrips([]backend.Trip{
		{ID: "TRP-1", RouteName: "Route-1", TripDate: "2026-01-24", StartTime: "07:45"},
		{ID: "TRP-2", RouteName: "Route-2", TripDate: "2026-01-24", StartTime: "08:15"},
	})

	rec := h.serve(h.env.Get(sess, "/dashboard"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/subscriber", rec.Header().Get("Location"))

	rec = h.serve(h.env.Get(sess, "/subscriber"))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "TRP-1")
	assert.NotContains(t, body, "TRP-2")
	assert.Contains(t, body, "Unavailable")
}

func TestSubscriberPageWithoutSubscriptionRedirects(t *testing.T) {
	h := newHarness(t)
	sess, _ := h.rider(t)

	rec := h.serve(h.env.Get(sess, "/subscriber"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestSubscribeValidation(t *testing.T) {
	year := time.Now().Year()
	cases := map[string]struct {
		form url.Values
		want string
	}{
		"end before start": {subscribeForm(5, 2, year, "Airport"), "Must not be before the start."},
		"year too far":     {subscribeForm(1, 2, year+6, "Airport"), "Year must be between"},
		"past year":        {subscribeForm(1, 2, year-1, "Airport"), "Year must be between"},
		"unknown stop":     {subscribeForm(1, 2, year, "Gulshan"), "Choose a stop from the list."},
		"month range":      {subscribeForm(0, 13, year, "Airport"), "This field is required."},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			sess, _ := h.rider(t)

			rec := h.serve(h.env.Post(t, sess, "/dashboard/subscribe", tc.form))
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
			assert.Zero(t, countCalls(h.fake.Calls(), "POST /subscription/"))
		})
	}
}

func TestDuplicateSubmissionIsIgnored(t *testing.T) {
	h := newHarness(t)
	sess, _ := h.rider(t)
	form := subscribeForm(2, 4, time.Now().Year(), "Banani")

	first := h.serve(h.env.Post(t, sess, "/dashboard/subscribe", url.Values{
		"start_month": form["start_month"], "end_month": form["end_month"], "year": form["year"],
		"stop_name": form["stop_name"], "submission_id": form["submission_id"],
	}))
	require.Equal(t, http.StatusSeeOther, first.Code)
	sess.PopFlash()

	// The pending rider resubmits the same form id.
	second := h.serve(h.env.Post(t, sess, "/dashboard/subscribe", form))
	assert.Equal(t, http.StatusSeeOther, second.Code)
	assert.Equal(t, 1, countCalls(h.fake.Calls(), "POST /subscription/"))
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashInfo, flash.Kind)
}

func TestSubscribeWithRejectedCredential(t *testing.T) {
	h := newHarness(t)
	id := webtest.Rider()
	id.Credential = "revoked"
	sess := h.env.Session(t, id)

	rec := h.serve(h.env.Post(t, sess, "/dashboard/subscribe", subscribeForm(1, 1, time.Now().Year(), "Airport")))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.False(t, sess.Restore().Authenticated())
}

func TestOfficerDashboardCountsPending(t *testing.T) {
	h := newHarness(t)
	officer := h.fake.AddUser(webtest.FakeUser{Email: "officer@iut-dhaka.edu", Password: "officerpass", Role: "TO"})
	h.fake.SetSubscription("a", &backend.Subscription{ID: "1", Status: "PENDING"})
	h.fake.SetSubscription("b", &backend.Subscription{ID: "2", Status: "PENDING"})
	h.fake.SetSubscription("c", &backend.Subscription{ID: "3", Status: "ACTIVE"})
	id := webtest.Officer()
	id.Credential = officer.Token

	rec := h.serve(h.env.Get(h.env.Session(t, id), "/to-dashboard"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `<span class="badge">2</span>`))
}

func TestRiderCannotOpenOfficerDashboard(t *testing.T) {
	h := newHarness(t)
	sess, _ := h.rider(t)

	rec := h.serve(h.env.Get(sess, "/to-dashboard"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}
