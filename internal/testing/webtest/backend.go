package webtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/nexusride/nexusride-web/internal/backend"
)

// FakeUser is an account known to FakeBackend.
type FakeUser struct {
	Email    string
	Password string
	FullName string
	Role     string
	Token    string
}

// FakeBackend is an in-memory stand-in for the REST backend.
type FakeBackend struct {
	Server *httptest.Server

	mu            sync.Mutex
	users         map[string]FakeUser
	subscriptions map[string]*backend.Subscription
	trips         []backend.Trip
	nextID        int
	calls         []string
}

// NewFakeBackend starts the fake and stops it with the test.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{
		users:         make(map[string]FakeUser),
		subscriptions: make(map[string]*backend.Subscription),
		nextID:        100,
	}
	r := chi.NewRouter()
	r.Post("/auth/login", fb.login)
	r.Post("/auth/signup", fb.signup)
	r.Get("/auth/me", fb.me)
	r.Get("/subscription/", fb.getSubscription)
	r.Post("/subscription/", fb.createSubscription)
	r.Get("/subscription/requests", fb.listRequests)
	r.Put("/subscription/{id}/{verb}", fb.decide)
	r.Get("/trips/availability", fb.listTrips)
	fb.Server = httptest.NewServer(fb.record(r))
	t.Cleanup(fb.Server.Close)
	return fb
}

// URL is the base URL of the fake.
func (fb *FakeBackend) URL() string {
	return fb.Server.URL
}

// AddUser registers an account. The token defaults to "token-<email>".
func (fb *FakeBackend) AddUser(u FakeUser) FakeUser {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if u.Token == "" {
		u.Token = "token-" + u.Email
	}
	fb.users[strings.ToLower(u.Email)] = u
	return u
}

// SetSubscription stores sub for the owner of token. A nil sub removes it.
func (fb *FakeBackend) SetSubscription(token string, sub *backend.Subscription) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if sub == nil {
		delete(fb.subscriptions, token)
		return
	}
	fb.subscriptions[token] = sub
}

// Subscription returns the stored subscription for token.
func (fb *FakeBackend) Subscription(token string) *backend.Subscription {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.subscriptions[token]
}

// SetTrips replaces the trip snapshot.
func (fb *FakeBackend) SetTrips(trips []backend.Trip) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.trips = trips
}

// Calls lists "METHOD /path" for every request served so far.
func (fb *FakeBackend) Calls() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.calls...)
}

func (fb *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.calls = append(fb.calls, r.Method+" "+r.URL.Path)
		fb.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (fb *FakeBackend) userFor(r *http.Request) (FakeUser, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, u := range fb.users {
		if u.Token == token && token != "" {
			return u, true
		}
	}
	return FakeUser{}, false
}

func (fb *FakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var creds backend.Credentials
	_ = json.NewDecoder(r.Body).Decode(&creds)
	fb.mu.Lock()
	u, ok := fb.users[strings.ToLower(creds.Email)]
	fb.mu.Unlock()
	if !ok || u.Password != creds.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Incorrect email or password"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"access_token": u.Token, "token_type": "bearer"})
}

func (fb *FakeBackend) signup(w http.ResponseWriter, r *http.Request) {
	var reg backend.Registration
	_ = json.NewDecoder(r.Body).Decode(&reg)
	if !strings.HasSuffix(strings.ToLower(reg.Email), "@iut-dhaka.edu") {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]any{
			{"loc": []string{"body", "email"}, "msg": "Only iut-dhaka.edu addresses may register", "type": "value_error"},
		}})
		return
	}
	fb.AddUser(FakeUser{Email: reg.Email, Password: reg.Password, FullName: reg.FullName})
	writeJSON(w, http.StatusOK, map[string]any{"msg": "Signup successful"})
}

func (fb *FakeBackend) me(w http.ResponseWriter, r *http.Request) {
	u, ok := fb.userFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Could not validate credentials"})
		return
	}
	writeJSON(w, http.StatusOK, backend.Profile{Email: u.Email, FullName: u.FullName, Role: u.Role})
}

func (fb *FakeBackend) getSubscription(w http.ResponseWriter, r *http.Request) {
	u, ok := fb.userFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Could not validate credentials"})
		return
	}
	sub := fb.Subscription(u.Token)
	if sub == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "No subscription found"})
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (fb *FakeBackend) createSubscription(w http.ResponseWriter, r *http.Request) {
	u, ok := fb.userFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Could not validate credentials"})
		return
	}
	var req backend.SubscriptionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	fb.mu.Lock()
	fb.nextID++
	sub := &backend.Subscription{
		ID:        backend.ID(fmt.Sprint(fb.nextID)),
		UserEmail: u.Email,
		UserName:  u.FullName,
		Status:    backend.StatusPending,
		StopName:  req.StopName,
		StartDate: fmt.Sprintf("%d-%s-01", req.Year, req.StartMonth),
		EndDate:   fmt.Sprintf("%d-%s-28", req.Year, req.EndMonth),
	}
	fb.subscriptions[u.Token] = sub
	fb.mu.Unlock()
	writeJSON(w, http.StatusOK, sub)
}

func (fb *FakeBackend) listRequests(w http.ResponseWriter, r *http.Request) {
	u, ok := fb.userFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Could not validate credentials"})
		return
	}
	if !strings.EqualFold(u.Role, "TO") && !strings.EqualFold(u.Role, "OFFICER") {
		writeJSON(w, http.StatusForbidden, map[string]any{"detail": "Not allowed"})
		return
	}
	fb.mu.Lock()
	out := make([]backend.Subscription, 0, len(fb.subscriptions))
	for _, sub := range fb.subscriptions {
		out = append(out, *sub)
	}
	fb.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (fb *FakeBackend) decide(w http.ResponseWriter, r *http.Request) {
	if _, ok := fb.userFor(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Could not validate credentials"})
		return
	}
	id := chi.URLParam(r, "id")
	status := backend.StatusActive
	if chi.URLParam(r, "verb") == "decline" {
		status = backend.StatusDeclined
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, sub := range fb.subscriptions {
		if string(sub.ID) == id {
			sub.Status = status
			writeJSON(w, http.StatusOK, sub)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Subscription not found"})
}

func (fb *FakeBackend) listTrips(w http.ResponseWriter, r *http.Request) {
	if _, ok := fb.userFor(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Could not validate credentials"})
		return
	}
	fb.mu.Lock()
	trips := append([]backend.Trip{}, fb.trips...)
	fb.mu.Unlock()
	writeJSON(w, http.StatusOK, trips)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
