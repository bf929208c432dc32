package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	operation string
	outcome   string
}

type stubRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (s *stubRecorder) ObserveBackendCall(operation, outcome string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, recordedCall{operation: operation, outcome: outcome})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *stubRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	rec := &stubRecorder{}
	return NewClient(srv.URL+"/", 5*time.Second, WithRecorder(rec)), rec
}

func TestLoginSendsCredentials(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "officer@iut-dhaka.edu", creds.Email)
		_, _ = io.WriteString(w, `{"access_token":"tok"}`)
	})

	token, err := client.Login(context.Background(), Credentials{Email: "officer@iut-dhaka.edu", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "tok", token.AccessToken)
	assert.Equal(t, []recordedCall{{operation: "login", outcome: "ok"}}, rec.calls)
}

func TestLoginUnauthorized(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Unauthorized"}`)
	})

	_, err := client.Login(context.Background(), Credentials{Email: "a@b.c", Password: "x"})
	require.Error(t, err)
	assert.True(t, IsAuth(err))
	assert.Equal(t, "Unauthorized", Message(err, "fallback"))
	assert.Equal(t, "auth", rec.calls[0].outcome)
}

func TestValidationDetailList(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"detail":[{"loc":["body","email"],"msg":"Only iut-dhaka.edu addresses may register","type":"value_error"}]}`)
	})

	_, err := client.Signup(context.Background(), Registration{FullName: "A", Email: "a@gmail.com", Password: "password1"})
	require.Error(t, err)
	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, KindValidation, be.Kind)
	assert.Equal(t, "email", be.Field)
	assert.Equal(t, "Only iut-dhaka.edu addresses may register", be.Message)
}

func TestSignupMessageBodyHasNoProfile(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"msg":"Signup successful"}`)
	})

	profile, err := client.Signup(context.Background(), Registration{FullName: "A", Email: "a@iut-dhaka.edu", Password: "password1"})
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestFetchSubscriptionAttachesBearer(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/subscription/", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":7,"status":"pending","stop_name":"Mirpur 10"}`)
	})

	sub, err := client.FetchSubscription(context.Background(), "tok")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, ID("7"), sub.ID)
	assert.Equal(t, StatusPending, sub.NormalizedStatus())
}

func TestFetchSubscriptionAbsence(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"not found": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"No subscription"}`)
		},
		"null body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `null`)
		},
	} {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, handler)
			sub, err := client.FetchSubscription(context.Background(), "tok")
			require.NoError(t, err)
			assert.Nil(t, sub)
			assert.Equal(t, StatusNone, sub.NormalizedStatus())
		})
	}
}

func TestDecisionPaths(t *testing.T) {
	var paths []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		paths = append(paths, r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"abc","status":"ACTIVE"}`)
	})

	_, err := client.ApproveSubscriptionRequest(context.Background(), "tok", "abc")
	require.NoError(t, err)
	_, err = client.DeclineSubscriptionRequest(context.Background(), "tok", "abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"/subscription/abc/approve", "/subscription/abc/decline"}, paths)

	_, err = client.ApproveSubscriptionRequest(context.Background(), "tok", " ")
	assert.True(t, IsValidation(err))
}

func TestFetchTripAvailabilityFilters(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-01-24", r.URL.Query().Get("date_from"))
		assert.Equal(t, "route-2", r.URL.Query().Get("route_id"))
		assert.Empty(t, r.URL.Query().Get("date_to"))
		_, _ = io.WriteString(w, `[{"id":"TRP-1045","route_name":"Route-2","vehicle_number":"NR-331","trip_date":"2026-01-24","start_time":"08:15","status":"BOARDING","total_capacity":28,"booked_seats":21,"available_seats":7}]`)
	})

	trips, err := client.FetchTripAvailability(context.Background(), "tok", TripFilter{
		DateFrom: time.Date(2026, 1, 24, 0, 0, 0, 0, time.UTC),
		RouteID:  "route-2",
	})
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, 7, trips[0].AvailableSeats)
}

func TestNetworkErrorKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	rec := &stubRecorder{}
	client := NewClient(srv.URL, time.Second, WithRecorder(rec))

	_, err := client.FetchProfile(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Equal(t, "network", rec.calls[0].outcome)
}

func TestCanceledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchTripAvailability(ctx, "tok", TripFilter{})
	require.Error(t, err)
	assert.True(t, Canceled(err))
}

func TestServerErrorWithoutDetail(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.ListSubscriptionRequests(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, KindServer, KindOf(err))
	assert.Equal(t, "fallback", Message(err, "fallback"))
}

func TestNewSubscriptionRequestPadsMonths(t *testing.T) {
	req := NewSubscriptionRequest(1, 3, 2026, " Mirpur 10 ")
	assert.Equal(t, SubscriptionRequest{StartMonth: "01", EndMonth: "03", Year: 2026, StopName: "Mirpur 10"}, req)
}
