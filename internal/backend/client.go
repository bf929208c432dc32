// Package backend is the typed gateway to the NexusRide REST backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// Recorder receives one observation per backend call.
type Recorder interface {
	ObserveBackendCall(operation, outcome string, elapsed time.Duration)
}

// Client issues exactly one HTTP request per method. It never retries or caches.
type Client struct {
	baseURL    string
	httpClient *http.Client
	recorder   Recorder
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// NewClient constructs a gateway for baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Token, error) {
	var token Token
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", "", creds, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, &Error{Op: "login", Kind: KindServer, Message: "empty access token"}
	}
	return &token, nil
}

// Signup registers a new rider account. The backend may answer with a profile or
// a plain message; the profile is nil in the latter case.
func (c *Client) Signup(ctx context.Context, reg Registration) (*Profile, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "signup", http.MethodPost, "/auth/signup", "", reg, &raw); err != nil {
		return nil, err
	}
	var profile Profile
	if err := json.Unmarshal(raw, &profile); err != nil || profile.Email == "" {
		return nil, nil
	}
	return &profile, nil
}

// FetchProfile returns the profile of the credential's owner.
func (c *Client) FetchProfile(ctx context.Context, token string) (*Profile, error) {
	var profile Profile
	if err := c.do(ctx, "fetch_profile", http.MethodGet, "/auth/me", token, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateSubscription submits a subscription request for the credential's owner.
func (c *Client) CreateSubscription(ctx context.Context, token string, req SubscriptionRequest) (*Subscription, error) {
	var sub Subscription
	if err := c.do(ctx, "create_subscription", http.MethodPost, "/subscription/", token, req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// FetchSubscription returns the current subscription, or nil when the user has none.
func (c *Client) FetchSubscription(ctx context.Context, token string) (*Subscription, error) {
	var sub *Subscription
	err := c.do(ctx, "fetch_subscription", http.MethodGet, "/subscription/", token, nil, &sub)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// ListSubscriptionRequests returns the requests awaiting an officer decision.
func (c *Client) ListSubscriptionRequests(ctx context.Context, token string) ([]Subscription, error) {
	var subs []Subscription
	if err := c.do(ctx, "list_subscription_requests", http.MethodGet, "/subscription/requests", token, nil, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// ApproveSubscriptionRequest marks request id as approved.
func (c *Client) ApproveSubscriptionRequest(ctx context.Context, token, id string) (*Subscription, error) {
	return c.decide(ctx, "approve_subscription_request", token, id, "approve")
}

// DeclineSubscriptionRequest marks request id as declined.
func (c *Client) DeclineSubscriptionRequest(ctx context.Context, token, id string) (*Subscription, error) {
	return c.decide(ctx, "decline_subscription_request", token, id, "decline")
}

func (c *Client) decide(ctx context.Context, op, token, id, verb string) (*Subscription, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &Error{Op: op, Kind: KindValidation, Message: "subscription id required"}
	}
	path := fmt.Sprintf("/subscription/%s/%s", url.PathEscape(id), verb)
	var sub Subscription
	if err := c.do(ctx, op, http.MethodPut, path, token, struct{}{}, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// FetchTripAvailability returns the current trip snapshot.
func (c *Client) FetchTripAvailability(ctx context.Context, token string, filter TripFilter) ([]Trip, error) {
	q := url.Values{}
	if !filter.DateFrom.IsZero() {
		q.Set("date_from", filter.DateFrom.Format(time.DateOnly))
	}
	if !filter.DateTo.IsZero() {
		q.Set("date_to", filter.DateTo.Format(time.DateOnly))
	}
	if filter.RouteID != "" {
		q.Set("route_id", filter.RouteID)
	}
	path := "/trips/availability"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var trips []Trip
	if err := c.do(ctx, "fetch_trip_availability", http.MethodGet, path, token, nil, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.recorder == nil {
			return
		}
		outcome := "ok"
		if err != nil {
			outcome = KindOf(err).String()
		}
		c.recorder.ObserveBackendCall(op, outcome, time.Since(start))
	}()

	var reader io.Reader
	if body != nil {
		payload, merr := json.Marshal(body)
		if merr != nil {
			return &Error{Op: op, Kind: KindServer, Err: merr}
		}
		reader = bytes.NewReader(payload)
	}

	req, rerr := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if rerr != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: rerr}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, derr := c.httpClient.Do(req)
	if derr != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: derr}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, rerr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if rerr != nil {
		return &Error{Op: op, Kind: KindNetwork, Status: resp.StatusCode, Err: rerr}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message, field := parseDetail(data)
		return &Error{Op: op, Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode, Message: message, Field: field}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if uerr := json.Unmarshal(data, out); uerr != nil {
		return &Error{Op: op, Kind: KindServer, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", uerr)}
	}
	return nil
}

// Canceled reports whether err stems from the caller abandoning the request.
func Canceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
