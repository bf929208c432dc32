package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Subscription statuses reported by the backend.
const (
	StatusNone     = "NONE"
	StatusPending  = "PENDING"
	StatusActive   = "ACTIVE"
	StatusDeclined = "DECLINED"
)

// NormalizeStatus upper-cases and trims a status, mapping blanks to StatusNone.
func NormalizeStatus(raw string) string {
	status := strings.ToUpper(strings.TrimSpace(raw))
	if status == "" {
		return StatusNone
	}
	return status
}

// ID accepts both numeric and string identifiers.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier text.
func (id ID) String() string {
	return string(id)
}

// Credentials is the body of POST /auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Token is the body returned by POST /auth/login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// Registration is the body of POST /auth/signup.
type Registration struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Profile is returned by GET /auth/me and, for some deployments, by signup.
type Profile struct {
	ID       ID       `json:"id,omitempty"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     string   `json:"role,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// SubscriptionRequest is the body of POST /subscription/.
type SubscriptionRequest struct {
	StartMonth string `json:"start_month"`
	EndMonth   string `json:"end_month"`
	Year       int    `json:"year"`
	StopName   string `json:"stop_name"`
}

// NewSubscriptionRequest formats months the way the backend expects ("01".."12").
func NewSubscriptionRequest(startMonth, endMonth, year int, stopName string) SubscriptionRequest {
	return SubscriptionRequest{
		StartMonth: twoDigits(startMonth),
		EndMonth:   twoDigits(endMonth),
		Year:       year,
		StopName:   strings.TrimSpace(stopName),
	}
}

func twoDigits(n int) string {
	if n >= 0 && n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// Subscription is a monthly subscription record or request.
type Subscription struct {
	ID        ID     `json:"id"`
	UserID    ID     `json:"user_id,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
	UserName  string `json:"user_name,omitempty"`
	Status    string `json:"status"`
	RouteName string `json:"route_name,omitempty"`
	StopName  string `json:"stop_name,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// NormalizedStatus returns the upper-case status, StatusNone for a nil record.
func (s *Subscription) NormalizedStatus() string {
	if s == nil {
		return StatusNone
	}
	return NormalizeStatus(s.Status)
}

// Trip is one scheduled vehicle run with its seat counts.
type Trip struct {
	ID             ID     `json:"id"`
	RouteID        ID     `json:"route_id,omitempty"`
	RouteName      string `json:"route_name"`
	VehicleNumber  string `json:"vehicle_number"`
	DriverName     string `json:"driver_name,omitempty"`
	TripDate       string `json:"trip_date"`
	StartTime      string `json:"start_time"`
	Status         string `json:"status"`
	TotalCapacity  int    `json:"total_capacity"`
	BookedSeats    int    `json:"booked_seats"`
	AvailableSeats int    `json:"available_seats"`
}

// TripFilter narrows GET /trips/availability. Zero values are omitted.
type TripFilter struct {
	DateFrom time.Time
	DateTo   time.Time
	RouteID  string
}
