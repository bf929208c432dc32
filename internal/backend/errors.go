package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies gateway failures the way pages react to them.
type ErrorKind int

const (
	// KindServer is any unexpected non-2xx answer.
	KindServer ErrorKind = iota
	// KindValidation is a 400/422 answer, shown next to the form field.
	KindValidation
	// KindAuth is a 401 answer; the session must be cleared.
	KindAuth
	// KindForbidden is a 403 answer.
	KindForbidden
	// KindNotFound is a 404 answer.
	KindNotFound
	// KindNetwork is a transport failure; no response was received.
	KindNetwork
)

// String returns a short label, also used as the metrics outcome.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindNetwork:
		return "network"
	default:
		return "server"
	}
}

// Error is returned by every Client method on failure.
type Error struct {
	Op      string
	Kind    ErrorKind
	Status  int
	Message string
	// Field names the offending input for validation errors when the backend reports it.
	Field string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Status > 0 && e.Message != "":
		return fmt.Sprintf("backend: %s: status %d: %s", e.Op, e.Status, e.Message)
	case e.Status > 0:
		return fmt.Sprintf("backend: %s: status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("backend: %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("backend: %s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a gateway error, KindServer for foreign errors.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindServer
}

// IsAuth reports whether err means the credential is missing, invalid or expired.
func IsAuth(err error) bool {
	return err != nil && KindOf(err) == KindAuth
}

// IsNotFound reports whether err is a 404 answer.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// IsValidation reports whether err is a 400/422 answer.
func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}

// Message returns the server provided message, or fallback when none was sent.
func Message(err error, fallback string) string {
	var be *Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}

func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict:
		return KindValidation
	case http.StatusUnauthorized:
		return KindAuth
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindServer
	}
}

type validationDetail struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// parseDetail extracts {"detail": "..."} or the first FastAPI validation entry.
func parseDetail(body []byte) (message, field string) {
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", ""
	}
	if len(envelope.Detail) == 0 {
		return envelope.Message, ""
	}
	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return text, ""
	}
	var details []validationDetail
	if err := json.Unmarshal(envelope.Detail, &details); err == nil && len(details) > 0 {
		first := details[0]
		if n := len(first.Loc); n > 0 {
			if name, ok := first.Loc[n-1].(string); ok && name != "body" {
				field = name
			}
		}
		return strings.TrimSpace(first.Msg), field
	}
	return "", ""
}
