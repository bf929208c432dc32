package shared

import (
	"strings"
	"time"
)

// Session keys holding the signed-in identity. They are written and cleared together.
const (
	keyCredential       = "credential"
	keyEmail            = "email"
	keyDisplayName      = "display_name"
	keyRole             = "role"
	keyProfileCheckedAt = "profile_checked_at"
)

// Role classifies what a signed-in user may see.
type Role string

const (
	// RoleRider is a regular commuter.
	RoleRider Role = "rider"
	// RoleOfficer is the transport officer who reviews subscription requests.
	RoleOfficer Role = "officer"
)

// ParseRole maps stored or backend supplied role names onto a Role.
func ParseRole(raw string) Role {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "OFFICER", "TO", "TRANSPORT_OFFICER":
		return RoleOfficer
	default:
		return RoleRider
	}
}

// Identity is the credential and cached profile fields of the current visitor.
type Identity struct {
	Credential       string
	Email            string
	DisplayName      string
	Role             Role
	ProfileCheckedAt time.Time
}

// Authenticated reports whether a credential is present.
func (i Identity) Authenticated() bool {
	return i.Credential != ""
}

// IsOfficer reports whether the identity carries the officer role.
func (i Identity) IsOfficer() bool {
	return i.Authenticated() && i.Role == RoleOfficer
}

// Name returns the display name, falling back to "User".
func (i Identity) Name() string {
	if name := strings.TrimSpace(i.DisplayName); name != "" {
		return name
	}
	return "User"
}

// WelcomeName is the email local part when an email is known, otherwise Name.
func (i Identity) WelcomeName() string {
	if local, _, ok := strings.Cut(i.Email, "@"); ok && local != "" {
		return local
	}
	return i.Name()
}

// Restore reads the persisted identity. A session without credential yields the
// anonymous zero Identity.
func (s *Session) Restore() Identity {
	if s == nil {
		return Identity{}
	}
	credential := s.Get(keyCredential)
	if credential == "" {
		return Identity{}
	}
	id := Identity{
		Credential:  credential,
		Email:       s.Get(keyEmail),
		DisplayName: s.Get(keyDisplayName),
		Role:        ParseRole(s.Get(keyRole)),
	}
	if raw := s.Get(keyProfileCheckedAt); raw != "" {
		if at, err := time.Parse(time.RFC3339, raw); err == nil {
			id.ProfileCheckedAt = at
		}
	}
	return id
}

// SetIdentity persists every identity field. An identity without credential clears the session.
func (s *Session) SetIdentity(id Identity) {
	if s == nil {
		return
	}
	if !id.Authenticated() {
		s.ClearIdentity()
		return
	}
	role := id.Role
	if role == "" {
		role = RoleRider
	}
	s.Set(keyCredential, id.Credential)
	s.Set(keyEmail, id.Email)
	s.Set(keyDisplayName, id.DisplayName)
	s.Set(keyRole, string(role))
	if id.ProfileCheckedAt.IsZero() {
		s.Delete(keyProfileCheckedAt)
	} else {
		s.Set(keyProfileCheckedAt, id.ProfileCheckedAt.UTC().Format(time.RFC3339))
	}
}

// ClearIdentity removes every identity field in one step.
func (s *Session) ClearIdentity() {
	if s == nil {
		return
	}
	for _, key := range []string{keyCredential, keyEmail, keyDisplayName, keyRole, keyProfileCheckedAt} {
		s.Delete(key)
	}
}

// ExpireIdentity clears the identity after the backend rejected the credential
// and replaces any pending flashes with a notice for the login page.
func (s *Session) ExpireIdentity() {
	if s == nil {
		return
	}
	s.ClearIdentity()
	s.flashes = nil
	s.AddFlash(FlashMessage{Kind: FlashError, Message: "Your session has expired. Please sign in again."})
}
