package auth

import (
	"context"
	"strings"
	"time"

	"github.com/nexusride/nexusride-web/internal/backend"
	"github.com/nexusride/nexusride-web/internal/shared"
)

// Gateway is the slice of the backend client used for authentication.
type Gateway interface {
	Login(ctx context.Context, creds backend.Credentials) (*backend.Token, error)
	Signup(ctx context.Context, reg backend.Registration) (*backend.Profile, error)
	FetchProfile(ctx context.Context, token string) (*backend.Profile, error)
}

// Service wraps authentication business rules.
type Service struct {
	gateway      Gateway
	officerEmail string
	now          func() time.Time
}

// NewService constructs a new Service. officerEmail is the fallback officer
// address used when the profile carries no role.
func NewService(gateway Gateway, officerEmail string) *Service {
	return &Service{
		gateway:      gateway,
		officerEmail: strings.ToLower(strings.TrimSpace(officerEmail)),
		now:          time.Now,
	}
}

// Authenticate exchanges credentials for an identity. When the profile fetch
// fails for any reason but an auth error the identity is kept with the role
// derived from the email alone; ProfileCheckedAt stays zero so the refresher
// retries on the next request.
func (s *Service) Authenticate(ctx context.Context, email, password string) (shared.Identity, error) {
	email = strings.TrimSpace(email)
	token, err := s.gateway.Login(ctx, backend.Credentials{Email: email, Password: password})
	if err != nil {
		return shared.Identity{}, err
	}
	id := shared.Identity{
		Credential: token.AccessToken,
		Email:      email,
		Role:       s.ResolveRole(email, nil),
	}
	profile, err := s.gateway.FetchProfile(ctx, token.AccessToken)
	if err != nil {
		if backend.IsAuth(err) || backend.Canceled(err) {
			return shared.Identity{}, err
		}
		return id, nil
	}
	return s.enrich(id, profile), nil
}

// Refresh re-fetches the profile behind id.
func (s *Service) Refresh(ctx context.Context, id shared.Identity) (shared.Identity, error) {
	profile, err := s.gateway.FetchProfile(ctx, id.Credential)
	if err != nil {
		return id, err
	}
	return s.enrich(id, profile), nil
}

// Register creates a rider account.
func (s *Service) Register(ctx context.Context, fullName, email, password string) error {
	_, err := s.gateway.Signup(ctx, backend.Registration{
		FullName: strings.TrimSpace(fullName),
		Email:    strings.TrimSpace(email),
		Password: password,
	})
	return err
}

// ResolveRole prefers an explicit role from the profile and falls back to the
// configured officer address.
func (s *Service) ResolveRole(email string, profile *backend.Profile) shared.Role {
	if profile != nil {
		if profile.Role != "" {
			return shared.ParseRole(profile.Role)
		}
		for _, role := range profile.Roles {
			if shared.ParseRole(role) == shared.RoleOfficer {
				return shared.RoleOfficer
			}
		}
		if len(profile.Roles) > 0 {
			return shared.RoleRider
		}
	}
	if s.officerEmail != "" && strings.EqualFold(strings.TrimSpace(email), s.officerEmail) {
		return shared.RoleOfficer
	}
	return shared.RoleRider
}

func (s *Service) enrich(id shared.Identity, profile *backend.Profile) shared.Identity {
	if profile == nil {
		return id
	}
	if email := strings.TrimSpace(profile.Email); email != "" {
		id.Email = email
	}
	if name := strings.TrimSpace(profile.FullName); name != "" {
		id.DisplayName = name
	}
	id.Role = s.ResolveRole(id.Email, profile)
	id.ProfileCheckedAt = s.now().UTC()
	return id
}
