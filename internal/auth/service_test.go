package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusride/nexusride-web/internal/backend"
	"github.com/nexusride/nexusride-web/internal/shared"
)

type stubGateway struct {
	token      *backend.Token
	loginErr   error
	profile    *backend.Profile
	profileErr error
	signupErr  error
	registered backend.Registration
}

func (s *stubGateway) Login(ctx context.Context, creds backend.Credentials) (*backend.Token, error) {
	return s.token, s.loginErr
}

func (s *stubGateway) Signup(ctx context.Context, reg backend.Registration) (*backend.Profile, error) {
	s.registered = reg
	return nil, s.signupErr
}

func (s *stubGateway) FetchProfile(ctx context.Context, token string) (*backend.Profile, error) {
	return s.profile, s.profileErr
}

func TestResolveRole(t *testing.T) {
	svc := NewService(&stubGateway{}, " Officer@IUT-Dhaka.edu ")

	assert.Equal(t, shared.RoleOfficer, svc.ResolveRole("officer@iut-dhaka.edu", nil))
	assert.Equal(t, shared.RoleRider, svc.ResolveRole("rider@iut-dhaka.edu", nil))
	assert.Equal(t, shared.RoleOfficer, svc.ResolveRole("someone@iut-dhaka.edu", &backend.Profile{Role: "TO"}))
	assert.Equal(t, shared.RoleOfficer, svc.ResolveRole("someone@iut-dhaka.edu", &backend.Profile{Roles: []string{"STUDENT", "officer"}}))
	// An explicit profile role wins over the configured address.
	assert.Equal(t, shared.RoleRider, svc.ResolveRole("officer@iut-dhaka.edu", &backend.Profile{Role: "STUDENT"}))
	assert.Equal(t, shared.RoleRider, svc.ResolveRole("officer@iut-dhaka.edu", &backend.Profile{Roles: []string{"STUDENT"}}))
	assert.Equal(t, shared.RoleOfficer, svc.ResolveRole("officer@iut-dhaka.edu", &backend.Profile{}))
}

func TestAuthenticateEnrichesFromProfile(t *testing.T) {
	gw := &stubGateway{
		token:   &backend.Token{AccessToken: "tok"},
		profile: &backend.Profile{Email: "rider@iut-dhaka.edu", FullName: "Rafi Rahman", Role: "STUDENT"},
	}
	svc := NewService(gw, "officer@iut-dhaka.edu")
	fixed := time.Date(2026, 1, 24, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	id, err := svc.Authenticate(context.Background(), " rider@iut-dhaka.edu ", "password1")
	require.NoError(t, err)
	assert.Equal(t, shared.Identity{
		Credential:       "tok",
		Email:            "rider@iut-dhaka.edu",
		DisplayName:      "Rafi Rahman",
		Role:             shared.RoleRider,
		ProfileCheckedAt: fixed,
	}, id)
}

func TestAuthenticateKeepsIdentityWhenProfileUnavailable(t *testing.T) {
	gw := &stubGateway{
		token:      &backend.Token{AccessToken: "tok"},
		profileErr: &backend.Error{Kind: backend.KindNetwork},
	}
	svc := NewService(gw, "officer@iut-dhaka.edu")

	id, err := svc.Authenticate(context.Background(), "officer@iut-dhaka.edu", "password1")
	require.NoError(t, err)
	assert.True(t, id.IsOfficer())
	assert.True(t, id.ProfileCheckedAt.IsZero())
}

func TestAuthenticateRejected(t *testing.T) {
	svc := NewService(&stubGateway{loginErr: &backend.Error{Kind: backend.KindAuth}}, "")
	_, err := svc.Authenticate(context.Background(), "a@iut-dhaka.edu", "x")
	assert.True(t, backend.IsAuth(err))

	svc = NewService(&stubGateway{token: &backend.Token{AccessToken: "tok"}, profileErr: &backend.Error{Kind: backend.KindAuth}}, "")
	_, err = svc.Authenticate(context.Background(), "a@iut-dhaka.edu", "x")
	assert.True(t, backend.IsAuth(err))
}

func TestRegisterTrimsFields(t *testing.T) {
	gw := &stubGateway{}
	svc := NewService(gw, "")
	require.NoError(t, svc.Register(context.Background(), " Nadia ", " nadia@iut-dhaka.edu ", "password1"))
	assert.Equal(t, backend.Registration{FullName: "Nadia", Email: "nadia@iut-dhaka.edu", Password: "password1"}, gw.registered)
}
