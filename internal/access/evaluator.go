// Package access decides which dashboard a visitor may see.
//
// Evaluate is a pure function of the visitor, the result of the subscription
// lookup and the requested path. All I/O happens in Gate, once per request.
package access

import (
	"fmt"

	"github.com/nexusride/nexusride-web/internal/backend"
	"github.com/nexusride/nexusride-web/internal/shared"
)

// Gated paths.
const (
	PathLogin                = "/login"
	PathDashboard            = "/dashboard"
	PathSubscriber           = "/subscriber"
	PathOfficerDashboard     = "/to-dashboard"
	PathSubscriptionRequests = "/subscription-requests"
	PathSeatAvailability     = "/seat-availability"
	PathTokenHistory         = "/token-history"
)

// Variant names the dashboard shell to render.
type Variant string

const (
	VariantRider      Variant = "rider"
	VariantSubscriber Variant = "subscriber"
	VariantOfficer    Variant = "officer"
	// VariantPage is any page that only requires a signed-in visitor.
	VariantPage Variant = "page"
)

// Action is what the router does with a Decision.
type Action int

const (
	ActionRender Action = iota + 1
	ActionRedirect
)

// Decision is the outcome of Evaluate.
type Decision struct {
	Action  Action
	Variant Variant
	Target  string
}

// Render returns a render decision for v.
func Render(v Variant) Decision {
	return Decision{Action: ActionRender, Variant: v}
}

// Redirect returns a redirect decision to path.
func Redirect(path string) Decision {
	return Decision{Action: ActionRedirect, Target: path}
}

// IsRedirect reports whether the router must redirect.
func (d Decision) IsRedirect() bool {
	return d.Action == ActionRedirect
}

func (d Decision) String() string {
	switch d.Action {
	case ActionRender:
		return fmt.Sprintf("RENDER(%s)", d.Variant)
	case ActionRedirect:
		return fmt.Sprintf("REDIRECT(%s)", d.Target)
	default:
		return "UNDECIDED"
	}
}

// Subject is the part of the session the rules look at.
type Subject struct {
	Authenticated bool
	Role          shared.Role
}

// SubjectOf derives the Subject of an identity.
func SubjectOf(id shared.Identity) Subject {
	return Subject{Authenticated: id.Authenticated(), Role: id.Role}
}

// Lookup is the outcome of fetching the visitor's subscription.
// The zero value means "no subscription".
type Lookup struct {
	Subscription *backend.Subscription
	Err          error
}

// Found wraps a fetched subscription. A nil subscription is absence.
func Found(sub *backend.Subscription) Lookup {
	return Lookup{Subscription: sub}
}

// Failed wraps a lookup error.
func Failed(err error) Lookup {
	return Lookup{Err: err}
}

// Status returns the normalized status. Failed lookups read as StatusNone.
func (l Lookup) Status() string {
	if l.Err != nil {
		return backend.StatusNone
	}
	return l.Subscription.NormalizedStatus()
}

// IsOfficerPath reports whether path belongs to the officer tooling.
func IsOfficerPath(path string) bool {
	return path == PathOfficerDashboard || path == PathSubscriptionRequests
}

// Evaluate applies the access rules in order; the first match wins.
func Evaluate(subject Subject, lookup Lookup, target string) Decision {
	if !subject.Authenticated {
		return Redirect(PathLogin)
	}

	if subject.Role == shared.RoleOfficer {
		if IsOfficerPath(target) {
			return Render(VariantOfficer)
		}
		return Redirect(PathOfficerDashboard)
	}

	if IsOfficerPath(target) {
		return Redirect(PathDashboard)
	}

	status := lookup.Status()
	switch target {
	case PathSubscriber:
		if status == backend.StatusPending || status == backend.StatusActive {
			return Render(VariantSubscriber)
		}
		return Redirect(PathDashboard)
	case PathDashboard:
		if status == backend.StatusActive {
			return Redirect(PathSubscriber)
		}
		return Render(VariantRider)
	}

	return Render(VariantPage)
}

// NeedsSubscription reports whether the lookup can change the decision for
// subject at target. The gate skips the fetch otherwise.
func NeedsSubscription(subject Subject, target string) bool {
	if !subject.Authenticated || subject.Role == shared.RoleOfficer {
		return false
	}
	return target == PathSubscriber || target == PathDashboard
}
