// Package guard decides whether a protected view may render for the
// current session.
package guard

import (
	"github.com/mentorlink/mentorlink-client/internal/domain/user"
)

// Decision is the outcome of evaluating a capability set against the
// current session snapshot.
type Decision int

const (
	// Allow renders the protected subtree.
	Allow Decision = iota
	// RedirectLogin sends an unauthenticated caller to the login view.
	RedirectLogin
	// RedirectUnauthorized sends an authenticated caller that lacks the
	// required role to the unauthorized view.
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "unknown"
	}
}

// Redirect destinations consumed by the view layer.
const (
	LoginRoute        = "/login"
	UnauthorizedRoute = "/unauthorized"
)

// SessionReader is the read-only slice of the session store the guard
// consults. The guard never mutates session state and never triggers a
// refresh; token freshness is the transport layer's problem.
type SessionReader interface {
	IsAuthenticated() bool
	CanAccess(roles ...user.Role) bool
}

type Guard struct {
	sessions SessionReader
}

func New(sessions SessionReader) *Guard {
	return &Guard{sessions: sessions}
}

// Decide evaluates a required capability set synchronously against the
// current snapshot. An empty set means any authenticated user.
func (g *Guard) Decide(required ...user.Role) Decision {
	if !g.sessions.IsAuthenticated() {
		return RedirectLogin
	}

	if g.sessions.CanAccess(required...) {
		return Allow
	}

	return RedirectUnauthorized
}

// RedirectTarget maps a non-Allow decision to its destination route;
// empty for Allow.
func RedirectTarget(d Decision) string {
	switch d {
	case RedirectLogin:
		return LoginRoute
	case RedirectUnauthorized:
		return UnauthorizedRoute
	default:
		return ""
	}
}
