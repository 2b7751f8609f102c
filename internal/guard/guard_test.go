package guard_test

import (
	"testing"

	"github.com/mentorlink/mentorlink-client/internal/domain/user"
	"github.com/mentorlink/mentorlink-client/internal/guard"
)

// fakeSession is a frozen session snapshot.
type fakeSession struct {
	authenticated bool
	role          user.Role
}

func (f fakeSession) IsAuthenticated() bool { return f.authenticated }

func (f fakeSession) CanAccess(roles ...user.Role) bool {
	if !f.authenticated {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == f.role {
			return true
		}
	}
	return false
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		session  fakeSession
		required []user.Role
		want     guard.Decision
	}{
		{
			name:     "unauthenticated caller goes to login",
			session:  fakeSession{},
			required: []user.Role{user.RoleAdmin},
			want:     guard.RedirectLogin,
		},
		{
			name:     "unauthenticated caller goes to login even for an open set",
			session:  fakeSession{},
			required: nil,
			want:     guard.RedirectLogin,
		},
		{
			name:     "matching role is allowed",
			session:  fakeSession{authenticated: true, role: user.RoleAdmin},
			required: []user.Role{user.RoleAdmin},
			want:     guard.Allow,
		},
		{
			name:     "role in a multi-role set is allowed",
			session:  fakeSession{authenticated: true, role: user.RoleMentor},
			required: []user.Role{user.RoleAdmin, user.RoleMentor},
			want:     guard.Allow,
		},
		{
			name:     "wrong role is unauthorized, not login",
			session:  fakeSession{authenticated: true, role: user.RoleLearner},
			required: []user.Role{user.RoleAdmin},
			want:     guard.RedirectUnauthorized,
		},
		{
			name:     "empty set admits any authenticated user",
			session:  fakeSession{authenticated: true, role: user.RoleLearner},
			required: nil,
			want:     guard.Allow,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := guard.New(tc.session)

			if got := g.Decide(tc.required...); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRedirectTarget(t *testing.T) {
	if got := guard.RedirectTarget(guard.RedirectLogin); got != guard.LoginRoute {
		t.Fatalf("got %q, want %q", got, guard.LoginRoute)
	}
	if got := guard.RedirectTarget(guard.RedirectUnauthorized); got != guard.UnauthorizedRoute {
		t.Fatalf("got %q, want %q", got, guard.UnauthorizedRoute)
	}
	if got := guard.RedirectTarget(guard.Allow); got != "" {
		t.Fatalf("allow has no redirect target, got %q", got)
	}
}
