// Package menu maps a role to its ordered navigation entries.
package menu

import (
	"github.com/mentorlink/mentorlink-client/internal/domain/user"
)

type Item struct {
	Label string
	Route string
}

// Navigation destinations. The guard's capability sets and these
// routes must stay in agreement; the route is the contract.
const (
	RouteAdminDashboard   = "/admin"
	RouteUserManagement   = "/admin/users"
	RoutePackages         = "/admin/packages"
	RouteMentorDashboard  = "/mentor"
	RouteMentorSessions   = "/mentor/sessions"
	RouteMentees          = "/mentor/mentees"
	RouteLearnerDashboard = "/dashboard"
	RouteBrowseMentors    = "/mentors"
	RouteMyPackages       = "/my/packages"
	RouteProfile          = "/profile"
)

// ItemsForRole returns the navigation for the given role, in display
// order. Unknown roles get an empty menu; missing navigation is a safe
// default and must never crash the surrounding view.
func ItemsForRole(role user.Role) []Item {
	switch role {
	case user.RoleAdmin:
		return []Item{
			{Label: "Dashboard", Route: RouteAdminDashboard},
			{Label: "Users", Route: RouteUserManagement},
			{Label: "Mentors", Route: RouteBrowseMentors},
			{Label: "Packages", Route: RoutePackages},
			{Label: "Profile", Route: RouteProfile},
		}
	case user.RoleMentor:
		return []Item{
			{Label: "Dashboard", Route: RouteMentorDashboard},
			{Label: "Sessions", Route: RouteMentorSessions},
			{Label: "Mentees", Route: RouteMentees},
			{Label: "Profile", Route: RouteProfile},
		}
	case user.RoleLearner:
		return []Item{
			{Label: "Dashboard", Route: RouteLearnerDashboard},
			{Label: "Find a Mentor", Route: RouteBrowseMentors},
			{Label: "My Packages", Route: RouteMyPackages},
			{Label: "Profile", Route: RouteProfile},
		}
	default:
		return []Item{}
	}
}
