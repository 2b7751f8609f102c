package menu_test

import (
	"testing"

	"github.com/mentorlink/mentorlink-client/internal/domain/user"
	"github.com/mentorlink/mentorlink-client/internal/menu"
)

func routesOf(items []menu.Item) map[string]bool {
	routes := make(map[string]bool, len(items))
	for _, it := range items {
		routes[it.Route] = true
	}
	return routes
}

func TestItemsForRole(t *testing.T) {
	tests := []struct {
		name          string
		role          user.Role
		wantFirst     string
		wantRoutes    []string
		forbidsRoutes []string
	}{
		{
			name:       "admin sees user management",
			role:       user.RoleAdmin,
			wantFirst:  menu.RouteAdminDashboard,
			wantRoutes: []string{menu.RouteUserManagement, menu.RoutePackages},
		},
		{
			name:          "mentor never sees admin routes",
			role:          user.RoleMentor,
			wantFirst:     menu.RouteMentorDashboard,
			wantRoutes:    []string{menu.RouteMentorSessions, menu.RouteMentees},
			forbidsRoutes: []string{menu.RouteAdminDashboard, menu.RouteUserManagement},
		},
		{
			name:          "learner browses mentors, nothing administrative",
			role:          user.RoleLearner,
			wantFirst:     menu.RouteLearnerDashboard,
			wantRoutes:    []string{menu.RouteBrowseMentors, menu.RouteMyPackages},
			forbidsRoutes: []string{menu.RouteAdminDashboard, menu.RouteUserManagement, menu.RouteMentorSessions},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			items := menu.ItemsForRole(tc.role)

			if len(items) == 0 {
				t.Fatalf("expected a non-empty menu for %s", tc.role)
			}
			if items[0].Route != tc.wantFirst {
				t.Fatalf("first entry is %q, want %q", items[0].Route, tc.wantFirst)
			}

			routes := routesOf(items)
			for _, want := range tc.wantRoutes {
				if !routes[want] {
					t.Errorf("menu for %s is missing %q", tc.role, want)
				}
			}
			for _, forbidden := range tc.forbidsRoutes {
				if routes[forbidden] {
					t.Errorf("menu for %s must not contain %q", tc.role, forbidden)
				}
			}

			for _, it := range items {
				if it.Label == "" || it.Route == "" {
					t.Errorf("blank entry in menu for %s: %+v", tc.role, it)
				}
			}
		})
	}
}

func TestItemsForUnknownRoleIsEmptyNotNilPanic(t *testing.T) {
	items := menu.ItemsForRole(user.Role("ROOT"))

	if len(items) != 0 {
		t.Fatalf("unknown role must get an empty menu, got %v", items)
	}

	// iterating the result must be safe
	for range items {
	}
}
