package user

import "time"

// Role is the single role a user holds. It never changes while a
// session is alive; a role reported differently by the server means
// the session is stale and must be torn down, not patched.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleMentor  Role = "MENTOR"
	RoleLearner Role = "LEARNER"
)

// Valid reports whether r is one of the three defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMentor, RoleLearner:
		return true
	}
	return false
}

// ParseRole normalizes a raw role string from the server.
func ParseRole(raw string) (Role, bool) {
	r := Role(raw)
	return r, r.Valid()
}

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusDisabled Status = "DISABLED"
)

type User struct {
	ID        int64     `json:"id" validate:"required"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name" validate:"required"`
	Role      Role      `json:"role" validate:"required,oneof=ADMIN MENTOR LEARNER"`
	Status    Status    `json:"status,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Identity is the minimal slice of User persisted alongside the token
// pair; enough to answer role checks after a reload without a network
// round trip.
type Identity struct {
	ID    int64  `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}
