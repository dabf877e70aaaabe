package models

// Role is the CRM role carried in the auth token.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
	RoleClient   Role = "client"
)

// AdminLike reports whether the role carries moderation privileges.
func (r Role) AdminLike() bool {
	return r == RoleAdmin || r == RoleManager
}

// Principal is the authenticated caller as established by token verification.
type Principal struct {
	ID   int    `json:"id"`
	Role Role   `json:"role"`
	Name string `json:"name"`
}
