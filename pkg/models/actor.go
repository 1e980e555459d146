package models

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleRegular UserRole = "user"
	RoleNone    UserRole = ""
)

// Actor is the caller on whose behalf a category operation runs.
// Role is resolved upstream from the request credential.
type Actor struct {
	UserID string   `json:"userId"`
	Role   UserRole `json:"role"`
}

// Anonymous is the actor for unauthenticated reads and internal jobs without a role.
var Anonymous = Actor{Role: RoleNone}

// System is used by maintenance jobs such as the index CLI repair pass.
var System = Actor{UserID: "system", Role: RoleAdmin}
