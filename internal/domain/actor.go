package domain

import "github.com/google/uuid"

// Role identifies the capability level of an actor performing an operation.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor is the authenticated identity attached to every operation. The role
// claim is supplied by the external identity provider; this service only
// consumes it.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// IsAdmin reports whether the actor may perform admin-gated writes
// (validation transitions, ledger mutations, withdrawal processing).
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
