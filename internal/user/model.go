package user

import (
	"fmt"
	"time"
)

// Role is the closed set of account roles in the marketplace.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleTajira Role = "tajira"
	RoleModel  Role = "model"
	RoleAdmin  Role = "admin"
)

// ParseRole validates a role string at the boundary so ad-hoc strings
// never reach the core.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleBuyer, RoleTajira, RoleModel, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("invalid role %q", s)
}

func (r Role) String() string { return string(r) }

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"` // Never expose password hash in JSON
	Role         Role      `json:"role"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
