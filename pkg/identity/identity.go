// Package identity defines the authenticated caller that the session core
// attaches to each request, and the context helpers downstream handlers use
// to read it back.
package identity

import "fmt"

// Role is the privilege level of an identity. It is only ever read from the
// persisted user record, never from a client or identity provider payload.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

// Identity is the subject of an access token.
type Identity struct {
	Subject string `json:"userId"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
