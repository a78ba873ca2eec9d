package model

import (
	"fmt"
	"strings"
)

// Role is the closed set of marketplace roles. It is fixed at registration.
type Role string

const (
	RoleDonor    Role = "donor"
	RoleReceiver Role = "receiver"
	RoleDelivery Role = "delivery"
)

// ParseRole normalizes user input into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleDonor, RoleReceiver, RoleDelivery:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDonor, RoleReceiver, RoleDelivery:
		return true
	}
	return false
}
