package shared

import (
	"fmt"
	"strings"
)

// Role names the side of a contract a party acts on.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// ParseRole normalises user input into a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleBuyer:
		return RoleBuyer, nil
	case RoleSeller:
		return RoleSeller, nil
	}
	return "", fmt.Errorf("role %q: %w", raw, ErrValidation)
}

// Counterpart returns the opposite role.
func (r Role) Counterpart() Role {
	if r == RoleBuyer {
		return RoleSeller
	}
	return RoleBuyer
}
