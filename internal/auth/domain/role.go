package domain

import (
	"errors"
	"strings"
)

var ErrUnknownRole = errors.New("unknown role")

type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleHR     Role = "HR"
	RoleViewer Role = "Viewer"
)

var roles = []Role{RoleAdmin, RoleHR, RoleViewer}

func (r Role) Valid() bool {
	for _, known := range roles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole accepts any casing of a known role name.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	for _, known := range roles {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", ErrUnknownRole
}
