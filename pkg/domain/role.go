package domain

import dErrors "zimmet/pkg/domain-errors"

// Role is the coarse authorization level of a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole accepts exactly USER or ADMIN.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role must be USER or ADMIN")
	}
	return r, nil
}

func (r Role) IsValid() bool { return r == RoleUser || r == RoleAdmin }
func (r Role) IsAdmin() bool { return r == RoleAdmin }
func (r Role) String() string { return string(r) }
