package models

import (
	"net/mail"
	"strings"
	"time"

	id "zimmet/pkg/domain"
	dErrors "zimmet/pkg/domain-errors"
)

const (
	MaxFullNameLength   = 128
	MaxDepartmentLength = 128
)

// User is a ledger participant.
//
// Invariants:
//   - FullName is non-empty and at most 128 characters
//   - Email is a valid address; stored lower-cased and unique
//   - Role is USER or ADMIN
//   - Disabled users keep their history but cannot authenticate or receive custody
type User struct {
	ID         id.UserID `json:"id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Department string    `json:"department,omitempty"`
	Role       id.Role   `json:"role"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NewUser validates and builds an active user.
func NewUser(userID id.UserID, fullName, email, department string, role id.Role, now time.Time) (*User, error) {
	u := &User{
		ID:         userID,
		FullName:   strings.TrimSpace(fullName),
		Email:      NormalizeEmail(email),
		Department: strings.TrimSpace(department),
		Role:       role,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := u.validate(); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) validate() error {
	if u.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "user id cannot be nil")
	}
	if u.FullName == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "full name cannot be empty")
	}
	if len(u.FullName) > MaxFullNameLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "full name is too long")
	}
	if len(u.Department) > MaxDepartmentLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "department is too long")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil || !strings.Contains(u.Email, "@") {
		return dErrors.New(dErrors.CodeInvariantViolation, "email is invalid")
	}
	if !u.Role.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "role must be USER or ADMIN")
	}
	return nil
}

func (u *User) IsAdmin() bool { return u.Role.IsAdmin() }

// Changes is a partial update. Nil fields are left untouched.
type Changes struct {
	FullName   *string
	Department *string
	Role       *id.Role
	IsActive   *bool
}

// IsEmpty reports whether no field is set.
func (c Changes) IsEmpty() bool {
	return c.FullName == nil && c.Department == nil && c.Role == nil && c.IsActive == nil
}

// Apply writes c onto a copy of u and validates the result.
func (u *User) Apply(c Changes, now time.Time) (*User, error) {
	next := *u
	if c.FullName != nil {
		next.FullName = strings.TrimSpace(*c.FullName)
	}
	if c.Department != nil {
		next.Department = strings.TrimSpace(*c.Department)
	}
	if c.Role != nil {
		next.Role = *c.Role
	}
	if c.IsActive != nil {
		next.IsActive = *c.IsActive
	}
	next.UpdatedAt = now
	if err := next.validate(); err != nil {
		return nil, err
	}
	return &next, nil
}

// NormalizeEmail trims and lower-cases an address for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
