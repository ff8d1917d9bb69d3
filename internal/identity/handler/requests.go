package handler

import (
	"strings"

	"zimmet/internal/identity/models"
	id "zimmet/pkg/domain"
	dErrors "zimmet/pkg/domain-errors"
)

type CreateUserRequest struct {
	FullName   string `json:"fullName" validate:"required,max=128"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Department string `json:"department" validate:"max=128"`
	Role       string `json:"role" validate:"omitempty,oneof=USER ADMIN"`
}

func (r *CreateUserRequest) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	if r.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "fullname is required")
	}
	return nil
}

type UpdateUserRequest struct {
	FullName   *string `json:"fullName" validate:"omitempty,max=128"`
	Department *string `json:"department" validate:"omitempty,max=128"`
	Role       *string `json:"role" validate:"omitempty,oneof=USER ADMIN"`
	IsActive   *bool   `json:"isActive"`
}

func (r *UpdateUserRequest) Validate() error {
	if r.FullName == nil && r.Department == nil && r.Role == nil && r.IsActive == nil {
		return dErrors.New(dErrors.CodeValidation, "no changes supplied")
	}
	return nil
}

// Changes converts the request after validation.
func (r *UpdateUserRequest) Changes() models.Changes {
	c := models.Changes{
		FullName:   r.FullName,
		Department: r.Department,
		IsActive:   r.IsActive,
	}
	if r.Role != nil {
		role := id.Role(*r.Role)
		c.Role = &role
	}
	return c
}

// UserSummaryResponse is the directory entry shown to every user.
type UserSummaryResponse struct {
	ID         id.UserID `json:"id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Department string    `json:"department,omitempty"`
}

func toSummaries(users []*models.User) []UserSummaryResponse {
	out := make([]UserSummaryResponse, 0, len(users))
	for _, u := range users {
		out = append(out, UserSummaryResponse{
			ID:         u.ID,
			FullName:   u.FullName,
			Email:      u.Email,
			Department: u.Department,
		})
	}
	return out
}
