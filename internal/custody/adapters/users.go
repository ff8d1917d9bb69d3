package adapters

import (
	"context"

	"zimmet/internal/custody/models"
	"zimmet/internal/custody/service"
	identityModels "zimmet/internal/identity/models"
	id "zimmet/pkg/domain"
	dErrors "zimmet/pkg/domain-errors"
	"zimmet/pkg/platform/sentinel"
)

// IdentityService is the part of the identity module custody depends on.
type IdentityService interface {
	GetUser(ctx context.Context, userID id.UserID) (*identityModels.User, error)
	UsersByID(ctx context.Context, ids []id.UserID) (map[id.UserID]*identityModels.User, error)
}

// UserDirectoryAdapter implements service.UserDirectory by calling the
// identity service in process.
type UserDirectoryAdapter struct {
	identity IdentityService
}

func NewUserDirectoryAdapter(identity IdentityService) service.UserDirectory {
	return &UserDirectoryAdapter{identity: identity}
}

// FindParty returns sentinel.ErrNotFound when the identity module has no such user.
func (a *UserDirectoryAdapter) FindParty(ctx context.Context, userID id.UserID) (*models.Party, error) {
	user, err := a.identity.GetUser(ctx, userID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &models.Party{
		UserSummary: toSummary(user),
		Active:      user.IsActive,
		Admin:       user.IsAdmin(),
	}, nil
}

func (a *UserDirectoryAdapter) Summaries(ctx context.Context, ids []id.UserID) (map[id.UserID]models.UserSummary, error) {
	users, err := a.identity.UsersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[id.UserID]models.UserSummary, len(users))
	for uid, u := range users {
		out[uid] = toSummary(u)
	}
	return out, nil
}

func toSummary(u *identityModels.User) models.UserSummary {
	return models.UserSummary{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		Department: u.Department,
	}
}
