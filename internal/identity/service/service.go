package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"zimmet/internal/identity/models"
	id "zimmet/pkg/domain"
	dErrors "zimmet/pkg/domain-errors"
	"zimmet/pkg/email"
	"zimmet/pkg/platform/audit"
	authmw "zimmet/pkg/platform/middleware/auth"
	"zimmet/pkg/platform/sentinel"
	"zimmet/pkg/requestcontext"
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []id.UserID) ([]*models.User, error)
	List(ctx context.Context, activeOnly bool) ([]*models.User, error)
}

// Service owns the user directory and resolves token claims to principals.
type Service struct {
	users  UserStore
	events audit.Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithEvents records user.created and user.updated events.
func WithEvents(events audit.Store) Option {
	return func(s *Service) {
		s.events = events
	}
}

func New(users UserStore, opts ...Option) *Service {
	s := &Service{users: users, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolvePrincipal maps verified claims to an active user. A token for an
// unknown id that carries an email provisions a USER on first login.
func (s *Service) ResolvePrincipal(ctx context.Context, claims *authmw.Claims) (*authmw.Principal, error) {
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token subject is not a user id")
	}

	user, err := s.users.FindByID(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound):
		user, err = s.provision(ctx, userID, claims)
		if err != nil {
			return nil, err
		}
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	if !user.IsActive {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "account is disabled")
	}
	return &authmw.Principal{UserID: user.ID, Role: user.Role}, nil
}

func (s *Service) provision(ctx context.Context, userID id.UserID, claims *authmw.Claims) (*models.User, error) {
	if strings.TrimSpace(claims.Email) == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown user")
	}
	name := strings.TrimSpace(claims.Name)
	if name == "" {
		name = email.DeriveFullName(claims.Email)
	}
	user, err := models.NewUser(userID, name, claims.Email, "", id.RoleUser, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token claims cannot provision a user")
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// a concurrent first login may have won the race
			if existing, findErr := s.users.FindByID(ctx, userID); findErr == nil {
				return existing, nil
			}
			return nil, dErrors.New(dErrors.CodeUnauthorized, "email is registered to another account")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to provision user")
	}

	s.logger.InfoContext(ctx, "user provisioned on first login",
		"user_id", user.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.EventUserCreated, user, user.ID)
	return user, nil
}

// CreateUserCommand is the admin input for adding a user.
type CreateUserCommand struct {
	FullName   string
	Email      string
	Department string
	Role       id.Role
}

func (s *Service) CreateUser(ctx context.Context, cmd CreateUserCommand) (*models.User, error) {
	role := cmd.Role
	if role == "" {
		role = id.RoleUser
	}
	user, err := models.NewUser(id.NewUserID(), cmd.FullName, cmd.Email, cmd.Department, role, requestcontext.Now(ctx))
	if err != nil {
		return nil, invariantToValidation(err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.logger.InfoContext(ctx, "user created",
		"user_id", user.ID.String(),
		"actor_id", requestcontext.UserID(ctx).String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.EventUserCreated, user, requestcontext.UserID(ctx))
	return user, nil
}

// UpdateUser applies a partial change. An admin cannot disable or demote
// their own account.
func (s *Service) UpdateUser(ctx context.Context, userID id.UserID, changes models.Changes) (*models.User, error) {
	if changes.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "no changes supplied")
	}
	actor := requestcontext.UserID(ctx)
	if actor == userID {
		if changes.IsActive != nil && !*changes.IsActive {
			return nil, dErrors.New(dErrors.CodeValidation, "cannot disable your own account")
		}
		if changes.Role != nil && !changes.Role.IsAdmin() {
			return nil, dErrors.New(dErrors.CodeValidation, "cannot remove your own admin role")
		}
	}

	current, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	next, err := current.Apply(changes, requestcontext.Now(ctx))
	if err != nil {
		return nil, invariantToValidation(err)
	}
	if err := s.users.Update(ctx, next); err != nil {
		return nil, notFound(err)
	}

	s.logger.InfoContext(ctx, "user updated",
		"user_id", next.ID.String(),
		"actor_id", actor.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.EventUserUpdated, next, actor)
	return next, nil
}

// EnsureAdmin makes the account with address an active ADMIN, creating it
// when absent. Used at startup so a fresh deployment has an administrator.
func (s *Service) EnsureAdmin(ctx context.Context, address string) (*models.User, error) {
	existing, err := s.users.FindByEmail(ctx, address)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return s.CreateUser(ctx, CreateUserCommand{
			FullName: email.DeriveFullName(address),
			Email:    address,
			Role:     id.RoleAdmin,
		})
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if existing.IsAdmin() && existing.IsActive {
		return existing, nil
	}
	role, active := id.RoleAdmin, true
	next, err := existing.Apply(models.Changes{Role: &role, IsActive: &active}, requestcontext.Now(ctx))
	if err != nil {
		return nil, invariantToValidation(err)
	}
	if err := s.users.Update(ctx, next); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to promote user")
	}
	s.logger.InfoContext(ctx, "bootstrap admin promoted", "user_id", next.ID.String())
	s.emit(ctx, audit.EventUserUpdated, next, next.ID)
	return next, nil
}

func (s *Service) GetUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// ListUsers returns users ordered by name.
func (s *Service) ListUsers(ctx context.Context, activeOnly bool) ([]*models.User, error) {
	users, err := s.users.List(ctx, activeOnly)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return users, nil
}

// UsersByID loads the given users keyed by id. Unknown ids are absent.
func (s *Service) UsersByID(ctx context.Context, ids []id.UserID) (map[id.UserID]*models.User, error) {
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load users")
	}
	out := make(map[id.UserID]*models.User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// emit records a directory event. Failures are logged only; the user write
// has already happened.
func (s *Service) emit(ctx context.Context, eventType audit.EventType, user *models.User, actor id.UserID) {
	if s.events == nil {
		return
	}
	err := s.events.Append(ctx, audit.Event{
		Type:        eventType,
		Timestamp:   requestcontext.Now(ctx),
		AggregateID: user.ID.String(),
		ActorID:     actor,
		Status:      activeLabel(user.IsActive),
		RequestID:   requestcontext.RequestID(ctx),
		Device:      requestcontext.Device(ctx),
		ClientIP:    requestcontext.ClientIP(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record user event",
			"error", err,
			"event_type", string(eventType),
			"user_id", user.ID.String(),
		)
	}
}

func activeLabel(active bool) string {
	if active {
		return "ACTIVE"
	}
	return "DISABLED"
}

func notFound(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.New(dErrors.CodeConflict, "email is already in use")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "user store failure")
}

func invariantToValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}
