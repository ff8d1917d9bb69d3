package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"zimmet/internal/identity/models"
	"zimmet/internal/identity/store"
	id "zimmet/pkg/domain"
	dErrors "zimmet/pkg/domain-errors"
	"zimmet/pkg/platform/audit"
	auditmemory "zimmet/pkg/platform/audit/store/memory"
	authmw "zimmet/pkg/platform/middleware/auth"
	"zimmet/pkg/requestcontext"
)

type IdentityServiceSuite struct {
	suite.Suite
	store   *store.InMemoryUserStore
	events  *auditmemory.InMemoryStore
	service *Service
	ctx     context.Context
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.events = auditmemory.NewInMemoryStore()
	s.service = New(s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithEvents(s.events),
	)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
}

func (s *IdentityServiceSuite) seed(name, mail string, role id.Role) *models.User {
	u, err := s.service.CreateUser(s.ctx, CreateUserCommand{FullName: name, Email: mail, Role: role})
	s.Require().NoError(err)
	return u
}

func (s *IdentityServiceSuite) TestResolvePrincipal() {
	s.Run("known active user", func() {
		u := s.seed("Ayşe Kaya", "ayse@corp.example", id.RoleAdmin)
		p, err := s.service.ResolvePrincipal(s.ctx, &authmw.Claims{UserID: u.ID.String()})
		s.Require().NoError(err)
		s.Equal(u.ID, p.UserID)
		s.Equal(id.RoleAdmin, p.Role)
	})

	s.Run("disabled user is unauthorized", func() {
		u := s.seed("Can Demir", "can@corp.example", id.RoleUser)
		off := false
		_, err := s.service.UpdateUser(s.ctx, u.ID, models.Changes{IsActive: &off})
		s.Require().NoError(err)

		_, err = s.service.ResolvePrincipal(s.ctx, &authmw.Claims{UserID: u.ID.String()})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("malformed subject is unauthorized", func() {
		_, err := s.service.ResolvePrincipal(s.ctx, &authmw.Claims{UserID: "not-a-uuid"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown user without email is unauthorized", func() {
		_, err := s.service.ResolvePrincipal(s.ctx, &authmw.Claims{UserID: id.NewUserID().String()})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("first login provisions a USER", func() {
		uid := id.NewUserID()
		p, err := s.service.ResolvePrincipal(s.ctx, &authmw.Claims{UserID: uid.String(), Email: "Mehmet.Oz@corp.example"})
		s.Require().NoError(err)
		s.Equal(uid, p.UserID)
		s.Equal(id.RoleUser, p.Role)

		u, err := s.service.GetUser(s.ctx, uid)
		s.Require().NoError(err)
		s.Equal("Mehmet Oz", u.FullName)
		s.Equal("mehmet.oz@corp.example", u.Email)
	})

	s.Run("first login with a taken email is unauthorized", func() {
		s.seed("Zeynep Ak", "zeynep@corp.example", id.RoleUser)
		_, err := s.service.ResolvePrincipal(s.ctx, &authmw.Claims{UserID: id.NewUserID().String(), Email: "ZEYNEP@corp.example"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *IdentityServiceSuite) TestCreateUser() {
	u := s.seed("Ali Veli", "ali@corp.example", "")
	s.Equal(id.RoleUser, u.Role)
	s.True(u.IsActive)

	_, err := s.service.CreateUser(s.ctx, CreateUserCommand{FullName: "Other", Email: "ALI@corp.example"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.service.CreateUser(s.ctx, CreateUserCommand{FullName: " ", Email: "x@corp.example"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.CreateUser(s.ctx, CreateUserCommand{FullName: "X", Email: "not-an-email"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Equal(audit.EventUserCreated, s.events.Pending()[0].EventType)
}

func (s *IdentityServiceSuite) TestUpdateUser() {
	admin := s.seed("Ada Admin", "ada@corp.example", id.RoleAdmin)
	u := s.seed("Bora Bulut", "bora@corp.example", id.RoleUser)
	ctx := requestcontext.WithUser(s.ctx, admin.ID, id.RoleAdmin)

	dept := "Finance"
	role := id.RoleAdmin
	updated, err := s.service.UpdateUser(ctx, u.ID, models.Changes{Department: &dept, Role: &role})
	s.Require().NoError(err)
	s.Equal("Finance", updated.Department)
	s.Equal(id.RoleAdmin, updated.Role)

	_, err = s.service.UpdateUser(ctx, u.ID, models.Changes{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.UpdateUser(ctx, id.NewUserID(), models.Changes{Department: &dept})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	off := false
	_, err = s.service.UpdateUser(ctx, admin.ID, models.Changes{IsActive: &off})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	demote := id.RoleUser
	_, err = s.service.UpdateUser(ctx, admin.ID, models.Changes{Role: &demote})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *IdentityServiceSuite) TestListAndLookup() {
	b := s.seed("Bora Bulut", "bora@corp.example", id.RoleUser)
	a := s.seed("Ada Admin", "ada@corp.example", id.RoleAdmin)
	c := s.seed("Cem Can", "cem@corp.example", id.RoleUser)
	off := false
	_, err := s.service.UpdateUser(s.ctx, c.ID, models.Changes{IsActive: &off})
	s.Require().NoError(err)

	active, err := s.service.ListUsers(s.ctx, true)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal(a.ID, active[0].ID)
	s.Equal(b.ID, active[1].ID)

	all, err := s.service.ListUsers(s.ctx, false)
	s.Require().NoError(err)
	s.Len(all, 3)

	byID, err := s.service.UsersByID(s.ctx, []id.UserID{a.ID, c.ID, id.NewUserID()})
	s.Require().NoError(err)
	s.Len(byID, 2)
	s.Equal("Cem Can", byID[c.ID].FullName)
}

func (s *IdentityServiceSuite) TestEnsureAdmin() {
	s.Run("creates a missing admin", func() {
		u, err := s.service.EnsureAdmin(s.ctx, "ops.lead@corp.example")
		s.Require().NoError(err)
		s.Equal(id.RoleAdmin, u.Role)
		s.Equal("Ops Lead", u.FullName)

		again, err := s.service.EnsureAdmin(s.ctx, "OPS.LEAD@corp.example")
		s.Require().NoError(err)
		s.Equal(u.ID, again.ID)
	})

	s.Run("promotes and reactivates an existing user", func() {
		u := s.seed("Eda Er", "eda@corp.example", id.RoleUser)
		off := false
		_, err := s.service.UpdateUser(s.ctx, u.ID, models.Changes{IsActive: &off})
		s.Require().NoError(err)

		promoted, err := s.service.EnsureAdmin(s.ctx, "eda@corp.example")
		s.Require().NoError(err)
		s.Equal(u.ID, promoted.ID)
		s.True(promoted.IsAdmin())
		s.True(promoted.IsActive)
	})
}
