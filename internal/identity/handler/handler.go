package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zimmet/internal/identity/models"
	"zimmet/internal/identity/service"
	id "zimmet/pkg/domain"
	"zimmet/pkg/platform/httputil"
	"zimmet/pkg/platform/middleware/admin"
	request "zimmet/pkg/platform/middleware/request"
	"zimmet/pkg/requestcontext"
)

// Service is the user directory surface used by the handlers.
type Service interface {
	CreateUser(ctx context.Context, cmd service.CreateUserCommand) (*models.User, error)
	UpdateUser(ctx context.Context, userID id.UserID, changes models.Changes) (*models.User, error)
	GetUser(ctx context.Context, userID id.UserID) (*models.User, error)
	ListUsers(ctx context.Context, activeOnly bool) ([]*models.User, error)
}

// Handler serves the user directory and admin user management.
type Handler struct {
	users  Service
	logger *slog.Logger
}

func New(users Service, logger *slog.Logger) *Handler {
	return &Handler{users: users, logger: logger}
}

// Register mounts the routes. Callers must already be authenticated.
func (h *Handler) Register(r chi.Router) {
	r.Get("/users", h.handleListActive)
	r.Get("/users/me", h.handleMe)

	r.Route("/admin/users", func(r chi.Router) {
		r.Use(admin.RequireAdmin(h.logger))
		r.Get("/", h.handleListAll)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handleUpdate)
	})
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context(), true)
	if err != nil {
		h.fail(w, r, "failed to list users", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSummaries(users))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "failed to load current user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context(), false)
	if err != nil {
		h.fail(w, r, "failed to list users", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateUserRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	user, err := h.users.CreateUser(ctx, service.CreateUserCommand{
		FullName:   req.FullName,
		Email:      req.Email,
		Department: req.Department,
		Role:       id.Role(req.Role),
	})
	if err != nil {
		h.fail(w, r, "failed to create user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "failed to load user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateUserRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	user, err := h.users.UpdateUser(ctx, userID, req.Changes())
	if err != nil {
		h.fail(w, r, "failed to update user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"user_id", requestcontext.UserID(ctx).String(),
		"request_id", request.GetRequestID(ctx),
	)
	httputil.WriteError(w, err)
}
