package testutil

import (
	"net/http"

	id "zimmet/pkg/domain"
	"zimmet/pkg/requestcontext"
)

// WithUser attaches an authenticated principal, as the auth middleware would.
func WithUser(req *http.Request, userID id.UserID, role id.Role) *http.Request {
	return req.WithContext(requestcontext.WithUser(req.Context(), userID, role))
}

// AsUser authenticates req as a plain USER.
func AsUser(req *http.Request, userID id.UserID) *http.Request {
	return WithUser(req, userID, id.RoleUser)
}

// AsAdmin authenticates req as an ADMIN.
func AsAdmin(req *http.Request, userID id.UserID) *http.Request {
	return WithUser(req, userID, id.RoleAdmin)
}
