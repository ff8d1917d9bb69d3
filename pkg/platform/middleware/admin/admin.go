package admin

import (
	"log/slog"
	"net/http"

	dErrors "zimmet/pkg/domain-errors"
	"zimmet/pkg/platform/httputil"
	request "zimmet/pkg/platform/middleware/request"
	"zimmet/pkg/requestcontext"
)

// RequireAdmin rejects authenticated callers that do not carry the ADMIN role.
// It must run after auth.RequireAuth.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !requestcontext.IsAdmin(ctx) {
				logger.WarnContext(ctx, "admin route denied",
					"user_id", requestcontext.UserID(ctx).String(),
					"path", r.URL.Path,
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
