package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "zimmet/pkg/domain"
	dErrors "zimmet/pkg/domain-errors"
	"zimmet/pkg/platform/httputil"
	request "zimmet/pkg/platform/middleware/request"
	"zimmet/pkg/requestcontext"
)

// TokenValidator verifies a bearer credential issued by the identity provider.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims are the identity facts the gate needs from a verified token.
type Claims struct {
	UserID string
	Email  string
	Name   string
}

// Principal is the internal user a token resolved to.
type Principal struct {
	UserID id.UserID
	Role   id.Role
}

// PrincipalResolver maps verified claims to an active internal user.
// Disabled or unknown accounts return a CodeUnauthorized error.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, claims *Claims) (*Principal, error)
}

// QueryTokenParam carries the token for clients that cannot set headers (browser websockets).
const QueryTokenParam = "token"

func bearerToken(r *http.Request) (string, bool) {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && after != "" {
		return after, true
	}
	if tok := r.URL.Query().Get(QueryTokenParam); tok != "" {
		return tok, true
	}
	return "", false
}

func RequireAuth(validator TokenValidator, resolver PrincipalResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := bearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			principal, err := resolver.ResolvePrincipal(ctx, claims)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					logger.WarnContext(ctx, "unauthorized access - account rejected",
						"error", err,
						"user_id", claims.UserID,
						"request_id", requestID,
					)
				} else {
					logger.ErrorContext(ctx, "failed to resolve principal",
						"error", err,
						"request_id", requestID,
					)
				}
				httputil.WriteError(w, err)
				return
			}

			ctx = requestcontext.WithUser(ctx, principal.UserID, principal.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
