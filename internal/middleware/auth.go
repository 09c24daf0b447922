package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/open-sun/software/internal/apperr"
	"github.com/open-sun/software/internal/auth"
	"github.com/open-sun/software/internal/httpx"
	"github.com/open-sun/software/internal/models"
)

// RequireAuth is middleware that validates the session cookie and
// injects the user id into the request context.
func RequireAuth(sessions auth.Sessions, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.SessionCookie)
			if err != nil {
				httpx.WriteError(w, logger, apperr.New(apperr.Unauthorized, "not authenticated"))
				return
			}

			userID, err := sessions.Get(r.Context(), cookie.Value)
			if err != nil || userID == 0 {
				httpx.WriteError(w, logger, apperr.New(apperr.Unauthorized, "session expired"))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}

// UserLookup resolves the session user for role checks.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// RequireRole rejects authenticated users whose role differs from role.
// It must run after RequireAuth.
func RequireRole(users UserLookup, role string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := auth.UserIDFrom(r.Context())
			if !ok {
				httpx.WriteError(w, logger, apperr.New(apperr.Unauthorized, "not authenticated"))
				return
			}
			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil {
				httpx.WriteError(w, logger, apperr.Wrap(apperr.Unauthorized, "session user not found", err))
				return
			}
			if user.Role != role {
				httpx.WriteError(w, logger, apperr.New(apperr.Forbidden, role+" role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
