package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofrs/uuid"

	"github.com/artisansalley/backend/internal/user"
)

type contextKey string

const actorKey contextKey = "actor"

// ActorMiddleware resolves the acting user from the X-User-ID header set by
// the authenticating reverse proxy. Token verification itself happens
// upstream; this service only needs the identity and role.
func ActorMiddleware(users user.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawID := r.Header.Get("X-User-ID")
			if rawID == "" {
				respondWithError(w, http.StatusUnauthorized, "missing X-User-ID header")
				return
			}

			id, err := uuid.FromString(rawID)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "invalid X-User-ID header")
				return
			}

			actor, err := users.GetByID(r.Context(), id)
			if err != nil {
				if errors.Is(err, user.ErrUserNotFound) {
					respondWithError(w, http.StatusUnauthorized, "unknown user")
					return
				}
				respondWithServiceError(w, err)
				return
			}
			if !actor.IsActive {
				respondWithError(w, http.StatusForbidden, "user is deactivated")
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func actorFromContext(ctx context.Context) (*user.User, bool) {
	actor, ok := ctx.Value(actorKey).(*user.User)
	return actor, ok
}
