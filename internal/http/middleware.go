package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type contextKey string

const actorKey contextKey = "actor"

// TokenParser turns a bearer token into the actor it was issued for.
type TokenParser interface {
	Parse(raw string) (domain.Actor, error)
}

// AuthMiddleware validates the bearer token and stores the actor in the
// request context.
func AuthMiddleware(tokens TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			actor, err := tokens.Parse(raw)
			if err != nil {
				log.DebugContext(r.Context(), "rejected token", "error", err)
				respondError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}
		if !actor.IsAdmin() {
			respondError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok && actor.ID != ""
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
