package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Johnnypoon1024917/TripWeaver-sub000/session"
)

type contextKey string

const PrincipalIDKey contextKey = "principal_id"

// AuthMiddleware resolves the session token from the session cookie or an
// Authorization: Bearer header and puts the principal in the context.
// Requests without a valid session pass through unauthenticated.
func AuthMiddleware(sessionRepo session.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie := SessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := sessionRepo.GetByToken(r.Context(), token)
			if err != nil {
				if !errors.Is(err, session.ErrInvalidSession) && !errors.Is(err, session.ErrExpiredSession) {
					slog.Error("failed to resolve session", "error", err)
				}
				if fromCookie {
					http.SetCookie(w, &http.Cookie{
						Name:   session.CookieName,
						Value:  "",
						Path:   "/",
						MaxAge: -1,
					})
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithPrincipalID(r.Context(), sess.PrincipalID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionToken returns the request's session token and whether it came
// from the session cookie. A Bearer header takes precedence.
func SessionToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token), false
		}
	}
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		return cookie.Value, true
	}
	return "", false
}

// RequireAuth answers 401 when no principal was resolved
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetPrincipalID(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithPrincipalID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, PrincipalIDKey, id)
}

// GetPrincipalID extracts the principal ID from context
func GetPrincipalID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(PrincipalIDKey).(uuid.UUID)
	return id, ok
}
