package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/choreboard/internal/auth"
	"github.com/dukerupert/choreboard/internal/model"
)

// UserLookup loads the user a token was issued for.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
}

// RequireAuth resolves the bearer token to a current user record and places
// the caller's Actor in the request context. Browsers opening a websocket
// cannot set headers, so a ?token= query parameter is accepted too.
func RequireAuth(tokens *auth.TokenIssuer, users UserLookup) func(http.Handler) http.Handler {
	return authenticate(tokens, users, true)
}

// OptionalAuth is RequireAuth for routes that also serve anonymous callers.
// A token that is present must still be valid.
func OptionalAuth(tokens *auth.TokenIssuer, users UserLookup) func(http.Handler) http.Handler {
	return authenticate(tokens, users, false)
}

func authenticate(tokens *auth.TokenIssuer, users UserLookup, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				if required {
					unauthorized(w, "authentication required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			userID, err := tokens.Parse(raw)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			// Admin status is read fresh so a demotion takes effect at once.
			u, err := users.GetUser(r.Context(), userID)
			if err != nil || u == nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			reportUser(r.Context(), u.ID)
			ctx := auth.WithActor(r.Context(), auth.ActorFor(u))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects callers whose Actor is not an admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, _ := auth.FromContext(r.Context())
		if !auth.IsAdmin(a) {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="choreboard"`)
	writeError(w, http.StatusUnauthorized, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
