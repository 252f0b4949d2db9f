package httpapi

import (
	"context"
	"net/http"
	"strings"

	"levelup-backend-go/internal/services"
)

type contextKey string

const ctxUsername contextKey = "username"

// Authenticator resolves an access token to a username.
type Authenticator interface {
	Authenticate(accessToken string) (string, error)
}

func WithAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "Authentication failed", Kind: string(services.KindUnauthorized)})
				return
			}
			tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			username, err := auth.Authenticate(tokenStr)
			if err != nil {
				WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "Authentication failed", Kind: string(services.KindUnauthorized)})
				return
			}
			ctx := context.WithValue(r.Context(), ctxUsername, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func CurrentUsername(r *http.Request) string {
	if value, ok := r.Context().Value(ctxUsername).(string); ok {
		return value
	}
	return ""
}
