package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"rehearsal-scheduler-api/internal/auth"
)

type ctxKey string

const UserIDKey ctxKey = "uid"

// UserID returns the authenticated principal id placed by Auth. Empty for
// unauthenticated requests (only possible on routes outside the middleware).
func UserID(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

// Auth validates the Authorization: Bearer <jwt> header and threads the
// principal id through the request context. No ambient session state.
func Auth(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			unauthorized(w, "missing bearer token")
			return
		}
		claims, err := auth.ParseToken(raw, secret)
		if err != nil {
			unauthorized(w, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthenticated", "message": msg})
}
