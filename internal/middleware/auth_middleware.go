// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"kntpass.backend/internal/config"
)

type contextKey string

const userContextKey = contextKey("userClaims")

// Roles carried in issued tokens.
const (
	RoleAdmin    = "admin"
	RoleReseller = "reseller"
)

// AppClaims must match the structure issued by the login handlers.
type AppClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, `{"success":false,"message":"Missing authorization header"}`, http.StatusUnauthorized)
			return
		}

		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || headerParts[0] != "Bearer" {
			http.Error(w, `{"success":false,"message":"Invalid authorization header format"}`, http.StatusUnauthorized)
			return
		}
		tokenString := headerParts[1]

		claims := &AppClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return config.Cfg.JWTSecret, nil
		})

		if err != nil || !token.Valid {
			http.Error(w, `{"success":false,"message":"Invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetClaimsFromContext(r *http.Request) (*AppClaims, bool) {
	claims, ok := r.Context().Value(userContextKey).(*AppClaims)
	return claims, ok
}
