package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"kntpass.backend/internal/config"
	"kntpass.backend/internal/middleware"
)

// tokenTTL is how long an issued admin or reseller session lasts.
const tokenTTL = 8 * time.Hour

// failedLoginDelay slows down brute-force attempts.
const failedLoginDelay = time.Second

func issueToken(role, subject string) (string, error) {
	claims := &middleware.AppClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			Subject:   subject,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(config.Cfg.JWTSecret)
}

// AdminLoginHandler exchanges the admin credentials for a JWT carrying
// the admin role.
func AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "Invalid request body")
		return
	}
	if creds.Username == "" || creds.Password == "" {
		writeMessage(w, http.StatusBadRequest, false, "Username and password are required.")
		return
	}

	usernameOK := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(config.Cfg.AdminUser)) == 1
	passwordOK := bcrypt.CompareHashAndPassword(config.Cfg.AdminPassHash, []byte(creds.Password)) == nil
	if !usernameOK || !passwordOK {
		time.Sleep(failedLoginDelay)
		writeMessage(w, http.StatusUnauthorized, false, "Invalid credentials.")
		return
	}

	token, err := issueToken(middleware.RoleAdmin, creds.Username)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, false, "Could not create auth token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"message": "Login successful.",
	})
}

// ResellerLoginHandler exchanges the reseller password (kept in the
// product config) for a JWT carrying the reseller role.
func ResellerLoginHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	var creds struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Password == "" {
		writeMessage(w, http.StatusBadRequest, false, "Password is required.")
		return
	}

	cfg, err := Products.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	saved := ""
	if cfg != nil {
		saved = strings.TrimSpace(cfg.ResellerPassword)
	}
	if saved == "" || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(creds.Password)), []byte(saved)) != 1 {
		time.Sleep(failedLoginDelay)
		writeMessage(w, http.StatusUnauthorized, false, "Invalid password.")
		return
	}

	token, err := issueToken(middleware.RoleReseller, "reseller")
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, false, "Could not create auth token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}
