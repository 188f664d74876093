package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"kntpass.backend/internal/fulfillment"
)

// Seller proxy limits mirroring what the partner API tolerates.
const (
	bulkAccountLimit = 2000
	// bulkAccountDelay spaces out bulk inserts so the partner API is not
	// hammered.
	bulkAccountDelay = 300 * time.Millisecond
)

var (
	uidPattern       = regexp.MustCompile(`^\d+$`)
	accountLineSplit = regexp.MustCompile(`[;:\-_/]`)
)

// SellersHandler is the action-dispatch endpoint used by the seller
// panel: login plus pass/account operations proxied to the partner API.
// Every action except login authorizes with the seller's own key as a
// bearer token.
func SellersHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action      string `json:"action"`
		SellerName  string `json:"seller_name"`
		SellerKey   string `json:"seller_key"`
		PlayerID    string `json:"player_id"`
		Message     string `json:"message"`
		UID         string `json:"uid"`
		Password    string `json:"password"`
		FileContent string `json:"fileContent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "Invalid request body")
		return
	}

	if req.Action == "login" {
		sellerLogin(w, r, req.SellerName, req.SellerKey)
		return
	}

	sellerKey := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if sellerKey == "" || sellerKey == r.Header.Get("Authorization") {
		writeMessage(w, http.StatusUnauthorized, false, "Seller key is required.")
		return
	}

	switch req.Action {
	case "send-pass":
		sellerSendPass(w, r, sellerKey, req.PlayerID, req.Message)
	case "add-account-single":
		sellerAddAccount(w, r, sellerKey, req.UID, req.Password)
	case "add-accounts-bulk":
		sellerAddAccountsBulk(w, r, sellerKey, req.FileContent)
	default:
		writeMessage(w, http.StatusBadRequest, false, "Invalid action.")
	}
}

func sellerLogin(w http.ResponseWriter, r *http.Request, name, key string) {
	if name == "" || key == "" {
		writeMessage(w, http.StatusBadRequest, false, "Seller name and key are required.")
		return
	}

	sellers, err := Partner.ListSellers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	for _, s := range sellers {
		if s.SellerName == name && s.Key == key {
			writeMessage(w, http.StatusOK, true, "Login successful.")
			return
		}
	}

	time.Sleep(failedLoginDelay)
	writeMessage(w, http.StatusUnauthorized, false, "Invalid credentials.")
}

func sellerSendPass(w http.ResponseWriter, r *http.Request, sellerKey, playerID, message string) {
	if playerID == "" || !playerIDPattern.MatchString(playerID) {
		writeMessage(w, http.StatusBadRequest, false, "Invalid player ID")
		return
	}
	if message == "" {
		message = defaultPassMessage
	}
	id, _ := strconv.ParseInt(playerID, 10, 64)

	if err := Partner.SendPass(r.Context(), sellerKey, id, message); err != nil {
		var apiErr *fulfillment.APIError
		if errors.As(err, &apiErr) {
			writeMessage(w, http.StatusBadRequest, false, apiErr.Error())
			return
		}
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, true, "Pass sent.")
}

func sellerAddAccount(w http.ResponseWriter, r *http.Request, sellerKey, uid, password string) {
	if uid == "" || password == "" {
		writeMessage(w, http.StatusBadRequest, false, "UID and password are required.")
		return
	}
	if !uidPattern.MatchString(strings.TrimSpace(uid)) {
		writeMessage(w, http.StatusBadRequest, false, "UID must be numeric.")
		return
	}
	id, _ := strconv.ParseInt(strings.TrimSpace(uid), 10, 64)

	if err := Partner.AddAccount(r.Context(), sellerKey, id, strings.TrimSpace(password)); err != nil {
		var apiErr *fulfillment.APIError
		if errors.As(err, &apiErr) {
			writeMessage(w, http.StatusBadRequest, false, apiErr.Error())
			return
		}
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, true, "Account added.")
}

func sellerAddAccountsBulk(w http.ResponseWriter, r *http.Request, sellerKey, fileContent string) {
	if fileContent == "" {
		writeMessage(w, http.StatusBadRequest, false, "File content was not received.")
		return
	}

	lines := make([]string, 0)
	for _, line := range strings.Split(fileContent, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > bulkAccountLimit {
		writeMessage(w, http.StatusBadRequest, false, "The limit is 2000 accounts per upload.")
		return
	}

	added, failed := 0, 0
	for _, line := range lines {
		parts := accountLineSplit.Split(strings.TrimSpace(line), 2)
		if len(parts) != 2 {
			failed++
			continue
		}
		uid := strings.TrimSpace(parts[0])
		password := strings.TrimSpace(parts[1])
		if uid == "" || password == "" || !uidPattern.MatchString(uid) {
			failed++
			continue
		}

		id, _ := strconv.ParseInt(uid, 10, 64)
		if err := Partner.AddAccount(r.Context(), sellerKey, id, password); err != nil {
			log.Warn().Err(err).Str("uid", uid).Msg("bulk account insert failed")
			failed++
		} else {
			added++
		}
		time.Sleep(bulkAccountDelay)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "File processed.",
		"added":   added,
		"errors":  failed,
	})
}
