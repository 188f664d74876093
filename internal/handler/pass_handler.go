package handler

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"kntpass.backend/internal/fulfillment"
)

var (
	keyPattern      = regexp.MustCompile(`^KNT-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)
	playerIDPattern = regexp.MustCompile(`^\d{8,15}$`)
)

const defaultPassMessage = "Booyah!"

// SendPassHandler redeems a key for a player: the key is consumed exactly
// when the partner confirms delivery.
func SendPassHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key      string `json:"key"`
		PlayerID string `json:"player_id"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "Invalid request body")
		return
	}
	if req.Key == "" || req.PlayerID == "" {
		writeMessage(w, http.StatusBadRequest, false, "Key and player ID are required")
		return
	}
	if !playerIDPattern.MatchString(req.PlayerID) {
		writeMessage(w, http.StatusBadRequest, false, "Invalid player ID")
		return
	}
	if !keyPattern.MatchString(req.Key) {
		writeMessage(w, http.StatusBadRequest, false, "Invalid key format")
		return
	}
	if req.Message == "" {
		req.Message = defaultPassMessage
	}
	playerID, _ := strconv.ParseInt(req.PlayerID, 10, 64)

	err := Lifecycle.Redeem(r.Context(), req.Key, func(ctx context.Context) error {
		return Partner.SendPass(ctx, Partner.DefaultSellerKey(), playerID, req.Message)
	})
	if err != nil {
		var apiErr *fulfillment.APIError
		if errors.As(err, &apiErr) {
			writeMessage(w, http.StatusBadRequest, false, apiErr.Error())
			return
		}
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, true, "Pass sent and key removed.")
}
