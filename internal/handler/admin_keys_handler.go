package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"kntpass.backend/internal/keys"
	"kntpass.backend/internal/model"
)

// GenerateKeysHandler issues a batch of single-use keys.
func GenerateKeysHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity   *int `json:"quantity"`
		ExpireDays *int `json:"expireDays"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "Quantity must be an integer between 1 and 100.")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	expireDays := keys.DefaultIssueExpireDays
	if req.ExpireDays != nil {
		expireDays = *req.ExpireDays
	}
	if quantity < 1 || quantity > 100 {
		writeMessage(w, http.StatusBadRequest, false, "Quantity must be an integer between 1 and 100.")
		return
	}

	issued, err := Lifecycle.IssueBatch(r.Context(), quantity, expireDays)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"keys":      issued,
		"count":     len(issued),
		"expiresAt": time.Now().AddDate(0, 0, expireDays).UTC().Format(time.RFC3339),
		"message":   fmt.Sprintf("%d single-use key(s) generated.", len(issued)),
	})
}

// ListKeysHandler returns every key with its derived status, an optional
// status filter and a stats block.
func ListKeysHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	records, err := Keys.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	stats := keys.Stats(records, now)

	views := make([]model.KeyView, 0, len(records))
	for i := range records {
		rec := &records[i]
		views = append(views, model.KeyView{
			Key:                  rec.Key,
			Status:               string(keys.ComputeStatus(rec, now)),
			AutoDelete:           rec.AutoDelete,
			CreatedAt:            rec.CreatedAt,
			ExpiresAt:            rec.ExpiresAt,
			UsedAt:               rec.UsedAt,
			UsedBy:               rec.UsedBy,
			GeneratedByPaymentID: rec.GeneratedByPaymentID,
		})
	}

	if filter := r.URL.Query().Get("status"); filter != "" && filter != "all" {
		filtered := views[:0]
		for _, v := range views {
			if v.Status == filter {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}

	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	shown := views
	if len(shown) > limit {
		shown = shown[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"keys":    shown,
		"stats":   stats,
		"total":   len(views),
		"showing": len(shown),
	})
}

// DeleteKeyHandler removes a key after confirming it exists, so the admin
// panel can tell a successful delete from a typo.
func DeleteKeyHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" {
		writeMessage(w, http.StatusBadRequest, false, "No key was provided for deletion")
		return
	}

	rec, err := Keys.Get(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		writeMessage(w, http.StatusNotFound, false, "The key you tried to delete was not found.")
		return
	}

	if _, err := Keys.Delete(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, true, fmt.Sprintf("Key %s was deleted.", key))
}
