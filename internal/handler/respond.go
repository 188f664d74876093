// Package handler contains the HTTP adapters. Handlers validate input,
// call the core components and map errors to structured JSON responses;
// business rules live in internal/keys and internal/store.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"kntpass.backend/internal/errs"
	"kntpass.backend/internal/keys"
	"kntpass.backend/internal/model"
	"kntpass.backend/internal/payment"
	"kntpass.backend/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ProductStore is the config-store surface the handlers use.
type ProductStore interface {
	Save(ctx context.Context, upd store.ConfigUpdate) error
	Load(ctx context.Context) (*model.ProductConfig, error)
}

// PartnerClient is the fulfillment partner surface the handlers use.
type PartnerClient interface {
	DefaultSellerKey() string
	SendPass(ctx context.Context, sellerKey string, playerID int64, message string) error
	ListSellers(ctx context.Context) ([]model.Seller, error)
	AddAccount(ctx context.Context, sellerKey string, uid int64, password string) error
}

// PaymentGateway is the payment processor surface the handlers use.
type PaymentGateway interface {
	CreatePix(ctx context.Context, amount decimal.Decimal, description, externalRef string, expiresAt time.Time) (*payment.PixCharge, error)
	StatusByReference(ctx context.Context, externalRef string) (string, error)
}

// Collaborators wired in main before the server starts.
var (
	Keys      keys.Store
	Lifecycle *keys.Manager
	Products  ProductStore
	Partner   PartnerClient
	Gateway   PaymentGateway
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, success bool, message string) {
	writeJSON(w, status, map[string]any{"success": success, "message": message})
}

// writeError maps the error taxonomy to an HTTP status and a safe
// user-facing message. Raw internal errors never reach the response body.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, false, "Invalid request data.")
	case errors.Is(err, errs.ErrNotFound):
		writeMessage(w, http.StatusNotFound, false, "Key not found or invalid.")
	case errors.Is(err, errs.ErrAlreadyUsed):
		writeMessage(w, http.StatusConflict, false, "This key has already been used.")
	case errors.Is(err, errs.ErrExpired):
		writeMessage(w, http.StatusBadRequest, false, "This key expired and was removed.")
	case errors.Is(err, errs.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, false, "Invalid credentials.")
	default:
		log.Error().Err(err).Msg("request failed on an upstream call")
		writeMessage(w, http.StatusBadGateway, false, "An internal error occurred. Please try again later.")
	}
}
