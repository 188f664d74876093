package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	buyerTypeReseller = "reseller"
	// pixExpiry bounds how long a generated QR code stays payable.
	pixExpiry = 30 * time.Minute
)

// minTransactionAmount is the processor's floor for a PIX charge.
var minTransactionAmount = decimal.NewFromInt(1)

// Fallback product presentation when no config was ever saved.
var (
	defaultProductTitle  = "Free Fire Battle Pass"
	defaultPrice         = decimal.RequireFromString("19.99")
	defaultResellerPrice = decimal.RequireFromString("15.00")
)

// CreatePaymentHandler creates a PIX charge priced from the product
// config, picking the reseller price when the request says so.
func CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	// The body is optional; an absent type means a regular buyer.
	var req struct {
		Type string `json:"type"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	title := defaultProductTitle
	price := defaultPrice
	resellerPrice := defaultResellerPrice

	cfg, err := Products.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if cfg != nil {
		title = cfg.Title
		if cfg.Price.IsPositive() {
			price = cfg.Price
		}
		if cfg.ResellerPrice.IsPositive() {
			resellerPrice = cfg.ResellerPrice
		}
	}

	amount := price
	if req.Type == buyerTypeReseller {
		amount = resellerPrice
	}
	if amount.LessThan(minTransactionAmount) {
		log.Warn().Str("amount", amount.String()).Msg("configured price below the processor minimum, clamping")
		amount = minTransactionAmount
	}

	externalRef := uuid.New().String()
	charge, err := Gateway.CreatePix(r.Context(), amount, title, externalRef, time.Now().Add(pixExpiry))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"paymentId":   charge.ExternalReference,
		"qrCodeImage": charge.QRCodeBase64,
		"qrCodeCopy":  charge.QRCode,
	})
}

// VerifyPaymentHandler polls the payment status and, once approved,
// returns the one key bound to the payment (minting it on the first
// approved poll).
func VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentID string `json:"paymentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "failed", "message": "Payment ID is required."})
		return
	}

	result, err := Lifecycle.EnsureKeyForPayment(r.Context(), req.PaymentID, Gateway.StatusByReference)
	if err != nil {
		log.Error().Err(err).Str("paymentId", req.PaymentID).Msg("payment verification failed")
		writeJSON(w, http.StatusBadGateway, map[string]any{"status": "failed", "message": "An internal error occurred. Please try again later."})
		return
	}
	if result.Pending {
		writeJSON(w, http.StatusOK, map[string]any{"status": "pending"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "approved", "key": result.Key})
}
