package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kntpass.backend/internal/model"
)

func TestCreatePaymentHandlerDefaults(t *testing.T) {
	_, _, sg, _ := setupHandlers(t)

	rr := httptest.NewRecorder()
	CreatePaymentHandler(rr, postJSON("/api/payments", `{}`))

	require.Equal(t, http.StatusCreated, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["paymentId"])
	assert.Equal(t, "00020126pix-copy-paste-code", body["qrCodeCopy"])
	assert.Equal(t, "aW1hZ2U=", body["qrCodeImage"])

	assert.True(t, sg.lastAmount.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, "Free Fire Battle Pass", sg.lastDescription)
}

func TestCreatePaymentHandlerUsesConfiguredPrices(t *testing.T) {
	_, _, sg, pr := setupHandlers(t)
	pr.cfg = &model.ProductConfig{
		Title:         "Passe Elite",
		Price:         decimal.RequireFromString("24.90"),
		ResellerPrice: decimal.RequireFromString("18.50"),
	}

	rr := httptest.NewRecorder()
	CreatePaymentHandler(rr, postJSON("/api/payments", `{}`))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.True(t, sg.lastAmount.Equal(decimal.RequireFromString("24.90")))
	assert.Equal(t, "Passe Elite", sg.lastDescription)

	rr = httptest.NewRecorder()
	CreatePaymentHandler(rr, postJSON("/api/payments", `{"type":"reseller"}`))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.True(t, sg.lastAmount.Equal(decimal.RequireFromString("18.50")))
}

func TestCreatePaymentHandlerClampsBelowProcessorMinimum(t *testing.T) {
	_, _, sg, pr := setupHandlers(t)
	pr.cfg = &model.ProductConfig{
		Title: "Passe",
		Price: decimal.RequireFromString("0.50"),
	}

	rr := httptest.NewRecorder()
	CreatePaymentHandler(rr, postJSON("/api/payments", `{}`))

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.True(t, sg.lastAmount.Equal(decimal.NewFromInt(1)))
}

func TestVerifyPaymentHandlerRequiresPaymentID(t *testing.T) {
	setupHandlers(t)

	rr := httptest.NewRecorder()
	VerifyPaymentHandler(rr, postJSON("/api/payments/verify", `{}`))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "failed", body["status"])
}

func TestVerifyPaymentHandlerPending(t *testing.T) {
	ms, _, sg, _ := setupHandlers(t)
	sg.status = "pending"

	rr := httptest.NewRecorder()
	VerifyPaymentHandler(rr, postJSON("/api/payments/verify", `{"paymentId":"pay-1"}`))

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "pending", body["status"])
	assert.Empty(t, ms.records, "no key is minted while the payment stays pending")
}

func TestVerifyPaymentHandlerApprovedMintsOnce(t *testing.T) {
	ms, _, sg, _ := setupHandlers(t)
	sg.status = "approved"

	rr := httptest.NewRecorder()
	VerifyPaymentHandler(rr, postJSON("/api/payments/verify", `{"paymentId":"pay-1"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	first := decodeBody(t, rr)
	require.Equal(t, "approved", first["status"])
	require.NotEmpty(t, first["key"])

	rr = httptest.NewRecorder()
	VerifyPaymentHandler(rr, postJSON("/api/payments/verify", `{"paymentId":"pay-1"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	second := decodeBody(t, rr)

	assert.Equal(t, first["key"], second["key"], "polling again returns the same key")
	assert.Len(t, ms.records, 1)
}

func TestVerifyPaymentHandlerGatewayFailure(t *testing.T) {
	_, _, sg, _ := setupHandlers(t)
	sg.statusErr = assert.AnError

	rr := httptest.NewRecorder()
	VerifyPaymentHandler(rr, postJSON("/api/payments/verify", `{"paymentId":"pay-1"}`))

	require.Equal(t, http.StatusBadGateway, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "failed", body["status"])
}
