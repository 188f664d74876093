package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kntpass.backend/internal/fulfillment"
)

func postJSON(path, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestSendPassHandlerValidation(t *testing.T) {
	setupHandlers(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed body", `{`},
		{"missing fields", `{}`},
		{"short player id", `{"key":"KNT-AB12-CD34-EF56-7890","player_id":"123"}`},
		{"non numeric player id", `{"key":"KNT-AB12-CD34-EF56-7890","player_id":"abcdefgh"}`},
		{"bad key format", `{"key":"ABC-1234","player_id":"12345678"}`},
		{"lowercase key", `{"key":"knt-ab12-cd34-ef56-7890","player_id":"12345678"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			SendPassHandler(rr, postJSON("/api/send-pass", tc.body))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestSendPassHandlerConsumesKey(t *testing.T) {
	ms, sp, _, _ := setupHandlers(t)
	require.NoError(t, ms.Put(context.Background(), availableRecord("KNT-AB12-CD34-EF56-7890")))

	rr := httptest.NewRecorder()
	SendPassHandler(rr, postJSON("/api/send-pass", `{"key":"KNT-AB12-CD34-EF56-7890","player_id":"12345678"}`))

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["success"])

	require.Len(t, sp.sent, 1)
	assert.Equal(t, "store-seller-key", sp.sent[0].SellerKey)
	assert.Equal(t, int64(12345678), sp.sent[0].PlayerID)
	assert.Equal(t, "Booyah!", sp.sent[0].Message)

	assert.NotContains(t, ms.records, "KNT-AB12-CD34-EF56-7890", "the key is consumed on success")
}

func TestSendPassHandlerUnknownKey(t *testing.T) {
	setupHandlers(t)

	rr := httptest.NewRecorder()
	SendPassHandler(rr, postJSON("/api/send-pass", `{"key":"KNT-AB12-CD34-EF56-7890","player_id":"12345678"}`))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSendPassHandlerPartnerRejectionKeepsKey(t *testing.T) {
	ms, sp, _, _ := setupHandlers(t)
	require.NoError(t, ms.Put(context.Background(), availableRecord("KNT-AB12-CD34-EF56-7890")))
	sp.sendErr = &fulfillment.APIError{Code: "PLAYER_NOT_FOUND", Message: "Jogador nao encontrado"}

	rr := httptest.NewRecorder()
	SendPassHandler(rr, postJSON("/api/send-pass", `{"key":"KNT-AB12-CD34-EF56-7890","player_id":"12345678"}`))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "Jogador nao encontrado", body["message"])

	assert.Contains(t, ms.records, "KNT-AB12-CD34-EF56-7890", "a failed delivery leaves the key redeemable")
}

func TestSendPassHandlerUsedKey(t *testing.T) {
	ms, _, _, _ := setupHandlers(t)
	rec := availableRecord("KNT-AB12-CD34-EF56-7890")
	rec.Used = true
	rec.AutoDelete = false
	require.NoError(t, ms.Put(context.Background(), rec))

	rr := httptest.NewRecorder()
	SendPassHandler(rr, postJSON("/api/send-pass", `{"key":"KNT-AB12-CD34-EF56-7890","player_id":"12345678"}`))

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestSendPassHandlerCustomMessage(t *testing.T) {
	ms, sp, _, _ := setupHandlers(t)
	require.NoError(t, ms.Put(context.Background(), availableRecord("KNT-AB12-CD34-EF56-7890")))

	rr := httptest.NewRecorder()
	SendPassHandler(rr, postJSON("/api/send-pass", `{"key":"KNT-AB12-CD34-EF56-7890","player_id":"12345678","message":"gg"}`))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, sp.sent, 1)
	assert.Equal(t, "gg", sp.sent[0].Message)
}
