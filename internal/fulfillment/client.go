// Package fulfillment is the client for the partner API that delivers
// game passes and manages seller accounts.
package fulfillment

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"kntpass.backend/internal/errs"
	"kntpass.backend/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// APIError is a rejection reported by the partner API itself, as opposed
// to a transport failure. Its message is safe to show to the caller.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("partner API error %s", e.Code)
}

type Client struct {
	baseURL   string
	sellerKey string
	adminKey  string
	http      *http.Client
	logger    zerolog.Logger
}

// NewClient builds a partner API client. sellerKey is the store's own
// seller credential used for customer redemptions; adminKey authorizes
// the seller directory listing.
func NewClient(baseURL, sellerKey, adminKey string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		sellerKey: sellerKey,
		adminKey:  adminKey,
		http:      &http.Client{Timeout: 15 * time.Second},
		logger:    logger.With().Str("component", "PartnerAPI").Logger(),
	}
}

// DefaultSellerKey returns the store's own seller credential.
func (c *Client) DefaultSellerKey() string {
	return c.sellerKey
}

// SendPass asks the partner to grant the pass to the player. A nil return
// means the partner confirmed delivery.
func (c *Client) SendPass(ctx context.Context, sellerKey string, playerID int64, message string) error {
	payload := map[string]any{
		"seller_key": sellerKey,
		"player_id":  playerID,
		"message":    message,
	}

	var result struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	status, err := c.post(ctx, "/api/enviar-passe", payload, &result)
	if err != nil {
		return errs.Upstream(err, "calling the pass delivery API")
	}
	if status >= 300 || result.Code != "SUCCESS" {
		c.logger.Warn().Int("status", status).Str("code", result.Code).Int64("playerId", playerID).Msg("pass delivery rejected")
		return &APIError{Code: result.Code, Message: result.Message}
	}
	c.logger.Info().Int64("playerId", playerID).Msg("pass delivered")
	return nil
}

// ListSellers fetches the partner's seller directory.
func (c *Client) ListSellers(ctx context.Context) ([]model.Seller, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/listar-vendedores?auth_key="+c.adminKey, nil)
	if err != nil {
		return nil, errs.Upstream(err, "building seller directory request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Upstream(err, "calling the seller directory API")
	}
	defer resp.Body.Close()

	var result struct {
		Sellers []model.Seller `json:"sellers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errs.Upstream(err, "decoding the seller directory")
	}
	if resp.StatusCode >= 300 || result.Sellers == nil {
		return nil, errs.Upstream(fmt.Errorf("status %d", resp.StatusCode), "unexpected seller directory response")
	}
	return result.Sellers, nil
}

// AddAccount registers a game account under the given seller.
func (c *Client) AddAccount(ctx context.Context, sellerKey string, uid int64, password string) error {
	payload := map[string]any{
		"seller_key": sellerKey,
		"uid":        uid,
		"password":   password,
	}

	var result struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	status, err := c.post(ctx, "/api/adicionar-conta", payload, &result)
	if err != nil {
		return errs.Upstream(err, "calling the account API")
	}
	if status == http.StatusCreated || (status < 300 && result.Code == "ACCOUNT_ADDED") {
		return nil
	}
	return &APIError{Code: result.Code, Message: result.Message}
}

func (c *Client) post(ctx context.Context, path string, payload, result any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// Error payloads still carry a message worth surfacing, so decode
	// whatever came back regardless of status.
	_ = json.NewDecoder(resp.Body).Decode(result)
	return resp.StatusCode, nil
}
