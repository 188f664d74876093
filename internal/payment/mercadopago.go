// Package payment is the Mercado Pago client used to create PIX charges
// and poll their status by external reference.
package payment

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"kntpass.backend/internal/errs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultBaseURL = "https://api.mercadopago.com"

// Mercado Pago expects expiration dates with milliseconds and a numeric
// zone offset.
const dateOfExpirationLayout = "2006-01-02T15:04:05.000-07:00"

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient builds a Mercado Pago client. An empty baseURL selects the
// production API; tests point it at a local server.
func NewClient(token, baseURL string, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With().Str("component", "MercadoPago").Logger(),
	}
}

// PixCharge is the data the buyer needs to pay: the copy-paste code and
// the QR image, plus the external reference used for later polling.
type PixCharge struct {
	ExternalReference string `json:"paymentId"`
	QRCode            string `json:"qrCodeCopy"`
	QRCodeBase64      string `json:"qrCodeImage"`
}

// CreatePix creates a PIX charge for the given amount. externalRef is the
// reference this system polls with; expiresAt bounds how long the QR code
// stays payable.
func (c *Client) CreatePix(ctx context.Context, amount decimal.Decimal, description, externalRef string, expiresAt time.Time) (*PixCharge, error) {
	payload := map[string]any{
		"transaction_amount": amount.InexactFloat64(),
		"description":        description,
		"payment_method_id":  "pix",
		"payer": map[string]any{
			"email": fmt.Sprintf("customer-%d@kntpass.store", time.Now().UnixMilli()),
		},
		"external_reference": externalRef,
		"date_of_expiration": expiresAt.Format(dateOfExpirationLayout),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.Upstream(err, "encoding the PIX request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, errs.Upstream(err, "building the PIX request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	// Creating a payment is not retried, but the idempotency header makes
	// an accidental duplicate request harmless.
	req.Header.Set("X-Idempotency-Key", uuid.New().String())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Upstream(err, "calling the payment API")
	}
	defer resp.Body.Close()

	var result struct {
		ID                 int64 `json:"id"`
		PointOfInteraction struct {
			TransactionData struct {
				QRCode       string `json:"qr_code"`
				QRCodeBase64 string `json:"qr_code_base64"`
			} `json:"transaction_data"`
		} `json:"point_of_interaction"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errs.Upstream(err, "decoding the payment response")
	}
	if resp.StatusCode >= 300 {
		return nil, errs.Upstream(fmt.Errorf("status %d: %s", resp.StatusCode, result.Message), "payment creation rejected")
	}
	if result.PointOfInteraction.TransactionData.QRCode == "" {
		return nil, errs.Upstream(fmt.Errorf("payment %d has no QR code data", result.ID), "unexpected payment response")
	}

	c.logger.Info().Str("externalReference", externalRef).Str("amount", amount.String()).Msg("PIX charge created")
	return &PixCharge{
		ExternalReference: externalRef,
		QRCode:            result.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64:      result.PointOfInteraction.TransactionData.QRCodeBase64,
	}, nil
}

// StatusByReference looks the payment up by external reference and
// returns its status. An unknown reference reads as pending: the buyer
// may simply not have paid yet.
func (c *Client) StatusByReference(ctx context.Context, externalRef string) (string, error) {
	endpoint := c.baseURL + "/v1/payments/search?" + url.Values{
		"external_reference": {externalRef},
		"sort":               {"date_created"},
		"criteria":           {"desc"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", errs.Upstream(err, "building the payment search request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errs.Upstream(err, "calling the payment search API")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", errs.Upstream(fmt.Errorf("status %d", resp.StatusCode), "payment search rejected")
	}

	var result struct {
		Results []struct {
			Status string `json:"status"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errs.Upstream(err, "decoding the payment search response")
	}
	if len(result.Results) == 0 {
		return "pending", nil
	}
	return result.Results[0].Status, nil
}
