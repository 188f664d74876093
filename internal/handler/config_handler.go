package handler

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"kntpass.backend/internal/store"
)

// PublicConfigHandler exposes the product title and the price matching
// the buyer type. No authentication: this is what the storefront renders.
func PublicConfigHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := Products.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	title := defaultProductTitle
	price := defaultPrice
	resellerPrice := defaultResellerPrice
	if cfg != nil {
		title = cfg.Title
		if cfg.Price.IsPositive() {
			price = cfg.Price
		}
		if cfg.ResellerPrice.IsPositive() {
			resellerPrice = cfg.ResellerPrice
		}
	}

	shown := price
	if r.URL.Query().Get("type") == buyerTypeReseller {
		shown = resellerPrice
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"productTitle": title,
			"productPrice": shown,
		},
	})
}

// AdminLoadConfigHandler returns the full configuration, reseller
// password included.
func AdminLoadConfigHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	cfg, err := Products.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	data := map[string]any{
		"productTitle":         defaultProductTitle,
		"productPrice":         defaultPrice,
		"productResellerPrice": defaultResellerPrice,
		"resellerPassword":     "",
	}
	if cfg != nil {
		data["productTitle"] = cfg.Title
		data["productPrice"] = cfg.Price
		data["productResellerPrice"] = cfg.ResellerPrice
		data["resellerPassword"] = cfg.ResellerPassword
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

// AdminSaveConfigHandler merge-saves the product configuration.
func AdminSaveConfigHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	var req struct {
		ProductTitle         string `json:"productTitle"`
		ProductPrice         any    `json:"productPrice"`
		ProductResellerPrice any    `json:"productResellerPrice"`
		ResellerPassword     string `json:"resellerPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "Invalid request body")
		return
	}
	if req.ProductTitle == "" || req.ProductPrice == nil || req.ProductResellerPrice == nil {
		writeMessage(w, http.StatusBadRequest, false, "Title and both prices are required.")
		return
	}

	price, err := parsePrice(req.ProductPrice)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, false, "Prices must be valid numbers greater than zero.")
		return
	}
	resellerPrice, err := parsePrice(req.ProductResellerPrice)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, false, "Prices must be valid numbers greater than zero.")
		return
	}

	upd := store.ConfigUpdate{
		Title:            &req.ProductTitle,
		Price:            &price,
		ResellerPrice:    &resellerPrice,
		ResellerPassword: &req.ResellerPassword,
	}
	if err := Products.Save(r.Context(), upd); err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, true, "Configuration saved.")
}

var priceCleanup = regexp.MustCompile(`[^0-9,.]`)

// parsePrice accepts the loose formats the admin panel sends: a JSON
// number, or a string possibly using a decimal comma ("19,99").
func parsePrice(v any) (decimal.Decimal, error) {
	var d decimal.Decimal
	var err error
	switch val := v.(type) {
	case float64:
		d = decimal.NewFromFloat(val)
	case string:
		cleaned := strings.ReplaceAll(priceCleanup.ReplaceAllString(val, ""), ",", ".")
		d, err = decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Decimal{}, err
		}
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported price type %T", v)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("price %s is not positive", d)
	}
	return d, nil
}
