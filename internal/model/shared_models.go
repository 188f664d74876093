package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// KeyRecord is one issued redemption key. The key identifier is immutable
// once created; `used` flips to true at most once and never resets.
type KeyRecord struct {
	Key                  string     `json:"key"`
	Used                 bool       `json:"used"`
	Expired              bool       `json:"expired"`
	AutoDelete           bool       `json:"autoDelete"`
	CreatedAt            time.Time  `json:"createdAt"`
	ExpiresAt            time.Time  `json:"expiresAt"`
	UsedAt               *time.Time `json:"usedAt,omitempty"`
	UsedBy               string     `json:"usedBy,omitempty"`
	UsageCount           int        `json:"usageCount"`
	GeneratedByPaymentID string     `json:"generatedByPaymentId,omitempty"`
}

// KeyView is the admin-facing projection of a key record. The stored
// used/expired booleans are replaced by a single derived status field so
// the frontend has one source of truth.
type KeyView struct {
	Key                  string     `json:"key"`
	Status               string     `json:"status"`
	AutoDelete           bool       `json:"autoDelete"`
	CreatedAt            time.Time  `json:"createdAt"`
	ExpiresAt            time.Time  `json:"expiresAt"`
	UsedAt               *time.Time `json:"usedAt,omitempty"`
	UsedBy               string     `json:"usedBy,omitempty"`
	GeneratedByPaymentID string     `json:"generatedByPaymentId,omitempty"`
}

// ProductConfig is the singleton product configuration record.
type ProductConfig struct {
	Title            string          `json:"title"`
	Price            decimal.Decimal `json:"price"`
	ResellerPrice    decimal.Decimal `json:"resellerPrice"`
	ResellerPassword string          `json:"resellerPassword"`
}

// KeyStats is the tally returned alongside admin key listings.
type KeyStats struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Available int `json:"available"`
	Expired   int `json:"expired"`
}

// Seller is one entry from the partner API's seller directory.
type Seller struct {
	SellerName string `json:"seller_name"`
	Key        string `json:"key"`
}
