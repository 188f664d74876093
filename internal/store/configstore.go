package store

import (
	"context"

	"github.com/mailgun/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"kntpass.backend/internal/errs"
	"kntpass.backend/internal/model"
)

const configKey = "product:config"

// ConfigStore persists the singleton product configuration hash.
type ConfigStore struct {
	kv     KV
	logger zerolog.Logger
}

func NewConfigStore(kv KV, logger zerolog.Logger) *ConfigStore {
	return &ConfigStore{
		kv:     kv,
		logger: logger.With().Str("component", "ConfigStore").Logger(),
	}
}

// ConfigUpdate is a partial configuration save. Nil fields keep whatever
// the stored record already holds.
type ConfigUpdate struct {
	Title            *string
	Price            *decimal.Decimal
	ResellerPrice    *decimal.Decimal
	ResellerPassword *string
}

// Save merges the update into the singleton record. The record after the
// merge must carry a non-empty title and a positive price; the first save
// therefore has to supply both.
func (s *ConfigStore) Save(ctx context.Context, upd ConfigUpdate) error {
	existing, err := s.Load(ctx)
	if err != nil {
		return err
	}

	merged := model.ProductConfig{}
	if existing != nil {
		merged = *existing
	}
	if upd.Title != nil {
		merged.Title = *upd.Title
	}
	if upd.Price != nil {
		merged.Price = *upd.Price
	}
	if upd.ResellerPrice != nil {
		merged.ResellerPrice = *upd.ResellerPrice
	}

	if merged.Title == "" {
		return errors.Wrap(errs.ErrInvalidInput, "config needs a product title")
	}
	if !merged.Price.IsPositive() {
		return errors.Wrap(errs.ErrInvalidInput, "config needs a positive price")
	}
	if upd.ResellerPrice != nil && !upd.ResellerPrice.IsPositive() {
		return errors.Wrap(errs.ErrInvalidInput, "reseller price must be positive")
	}

	fields := map[string]any{}
	if upd.Title != nil {
		fields["title"] = *upd.Title
	}
	if upd.Price != nil {
		fields["price"] = upd.Price.String()
	}
	if upd.ResellerPrice != nil {
		fields["resellerPrice"] = upd.ResellerPrice.String()
	}
	if upd.ResellerPassword != nil {
		fields["resellerPassword"] = *upd.ResellerPassword
	}
	if len(fields) == 0 {
		return nil
	}

	if err := s.kv.HashSet(ctx, configKey, fields); err != nil {
		return errs.Upstream(err, "saving product config")
	}
	return nil
}

// Load returns the stored configuration, or (nil, nil) when none was ever
// saved.
func (s *ConfigStore) Load(ctx context.Context) (*model.ProductConfig, error) {
	fields, err := s.kv.HashGetAll(ctx, configKey)
	if err != nil {
		return nil, errs.Upstream(err, "loading product config")
	}
	if len(fields) == 0 {
		return nil, nil
	}

	cfg := &model.ProductConfig{
		Title:            fields["title"],
		ResellerPassword: fields["resellerPassword"],
	}
	if d, err := decimal.NewFromString(fields["price"]); err == nil {
		cfg.Price = d
	}
	if d, err := decimal.NewFromString(fields["resellerPrice"]); err == nil {
		cfg.ResellerPrice = d
	}
	return cfg, nil
}
