// Package keys enforces the key lifecycle: generation, batch issuance,
// single-use redemption with auto-delete, and the one-key-per-payment
// bridge.
package keys

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mailgun/errors"
	"github.com/rs/zerolog"

	"kntpass.backend/internal/errs"
	"kntpass.backend/internal/model"
	"kntpass.backend/internal/store"
)

const (
	// DefaultIssueExpireDays is the validity of admin-issued keys.
	DefaultIssueExpireDays = 30
	// PaymentKeyExpireDays is the validity of keys minted for approved
	// payments.
	PaymentKeyExpireDays = 365

	maxBatchQuantity = 100
)

// Store is the slice of the key store the lifecycle manager depends on.
type Store interface {
	Put(ctx context.Context, rec *model.KeyRecord) error
	Get(ctx context.Context, key string) (*model.KeyRecord, error)
	Update(ctx context.Context, key string, upd store.KeyUpdate) error
	Delete(ctx context.Context, key string) (int64, error)
	ListAll(ctx context.Context) ([]model.KeyRecord, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*model.KeyRecord, error)
	ClaimPayment(ctx context.Context, paymentID, key string) (bool, error)
	PaymentClaim(ctx context.Context, paymentID string) (string, error)
	ReleasePaymentClaim(ctx context.Context, paymentID string) error
	AcquireRedeemLock(ctx context.Context, key string) (bool, error)
	ReleaseRedeemLock(ctx context.Context, key string) error
}

// FulfillFunc delivers the purchased item once a key passes all checks.
// A nil return consumes the key; any error leaves it untouched.
type FulfillFunc func(ctx context.Context) error

// Manager applies the lifecycle rules on top of a Store.
type Manager struct {
	store  Store
	now    func() time.Time
	logger zerolog.Logger
}

func NewManager(store Store, logger zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		now:    time.Now,
		logger: logger.With().Str("component", "KeyLifecycle").Logger(),
	}
}

// GenerateKeyID draws a fresh identifier: four uppercase 4-hex-character
// groups behind the KNT- prefix, 64 bits of entropy in total.
func GenerateKeyID() string {
	segment := func() string {
		b := make([]byte, 2)
		if _, err := rand.Read(b); err != nil {
			// crypto/rand never fails on supported platforms.
			panic(err)
		}
		return strings.ToUpper(hex.EncodeToString(b))
	}
	return fmt.Sprintf("KNT-%s-%s-%s-%s", segment(), segment(), segment(), segment())
}

// generateUnique repeats generation until the candidate is not in the
// existing set. Collisions are negligible at this entropy, the loop is
// there for correctness.
func generateUnique(existing map[string]bool) string {
	for {
		candidate := GenerateKeyID()
		if !existing[candidate] {
			return candidate
		}
	}
}

// IssueBatch creates quantity unique auto-delete keys expiring in
// expireDays and returns their identifiers. Quantity must be in [1,100].
func (m *Manager) IssueBatch(ctx context.Context, quantity, expireDays int) ([]string, error) {
	if quantity < 1 || quantity > maxBatchQuantity {
		return nil, errors.Wrapf(errs.ErrInvalidInput, "quantity must be between 1 and %d", maxBatchQuantity)
	}
	if expireDays <= 0 {
		expireDays = DefaultIssueExpireDays
	}

	existing, err := m.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for i := range existing {
		seen[existing[i].Key] = true
	}

	now := m.now()
	expiresAt := now.AddDate(0, 0, expireDays)
	issued := make([]string, 0, quantity)
	for i := 0; i < quantity; i++ {
		id := generateUnique(seen)
		rec := &model.KeyRecord{
			Key:        id,
			Used:       false,
			Expired:    false,
			AutoDelete: true,
			CreatedAt:  now,
			ExpiresAt:  expiresAt,
		}
		if err := m.store.Put(ctx, rec); err != nil {
			return issued, err
		}
		seen[id] = true
		issued = append(issued, id)
	}

	m.logger.Info().Int("count", len(issued)).Int("expireDays", expireDays).Msg("issued key batch")
	return issued, nil
}

// Redeem consumes a key in exchange for external fulfillment. The key is
// consumed if and only if fulfillment reports success; a fulfillment
// failure leaves the key available for another attempt. Keys found past
// their expiry are purged on the spot.
func (m *Manager) Redeem(ctx context.Context, key string, fulfill FulfillFunc) error {
	locked, err := m.store.AcquireRedeemLock(ctx, key)
	if err != nil {
		return err
	}
	if !locked {
		return errors.Wrap(errs.ErrAlreadyUsed, "a redemption of this key is already in progress")
	}
	released := false
	defer func() {
		if !released {
			_ = m.store.ReleaseRedeemLock(ctx, key)
		}
	}()

	rec, err := m.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.Wrap(errs.ErrNotFound, "key not found")
	}
	if rec.Used {
		return errors.Wrap(errs.ErrAlreadyUsed, "key was already redeemed")
	}

	now := m.now()
	if now.After(rec.ExpiresAt) {
		// Lazy cleanup: an expired key is removed the moment someone
		// tries to use it.
		if _, err := m.store.Delete(ctx, key); err != nil {
			return err
		}
		m.logger.Info().Str("key", key).Time("expiresAt", rec.ExpiresAt).Msg("purged expired key on redemption attempt")
		return errors.Wrap(errs.ErrExpired, "key expired and was removed")
	}

	if err := fulfill(ctx); err != nil {
		m.logger.Warn().Err(err).Str("key", key).Msg("fulfillment failed, key left untouched")
		return err
	}

	if rec.AutoDelete {
		if _, err := m.store.Delete(ctx, key); err != nil {
			return err
		}
	} else {
		used := true
		count := rec.UsageCount + 1
		if err := m.store.Update(ctx, key, store.KeyUpdate{Used: &used, UsedAt: &now, UsageCount: &count}); err != nil {
			return err
		}
	}

	released = true
	if err := m.store.ReleaseRedeemLock(ctx, key); err != nil {
		// The lock expires on its own; the redemption already succeeded.
		m.logger.Warn().Err(err).Str("key", key).Msg("stale redeem lock left behind")
	}
	m.logger.Info().Str("key", key).Msg("key redeemed and consumed")
	return nil
}
