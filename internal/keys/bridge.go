package keys

import (
	"context"

	"kntpass.backend/internal/model"
)

// PaymentStatus values reported by the external payment-status lookup.
const (
	PaymentApproved = "approved"
	PaymentPending  = "pending"
)

// StatusFunc asks the payment processor for the status of an external
// payment reference.
type StatusFunc func(ctx context.Context, paymentID string) (string, error)

// BridgeResult is the outcome of EnsureKeyForPayment: either a key
// identifier or a pending signal.
type BridgeResult struct {
	Key     string
	Pending bool
}

// EnsureKeyForPayment returns the key minted for the given payment,
// minting it on the first call after the payment is approved. Repeated
// polling for the same payment always yields the same identifier: the
// claim index is written with a conditional set, so even concurrent calls
// create at most one key. A non-approved payment leaves nothing behind.
func (m *Manager) EnsureKeyForPayment(ctx context.Context, paymentID string, lookup StatusFunc) (BridgeResult, error) {
	// Fast path: a previous call already bound a key to this payment.
	if claimed, err := m.store.PaymentClaim(ctx, paymentID); err != nil {
		return BridgeResult{}, err
	} else if claimed != "" {
		return BridgeResult{Key: claimed}, nil
	}

	// Records minted before the claim index existed are only reachable by
	// scanning.
	if rec, err := m.store.FindByPaymentID(ctx, paymentID); err != nil {
		return BridgeResult{}, err
	} else if rec != nil {
		return BridgeResult{Key: rec.Key}, nil
	}

	status, err := lookup(ctx, paymentID)
	if err != nil {
		return BridgeResult{}, err
	}
	if status != PaymentApproved {
		return BridgeResult{Pending: true}, nil
	}

	existing, err := m.store.ListAll(ctx)
	if err != nil {
		return BridgeResult{}, err
	}
	seen := make(map[string]bool, len(existing))
	for i := range existing {
		seen[existing[i].Key] = true
	}

	id := generateUnique(seen)
	won, err := m.store.ClaimPayment(ctx, paymentID, id)
	if err != nil {
		return BridgeResult{}, err
	}
	if !won {
		// A concurrent poll minted first; return its key.
		claimed, err := m.store.PaymentClaim(ctx, paymentID)
		if err != nil {
			return BridgeResult{}, err
		}
		return BridgeResult{Key: claimed}, nil
	}

	now := m.now()
	rec := &model.KeyRecord{
		Key:                  id,
		Used:                 false,
		Expired:              false,
		AutoDelete:           true,
		CreatedAt:            now,
		ExpiresAt:            now.AddDate(0, 0, PaymentKeyExpireDays),
		GeneratedByPaymentID: paymentID,
	}
	if err := m.store.Put(ctx, rec); err != nil {
		// Without the record the claim would point at nothing; drop it so
		// the next poll can mint again.
		_ = m.store.ReleasePaymentClaim(ctx, paymentID)
		return BridgeResult{}, err
	}

	m.logger.Info().Str("key", id).Str("paymentId", paymentID).Msg("minted key for approved payment")
	return BridgeResult{Key: id}, nil
}
