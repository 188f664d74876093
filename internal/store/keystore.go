package store

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/mailgun/errors"
	"github.com/rs/zerolog"

	"kntpass.backend/internal/errs"
	"kntpass.backend/internal/model"
)

const (
	keyPrefix     = "key:"
	paymentPrefix = "payment:"

	redeemLockPrefix = "redeemlock:"
	// redeemLockTTL bounds how long a crashed redemption can keep a key
	// locked before another attempt may proceed.
	redeemLockTTL = 30 * time.Second
)

// KeyStore persists key records as hashes under "key:<id>".
type KeyStore struct {
	kv     KV
	logger zerolog.Logger
}

func NewKeyStore(kv KV, logger zerolog.Logger) *KeyStore {
	return &KeyStore{
		kv:     kv,
		logger: logger.With().Str("component", "KeyStore").Logger(),
	}
}

// Put upserts a full record keyed by record.Key.
func (s *KeyStore) Put(ctx context.Context, rec *model.KeyRecord) error {
	if rec == nil || rec.Key == "" {
		return errors.Wrap(errs.ErrInvalidInput, "key record has no identifier")
	}
	if err := s.kv.HashSet(ctx, keyPrefix+rec.Key, encodeKeyRecord(rec)); err != nil {
		return errs.Upstream(err, "storing key record")
	}
	return nil
}

// Get returns the record for an exact key match, or (nil, nil) when absent.
func (s *KeyStore) Get(ctx context.Context, key string) (*model.KeyRecord, error) {
	fields, err := s.kv.HashGetAll(ctx, keyPrefix+key)
	if err != nil {
		return nil, errs.Upstream(err, "reading key record")
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeKeyRecord(fields), nil
}

// KeyUpdate is a partial mutation of an existing record. Nil fields are
// left untouched by Update.
type KeyUpdate struct {
	Used       *bool
	Expired    *bool
	UsedAt     *time.Time
	UsedBy     *string
	UsageCount *int
}

// Update merges the supplied fields into an existing record. It requires
// the record to exist: merging into a missing key would silently create a
// partial record, so that case is reported as not found instead.
func (s *KeyStore) Update(ctx context.Context, key string, upd KeyUpdate) error {
	exists, err := s.kv.Exists(ctx, keyPrefix+key)
	if err != nil {
		return errs.Upstream(err, "checking key record")
	}
	if !exists {
		return errors.Wrap(errs.ErrNotFound, "updating a key that does not exist")
	}

	fields := map[string]any{}
	if upd.Used != nil {
		fields["used"] = strconv.FormatBool(*upd.Used)
	}
	if upd.Expired != nil {
		fields["expired"] = strconv.FormatBool(*upd.Expired)
	}
	if upd.UsedAt != nil {
		fields["usedAt"] = upd.UsedAt.UTC().Format(time.RFC3339)
	}
	if upd.UsedBy != nil {
		fields["usedBy"] = *upd.UsedBy
	}
	if upd.UsageCount != nil {
		fields["usageCount"] = strconv.Itoa(*upd.UsageCount)
	}
	if len(fields) == 0 {
		return nil
	}
	if err := s.kv.HashSet(ctx, keyPrefix+key, fields); err != nil {
		return errs.Upstream(err, "updating key record")
	}
	return nil
}

// Delete removes the record and reports how many entries were removed
// (0 or 1). Deleting a missing key is not an error.
func (s *KeyStore) Delete(ctx context.Context, key string) (int64, error) {
	n, err := s.kv.Delete(ctx, keyPrefix+key)
	if err != nil {
		return 0, errs.Upstream(err, "deleting key record")
	}
	return n, nil
}

// ListAll scans every key-prefixed entry and returns the records sorted by
// creation time, newest first. Cost is linear in the number of keys ever
// issued; this system stays in the hundreds-to-low-thousands regime.
func (s *KeyStore) ListAll(ctx context.Context) ([]model.KeyRecord, error) {
	ids, err := s.kv.ScanKeys(ctx, keyPrefix)
	if err != nil {
		return nil, errs.Upstream(err, "scanning key records")
	}

	records := make([]model.KeyRecord, 0, len(ids))
	for _, id := range ids {
		fields, err := s.kv.HashGetAll(ctx, id)
		if err != nil {
			return nil, errs.Upstream(err, "reading key record during scan")
		}
		if len(fields) == 0 {
			// Deleted between scan and fetch.
			continue
		}
		records = append(records, *decodeKeyRecord(fields))
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// FindByPaymentID returns the record bound to the given external payment
// identifier, or (nil, nil) when no such record exists.
func (s *KeyStore) FindByPaymentID(ctx context.Context, paymentID string) (*model.KeyRecord, error) {
	records, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].GeneratedByPaymentID == paymentID {
			return &records[i], nil
		}
	}
	return nil, nil
}

// ClaimPayment atomically binds a payment identifier to a key identifier.
// Exactly one caller wins for a given payment; everyone else gets false.
func (s *KeyStore) ClaimPayment(ctx context.Context, paymentID, key string) (bool, error) {
	ok, err := s.kv.SetIfAbsent(ctx, paymentPrefix+paymentID, key, 0)
	if err != nil {
		return false, errs.Upstream(err, "claiming payment")
	}
	return ok, nil
}

// PaymentClaim returns the key identifier previously claimed for the
// payment, or "" when no claim exists.
func (s *KeyStore) PaymentClaim(ctx context.Context, paymentID string) (string, error) {
	v, found, err := s.kv.GetString(ctx, paymentPrefix+paymentID)
	if err != nil {
		return "", errs.Upstream(err, "reading payment claim")
	}
	if !found {
		return "", nil
	}
	return v, nil
}

// ReleasePaymentClaim drops a claim whose record could not be persisted,
// so a later poll can mint again.
func (s *KeyStore) ReleasePaymentClaim(ctx context.Context, paymentID string) error {
	if _, err := s.kv.Delete(ctx, paymentPrefix+paymentID); err != nil {
		return errs.Upstream(err, "releasing payment claim")
	}
	return nil
}

// AcquireRedeemLock takes the short-lived per-key lock guarding the
// redemption check-then-act sequence.
func (s *KeyStore) AcquireRedeemLock(ctx context.Context, key string) (bool, error) {
	ok, err := s.kv.SetIfAbsent(ctx, redeemLockPrefix+key, "1", redeemLockTTL)
	if err != nil {
		return false, errs.Upstream(err, "acquiring redeem lock")
	}
	return ok, nil
}

func (s *KeyStore) ReleaseRedeemLock(ctx context.Context, key string) error {
	if _, err := s.kv.Delete(ctx, redeemLockPrefix+key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("could not release redeem lock, it will expire on its own")
		return errs.Upstream(err, "releasing redeem lock")
	}
	return nil
}

func encodeKeyRecord(rec *model.KeyRecord) map[string]any {
	fields := map[string]any{
		"key":                  rec.Key,
		"used":                 strconv.FormatBool(rec.Used),
		"expired":              strconv.FormatBool(rec.Expired),
		"autoDelete":           strconv.FormatBool(rec.AutoDelete),
		"createdAt":            rec.CreatedAt.UTC().Format(time.RFC3339),
		"expiresAt":            rec.ExpiresAt.UTC().Format(time.RFC3339),
		"usedBy":               rec.UsedBy,
		"usageCount":           strconv.Itoa(rec.UsageCount),
		"generatedByPaymentId": rec.GeneratedByPaymentID,
	}
	if rec.UsedAt != nil {
		fields["usedAt"] = rec.UsedAt.UTC().Format(time.RFC3339)
	} else {
		fields["usedAt"] = ""
	}
	return fields
}

func decodeKeyRecord(fields map[string]string) *model.KeyRecord {
	rec := &model.KeyRecord{
		Key:                  fields["key"],
		Used:                 fields["used"] == "true",
		Expired:              fields["expired"] == "true",
		AutoDelete:           fields["autoDelete"] == "true",
		UsedBy:               fields["usedBy"],
		GeneratedByPaymentID: fields["generatedByPaymentId"],
	}
	if t, err := time.Parse(time.RFC3339, fields["createdAt"]); err == nil {
		rec.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, fields["expiresAt"]); err == nil {
		rec.ExpiresAt = t
	}
	if t, err := time.Parse(time.RFC3339, fields["usedAt"]); err == nil {
		rec.UsedAt = &t
	}
	if n, err := strconv.Atoi(fields["usageCount"]); err == nil {
		rec.UsageCount = n
	}
	return rec
}
