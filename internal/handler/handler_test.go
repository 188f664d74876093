package handler

import (
	"context"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"kntpass.backend/internal/keys"
	"kntpass.backend/internal/model"
	"kntpass.backend/internal/payment"
	"kntpass.backend/internal/store"
)

// memStore is an in-memory keys.Store for handler tests.
type memStore struct {
	records map[string]*model.KeyRecord
	claims  map[string]string
	locks   map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[string]*model.KeyRecord),
		claims:  make(map[string]string),
		locks:   make(map[string]bool),
	}
}

func (s *memStore) Put(_ context.Context, rec *model.KeyRecord) error {
	cp := *rec
	s.records[rec.Key] = &cp
	return nil
}

func (s *memStore) Get(_ context.Context, key string) (*model.KeyRecord, error) {
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) Update(_ context.Context, key string, upd store.KeyUpdate) error {
	rec, ok := s.records[key]
	if !ok {
		return nil
	}
	if upd.Used != nil {
		rec.Used = *upd.Used
	}
	if upd.Expired != nil {
		rec.Expired = *upd.Expired
	}
	if upd.UsedAt != nil {
		t := *upd.UsedAt
		rec.UsedAt = &t
	}
	if upd.UsedBy != nil {
		rec.UsedBy = *upd.UsedBy
	}
	if upd.UsageCount != nil {
		rec.UsageCount = *upd.UsageCount
	}
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) (int64, error) {
	if _, ok := s.records[key]; !ok {
		return 0, nil
	}
	delete(s.records, key)
	return 1, nil
}

func (s *memStore) ListAll(_ context.Context) ([]model.KeyRecord, error) {
	out := make([]model.KeyRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) FindByPaymentID(_ context.Context, paymentID string) (*model.KeyRecord, error) {
	for _, rec := range s.records {
		if rec.GeneratedByPaymentID == paymentID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ClaimPayment(_ context.Context, paymentID, key string) (bool, error) {
	if _, ok := s.claims[paymentID]; ok {
		return false, nil
	}
	s.claims[paymentID] = key
	return true, nil
}

func (s *memStore) PaymentClaim(_ context.Context, paymentID string) (string, error) {
	return s.claims[paymentID], nil
}

func (s *memStore) ReleasePaymentClaim(_ context.Context, paymentID string) error {
	delete(s.claims, paymentID)
	return nil
}

func (s *memStore) AcquireRedeemLock(_ context.Context, key string) (bool, error) {
	if s.locks[key] {
		return false, nil
	}
	s.locks[key] = true
	return true, nil
}

func (s *memStore) ReleaseRedeemLock(_ context.Context, key string) error {
	delete(s.locks, key)
	return nil
}

type sentPass struct {
	SellerKey string
	PlayerID  int64
	Message   string
}

type addedAccount struct {
	SellerKey string
	UID       int64
	Password  string
}

// stubPartner records calls and returns canned results.
type stubPartner struct {
	sellerKey string
	sent      []sentPass
	sendErr   error
	sellers   []model.Seller
	listErr   error
	added     []addedAccount
	addErr    error
}

func (p *stubPartner) DefaultSellerKey() string { return p.sellerKey }

func (p *stubPartner) SendPass(_ context.Context, sellerKey string, playerID int64, message string) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, sentPass{sellerKey, playerID, message})
	return nil
}

func (p *stubPartner) ListSellers(context.Context) ([]model.Seller, error) {
	return p.sellers, p.listErr
}

func (p *stubPartner) AddAccount(_ context.Context, sellerKey string, uid int64, password string) error {
	if p.addErr != nil {
		return p.addErr
	}
	p.added = append(p.added, addedAccount{sellerKey, uid, password})
	return nil
}

// stubGateway records the last charge request and serves a fixed status.
type stubGateway struct {
	lastAmount      decimal.Decimal
	lastDescription string
	createErr       error
	status          string
	statusErr       error
}

func (g *stubGateway) CreatePix(_ context.Context, amount decimal.Decimal, description, externalRef string, _ time.Time) (*payment.PixCharge, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.lastAmount = amount
	g.lastDescription = description
	return &payment.PixCharge{
		ExternalReference: externalRef,
		QRCode:            "00020126pix-copy-paste-code",
		QRCodeBase64:      "aW1hZ2U=",
	}, nil
}

func (g *stubGateway) StatusByReference(context.Context, string) (string, error) {
	return g.status, g.statusErr
}

// stubProducts holds the config in memory and records saves.
type stubProducts struct {
	cfg     *model.ProductConfig
	loadErr error
	saveErr error
	saved   []store.ConfigUpdate
}

func (p *stubProducts) Load(context.Context) (*model.ProductConfig, error) {
	return p.cfg, p.loadErr
}

func (p *stubProducts) Save(_ context.Context, upd store.ConfigUpdate) error {
	if p.saveErr != nil {
		return p.saveErr
	}
	p.saved = append(p.saved, upd)
	return nil
}

// setupHandlers swaps the package collaborators for in-memory fakes.
func setupHandlers(t *testing.T) (*memStore, *stubPartner, *stubGateway, *stubProducts) {
	t.Helper()
	ms := newMemStore()
	sp := &stubPartner{sellerKey: "store-seller-key"}
	sg := &stubGateway{status: "pending"}
	pr := &stubProducts{}
	Keys = ms
	Lifecycle = keys.NewManager(ms, zerolog.Nop())
	Products = pr
	Partner = sp
	Gateway = sg
	return ms, sp, sg, pr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func availableRecord(key string) *model.KeyRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.KeyRecord{
		Key:        key,
		AutoDelete: true,
		CreatedAt:  now,
		ExpiresAt:  now.AddDate(0, 0, 30),
	}
}
