package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/domain"
	"telegram-classifieds-bot/internal/domain/model"
	"telegram-classifieds-bot/internal/domain/ports/adapter"
	"telegram-classifieds-bot/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// memTxManager runs the callback without a real transaction. Repositories in
// this file accept a nil qx, matching the production contract.
type memTxManager struct{}

func (m *memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, qx repository.Tx) error) error {
	return fn(ctx, nil)
}

// memUserRepo is a small in-memory implementation used by unit tests.
type memUserRepo struct {
	mu      sync.RWMutex
	store   map[int64]*model.User
	saveErr error // used by tests to simulate save failures
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[int64]*model.User)}
}

func (m *memUserRepo) Save(ctx context.Context, _ any, u *model.User) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.TelegramID] = &cp
	return nil
}

func (m *memUserRepo) FindByTelegramID(ctx context.Context, _ any, tgID int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByTelegramIDForUpdate(ctx context.Context, qx any, tgID int64) (*model.User, error) {
	return m.FindByTelegramID(ctx, qx, tgID)
}

func (m *memUserRepo) CountUsers(ctx context.Context, _ any) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store), nil
}

func cloneAd(a *model.Ad) *model.Ad {
	cp := *a
	cp.ChannelMessageIDs = make(map[string][]int, len(a.ChannelMessageIDs))
	for ch, ids := range a.ChannelMessageIDs {
		cp.ChannelMessageIDs[ch] = append([]int(nil), ids...)
	}
	cp.NotificationsSent = make(map[model.NotificationKey]bool, len(a.NotificationsSent))
	for k, v := range a.NotificationsSent {
		cp.NotificationsSent[k] = v
	}
	return &cp
}

type memAdRepo struct {
	mu      sync.RWMutex
	store   map[uuid.UUID]*model.Ad
	saveErr error
}

func newMemAdRepo() *memAdRepo {
	return &memAdRepo{store: make(map[uuid.UUID]*model.Ad)}
}

func (m *memAdRepo) Save(ctx context.Context, _ any, ad *model.Ad) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[ad.ID] = cloneAd(ad)
	return nil
}

func (m *memAdRepo) FindByID(ctx context.Context, _ any, id uuid.UUID) (*model.Ad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ad, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneAd(ad), nil
}

func (m *memAdRepo) CountByOwnerAndStatus(ctx context.Context, _ any, ownerID int64, statuses []model.AdStatus) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cnt := 0
	for _, ad := range m.store {
		if ad.OwnerID != ownerID {
			continue
		}
		for _, s := range statuses {
			if ad.Status == s {
				cnt++
				break
			}
		}
	}
	return cnt, nil
}

func (m *memAdRepo) CountCreatedSince(ctx context.Context, _ any, ownerID int64, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cnt := 0
	for _, ad := range m.store {
		if ad.OwnerID == ownerID && !ad.CreatedAt.Before(since) {
			cnt++
		}
	}
	return cnt, nil
}

func (m *memAdRepo) FindExpired(ctx context.Context, _ any, now time.Time, limit int) ([]*model.Ad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Ad
	for _, ad := range m.store {
		if len(out) >= limit {
			break
		}
		if ad.Status == model.AdStatusActive && ad.ExpiresAt != nil && ad.ExpiresAt.Before(now) {
			out = append(out, cloneAd(ad))
		}
	}
	return out, nil
}

func (m *memAdRepo) FindDueForBoost(ctx context.Context, _ any, now time.Time, limit int) ([]*model.Ad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Ad
	for _, ad := range m.store {
		if len(out) >= limit {
			break
		}
		if ad.Status == model.AdStatusActive && ad.BoostRemaining > 0 &&
			ad.NextBoostAt != nil && !ad.NextBoostAt.After(now) {
			out = append(out, cloneAd(ad))
		}
	}
	return out, nil
}

func (m *memAdRepo) FindExpiringBetween(ctx context.Context, _ any, from, to time.Time) ([]*model.Ad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Ad
	for _, ad := range m.store {
		if ad.Status != model.AdStatusActive || ad.ExpiresAt == nil {
			continue
		}
		if ad.ExpiresAt.After(from) && !ad.ExpiresAt.After(to) {
			out = append(out, cloneAd(ad))
		}
	}
	return out, nil
}

func (m *memAdRepo) FindInactiveOlderThan(ctx context.Context, _ any, cutoff time.Time, limit int) ([]*model.Ad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Ad
	for _, ad := range m.store {
		if len(out) >= limit {
			break
		}
		if ad.Status == model.AdStatusInactive && ad.ArchivedAt != nil && ad.ArchivedAt.Before(cutoff) {
			out = append(out, cloneAd(ad))
		}
	}
	return out, nil
}

type memTransactionRepo struct {
	mu      sync.RWMutex
	entries []*model.Transaction
	saveErr error
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{}
}

func (m *memTransactionRepo) Save(ctx context.Context, _ any, t *model.Transaction) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memTransactionRepo) FindByID(ctx context.Context, _ any, id string) (*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memTransactionRepo) ListByUser(ctx context.Context, _ any, userID int64, limit, offset int, typeFilter *model.TransactionType) ([]*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*model.Transaction
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.UserID != userID {
			continue
		}
		if typeFilter != nil && e.Type != *typeFilter {
			continue
		}
		cp := *e
		matched = append(matched, &cp)
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *memTransactionRepo) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

type memPromoRepo struct {
	mu     sync.RWMutex
	byCode map[string]*model.Promocode
	usages []*model.PromocodeUsage
	nextID int64
}

func newMemPromoRepo() *memPromoRepo {
	return &memPromoRepo{byCode: make(map[string]*model.Promocode)}
}

func (m *memPromoRepo) Save(ctx context.Context, _ any, p *model.Promocode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		m.nextID++
		p.ID = m.nextID
	}
	cp := *p
	m.byCode[p.Code] = &cp
	return nil
}

func (m *memPromoRepo) FindByCode(ctx context.Context, _ any, code string) (*model.Promocode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byCode[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPromoRepo) FindByCodeForUpdate(ctx context.Context, qx any, code string) (*model.Promocode, error) {
	return m.FindByCode(ctx, qx, code)
}

func (m *memPromoRepo) ListActive(ctx context.Context, _ any, limit int) ([]*model.Promocode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Promocode
	for _, p := range m.byCode {
		if len(out) >= limit {
			break
		}
		if p.IsActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPromoRepo) SaveUsage(ctx context.Context, _ any, u *model.PromocodeUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.usages = append(m.usages, &cp)
	return nil
}

func (m *memPromoRepo) CountUsesByUser(ctx context.Context, _ any, promocodeID, userID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cnt := 0
	for _, u := range m.usages {
		if u.PromocodeID == promocodeID && u.UserID == userID {
			cnt++
		}
	}
	return cnt, nil
}

type memPurchaseRepo struct {
	mu    sync.RWMutex
	store map[uuid.UUID]*model.ServicePurchase
}

func newMemPurchaseRepo() *memPurchaseRepo {
	return &memPurchaseRepo{store: make(map[uuid.UUID]*model.ServicePurchase)}
}

func (m *memPurchaseRepo) Save(ctx context.Context, _ any, p *model.ServicePurchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPurchaseRepo) FindByTransactionID(ctx context.Context, _ any, transactionID string) (*model.ServicePurchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.TransactionID == transactionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPurchaseRepo) Deactivate(ctx context.Context, _ any, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.IsActive = false
	return nil
}

func (m *memPurchaseRepo) SumActiveQuantity(ctx context.Context, _ any, userID int64, serviceCode string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := 0
	for _, p := range m.store {
		if p.UserID == userID && p.ServiceCode == serviceCode && p.IsActive {
			sum += p.Quantity
		}
	}
	return sum, nil
}

type memRateRepo struct {
	mu   sync.RWMutex
	rows map[time.Time]*model.ExchangeRate
}

func newMemRateRepo() *memRateRepo {
	return &memRateRepo{rows: make(map[time.Time]*model.ExchangeRate)}
}

func (m *memRateRepo) Save(ctx context.Context, _ any, r *model.ExchangeRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rows[r.RateDate]; exists {
		return domain.ErrAlreadyExists
	}
	cp := *r
	m.rows[r.RateDate] = &cp
	return nil
}

func (m *memRateRepo) FindByDate(ctx context.Context, _ any, date time.Time) (*model.ExchangeRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rows[date]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRateRepo) FindLatest(ctx context.Context, _ any) (*model.ExchangeRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *model.ExchangeRate
	for _, r := range m.rows {
		if latest == nil || r.RateDate.After(latest.RateDate) {
			latest = r
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

// stubRateSource returns a fixed rate or error.
type stubRateSource struct {
	rate decimal.Decimal
	err  error
}

func (s *stubRateSource) FetchUsdRub(ctx context.Context) (decimal.Decimal, error) {
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.rate, nil
}

// memPublisher fakes the channel collaborator. Each Publish hands out a fresh
// message id so republishing is observable.
type memPublisher struct {
	mu         sync.Mutex
	noChannels bool
	publishErr error
	nextMsgID  int
	published  int
	deleted    []int
}

func (m *memPublisher) Publish(ctx context.Context, ad *model.Ad) (map[string][]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return nil, m.publishErr
	}
	m.nextMsgID++
	m.published++
	return map[string][]int{"@test_channel": {m.nextMsgID}}, nil
}

func (m *memPublisher) DeleteMessage(ctx context.Context, channelID string, messageID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageID)
	return true
}

func (m *memPublisher) HasChannels(region string) bool {
	return !m.noChannels
}

// memNotifier records sent messages; failSend simulates a blocked bot.
type memNotifier struct {
	mu       sync.Mutex
	failSend bool
	messages []string
	buttons  int
}

func (m *memNotifier) SendMessage(ctx context.Context, telegramID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSend {
		return domain.ErrOperationFailed
	}
	m.messages = append(m.messages, text)
	return nil
}

func (m *memNotifier) SendButtons(ctx context.Context, telegramID int64, text string, rows [][]adapter.InlineButton) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSend {
		return domain.ErrOperationFailed
	}
	m.messages = append(m.messages, text)
	m.buttons++
	return nil
}

// stubClassifier passes everything unless told otherwise.
type stubClassifier struct {
	unsafe bool
	err    error
}

func (s *stubClassifier) Classify(ctx context.Context, text, categoryContext string) (adapter.Verdict, error) {
	if s.err != nil {
		return adapter.Verdict{}, s.err
	}
	if s.unsafe {
		return adapter.Verdict{IsSafe: false, Category: "blocked", Confidence: 0.99}, nil
	}
	return adapter.Verdict{IsSafe: true, Category: "ok", Confidence: 0.99}, nil
}
