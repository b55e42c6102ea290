package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"unlock-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[uuid.UUID]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// ON CONFLICT (customer_id) DO NOTHING
	for _, existing := range r.wallets {
		if existing.CustomerID == w.CustomerID {
			return nil
		}
	}
	cp := *w
	r.wallets[w.ID] = &cp
	return nil
}

func (r *inMemoryWalletRepo) CreateTx(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	if err := r.Create(ctx, w); err != nil {
		return err
	}
	id := w.ID
	stageUndo(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.wallets, id)
	})
	return nil
}

func (r *inMemoryWalletRepo) GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.CustomerID == customerID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWalletRepo) GetByCustomerIDForUpdate(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.Wallet, error) {
	return r.GetByCustomerID(ctx, customerID)
}

func (r *inMemoryWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	prevBalance, prevUpdated := w.Balance, w.UpdatedAt
	stageUndo(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if w, ok := r.wallets[walletID]; ok {
			w.Balance, w.UpdatedAt = prevBalance, prevUpdated
		}
	})
	w.Balance = balance
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-Memory Wallet Transaction Repo ---

type inMemoryWalletTxRepo struct {
	mu  sync.RWMutex
	txs []domain.WalletTransaction
}

func newInMemoryWalletTxRepo() *inMemoryWalletTxRepo {
	return &inMemoryWalletTxRepo{}
}

func (r *inMemoryWalletTxRepo) Create(ctx context.Context, tx pgx.Tx, wtx *domain.WalletTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs = append(r.txs, *wtx)
	id := wtx.ID
	stageUndo(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, t := range r.txs {
			if t.ID == id {
				r.txs = append(r.txs[:i], r.txs[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *inMemoryWalletTxRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.WalletTransaction
	for _, t := range r.txs {
		if t.WalletID == walletID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	total := int64(len(result))

	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.WalletTransaction{}, total, nil
	}
	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryWalletTxRepo) SumByWallet(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := decimal.Zero
	for _, t := range r.txs {
		if t.WalletID == walletID {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

// --- In-Memory Grant Repo ---

type inMemoryGrantRepo struct {
	mu     sync.RWMutex
	grants map[string]*domain.CvUnlockGrant // key: customer|profile
}

func newInMemoryGrantRepo() *inMemoryGrantRepo {
	return &inMemoryGrantRepo{grants: make(map[string]*domain.CvUnlockGrant)}
}

func grantKey(customerID, profileID uuid.UUID) string {
	return customerID.String() + "|" + profileID.String()
}

func (r *inMemoryGrantRepo) Get(ctx context.Context, customerID, profileID uuid.UUID) (*domain.CvUnlockGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grants[grantKey(customerID, profileID)]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (r *inMemoryGrantRepo) Insert(ctx context.Context, tx pgx.Tx, grant *domain.CvUnlockGrant) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := grantKey(grant.CustomerID, grant.ProfileID)
	if _, exists := r.grants[key]; exists {
		return false, nil
	}
	cp := *grant
	r.grants[key] = &cp
	stageUndo(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.grants, key)
	})
	return true, nil
}

func (r *inMemoryGrantRepo) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.grants)
}

// --- In-Memory Payment Repo ---

type inMemoryPaymentRepo struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.Payment
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (r *inMemoryPaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *inMemoryPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPaymentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryPaymentRepo) GetByGatewayRef(ctx context.Context, ref string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.GatewayRef != nil && *p.GatewayRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryPaymentRepo) MarkProcessing(ctx context.Context, id uuid.UUID, gatewayRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return fmt.Errorf("payment not found")
	}
	if p.Status != domain.PaymentStatusPending {
		return fmt.Errorf("payment %s is not pending", id)
	}
	p.Status = domain.PaymentStatusProcessing
	p.GatewayRef = &gatewayRef
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryPaymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus, gatewayRef, failureReason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return fmt.Errorf("payment not found")
	}
	prev := *p
	stageUndo(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, ok := r.payments[id]; ok {
			*cur = prev
		}
	})
	p.Status = status
	if gatewayRef != nil {
		p.GatewayRef = gatewayRef
	}
	if failureReason != nil {
		p.FailureReason = failureReason
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-Memory Subscription Repo ---

type inMemorySubscriptionRepo struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*domain.Subscription
}

func newInMemorySubscriptionRepo() *inMemorySubscriptionRepo {
	return &inMemorySubscriptionRepo{subs: make(map[uuid.UUID]*domain.Subscription)}
}

func (r *inMemorySubscriptionRepo) add(s *domain.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.subs[s.ID] = &cp
}

func (r *inMemorySubscriptionRepo) GetActiveByCustomer(ctx context.Context, customerID uuid.UUID) (*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subs {
		if s.CustomerID == customerID && s.Status == domain.SubscriptionActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemorySubscriptionRepo) GetActiveByCustomerForUpdate(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.Subscription, error) {
	return r.GetActiveByCustomer(ctx, customerID)
}

func (r *inMemorySubscriptionRepo) ApplyPeriodReset(ctx context.Context, tx pgx.Tx, id uuid.UUID, resetAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return fmt.Errorf("subscription not found")
	}
	prevUsed, prevReset := s.CvUnlocksUsed, s.PeriodResetAt
	stageUndo(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, ok := r.subs[id]; ok {
			cur.CvUnlocksUsed, cur.PeriodResetAt = prevUsed, prevReset
		}
	})
	s.CvUnlocksUsed = 0
	s.PeriodResetAt = resetAt
	return nil
}

func (r *inMemorySubscriptionRepo) ConsumeFreeUnlock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return false, fmt.Errorf("subscription not found")
	}
	if s.CvUnlocksUsed >= s.CvUnlockAllowance {
		return false, nil
	}
	s.CvUnlocksUsed++
	stageUndo(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, ok := r.subs[id]; ok {
			cur.CvUnlocksUsed--
		}
	})
	return true, nil
}

// --- In-Memory Price Rule Repo ---

type inMemoryPriceRuleRepo struct {
	mu    sync.RWMutex
	rules []domain.PriceRule
}

func newInMemoryPriceRuleRepo() *inMemoryPriceRuleRepo {
	return &inMemoryPriceRuleRepo{}
}

func (r *inMemoryPriceRuleRepo) add(rule domain.PriceRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule)
}

func (r *inMemoryPriceRuleRepo) GetActiveByNationality(ctx context.Context, nationality string) (*domain.PriceRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.rules {
		rule := r.rules[i]
		if rule.Active && rule.Nationality != nil && *rule.Nationality == nationality {
			return &rule, nil
		}
	}
	return nil, nil
}

func (r *inMemoryPriceRuleRepo) GetActiveDefault(ctx context.Context) (*domain.PriceRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.rules {
		rule := r.rules[i]
		if rule.Active && rule.Nationality == nil {
			return &rule, nil
		}
	}
	return nil, nil
}

// --- In-Memory Ledger Event Repo ---

type inMemoryLedgerEventRepo struct {
	mu     sync.RWMutex
	events []domain.LedgerEvent
}

func newInMemoryLedgerEventRepo() *inMemoryLedgerEventRepo {
	return &inMemoryLedgerEventRepo{}
}

func (r *inMemoryLedgerEventRepo) Create(ctx context.Context, ev *domain.LedgerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
	return nil
}

func (r *inMemoryLedgerEventRepo) byType(eventType string) []domain.LedgerEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.LedgerEvent
	for _, ev := range r.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// stageUndo registers an inverse operation on the enclosing transaction so
// a rollback restores the repo to its pre-transaction state.
func stageUndo(tx pgx.Tx, fn func()) {
	if st, ok := tx.(*serialTx); ok {
		st.onRollback(fn)
	}
}

// --- In-Memory Transactor ---

// inMemoryTransactor serializes transactions with a single lock held from
// Begin until Commit or Rollback. This stands in for the row-level FOR UPDATE
// locks the PostgreSQL layer takes, so the funding chain's read-then-write
// sequences stay atomic under the concurrency tests.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &serialTx{release: &t.mu}, nil
}

// serialTx is a pgx.Tx that releases the transactor lock exactly once, on
// whichever of Commit or Rollback runs first. Repos that write under a
// transaction register an undo with onRollback so an abort restores the
// pre-transaction state, matching real transactional semantics.
type serialTx struct {
	release *sync.Mutex
	once    sync.Once
	undo    []func()
}

// onRollback registers fn to run, LIFO, if the transaction aborts. Safe
// without extra locking: the transactor lock serializes all tx work.
func (t *serialTx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *serialTx) end(commit bool) {
	t.once.Do(func() {
		if !commit {
			for i := len(t.undo) - 1; i >= 0; i-- {
				t.undo[i]()
			}
		}
		t.undo = nil
		t.release.Unlock()
	})
}

func (t *serialTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *serialTx) Commit(ctx context.Context) error          { t.end(true); return nil }
func (t *serialTx) Rollback(ctx context.Context) error        { t.end(false); return nil }
func (t *serialTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *serialTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *serialTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *serialTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *serialTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *serialTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *serialTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *serialTx) Conn() *pgx.Conn { return nil }
