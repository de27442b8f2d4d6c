package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/omnimarket-backend/internal/events"
	"github.com/ignatzorin/omnimarket-backend/internal/models"
	"github.com/ignatzorin/omnimarket-backend/internal/pkg/apperror"
)

// memStore хранилище в памяти с транзакциями: WithinTx сериализует транзакции
// и откатывает все изменения при ошибке.
type memStore struct {
	txLock sync.Mutex
	mu     sync.Mutex

	wallets  map[uuid.UUID]decimal.Decimal
	ledger   []models.WalletTransaction
	products map[uuid.UUID]models.Product
	orders   map[uuid.UUID]models.Order
	payments []models.InstallmentPayment
	subs     []models.Subscription

	releaseCalls int
}

type memTxKey struct{}

func newMemStore() *memStore {
	return &memStore{
		wallets:  make(map[uuid.UUID]decimal.Decimal),
		products: make(map[uuid.UUID]models.Product),
		orders:   make(map[uuid.UUID]models.Order),
	}
}

type memSnapshot struct {
	wallets  map[uuid.UUID]decimal.Decimal
	ledger   int
	products map[uuid.UUID]models.Product
	orders   map[uuid.UUID]models.Order
	payments int
	subs     int
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := memSnapshot{
		wallets:  make(map[uuid.UUID]decimal.Decimal, len(s.wallets)),
		ledger:   len(s.ledger),
		products: make(map[uuid.UUID]models.Product, len(s.products)),
		orders:   make(map[uuid.UUID]models.Order, len(s.orders)),
		payments: len(s.payments),
		subs:     len(s.subs),
	}
	for k, v := range s.wallets {
		snap.wallets[k] = v
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wallets = snap.wallets
	s.ledger = s.ledger[:snap.ledger]
	s.products = snap.products
	s.orders = snap.orders
	s.payments = s.payments[:snap.payments]
	s.subs = s.subs[:snap.subs]
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	s.txLock.Lock()
	defer s.txLock.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) balance(userID uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets[userID]
}

func (s *memStore) setBalance(userID uuid.UUID, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[userID] = amount
}

func (s *memStore) order(id uuid.UUID) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memStore) product(id uuid.UUID) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

func (s *memStore) addProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.StoreID == uuid.Nil {
		p.StoreID = p.SellerID
	}
	s.products[p.ID] = p
	return p
}

func (s *memStore) addOrder(o models.Order) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	s.orders[o.ID] = o
	return o
}

func (s *memStore) ledgerFor(userID uuid.UUID) []models.WalletTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WalletTransaction
	for _, tx := range s.ledger {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out
}

func (s *memStore) walletRepo() *memWallets { return &memWallets{s} }
func (s *memStore) orderRepo() *memOrders { return &memOrders{s} }
func (s *memStore) productRepo() *memProducts { return &memProducts{s} }
func (s *memStore) subscriptionRepo() *memSubs { return &memSubs{s} }

type memWallets struct{ s *memStore }

func (w *memWallets) Get(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return &models.Wallet{UserID: userID, Balance: w.s.balance(userID)}, nil
}

func (w *memWallets) Adjust(ctx context.Context, userID uuid.UUID, delta decimal.Decimal, entry models.LedgerEntry) (*models.WalletTransaction, error) {
	if delta.IsZero() {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма операции не может быть нулевой")
	}

	var record *models.WalletTransaction
	err := w.s.WithinTx(ctx, func(context.Context) error {
		w.s.mu.Lock()
		defer w.s.mu.Unlock()

		next := w.s.wallets[userID].Add(delta)
		if next.IsNegative() {
			return apperror.ErrInsufficientFunds
		}
		w.s.wallets[userID] = next

		record = &models.WalletTransaction{
			ID:           uuid.New(),
			UserID:       userID,
			OrderID:      entry.OrderID,
			Type:         entry.Type,
			Amount:       delta,
			BalanceAfter: next,
			Reason:       entry.Reason,
			CreatedAt:    time.Now(),
		}
		w.s.ledger = append(w.s.ledger, *record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (w *memWallets) ListTransactions(_ context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	all := w.s.ledgerFor(userID)
	if offset >= len(all) {
		return []models.WalletTransaction{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

type memProducts struct{ s *memStore }

func (p *memProducts) Create(_ context.Context, product *models.Product) error {
	*product = p.s.addProduct(*product)
	return nil
}

func (p *memProducts) GetByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	product, ok := p.s.products[id]
	if !ok {
		return nil, apperror.ErrProductNotFound
	}
	return &product, nil
}

func (p *memProducts) ListBySeller(_ context.Context, sellerID uuid.UUID, _, _ int) ([]models.Product, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	out := []models.Product{}
	for _, product := range p.s.products {
		if product.SellerID == sellerID {
			out = append(out, product)
		}
	}
	return out, nil
}

func (p *memProducts) ReserveStock(_ context.Context, id uuid.UUID, quantity int) (bool, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	product, ok := p.s.products[id]
	if !ok || !product.Active || product.Stock < quantity {
		return false, nil
	}
	product.Stock -= quantity
	p.s.products[id] = product
	return true, nil
}

type memOrders struct{ s *memStore }

func (o *memOrders) Create(_ context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	o.s.addOrder(*order)
	return nil
}

func (o *memOrders) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	order, ok := o.s.orders[id]
	if !ok {
		return nil, apperror.ErrOrderNotFound
	}
	return &order, nil
}

func (o *memOrders) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return o.GetByID(ctx, id)
}

func (o *memOrders) UpdateProgress(_ context.Context, order *models.Order) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	current, ok := o.s.orders[order.ID]
	if !ok {
		return apperror.ErrOrderNotFound
	}
	if current.EscrowReleased || current.BalanceDue.LessThan(order.BalanceDue) {
		return apperror.New(apperror.ErrCodeConflict, "заказ изменён другим запросом")
	}
	current.Status = order.Status
	current.Delivered = order.Delivered
	current.DeliveredAt = order.DeliveredAt
	current.BalanceDue = order.BalanceDue
	current.BalancePaid = order.BalancePaid
	current.UpdatedAt = time.Now()
	o.s.orders[order.ID] = current
	return nil
}

func (o *memOrders) MarkEscrowReleased(_ context.Context, id uuid.UUID, releasedAt time.Time) (bool, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	o.s.releaseCalls++
	order, ok := o.s.orders[id]
	if !ok || !order.ReadyForRelease() {
		return false, nil
	}
	order.EscrowReleased = true
	order.Status = models.OrderStatusCompleted
	order.ReleasedAt = &releasedAt
	o.s.orders[id] = order
	return true, nil
}

func (o *memOrders) SetRating(_ context.Context, id uuid.UUID, rating int) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	order, ok := o.s.orders[id]
	if !ok {
		return apperror.ErrOrderNotFound
	}
	if order.RatingSubmitted {
		return apperror.ErrAlreadyRated
	}
	order.Rating = &rating
	order.RatingSubmitted = true
	o.s.orders[id] = order
	return nil
}

func (o *memOrders) ListByBuyer(_ context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return o.list(func(order models.Order) bool { return order.BuyerID == buyerID }), nil
}

func (o *memOrders) ListBySeller(_ context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return o.list(func(order models.Order) bool { return order.SellerID == sellerID }), nil
}

func (o *memOrders) list(match func(models.Order) bool) []models.Order {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	out := []models.Order{}
	for _, order := range o.s.orders {
		if match(order) {
			out = append(out, order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (o *memOrders) ListReadyForRelease(_ context.Context, limit int) ([]uuid.UUID, error) {
	ready := o.list(func(order models.Order) bool { return order.ReadyForRelease() })
	ids := make([]uuid.UUID, 0, len(ready))
	for _, order := range ready {
		if len(ids) == limit {
			break
		}
		ids = append(ids, order.ID)
	}
	return ids, nil
}

func (o *memOrders) CreateInstallmentPayment(_ context.Context, payment *models.InstallmentPayment) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	payment.ID = uuid.New()
	payment.CreatedAt = time.Now()
	o.s.payments = append(o.s.payments, *payment)
	return nil
}

func (o *memOrders) ListInstallmentPayments(_ context.Context, orderID uuid.UUID) ([]models.InstallmentPayment, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	out := []models.InstallmentPayment{}
	for _, p := range o.s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memSubs struct{ s *memStore }

func (m *memSubs) Create(_ context.Context, sub *models.Subscription) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sub.ID = uuid.New()
	sub.CreatedAt = time.Now()
	m.s.subs = append(m.s.subs, *sub)
	return nil
}

func (m *memSubs) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []models.Subscription{}
	for _, sub := range m.s.subs {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out, nil
}

// recordingPublisher запоминает опубликованные события.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, evt := range p.events {
		out = append(out, evt.Type)
	}
	return out
}

type fixedOTP string

func (f fixedOTP) Generate() (string, error) { return string(f), nil }

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
