package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mock repositories for testing

type mockProductRepository struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
	ledger   []*domain.Transaction
	// beforeAdjust runs inside AdjustStock before the stock check
	beforeAdjust func(p *domain.Product)
	adjustErr    error
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products: make(map[uuid.UUID]*domain.Product),
	}
}

// seed stores a product with quantity in stock and returns a copy
func (m *mockProductRepository) seed(name string, quantity int, price string) *domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &domain.Product{
		ID:        uuid.New(),
		Name:      name,
		Quantity:  quantity,
		Price:     decimal.RequireFromString(price),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.products[p.ID] = p
	clone := *p
	return &clone
}

func (m *mockProductRepository) quantity(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Quantity
}

func (m *mockProductRepository) transactions() []*domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Transaction(nil), m.ledger...)
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product, handledBy string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *product
	m.products[product.ID] = &clone
	if product.Quantity == 0 {
		return nil, nil
	}
	entry := &domain.Transaction{
		ID:          uuid.New(),
		ProductID:   product.ID,
		ProductName: product.Name,
		Type:        domain.TransactionStockIn,
		Quantity:    product.Quantity,
		HandledBy:   handledBy,
		Timestamp:   product.CreatedAt,
	}
	m.ledger = append(m.ledger, entry)
	return entry, nil
}

func (m *mockProductRepository) Update(ctx context.Context, id uuid.UUID, update domain.ProductUpdate, at time.Time) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	p.Name = update.Name
	p.Description = update.Description
	p.Category = update.Category
	p.ImageURL = update.ImageURL
	p.Price = update.Price
	p.ExpiryDate = update.ExpiryDate
	p.UpdatedAt = at
	clone := *p
	return &clone, nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *mockProductRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	products := make([]*domain.Product, 0, len(m.products))
	for _, p := range m.products {
		clone := *p
		products = append(products, &clone)
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name == products[j].Name {
			return products[i].ID.String() < products[j].ID.String()
		}
		return products[i].Name < products[j].Name
	})
	return products, nil
}

func (m *mockProductRepository) AdjustStock(ctx context.Context, change repository.StockChange) (*domain.Product, *domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.adjustErr != nil {
		return nil, nil, m.adjustErr
	}
	p, ok := m.products[change.ProductID]
	if !ok {
		return nil, nil, repository.ErrProductNotFound
	}
	if m.beforeAdjust != nil {
		m.beforeAdjust(p)
	}

	if change.Type.Removes() {
		if p.Quantity < change.Quantity {
			clone := *p
			return &clone, nil, repository.ErrInsufficientStock
		}
		p.Quantity -= change.Quantity
	} else {
		p.Quantity += change.Quantity
	}
	p.UpdatedAt = change.At

	entry := &domain.Transaction{
		ID:          uuid.New(),
		ProductID:   p.ID,
		ProductName: p.Name,
		Type:        change.Type,
		Quantity:    change.Quantity,
		HandledBy:   change.HandledBy,
		Timestamp:   change.At,
	}
	m.ledger = append(m.ledger, entry)

	clone := *p
	return &clone, entry, nil
}

type mockTransactionRepository struct {
	products *mockProductRepository
}

func (m *mockTransactionRepository) Recent(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	entries := m.products.transactions()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *mockTransactionRepository) SalesStats(ctx context.Context, from, to time.Time) (int, decimal.Decimal, error) {
	orders := 0
	revenue := decimal.Zero
	for _, t := range m.products.transactions() {
		if t.Type != domain.TransactionSale || t.Timestamp.Before(from) || t.Timestamp.After(to) {
			continue
		}
		orders++
		if p, err := m.products.FindByID(ctx, t.ProductID); err == nil {
			revenue = revenue.Add(p.Price.Mul(decimal.NewFromInt(int64(t.Quantity))))
		}
	}
	return orders, revenue, nil
}

func (m *mockTransactionRepository) TopSelling(ctx context.Context, from *time.Time, to time.Time, limit int) ([]repository.ProductSold, error) {
	sold := make(map[uuid.UUID]int)
	for _, t := range m.products.transactions() {
		if t.Type != domain.TransactionSale || t.Timestamp.After(to) {
			continue
		}
		if from != nil && t.Timestamp.Before(*from) {
			continue
		}
		sold[t.ProductID] += t.Quantity
	}
	ranked := make([]repository.ProductSold, 0, len(sold))
	for id, q := range sold {
		ranked = append(ranked, repository.ProductSold{ProductID: id, Quantity: q})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Quantity == ranked[j].Quantity {
			return ranked[i].ProductID.String() < ranked[j].ProductID.String()
		}
		return ranked[i].Quantity > ranked[j].Quantity
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

type mockCartRepository struct {
	mu        sync.Mutex
	carts     map[uuid.UUID][]domain.CartItem
	removeErr error
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: make(map[uuid.UUID][]domain.CartItem)}
}

func (m *mockCartRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &domain.Cart{UserID: userID, Items: append([]domain.CartItem{}, m.carts[userID]...)}, nil
}

func (m *mockCartRepository) AddOrMerge(ctx context.Context, userID uuid.UUID, item domain.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.carts[userID]
	for i := range items {
		if items[i].ProductID == item.ProductID {
			items[i].Quantity += item.Quantity
			return nil
		}
	}
	m.carts[userID] = append(items, item)
	return nil
}

func (m *mockCartRepository) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.carts[userID]
	for i := range items {
		if items[i].ProductID == productID {
			m.carts[userID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return repository.ErrCartItemNotFound
}

func (m *mockCartRepository) RemoveProducts(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	drop := make(map[uuid.UUID]bool, len(productIDs))
	for _, id := range productIDs {
		drop[id] = true
	}
	kept := []domain.CartItem{}
	for _, item := range m.carts[userID] {
		if !drop[item.ProductID] {
			kept = append(kept, item)
		}
	}
	m.carts[userID] = kept
	return nil
}

func (m *mockCartRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

type mockNotificationRepository struct {
	mu            sync.Mutex
	notifications []*domain.Notification
}

func newMockNotificationRepository() *mockNotificationRepository {
	return &mockNotificationRepository{}
}

func (m *mockNotificationRepository) UpsertUnread(ctx context.Context, n *domain.Notification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.notifications {
		if existing.ProductID == n.ProductID && existing.Type == n.Type && !existing.Read {
			existing.Message = n.Message
			n.ID = existing.ID
			n.CreatedAt = existing.CreatedAt
			return false, nil
		}
	}
	clone := *n
	m.notifications = append(m.notifications, &clone)
	return true, nil
}

func (m *mockNotificationRepository) ResolveUnread(ctx context.Context, productID uuid.UUID, t domain.NotificationType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ProductID == productID && n.Type == t && !n.Read {
			n.Read = true
			return true, nil
		}
	}
	return false, nil
}

func (m *mockNotificationRepository) FindAll(ctx context.Context) ([]*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*domain.Notification, 0, len(m.notifications))
	for i := len(m.notifications) - 1; i >= 0; i-- {
		clone := *m.notifications[i]
		all = append(all, &clone)
	}
	return all, nil
}

func (m *mockNotificationRepository) CountUnread(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.notifications {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *mockNotificationRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

// unread returns the unread notifications of productID
func (m *mockNotificationRepository) unread(productID uuid.UUID) []*domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Notification
	for _, n := range m.notifications {
		if n.ProductID == productID && !n.Read {
			out = append(out, n)
		}
	}
	return out
}

type mockPurchaseOrderRepository struct {
	mu     sync.Mutex
	orders []*domain.PurchaseOrder
}

func newMockPurchaseOrderRepository() *mockPurchaseOrderRepository {
	return &mockPurchaseOrderRepository{}
}

func (m *mockPurchaseOrderRepository) Create(ctx context.Context, order *domain.PurchaseOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ConfirmationToken != nil && order.ConfirmationToken != nil && *o.ConfirmationToken == *order.ConfirmationToken {
			return repository.ErrDuplicateToken
		}
	}
	clone := *order
	m.orders = append(m.orders, &clone)
	return nil
}

func (m *mockPurchaseOrderRepository) ConfirmByToken(ctx context.Context, token string, at time.Time) (*domain.PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ConfirmationToken != nil && *o.ConfirmationToken == token && o.Status == domain.PurchaseOrderSent {
			o.Status = domain.PurchaseOrderConfirmed
			o.ConfirmedAt = &at
			o.ConfirmationToken = nil
			clone := *o
			return &clone, nil
		}
	}
	return nil, repository.ErrPurchaseOrderNotFound
}

func (m *mockPurchaseOrderRepository) FindByToken(ctx context.Context, token string) (*domain.PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ConfirmationToken != nil && *o.ConfirmationToken == token {
			clone := *o
			return &clone, nil
		}
	}
	return nil, repository.ErrPurchaseOrderNotFound
}

func (m *mockPurchaseOrderRepository) FindAll(ctx context.Context) ([]*domain.PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*domain.PurchaseOrder, 0, len(m.orders))
	for i := len(m.orders) - 1; i >= 0; i-- {
		clone := *m.orders[i]
		all = append(all, &clone)
	}
	return all, nil
}

type sentEmail struct {
	to, subject, body string
}

type mockSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *mockSender) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

type mockForecaster struct {
	mu       sync.Mutex
	demand   map[uuid.UUID]int
	failures map[uuid.UUID]bool
	inFlight int
	peak     int
	delay    time.Duration
}

func newMockForecaster() *mockForecaster {
	return &mockForecaster{
		demand:   make(map[uuid.UUID]int),
		failures: make(map[uuid.UUID]bool),
	}
}

var errForecastDown = errors.New("forecast service down")

func (m *mockForecaster) ForecastDemand(ctx context.Context, productID uuid.UUID) (int, error) {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.peak {
		m.peak = m.inFlight
	}
	delay := m.delay
	fail := m.failures[productID]
	demand := m.demand[productID]
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()

	if fail {
		return 0, errForecastDown
	}
	return demand, nil
}
