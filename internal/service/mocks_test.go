package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockCartRepository keeps carts by user id. Returned carts are copies, the
// way a database hands back fresh documents.
type MockCartRepository struct {
	mu        sync.Mutex
	carts     map[string]*domain.Cart
	SaveErr   error
	SaveCalls int
	// AfterGet runs once, right after the next successful read, to let a
	// test interleave another request.
	AfterGet func()
}

func NewMockCartRepository() *MockCartRepository {
	return &MockCartRepository{carts: make(map[string]*domain.Cart)}
}

func copyCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = slices.Clone(c.Items)
	return &cp
}

func (m *MockCartRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	c, ok := m.carts[userID]
	if !ok {
		m.mu.Unlock()
		return nil, repository.ErrCartNotFound
	}
	cart := copyCart(c)
	hook := m.AfterGet
	m.AfterGet = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return cart, nil
}

func (m *MockCartRepository) CreateCart(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[cart.UserID]; ok {
		return repository.ErrDuplicate
	}
	cart.ID = uuid.NewString()
	m.carts[cart.UserID] = copyCart(cart)
	return nil
}

func (m *MockCartRepository) SaveCart(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	stored, ok := m.carts[cart.UserID]
	if !ok {
		return repository.ErrCartNotFound
	}
	if stored.Version != cart.Version {
		return repository.ErrStatusConflict
	}
	cart.Version++
	m.carts[cart.UserID] = copyCart(cart)
	return nil
}

// MockProductRepository applies the stock guard under a lock so concurrent
// checkouts race exactly as they would against the database.
type MockProductRepository struct {
	mu         sync.Mutex
	products   map[string]domain.Product
	DecrErr    map[string]error
	Increments []string
}

func NewMockProductRepository(products ...domain.Product) *MockProductRepository {
	m := &MockProductRepository{
		products: make(map[string]domain.Product),
		DecrErr:  make(map[string]error),
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *MockProductRepository) Stock(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].Stock
}

func (m *MockProductRepository) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (m *MockProductRepository) SaveProduct(_ context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = *product
	return nil
}

func (m *MockProductRepository) DecrementStock(_ context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.DecrErr[productID]; err != nil {
		return err
	}
	p, ok := m.products[productID]
	if !ok || !p.IsActive {
		return repository.ErrProductNotFound
	}
	if p.Stock < quantity {
		return repository.ErrInsufficientStock
	}
	p.Stock -= quantity
	m.products[productID] = p
	return nil
}

func (m *MockProductRepository) IncrementStock(_ context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Stock += quantity
	m.products[productID] = p
	m.Increments = append(m.Increments, productID)
	return nil
}

type MockOrderRepository struct {
	mu            sync.Mutex
	orders        map[string]domain.Order
	CreateErr     error
	PaymentWrites int
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: make(map[string]domain.Order)}
}

func (m *MockOrderRepository) Put(order domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
}

func (m *MockOrderRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *MockOrderRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	for _, o := range m.orders {
		if order.CheckoutKey != "" && o.CheckoutKey == order.CheckoutKey {
			return repository.ErrDuplicate
		}
	}
	m.orders[order.ID] = *order
	return nil
}

func (m *MockOrderRepository) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (m *MockOrderRepository) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return m.list(func(o domain.Order) bool { return o.UserID == userID }), nil
}

func (m *MockOrderRepository) ListOrders(context.Context) ([]*domain.Order, error) {
	return m.list(func(domain.Order) bool { return true }), nil
}

func (m *MockOrderRepository) list(keep func(domain.Order) bool) []*domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Order, 0)
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, &o)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

func (m *MockOrderRepository) SetPayment(_ context.Context, orderID, paymentID string) error {
	return m.mutate(orderID, func(o *domain.Order) { o.PaymentID = paymentID })
}

func (m *MockOrderRepository) MarkPaid(_ context.Context, orderID string) error {
	return m.guarded(orderID, func(o *domain.Order) bool {
		if o.OrderStatus == domain.OrderStatusCancelled {
			return false
		}
		o.PaymentStatus = domain.PaymentStatusPaid
		if o.OrderStatus == domain.OrderStatusPending || o.OrderStatus == domain.OrderStatusCashOnDelivery {
			o.OrderStatus = domain.OrderStatusPaid
		}
		return true
	})
}

func (m *MockOrderRepository) MarkPaymentFailed(_ context.Context, orderID string) error {
	return m.guarded(orderID, func(o *domain.Order) bool {
		if o.PaymentStatus != domain.PaymentStatusPending || o.OrderStatus == domain.OrderStatusCancelled {
			return false
		}
		o.PaymentStatus = domain.PaymentStatusFailed
		return true
	})
}

// guarded counts every payment write that reaches the store, applied or not.
func (m *MockOrderRepository) guarded(orderID string, apply func(*domain.Order) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	m.PaymentWrites++
	if !apply(&o) {
		return repository.ErrStatusConflict
	}
	m.orders[orderID] = o
	return nil
}

func (m *MockOrderRepository) UpdateStatus(_ context.Context, orderID string, from domain.OrderStatus, update domain.OrderUpdate) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if o.OrderStatus != from {
		return nil, repository.ErrStatusConflict
	}
	if update.OrderStatus != nil {
		o.OrderStatus = *update.OrderStatus
	}
	if update.PaymentStatus != nil {
		o.PaymentStatus = *update.PaymentStatus
	}
	o.UpdatedAt = time.Now()
	m.orders[orderID] = o
	return &o, nil
}

func (m *MockOrderRepository) mutate(orderID string, fn func(*domain.Order)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	fn(&o)
	m.orders[orderID] = o
	return nil
}

type MockPaymentRepository struct {
	mu       sync.Mutex
	payments map[string]domain.Payment
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{payments: make(map[string]domain.Payment)}
}

func (m *MockPaymentRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

func (m *MockPaymentRepository) CreatePayment(_ context.Context, payment *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.OrderID == payment.OrderID || p.GatewayOrderID == payment.GatewayOrderID {
			return repository.ErrDuplicate
		}
	}
	m.payments[payment.ID] = *payment
	return nil
}

func (m *MockPaymentRepository) GetByGatewayOrderID(_ context.Context, gatewayOrderID string) (*domain.Payment, error) {
	return m.find(func(p domain.Payment) bool { return p.GatewayOrderID == gatewayOrderID })
}

func (m *MockPaymentRepository) GetByOrderID(_ context.Context, orderID string) (*domain.Payment, error) {
	return m.find(func(p domain.Payment) bool { return p.OrderID == orderID })
}

func (m *MockPaymentRepository) find(match func(domain.Payment) bool) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if match(p) {
			return &p, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (m *MockPaymentRepository) MarkVerified(_ context.Context, paymentID, gatewayPaymentID, signature string) error {
	return m.transition(paymentID, func(p *domain.Payment) {
		p.Status = domain.PaymentVerified
		p.GatewayPaymentID = gatewayPaymentID
		p.Signature = signature
	})
}

func (m *MockPaymentRepository) MarkFailed(_ context.Context, paymentID string) error {
	return m.transition(paymentID, func(p *domain.Payment) { p.Status = domain.PaymentFailed })
}

func (m *MockPaymentRepository) transition(paymentID string, fn func(*domain.Payment)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return repository.ErrPaymentNotFound
	}
	if p.Status != domain.PaymentCreated {
		return repository.ErrStatusConflict
	}
	fn(&p)
	m.payments[paymentID] = p
	return nil
}

type MockEventRepository struct {
	mu     sync.Mutex
	Events []*domain.OrderEvent
}

func (m *MockEventRepository) AppendEvent(_ context.Context, event *domain.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockEventRepository) GetUnprocessedEvents(context.Context, int) ([]*domain.OrderEvent, error) {
	return nil, nil
}

func (m *MockEventRepository) MarkEventAsProcessed(context.Context, string) error {
	return nil
}

func (m *MockEventRepository) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		types = append(types, e.EventType)
	}
	return types
}

// MockCartCache keeps the same version floor as the redis cache.
type MockCartCache struct {
	mu            sync.Mutex
	carts         map[string]*domain.Cart
	floors        map[string]int64
	Invalidations int
	Sets          int
}

func NewMockCartCache() *MockCartCache {
	return &MockCartCache{
		carts:  make(map[string]*domain.Cart),
		floors: make(map[string]int64),
	}
}

func (m *MockCartCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return copyCart(c), nil
}

func (m *MockCartCache) Set(_ context.Context, userID string, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sets++
	if floor, ok := m.floors[userID]; ok && cart.Version < floor {
		return nil
	}
	m.carts[userID] = copyCart(cart)
	return nil
}

func (m *MockCartCache) Invalidate(_ context.Context, userID string, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invalidations++
	m.floors[userID] = max(m.floors[userID], version)
	delete(m.carts, userID)
	return nil
}

// MockGateway hands out sequential intent ids.
type MockGateway struct {
	mu        sync.Mutex
	Err       error
	Calls     int
	Reference string
}

func (m *MockGateway) CreateIntent(_ context.Context, amount int64, currency, reference string) (*gateway.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.Reference = reference
	if m.Err != nil {
		return nil, m.Err
	}
	return &gateway.Intent{ID: "order_gw_" + uuid.NewString()[:8], Amount: amount, Currency: currency, Status: "created"}, nil
}

var errStoreDown = errors.New("store unavailable")

// fixture wires every service over the fakes.
type fixture struct {
	carts    *MockCartRepository
	products *MockProductRepository
	orders   *MockOrderRepository
	payments *MockPaymentRepository
	events   *MockEventRepository
	cache    *MockCartCache
	gateway  *MockGateway
	metrics  *metrics.Metrics

	cartSvc    *CartService
	orderSvc   *OrderService
	paymentSvc *PaymentService
}

const testSecret = "s3cret"

func newFixture(products ...domain.Product) *fixture {
	f := &fixture{
		carts:    NewMockCartRepository(),
		products: NewMockProductRepository(products...),
		orders:   NewMockOrderRepository(),
		payments: NewMockPaymentRepository(),
		events:   &MockEventRepository{},
		cache:    NewMockCartCache(),
		gateway:  &MockGateway{},
		metrics:  metrics.New(nil),
	}
	log := discardLogger()
	f.cartSvc = NewCartService(f.carts, f.products, f.cache, log)
	f.orderSvc = NewOrderService(f.orders, f.products, f.events, f.cartSvc, f.metrics, log)
	f.paymentSvc = NewPaymentService(f.orders, f.payments, f.events, f.gateway,
		PaymentConfig{Secret: testSecret, Currency: "INR", Timeout: time.Second}, f.metrics, log)
	return f
}

func product(id, title string, price float64, stock int) domain.Product {
	return domain.Product{ID: id, Title: title, Price: price, Stock: stock, IsActive: true}
}

func validAddress() domain.Address {
	return domain.Address{Street: "1 MG Road", City: "Pune", Zip: "411001", Country: "IN"}
}
