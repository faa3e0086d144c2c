package http

import (
	"context"
	"io"
	"sync"

	"github.com/cicadacove/storefront/internal/auth"
	"github.com/cicadacove/storefront/internal/catalog"
	cartservice "github.com/cicadacove/storefront/internal/cart/service"
	"github.com/cicadacove/storefront/internal/checkout"
	"github.com/cicadacove/storefront/internal/domain"
	"github.com/cicadacove/storefront/internal/repository"
	"github.com/cicadacove/storefront/internal/webhook"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type mockCatalog struct {
	mu         sync.RWMutex
	page       *catalog.ProductPage
	product    *domain.Product
	related    []*domain.Product
	slugs      []string
	err        error
	lastFilter repository.ProductFilter
	lastLimit  int
}

func (m *mockCatalog) List(_ context.Context, f repository.ProductFilter) (*catalog.ProductPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = f
	if m.err != nil {
		return nil, m.err
	}
	return m.page, nil
}

func (m *mockCatalog) GetBySlug(_ context.Context, slug string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.product == nil || m.product.Slug != slug {
		return nil, repository.ErrProductNotFound
	}
	return m.product, nil
}

func (m *mockCatalog) Related(_ context.Context, _ *domain.Product, limit int) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	return m.related, nil
}

func (m *mockCatalog) Slugs(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.slugs, nil
}

type mockCarts struct {
	mu        sync.RWMutex
	summary  *cartservice.CartSummary
	err      error
	sessions []string
	lastQty  int
	lastItem uuid.UUID
	lastCall string
	lastShip string
}

func (m *mockCarts) record(call, session string, id uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCall = call
	m.sessions = append(m.sessions, session)
	m.lastItem = id
	m.lastQty = qty
	return m.err
}

func (m *mockCarts) Summary(_ context.Context, session, method string) (*cartservice.CartSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, session)
	m.lastShip = method
	if m.err != nil {
		return nil, m.err
	}
	return m.summary, nil
}

func (m *mockCarts) AddItem(_ context.Context, session string, id uuid.UUID, qty int) (*domain.Cart, error) {
	return nil, m.record("add", session, id, qty)
}

func (m *mockCarts) UpdateQuantity(_ context.Context, session string, id uuid.UUID, qty int) (*domain.Cart, error) {
	return nil, m.record("update", session, id, qty)
}

func (m *mockCarts) RemoveItem(_ context.Context, session string, id uuid.UUID) (*domain.Cart, error) {
	return nil, m.record("remove", session, id, 0)
}

func (m *mockCarts) Clear(_ context.Context, session string) error {
	return m.record("clear", session, uuid.Nil, 0)
}

type mockCheckouts struct {
	mu       sync.RWMutex
	result   *checkout.Result
	err      error
	caller   checkout.Caller
	received *checkout.Request
}

func (m *mockCheckouts) Checkout(_ context.Context, caller checkout.Caller, req *checkout.Request) (*checkout.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caller = caller
	m.received = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockWebhooks struct {
	mu        sync.RWMutex
	result    *webhook.Result
	err       error
	payload   []byte
	signature string
}

func (m *mockWebhooks) Handle(_ context.Context, payload []byte, signature string) (*webhook.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = payload
	m.signature = signature
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockOrders struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.Order
	err    error
}

func (m *mockOrders) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (m *mockOrders) GetOrderByPaymentSession(_ context.Context, sessionID string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, o := range m.orders {
		if o.PaymentSessionID == sessionID {
			return o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

type mockSessions struct {
	tokens map[string]string
	err    error
}

func (m *mockSessions) Resolve(_ context.Context, token string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if id, ok := m.tokens[token]; ok {
		return id, nil
	}
	return "", auth.ErrInvalidToken
}

type mockProfiles struct {
	mu       sync.RWMutex
	profiles map[string]*domain.Profile
	err      error
}

func (m *mockProfiles) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return p, nil
}

type mockAdmin struct {
	mu      sync.RWMutex
	product *domain.Product
	err     error
	update  *catalog.ProductUpdate
	created *catalog.NewProduct
	deleted uuid.UUID
	filter  repository.ProductFilter
}

func (m *mockAdmin) List(_ context.Context, f repository.ProductFilter) (*catalog.ProductPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = f
	if m.err != nil {
		return nil, m.err
	}
	return &catalog.ProductPage{Products: []*domain.Product{m.product}, Total: 1, Limit: 12}, nil
}

func (m *mockAdmin) Get(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.product, nil
}

func (m *mockAdmin) Create(_ context.Context, n *catalog.NewProduct) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = n
	if m.err != nil {
		return nil, m.err
	}
	return m.product, nil
}

func (m *mockAdmin) Update(_ context.Context, _ uuid.UUID, u *catalog.ProductUpdate) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.update = u
	if m.err != nil {
		return nil, m.err
	}
	return m.product, nil
}

func (m *mockAdmin) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = id
	return m.err
}
