package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/PrasangJhawar/storefront/internal/cache"
	"github.com/PrasangJhawar/storefront/internal/domain"
	"github.com/PrasangJhawar/storefront/internal/repository"
)

// mockCache implements cache.CartCache for testing
type mockCache struct {
	m     sync.RWMutex
	carts map[uuid.UUID]*domain.Cart
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[uuid.UUID]*domain.Cart)}
}

func (m *mockCache) Get(_ context.Context, userID uuid.UUID) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, exists := m.carts[userID]
	if !exists {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (m *mockCache) Set(_ context.Context, userID uuid.UUID, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.carts[userID] = cart
	return nil
}

func (m *mockCache) Delete(_ context.Context, userID uuid.UUID) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.carts, userID)
	return nil
}

func (m *mockCache) getCart(userID uuid.UUID) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[userID]
}

// conflictingCartRepo fails the first N mutations with ErrTxConflict before
// delegating, to exercise the retry loop.
type conflictingCartRepo struct {
	repository.CartRepository
	m         sync.Mutex
	conflicts int
	calls     int
}

func (c *conflictingCartRepo) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartLine, error) {
	c.m.Lock()
	c.calls++
	fail := c.calls <= c.conflicts
	c.m.Unlock()
	if fail {
		return nil, fmt.Errorf("%w: lock timeout", repository.ErrTxConflict)
	}
	return c.CartRepository.AddItem(ctx, userID, productID, quantity)
}

// conflictingOrderRepo does the same for checkout.
type conflictingOrderRepo struct {
	repository.OrderRepository
	m         sync.Mutex
	conflicts int
	calls     int
}

func (c *conflictingOrderRepo) CreateOrderFromCart(ctx context.Context, userID uuid.UUID) (*domain.Order, error) {
	c.m.Lock()
	c.calls++
	fail := c.calls <= c.conflicts
	c.m.Unlock()
	if fail {
		return nil, fmt.Errorf("%w: deadlock victim", repository.ErrTxConflict)
	}
	return c.OrderRepository.CreateOrderFromCart(ctx, userID)
}

// mockMailer captures the last reset token instead of sending mail
type mockMailer struct {
	m         sync.Mutex
	lastEmail string
	lastToken string
	err       error
}

func (m *mockMailer) SendPasswordReset(_ context.Context, toEmail, resetToken string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.lastEmail = toEmail
	m.lastToken = resetToken
	return nil
}

func (m *mockMailer) sent() (string, string) {
	m.m.Lock()
	defer m.m.Unlock()
	return m.lastEmail, m.lastToken
}

func seedTestProduct(m *repository.Memory, name string, price float64, stock int) *domain.Product {
	p := &domain.Product{
		ID:    uuid.New(),
		Name:  name,
		Price: price,
		Stock: stock,
	}
	_ = m.CreateProduct(context.Background(), p)
	return p
}
