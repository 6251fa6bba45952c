package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PrasangJhawar/storefront/internal/domain"
)

// Memory implements every repository interface behind a single mutex, so each
// operation is atomic the way a database transaction is. It backs the service
// unit tests and local development without Postgres.
type Memory struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
	carts    map[uuid.UUID]map[uuid.UUID]*domain.CartLine // userID -> productID -> line
	orders   map[uuid.UUID]*domain.Order
	users    map[uuid.UUID]*domain.User
	events   []*OutboxEvent
	nextID   int64
}

func NewMemory() *Memory {
	return &Memory{
		products: make(map[uuid.UUID]*domain.Product),
		carts:    make(map[uuid.UUID]map[uuid.UUID]*domain.CartLine),
		orders:   make(map[uuid.UUID]*domain.Order),
		users:    make(map[uuid.UUID]*domain.User),
		nextID:   1,
	}
}

func (m *Memory) ListProducts(_ context.Context) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	products := make([]*domain.Product, 0, len(m.products))
	for _, p := range m.products {
		cp := *p
		products = append(products, &cp)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

func (m *Memory) GetProduct(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.products[id]
	if !exists {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) CreateProduct(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *Memory) UpdateProduct(_ context.Context, id uuid.UUID, patch domain.ProductPatch) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.products[id]
	if !exists {
		return nil, ErrProductNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.ImageURL != nil {
		p.ImageURL = *patch.ImageURL
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) DeleteProduct(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.products[id]; !exists {
		return ErrProductNotFound
	}
	for _, lines := range m.carts {
		if _, reserved := lines[id]; reserved {
			return ErrProductInUse
		}
	}
	delete(m.products, id)
	return nil
}

func (m *Memory) AdjustStock(_ context.Context, id uuid.UUID, delta int) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.products[id]
	if !exists {
		return nil, ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return nil, ErrInsufficientStock
	}
	p.Stock += delta
	cp := *p
	return &cp, nil
}

func (m *Memory) GetCart(_ context.Context, userID uuid.UUID) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart := &domain.Cart{UserID: userID, UpdatedAt: time.Now()}
	for _, line := range m.carts[userID] {
		cp := *line
		if p, exists := m.products[line.ProductID]; exists {
			cp.Product = *p
		}
		cart.Lines = append(cart.Lines, cp)
	}
	sort.Slice(cart.Lines, func(i, j int) bool {
		return cart.Lines[i].AddedAt.Before(cart.Lines[j].AddedAt)
	})
	return cart, nil
}

func (m *Memory) AddItem(_ context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.products[productID]
	if !exists {
		return nil, ErrProductNotFound
	}
	if p.Stock < quantity {
		return nil, ErrInsufficientStock
	}
	p.Stock -= quantity

	lines := m.carts[userID]
	if lines == nil {
		lines = make(map[uuid.UUID]*domain.CartLine)
		m.carts[userID] = lines
	}
	line, exists := lines[productID]
	if exists {
		line.Quantity += quantity
	} else {
		line = &domain.CartLine{ProductID: productID, Quantity: quantity, AddedAt: time.Now()}
		lines[productID] = line
	}

	cp := *line
	cp.Product = *p
	return &cp, nil
}

func (m *Memory) UpdateItemQuantity(_ context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	line, exists := m.carts[userID][productID]
	if !exists {
		return nil, ErrCartLineNotFound
	}
	p, exists := m.products[productID]
	if !exists {
		return nil, ErrProductNotFound
	}

	diff := quantity - line.Quantity
	if diff > 0 && p.Stock < diff {
		return nil, ErrInsufficientStock
	}
	p.Stock -= diff

	if quantity == 0 {
		delete(m.carts[userID], productID)
		return nil, nil
	}
	line.Quantity = quantity

	cp := *line
	cp.Product = *p
	return &cp, nil
}

func (m *Memory) RemoveItem(_ context.Context, userID, productID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	line, exists := m.carts[userID][productID]
	if !exists {
		return ErrCartLineNotFound
	}
	if p, exists := m.products[productID]; exists {
		p.Stock += line.Quantity
	}
	delete(m.carts[userID], productID)
	return nil
}

func (m *Memory) CreateOrderFromCart(_ context.Context, userID uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := m.carts[userID]
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	// price snapshot only; the reservation already removed the stock
	productIDs := make([]uuid.UUID, 0, len(lines))
	for id := range lines {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool {
		return productIDs[i].String() < productIDs[j].String()
	})

	order := &domain.Order{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    domain.OrderStatusProcessing,
		CreatedAt: time.Now(),
	}
	for _, productID := range productIDs {
		p, exists := m.products[productID]
		if !exists {
			return nil, ErrProductVanished
		}
		line := lines[productID]
		order.Items = append(order.Items, domain.OrderItem{
			ID:          uuid.New(),
			ProductID:   productID,
			ProductName: p.Name,
			Quantity:    line.Quantity,
			Price:       p.Price,
		})
		order.TotalAmount += float64(line.Quantity) * p.Price
	}

	m.orders[order.ID] = order
	delete(m.carts, userID)

	payload, err := json.Marshal(orderPlacedPayload{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Items:       order.Items,
		TotalAmount: order.TotalAmount,
		PlacedAt:    order.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	m.events = append(m.events, &OutboxEvent{
		ID:        m.nextID,
		OrderID:   order.ID,
		EventType: "OrderPlaced",
		Payload:   payload,
		CreatedAt: order.CreatedAt,
	})
	m.nextID++

	cp := *order
	cp.Items = append([]domain.OrderItem(nil), order.Items...)
	return &cp, nil
}

func (m *Memory) ListOrdersByUser(_ context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var orders []*domain.Order
	for _, order := range m.orders {
		if order.UserID != userID {
			continue
		}
		cp := *order
		cp.Items = nil
		orders = append(orders, &cp)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (m *Memory) GetOrder(_ context.Context, orderID, userID uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, exists := m.orders[orderID]
	if !exists || order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	cp := *order
	cp.Items = append([]domain.OrderItem(nil), order.Items...)
	return &cp, nil
}

func (m *Memory) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *Memory) GetUserByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, exists := m.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, exists := m.users[userID]
	if !exists {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *Memory) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]*OutboxEvent, 0, limit)
	for _, ev := range m.events {
		if len(events) == limit {
			break
		}
		cp := *ev
		events = append(events, &cp)
	}
	return events, nil
}

func (m *Memory) MarkEventProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, ev := range m.events {
		if ev.ID == id {
			m.events = append(m.events[:i], m.events[i+1:]...)
			return nil
		}
	}
	return nil
}
