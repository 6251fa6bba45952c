package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PrasangJhawar/storefront/internal/domain"
)

func seedProduct(t *testing.T, m *Memory, name string, price float64, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		ID:        uuid.New(),
		Name:      name,
		Price:     price,
		Stock:     stock,
		CreatedAt: time.Now(),
	}
	require.NoError(t, m.CreateProduct(context.Background(), p))
	return p
}

func TestMemory_AddItem_ReservesStock(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "widget", 9.99, 10)
	userID := uuid.New()

	line, err := m.AddItem(ctx, userID, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, 7, line.Product.Stock)

	got, err := m.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)
}

func TestMemory_AddItem_InsufficientStock(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "widget", 9.99, 2)
	userID := uuid.New()

	_, err := m.AddItem(ctx, userID, p.ID, 3)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// Nothing moved: stock unchanged and the cart stays empty
	got, err := m.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)

	cart, err := m.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestMemory_AddItem_ConcurrentAddsRaceForLastStock(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "widget", 10.00, 3)

	users := []uuid.UUID{uuid.New(), uuid.New()}
	var wg sync.WaitGroup
	results := make(chan error, len(users))
	for _, userID := range users {
		userID := userID
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.AddItem(ctx, userID, p.ID, 3)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	// Exactly one add wins the last units; the other is rejected whole
	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientStock)
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	got, err := m.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestMemory_AddItem_MergesExistingLine(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "widget", 9.99, 10)
	userID := uuid.New()

	_, err := m.AddItem(ctx, userID, p.ID, 2)
	require.NoError(t, err)
	line, err := m.AddItem(ctx, userID, p.ID, 3)
	require.NoError(t, err)

	assert.Equal(t, 5, line.Quantity)

	cart, err := m.GetCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 5, cart.Lines[0].Quantity)
}

func TestMemory_UpdateItemQuantity_ReservesAndReleasesTheDifference(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "widget", 9.99, 10)
	userID := uuid.New()

	_, err := m.AddItem(ctx, userID, p.ID, 4)
	require.NoError(t, err)

	// Grow the line: 2 more units leave the shelf
	line, err := m.UpdateItemQuantity(ctx, userID, p.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, line.Quantity)
	assert.Equal(t, 4, line.Product.Stock)

	// Shrink the line: 5 units go back
	line, err = m.UpdateItemQuantity(ctx, userID, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, 9, line.Product.Stock)
}

func TestMemory_UpdateItemQuantity_ZeroRemovesLine(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "widget", 9.99, 10)
	userID := uuid.New()

	_, err := m.AddItem(ctx, userID, p.ID, 4)
	require.NoError(t, err)

	line, err := m.UpdateItemQuantity(ctx, userID, p.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, line)

	cart, err := m.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	got, err := m.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)
}

func TestMemory_UpdateItemQuantity_MissingLine(t *testing.T) {
	m := NewMemory()
	p := seedProduct(t, m, "widget", 9.99, 10)

	_, err := m.UpdateItemQuantity(context.Background(), uuid.New(), p.ID, 2)
	assert.ErrorIs(t, err, ErrCartLineNotFound)
}

func TestMemory_RemoveItem_ReleasesReservation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "widget", 9.99, 10)
	userID := uuid.New()

	_, err := m.AddItem(ctx, userID, p.ID, 4)
	require.NoError(t, err)

	require.NoError(t, m.RemoveItem(ctx, userID, p.ID))

	got, err := m.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)
}

func TestMemory_CartMutations_ConserveTotalUnits(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	const initial = 20
	p := seedProduct(t, m, "widget", 9.99, initial)
	userID := uuid.New()

	total := func() int {
		got, err := m.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		cart, err := m.GetCart(ctx, userID)
		require.NoError(t, err)
		sum := got.Stock
		for _, line := range cart.Lines {
			sum += line.Quantity
		}
		return sum
	}

	_, err := m.AddItem(ctx, userID, p.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, initial, total())

	_, err = m.UpdateItemQuantity(ctx, userID, p.ID, 12)
	require.NoError(t, err)
	assert.Equal(t, initial, total())

	_, err = m.UpdateItemQuantity(ctx, userID, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, initial, total())

	require.NoError(t, m.RemoveItem(ctx, userID, p.ID))
	assert.Equal(t, initial, total())
}

func TestMemory_DeleteProduct_RejectedWhileReserved(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "widget", 9.99, 10)
	userID := uuid.New()

	_, err := m.AddItem(ctx, userID, p.ID, 1)
	require.NoError(t, err)

	err = m.DeleteProduct(ctx, p.ID)
	assert.ErrorIs(t, err, ErrProductInUse)

	require.NoError(t, m.RemoveItem(ctx, userID, p.ID))
	assert.NoError(t, m.DeleteProduct(ctx, p.ID))
}

func TestMemory_AdjustStock(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "widget", 9.99, 5)

	got, err := m.AdjustStock(ctx, p.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Stock)

	got, err = m.AdjustStock(ctx, p.ID, -12)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)

	_, err = m.AdjustStock(ctx, p.ID, -1)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestMemory_CreateOrderFromCart_Success(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p1 := seedProduct(t, m, "widget", 10.00, 10)
	p2 := seedProduct(t, m, "gadget", 2.50, 10)
	userID := uuid.New()

	_, err := m.AddItem(ctx, userID, p1.ID, 2)
	require.NoError(t, err)
	_, err = m.AddItem(ctx, userID, p2.ID, 4)
	require.NoError(t, err)

	order, err := m.CreateOrderFromCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, order.UserID)
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)
	assert.InDelta(t, 30.00, order.TotalAmount, 0.001)
	assert.Len(t, order.Items, 2)

	// The cart is gone
	cart, err := m.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	// Checkout consumes the reservation; it does not touch stock again
	got, err := m.GetProduct(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Stock)

	// An outbox event was written in the same step
	events, err := m.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, order.ID, events[0].OrderID)
	assert.Equal(t, "OrderPlaced", events[0].EventType)
}

func TestMemory_CreateOrderFromCart_EmptyCart(t *testing.T) {
	m := NewMemory()

	_, err := m.CreateOrderFromCart(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestMemory_CreateOrderFromCart_ProductVanished(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "widget", 10.00, 10)
	userID := uuid.New()

	_, err := m.AddItem(ctx, userID, p.ID, 2)
	require.NoError(t, err)

	// Simulate the catalog row disappearing out from under the cart.
	m.mu.Lock()
	delete(m.products, p.ID)
	m.mu.Unlock()

	_, err = m.CreateOrderFromCart(ctx, userID)
	assert.ErrorIs(t, err, ErrProductVanished)

	// The failed checkout left the cart alone
	cart, err := m.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 1)
}

func TestMemory_CreateOrderFromCart_PriceSnapshotIsImmutable(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "widget", 10.00, 10)
	userID := uuid.New()

	_, err := m.AddItem(ctx, userID, p.ID, 1)
	require.NoError(t, err)

	order, err := m.CreateOrderFromCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.InDelta(t, 10.00, order.Items[0].Price, 0.001)

	// A later price change must not rewrite history
	newPrice := 99.99
	_, err = m.UpdateProduct(ctx, p.ID, domain.ProductPatch{Price: &newPrice})
	require.NoError(t, err)

	got, err := m.GetOrder(ctx, order.ID, userID)
	require.NoError(t, err)
	assert.InDelta(t, 10.00, got.Items[0].Price, 0.001)
	assert.InDelta(t, 10.00, got.TotalAmount, 0.001)
}

func TestMemory_CreateOrderFromCart_ConcurrentCheckouts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "widget", 10.00, 10)
	userID := uuid.New()

	_, err := m.AddItem(ctx, userID, p.ID, 2)
	require.NoError(t, err)

	const attempts = 4
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CreateOrderFromCart(ctx, userID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, emptied int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			assert.ErrorIs(t, err, ErrEmptyCart)
			emptied++
		}
	}

	// Exactly one checkout wins; the rest observe an empty cart
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, emptied)

	orders, err := m.ListOrdersByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestMemory_ListOrdersByUser_NewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "widget", 10.00, 10)
	userID := uuid.New()

	var orderIDs []uuid.UUID
	for i := 0; i < 3; i++ {
		_, err := m.AddItem(ctx, userID, p.ID, 1)
		require.NoError(t, err)
		order, err := m.CreateOrderFromCart(ctx, userID)
		require.NoError(t, err)
		orderIDs = append(orderIDs, order.ID)
		time.Sleep(time.Millisecond)
	}

	orders, err := m.ListOrdersByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, orderIDs[2], orders[0].ID)
	assert.Equal(t, orderIDs[0], orders[2].ID)

	// Summaries do not carry item rows
	assert.Nil(t, orders[0].Items)
}

func TestMemory_GetOrder_ScopedToOwner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "widget", 10.00, 10)
	userID := uuid.New()

	_, err := m.AddItem(ctx, userID, p.ID, 1)
	require.NoError(t, err)
	order, err := m.CreateOrderFromCart(ctx, userID)
	require.NoError(t, err)

	_, err = m.GetOrder(ctx, order.ID, uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)

	got, err := m.GetOrder(ctx, order.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestMemory_Outbox_MarkProcessed(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "widget", 10.00, 10)
	userID := uuid.New()

	_, err := m.AddItem(ctx, userID, p.ID, 1)
	require.NoError(t, err)
	_, err = m.CreateOrderFromCart(ctx, userID)
	require.NoError(t, err)

	events, err := m.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, m.MarkEventProcessed(ctx, events[0].ID))

	events, err = m.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemory_Users(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	u := &domain.User{
		ID:           uuid.New(),
		Name:         "Ada",
		Email:        "ada@example.com",
		Role:         domain.RoleUser,
		PasswordHash: "hash",
	}
	require.NoError(t, m.CreateUser(ctx, u))

	dup := &domain.User{ID: uuid.New(), Email: "ada@example.com"}
	assert.ErrorIs(t, m.CreateUser(ctx, dup), ErrEmailTaken)

	got, err := m.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, m.UpdatePassword(ctx, u.ID, "newhash"))
	got, err = m.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", got.PasswordHash)

	_, err = m.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
