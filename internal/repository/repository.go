package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/PrasangJhawar/storefront/internal/domain"
)

// Common errors returned by repositories
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrProductInUse      = errors.New("product is still referenced by cart lines")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCartLineNotFound  = errors.New("cart line not found")
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrProductVanished   = errors.New("product disappeared before checkout completed")
	ErrOrderNotFound     = errors.New("order not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already registered")

	// ErrTxConflict covers bounded lock waits that timed out, deadlock
	// victims and serialization failures. It is the only error a caller
	// may retry automatically.
	ErrTxConflict = errors.New("transaction conflict, retry")
)

// ProductRepository is the catalog plus the stock ledger. AdjustStock is the
// only write path to stock outside the cart/checkout transactions and keeps
// the same non-negativity guarantee.
type ProductRepository interface {
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, id uuid.UUID, patch domain.ProductPatch) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error)
}

// CartRepository owns the cart lines and, inside the same transaction, the
// matching stock movement: every unit held by a line has already been taken
// from the product's stock exactly once.
type CartRepository interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartLine, error)
	// UpdateItemQuantity reserves or releases the difference to the current
	// quantity. Quantity 0 deletes the line and returns a nil line.
	UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartLine, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
}

// OrderRepository is append-only; CreateOrderFromCart is the only writer and
// performs the whole checkout as one transaction.
type OrderRepository interface {
	CreateOrderFromCart(ctx context.Context, userID uuid.UUID) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*domain.Order, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// OutboxEvent is a row written atomically with the order at checkout and
// published to Kafka by the poller.
type OutboxEvent struct {
	ID        int64
	OrderID   uuid.UUID
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventProcessed(ctx context.Context, id int64) error
}
