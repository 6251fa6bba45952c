package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/PrasangJhawar/storefront/internal/cache"
	"github.com/PrasangJhawar/storefront/internal/domain"
	"github.com/PrasangJhawar/storefront/internal/repository"
)

// CheckoutService converts a cart into an order. The conversion is one
// repository transaction; this layer adds conflict retries and cache
// invalidation.
type CheckoutService struct {
	orders repository.OrderRepository
	cache  cache.CartCache
}

func NewCheckoutService(orders repository.OrderRepository, cache cache.CartCache) *CheckoutService {
	return &CheckoutService{
		orders: orders,
		cache:  cache,
	}
}

// Checkout ends in exactly one of two states: an order exists and the cart
// is empty, or nothing changed at all. Stock is untouched either way — the
// units were already taken from the ledger when they were reserved into the
// cart, and checkout only consumes that reservation.
func (s *CheckoutService) Checkout(ctx context.Context, userID uuid.UUID) (*domain.Order, error) {
	var order *domain.Order
	err := withRetry(ctx, func() error {
		var errCreate error
		order, errCreate = s.orders.CreateOrderFromCart(ctx, userID)
		return errCreate
	})
	if err != nil {
		return nil, err
	}

	log.Printf("order %s placed for user %s, total %.2f", order.ID, userID, order.TotalAmount)

	invalidateCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if e2 := s.cache.Delete(invalidateCtx, userID); e2 != nil {
		log.Printf("cache invalidate error: %v", e2)
	}

	return order, nil
}
