package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/PrasangJhawar/storefront/internal/domain"
	"github.com/PrasangJhawar/storefront/internal/repository"
)

type OrderService struct {
	repo repository.OrderRepository
}

func NewOrderService(repo repository.OrderRepository) *OrderService {
	return &OrderService{repo: repo}
}

// ListOrders returns the customer's order summaries, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID)
}

// GetOrder returns an order with its items; orders owned by other customers
// are indistinguishable from absent ones.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*domain.Order, error) {
	return s.repo.GetOrder(ctx, orderID, userID)
}
