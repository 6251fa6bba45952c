package cache

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/PrasangJhawar/storefront/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	Set(ctx context.Context, userID uuid.UUID, cart *domain.Cart) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

var ErrCacheMiss = errors.New("cache miss")
