package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/PrasangJhawar/storefront/internal/cache"
	"github.com/PrasangJhawar/storefront/internal/domain"
	"github.com/PrasangJhawar/storefront/internal/repository"
)

type CartService struct {
	repo  repository.CartRepository
	cache cache.CartCache
	sfg   singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache) *CartService {
	return &CartService{
		repo:  repo,
		cache: cache,
	}
}

// GetCart is read-only; two calls with no mutation in between return the
// same lines.
func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID.String(), func() (interface{}, error) {

		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil // cart is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errGet != nil {
			return nil, errGet
		}

		// Fill the cache before handing the cart out. A deferred fill could
		// land after a concurrent mutation's invalidation and pin a stale
		// cart for a full TTL.
		if errSet := s.cache.Set(ctx, userID, cart); errSet != nil {
			log.Printf("cache set error: %v", errSet)
		}

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem reserves qty units from the product's stock into the customer's
// cart line; the whole reservation either happens or nothing changes.
func (s *CartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartLine, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var line *domain.CartLine
	err := withRetry(ctx, func() error {
		var errAdd error
		line, errAdd = s.repo.AddItem(ctx, userID, productID, quantity)
		return errAdd
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCache(userID)
	return line, nil
}

// UpdateQuantity sets the line to quantity, reserving or releasing the
// difference. Quantity 0 removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartLine, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	var line *domain.CartLine
	err := withRetry(ctx, func() error {
		var errUpdate error
		line, errUpdate = s.repo.UpdateItemQuantity(ctx, userID, productID, quantity)
		return errUpdate
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCache(userID)
	return line, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	err := withRetry(ctx, func() error {
		return s.repo.RemoveItem(ctx, userID, productID)
	})
	if err != nil {
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) invalidateCache(userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
