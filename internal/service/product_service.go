package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/PrasangJhawar/storefront/internal/domain"
	"github.com/PrasangJhawar/storefront/internal/repository"
)

type ProductService struct {
	repo repository.ProductRepository
}

func NewProductService(repo repository.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

func (s *ProductService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *ProductService) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if p.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidInput)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return s.repo.CreateProduct(ctx, p)
}

func (s *ProductService) UpdateProduct(ctx context.Context, id uuid.UUID, patch domain.ProductPatch) (*domain.Product, error) {
	if patch.Name != nil && *patch.Name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	}
	if patch.Price != nil && *patch.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	return s.repo.UpdateProduct(ctx, id, patch)
}

func (s *ProductService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteProduct(ctx, id)
}

// AdjustStock is the admin path for restocks and write-offs. A write-off
// below zero fails the same way a customer over-reservation does.
func (s *ProductService) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: delta cannot be zero", ErrInvalidInput)
	}
	var p *domain.Product
	err := withRetry(ctx, func() error {
		var errAdjust error
		p, errAdjust = s.repo.AdjustStock(ctx, id, delta)
		return errAdjust
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
