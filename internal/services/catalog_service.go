package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
)

// ErrProductNotFound indicates the catalogue has no product with the requested id.
var ErrProductNotFound = errors.New("catalog: product not found")

type CatalogServiceDeps struct {
	Products repositories.ProductRepository
}

type catalogService struct {
	products repositories.ProductRepository
}

func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	return &catalogService{products: deps.Products}, nil
}

func (s *catalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	return products, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, fmt.Errorf("%w: empty id", ErrProductNotFound)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if repositories.ErrorCode(err) == repositories.StoreErrorNotFound {
			return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return domain.Product{}, fmt.Errorf("catalog: get product: %w", err)
	}
	return product, nil
}
