// Package memory keeps products and orders in process memory. Order transactions hold a
// store-wide lock and stage their writes until fn returns without error.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
)

// Store is an in-memory repositories.Store.
type Store struct {
	mu       sync.Mutex
	products map[string]domain.Product
	orders   map[string]domain.Order
}

var _ repositories.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
	}
}

func (s *Store) Products() repositories.ProductRepository { return productRepository{store: s} }

func (s *Store) Orders() repositories.OrderRepository { return orderRepository{store: s} }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }

// RunOrderTx implements repositories.OrderUnitOfWork.
func (s *Store) RunOrderTx(ctx context.Context, fn func(ctx context.Context, tx repositories.OrderTx) error) error {
	if err := ctx.Err(); err != nil {
		return repositories.NewStoreError("memory.tx", repositories.StoreErrorUnavailable, "transaction not started", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &orderTx{
		store:      s,
		decrements: make(map[string]int),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for id, amount := range tx.decrements {
		product := s.products[id]
		product.Quantity -= amount
		s.products[id] = product
	}
	for _, order := range tx.orders {
		s.orders[order.ID] = order
	}
	return nil
}

type orderTx struct {
	store      *Store
	decrements map[string]int
	orders     []domain.Order
}

func (tx *orderTx) GetProductForUpdate(_ context.Context, productID string) (domain.Product, error) {
	product, ok := tx.store.products[productID]
	if !ok {
		return domain.Product{}, repositories.NewStoreError("memory.products.get_for_update", repositories.StoreErrorNotFound, "product not found", nil)
	}
	product.Quantity -= tx.decrements[productID]
	return cloneProduct(product), nil
}

func (tx *orderTx) DecrementProductQuantity(_ context.Context, productID string, amount int) error {
	const op = "memory.products.decrement"
	product, ok := tx.store.products[productID]
	if !ok {
		return repositories.NewStoreError(op, repositories.StoreErrorNotFound, "product not found", nil)
	}
	if amount <= 0 || product.Quantity-tx.decrements[productID] < amount {
		return repositories.NewStoreError(op, repositories.StoreErrorInsufficientStock, "quantity below requested amount", nil)
	}
	tx.decrements[productID] += amount
	return nil
}

func (tx *orderTx) InsertOrder(_ context.Context, order domain.Order) error {
	const op = "memory.orders.insert"
	if strings.TrimSpace(order.ID) == "" {
		return repositories.NewStoreError(op, repositories.StoreErrorConflict, "order id is required", nil)
	}
	if _, exists := tx.store.orders[order.ID]; exists {
		return repositories.NewStoreError(op, repositories.StoreErrorConflict, "order already exists", nil)
	}
	for _, staged := range tx.orders {
		if staged.ID == order.ID {
			return repositories.NewStoreError(op, repositories.StoreErrorConflict, "order already exists", nil)
		}
	}
	if _, ok := tx.store.products[order.ProductID]; !ok {
		return repositories.NewStoreError(op, repositories.StoreErrorConflict, "order references unknown product", nil)
	}
	tx.orders = append(tx.orders, order)
	return nil
}

type productRepository struct {
	store *Store
}

func (r productRepository) FindByID(_ context.Context, productID string) (domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	product, ok := r.store.products[productID]
	if !ok {
		return domain.Product{}, repositories.NewStoreError("memory.products.get", repositories.StoreErrorNotFound, "product not found", nil)
	}
	return cloneProduct(product), nil
}

func (r productRepository) List(context.Context) ([]domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]domain.Product, 0, len(r.store.products))
	for _, product := range r.store.products {
		out = append(out, cloneProduct(product))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r productRepository) Upsert(_ context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return repositories.NewStoreError("memory.products.upsert", repositories.StoreErrorConflict, "product id is required", nil)
	}
	if product.Quantity < 0 {
		return repositories.NewStoreError("memory.products.upsert", repositories.StoreErrorConflict, "quantity must not be negative", nil)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.products[product.ID] = cloneProduct(product)
	return nil
}

type orderRepository struct {
	store *Store
}

func (r orderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	order, ok := r.store.orders[orderID]
	if !ok {
		return domain.Order{}, repositories.NewStoreError("memory.orders.get", repositories.StoreErrorNotFound, "order not found", nil)
	}
	return order, nil
}

func cloneProduct(product domain.Product) domain.Product {
	if product.Description != nil {
		description := *product.Description
		product.Description = &description
	}
	return product
}
