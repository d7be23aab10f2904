package repositories

import (
	"context"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
)

// Store bundles every repository a storage backend must provide.
type Store interface {
	Products() ProductRepository
	Orders() OrderRepository
	OrderUnitOfWork
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ProductRepository reads the catalogue. Upsert exists for seeding and never runs inside an
// order transaction; stock only changes through OrderTx.DecrementProductQuantity.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) error
}

// OrderRepository reads committed orders.
type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
}

// OrderTx is the capability surface available inside one order transaction.
type OrderTx interface {
	// GetProductForUpdate reads the product and, where the backend supports it, locks it
	// until the transaction ends. Returns a StoreError with code StoreErrorNotFound when absent.
	GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error)
	// InsertOrder writes a new order. Existing IDs yield StoreErrorConflict.
	InsertOrder(ctx context.Context, order domain.Order) error
	// DecrementProductQuantity subtracts amount only while quantity >= amount. Otherwise it
	// returns StoreErrorInsufficientStock and leaves the row untouched.
	DecrementProductQuantity(ctx context.Context, productID string, amount int) error
}

// OrderUnitOfWork runs fn atomically: every OrderTx write commits together or not at all.
type OrderUnitOfWork interface {
	RunOrderTx(ctx context.Context, fn func(ctx context.Context, tx OrderTx) error) error
}
