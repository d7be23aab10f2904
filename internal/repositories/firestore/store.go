// Package firestore stores products and orders as Firestore documents. Order transactions
// use Firestore's optimistic transactions, which abort and retry on concurrent writes to the
// same product document.
package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	pfirestore "github.com/Shelia5K/FAPI-order-service/internal/platform/firestore"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
)

const (
	productsCollection = "products"
	ordersCollection   = "orders"
)

type productDocument struct {
	Title       string    `firestore:"title"`
	Description *string   `firestore:"description"`
	UnitPrice   float64   `firestore:"unitPrice"`
	Quantity    int64     `firestore:"quantity"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

type customerDocument struct {
	Name       string `firestore:"name"`
	Email      string `firestore:"email"`
	Phone      string `firestore:"phone"`
	Street     string `firestore:"street"`
	City       string `firestore:"city"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type orderDocument struct {
	ProductID    string           `firestore:"productId"`
	ProductTitle string           `firestore:"productTitle"`
	Customer     customerDocument `firestore:"customer"`
	Quantity     int64            `firestore:"quantity"`
	UnitPrice    float64          `firestore:"unitPrice"`
	TaxRate      float64          `firestore:"taxRate"`
	Subtotal     float64          `firestore:"subtotal"`
	TaxAmount    float64          `firestore:"taxAmount"`
	Total        float64          `firestore:"total"`
	Currency     string           `firestore:"currency"`
	CreatedAt    time.Time        `firestore:"createdAt"`
}

// Store is a Firestore backed repositories.Store.
type Store struct {
	provider *pfirestore.Provider
	products *pfirestore.Collection[productDocument]
	orders   *pfirestore.Collection[orderDocument]
	txOpts   []pfirestore.TxOption
}

var _ repositories.Store = (*Store)(nil)

// New binds the store to provider. txOpts tune attempts and timeout of order transactions.
func New(provider *pfirestore.Provider, txOpts ...pfirestore.TxOption) (*Store, error) {
	if provider == nil {
		return nil, errors.New("firestore store requires provider")
	}
	return &Store{
		provider: provider,
		products: pfirestore.NewCollection[productDocument](provider, productsCollection),
		orders:   pfirestore.NewCollection[orderDocument](provider, ordersCollection),
		txOpts:   txOpts,
	}, nil
}

func (s *Store) Products() repositories.ProductRepository { return productRepository{store: s} }

func (s *Store) Orders() repositories.OrderRepository { return orderRepository{store: s} }

func (s *Store) Ping(ctx context.Context) error {
	return toStoreError("firestore.ping", s.provider.Ping(ctx))
}

func (s *Store) Close(ctx context.Context) error {
	return s.provider.Close(ctx)
}

// RunOrderTx implements repositories.OrderUnitOfWork. fn may run more than once when
// Firestore retries an aborted transaction; each attempt gets a fresh OrderTx.
func (s *Store) RunOrderTx(ctx context.Context, fn func(ctx context.Context, tx repositories.OrderTx) error) error {
	err := s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &orderTx{store: s, tx: tx, reads: make(map[string]productDocument)})
	}, s.txOpts...)
	return toStoreError("firestore.tx", err)
}

type orderTx struct {
	store *Store
	tx    *firestore.Transaction
	reads map[string]productDocument
}

func (t *orderTx) GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := t.readProduct(ctx, "firestore.products.get_for_update", productID)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.toDomain(productID), nil
}

// DecrementProductQuantity reuses the snapshot taken by GetProductForUpdate because
// Firestore forbids reads after the first write in a transaction.
func (t *orderTx) DecrementProductQuantity(ctx context.Context, productID string, amount int) error {
	const op = "firestore.products.decrement"
	doc, err := t.readProduct(ctx, op, productID)
	if err != nil {
		return err
	}
	if amount <= 0 || doc.Quantity < int64(amount) {
		return repositories.NewStoreError(op, repositories.StoreErrorInsufficientStock, "quantity below requested amount", nil)
	}
	ref, err := t.store.products.Doc(ctx, productID)
	if err != nil {
		return toStoreError(op, err)
	}
	remaining := doc.Quantity - int64(amount)
	if err := t.tx.Update(ref, []firestore.Update{{Path: "quantity", Value: remaining}}); err != nil {
		return toStoreError(op, pfirestore.WrapError(op, err))
	}
	doc.Quantity = remaining
	t.reads[productID] = doc
	return nil
}

// InsertOrder queues a create; an existing ID fails the commit with AlreadyExists.
func (t *orderTx) InsertOrder(ctx context.Context, order domain.Order) error {
	const op = "firestore.orders.insert"
	if strings.TrimSpace(order.ID) == "" {
		return repositories.NewStoreError(op, repositories.StoreErrorConflict, "order id is required", nil)
	}
	ref, err := t.store.orders.Doc(ctx, order.ID)
	if err != nil {
		return toStoreError(op, err)
	}
	if err := t.tx.Create(ref, newOrderDocument(order)); err != nil {
		return toStoreError(op, pfirestore.WrapError(op, err))
	}
	return nil
}

func (t *orderTx) readProduct(ctx context.Context, op, productID string) (productDocument, error) {
	if doc, ok := t.reads[productID]; ok {
		return doc, nil
	}
	ref, err := t.store.products.Doc(ctx, productID)
	if err != nil {
		return productDocument{}, toStoreError(op, err)
	}
	snap, err := t.tx.Get(ref)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return productDocument{}, repositories.NewStoreError(op, repositories.StoreErrorNotFound, "product not found", err)
		}
		return productDocument{}, toStoreError(op, pfirestore.WrapError(op, err))
	}
	doc, err := pfirestore.Decode[productDocument](snap)
	if err != nil {
		return productDocument{}, repositories.NewStoreError(op, repositories.StoreErrorUnknown, "decode product", err)
	}
	t.reads[productID] = doc
	return doc, nil
}

type productRepository struct {
	store *Store
}

func (r productRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.store.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, toStoreError("firestore.products.get", err)
	}
	return doc.toDomain(productID), nil
}

func (r productRepository) List(ctx context.Context) ([]domain.Product, error) {
	docs, err := r.store.products.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, toStoreError("firestore.products.list", err)
	}
	out := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data.toDomain(doc.ID))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r productRepository) Upsert(ctx context.Context, product domain.Product) error {
	const op = "firestore.products.upsert"
	if strings.TrimSpace(product.ID) == "" {
		return repositories.NewStoreError(op, repositories.StoreErrorConflict, "product id is required", nil)
	}
	if product.Quantity < 0 {
		return repositories.NewStoreError(op, repositories.StoreErrorConflict, "quantity must not be negative", nil)
	}
	createdAt := product.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	doc := productDocument{
		Title:       product.Title,
		Description: product.Description,
		UnitPrice:   product.UnitPrice,
		Quantity:    int64(product.Quantity),
		CreatedAt:   createdAt.UTC(),
	}
	return toStoreError(op, r.store.products.Set(ctx, product.ID, doc))
}

type orderRepository struct {
	store *Store
}

func (r orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.store.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, toStoreError("firestore.orders.get", err)
	}
	return doc.toDomain(orderID), nil
}

func (d productDocument) toDomain(id string) domain.Product {
	product := domain.Product{
		ID:        id,
		Title:     d.Title,
		UnitPrice: d.UnitPrice,
		Quantity:  int(d.Quantity),
		CreatedAt: d.CreatedAt,
	}
	if d.Description != nil {
		description := *d.Description
		product.Description = &description
	}
	return product
}

func newOrderDocument(o domain.Order) orderDocument {
	return orderDocument{
		ProductID:    o.ProductID,
		ProductTitle: o.ProductTitle,
		Customer:     customerDocument(o.Customer),
		Quantity:     int64(o.Quantity),
		UnitPrice:    o.UnitPrice,
		TaxRate:      o.TaxRate,
		Subtotal:     o.Subtotal,
		TaxAmount:    o.TaxAmount,
		Total:        o.Total,
		Currency:     o.Currency,
		CreatedAt:    o.CreatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	return domain.Order{
		ID:           id,
		ProductID:    d.ProductID,
		ProductTitle: d.ProductTitle,
		Customer:     domain.Customer(d.Customer),
		Quantity:     int(d.Quantity),
		UnitPrice:    d.UnitPrice,
		TaxRate:      d.TaxRate,
		Subtotal:     d.Subtotal,
		TaxAmount:    d.TaxAmount,
		Total:        d.Total,
		Currency:     d.Currency,
		CreatedAt:    d.CreatedAt,
	}
}

// toStoreError converts Firestore classification into repository error codes. Errors that
// already carry a StoreError pass through.
func toStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *repositories.StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return repositories.NewStoreError(op, repositories.StoreErrorNotFound, "document not found", err)
		case repoErr.IsConflict():
			return repositories.NewStoreError(op, repositories.StoreErrorConflict, "conflicting write", err)
		case repoErr.IsUnavailable():
			return repositories.NewStoreError(op, repositories.StoreErrorUnavailable, "firestore unavailable", err)
		}
	}
	return repositories.NewStoreError(op, repositories.StoreErrorUnknown, "firestore error", err)
}
