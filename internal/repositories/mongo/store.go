// Package mongo stores products and orders in MongoDB. Order transactions need a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
)

const (
	productsCollection = "products"
	ordersCollection   = "orders"
	connectTimeout     = 10 * time.Second
)

type productDocument struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Description *string   `bson:"description,omitempty"`
	UnitPrice   float64   `bson:"unitPrice"`
	Quantity    int       `bson:"quantity"`
	CreatedAt   time.Time `bson:"createdAt"`
}

type customerDocument struct {
	Name       string `bson:"name"`
	Email      string `bson:"email"`
	Phone      string `bson:"phone"`
	Street     string `bson:"street"`
	City       string `bson:"city"`
	PostalCode string `bson:"postalCode"`
	Country    string `bson:"country"`
}

type orderDocument struct {
	ID           string           `bson:"_id"`
	ProductID    string           `bson:"productId"`
	ProductTitle string           `bson:"productTitle"`
	Customer     customerDocument `bson:"customer"`
	Quantity     int              `bson:"quantity"`
	UnitPrice    float64          `bson:"unitPrice"`
	TaxRate      float64          `bson:"taxRate"`
	Subtotal     float64          `bson:"subtotal"`
	TaxAmount    float64          `bson:"taxAmount"`
	Total        float64          `bson:"total"`
	Currency     string           `bson:"currency"`
	CreatedAt    time.Time        `bson:"createdAt"`
}

// Store is a MongoDB backed repositories.Store.
type Store struct {
	client     *mongo.Client
	products   *mongo.Collection
	orders     *mongo.Collection
	ownsClient bool
}

var _ repositories.Store = (*Store)(nil)

// Connect dials uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, errors.New("mongo: uri is required")
	}
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(dialCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	store, err := New(client, database)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	store.ownsClient = true
	return store, nil
}

// New wraps an existing client. The caller keeps ownership of client.
func New(client *mongo.Client, database string) (*Store, error) {
	if client == nil {
		return nil, errors.New("mongo: client is required")
	}
	if strings.TrimSpace(database) == "" {
		return nil, errors.New("mongo: database is required")
	}
	db := client.Database(database)
	return &Store{
		client:   client,
		products: db.Collection(productsCollection),
		orders:   db.Collection(ordersCollection),
	}, nil
}

func (s *Store) Products() repositories.ProductRepository { return productRepository{store: s} }

func (s *Store) Orders() repositories.OrderRepository { return orderRepository{store: s} }

func (s *Store) Ping(ctx context.Context) error {
	return classify("mongo.ping", s.client.Ping(ctx, readpref.Primary()))
}

func (s *Store) Close(ctx context.Context) error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// RunOrderTx implements repositories.OrderUnitOfWork with a snapshot, majority-committed
// session transaction. The driver retries transient transaction errors itself.
func (s *Store) RunOrderTx(ctx context.Context, fn func(ctx context.Context, tx repositories.OrderTx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return classify("mongo.tx.start", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc, &orderTx{store: s})
	}, txOpts)
	return classify("mongo.tx", err)
}

type orderTx struct {
	store *Store
}

func (t *orderTx) GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error) {
	var doc productDocument
	if err := t.store.products.FindOne(ctx, bson.M{"_id": productID}).Decode(&doc); err != nil {
		return domain.Product{}, classify("mongo.products.get_for_update", err)
	}
	return doc.toDomain(), nil
}

func (t *orderTx) DecrementProductQuantity(ctx context.Context, productID string, amount int) error {
	const op = "mongo.products.decrement"
	if amount <= 0 {
		return repositories.NewStoreError(op, repositories.StoreErrorInsufficientStock, "amount must be positive", nil)
	}
	res, err := t.store.products.UpdateOne(ctx,
		bson.M{"_id": productID, "quantity": bson.M{"$gte": amount}},
		bson.M{"$inc": bson.M{"quantity": -amount}},
	)
	if err != nil {
		return classify(op, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	count, err := t.store.products.CountDocuments(ctx, bson.M{"_id": productID})
	if err != nil {
		return classify(op, err)
	}
	if count == 0 {
		return repositories.NewStoreError(op, repositories.StoreErrorNotFound, "product not found", nil)
	}
	return repositories.NewStoreError(op, repositories.StoreErrorInsufficientStock, "quantity below requested amount", nil)
}

func (t *orderTx) InsertOrder(ctx context.Context, order domain.Order) error {
	const op = "mongo.orders.insert"
	if strings.TrimSpace(order.ID) == "" {
		return repositories.NewStoreError(op, repositories.StoreErrorConflict, "order id is required", nil)
	}
	_, err := t.store.orders.InsertOne(ctx, newOrderDocument(order))
	return classify(op, err)
}

type productRepository struct {
	store *Store
}

func (r productRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	var doc productDocument
	if err := r.store.products.FindOne(ctx, bson.M{"_id": productID}).Decode(&doc); err != nil {
		return domain.Product{}, classify("mongo.products.get", err)
	}
	return doc.toDomain(), nil
}

func (r productRepository) List(ctx context.Context) ([]domain.Product, error) {
	const op = "mongo.products.list"
	cursor, err := r.store.products.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, classify(op, err)
	}
	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify(op, err)
	}
	out := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

func (r productRepository) Upsert(ctx context.Context, product domain.Product) error {
	const op = "mongo.products.upsert"
	if strings.TrimSpace(product.ID) == "" {
		return repositories.NewStoreError(op, repositories.StoreErrorConflict, "product id is required", nil)
	}
	if product.Quantity < 0 {
		return repositories.NewStoreError(op, repositories.StoreErrorConflict, "quantity must not be negative", nil)
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now()
	}
	_, err := r.store.products.ReplaceOne(ctx, bson.M{"_id": product.ID}, newProductDocument(product),
		options.Replace().SetUpsert(true))
	return classify(op, err)
}

type orderRepository struct {
	store *Store
}

func (r orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	var doc orderDocument
	if err := r.store.orders.FindOne(ctx, bson.M{"_id": orderID}).Decode(&doc); err != nil {
		return domain.Order{}, classify("mongo.orders.get", err)
	}
	return doc.toDomain(), nil
}

func newProductDocument(p domain.Product) productDocument {
	return productDocument{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		UnitPrice:   p.UnitPrice,
		Quantity:    p.Quantity,
		CreatedAt:   p.CreatedAt.UTC(),
	}
}

func (d productDocument) toDomain() domain.Product {
	product := domain.Product{
		ID:        d.ID,
		Title:     d.Title,
		UnitPrice: d.UnitPrice,
		Quantity:  d.Quantity,
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
		ID:           o.ID,
		ProductID:    o.ProductID,
		ProductTitle: o.ProductTitle,
		Customer:     customerDocument(o.Customer),
		Quantity:     o.Quantity,
		UnitPrice:    o.UnitPrice,
		TaxRate:      o.TaxRate,
		Subtotal:     o.Subtotal,
		TaxAmount:    o.TaxAmount,
		Total:        o.Total,
		Currency:     o.Currency,
		CreatedAt:    o.CreatedAt.UTC(),
	}
}

func (d orderDocument) toDomain() domain.Order {
	return domain.Order{
		ID:           d.ID,
		ProductID:    d.ProductID,
		ProductTitle: d.ProductTitle,
		Customer:     domain.Customer(d.Customer),
		Quantity:     d.Quantity,
		UnitPrice:    d.UnitPrice,
		TaxRate:      d.TaxRate,
		Subtotal:     d.Subtotal,
		TaxAmount:    d.TaxAmount,
		Total:        d.Total,
		Currency:     d.Currency,
		CreatedAt:    d.CreatedAt,
	}
}
