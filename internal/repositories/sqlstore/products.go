package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
)

const productColumns = "id, title, description, unit_price, quantity, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

type productRepository struct {
	store *Store
}

func (r productRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	query := r.store.rebind("SELECT " + productColumns + " FROM products WHERE id = ?")
	product, err := scanProduct(r.store.db.QueryRowContext(ctx, query, productID))
	if err != nil {
		return domain.Product{}, classify("sql.products.get", err)
	}
	return product, nil
}

func (r productRepository) List(ctx context.Context) ([]domain.Product, error) {
	const op = "sql.products.list"
	rows, err := r.store.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY created_at, id")
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, product)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func (r productRepository) Upsert(ctx context.Context, product domain.Product) error {
	const op = "sql.products.upsert"
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

	query := r.store.rebind(`INSERT INTO products (id, title, description, unit_price, quantity, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET title = excluded.title, description = excluded.description,
unit_price = excluded.unit_price, quantity = excluded.quantity`)
	_, err := r.store.db.ExecContext(ctx, query,
		product.ID, product.Title, nullableString(product.Description),
		product.UnitPrice, product.Quantity, createdAt.UTC(),
	)
	if err != nil {
		return classify(op, err)
	}
	return nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		product     domain.Product
		description sql.NullString
	)
	if err := row.Scan(&product.ID, &product.Title, &description, &product.UnitPrice, &product.Quantity, &product.CreatedAt); err != nil {
		return domain.Product{}, err
	}
	if description.Valid {
		value := description.String
		product.Description = &value
	}
	return product, nil
}

func nullableString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
