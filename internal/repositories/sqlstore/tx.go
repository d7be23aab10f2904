package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
)

const (
	selectProductForUpdate = "SELECT " + productColumns + " FROM products WHERE id = ?"
	decrementProduct       = "UPDATE products SET quantity = quantity - ? WHERE id = ? AND quantity >= ?"
	productExists          = "SELECT 1 FROM products WHERE id = ?"
	insertOrder            = "INSERT INTO orders (" + orderColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
)

type orderTx struct {
	tx    *sql.Tx
	store *Store
}

func (t *orderTx) GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error) {
	query := selectProductForUpdate
	if t.store.dialect == DialectPostgres {
		query += " FOR UPDATE"
	}
	product, err := scanProduct(t.tx.QueryRowContext(ctx, t.store.rebind(query), productID))
	if err != nil {
		return domain.Product{}, classify("sql.products.get_for_update", err)
	}
	return product, nil
}

func (t *orderTx) DecrementProductQuantity(ctx context.Context, productID string, amount int) error {
	const op = "sql.products.decrement"
	if amount <= 0 {
		return repositories.NewStoreError(op, repositories.StoreErrorInsufficientStock, "amount must be positive", nil)
	}
	result, err := t.tx.ExecContext(ctx, t.store.rebind(decrementProduct), amount, productID, amount)
	if err != nil {
		return classify(op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if affected == 1 {
		return nil
	}

	var one int
	err = t.tx.QueryRowContext(ctx, t.store.rebind(productExists), productID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return repositories.NewStoreError(op, repositories.StoreErrorNotFound, "product not found", nil)
	case err != nil:
		return classify(op, err)
	}
	return repositories.NewStoreError(op, repositories.StoreErrorInsufficientStock, "quantity below requested amount", nil)
}

func (t *orderTx) InsertOrder(ctx context.Context, order domain.Order) error {
	const op = "sql.orders.insert"
	if strings.TrimSpace(order.ID) == "" {
		return repositories.NewStoreError(op, repositories.StoreErrorConflict, "order id is required", nil)
	}
	if _, err := t.tx.ExecContext(ctx, t.store.rebind(insertOrder), orderArgs(order)...); err != nil {
		return classify(op, err)
	}
	return nil
}
