package sqlstore

import (
	"context"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
)

const orderColumns = `id, product_id, product_title, customer_name, customer_email, customer_phone,
customer_street, customer_city, customer_postal_code, customer_country, quantity, unit_price,
tax_rate, subtotal, tax_amount, total, currency, created_at`

type orderRepository struct {
	store *Store
}

func (r orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	query := r.store.rebind("SELECT " + orderColumns + " FROM orders WHERE id = ?")
	var o domain.Order
	err := r.store.db.QueryRowContext(ctx, query, orderID).Scan(
		&o.ID, &o.ProductID, &o.ProductTitle,
		&o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Customer.Street, &o.Customer.City, &o.Customer.PostalCode, &o.Customer.Country,
		&o.Quantity, &o.UnitPrice, &o.TaxRate, &o.Subtotal, &o.TaxAmount, &o.Total,
		&o.Currency, &o.CreatedAt,
	)
	if err != nil {
		return domain.Order{}, classify("sql.orders.get", err)
	}
	return o, nil
}

func orderArgs(o domain.Order) []any {
	return []any{
		o.ID, o.ProductID, o.ProductTitle,
		o.Customer.Name, o.Customer.Email, o.Customer.Phone,
		o.Customer.Street, o.Customer.City, o.Customer.PostalCode, o.Customer.Country,
		o.Quantity, o.UnitPrice, o.TaxRate, o.Subtotal, o.TaxAmount, o.Total,
		o.Currency, o.CreatedAt.UTC(),
	}
}
