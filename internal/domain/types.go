package domain

import (
	"time"
)

// BaseCurrency is the currency every persisted amount is denominated in.
const BaseCurrency = "CZK"

// Product is a catalogue entry that can be ordered while stock lasts.
type Product struct {
	ID          string
	Title       string
	Description *string
	// UnitPrice is tax-exclusive and denominated in BaseCurrency.
	UnitPrice float64
	Quantity  int
	CreatedAt time.Time
}

// Customer carries the buyer contact and delivery fields captured with an order.
type Customer struct {
	Name       string
	Email      string
	Phone      string
	Street     string
	City       string
	PostalCode string
	Country    string
}

// Order is the immutable record written by a successful order transaction.
type Order struct {
	ID           string
	ProductID    string
	ProductTitle string
	Customer     Customer
	Quantity     int
	UnitPrice    float64
	TaxRate      float64
	Subtotal     float64
	TaxAmount    float64
	Total        float64
	Currency     string
	CreatedAt    time.Time
}

// VatBreakdown is the priced result of a unit price, quantity and tax rate.
type VatBreakdown struct {
	Subtotal  float64
	TaxAmount float64
	Total     float64
	TaxRate   float64
}

// OrderPlacement is returned after an order commits.
type OrderPlacement struct {
	Order Order
	// Product is the row as read inside the transaction, before the decrement.
	Product        Product
	RemainingStock int
}
