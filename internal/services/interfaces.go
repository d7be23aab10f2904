package services

import (
	"context"
	"time"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
)

// OrderService places and reads orders.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (domain.OrderPlacement, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// OrderSummaryService decorates stored orders with display-only currency conversions.
type OrderSummaryService interface {
	BuildSummary(ctx context.Context, orderID string) (domain.OrderSummary, error)
	SummarizePlacement(ctx context.Context, placement domain.OrderPlacement) domain.OrderSummary
	Quote(ctx context.Context, cmd QuoteCommand) (PriceQuote, error)
}

// CatalogService exposes the read-only product catalogue.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
}

// SystemService reports dependency health for probes.
type SystemService interface {
	HealthReport(ctx context.Context) HealthReport
}

// RateSource yields the current exchange-rate table. exchangerates.Cache satisfies it.
type RateSource interface {
	Rates(ctx context.Context) (domain.RateTable, error)
}

// CreateOrderCommand is the validated-at-the-edge order request.
type CreateOrderCommand struct {
	ProductID string
	Quantity  int
	Customer  domain.Customer
}

// QuoteCommand prices a prospective order without persisting anything.
type QuoteCommand struct {
	ProductID string
	Quantity  int
	TaxRate   *float64
}

// PriceQuote is the result of QuoteCommand.
type PriceQuote struct {
	Product      domain.Product
	Quantity     int
	BaseCurrency string
	Breakdown    domain.VatBreakdown
	Conversions  domain.ConversionResult
}

// HealthStatus is the aggregate or per-check probe state.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusError    HealthStatus = "error"
)

// HealthCheck is the outcome of a single dependency probe.
type HealthCheck struct {
	Status  HealthStatus
	Latency time.Duration
	Detail  string
}

// HealthReport aggregates every dependency check.
type HealthReport struct {
	Status      HealthStatus
	Checks      map[string]HealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
