package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	"github.com/Shelia5K/FAPI-order-service/internal/exchangerates"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
)

// ErrQuoteInvalidInput signals a malformed quote request.
var ErrQuoteInvalidInput = errors.New("quote: invalid input")

// OrderSummaryServiceDeps bundles collaborators required to construct the summary service.
type OrderSummaryServiceDeps struct {
	Orders   OrderService
	Products repositories.ProductRepository
	Rates    RateSource
	Pricing  *PricingEngine
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type orderSummaryService struct {
	orders   OrderService
	products repositories.ProductRepository
	rates    RateSource
	pricing  *PricingEngine
	tracer   trace.Tracer
	logger   func(context.Context, string, map[string]any)
}

var _ OrderSummaryService = (*orderSummaryService)(nil)

// NewOrderSummaryService assembles the summary service. Rates may be nil, in which case every
// conversion is reported unavailable.
func NewOrderSummaryService(deps OrderSummaryServiceDeps) (OrderSummaryService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order summary service: order service is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order summary service: product repository is required")
	}
	pricing := deps.Pricing
	if pricing == nil {
		engine, err := NewPricingEngine(PricingEngineDeps{})
		if err != nil {
			return nil, err
		}
		pricing = engine
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderSummaryService{
		orders:   deps.Orders,
		products: deps.Products,
		rates:    deps.Rates,
		pricing:  pricing,
		tracer:   otel.Tracer(instrumentation),
		logger:   logger,
	}, nil
}

// BuildSummary loads a committed order and attaches live conversions of its frozen total.
func (s *orderSummaryService) BuildSummary(ctx context.Context, orderID string) (domain.OrderSummary, error) {
	ctx, span := s.tracer.Start(ctx, "services.OrderSummaryService.BuildSummary")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", strings.TrimSpace(orderID)))

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return domain.OrderSummary{}, err
	}
	return s.assemble(ctx, order), nil
}

func (s *orderSummaryService) SummarizePlacement(ctx context.Context, placement domain.OrderPlacement) domain.OrderSummary {
	return s.assemble(ctx, placement.Order)
}

// Quote prices quantity units of a product at the current stock level without reserving it.
func (s *orderSummaryService) Quote(ctx context.Context, cmd QuoteCommand) (PriceQuote, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return PriceQuote{}, fmt.Errorf("%w: product id is required", ErrQuoteInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return PriceQuote{}, fmt.Errorf("%w: quantity must be greater than zero", ErrQuoteInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if repositories.ErrorCode(err) == repositories.StoreErrorNotFound {
			return PriceQuote{}, fmt.Errorf("%w: %s", ErrOrderProductNotFound, productID)
		}
		return PriceQuote{}, fmt.Errorf("%w: %v", ErrOrderStorage, err)
	}

	breakdown := s.pricing.Breakdown(product.UnitPrice, float64(cmd.Quantity), cmd.TaxRate)
	return PriceQuote{
		Product:      product,
		Quantity:     cmd.Quantity,
		BaseCurrency: domain.BaseCurrency,
		Breakdown:    breakdown,
		Conversions:  s.convert(ctx, breakdown.Total),
	}, nil
}

func (s *orderSummaryService) assemble(ctx context.Context, order domain.Order) domain.OrderSummary {
	currency := order.Currency
	if currency == "" {
		currency = domain.BaseCurrency
	}
	return domain.OrderSummary{
		Order:        order,
		BaseCurrency: currency,
		Subtotal:     order.Subtotal,
		TaxAmount:    order.TaxAmount,
		Total:        order.Total,
		Conversions:  s.convert(ctx, order.Total),
	}
}

// convert never fails: a rate outage only marks every currency unavailable.
func (s *orderSummaryService) convert(ctx context.Context, amount float64) domain.ConversionResult {
	if s.rates == nil {
		return exchangerates.Unavailable("exchange rates are not configured")
	}
	table, err := s.rates.Rates(ctx)
	if err != nil {
		reason := exchangerates.Reason(err)
		s.logger(ctx, "order.summary.rates.unavailable", map[string]any{
			"reason": reason,
			"error":  err.Error(),
		})
		return exchangerates.Unavailable(reason)
	}
	return exchangerates.Convert(amount, &table)
}
