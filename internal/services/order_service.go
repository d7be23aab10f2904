package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
)

const (
	orderEventCreated = "order.created"

	instrumentation = "github.com/Shelia5K/FAPI-order-service/internal/services"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderProductNotFound indicates the ordered product does not exist.
	ErrOrderProductNotFound = errors.New("order: product not found")
	// ErrOrderInsufficientStock indicates the requested quantity exceeds the available stock.
	ErrOrderInsufficientStock = errors.New("order: insufficient stock")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates the backend aborted a concurrent write it could not retry.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderStorage wraps every other persistence failure.
	ErrOrderStorage = errors.New("order: storage failure")
)

// orderState names the steps of CreateOrder. Each transition becomes a span event.
type orderState string

const (
	orderStateValidating      orderState = "validating"
	orderStatePricingComputed orderState = "pricing_computed"
	orderStatePersisting      orderState = "persisting"
	orderStateCommitted       orderState = "committed"
	orderStateAborted         orderState = "aborted"
)

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type       string
	OrderID    string
	ProductID  string
	Quantity   int
	Total      float64
	Currency   string
	OccurredAt time.Time
	Metadata   map[string]any
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	UnitOfWork  repositories.OrderUnitOfWork
	Orders      repositories.OrderRepository
	Pricing     *PricingEngine
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Meter       metric.Meter
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	unitOfWork repositories.OrderUnitOfWork
	orders     repositories.OrderRepository
	pricing    *PricingEngine
	events     OrderEventPublisher
	clock      func() time.Time
	newID      func() string
	tracer     trace.Tracer
	logger     func(context.Context, string, map[string]any)

	outcomes        metric.Int64Counter
	outcomesEnabled bool
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.UnitOfWork == nil {
		return nil, errors.New("order service: unit of work is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	pricing := deps.Pricing
	if pricing == nil {
		engine, err := NewPricingEngine(PricingEngineDeps{})
		if err != nil {
			return nil, err
		}
		pricing = engine
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentation)
	}
	outcomes, outcomesErr := meter.Int64Counter(
		"orders.create.outcomes",
		metric.WithDescription("Count of order placements by outcome"),
	)
	if outcomesErr != nil {
		logger(context.Background(), "order.metrics.register_failed", map[string]any{"error": outcomesErr.Error()})
	}

	return &orderService{
		unitOfWork: deps.UnitOfWork,
		orders:     deps.Orders,
		pricing:    pricing,
		events:     deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:           idGen,
		tracer:          otel.Tracer(instrumentation),
		logger:          logger,
		outcomes:        outcomes,
		outcomesEnabled: outcomesErr == nil,
	}, nil
}

// CreateOrder reads the product, prices the order and, in one unit of work, decrements the
// stock and inserts the order. Nothing is written unless every step succeeds.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (placement domain.OrderPlacement, err error) {
	ctx, span := s.tracer.Start(ctx, "services.OrderService.CreateOrder")
	defer span.End()

	productID := strings.TrimSpace(cmd.ProductID)
	span.SetAttributes(
		attribute.String("order.product_id", productID),
		attribute.Int("order.quantity", cmd.Quantity),
	)
	defer func() {
		outcome := orderOutcome(err)
		s.recordOutcome(ctx, outcome)
		if err != nil {
			s.transition(ctx, span, orderStateAborted, map[string]any{
				"productId": productID,
				"outcome":   outcome,
				"error":     err.Error(),
			})
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
	}()

	s.transition(ctx, span, orderStateValidating, map[string]any{"productId": productID, "quantity": cmd.Quantity})
	if productID == "" {
		return domain.OrderPlacement{}, fmt.Errorf("%w: product id is required", ErrOrderInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return domain.OrderPlacement{}, fmt.Errorf("%w: quantity must be greater than zero", ErrOrderInvalidInput)
	}

	now := s.clock()
	orderID := s.newID()

	txErr := s.unitOfWork.RunOrderTx(ctx, func(txCtx context.Context, tx repositories.OrderTx) error {
		product, err := tx.GetProductForUpdate(txCtx, productID)
		if err != nil {
			return err
		}
		if cmd.Quantity > product.Quantity {
			return fmt.Errorf("%w: requested %d, available %d", ErrOrderInsufficientStock, cmd.Quantity, product.Quantity)
		}

		breakdown := s.pricing.Breakdown(product.UnitPrice, float64(cmd.Quantity), nil)
		s.transition(txCtx, span, orderStatePricingComputed, map[string]any{
			"orderId":  orderID,
			"subtotal": breakdown.Subtotal,
			"tax":      breakdown.TaxAmount,
			"total":    breakdown.Total,
		})

		order := domain.Order{
			ID:           orderID,
			ProductID:    product.ID,
			ProductTitle: product.Title,
			Customer:     cmd.Customer,
			Quantity:     cmd.Quantity,
			UnitPrice:    product.UnitPrice,
			TaxRate:      breakdown.TaxRate,
			Subtotal:     breakdown.Subtotal,
			TaxAmount:    breakdown.TaxAmount,
			Total:        breakdown.Total,
			Currency:     domain.BaseCurrency,
			CreatedAt:    now,
		}

		s.transition(txCtx, span, orderStatePersisting, map[string]any{"orderId": orderID})
		if err := tx.DecrementProductQuantity(txCtx, product.ID, cmd.Quantity); err != nil {
			return err
		}
		if err := tx.InsertOrder(txCtx, order); err != nil {
			return err
		}

		placement = domain.OrderPlacement{
			Order:          order,
			Product:        product,
			RemainingStock: product.Quantity - cmd.Quantity,
		}
		return nil
	})
	if txErr != nil {
		return domain.OrderPlacement{}, s.mapTxError(ctx, productID, orderID, txErr)
	}

	span.SetAttributes(attribute.String("order.id", orderID))
	s.transition(ctx, span, orderStateCommitted, map[string]any{
		"orderId":        orderID,
		"remainingStock": placement.RemainingStock,
	})

	s.publishEvent(ctx, OrderEvent{
		Type:       orderEventCreated,
		OrderID:    placement.Order.ID,
		ProductID:  placement.Order.ProductID,
		Quantity:   placement.Order.Quantity,
		Total:      placement.Order.Total,
		Currency:   placement.Order.Currency,
		OccurredAt: now,
		Metadata: map[string]any{
			"remainingStock": placement.RemainingStock,
		},
	})

	return placement, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if repositories.ErrorCode(err) == repositories.StoreErrorNotFound {
			return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		s.logger(ctx, "order.get.failed", map[string]any{"orderId": orderID, "error": err.Error()})
		return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderStorage, err)
	}
	return order, nil
}

// mapTxError turns whatever aborted the unit of work into an order sentinel. Sentinels raised
// inside the transaction survive backend wrapping, so they are checked first.
func (s *orderService) mapTxError(ctx context.Context, productID, orderID string, err error) error {
	switch {
	case errors.Is(err, ErrOrderInsufficientStock), errors.Is(err, ErrOrderProductNotFound):
		return err
	}

	switch repositories.ErrorCode(err) {
	case repositories.StoreErrorNotFound:
		return fmt.Errorf("%w: %s", ErrOrderProductNotFound, productID)
	case repositories.StoreErrorInsufficientStock:
		return fmt.Errorf("%w: %v", ErrOrderInsufficientStock, err)
	case repositories.StoreErrorConflict:
		return fmt.Errorf("%w: %v", ErrOrderConflict, err)
	}

	s.logger(ctx, "order.create.storage.failed", map[string]any{
		"productId": productID,
		"orderId":   orderID,
		"code":      string(repositories.ErrorCode(err)),
		"error":     err.Error(),
	})
	return fmt.Errorf("%w: %v", ErrOrderStorage, err)
}

func (s *orderService) transition(ctx context.Context, span trace.Span, state orderState, fields map[string]any) {
	span.AddEvent("order."+string(state))
	s.logger(ctx, "order.create."+string(state), fields)
}

func (s *orderService) recordOutcome(ctx context.Context, outcome string) {
	if !s.outcomesEnabled {
		return
	}
	s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

func orderOutcome(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, ErrOrderInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrOrderProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrOrderInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrOrderConflict):
		return "conflict"
	default:
		return "storage_failure"
	}
}
