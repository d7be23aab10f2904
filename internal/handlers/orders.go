package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	"github.com/Shelia5K/FAPI-order-service/internal/platform/httpx"
	"github.com/Shelia5K/FAPI-order-service/internal/services"
)

// MaxOrderRequestBytes caps the POST /orders body.
const MaxOrderRequestBytes = 16 * 1024

const (
	maxOrderQuantity = 10_000
	maxCustomerField = 200
)

type createOrderRequest struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Customer  customerRequest `json:"customer"`
}

type customerRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type createOrderResponse struct {
	Order          orderPayload   `json:"order"`
	Product        productPayload `json:"product"`
	RemainingStock int            `json:"remainingStock"`
	Summary        summaryPayload `json:"summary"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderSummaryResponse struct {
	Order   orderPayload   `json:"order"`
	Summary summaryPayload `json:"summary"`
}

// OrderHandlers exposes order placement and order reads.
type OrderHandlers struct {
	orders      services.OrderService
	summaries   services.OrderSummaryService
	idempotency func(http.Handler) http.Handler
	limiter     rateLimiter
	policy      *bluemonday.Policy
}

// OrderHandlersOption customises OrderHandlers.
type OrderHandlersOption func(*OrderHandlers)

// WithOrderIdempotency guards order creation with the given idempotency middleware.
func WithOrderIdempotency(mw func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.idempotency = mw
	}
}

// WithOrderRateLimit throttles order creation per client. A non-positive perMinute disables it.
func WithOrderRateLimit(perMinute, burst int) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.limiter = newTokenBucketLimiter(perMinute, burst, nil)
	}
}

func withOrderRateLimiter(limiter rateLimiter) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.limiter = limiter
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, summaries services.OrderSummaryService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		orders:    orders,
		summaries: summaries,
		policy:    bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	create := r.With(rateLimit(h.limiter))
	if h.idempotency != nil {
		create = create.With(h.idempotency)
	}
	create.Post("/", h.createOrder)
	r.Get("/{orderID}", h.getOrder)
	r.Get("/{orderID}/summary", h.getOrderSummary)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	reader := http.MaxBytesReader(w, r.Body, MaxOrderRequestBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()

	var payload createOrderRequest
	if err := decoder.Decode(&payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest))
		return
	}
	if decoder.More() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid request body: extraneous data", http.StatusBadRequest))
		return
	}

	cmd, problems := h.toCommand(payload)
	if len(problems) > 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order request failed validation", http.StatusBadRequest).
			WithDetails(map[string]any{"fields": problems}))
		return
	}

	placement, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	var summary domain.OrderSummary
	if h.summaries != nil {
		summary = h.summaries.SummarizePlacement(ctx, placement)
	} else {
		summary = domain.OrderSummary{
			Order:        placement.Order,
			BaseCurrency: domain.BaseCurrency,
			Subtotal:     placement.Order.Subtotal,
			TaxAmount:    placement.Order.TaxAmount,
			Total:        placement.Order.Total,
		}
	}

	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+placement.Order.ID)
	httpx.WriteJSON(w, http.StatusCreated, createOrderResponse{
		Order:          buildOrderPayload(placement.Order),
		Product:        buildProductPayload(placement.Product),
		RemainingStock: placement.RemainingStock,
		Summary:        buildSummaryPayload(summary),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getOrderSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.summaries == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order summary service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	summary, err := h.summaries.BuildSummary(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderSummaryResponse{
		Order:   buildOrderPayload(summary.Order),
		Summary: buildSummaryPayload(summary),
	})
}

// toCommand validates the payload and reports every invalid field by its JSON path.
func (h *OrderHandlers) toCommand(payload createOrderRequest) (services.CreateOrderCommand, []string) {
	var problems []string

	productID := strings.TrimSpace(payload.ProductID)
	if productID == "" {
		problems = append(problems, "productId")
	}
	if payload.Quantity <= 0 || payload.Quantity > maxOrderQuantity {
		problems = append(problems, "quantity")
	}

	var customer domain.Customer
	fields := []struct {
		field string
		raw   string
		dst   *string
	}{
		{"customer.name", payload.Customer.Name, &customer.Name},
		{"customer.email", payload.Customer.Email, &customer.Email},
		{"customer.phone", payload.Customer.Phone, &customer.Phone},
		{"customer.street", payload.Customer.Street, &customer.Street},
		{"customer.city", payload.Customer.City, &customer.City},
		{"customer.postalCode", payload.Customer.PostalCode, &customer.PostalCode},
		{"customer.country", payload.Customer.Country, &customer.Country},
	}
	for _, item := range fields {
		value, ok := h.plainText(item.raw)
		if !ok || value == "" || utf8.RuneCountInString(value) > maxCustomerField {
			problems = append(problems, item.field)
			continue
		}
		*item.dst = value
	}
	customer.Email = strings.ToLower(customer.Email)
	if customer.Email != "" && !validEmail(customer.Email) {
		problems = append(problems, "customer.email")
	}

	return services.CreateOrderCommand{
		ProductID: productID,
		Quantity:  payload.Quantity,
		Customer:  customer,
	}, dedupe(problems)
}

// plainText trims value and reports false when it carries markup or entity-encoded markup.
// Text that survives the policy untouched is exactly its own HTML escaping.
func (h *OrderHandlers) plainText(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", true
	}
	return value, h.policy.Sanitize(value) == html.EscapeString(value)
}

func validEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return false
	}
	return strings.EqualFold(addr.Address, value)
}

func dedupe(values []string) []string {
	if len(values) < 2 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", "not enough stock for the requested quantity", http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		w.Header().Set("Retry-After", "1")
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order could not be placed due to a concurrent update, retry", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
