package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Shelia5K/FAPI-order-service/internal/platform/httpx"
	"github.com/Shelia5K/FAPI-order-service/internal/services"
)

// PricingHandlers prices a prospective order without placing it.
type PricingHandlers struct {
	summaries services.OrderSummaryService
}

func NewPricingHandlers(summaries services.OrderSummaryService) *PricingHandlers {
	return &PricingHandlers{summaries: summaries}
}

// Routes registers the /pricing endpoints.
func (h *PricingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/quote", h.quote)
}

func (h *PricingHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.summaries == nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	cmd := services.QuoteCommand{ProductID: strings.TrimSpace(query.Get("productId"))}
	if cmd.ProductID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "productId is required", http.StatusBadRequest))
		return
	}

	cmd.Quantity = 1
	if raw := strings.TrimSpace(query.Get("quantity")); raw != "" {
		quantity, err := strconv.Atoi(raw)
		if err != nil || quantity <= 0 || quantity > maxOrderQuantity {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity must be a positive integer", http.StatusBadRequest))
			return
		}
		cmd.Quantity = quantity
	}
	if raw := strings.TrimSpace(query.Get("taxRate")); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil || rate < 0 || rate > 1 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "taxRate must be a number between 0 and 1", http.StatusBadRequest))
			return
		}
		cmd.TaxRate = &rate
	}

	quote, err := h.summaries.Quote(ctx, cmd)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrQuoteInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		case errors.Is(err, services.ErrOrderProductNotFound):
			httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("pricing_error", "failed to price request", http.StatusInternalServerError))
		}
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildQuotePayload(quote))
}
