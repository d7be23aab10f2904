package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	"github.com/Shelia5K/FAPI-order-service/internal/services"
)

type stubCatalog struct {
	products []domain.Product
	listErr  error
}

func (s stubCatalog) ListProducts(context.Context) ([]domain.Product, error) {
	return s.products, s.listErr
}

func (s stubCatalog) GetProduct(_ context.Context, id string) (domain.Product, error) {
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, fmt.Errorf("%w: %s", services.ErrProductNotFound, id)
}

type stubSummaries struct {
	quoteFn func(context.Context, services.QuoteCommand) (services.PriceQuote, error)
}

func (s stubSummaries) BuildSummary(context.Context, string) (domain.OrderSummary, error) {
	return domain.OrderSummary{}, errors.New("not implemented")
}

func (s stubSummaries) SummarizePlacement(_ context.Context, p domain.OrderPlacement) domain.OrderSummary {
	return domain.OrderSummary{Order: p.Order}
}

func (s stubSummaries) Quote(ctx context.Context, cmd services.QuoteCommand) (services.PriceQuote, error) {
	return s.quoteFn(ctx, cmd)
}

func TestProductHandlers(t *testing.T) {
	description := "Brass desk lamp"
	catalog := stubCatalog{products: []domain.Product{
		{ID: "prod-1", Title: "Lamp", Description: &description, UnitPrice: 1990, Quantity: 5},
		{ID: "prod-2", Title: "Shade", UnitPrice: 333.33, Quantity: 0},
	}}
	router := chi.NewRouter()
	router.Route("/api/v1/products", NewProductHandlers(catalog).Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	items := decodeBody(t, rr)["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "Brass desk lamp", first["description"])
	assert.Equal(t, "CZK", first["currency"])
	_, hasDescription := items[1].(map[string]any)["description"]
	assert.False(t, hasDescription)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products/prod-2", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 333.33, decodeBody(t, rr)["product"].(map[string]any)["unitPrice"])

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products/missing", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "product_not_found", decodeBody(t, rr)["error"])
}

func TestProductHandlersPaginates(t *testing.T) {
	catalog := stubCatalog{products: []domain.Product{
		{ID: "c", Title: "C", UnitPrice: 3},
		{ID: "a", Title: "A", UnitPrice: 1},
		{ID: "b", Title: "B", UnitPrice: 2},
	}}
	router := chi.NewRouter()
	router.Route("/products", NewProductHandlers(catalog).Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products?pageSize=2", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	items := body["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].(map[string]any)["id"])
	assert.Equal(t, "b", items[1].(map[string]any)["id"])
	token, ok := body["nextPageToken"].(string)
	require.True(t, ok)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products?pageSize=2&pageToken="+token, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body = decodeBody(t, rr)
	items = body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "c", items[0].(map[string]any)["id"])
	_, hasToken := body["nextPageToken"]
	assert.False(t, hasToken)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products?pageSize=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_pagination", decodeBody(t, rr)["error"])
}

func TestProductHandlersListFailure(t *testing.T) {
	router := chi.NewRouter()
	router.Route("/products", NewProductHandlers(stubCatalog{listErr: errors.New("down")}).Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestPricingHandlersQuote(t *testing.T) {
	var got services.QuoteCommand
	summaries := stubSummaries{quoteFn: func(_ context.Context, cmd services.QuoteCommand) (services.PriceQuote, error) {
		got = cmd
		if cmd.ProductID == "missing" {
			return services.PriceQuote{}, fmt.Errorf("%w: missing", services.ErrOrderProductNotFound)
		}
		return services.PriceQuote{
			Product:      domain.Product{ID: cmd.ProductID, UnitPrice: 1990},
			Quantity:     cmd.Quantity,
			BaseCurrency: "CZK",
			Breakdown:    domain.VatBreakdown{Subtotal: 3980, TaxAmount: 477.60, Total: 4457.60, TaxRate: 0.12},
		}, nil
	}}
	router := chi.NewRouter()
	router.Route("/api/v1/pricing", NewPricingHandlers(summaries).Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/pricing/quote?productId=prod-1&quantity=2&taxRate=0.12", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotNil(t, got.TaxRate)
	assert.Equal(t, 0.12, *got.TaxRate)
	assert.Equal(t, 2, got.Quantity)
	breakdown := decodeBody(t, rr)["breakdown"].(map[string]any)
	assert.EqualValues(t, 4457.60, breakdown["total"])

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/pricing/quote?productId=prod-1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, got.Quantity)
	assert.Nil(t, got.TaxRate)

	for _, query := range []string{"", "productId=p&quantity=0", "productId=p&quantity=abc", "productId=p&taxRate=1.5"} {
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/pricing/quote?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, query)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/pricing/quote?productId=missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
