package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	"github.com/Shelia5K/FAPI-order-service/internal/exchangerates"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
)

type stubRateSource struct {
	table domain.RateTable
	err   error
	calls int
}

func (s *stubRateSource) Rates(context.Context) (domain.RateTable, error) {
	s.calls++
	return s.table, s.err
}

type stubOrderService struct {
	getFn func(context.Context, string) (domain.Order, error)
}

func (s *stubOrderService) CreateOrder(context.Context, CreateOrderCommand) (domain.OrderPlacement, error) {
	return domain.OrderPlacement{}, errors.New("not implemented")
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return domain.Order{}, ErrOrderNotFound
}

type stubProductRepo struct {
	products map[string]domain.Product
	err      error
}

func (s *stubProductRepo) FindByID(_ context.Context, productID string) (domain.Product, error) {
	if s.err != nil {
		return domain.Product{}, s.err
	}
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, repositories.NewStoreError("stub.products.get", repositories.StoreErrorNotFound, "", nil)
	}
	return product, nil
}

func (s *stubProductRepo) List(context.Context) ([]domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		out = append(out, product)
	}
	return out, nil
}

func (s *stubProductRepo) Upsert(context.Context, domain.Product) error { return nil }

func sampleRates() domain.RateTable {
	return domain.RateTable{
		Rates:     map[domain.CurrencyCode]float64{domain.CurrencyEUR: 24.725, domain.CurrencyPLN: 5.5},
		FetchedAt: time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC),
		Source:    "test",
	}
}

func conversionFor(t *testing.T, result domain.ConversionResult, code domain.CurrencyCode) domain.CurrencyConversion {
	t.Helper()
	for _, conversion := range result.Conversions {
		if conversion.Currency == code {
			return conversion
		}
	}
	t.Fatalf("missing conversion for %s", code)
	return domain.CurrencyConversion{}
}

func TestOrderSummaryServiceBuildSummaryConvertsFrozenTotal(t *testing.T) {
	order := domain.Order{ID: "order-1", Subtotal: 826.45, TaxAmount: 173.55, Total: 1000, Currency: domain.BaseCurrency}
	rates := &stubRateSource{table: sampleRates()}
	svc, err := NewOrderSummaryService(OrderSummaryServiceDeps{
		Orders: &stubOrderService{getFn: func(_ context.Context, id string) (domain.Order, error) {
			if id == "order-1" {
				return order, nil
			}
			return domain.Order{}, ErrOrderNotFound
		}},
		Products: &stubProductRepo{},
		Rates:    rates,
	})
	if err != nil {
		t.Fatalf("new summary service: %v", err)
	}

	summary, err := svc.BuildSummary(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total != 1000 || summary.Subtotal != 826.45 || summary.TaxAmount != 173.55 {
		t.Fatalf("expected frozen totals copied, got %+v", summary)
	}
	if summary.BaseCurrency != domain.BaseCurrency {
		t.Fatalf("expected base currency CZK, got %s", summary.BaseCurrency)
	}

	eur := conversionFor(t, summary.Conversions, domain.CurrencyEUR)
	if !eur.Available || eur.Amount == nil || *eur.Amount != 40.44 {
		t.Fatalf("unexpected EUR conversion: %+v", eur)
	}
	usd := conversionFor(t, summary.Conversions, domain.CurrencyUSD)
	if usd.Available || usd.Amount != nil {
		t.Fatalf("expected USD unavailable, got %+v", usd)
	}
	pln := conversionFor(t, summary.Conversions, domain.CurrencyPLN)
	if !pln.Available || *pln.Amount != 181.82 {
		t.Fatalf("unexpected PLN conversion: %+v", pln)
	}
	if !summary.Conversions.AnyAvailable || summary.Conversions.Error != "" {
		t.Fatalf("unexpected conversion result: %+v", summary.Conversions)
	}

	if _, err := svc.BuildSummary(context.Background(), "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderSummaryServiceAbsorbsRateFailure(t *testing.T) {
	logs := &captureLogger{}
	rates := &stubRateSource{err: &exchangerates.FetchError{Kind: exchangerates.FetchErrorTimeout, Reason: "rate source timed out"}}
	svc, err := NewOrderSummaryService(OrderSummaryServiceDeps{
		Orders:   &stubOrderService{},
		Products: &stubProductRepo{},
		Rates:    rates,
		Logger:   logs.log,
	})
	if err != nil {
		t.Fatalf("new summary service: %v", err)
	}

	placement := domain.OrderPlacement{Order: domain.Order{ID: "order-1", Total: 4815.80, Currency: domain.BaseCurrency}}
	summary := svc.SummarizePlacement(context.Background(), placement)
	if summary.Total != 4815.80 {
		t.Fatalf("expected total preserved, got %v", summary.Total)
	}
	if summary.Conversions.AnyAvailable {
		t.Fatalf("expected no conversions, got %+v", summary.Conversions)
	}
	if summary.Conversions.Error != "rate source timed out" {
		t.Fatalf("expected fetch reason, got %q", summary.Conversions.Error)
	}
	if len(summary.Conversions.Conversions) != len(domain.SupportedCurrencies) {
		t.Fatalf("expected an entry per currency, got %d", len(summary.Conversions.Conversions))
	}
	for _, conversion := range summary.Conversions.Conversions {
		if conversion.Available || conversion.Amount != nil {
			t.Fatalf("expected %s unavailable, got %+v", conversion.Currency, conversion)
		}
	}
	if !logs.has("order.summary.rates.unavailable") {
		t.Fatalf("expected rate failure to be logged, got %v", logs.events)
	}
}

func TestOrderSummaryServiceWithoutRateSource(t *testing.T) {
	svc, err := NewOrderSummaryService(OrderSummaryServiceDeps{Orders: &stubOrderService{}, Products: &stubProductRepo{}})
	if err != nil {
		t.Fatalf("new summary service: %v", err)
	}
	summary := svc.SummarizePlacement(context.Background(), domain.OrderPlacement{Order: domain.Order{Total: 10}})
	if summary.Conversions.AnyAvailable || summary.Conversions.Error == "" {
		t.Fatalf("expected unavailable conversions with a reason, got %+v", summary.Conversions)
	}
	if summary.BaseCurrency != domain.BaseCurrency {
		t.Fatalf("expected default base currency, got %q", summary.BaseCurrency)
	}
}

func TestOrderSummaryServiceQuote(t *testing.T) {
	products := &stubProductRepo{products: map[string]domain.Product{
		"prod-1": {ID: "prod-1", Title: "Brass desk lamp", UnitPrice: 1990, Quantity: 5},
	}}
	rates := &stubRateSource{table: sampleRates()}
	svc, err := NewOrderSummaryService(OrderSummaryServiceDeps{Orders: &stubOrderService{}, Products: products, Rates: rates})
	if err != nil {
		t.Fatalf("new summary service: %v", err)
	}

	quote, err := svc.Quote(context.Background(), QuoteCommand{ProductID: "prod-1", Quantity: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Breakdown.Total != 4815.80 || quote.Breakdown.TaxRate != DefaultTaxRate {
		t.Fatalf("unexpected breakdown: %+v", quote.Breakdown)
	}
	if !quote.Conversions.AnyAvailable {
		t.Fatalf("expected conversions, got %+v", quote.Conversions)
	}

	reduced := 0.12
	quote, err = svc.Quote(context.Background(), QuoteCommand{ProductID: "prod-1", Quantity: 1, TaxRate: &reduced})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Breakdown.TaxAmount != 238.80 {
		t.Fatalf("expected reduced tax 238.80, got %v", quote.Breakdown.TaxAmount)
	}

	if _, err := svc.Quote(context.Background(), QuoteCommand{ProductID: "missing", Quantity: 1}); !errors.Is(err, ErrOrderProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
	if _, err := svc.Quote(context.Background(), QuoteCommand{ProductID: "prod-1"}); !errors.Is(err, ErrQuoteInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	products.err = repositories.NewStoreError("stub", repositories.StoreErrorUnavailable, "", nil)
	if _, err := svc.Quote(context.Background(), QuoteCommand{ProductID: "prod-1", Quantity: 1}); !errors.Is(err, ErrOrderStorage) {
		t.Fatalf("expected storage failure, got %v", err)
	}
}

func TestCatalogService(t *testing.T) {
	products := &stubProductRepo{products: map[string]domain.Product{
		"prod-1": {ID: "prod-1", Title: "Brass desk lamp", UnitPrice: 1990, Quantity: 5},
	}}
	svc, err := NewCatalogService(CatalogServiceDeps{Products: products})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}

	list, err := svc.ListProducts(context.Background())
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one product, got %v, %v", list, err)
	}
	if _, err := svc.GetProduct(context.Background(), "missing"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.GetProduct(context.Background(), " "); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected not found for blank id, got %v", err)
	}
	product, err := svc.GetProduct(context.Background(), "prod-1")
	if err != nil || product.Title != "Brass desk lamp" {
		t.Fatalf("unexpected product %+v, %v", product, err)
	}

	if _, err := NewCatalogService(CatalogServiceDeps{}); err == nil {
		t.Fatal("expected error without repository")
	}
}
