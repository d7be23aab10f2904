package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/Shelia5K/FAPI-order-service/internal/platform/config"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
	"github.com/Shelia5K/FAPI-order-service/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders    services.OrderService
	Summaries services.OrderSummaryService
	Catalog   services.CatalogService
	System    services.SystemService
	Pricing   *services.PricingEngine
}

// Options carries the optional collaborators of the service layer.
type Options struct {
	// Rates feeds display conversions. Nil reports every conversion unavailable.
	Rates services.RateSource
	// RatesCheck probes the rate source for /readyz. It never fails readiness.
	RatesCheck func(context.Context) error
	Events     services.OrderEventPublisher
	Meter      metric.Meter
	Build      services.BuildInfo
	Clock      func() time.Time
	// Logger builds the event logger for a named service.
	Logger func(component string) func(context.Context, string, map[string]any)
}

// Container wires the store and services for runtime use.
type Container struct {
	Config   config.Config
	Store    repositories.Store
	Services Services
}

// NewContainer constructs the runtime dependencies over store.
func NewContainer(cfg config.Config, store repositories.Store, opts Options) (*Container, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	svc, err := buildServices(cfg, store, opts)
	if err != nil {
		return nil, err
	}
	return &Container{Config: cfg, Store: store, Services: svc}, nil
}

// Close releases the store.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Store == nil {
		return nil
	}
	return c.Store.Close(ctx)
}

func buildServices(cfg config.Config, store repositories.Store, opts Options) (Services, error) {
	var svc Services

	logger := opts.Logger
	if logger == nil {
		logger = func(string) func(context.Context, string, map[string]any) { return nil }
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	taxRate := cfg.Pricing.DefaultTaxRate
	pricing, err := services.NewPricingEngine(services.PricingEngineDeps{DefaultTaxRate: &taxRate})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing engine: %w", err)
	}
	svc.Pricing = pricing

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		UnitOfWork: store,
		Orders:     store.Orders(),
		Pricing:    pricing,
		Events:     opts.Events,
		Clock:      clock,
		Meter:      opts.Meter,
		Logger:     logger("orders"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	summarySvc, err := services.NewOrderSummaryService(services.OrderSummaryServiceDeps{
		Orders:   orderSvc,
		Products: store.Products(),
		Rates:    opts.Rates,
		Pricing:  pricing,
		Logger:   logger("summary"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order summary service: %w", err)
	}
	svc.Summaries = summarySvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{Products: store.Products()})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	checks := []services.DependencyCheck{{
		Name:     "storage",
		Critical: true,
		Check:    store.Ping,
	}}
	if opts.RatesCheck != nil {
		checks = append(checks, services.DependencyCheck{
			Name:    "exchange_rates",
			Timeout: cfg.Rates.FetchTimeout,
			Check:   opts.RatesCheck,
		})
	}
	build := opts.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = clock().UTC()
	}
	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		Checks: checks,
		Clock:  clock,
		Build:  build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}
