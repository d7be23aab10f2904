package di

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	"github.com/Shelia5K/FAPI-order-service/internal/platform/config"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories/memory"
	"github.com/Shelia5K/FAPI-order-service/internal/services"
)

func TestNewContainerWiresServices(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Products().Upsert(ctx, domain.Product{ID: "p-1", Title: "Mug", UnitPrice: 100, Quantity: 3}))

	cfg := config.Config{
		Pricing: config.PricingConfig{DefaultTaxRate: 0.12},
		Rates:   config.RatesConfig{FetchTimeout: time.Second},
	}
	container, err := NewContainer(cfg, store, Options{
		RatesCheck: func(context.Context) error { return errors.New("rates down") },
	})
	require.NoError(t, err)

	placement, err := container.Services.Orders.CreateOrder(ctx, services.CreateOrderCommand{
		ProductID: "p-1",
		Quantity:  2,
		Customer:  domain.Customer{Name: "A", Email: "a@example.cz"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.12, placement.Order.TaxRate)
	assert.Equal(t, 224.0, placement.Order.Total)

	summary, err := container.Services.Summaries.BuildSummary(ctx, placement.Order.ID)
	require.NoError(t, err)
	assert.False(t, summary.Conversions.AnyAvailable)

	report := container.Services.System.HealthReport(ctx)
	assert.Equal(t, services.HealthStatusDegraded, report.Status)
	assert.Equal(t, services.HealthStatusOK, report.Checks["storage"].Status)
	assert.Equal(t, services.HealthStatusDegraded, report.Checks["exchange_rates"].Status)

	require.NoError(t, container.Close(ctx))
}

func TestNewContainerRejectsInvalidTaxRate(t *testing.T) {
	cfg := config.Config{Pricing: config.PricingConfig{DefaultTaxRate: -1}}
	_, err := NewContainer(cfg, memory.New(), Options{})
	require.Error(t, err)
}

func TestNewContainerRequiresStore(t *testing.T) {
	_, err := NewContainer(config.Config{}, nil, Options{})
	require.Error(t, err)
}

func TestOpenStoreSelectsBackend(t *testing.T) {
	ctx := context.Background()

	store, err := OpenStore(ctx, config.Config{Storage: config.StorageConfig{Driver: config.DriverMemory}})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)

	sqlite, err := OpenStore(ctx, config.Config{Storage: config.StorageConfig{
		Driver:      config.DriverSQLite,
		DSN:         "file:" + t.TempDir() + "/orders.db",
		AutoMigrate: true,
	}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close(ctx) })
	require.NoError(t, sqlite.Products().Upsert(ctx, domain.Product{ID: "p", Title: "T", UnitPrice: 1, Quantity: 1, CreatedAt: time.Now().UTC()}))

	_, err = OpenStore(ctx, config.Config{Storage: config.StorageConfig{Driver: "oracle"}})
	require.Error(t, err)
}
