package exchangerates

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
)

// DefaultTTL is the freshness window of a fetched table.
const DefaultTTL = time.Hour

const flightKey = "rates"

// Fetcher retrieves a fresh table from the upstream source.
type Fetcher interface {
	FetchRates(ctx context.Context) (domain.RateTable, error)
}

// SharedStore is an optional cache tier shared between replicas.
type SharedStore interface {
	Load(ctx context.Context) (domain.RateTable, bool, error)
	Save(ctx context.Context, table domain.RateTable, ttl time.Duration) error
}

// Cache serves one rate table for the freshness window and refreshes it lazily on read.
type Cache struct {
	fetcher Fetcher
	shared  SharedStore
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger

	mu     sync.RWMutex
	table  *domain.RateTable
	expiry time.Time

	group singleflight.Group

	lookups        metric.Int64Counter
	lookupsEnabled bool
	latency        metric.Float64Histogram
	latencyEnabled bool
}

// CacheOption customises Cache behaviour.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	shared SharedStore
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
	meter  metric.Meter
}

// WithTTL overrides the freshness window.
func WithTTL(ttl time.Duration) CacheOption {
	return func(cfg *cacheConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithClock injects the time source used for expiry checks.
func WithClock(now func() time.Time) CacheOption {
	return func(cfg *cacheConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithLogger sets the logger for refresh diagnostics.
func WithLogger(logger *zap.Logger) CacheOption {
	return func(cfg *cacheConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithSharedStore adds a second cache tier consulted before the upstream source.
func WithSharedStore(store SharedStore) CacheOption {
	return func(cfg *cacheConfig) {
		cfg.shared = store
	}
}

// WithMeter injects a custom OpenTelemetry meter.
func WithMeter(m metric.Meter) CacheOption {
	return func(cfg *cacheConfig) {
		cfg.meter = m
	}
}

// NewCache wraps fetcher with a single-entry cache.
func NewCache(fetcher Fetcher, opts ...CacheOption) (*Cache, error) {
	if fetcher == nil {
		return nil, errors.New("exchangerates: fetcher is required")
	}
	cfg := cacheConfig{
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	meter := cfg.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentation)
	}

	lookups, lookupsErr := meter.Int64Counter(
		"exchangerates.cache.lookups",
		metric.WithDescription("Count of rate table lookups by cache result"),
	)
	if lookupsErr != nil {
		cfg.logger.Warn("exchangerates: unable to register lookup metric", zap.Error(lookupsErr))
	}
	latency, latencyErr := meter.Float64Histogram(
		"exchangerates.refresh.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds of rate table refreshes"),
	)
	if latencyErr != nil {
		cfg.logger.Warn("exchangerates: unable to register latency metric", zap.Error(latencyErr))
	}

	return &Cache{
		fetcher:        fetcher,
		shared:         cfg.shared,
		ttl:            cfg.ttl,
		now:            cfg.now,
		logger:         cfg.logger,
		lookups:        lookups,
		lookupsEnabled: lookupsErr == nil,
		latency:        latency,
		latencyEnabled: latencyErr == nil,
	}, nil
}

// Rates returns the cached table while it is fresh, refreshing it otherwise. Concurrent
// misses share one refresh. Failures are not cached.
func (c *Cache) Rates(ctx context.Context) (domain.RateTable, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if table, ok := c.cached(c.now()); ok {
		c.recordLookup(ctx, "hit")
		return table, nil
	}
	c.recordLookup(ctx, "miss")

	// The refresh outlives any single caller so a canceled request does not fail the
	// others waiting on the same flight.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.refresh(flightCtx)
	})

	select {
	case <-ctx.Done():
		return domain.RateTable{}, &FetchError{Kind: FetchErrorNetwork, Reason: "rate request was canceled", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return domain.RateTable{}, res.Err
		}
		return cloneTable(res.Val.(domain.RateTable)), nil
	}
}

// Invalidate drops the cached table so the next read refreshes it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.table = nil
	c.expiry = time.Time{}
	c.mu.Unlock()
}

func (c *Cache) cached(now time.Time) (domain.RateTable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.table == nil || !now.Before(c.expiry) {
		return domain.RateTable{}, false
	}
	return cloneTable(*c.table), true
}

func (c *Cache) refresh(ctx context.Context) (domain.RateTable, error) {
	start := c.now()
	if table, ok := c.cached(start); ok {
		return table, nil
	}

	if table, ok := c.loadShared(ctx, start); ok {
		c.recordLatency(ctx, start, "shared", nil)
		return table, nil
	}

	table, err := c.fetcher.FetchRates(ctx)
	if err != nil {
		c.recordLatency(ctx, start, "error", err)
		c.logger.Warn("exchangerates: refresh failed", zap.String("reason", Reason(err)), zap.Error(err))
		return domain.RateTable{}, err
	}

	c.store(table, c.now().Add(c.ttl))
	c.recordLatency(ctx, start, "remote", nil)
	c.logger.Debug("exchangerates: table refreshed", zap.Int("currencies", len(table.Rates)))

	if c.shared != nil {
		if err := c.shared.Save(ctx, table, c.ttl); err != nil {
			c.logger.Warn("exchangerates: shared cache save failed", zap.Error(err))
		}
	}
	return cloneTable(table), nil
}

func (c *Cache) loadShared(ctx context.Context, now time.Time) (domain.RateTable, bool) {
	if c.shared == nil {
		return domain.RateTable{}, false
	}
	table, ok, err := c.shared.Load(ctx)
	if err != nil {
		c.logger.Warn("exchangerates: shared cache load failed", zap.Error(err))
		return domain.RateTable{}, false
	}
	if !ok || len(table.Rates) == 0 {
		return domain.RateTable{}, false
	}
	expiry := table.FetchedAt.Add(c.ttl)
	if table.FetchedAt.IsZero() || !now.Before(expiry) {
		return domain.RateTable{}, false
	}
	c.store(table, expiry)
	return cloneTable(table), true
}

func (c *Cache) store(table domain.RateTable, expiry time.Time) {
	copied := cloneTable(table)
	c.mu.Lock()
	c.table = &copied
	c.expiry = expiry
	c.mu.Unlock()
}

func (c *Cache) recordLookup(ctx context.Context, result string) {
	if !c.lookupsEnabled {
		return
	}
	c.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (c *Cache) recordLatency(ctx context.Context, start time.Time, source string, err error) {
	if !c.latencyEnabled {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("source", source)}
	if err != nil {
		attrs = append(attrs, attribute.String("reason", Reason(err)))
	}
	elapsed := c.now().Sub(start)
	c.latency.Record(ctx, float64(elapsed)/float64(time.Millisecond), metric.WithAttributes(attrs...))
}

func cloneTable(table domain.RateTable) domain.RateTable {
	out := table
	if table.Rates != nil {
		out.Rates = make(map[domain.CurrencyCode]float64, len(table.Rates))
		for code, rate := range table.Rates {
			out.Rates[code] = rate
		}
	}
	return out
}
