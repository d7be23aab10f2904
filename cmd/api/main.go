package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Shelia5K/FAPI-order-service/internal/di"
	"github.com/Shelia5K/FAPI-order-service/internal/exchangerates"
	"github.com/Shelia5K/FAPI-order-service/internal/handlers"
	"github.com/Shelia5K/FAPI-order-service/internal/platform/config"
	"github.com/Shelia5K/FAPI-order-service/internal/platform/events"
	"github.com/Shelia5K/FAPI-order-service/internal/platform/idempotency"
	"github.com/Shelia5K/FAPI-order-service/internal/platform/observability"
	"github.com/Shelia5K/FAPI-order-service/internal/platform/secrets"
	"github.com/Shelia5K/FAPI-order-service/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues["API_LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	store, err := di.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	logger.Info("storage ready", zap.String("driver", cfg.Storage.Driver))

	var redisClient *redis.Client
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
	}

	rateCache, err := newRateCache(cfg, redisClient, logger.Named("exchangerates"))
	if err != nil {
		logger.Fatal("failed to initialise exchange rate cache", zap.Error(err))
	}

	opts := di.Options{
		Rates: rateCache,
		RatesCheck: func(ctx context.Context) error {
			_, err := rateCache.Rates(ctx)
			return err
		},
		Build:  buildInfoFromEnv(envValues, startedAt),
		Logger: func(component string) func(context.Context, string, map[string]any) { return observability.ServiceLogger(logger, component) },
	}

	var pubsubClient *pubsub.Client
	var publisher *events.PubSubOrderPublisher
	if strings.TrimSpace(cfg.Events.ProjectID) != "" {
		pubsubClient, err = events.NewClient(ctx, cfg.Events)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		publisher, err = events.NewPubSubOrderPublisher(pubsubClient.Topic(cfg.Events.Topic))
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
		opts.Events = publisher
		logger.Info("order events enabled", zap.String("topic", cfg.Events.Topic))
	}

	container, err := di.NewContainer(cfg, store, opts)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}

	idempotencyStore, err := newIdempotencyStore(cfg, redisClient)
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithMaxBodyBytes(handlers.MaxOrderRequestBytes),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			idempotency.RunCleanup(cleanupCtx, idempotencyStore, cfg.Idempotency.CleanupInterval, cfg.Idempotency.CleanupBatchSize, logger.Named("idempotency"))
		}()
	}

	orderHandlers := handlers.NewOrderHandlers(
		container.Services.Orders,
		container.Services.Summaries,
		handlers.WithOrderIdempotency(idempotencyMiddleware),
		handlers.WithOrderRateLimit(cfg.RateLimits.OrdersPerMinute, cfg.RateLimits.Burst),
	)
	router := handlers.NewRouter(
		handlers.WithTrustedProxyHeaders(cfg.Server.TrustProxyHeaders),
		handlers.WithMiddlewares(
			observability.Trace(traceProjectID(cfg)),
			observability.InjectLogger(logger.Named("http")),
			observability.RequestLogger,
			observability.Recovery,
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(handlers.WithHealthSystemService(container.Services.System))),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithProductRoutes(handlers.NewProductHandlers(container.Services.Catalog).Routes),
		handlers.WithPricingRoutes(handlers.NewPricingHandlers(container.Services.Summaries).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("order service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	cleanupCancel()
	cleanupWG.Wait()

	if publisher != nil {
		publisher.Stop()
	}
	if pubsubClient != nil {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}
	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("storage close error", zap.Error(err))
	}
}

func newRateCache(cfg config.Config, redisClient *redis.Client, logger *zap.Logger) (*exchangerates.Cache, error) {
	client, err := exchangerates.NewClient(cfg.Rates.URL, exchangerates.WithFetchTimeout(cfg.Rates.FetchTimeout))
	if err != nil {
		return nil, err
	}
	opts := []exchangerates.CacheOption{
		exchangerates.WithTTL(cfg.Rates.TTL),
		exchangerates.WithLogger(logger),
	}
	if redisClient != nil {
		shared, err := exchangerates.NewRedisStore(redisClient, cfg.Redis.RatesKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, exchangerates.WithSharedStore(shared))
	}
	logger.Info("exchange rate source configured", zap.String("url", client.URL()), zap.Duration("ttl", cfg.Rates.TTL))
	return exchangerates.NewCache(client, opts...)
}

func newIdempotencyStore(cfg config.Config, redisClient *redis.Client) (idempotency.Store, error) {
	switch cfg.Idempotency.Backend {
	case "redis":
		if redisClient == nil {
			return nil, errors.New("redis idempotency backend requires API_REDIS_ADDR")
		}
		return idempotency.NewRedisStore(redisClient, idempotency.DefaultRedisPrefix)
	case "", "memory":
		return idempotency.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported idempotency backend %q", cfg.Idempotency.Backend)
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
	}
	if path := lookup("API_SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	project := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIRESTORE_PROJECT_ID")
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func buildInfoFromEnv(env map[string]string, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(env["API_ENVIRONMENT"])
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Events.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}
