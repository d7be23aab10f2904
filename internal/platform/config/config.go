package config

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultShutdownTimeout     = 20 * time.Second
	defaultStorageDriver       = DriverMemory
	defaultMongoDatabase       = "orders"
	defaultRedisKey            = "fapi:exchangerates:table"
	defaultRatesURL            = "https://www.cnb.cz/cs/financni_trhy/devizovy_trh/kurzy_devizoveho_trhu/denni_kurz.txt"
	defaultRatesFetchTimeout   = 10 * time.Second
	defaultRatesTTL            = time.Hour
	defaultTaxRate             = 0.21
	defaultEventsTopic         = "order-events"
	defaultRateLimitOrders     = 60
	defaultRateLimitBurst      = 10
	defaultIdempotencyHeader   = "Idempotency-Key"
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultIdempotencyInterval = time.Hour
	defaultIdempotencyBatch    = 200
	defaultIdempotencyBackend  = "memory"
)

// Storage drivers accepted by API_STORAGE_DRIVER.
const (
	DriverMemory    = "memory"
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverFirestore = "firestore"
	DriverMongo     = "mongo"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Firestore   FirestoreConfig
	Mongo       MongoConfig
	Redis       RedisConfig
	Rates       RatesConfig
	Pricing     PricingConfig
	Events      EventsConfig
	RateLimits  RateLimitConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// TrustProxyHeaders takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// MongoConfig points at a replica set; transactions require one.
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig enables the shared exchange-rate tier and the Redis idempotency store.
// An empty Addr disables both.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	RatesKey string
}

// RatesConfig configures the exchange-rate source and cache.
type RatesConfig struct {
	URL          string
	FetchTimeout time.Duration
	TTL          time.Duration
}

// PricingConfig holds VAT defaults.
type PricingConfig struct {
	DefaultTaxRate float64
}

// EventsConfig enables order.created publishing. An empty ProjectID disables it.
type EventsConfig struct {
	ProjectID    string
	Topic        string
	EmulatorHost string
}

// RateLimitConfig controls request throttling on order creation.
type RateLimitConfig struct {
	OrdersPerMinute int
	Burst           int
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Backend          string
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks config fields (e.g. "Storage.DSN") whose resolved value must be non-empty.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// WithPanicOnMissingSecrets causes Load to panic when required secrets are missing.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) {
		o.panicOnMissingSecrets = true
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		opt(&options)
	}

	lookup, err := options.lookup()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:              stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:       durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:      durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:       durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout:   durationWithDefault(lookup, "API_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
			TrustProxyHeaders: boolWithDefault(lookup, "API_SERVER_TRUST_PROXY_HEADERS", false),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(stringWithDefault(lookup, "API_STORAGE_DRIVER", defaultStorageDriver)),
			DSN:         stringWithDefault(lookup, "API_STORAGE_DSN", ""),
			AutoMigrate: boolWithDefault(lookup, "API_STORAGE_AUTO_MIGRATE", true),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Mongo: MongoConfig{
			URI:      stringWithDefault(lookup, "API_MONGO_URI", ""),
			Database: stringWithDefault(lookup, "API_MONGO_DATABASE", defaultMongoDatabase),
		},
		Redis: RedisConfig{
			Addr:     stringWithDefault(lookup, "API_REDIS_ADDR", ""),
			Password: stringWithDefault(lookup, "API_REDIS_PASSWORD", ""),
			DB:       intWithDefault(lookup, "API_REDIS_DB", 0),
			RatesKey: stringWithDefault(lookup, "API_REDIS_RATES_KEY", defaultRedisKey),
		},
		Rates: RatesConfig{
			URL:          stringWithDefault(lookup, "API_RATES_URL", defaultRatesURL),
			FetchTimeout: durationWithDefault(lookup, "API_RATES_FETCH_TIMEOUT", defaultRatesFetchTimeout),
			TTL:          durationWithDefault(lookup, "API_RATES_TTL", defaultRatesTTL),
		},
		Pricing: PricingConfig{
			DefaultTaxRate: floatWithDefault(lookup, "API_PRICING_DEFAULT_TAX_RATE", defaultTaxRate),
		},
		Events: EventsConfig{
			ProjectID:    stringWithDefault(lookup, "API_EVENTS_PROJECT_ID", ""),
			Topic:        stringWithDefault(lookup, "API_EVENTS_TOPIC", defaultEventsTopic),
			EmulatorHost: stringWithDefault(lookup, "API_EVENTS_EMULATOR_HOST", ""),
		},
		RateLimits: RateLimitConfig{
			OrdersPerMinute: intWithDefault(lookup, "API_RATELIMIT_ORDERS_PER_MIN", defaultRateLimitOrders),
			Burst:           intWithDefault(lookup, "API_RATELIMIT_ORDERS_BURST", defaultRateLimitBurst),
		},
		Idempotency: IdempotencyConfig{
			Backend:          strings.ToLower(stringWithDefault(lookup, "API_IDEMPOTENCY_BACKEND", defaultIdempotencyBackend)),
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatch),
		},
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Storage.DSN", &cfg.Storage.DSN},
		{"Mongo.URI", &cfg.Mongo.URI},
		{"Redis.Password", &cfg.Redis.Password},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}

	return cfg, nil
}

func (o loaderOptions) lookup() (func(string) (string, bool), error) {
	dotEnvValues, err := loadDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		if o.envMap != nil {
			if value, ok := o.envMap[key]; ok {
				return value, true
			}
		}
		if o.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}

	switch cfg.Storage.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			invalid = append(invalid, "Storage.DSN")
		}
	case DriverFirestore:
		if cfg.Firestore.ProjectID == "" {
			invalid = append(invalid, "Firestore.ProjectID")
		}
	case DriverMongo:
		if cfg.Mongo.URI == "" {
			invalid = append(invalid, "Mongo.URI")
		}
		if cfg.Mongo.Database == "" {
			invalid = append(invalid, "Mongo.Database")
		}
	default:
		invalid = append(invalid, "Storage.Driver")
	}

	if u, err := url.Parse(cfg.Rates.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		invalid = append(invalid, "Rates.URL")
	}
	if cfg.Rates.FetchTimeout <= 0 {
		invalid = append(invalid, "Rates.FetchTimeout")
	}
	if cfg.Rates.TTL <= 0 {
		invalid = append(invalid, "Rates.TTL")
	}
	if rate := cfg.Pricing.DefaultTaxRate; math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		invalid = append(invalid, "Pricing.DefaultTaxRate")
	}
	if cfg.Events.ProjectID != "" && strings.TrimSpace(cfg.Events.Topic) == "" {
		invalid = append(invalid, "Events.Topic")
	}
	if cfg.RateLimits.OrdersPerMinute < 0 {
		invalid = append(invalid, "RateLimits.OrdersPerMinute")
	}
	if cfg.RateLimits.OrdersPerMinute > 0 && cfg.RateLimits.Burst <= 0 {
		invalid = append(invalid, "RateLimits.Burst")
	}

	switch cfg.Idempotency.Backend {
	case "memory":
	case "redis":
		if cfg.Redis.Addr == "" {
			invalid = append(invalid, "Redis.Addr")
		}
	default:
		invalid = append(invalid, "Idempotency.Backend")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		invalid = append(invalid, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		invalid = append(invalid, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		invalid = append(invalid, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		invalid = append(invalid, "Idempotency.CleanupBatchSize")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}
