package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.TrustProxyHeaders {
		t.Error("expected proxy headers to be untrusted by default")
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Errorf("expected memory driver, got %s", cfg.Storage.Driver)
	}
	if cfg.Rates.URL != defaultRatesURL {
		t.Errorf("unexpected rates url %s", cfg.Rates.URL)
	}
	if cfg.Rates.FetchTimeout != 10*time.Second {
		t.Errorf("unexpected fetch timeout %s", cfg.Rates.FetchTimeout)
	}
	if cfg.Rates.TTL != time.Hour {
		t.Errorf("unexpected rates ttl %s", cfg.Rates.TTL)
	}
	if cfg.Pricing.DefaultTaxRate != 0.21 {
		t.Errorf("unexpected default tax rate %v", cfg.Pricing.DefaultTaxRate)
	}
	if cfg.Events.ProjectID != "" {
		t.Errorf("expected events disabled, got project %s", cfg.Events.ProjectID)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.Backend != "memory" {
		t.Errorf("expected memory idempotency backend, got %s", cfg.Idempotency.Backend)
	}
	if cfg.RateLimits.OrdersPerMinute != defaultRateLimitOrders {
		t.Errorf("unexpected orders rate limit %d", cfg.RateLimits.OrdersPerMinute)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                "9090",
		"API_SERVER_IDLE_TIMEOUT":        "2m",
		"API_SERVER_TRUST_PROXY_HEADERS": "true",
		"API_STORAGE_DRIVER":             "Postgres",
		"API_STORAGE_DSN":                "secret://db/dsn",
		"API_REDIS_ADDR":                 "localhost:6379",
		"API_REDIS_PASSWORD":             "sm://redis/password",
		"API_REDIS_DB":                   "2",
		"API_RATES_URL":                  "https://rates.example.com/daily.txt",
		"API_RATES_FETCH_TIMEOUT":        "3s",
		"API_RATES_TTL":                  "30m",
		"API_PRICING_DEFAULT_TAX_RATE":   "0.15",
		"API_EVENTS_PROJECT_ID":          "fapi-prod",
		"API_EVENTS_TOPIC":               "orders",
		"API_RATELIMIT_ORDERS_PER_MIN":   "30",
		"API_RATELIMIT_ORDERS_BURST":     "5",
		"API_IDEMPOTENCY_BACKEND":        "redis",
		"API_IDEMPOTENCY_HEADER":         "X-Idem-Key",
		"API_IDEMPOTENCY_TTL":            "48h",
	}
	secrets := map[string]string{
		"secret://db/dsn":         "postgres://orders@db/orders",
		"secret://redis/password": "hunter2",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", errors.New("not found")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if !cfg.Server.TrustProxyHeaders {
		t.Error("expected proxy headers to be trusted")
	}
	if cfg.Storage.Driver != DriverPostgres {
		t.Errorf("expected lower-cased driver, got %s", cfg.Storage.Driver)
	}
	if cfg.Storage.DSN != "postgres://orders@db/orders" {
		t.Errorf("expected resolved dsn, got %s", cfg.Storage.DSN)
	}
	if cfg.Redis.Password != "hunter2" {
		t.Errorf("expected resolved redis password via legacy scheme, got %s", cfg.Redis.Password)
	}
	if cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis db %d", cfg.Redis.DB)
	}
	if cfg.Rates.FetchTimeout != 3*time.Second || cfg.Rates.TTL != 30*time.Minute {
		t.Errorf("unexpected rates config %+v", cfg.Rates)
	}
	if cfg.Pricing.DefaultTaxRate != 0.15 {
		t.Errorf("unexpected tax rate %v", cfg.Pricing.DefaultTaxRate)
	}
	if cfg.Events.Topic != "orders" {
		t.Errorf("unexpected events topic %s", cfg.Events.Topic)
	}
	if cfg.RateLimits.OrdersPerMinute != 30 || cfg.RateLimits.Burst != 5 {
		t.Errorf("unexpected rate limits %+v", cfg.RateLimits)
	}
	if cfg.Idempotency.Backend != "redis" || cfg.Idempotency.TTL != 48*time.Hour {
		t.Errorf("unexpected idempotency config %+v", cfg.Idempotency)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "# local overrides\nexport API_SERVER_PORT=7070\nAPI_STORAGE_DRIVER=sqlite\nAPI_STORAGE_DSN=\"file:orders.db\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Storage.DSN != "file:orders.db" {
		t.Errorf("expected unquoted dsn, got %s", cfg.Storage.DSN)
	}
}

func TestLoadReportsEveryInvalidField(t *testing.T) {
	env := map[string]string{
		"API_STORAGE_DRIVER":           "postgres",
		"API_RATES_URL":                "ftp://rates",
		"API_RATES_TTL":                "-1m",
		"API_PRICING_DEFAULT_TAX_RATE": "abc",
		"API_IDEMPOTENCY_BACKEND":      "redis",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T (%v)", err, err)
	}
	for _, field := range []string{"Storage.DSN", "Rates.URL", "Rates.TTL", "Pricing.DefaultTaxRate", "Redis.Addr"} {
		if !slices.Contains(validation.Fields(), field) {
			t.Errorf("expected %s in %v", field, validation.Fields())
		}
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{"API_STORAGE_DRIVER": "cassandra"}), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if got := validation.Fields(); len(got) != 1 || got[0] != "Storage.Driver" {
		t.Fatalf("unexpected fields %v", got)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_STORAGE_DRIVER": "mongo",
		"API_MONGO_URI":      "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
	if !errors.Is(err, errSecretResolverNotConfigured) {
		t.Errorf("expected resolver not configured cause, got %v", err)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvMap(map[string]string{}),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Redis.Password", "Redis.Password"),
	)
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != redactSecretName("Redis.Password") {
		t.Fatalf("unexpected redacted names %v", got)
	}
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	defer func() {
		rec := recover()
		missing, ok := rec.(*MissingSecretsError)
		if !ok {
			t.Fatalf("expected MissingSecretsError panic, got %T", rec)
		}
		if names := missing.Names(); len(names) != 1 || names[0] != "Storage.DSN" {
			t.Fatalf("unexpected missing secrets %v", names)
		}
	}()

	_, _ = Load(context.Background(),
		WithEnvMap(map[string]string{}),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Storage.DSN"),
		WithPanicOnMissingSecrets(),
	)
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_STORAGE_DRIVER=sqlite\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_STORAGE_DRIVER", "postgres")
	t.Setenv("API_SECRET_PROJECT_ID", "fapi-prod")

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(map[string]string{"API_STORAGE_DRIVER": "mongo"}))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}
	if got := values["API_STORAGE_DRIVER"]; got != "mongo" {
		t.Fatalf("expected override driver, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRET_PROJECT_ID"]; got != "fapi-prod" {
		t.Fatalf("expected system env project, got %s", got)
	}
}
