// Command seed loads a YAML product catalogue into the configured storage backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Shelia5K/FAPI-order-service/internal/di"
	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	"github.com/Shelia5K/FAPI-order-service/internal/platform/config"
	"github.com/Shelia5K/FAPI-order-service/internal/platform/observability"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
)

func main() {
	path := flag.String("file", "cmd/seed/products.example.yaml", "path to the products YAML file")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall seeding timeout")
	flag.Parse()

	logger, err := observability.NewLogger(os.Getenv("API_LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("seed")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	err = run(ctx, logger, *path)
	cancel()
	if err != nil {
		logger.Error("seeding failed", zap.String("file", *path), zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context, logger *zap.Logger, path string) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	products, err := parseCatalog(file, time.Now())
	_ = file.Close()
	if err != nil {
		return err
	}

	store, err := di.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()

	count, err := seed(ctx, store.Products(), products)
	if err != nil {
		return fmt.Errorf("seeded %d of %d products: %w", count, len(products), err)
	}
	logger.Info("catalog seeded", zap.String("driver", cfg.Storage.Driver), zap.Int("products", count))
	return nil
}

func seed(ctx context.Context, repo repositories.ProductRepository, products []domain.Product) (int, error) {
	for i, product := range products {
		if err := repo.Upsert(ctx, product); err != nil {
			return i, fmt.Errorf("upsert %s: %w", product.ID, err)
		}
	}
	return len(products), nil
}
