package di

import (
	"context"
	"fmt"

	"github.com/Shelia5K/FAPI-order-service/internal/platform/config"
	pfirestore "github.com/Shelia5K/FAPI-order-service/internal/platform/firestore"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
	firestorerepo "github.com/Shelia5K/FAPI-order-service/internal/repositories/firestore"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories/memory"
	mongorepo "github.com/Shelia5K/FAPI-order-service/internal/repositories/mongo"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories/sqlstore"
)

// OpenStore connects the backend selected by cfg.Storage.Driver. SQL backends are migrated
// when AutoMigrate is set.
func OpenStore(ctx context.Context, cfg config.Config) (repositories.Store, error) {
	switch cfg.Storage.Driver {
	case "", config.DriverMemory:
		return memory.New(), nil
	case config.DriverPostgres, config.DriverSQLite:
		dialect := sqlstore.DialectPostgres
		if cfg.Storage.Driver == config.DriverSQLite {
			dialect = sqlstore.DialectSQLite
		}
		store, err := sqlstore.Open(ctx, dialect, cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.Storage.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				_ = store.Close(ctx)
				return nil, fmt.Errorf("migrate %s schema: %w", dialect, err)
			}
		}
		return store, nil
	case config.DriverFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		if _, err := provider.Client(ctx); err != nil {
			return nil, fmt.Errorf("initialise firestore client: %w", err)
		}
		store, err := firestorerepo.New(provider)
		if err != nil {
			_ = provider.Close(ctx)
			return nil, err
		}
		return store, nil
	case config.DriverMongo:
		return mongorepo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
