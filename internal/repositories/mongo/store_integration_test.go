//go:build integration

package mongo

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
)

// Requires MONGO_URI pointing at a replica set, e.g. mongodb://localhost:27017/?replicaSet=rs0.
func TestOrderTransactionAgainstReplicaSet(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	database := fmt.Sprintf("orders_test_%d", time.Now().UnixNano())
	store, err := Connect(ctx, uri, database)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.client.Database(database).Drop(context.Background())
		_ = store.Close(context.Background())
	})

	// Collections cannot be created implicitly inside a transaction on older servers.
	require.NoError(t, store.Products().Upsert(ctx, domain.Product{ID: "prod-1", Title: "Brass desk lamp", UnitPrice: 1990, Quantity: 5}))
	_, err = store.orders.InsertOne(ctx, orderDocument{ID: "warmup"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.RunOrderTx(ctx, func(ctx context.Context, tx repositories.OrderTx) error {
				product, err := tx.GetProductForUpdate(ctx, "prod-1")
				if err != nil {
					return err
				}
				if err := tx.DecrementProductQuantity(ctx, product.ID, 3); err != nil {
					return err
				}
				return tx.InsertOrder(ctx, domain.Order{ID: fmt.Sprintf("order-%d", i), ProductID: product.ID, Quantity: 3, CreatedAt: time.Now()})
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, repositories.ErrorCode(err) == repositories.StoreErrorInsufficientStock ||
			repositories.ErrorCode(err) == repositories.StoreErrorConflict, "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	product, err := store.Products().FindByID(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 2, product.Quantity)
}
