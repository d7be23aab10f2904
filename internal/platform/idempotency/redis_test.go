package idempotency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping redis-backed test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStoreLifecycle(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	store, err := NewRedisStore(client, fmt.Sprintf("test:idempotency:%d:", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}

	reservation, err := store.Reserve(ctx, "key-1|c", "fp", fixedTime, time.Minute)
	if err != nil || reservation.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %+v (%v)", reservation, err)
	}
	t.Cleanup(func() { client.Del(context.Background(), store.redisKey("key-1|c")) })

	reservation, err = store.Reserve(ctx, "key-1|c", "fp", fixedTime, time.Minute)
	if err != nil || reservation.State != ReservationStatePending {
		t.Fatalf("expected pending reservation, got %+v (%v)", reservation, err)
	}
	if _, err := store.Reserve(ctx, "key-1|c", "other", fixedTime, time.Minute); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}

	resp := Response{Status: http.StatusCreated, Headers: http.Header{"Content-Type": {"application/json"}}, Body: []byte(`{"ok":true}`)}
	if err := store.SaveResponse(ctx, "key-1|c", "fp", resp, fixedTime, time.Minute); err != nil {
		t.Fatalf("SaveResponse: %v", err)
	}
	reservation, err = store.Reserve(ctx, "key-1|c", "fp", fixedTime, time.Minute)
	if err != nil || reservation.State != ReservationStateCompleted {
		t.Fatalf("expected completed reservation, got %+v (%v)", reservation, err)
	}
	if string(reservation.Record.ResponseBody) != `{"ok":true}` || reservation.Record.ResponseStatus != http.StatusCreated {
		t.Fatalf("unexpected stored response %+v", reservation.Record)
	}

	if err := store.Release(ctx, "key-1|c", "other"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if n, _ := client.Exists(ctx, store.redisKey("key-1|c")).Result(); n != 1 {
		t.Fatal("release with a foreign fingerprint must keep the record")
	}
	if err := store.Release(ctx, "key-1|c", "fp"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if n, _ := client.Exists(ctx, store.redisKey("key-1|c")).Result(); n != 0 {
		t.Fatal("expected record released")
	}
}

func TestNewRedisStoreRequiresClient(t *testing.T) {
	if _, err := NewRedisStore(nil, ""); err == nil {
		t.Fatal("expected error for nil client")
	}
}
