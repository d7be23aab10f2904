package exchangerates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
)

// DefaultRedisKey holds the shared rate table.
const DefaultRedisKey = "fapi:exchangerates:table"

// RedisStore shares the fetched table between replicas.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

type redisTable struct {
	Rates     map[string]float64 `json:"rates"`
	FetchedAt time.Time          `json:"fetchedAt"`
	Source    string             `json:"source,omitempty"`
}

// NewRedisStore stores the table under key, or DefaultRedisKey when key is blank.
func NewRedisStore(client redis.Cmdable, key string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("exchangerates: redis client is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}, nil
}

// Load implements SharedStore.
func (s *RedisStore) Load(ctx context.Context) (domain.RateTable, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RateTable{}, false, nil
	}
	if err != nil {
		return domain.RateTable{}, false, fmt.Errorf("exchangerates: redis get: %w", err)
	}

	var payload redisTable
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.RateTable{}, false, fmt.Errorf("exchangerates: decode shared table: %w", err)
	}
	table := domain.RateTable{
		Rates:     make(map[domain.CurrencyCode]float64, len(payload.Rates)),
		FetchedAt: payload.FetchedAt,
		Source:    payload.Source,
	}
	for code, rate := range payload.Rates {
		table.Rates[domain.CurrencyCode(code)] = rate
	}
	return table, true, nil
}

// Save implements SharedStore.
func (s *RedisStore) Save(ctx context.Context, table domain.RateTable, ttl time.Duration) error {
	payload := redisTable{
		Rates:     make(map[string]float64, len(table.Rates)),
		FetchedAt: table.FetchedAt,
		Source:    table.Source,
	}
	for code, rate := range table.Rates {
		payload.Rates[string(code)] = rate
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("exchangerates: encode shared table: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("exchangerates: redis set: %w", err)
	}
	return nil
}
