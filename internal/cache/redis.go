package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payway-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/payway-gateway/internal/models"
	"github.com/akylbek/payment-system/payway-gateway/internal/telemetry"
)

const (
	statusKeyPrefix      = "payway:payment:"
	idempotencyKeyPrefix = "idempotency:"

	DefaultTTL = 24 * time.Hour
)

// NewRedisClient accepts either a redis:// URL or a bare host:port address.
func NewRedisClient(url string) (*redis.Client, error) {
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: url}), nil
}

// StatusCache stores settled payments. Pending payments are never cached since they still change.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &StatusCache{client: client, ttl: ttl}
}

func statusKey(tranID string) string {
	return statusKeyPrefix + tranID
}

func (c *StatusCache) Get(ctx context.Context, tranID string) (*models.Payment, bool) {
	data, err := c.client.Get(ctx, statusKey(tranID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			telemetry.Logger.Warn("Redis status lookup failed", zap.String("tran_id", tranID), zap.Error(err))
		}
		return nil, false
	}

	var payment models.Payment
	if err := json.Unmarshal(data, &payment); err != nil {
		telemetry.Logger.Warn("Corrupt cached payment", zap.String("tran_id", tranID), zap.Error(err))
		return nil, false
	}
	return &payment, true
}

func (c *StatusCache) Set(ctx context.Context, payment *models.Payment) error {
	if !payment.Status.IsTerminal() {
		return nil
	}
	data, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("encode payment %s: %w", payment.TranID, err)
	}
	return c.client.Set(ctx, statusKey(payment.TranID), data, c.ttl).Err()
}

// IdempotencyStore keeps create responses keyed by the client's Idempotency-Key.
type IdempotencyStore struct {
	client *redis.Client
}

func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

func idempotencyKey(key string) string {
	return idempotencyKeyPrefix + key
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (*interfaces.CachedResponse, bool) {
	data, err := s.client.Get(ctx, idempotencyKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			telemetry.Logger.Warn("Redis idempotency lookup failed", zap.Error(err))
		}
		return nil, false
	}

	var resp interfaces.CachedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

func (s *IdempotencyStore) Set(ctx context.Context, key string, resp *interfaces.CachedResponse, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, idempotencyKey(key), data, ttl).Err()
}
