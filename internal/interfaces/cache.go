package interfaces

import (
	"context"
	"time"

	"github.com/akylbek/payment-system/payway-gateway/internal/models"
)

// StatusCache keeps settled payments close to the status endpoint.
type StatusCache interface {
	Get(ctx context.Context, tranID string) (*models.Payment, bool)
	Set(ctx context.Context, payment *models.Payment) error
}

// IdempotencyStore remembers create responses by Idempotency-Key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool)
	Set(ctx context.Context, key string, resp *CachedResponse, ttl time.Duration) error
}

type CachedResponse struct {
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body"`
}
