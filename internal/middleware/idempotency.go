package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payway-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/payway-gateway/internal/telemetry"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"

	idempotencyTTL = 24 * time.Hour
)

// IdempotencyMiddleware replays the stored response for a repeated Idempotency-Key. Requests without
// the header, or without a store, pass straight through. Only 2xx responses are stored so failed
// attempts can be retried with the same key.
func IdempotencyMiddleware(store interfaces.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || store == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		if cached, ok := store.Get(ctx, key); ok {
			telemetry.Logger.Info("Replaying idempotent response", zap.String("idempotency_key", key))
			c.Header(ReplayedHeader, "true")
			c.Data(cached.StatusCode, "application/json; charset=utf-8", cached.Body)
			c.Abort()
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		resp := &interfaces.CachedResponse{StatusCode: status, Body: rec.body.Bytes()}
		if err := store.Set(ctx, key, resp, idempotencyTTL); err != nil {
			telemetry.Logger.Warn("Failed to store idempotent response",
				zap.String("idempotency_key", key),
				zap.Error(err),
			)
		}
	}
}

type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
