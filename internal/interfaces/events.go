package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/payway-gateway/internal/models"
)

type EventPublisher interface {
	Publish(ctx context.Context, event models.PaymentEvent) error
	Close() error
}
