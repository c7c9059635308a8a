package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/payway-gateway/internal/models"
)

// PaymentRepository defines the contract for payment data access
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByTranID(ctx context.Context, tranID string) (*models.Payment, error)
	// Update merges non-nil fields. With ExpectedStatus set it is a check-and-set on the current status.
	Update(ctx context.Context, tranID string, update models.PaymentUpdate) error
}
