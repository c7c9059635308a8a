package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/payway-gateway/internal/models"
)

// PaymentService is the lifecycle surface the HTTP handlers drive.
type PaymentService interface {
	CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResult, error)
	GetStatus(ctx context.Context, tranID string) (*models.Payment, error)
	HandleCallback(ctx context.Context, payload models.CallbackPayload) (*models.CallbackResult, error)
	HandleCancel(ctx context.Context, tranID string) (*models.CancelResult, error)
}
