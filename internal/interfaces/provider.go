package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/payway-gateway/internal/models"
	"github.com/akylbek/payment-system/payway-gateway/internal/payway"
)

// PaymentProvider submits purchases to PayWay and authenticates its callbacks.
type PaymentProvider interface {
	SubmitPurchase(ctx context.Context, req payway.PurchaseRequest) *payway.PurchaseResult
	VerifyCallback(payload models.CallbackPayload) bool
}
