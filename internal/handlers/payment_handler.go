package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payway-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/payway-gateway/internal/models"
	"github.com/akylbek/payment-system/payway-gateway/internal/service"
	"github.com/akylbek/payment-system/payway-gateway/internal/telemetry"
)

type PaymentHandler struct {
	service interfaces.PaymentService
	// exposeErrors adds provider error detail to 500 responses; off in release mode.
	exposeErrors bool
}

func NewPaymentHandler(svc interfaces.PaymentService, exposeErrors bool) *PaymentHandler {
	return &PaymentHandler{
		service:      svc,
		exposeErrors: exposeErrors,
	}
}

func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		telemetry.Logger.Warn("Invalid payment request", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"message": "Invalid request body",
			"errors":  gin.H{"body": err.Error()},
		})
		return
	}

	result, err := h.service.CreatePayment(ctx, req)

	var (
		validationErr *service.ValidationError
		providerErr   *service.ProviderError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"message": "Validation failed",
			"errors":  validationErr.Fields,
		})
		return
	case errors.As(err, &providerErr):
		body := gin.H{"success": false, "message": "Failed to create payment"}
		if h.exposeErrors {
			body["error"] = providerErr.Detail
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	case err != nil:
		telemetry.Logger.Error("Failed to create payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create payment"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Payment created successfully",
		"data": gin.H{
			"tran_id":         result.TranID,
			"amount":          result.Amount.StringFixed(2),
			"currency":        result.Currency,
			"payment_status":  result.Status,
			"qr_string":       result.QRString,
			"abapay_deeplink": result.DeepLink,
			"payment_option":  result.PaymentOption,
		},
	})
}

func (h *PaymentHandler) GetStatus(c *gin.Context) {
	tranID := c.Query("tran_id")
	if tranID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"message": "Validation failed",
			"errors":  gin.H{"tran_id": "The tran_id field is required."},
		})
		return
	}

	payment, err := h.service.GetStatus(c.Request.Context(), tranID)
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Payment not found"})
		return
	}
	if err != nil {
		telemetry.Logger.Error("Failed to fetch payment", zap.String("tran_id", tranID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch payment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"tran_id":        payment.TranID,
			"payment_status": payment.Status,
			"amount":         payment.Amount.StringFixed(2),
			"currency":       payment.Currency,
			"paid_at":        payment.PaidAt,
		},
	})
}
