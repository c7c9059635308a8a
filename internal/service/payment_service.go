package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payway-gateway/internal/config"
	"github.com/akylbek/payment-system/payway-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/payway-gateway/internal/models"
	"github.com/akylbek/payment-system/payway-gateway/internal/payway"
	"github.com/akylbek/payment-system/payway-gateway/internal/repository"
	"github.com/akylbek/payment-system/payway-gateway/internal/telemetry"
)

const (
	tracerName        = "payway-gateway/service"
	tranIDPrefix      = "TXN"
	tranIDTokenLength = 17
	maxTranIDAttempts = 3

	// PayWay reports an approved payment with status "0".
	callbackStatusApproved = "0"
)

// PaymentService drives the payment lifecycle: create, provider callback, cancel and status lookups.
type PaymentService struct {
	repo      interfaces.PaymentRepository
	provider  interfaces.PaymentProvider
	publisher interfaces.EventPublisher
	cache     interfaces.StatusCache
	hashMode  string
	now       func() time.Time
	newTranID func() string
}

type Option func(*PaymentService)

// WithStatusCache enables the settled-payment cache used by GetStatus.
func WithStatusCache(cache interfaces.StatusCache) Option {
	return func(s *PaymentService) { s.cache = cache }
}

func WithClock(now func() time.Time) Option {
	return func(s *PaymentService) { s.now = now }
}

func WithTranIDGenerator(gen func() string) Option {
	return func(s *PaymentService) { s.newTranID = gen }
}

func NewPaymentService(
	repo interfaces.PaymentRepository,
	provider interfaces.PaymentProvider,
	publisher interfaces.EventPublisher,
	cfg config.PayWay,
	opts ...Option,
) *PaymentService {
	s := &PaymentService{
		repo:      repo,
		provider:  provider,
		publisher: publisher,
		hashMode:  cfg.CallbackHashMode,
		now:       time.Now,
		newTranID: NewTranID,
	}
	if s.hashMode == "" {
		s.hashMode = config.HashModeLog
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewTranID returns "TXN" followed by 17 uppercase alphanumerics.
func NewTranID() string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return tranIDPrefix + token[:tranIDTokenLength]
}

func (s *PaymentService) CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResult, error) {
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "payment.create")
	defer span.End()

	if err := validateCreateRequest(req); err != nil {
		telemetry.PaymentsCreated.WithLabelValues("invalid").Inc()
		telemetry.Logger.Warn("Invalid payment request",
			zap.Error(err),
			zap.String("trace_id", telemetry.TraceID(ctx)),
		)
		return nil, err
	}

	payment := &models.Payment{
		Status:        models.StatusPending,
		Amount:        req.Amount.Round(2),
		Currency:      models.CurrencyUSD,
		PaymentOption: models.OptionKHQRDeeplink,
		UserID:        req.UserID,
		BookingID:     req.BookingID,
	}
	if req.Currency != "" {
		payment.Currency = models.Currency(req.Currency)
	}
	if req.PaymentOption != "" {
		payment.PaymentOption = models.PaymentOption(req.PaymentOption)
	}

	if err := s.insert(ctx, payment); err != nil {
		telemetry.PaymentsCreated.WithLabelValues("error").Inc()
		telemetry.Logger.Error("Failed to save payment",
			zap.Error(err),
			zap.String("trace_id", telemetry.TraceID(ctx)),
		)
		span.SetStatus(codes.Error, "persist failed")
		return nil, fmt.Errorf("create payment: %w", err)
	}
	span.SetAttributes(attribute.String("payway.tran_id", payment.TranID))

	telemetry.Logger.Info("Creating payment",
		zap.String("tran_id", payment.TranID),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("currency", string(payment.Currency)),
		zap.String("trace_id", telemetry.TraceID(ctx)),
	)

	purchase := payway.PurchaseRequest{
		TranID:         payment.TranID,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		PaymentOption:  payment.PaymentOption,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		Items:          req.Items,
		ReturnDeeplink: req.ReturnDeeplink,
	}
	if req.Lifetime != nil {
		purchase.Lifetime = *req.Lifetime
	}

	result := s.provider.SubmitPurchase(ctx, purchase)
	if !result.Success {
		telemetry.PaymentsCreated.WithLabelValues("provider_error").Inc()
		telemetry.Logger.Error("PayWay rejected purchase",
			zap.String("tran_id", payment.TranID),
			zap.Int("status_code", result.StatusCode),
			zap.String("error", result.Error),
		)
		span.SetStatus(codes.Error, "provider failure")
		return nil, &ProviderError{StatusCode: result.StatusCode, Detail: result.Error}
	}

	var update models.PaymentUpdate
	if result.Data != nil {
		if result.Data.QRString != "" {
			update.QRString = &result.Data.QRString
		}
		if result.Data.ABAPayDeeplink != "" {
			update.DeepLink = &result.Data.ABAPayDeeplink
		}
	}
	if update.QRString != nil || update.DeepLink != nil {
		pending := models.StatusPending
		update.ExpectedStatus = &pending
		err := s.repo.Update(ctx, payment.TranID, update)
		switch {
		case err == nil:
			update.Apply(payment)
		case errors.Is(err, repository.ErrStatusConflict):
			// settled by a callback before the purchase response was stored
			current, err := s.repo.GetByTranID(ctx, payment.TranID)
			if err != nil {
				telemetry.PaymentsCreated.WithLabelValues("error").Inc()
				return nil, fmt.Errorf("reload payment %s: %w", payment.TranID, err)
			}
			telemetry.Logger.Warn("Payment settled before checkout data was stored",
				zap.String("tran_id", payment.TranID),
				zap.String("status", string(current.Status)),
			)
			payment = current
		default:
			telemetry.PaymentsCreated.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("store checkout data for %s: %w", payment.TranID, err)
		}
	}

	telemetry.PaymentsCreated.WithLabelValues("success").Inc()
	s.publish(ctx, models.EventPaymentCreated, payment, "")

	telemetry.Logger.Info("Payment created successfully",
		zap.String("tran_id", payment.TranID),
	)

	return &models.CreatePaymentResult{
		TranID:        payment.TranID,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		Status:        payment.Status,
		QRString:      update.QRString,
		DeepLink:      update.DeepLink,
		PaymentOption: payment.PaymentOption,
	}, nil
}

// insert stores payment under a fresh transaction id, drawing a new one on collision.
func (s *PaymentService) insert(ctx context.Context, payment *models.Payment) error {
	for attempt := 1; ; attempt++ {
		payment.TranID = s.newTranID()
		err := s.repo.Create(ctx, payment)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateTranID) || attempt == maxTranIDAttempts {
			return err
		}
		telemetry.Logger.Warn("Transaction id collision, regenerating",
			zap.String("tran_id", payment.TranID),
			zap.Int("attempt", attempt),
		)
	}
}

// HandleCallback applies a PayWay pushback. Business outcomes are reported in the result; the error is
// reserved for storage faults.
func (s *PaymentService) HandleCallback(ctx context.Context, p models.CallbackPayload) (*models.CallbackResult, error) {
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "payment.callback")
	defer span.End()
	span.SetAttributes(
		attribute.String("payway.tran_id", p.TranID),
		attribute.String("payway.status", p.Status),
	)

	telemetry.Logger.Info("PayWay callback received",
		zap.String("tran_id", p.TranID),
		zap.String("status", p.Status),
		zap.String("amount", p.Amount),
		zap.String("trace_id", telemetry.TraceID(ctx)),
	)

	if p.TranID == "" {
		telemetry.CallbacksReceived.WithLabelValues(string(models.CallbackNotFound)).Inc()
		telemetry.Logger.Warn("PayWay callback without tran_id")
		return &models.CallbackResult{Outcome: models.CallbackNotFound, Message: "Missing tran_id"}, nil
	}

	payment, err := s.repo.GetByTranID(ctx, p.TranID)
	if errors.Is(err, repository.ErrNotFound) {
		telemetry.CallbacksReceived.WithLabelValues(string(models.CallbackNotFound)).Inc()
		telemetry.Logger.Warn("PayWay callback for unknown payment", zap.String("tran_id", p.TranID))
		return &models.CallbackResult{Outcome: models.CallbackNotFound, Message: "Payment not found"}, nil
	}
	if err != nil {
		span.SetStatus(codes.Error, "lookup failed")
		return nil, fmt.Errorf("load payment %s: %w", p.TranID, err)
	}

	if !s.signatureAccepted(p) {
		telemetry.CallbacksReceived.WithLabelValues(string(models.CallbackInvalidSignature)).Inc()
		return &models.CallbackResult{
			Outcome: models.CallbackInvalidSignature,
			Message: "Invalid signature",
			Payment: payment,
		}, nil
	}

	if !amountMatches(p.Amount, payment.Amount) {
		telemetry.Logger.Warn("PayWay callback amount mismatch",
			zap.String("tran_id", p.TranID),
			zap.String("callback_amount", p.Amount),
			zap.String("stored_amount", payment.Amount.StringFixed(2)),
		)
	}

	if payment.Status.IsTerminal() {
		return s.settledResult(payment), nil
	}

	next := models.StatusFailed
	if p.Status == callbackStatusApproved {
		next = models.StatusPaid
	}

	pending := models.StatusPending
	update := models.PaymentUpdate{
		Status:         &next,
		CallbackData:   callbackSnapshot(p),
		ExpectedStatus: &pending,
	}
	if next == models.StatusPaid {
		paidAt := s.now().UTC()
		update.PaidAt = &paidAt
	}

	err = s.repo.Update(ctx, p.TranID, update)
	if errors.Is(err, repository.ErrStatusConflict) {
		current, err := s.repo.GetByTranID(ctx, p.TranID)
		if err != nil {
			return nil, fmt.Errorf("reload payment %s: %w", p.TranID, err)
		}
		return s.settledResult(current), nil
	}
	if err != nil {
		span.SetStatus(codes.Error, "update failed")
		return nil, fmt.Errorf("settle payment %s: %w", p.TranID, err)
	}

	update.Apply(payment)
	s.afterTransition(ctx, payment, models.StatusPending)

	if next == models.StatusPaid {
		telemetry.CallbacksReceived.WithLabelValues(string(models.CallbackPaid)).Inc()
		return &models.CallbackResult{
			Outcome: models.CallbackPaid,
			Success: true,
			Message: "Payment successful",
			Payment: payment,
		}, nil
	}

	telemetry.CallbacksReceived.WithLabelValues(string(models.CallbackFailed)).Inc()
	return &models.CallbackResult{
		Outcome: models.CallbackFailed,
		Message: "Payment failed",
		Payment: payment,
	}, nil
}

// signatureAccepted applies the configured hash mode. In log mode a mismatch is recorded and tolerated.
func (s *PaymentService) signatureAccepted(p models.CallbackPayload) bool {
	if s.hashMode == config.HashModeOff {
		return true
	}
	if s.provider.VerifyCallback(p) {
		return true
	}

	telemetry.Logger.Warn("PayWay callback hash mismatch",
		zap.String("tran_id", p.TranID),
		zap.String("mode", s.hashMode),
		zap.Bool("hash_present", p.Hash != ""),
	)
	return s.hashMode != config.HashModeEnforce
}

// amountMatches compares a callback amount with the stored one. An absent amount is not a mismatch.
func amountMatches(reported string, stored decimal.Decimal) bool {
	if reported == "" {
		return true
	}
	d, err := decimal.NewFromString(reported)
	return err == nil && d.Equal(stored)
}

func (s *PaymentService) settledResult(payment *models.Payment) *models.CallbackResult {
	telemetry.CallbacksReceived.WithLabelValues(string(models.CallbackAlreadySettled)).Inc()
	telemetry.Logger.Info("PayWay callback for settled payment",
		zap.String("tran_id", payment.TranID),
		zap.String("status", string(payment.Status)),
	)
	return &models.CallbackResult{
		Outcome: models.CallbackAlreadySettled,
		Success: payment.Status == models.StatusPaid,
		Message: "Payment already processed",
		Payment: payment,
	}
}

func callbackSnapshot(p models.CallbackPayload) json.RawMessage {
	if len(p.Raw) > 0 {
		return p.Raw
	}
	raw, _ := json.Marshal(map[string]string{
		"tran_id":  p.TranID,
		"status":   p.Status,
		"amount":   p.Amount,
		"req_time": p.ReqTime,
	})
	return raw
}

// HandleCancel expires a pending payment. Unknown or already settled payments are left alone.
func (s *PaymentService) HandleCancel(ctx context.Context, tranID string) (*models.CancelResult, error) {
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "payment.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("payway.tran_id", tranID))

	result := &models.CancelResult{TranID: tranID}
	if tranID == "" {
		telemetry.Logger.Warn("PayWay cancel without tran_id")
		return result, nil
	}

	payment, err := s.repo.GetByTranID(ctx, tranID)
	if errors.Is(err, repository.ErrNotFound) {
		telemetry.Logger.Warn("PayWay cancel for unknown payment", zap.String("tran_id", tranID))
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load payment %s: %w", tranID, err)
	}
	result.Status = payment.Status

	if payment.Status != models.StatusPending {
		return result, nil
	}

	expired, pending := models.StatusExpired, models.StatusPending
	err = s.repo.Update(ctx, tranID, models.PaymentUpdate{Status: &expired, ExpectedStatus: &pending})
	if errors.Is(err, repository.ErrStatusConflict) {
		current, err := s.repo.GetByTranID(ctx, tranID)
		if err != nil {
			return nil, fmt.Errorf("reload payment %s: %w", tranID, err)
		}
		result.Status = current.Status
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("expire payment %s: %w", tranID, err)
	}

	payment.Status = expired
	s.afterTransition(ctx, payment, models.StatusPending)

	result.Expired = true
	result.Status = expired
	return result, nil
}

// GetStatus returns the stored payment, ErrNotFound when there is none.
func (s *PaymentService) GetStatus(ctx context.Context, tranID string) (*models.Payment, error) {
	if s.cache != nil {
		if payment, ok := s.cache.Get(ctx, tranID); ok {
			return payment, nil
		}
	}

	payment, err := s.repo.GetByTranID(ctx, tranID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load payment %s: %w", tranID, err)
	}

	if payment.Status.IsTerminal() {
		s.cacheSettled(ctx, payment)
	}
	return payment, nil
}

func (s *PaymentService) afterTransition(ctx context.Context, payment *models.Payment, from models.PaymentStatus) {
	telemetry.PaymentTransitions.WithLabelValues(string(from), string(payment.Status)).Inc()
	telemetry.Logger.Info("Payment state transition",
		zap.String("tran_id", payment.TranID),
		zap.String("from_state", string(from)),
		zap.String("to_state", string(payment.Status)),
	)

	s.cacheSettled(ctx, payment)
	s.publish(ctx, models.EventPaymentStatusChanged, payment, from)
}

func (s *PaymentService) cacheSettled(ctx context.Context, payment *models.Payment) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, payment); err != nil {
		telemetry.Logger.Warn("Failed to cache payment status",
			zap.String("tran_id", payment.TranID),
			zap.Error(err),
		)
	}
}

func (s *PaymentService) publish(ctx context.Context, eventType string, payment *models.Payment, previous models.PaymentStatus) {
	if s.publisher == nil {
		return
	}

	event := models.PaymentEvent{
		ID:             uuid.NewString(),
		Type:           eventType,
		TranID:         payment.TranID,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		Status:         payment.Status,
		PreviousStatus: previous,
		UserID:         payment.UserID,
		BookingID:      payment.BookingID,
		Timestamp:      s.now().UTC(),
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		telemetry.Logger.Error("Failed to publish payment event",
			zap.String("tran_id", payment.TranID),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}
