package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akylbek/payment-system/payway-gateway/internal/models"
)

// MemoryPaymentRepository keeps payments in process memory with the same
// check-and-set semantics as the Postgres repository.
type MemoryPaymentRepository struct {
	mu       sync.Mutex
	nextID   int64
	payments map[string]*models.Payment
}

func NewMemoryPaymentRepository() *MemoryPaymentRepository {
	return &MemoryPaymentRepository{payments: make(map[string]*models.Payment)}
}

func (r *MemoryPaymentRepository) Create(_ context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[payment.TranID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTranID, payment.TranID)
	}

	r.nextID++
	now := time.Now()
	payment.ID = r.nextID
	payment.CreatedAt = now
	payment.UpdatedAt = now
	r.payments[payment.TranID] = clonePayment(payment)

	return nil
}

func (r *MemoryPaymentRepository) GetByTranID(_ context.Context, tranID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[tranID]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePayment(p), nil
}

func (r *MemoryPaymentRepository) Update(_ context.Context, tranID string, update models.PaymentUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[tranID]
	if !ok {
		return ErrNotFound
	}
	if update.ExpectedStatus != nil && p.Status != *update.ExpectedStatus {
		return ErrStatusConflict
	}

	update.Apply(p)
	p.UpdatedAt = time.Now()
	// detach from caller-owned memory
	r.payments[tranID] = clonePayment(p)

	return nil
}

func clonePayment(p *models.Payment) *models.Payment {
	c := *p
	if p.UserID != nil {
		v := *p.UserID
		c.UserID = &v
	}
	if p.BookingID != nil {
		v := *p.BookingID
		c.BookingID = &v
	}
	if p.QRString != nil {
		v := *p.QRString
		c.QRString = &v
	}
	if p.DeepLink != nil {
		v := *p.DeepLink
		c.DeepLink = &v
	}
	if p.PaidAt != nil {
		v := *p.PaidAt
		c.PaidAt = &v
	}
	if p.CallbackData != nil {
		c.CallbackData = append([]byte(nil), p.CallbackData...)
	}
	return &c
}
