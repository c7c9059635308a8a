package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusPaid    PaymentStatus = "paid"
	StatusFailed  PaymentStatus = "failed"
	StatusExpired PaymentStatus = "expired"
)

// IsTerminal reports whether no further transition may leave s.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusFailed || s == StatusExpired
}

// CanTransitionTo allows only pending -> paid|failed|expired.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == StatusPending && next.IsTerminal()
}

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyKHR Currency = "KHR"
)

func (c Currency) Valid() bool {
	return c == CurrencyUSD || c == CurrencyKHR
}

// PaymentOption is a PayWay checkout flow.
type PaymentOption string

const (
	OptionKHQR         PaymentOption = "abapay_khqr"
	OptionKHQRDeeplink PaymentOption = "abapay_khqr_deeplink"
	OptionDeeplink     PaymentOption = "abapay_deeplink"
)

func (o PaymentOption) Valid() bool {
	switch o {
	case OptionKHQR, OptionKHQRDeeplink, OptionDeeplink:
		return true
	}
	return false
}

type Payment struct {
	ID            int64           `json:"id"`
	TranID        string          `json:"tran_id"`
	Status        PaymentStatus   `json:"payment_status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      Currency        `json:"currency"`
	UserID        *int64          `json:"user_id,omitempty"`
	BookingID     *int64          `json:"booking_id,omitempty"`
	PaymentOption PaymentOption   `json:"payment_option"`
	QRString      *string         `json:"qr_string,omitempty"`
	DeepLink      *string         `json:"deeplink,omitempty"`
	CallbackData  json.RawMessage `json:"callback_data,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PaymentUpdate is a partial merge; nil fields are left untouched.
// When ExpectedStatus is set the update only applies if the stored status still equals it.
type PaymentUpdate struct {
	Status         *PaymentStatus
	QRString       *string
	DeepLink       *string
	CallbackData   json.RawMessage
	PaidAt         *time.Time
	ExpectedStatus *PaymentStatus
}

// Apply merges u into p. It does not check ExpectedStatus.
func (u PaymentUpdate) Apply(p *Payment) {
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.QRString != nil {
		p.QRString = u.QRString
	}
	if u.DeepLink != nil {
		p.DeepLink = u.DeepLink
	}
	if u.CallbackData != nil {
		p.CallbackData = u.CallbackData
	}
	if u.PaidAt != nil {
		p.PaidAt = u.PaidAt
	}
}

type Item struct {
	Name     string  `json:"name" validate:"required,max=255"`
	Quantity int     `json:"quantity" validate:"min=1"`
	Price    float64 `json:"price" validate:"gte=0"`
}

// CreatePaymentRequest is the client payload for a new payment. Amount is checked by the service, the rest by tags.
type CreatePaymentRequest struct {
	Amount         *decimal.Decimal `json:"amount"`
	Currency       string           `json:"currency" validate:"omitempty,oneof=USD KHR"`
	PaymentOption  string           `json:"payment_option" validate:"omitempty,oneof=abapay_khqr abapay_khqr_deeplink abapay_deeplink"`
	UserID         *int64           `json:"user_id" validate:"omitempty,gt=0"`
	BookingID      *int64           `json:"booking_id" validate:"omitempty,gt=0"`
	FirstName      string           `json:"firstname" validate:"max=255"`
	LastName       string           `json:"lastname" validate:"max=255"`
	Email          string           `json:"email" validate:"omitempty,email,max=255"`
	Phone          string           `json:"phone" validate:"max=20"`
	ReturnDeeplink string           `json:"return_deeplink" validate:"max=255"`
	Lifetime       *int             `json:"lifetime" validate:"omitempty,min=1,max=43200"`
	Items          []Item           `json:"items" validate:"omitempty,dive"`
}

type CreatePaymentResult struct {
	TranID        string          `json:"tran_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      Currency        `json:"currency"`
	Status        PaymentStatus   `json:"payment_status"`
	QRString      *string         `json:"qr_string"`
	DeepLink      *string         `json:"abapay_deeplink"`
	PaymentOption PaymentOption   `json:"payment_option"`
}

// CallbackPayload is a PayWay pushback normalised to strings. Raw keeps the full body as JSON.
type CallbackPayload struct {
	TranID  string
	Status  string
	Amount  string
	ReqTime string
	Hash    string
	Raw     json.RawMessage
}

type CallbackOutcome string

const (
	CallbackPaid             CallbackOutcome = "paid"
	CallbackFailed           CallbackOutcome = "failed"
	CallbackNotFound         CallbackOutcome = "not_found"
	CallbackInvalidSignature CallbackOutcome = "invalid_signature"
	CallbackAlreadySettled   CallbackOutcome = "already_settled"
)

type CallbackResult struct {
	Outcome CallbackOutcome
	Success bool
	Message string
	Payment *Payment
}

type CancelResult struct {
	TranID  string
	Expired bool
	Status  PaymentStatus
}

// PaymentEvent is published on creation and on every applied status transition.
type PaymentEvent struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	TranID         string          `json:"tran_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       Currency        `json:"currency"`
	Status         PaymentStatus   `json:"status"`
	PreviousStatus PaymentStatus   `json:"previous_status,omitempty"`
	UserID         *int64          `json:"user_id,omitempty"`
	BookingID      *int64          `json:"booking_id,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

const (
	EventPaymentCreated       = "payment.created"
	EventPaymentStatusChanged = "payment.status_changed"
)
