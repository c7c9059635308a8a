package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/akylbek/payment-system/payway-gateway/internal/models"
)

var (
	ErrNotFound        = errors.New("payment not found")
	ErrDuplicateTranID = errors.New("duplicate tran_id")
	ErrStatusConflict  = errors.New("payment status changed concurrently")
)

const uniqueViolation = "23505"

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS payments (
			id BIGSERIAL PRIMARY KEY,
			tran_id VARCHAR(64) NOT NULL UNIQUE,
			payment_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			amount DECIMAL(10,2) NOT NULL,
			currency VARCHAR(3) NOT NULL DEFAULT 'USD',
			user_id BIGINT,
			booking_id BIGINT,
			payment_option VARCHAR(50),
			qr_string TEXT,
			deeplink TEXT,
			callback_data TEXT,
			paid_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(payment_status)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payments (tran_id, payment_status, amount, currency, user_id, booking_id, payment_option)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, payment.TranID, payment.Status, payment.Amount, payment.Currency,
		nullInt64(payment.UserID), nullInt64(payment.BookingID), payment.PaymentOption,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateTranID, payment.TranID)
	}
	if err != nil {
		return fmt.Errorf("insert payment %s: %w", payment.TranID, err)
	}
	return nil
}

func (r *PaymentRepository) GetByTranID(ctx context.Context, tranID string) (*models.Payment, error) {
	var (
		payment              models.Payment
		userID, bookingID    sql.NullInt64
		option               sql.NullString
		qr, deeplink, cbData sql.NullString
		paidAt               sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, tran_id, payment_status, amount, currency, user_id, booking_id, payment_option,
			qr_string, deeplink, callback_data, paid_at, created_at, updated_at
		FROM payments WHERE tran_id = $1
	`, tranID).Scan(&payment.ID, &payment.TranID, &payment.Status, &payment.Amount, &payment.Currency,
		&userID, &bookingID, &option, &qr, &deeplink, &cbData, &paidAt,
		&payment.CreatedAt, &payment.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select payment %s: %w", tranID, err)
	}

	if userID.Valid {
		payment.UserID = &userID.Int64
	}
	if bookingID.Valid {
		payment.BookingID = &bookingID.Int64
	}
	payment.PaymentOption = models.PaymentOption(option.String)
	if qr.Valid {
		payment.QRString = &qr.String
	}
	if deeplink.Valid {
		payment.DeepLink = &deeplink.String
	}
	if cbData.Valid {
		payment.CallbackData = []byte(cbData.String)
	}
	if paidAt.Valid {
		payment.PaidAt = &paidAt.Time
	}

	return &payment, nil
}

func (r *PaymentRepository) Update(ctx context.Context, tranID string, update models.PaymentUpdate) error {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		set("payment_status", *update.Status)
	}
	if update.QRString != nil {
		set("qr_string", *update.QRString)
	}
	if update.DeepLink != nil {
		set("deeplink", *update.DeepLink)
	}
	if update.CallbackData != nil {
		set("callback_data", string(update.CallbackData))
	}
	if update.PaidAt != nil {
		set("paid_at", *update.PaidAt)
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, tranID)
	where := fmt.Sprintf("tran_id = $%d", len(args))
	if update.ExpectedStatus != nil {
		args = append(args, *update.ExpectedStatus)
		where += fmt.Sprintf(" AND payment_status = $%d", len(args))
	}

	query := "UPDATE payments SET " + strings.Join(sets, ", ") + " WHERE " + where
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update payment %s: %w", tranID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	if update.ExpectedStatus == nil {
		return ErrNotFound
	}
	if _, err := r.GetByTranID(ctx, tranID); err != nil {
		return err
	}
	return ErrStatusConflict
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
