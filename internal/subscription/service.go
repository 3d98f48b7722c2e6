package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"quizhub/internal/payment"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidMonths        = errors.New("months must be at least 1")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// paymentFailedMessage is the error recorded on every failed callback; the
// gateway does not forward a reason, so the row carries a fixed one.
const paymentFailedMessage = "payment was declined or cancelled by the gateway"

type Subscription struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	AmountMinor   int64      `json:"amount_minor"`
	Currency      string     `json:"currency"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       time.Time  `json:"end_date"`
	PaymentID     string     `json:"payment_id"`
	PaymentStatus string     `json:"payment_status"`
	PaymentError  *string    `json:"payment_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type Service struct {
	db                *sql.DB
	gateway           payment.Gateway
	monthlyPriceMinor int64
	currency          string
}

func NewService(db *sql.DB, gateway payment.Gateway, monthlyPriceMinor int64, currency string) *Service {
	return &Service{
		db:                db,
		gateway:           gateway,
		monthlyPriceMinor: monthlyPriceMinor,
		currency:          currency,
	}
}

// CreateSubscription opens a payment with the configured gateway and records
// a PENDING subscription keyed by the gateway's payment id. The order is
// deliberate: the gateway call happens first, so a gateway failure leaves no
// database row behind.
func (s *Service) CreateSubscription(ctx context.Context, userID int64, months int) (*payment.PaymentIntent, error) {
	if months < 1 {
		return nil, ErrInvalidMonths
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND is_active = TRUE)
	`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	amount := s.monthlyPriceMinor * int64(months)
	description := fmt.Sprintf("Premium subscription, %d month(s)", months)

	intent, err := s.gateway.CreatePayment(ctx, amount, description)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	endDate := now.AddDate(0, months, 0)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, amount, currency, start_date, end_date, payment_id, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, userID, amount, s.currency, now, endDate, intent.PaymentID, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}

	return intent, nil
}

// ProcessPaymentCallback reconciles a gateway notification against the
// stored subscription. It reports whether the callback was applied (or had
// already been applied to the same terminal state). Callbacks for unknown
// payment ids are logged and rejected. A repeated callback for a settled
// payment is a no-op.
//
// The reported status is trusted as-is; the gateway's VerifyPayment query
// is not consulted here.
func (s *Service) ProcessPaymentCallback(ctx context.Context, paymentID string, isSuccess bool) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin callback tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var subID, userID int64
	var status string
	var endDate time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id, payment_status, end_date
		FROM subscriptions
		WHERE payment_id = $1
		FOR UPDATE
	`, paymentID).Scan(&subID, &userID, &status, &endDate)
	if errors.Is(err, sql.ErrNoRows) {
		log.Printf("subscription: callback for unknown payment %q ignored", paymentID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load subscription: %w", err)
	}

	if status != StatusPending {
		log.Printf("subscription: repeated callback for payment %q already %s", paymentID, status)
		return true, nil
	}

	if isSuccess {
		if _, err := tx.ExecContext(ctx, `
			UPDATE subscriptions
			SET payment_status = $1, payment_error = NULL, updated_at = now()
			WHERE id = $2
		`, StatusSuccess, subID); err != nil {
			return false, fmt.Errorf("mark subscription paid: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users
			SET is_premium = TRUE,
			    premium_expires_at = GREATEST(COALESCE(premium_expires_at, $1), $1),
			    updated_at = now()
			WHERE id = $2
		`, endDate, userID); err != nil {
			return false, fmt.Errorf("grant premium: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
			UPDATE subscriptions
			SET payment_status = $1, payment_error = $2, updated_at = now()
			WHERE id = $3
		`, StatusFailed, paymentFailedMessage, subID); err != nil {
			return false, fmt.Errorf("mark subscription failed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit callback: %w", err)
	}

	log.Printf("subscription: payment %q settled success=%v (user %d)", paymentID, isSuccess, userID)
	return true, nil
}

// IsSubscriptionActive reports whether the user's premium grant is in
// force: the premium flag is set and its expiry lies in the future. The
// flag is only ever set by a successful payment callback.
func (s *Service) IsSubscriptionActive(ctx context.Context, userID int64) (bool, error) {
	var active bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE id = $1
			  AND is_premium = TRUE
			  AND premium_expires_at > now()
		)
	`, userID).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("check premium: %w", err)
	}
	return active, nil
}

// GetCurrentSubscription returns the user's most recently created
// subscription whose period has not yet ended, in any payment state, so
// callers can show a pending or failed purchase too. Expired subscriptions
// are never "current".
func (s *Service) GetCurrentSubscription(ctx context.Context, userID int64) (*Subscription, error) {
	var sub Subscription
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, amount, currency, start_date, end_date,
		       payment_id, payment_status, payment_error, created_at
		FROM subscriptions
		WHERE user_id = $1 AND end_date > now()
		ORDER BY created_at DESC
		LIMIT 1
	`, userID).Scan(
		&sub.ID, &sub.UserID, &sub.AmountMinor, &sub.Currency, &sub.StartDate,
		&sub.EndDate, &sub.PaymentID, &sub.PaymentStatus, &sub.PaymentError, &sub.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return &sub, nil
}
