package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrGateway marks any failure talking to the bank: non-2xx responses,
// malformed bodies, declined orders. The adapters never retry; retry
// policy belongs to the caller's transport layer.
var ErrGateway = errors.New("payment gateway error")

// Gateway is the capability set both bank protocols implement. Exactly one
// implementation is selected by configuration at startup; the two are never
// mixed within one purchase.
type Gateway interface {
	CreatePayment(ctx context.Context, amountMinor int64, description string) (*PaymentIntent, error)
	VerifyPayment(ctx context.Context, paymentID string) (bool, error)
}

// PaymentIntent is the result of a successful CreatePayment: the bank page
// to redirect the buyer to, and the gateway-scoped payment identifier.
type PaymentIntent struct {
	PaymentURL string `json:"payment_url"`
	PaymentID  string `json:"payment_id"`
}

type Status int

const (
	StatusUnknown Status = iota
	StatusSuccess
	StatusPending
	StatusCancelled
	StatusFailed
)

// ParseStatus maps a gateway-reported status string onto the closed
// enumeration; comparison is case-insensitive and anything outside the
// known set is Unknown.
func ParseStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS":
		return StatusSuccess
	case "PENDING":
		return StatusPending
	case "CANCELLED":
		return StatusCancelled
	case "FAILED":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusPending:
		return "PENDING"
	case StatusCancelled:
		return "CANCELLED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// formatAmount renders minor units as the "0.00" string both wire
// protocols expect.
func formatAmount(amountMinor int64) string {
	return fmt.Sprintf("%d.%02d", amountMinor/100, amountMinor%100)
}
