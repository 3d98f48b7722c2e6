package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// JSONConfig carries the credentials and URLs for the JSON/HMAC bank
// protocol. Secret keys the HMAC-SHA256 request signature.
type JSONConfig struct {
	Endpoint       string
	StatusEndpoint string
	Secret         string
	Currency       string
	CallbackURL    string
	SuccessURL     string
	CancelURL      string
	Timeout        time.Duration
}

// JSONGateway speaks the bank's JSON protocol. Every request body is
// {payment, signature} where signature is computed over exactly the
// serialized payment descriptor being sent, never a canonicalized form.
type JSONGateway struct {
	cfg    JSONConfig
	client *resty.Client
}

type paymentDescriptor struct {
	OrderID     string `json:"orderId"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	CallbackURL string `json:"callbackUrl"`
	SuccessURL  string `json:"successUrl"`
	CancelURL   string `json:"cancelUrl"`
	Timestamp   int64  `json:"timestamp"`
}

type statusDescriptor struct {
	OrderID   string `json:"orderId"`
	Timestamp int64  `json:"timestamp"`
}

type signedRequest struct {
	Payment   json.RawMessage `json:"payment"`
	Signature string          `json:"signature"`
}

type createResponse struct {
	PaymentURL string `json:"paymentUrl"`
	Status     string `json:"status"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func NewJSONGateway(cfg JSONConfig) *JSONGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &JSONGateway{cfg: cfg, client: client}
}

func (g *JSONGateway) CreatePayment(ctx context.Context, amountMinor int64, description string) (*PaymentIntent, error) {
	orderID := uuid.NewString()

	desc := paymentDescriptor{
		OrderID:     orderID,
		Amount:      formatAmount(amountMinor),
		Currency:    g.cfg.Currency,
		Description: description,
		CallbackURL: g.cfg.CallbackURL,
		SuccessURL:  g.cfg.SuccessURL,
		CancelURL:   g.cfg.CancelURL,
		Timestamp:   time.Now().UnixMilli(),
	}

	var out createResponse
	if err := g.post(ctx, g.cfg.Endpoint, desc, &out); err != nil {
		return nil, err
	}

	if strings.TrimSpace(out.PaymentURL) == "" {
		return nil, fmt.Errorf("%w: create response is missing paymentUrl", ErrGateway)
	}
	switch ParseStatus(out.Status) {
	case StatusSuccess, StatusPending:
		// Order accepted; the buyer completes it on the bank page.
	default:
		return nil, fmt.Errorf("%w: create rejected with status %q", ErrGateway, out.Status)
	}

	return &PaymentIntent{PaymentURL: out.PaymentURL, PaymentID: orderID}, nil
}

func (g *JSONGateway) VerifyPayment(ctx context.Context, paymentID string) (bool, error) {
	desc := statusDescriptor{
		OrderID:   paymentID,
		Timestamp: time.Now().UnixMilli(),
	}

	var out statusResponse
	if err := g.post(ctx, g.cfg.StatusEndpoint, desc, &out); err != nil {
		return false, err
	}
	return ParseStatus(out.Status) == StatusSuccess, nil
}

// post serializes the descriptor, signs those exact bytes and sends
// {payment, signature}, decoding the response into out.
func (g *JSONGateway) post(ctx context.Context, endpoint string, descriptor any, out any) error {
	payload, err := json.Marshal(descriptor)
	if err != nil {
		return fmt.Errorf("marshal payment descriptor: %w", err)
	}

	body := signedRequest{
		Payment:   payload,
		Signature: Sign(g.cfg.Secret, payload),
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: gateway returned HTTP %d", ErrGateway, resp.StatusCode())
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: malformed response body: %v", ErrGateway, err)
	}
	return nil
}

// Sign computes base64(HMAC-SHA256(secret, payload)).
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches payload under secret,
// in constant time.
func VerifySignature(secret string, payload []byte, signature string) bool {
	want, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), want)
}
