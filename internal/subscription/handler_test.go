package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"quizhub/internal/auth"
	"quizhub/internal/payment"
)

type mockSubscriptionService struct {
	createFn   func(ctx context.Context, userID int64, months int) (*payment.PaymentIntent, error)
	callbackFn func(ctx context.Context, paymentID string, isSuccess bool) (bool, error)
	activeFn   func(ctx context.Context, userID int64) (bool, error)
	currentFn  func(ctx context.Context, userID int64) (*Subscription, error)
}

func (m *mockSubscriptionService) CreateSubscription(ctx context.Context, userID int64, months int) (*payment.PaymentIntent, error) {
	if m.createFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.createFn(ctx, userID, months)
}

func (m *mockSubscriptionService) ProcessPaymentCallback(ctx context.Context, paymentID string, isSuccess bool) (bool, error) {
	if m.callbackFn == nil {
		return false, errors.New("not implemented")
	}
	return m.callbackFn(ctx, paymentID, isSuccess)
}

func (m *mockSubscriptionService) IsSubscriptionActive(ctx context.Context, userID int64) (bool, error) {
	if m.activeFn == nil {
		return false, errors.New("not implemented")
	}
	return m.activeFn(ctx, userID)
}

func (m *mockSubscriptionService) GetCurrentSubscription(ctx context.Context, userID int64) (*Subscription, error) {
	if m.currentFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.currentFn(ctx, userID)
}

func doRequest(t *testing.T, fn http.HandlerFunc, req *http.Request, user *auth.User) *httptest.ResponseRecorder {
	t.Helper()
	if user != nil {
		req = req.WithContext(auth.ContextWithUser(req.Context(), user))
	}
	w := httptest.NewRecorder()
	fn(w, req)
	return w
}

func TestCreateHandler_OK(t *testing.T) {
	svc := &mockSubscriptionService{
		createFn: func(ctx context.Context, userID int64, months int) (*payment.PaymentIntent, error) {
			if userID != 42 || months != 3 {
				t.Fatalf("unexpected input user=%d months=%d", userID, months)
			}
			return &payment.PaymentIntent{PaymentURL: "https://bank.example/pay/s1", PaymentID: "pay-1"}, nil
		},
	}
	h := NewHandler(svc)

	body, _ := json.Marshal(createRequest{Months: 3})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscription/create", bytes.NewReader(body))
	w := doRequest(t, h.Create, req, &auth.User{ID: 42, Role: auth.RoleUser})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		OK   bool                  `json:"ok"`
		Data payment.PaymentIntent `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK || resp.Data.PaymentURL != "https://bank.example/pay/s1" || resp.Data.PaymentID != "pay-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreateHandler_DefaultsToOneMonth(t *testing.T) {
	svc := &mockSubscriptionService{
		createFn: func(ctx context.Context, userID int64, months int) (*payment.PaymentIntent, error) {
			if months != 1 {
				t.Fatalf("expected default 1 month, got %d", months)
			}
			return &payment.PaymentIntent{PaymentURL: "u", PaymentID: "p"}, nil
		},
	}
	h := NewHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscription/create", nil)
	w := doRequest(t, h.Create, req, &auth.User{ID: 1, Role: auth.RoleUser})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestCreateHandler_GatewayDown(t *testing.T) {
	svc := &mockSubscriptionService{
		createFn: func(ctx context.Context, userID int64, months int) (*payment.PaymentIntent, error) {
			return nil, payment.ErrGateway
		},
	}
	h := NewHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscription/create", nil)
	w := doRequest(t, h.Create, req, &auth.User{ID: 1, Role: auth.RoleUser})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestCreateHandler_InvalidMonths(t *testing.T) {
	svc := &mockSubscriptionService{
		createFn: func(ctx context.Context, userID int64, months int) (*payment.PaymentIntent, error) {
			return nil, ErrInvalidMonths
		},
	}
	h := NewHandler(svc)

	body, _ := json.Marshal(createRequest{Months: 0})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscription/create", bytes.NewReader(body))
	w := doRequest(t, h.Create, req, &auth.User{ID: 1, Role: auth.RoleUser})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateHandler_Unauthenticated(t *testing.T) {
	h := NewHandler(&mockSubscriptionService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscription/create", nil)
	w := doRequest(t, h.Create, req, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestCallbackHandler_StatusMapping(t *testing.T) {
	tests := []struct {
		status      string
		wantSuccess bool
	}{
		{"00", true},
		{"SUCCESS", true},
		{"success", true},
		{"Success", true},
		{"FAILED", false},
		{"CANCELLED", false},
		{"01", false},
	}

	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			var gotSuccess bool
			svc := &mockSubscriptionService{
				callbackFn: func(ctx context.Context, paymentID string, isSuccess bool) (bool, error) {
					if paymentID != "pay-7" {
						t.Fatalf("unexpected payment id %q", paymentID)
					}
					gotSuccess = isSuccess
					return true, nil
				},
			}
			h := NewHandler(svc)

			form := url.Values{"orderId": {"pay-7"}, "status": {tc.status}}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/subscription/callback", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := doRequest(t, h.Callback, req, nil)

			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			if gotSuccess != tc.wantSuccess {
				t.Fatalf("status %q: expected success=%v, got %v", tc.status, tc.wantSuccess, gotSuccess)
			}
		})
	}
}

func TestCallbackHandler_UnknownPaymentReturns400(t *testing.T) {
	svc := &mockSubscriptionService{
		callbackFn: func(ctx context.Context, paymentID string, isSuccess bool) (bool, error) {
			return false, nil
		},
	}
	h := NewHandler(svc)

	form := url.Values{"orderId": {"nope"}, "status": {"SUCCESS"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscription/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := doRequest(t, h.Callback, req, nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown payment, got %d", w.Code)
	}

	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.OK {
		t.Fatal("unknown payment must not be reported as applied")
	}
}

func TestCallbackHandler_MissingParams(t *testing.T) {
	h := NewHandler(&mockSubscriptionService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscription/callback", nil)
	w := doRequest(t, h.Callback, req, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	sub := &Subscription{ID: 3, UserID: 42, PaymentID: "pay-3", PaymentStatus: StatusSuccess}
	svc := &mockSubscriptionService{
		activeFn: func(ctx context.Context, userID int64) (bool, error) {
			return true, nil
		},
		currentFn: func(ctx context.Context, userID int64) (*Subscription, error) {
			return sub, nil
		},
	}
	h := NewHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscription/status", nil)
	w := doRequest(t, h.Status, req, &auth.User{ID: 42, Role: auth.RoleUser})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		OK   bool          `json:"ok"`
		Data statusPayload `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Data.IsActive || resp.Data.Subscription == nil || resp.Data.Subscription.PaymentID != "pay-3" {
		t.Fatalf("unexpected payload: %+v", resp.Data)
	}
}

func TestStatusHandler_NoSubscriptionYet(t *testing.T) {
	svc := &mockSubscriptionService{
		activeFn: func(ctx context.Context, userID int64) (bool, error) {
			return false, nil
		},
		currentFn: func(ctx context.Context, userID int64) (*Subscription, error) {
			return nil, ErrSubscriptionNotFound
		},
	}
	h := NewHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscription/status", nil)
	w := doRequest(t, h.Status, req, &auth.User{ID: 1, Role: auth.RoleUser})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Data statusPayload `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.IsActive || resp.Data.Subscription != nil {
		t.Fatalf("expected inactive with no record, got %+v", resp.Data)
	}
}
