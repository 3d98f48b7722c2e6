package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"quizhub/internal/auth"
	"quizhub/internal/payment"
)

type Handler struct {
	svc subscriptionService
}

type subscriptionService interface {
	CreateSubscription(ctx context.Context, userID int64, months int) (*payment.PaymentIntent, error)
	ProcessPaymentCallback(ctx context.Context, paymentID string, isSuccess bool) (bool, error)
	IsSubscriptionActive(ctx context.Context, userID int64) (bool, error)
	GetCurrentSubscription(ctx context.Context, userID int64) (*Subscription, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type createRequest struct {
	Months int `json:"months"`
}

type statusPayload struct {
	IsActive     bool          `json:"is_active"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

func NewHandler(svc subscriptionService) *Handler {
	return &Handler{svc: svc}
}

// Create opens a payment for the authenticated user and returns the bank
// redirect URL. Months defaults to 1 when the body omits it.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}

	req := createRequest{Months: 1}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
			return
		}
	}

	intent, err := h.svc.CreateSubscription(r.Context(), user.ID, req.Months)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidMonths):
			writeJSON(w, http.StatusBadRequest, response{OK: false, Error: err.Error()})
		case errors.Is(err, ErrUserNotFound):
			writeJSON(w, http.StatusNotFound, response{OK: false, Error: err.Error()})
		case errors.Is(err, payment.ErrGateway):
			writeJSON(w, http.StatusBadGateway, response{OK: false, Error: "payment gateway unavailable"})
		default:
			writeJSON(w, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, response{OK: true, Data: intent})
}

// Callback receives the gateway's server-to-server notification. An
// unknown payment id answers 400 after being logged; the endpoint never
// panics on bad external input.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, response{OK: false, Error: "invalid callback payload"})
		return
	}

	paymentID := strings.TrimSpace(r.Form.Get("orderId"))
	if paymentID == "" {
		paymentID = strings.TrimSpace(r.Form.Get("payment_id"))
	}
	status := strings.TrimSpace(r.Form.Get("status"))

	if paymentID == "" || status == "" {
		writeJSON(w, http.StatusBadRequest, response{OK: false, Error: "orderId and status are required"})
		return
	}

	isSuccess := status == "00" || strings.EqualFold(status, "SUCCESS")

	applied, err := h.svc.ProcessPaymentCallback(r.Context(), paymentID, isSuccess)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	if !applied {
		writeJSON(w, http.StatusBadRequest, response{OK: false, Error: "unknown payment"})
		return
	}

	writeJSON(w, http.StatusOK, response{OK: true, Data: map[string]bool{"applied": true}})
}

// Status reports whether the authenticated user's premium access is active
// and includes the latest subscription record when one exists.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}

	active, err := h.svc.IsSubscriptionActive(r.Context(), user.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}

	payload := statusPayload{IsActive: active}

	sub, err := h.svc.GetCurrentSubscription(r.Context(), user.ID)
	switch {
	case err == nil:
		payload.Subscription = sub
	case errors.Is(err, ErrSubscriptionNotFound):
		// No purchase yet; active=false with no record is a valid answer.
	default:
		writeJSON(w, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, response{OK: true, Data: payload})
}

func writeJSON(w http.ResponseWriter, code int, payload response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
