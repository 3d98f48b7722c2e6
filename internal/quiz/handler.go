package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"quizhub/internal/auth"
)

type Handler struct {
	svc gradingService
}

type gradingService interface {
	Submit(ctx context.Context, in SubmitInput) (*GradeResult, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type submitRequest struct {
	TestID    int64         `json:"test_id"`
	UserID    int64         `json:"user_id"`
	StartedAt string        `json:"started_at"`
	Answers   []AnswerInput `json:"answers"`
}

func NewHandler(svc gradingService) *Handler {
	return &Handler{svc: svc}
}

// Submit grades a submission. The response status is 202 when the
// submission referenced open questions (provisionally accepted pending
// manual grading) and 200 otherwise; callers route on that distinction.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	if req.TestID <= 0 {
		writeJSON(w, http.StatusBadRequest, response{OK: false, Error: "test_id is required"})
		return
	}

	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}

	if user.Role == auth.RoleAdmin {
		if req.UserID <= 0 {
			writeJSON(w, http.StatusBadRequest, response{OK: false, Error: "user_id is required for admin"})
			return
		}
	} else {
		if req.UserID > 0 && req.UserID != user.ID {
			writeJSON(w, http.StatusForbidden, response{OK: false, Error: "forbidden"})
			return
		}
		req.UserID = user.ID
	}

	in := SubmitInput{
		TestID:  req.TestID,
		UserID:  req.UserID,
		Answers: req.Answers,
	}
	if req.StartedAt != "" {
		t, err := time.Parse(time.RFC3339, req.StartedAt)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, response{OK: false, Error: "started_at must be RFC3339"})
			return
		}
		in.StartedAt = &t
	}

	result, err := h.svc.Submit(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrTestNotFound), errors.Is(err, ErrUserNotFound):
			writeJSON(w, http.StatusNotFound, response{OK: false, Error: err.Error()})
		case errors.Is(err, ErrEmptySubmission),
			errors.Is(err, ErrOptionIndexOutOfRange),
			errors.Is(err, ErrNoCorrectOption):
			writeJSON(w, http.StatusBadRequest, response{OK: false, Error: err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}

	status := http.StatusOK
	if result.HasOpenAnswers {
		status = http.StatusAccepted
	}
	writeJSON(w, status, response{OK: true, Data: result})
}

func writeJSON(w http.ResponseWriter, code int, payload response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
