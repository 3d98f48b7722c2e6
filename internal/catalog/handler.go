package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"quizhub/internal/auth"
)

type Handler struct {
	svc catalogService
}

type catalogService interface {
	ListActiveTests(ctx context.Context) ([]TestSummary, error)
	GetTest(ctx context.Context, testID, userID int64, isAdmin, includeAnswers bool) (*TestDetail, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func NewHandler(svc catalogService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ListTests(w http.ResponseWriter, r *http.Request) {
	tests, err := h.svc.ListActiveTests(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, response{OK: true, Data: tests})
}

// GetTest serves a test for taking. Admins may pass ?answers=1 to include
// the answer key; the flag is ignored for everyone else.
func (h *Handler) GetTest(w http.ResponseWriter, r *http.Request) {
	testID, err := strconv.ParseInt(chi.URLParam(r, "testID"), 10, 64)
	if err != nil || testID <= 0 {
		writeJSON(w, http.StatusBadRequest, response{OK: false, Error: "invalid test id"})
		return
	}

	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}

	isAdmin := user.Role == auth.RoleAdmin
	includeAnswers := isAdmin && r.URL.Query().Get("answers") == "1"

	detail, err := h.svc.GetTest(r.Context(), testID, user.ID, isAdmin, includeAnswers)
	if err != nil {
		switch {
		case errors.Is(err, ErrTestNotFound):
			writeJSON(w, http.StatusNotFound, response{OK: false, Error: err.Error()})
		case errors.Is(err, ErrPremiumRequired):
			writeJSON(w, http.StatusForbidden, response{OK: false, Error: err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, response{OK: true, Data: detail})
}

func writeJSON(w http.ResponseWriter, code int, payload response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
