package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc reportService
}

type reportService interface {
	SummaryByTest(ctx context.Context, testID int64) (*TestSummary, error)
	ListPendingReview(ctx context.Context, limit, offset int) ([]PendingReview, error)
	ExportSolutionsExcel(ctx context.Context, testID int64) ([]byte, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func NewHandler(svc reportService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) TestSummary(w http.ResponseWriter, r *http.Request) {
	testID, err := strconv.ParseInt(chi.URLParam(r, "testID"), 10, 64)
	if err != nil || testID <= 0 {
		writeJSON(w, http.StatusBadRequest, response{OK: false, Error: "invalid test id"})
		return
	}

	sum, err := h.svc.SummaryByTest(r.Context(), testID)
	if err != nil {
		if errors.Is(err, ErrTestNotFound) {
			writeJSON(w, http.StatusNotFound, response{OK: false, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, response{OK: true, Data: sum})
}

func (h *Handler) PendingReview(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.svc.ListPendingReview(r.Context(), limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, response{OK: true, Data: items})
}

func (h *Handler) ExportSolutions(w http.ResponseWriter, r *http.Request) {
	testID, err := strconv.ParseInt(chi.URLParam(r, "testID"), 10, 64)
	if err != nil || testID <= 0 {
		writeJSON(w, http.StatusBadRequest, response{OK: false, Error: "invalid test id"})
		return
	}

	data, err := h.svc.ExportSolutionsExcel(r.Context(), testID)
	if err != nil {
		if errors.Is(err, ErrTestNotFound) {
			writeJSON(w, http.StatusNotFound, response{OK: false, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"test_%d_solutions.xlsx\"", testID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, code int, payload response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
