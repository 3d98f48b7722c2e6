package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

type mockReportService struct {
	summaryFn func(ctx context.Context, testID int64) (*TestSummary, error)
	pendingFn func(ctx context.Context, limit, offset int) ([]PendingReview, error)
	exportFn  func(ctx context.Context, testID int64) ([]byte, error)
}

func (m *mockReportService) SummaryByTest(ctx context.Context, testID int64) (*TestSummary, error) {
	if m.summaryFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.summaryFn(ctx, testID)
}

func (m *mockReportService) ListPendingReview(ctx context.Context, limit, offset int) ([]PendingReview, error) {
	if m.pendingFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.pendingFn(ctx, limit, offset)
}

func (m *mockReportService) ExportSolutionsExcel(ctx context.Context, testID int64) ([]byte, error) {
	if m.exportFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.exportFn(ctx, testID)
}

func newReportRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/reports/tests/{testID}", h.TestSummary)
	r.Get("/reports/tests/{testID}/export", h.ExportSolutions)
	r.Get("/reports/pending-review", h.PendingReview)
	return r
}

func TestTestSummaryHandler(t *testing.T) {
	svc := &mockReportService{
		summaryFn: func(ctx context.Context, testID int64) (*TestSummary, error) {
			return &TestSummary{TestID: testID, Title: "Basics", Attempts: 4, AverageScore: 62.5}, nil
		},
	}
	router := newReportRouter(NewHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/reports/tests/7", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Data TestSummary `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.TestID != 7 || resp.Data.Attempts != 4 {
		t.Fatalf("unexpected payload: %+v", resp.Data)
	}
}

func TestTestSummaryHandler_NotFound(t *testing.T) {
	svc := &mockReportService{
		summaryFn: func(ctx context.Context, testID int64) (*TestSummary, error) {
			return nil, ErrTestNotFound
		},
	}
	router := newReportRouter(NewHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/reports/tests/99", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestPendingReviewHandler_PassesPaging(t *testing.T) {
	svc := &mockReportService{
		pendingFn: func(ctx context.Context, limit, offset int) ([]PendingReview, error) {
			if limit != 10 || offset != 20 {
				t.Fatalf("unexpected paging limit=%d offset=%d", limit, offset)
			}
			return []PendingReview{{SolutionID: 1, TestTitle: "Essay"}}, nil
		},
	}
	router := newReportRouter(NewHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/reports/pending-review?limit=10&offset=20", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestExportSolutionsHandler(t *testing.T) {
	svc := &mockReportService{
		exportFn: func(ctx context.Context, testID int64) ([]byte, error) {
			return []byte("xlsx-bytes"), nil
		},
	}
	router := newReportRouter(NewHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/reports/tests/7/export", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "test_7_solutions.xlsx") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if w.Body.String() != "xlsx-bytes" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}

func TestExportSolutionsHandler_BadID(t *testing.T) {
	router := newReportRouter(NewHandler(&mockReportService{}))

	req := httptest.NewRequest(http.MethodGet, "/reports/tests/zero/export", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
