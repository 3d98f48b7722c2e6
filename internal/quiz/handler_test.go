package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"quizhub/internal/auth"
)

type mockGradingService struct {
	submitFn func(ctx context.Context, in SubmitInput) (*GradeResult, error)
}

func (m *mockGradingService) Submit(ctx context.Context, in SubmitInput) (*GradeResult, error) {
	if m.submitFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.submitFn(ctx, in)
}

func doSubmit(t *testing.T, h *Handler, user *auth.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submit", bytes.NewReader(raw))
	if user != nil {
		req = req.WithContext(auth.ContextWithUser(req.Context(), user))
	}
	w := httptest.NewRecorder()
	h.Submit(w, req)
	return w
}

func TestSubmitHandler_OK(t *testing.T) {
	svc := &mockGradingService{
		submitFn: func(ctx context.Context, in SubmitInput) (*GradeResult, error) {
			if in.UserID != 42 {
				t.Fatalf("expected caller's user id 42, got %d", in.UserID)
			}
			return &GradeResult{SolutionID: 1, ScorePercent: 100, CorrectTotal: "2/2", TotalPoints: 5, EarnedPoints: 5}, nil
		},
	}
	h := NewHandler(svc)

	w := doSubmit(t, h, &auth.User{ID: 42, Role: auth.RoleUser}, map[string]any{
		"test_id": 1,
		"answers": []map[string]any{
			{"question_id": 1, "selected_option_index": 1},
			{"question_id": 2, "selected_option_index": 0},
		},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		OK   bool        `json:"ok"`
		Data GradeResult `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK || resp.Data.CorrectTotal != "2/2" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSubmitHandler_OpenAnswersReturn202(t *testing.T) {
	svc := &mockGradingService{
		submitFn: func(ctx context.Context, in SubmitInput) (*GradeResult, error) {
			return &GradeResult{ScorePercent: 0, CorrectTotal: "0/0", HasOpenAnswers: true}, nil
		},
	}
	h := NewHandler(svc)

	w := doSubmit(t, h, &auth.User{ID: 1, Role: auth.RoleUser}, map[string]any{
		"test_id": 1,
		"answers": []map[string]any{{"question_id": 9, "selected_option_index": 0}},
	})

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for open answers, got %d", w.Code)
	}
}

func TestSubmitHandler_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		svcErr     error
		wantStatus int
	}{
		{name: "empty submission", svcErr: ErrEmptySubmission, wantStatus: http.StatusBadRequest},
		{name: "index out of range", svcErr: ErrOptionIndexOutOfRange, wantStatus: http.StatusBadRequest},
		{name: "no correct option", svcErr: ErrNoCorrectOption, wantStatus: http.StatusBadRequest},
		{name: "test missing", svcErr: ErrTestNotFound, wantStatus: http.StatusNotFound},
		{name: "user missing", svcErr: ErrUserNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockGradingService{
				submitFn: func(ctx context.Context, in SubmitInput) (*GradeResult, error) {
					return nil, tc.svcErr
				},
			}
			h := NewHandler(svc)

			w := doSubmit(t, h, &auth.User{ID: 1, Role: auth.RoleUser}, map[string]any{
				"test_id": 1,
				"answers": []map[string]any{{"question_id": 1, "selected_option_index": 5}},
			})
			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, w.Code)
			}
		})
	}
}

func TestSubmitHandler_ForbidsSubmittingForOthers(t *testing.T) {
	h := NewHandler(&mockGradingService{})

	w := doSubmit(t, h, &auth.User{ID: 1, Role: auth.RoleUser}, map[string]any{
		"test_id": 1,
		"user_id": 2,
		"answers": []map[string]any{{"question_id": 1, "selected_option_index": 0}},
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestSubmitHandler_AdminSubmitsForStudent(t *testing.T) {
	svc := &mockGradingService{
		submitFn: func(ctx context.Context, in SubmitInput) (*GradeResult, error) {
			if in.UserID != 7 {
				t.Fatalf("expected user id 7, got %d", in.UserID)
			}
			return &GradeResult{ScorePercent: 0, CorrectTotal: "0/1"}, nil
		},
	}
	h := NewHandler(svc)

	w := doSubmit(t, h, &auth.User{ID: 1, Role: auth.RoleAdmin}, map[string]any{
		"test_id": 1,
		"user_id": 7,
		"answers": []map[string]any{{"question_id": 1, "selected_option_index": 0}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSubmitHandler_Unauthenticated(t *testing.T) {
	h := NewHandler(&mockGradingService{})

	w := doSubmit(t, h, nil, map[string]any{
		"test_id": 1,
		"answers": []map[string]any{{"question_id": 1, "selected_option_index": 0}},
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
