package report

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

var ErrTestNotFound = errors.New("test not found")

type TestSummary struct {
	TestID         int64   `json:"test_id"`
	Title          string  `json:"title"`
	Attempts       int     `json:"attempts"`
	AverageScore   float64 `json:"average_score"`
	HighestScore   int     `json:"highest_score"`
	LowestScore    int     `json:"lowest_score"`
	PendingReviews int     `json:"pending_reviews"`
}

type SolutionRow struct {
	SolutionID     int64     `json:"solution_id"`
	Username       string    `json:"username"`
	FullName       string    `json:"full_name"`
	Score          int       `json:"score"`
	HasOpenAnswers bool      `json:"has_open_answers"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

type PendingReview struct {
	SolutionID  int64     `json:"solution_id"`
	TestID      int64     `json:"test_id"`
	TestTitle   string    `json:"test_title"`
	Username    string    `json:"username"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// SummaryByTest aggregates all graded attempts for one test.
func (s *Service) SummaryByTest(ctx context.Context, testID int64) (*TestSummary, error) {
	var sum TestSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.title,
		       COUNT(us.id),
		       COALESCE(AVG(us.score), 0),
		       COALESCE(MAX(us.score), 0),
		       COALESCE(MIN(us.score), 0),
		       COUNT(us.id) FILTER (WHERE us.has_open_answers)
		FROM tests t
		LEFT JOIN user_solutions us ON us.test_id = t.id
		WHERE t.id = $1
		GROUP BY t.id, t.title
	`, testID).Scan(
		&sum.TestID, &sum.Title, &sum.Attempts, &sum.AverageScore,
		&sum.HighestScore, &sum.LowestScore, &sum.PendingReviews,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("aggregate test summary: %w", err)
	}
	return &sum, nil
}

// ListPendingReview returns solutions that referenced open questions and
// still await manual grading, oldest first.
func (s *Service) ListPendingReview(ctx context.Context, limit, offset int) ([]PendingReview, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT us.id, t.id, t.title, u.username, us.score, us.submitted_at
		FROM user_solutions us
		JOIN tests t ON t.id = us.test_id
		JOIN users u ON u.id = us.user_id
		WHERE us.has_open_answers = TRUE
		ORDER BY us.submitted_at ASC, us.id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query pending reviews: %w", err)
	}
	defer rows.Close()

	out := make([]PendingReview, 0)
	for rows.Next() {
		var p PendingReview
		if err := rows.Scan(&p.SolutionID, &p.TestID, &p.TestTitle, &p.Username, &p.Score, &p.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan pending review: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending reviews: %w", err)
	}
	return out, nil
}

func (s *Service) listSolutions(ctx context.Context, testID int64) ([]SolutionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT us.id, u.username, u.full_name, us.score, us.has_open_answers, us.submitted_at
		FROM user_solutions us
		JOIN users u ON u.id = us.user_id
		WHERE us.test_id = $1
		ORDER BY us.submitted_at DESC, us.id DESC
	`, testID)
	if err != nil {
		return nil, fmt.Errorf("query solutions: %w", err)
	}
	defer rows.Close()

	out := make([]SolutionRow, 0)
	for rows.Next() {
		var r SolutionRow
		if err := rows.Scan(&r.SolutionID, &r.Username, &r.FullName, &r.Score, &r.HasOpenAnswers, &r.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan solution: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate solutions: %w", err)
	}
	return out, nil
}

// ExportSolutionsExcel renders every attempt for one test as an XLSX sheet.
func (s *Service) ExportSolutionsExcel(ctx context.Context, testID int64) ([]byte, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM tests WHERE id = $1)
	`, testID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check test: %w", err)
	}
	if !exists {
		return nil, ErrTestNotFound
	}

	items, err := s.listSolutions(ctx, testID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"solution_id", "username", "full_name", "score", "pending_review", "submitted_at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, it := range items {
		row := i + 2
		values := []any{
			it.SolutionID,
			it.Username,
			it.FullName,
			it.Score,
			it.HasOpenAnswers,
			it.SubmittedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "F", 22)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
