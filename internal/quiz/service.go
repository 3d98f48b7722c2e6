package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

var (
	ErrTestNotFound          = errors.New("test not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrEmptySubmission       = errors.New("submission has no answers")
	ErrNoCorrectOption       = errors.New("no correct option configured")
	ErrOptionIndexOutOfRange = errors.New("selected option index out of range")
)

type Service struct {
	db *sql.DB
}

type SubmitInput struct {
	TestID    int64
	UserID    int64
	StartedAt *time.Time
	Answers   []AnswerInput
}

type GradeResult struct {
	SolutionID     int64  `json:"solution_id"`
	ScorePercent   int    `json:"score_percent"`
	CorrectTotal   string `json:"correct_total"`
	TotalPoints    int    `json:"total_points"`
	EarnedPoints   int    `json:"earned_points"`
	HasOpenAnswers bool   `json:"has_open_answers"`
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Submit grades a learner's answer set against the test's current question
// configuration and persists the graded solution in a single transaction.
// Nothing is written when validation fails.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*GradeResult, error) {
	if len(in.Answers) == 0 {
		return nil, ErrEmptySubmission
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND is_active = TRUE)
	`, in.UserID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM tests WHERE id = $1 AND is_active = TRUE)
	`, in.TestID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check test: %w", err)
	}
	if !exists {
		return nil, ErrTestNotFound
	}

	closed, err := s.loadClosedQuestions(ctx, in.TestID)
	if err != nil {
		return nil, err
	}
	open, err := s.loadOpenQuestions(ctx, in.TestID)
	if err != nil {
		return nil, err
	}

	outcome, err := gradeAnswers(closed, open, in.Answers)
	if err != nil {
		return nil, err
	}
	for _, id := range outcome.DroppedIDs {
		log.Printf("submit: dropped answer for unknown question %d (test %d, user %d)", id, in.TestID, in.UserID)
	}

	percent := scorePercent(outcome.CorrectCount, outcome.TotalClosed)

	startedAt := time.Now()
	if in.StartedAt != nil {
		startedAt = *in.StartedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin submit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var solutionID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO user_solutions (
			user_id, test_id, started_at, submitted_at, completed_at, score, has_open_answers
		) VALUES (
			$1, $2, $3, now(), now(), $4, $5
		)
		RETURNING id
	`, in.UserID, in.TestID, startedAt, percent, outcome.HasOpenAnswers).Scan(&solutionID)
	if err != nil {
		return nil, fmt.Errorf("insert solution: %w", err)
	}

	for _, a := range outcome.Answers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_answers (
				solution_id, question_id, selected_index, correct_index, is_correct, points_earned
			) VALUES ($1, $2, $3, $4, $5, $6)
		`, solutionID, a.QuestionID, a.SelectedIndex, a.CorrectIndex, a.IsCorrect, a.PointsEarned); err != nil {
			return nil, fmt.Errorf("insert answer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submit: %w", err)
	}

	return &GradeResult{
		SolutionID:     solutionID,
		ScorePercent:   percent,
		CorrectTotal:   fmt.Sprintf("%d/%d", outcome.CorrectCount, outcome.TotalClosed),
		TotalPoints:    outcome.TotalPoints,
		EarnedPoints:   outcome.EarnedPoints,
		HasOpenAnswers: outcome.HasOpenAnswers,
	}, nil
}

func (s *Service) loadClosedQuestions(ctx context.Context, testID int64) ([]ClosedQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cq.id, cq.text, cq.points, ao.id, ao.text, ao.order_index, ao.is_correct
		FROM closed_questions cq
		JOIN answer_options ao ON ao.question_id = cq.id
		WHERE cq.test_id = $1
		ORDER BY cq.seq_no, cq.id, ao.order_index
	`, testID)
	if err != nil {
		return nil, fmt.Errorf("query closed questions: %w", err)
	}
	defer rows.Close()

	out := make([]ClosedQuestion, 0)
	var current *ClosedQuestion
	for rows.Next() {
		var qID int64
		var qText string
		var qPoints int
		var opt AnswerOption
		if err := rows.Scan(&qID, &qText, &qPoints, &opt.ID, &opt.Text, &opt.OrderIndex, &opt.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan closed question: %w", err)
		}
		if current == nil || current.ID != qID {
			out = append(out, ClosedQuestion{ID: qID, Text: qText, Points: qPoints})
			current = &out[len(out)-1]
		}
		current.Options = append(current.Options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate closed questions: %w", err)
	}
	return out, nil
}

func (s *Service) loadOpenQuestions(ctx context.Context, testID int64) ([]OpenQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, points, correct_answer
		FROM open_questions
		WHERE test_id = $1
		ORDER BY seq_no, id
	`, testID)
	if err != nil {
		return nil, fmt.Errorf("query open questions: %w", err)
	}
	defer rows.Close()

	out := make([]OpenQuestion, 0)
	for rows.Next() {
		var q OpenQuestion
		if err := rows.Scan(&q.ID, &q.Text, &q.Points, &q.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("scan open question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open questions: %w", err)
	}
	return out, nil
}
