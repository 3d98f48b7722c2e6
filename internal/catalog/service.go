package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrTestNotFound    = errors.New("test not found")
	ErrPremiumRequired = errors.New("premium subscription required")
)

type TestSummary struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	IsPremium     bool   `json:"is_premium"`
	QuestionCount int    `json:"question_count"`
}

type AnswerOption struct {
	ID         int64  `json:"id"`
	Text       string `json:"text"`
	OrderIndex int    `json:"order_index"`
	IsCorrect  *bool  `json:"is_correct,omitempty"`
}

type ClosedQuestion struct {
	ID      int64          `json:"id"`
	Text    string         `json:"text"`
	Points  int            `json:"points"`
	Options []AnswerOption `json:"options"`
}

type OpenQuestion struct {
	ID            int64   `json:"id"`
	Text          string  `json:"text"`
	Points        int     `json:"points"`
	CorrectAnswer *string `json:"correct_answer,omitempty"`
}

type TestDetail struct {
	ID              int64            `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	IsPremium       bool             `json:"is_premium"`
	ClosedQuestions []ClosedQuestion `json:"closed_questions"`
	OpenQuestions   []OpenQuestion   `json:"open_questions"`
}

// subscriptionChecker is the slice of the subscription service the catalog
// needs for premium gating.
type subscriptionChecker interface {
	IsSubscriptionActive(ctx context.Context, userID int64) (bool, error)
}

type Service struct {
	db   *sql.DB
	subs subscriptionChecker
}

func NewService(db *sql.DB, subs subscriptionChecker) *Service {
	return &Service{db: db, subs: subs}
}

// ListActiveTests returns every active test, premium ones included; gating
// applies when a test is opened, not when it is listed.
func (s *Service) ListActiveTests(ctx context.Context) ([]TestSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.title, t.description, t.is_premium,
		       (SELECT COUNT(*) FROM closed_questions cq WHERE cq.test_id = t.id) +
		       (SELECT COUNT(*) FROM open_questions oq WHERE oq.test_id = t.id)
		FROM tests t
		WHERE t.is_active = TRUE
		ORDER BY t.created_at DESC, t.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tests: %w", err)
	}
	defer rows.Close()

	out := make([]TestSummary, 0)
	for rows.Next() {
		var t TestSummary
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.IsPremium, &t.QuestionCount); err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tests: %w", err)
	}
	return out, nil
}

// GetTest loads an active test with its questions in presentation order.
// Premium tests require an active subscription unless the caller is an
// admin. Answer keys (correct options, reference answers) are included only
// when includeAnswers is set; learners never see them.
func (s *Service) GetTest(ctx context.Context, testID, userID int64, isAdmin, includeAnswers bool) (*TestDetail, error) {
	var detail TestDetail
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, is_premium
		FROM tests
		WHERE id = $1 AND is_active = TRUE
	`, testID).Scan(&detail.ID, &detail.Title, &detail.Description, &detail.IsPremium)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load test: %w", err)
	}

	if detail.IsPremium && !isAdmin {
		active, err := s.subs.IsSubscriptionActive(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, ErrPremiumRequired
		}
	}

	detail.ClosedQuestions, err = s.loadClosedQuestions(ctx, testID, includeAnswers)
	if err != nil {
		return nil, err
	}
	detail.OpenQuestions, err = s.loadOpenQuestions(ctx, testID, includeAnswers)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (s *Service) loadClosedQuestions(ctx context.Context, testID int64, includeAnswers bool) ([]ClosedQuestion, error) {
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
		var isCorrect bool
		if err := rows.Scan(&qID, &qText, &qPoints, &opt.ID, &opt.Text, &opt.OrderIndex, &isCorrect); err != nil {
			return nil, fmt.Errorf("scan closed question: %w", err)
		}
		if includeAnswers {
			opt.IsCorrect = &isCorrect
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

func (s *Service) loadOpenQuestions(ctx context.Context, testID int64, includeAnswers bool) ([]OpenQuestion, error) {
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
		var answer string
		if err := rows.Scan(&q.ID, &q.Text, &q.Points, &answer); err != nil {
			return nil, fmt.Errorf("scan open question: %w", err)
		}
		if includeAnswers {
			q.CorrectAnswer = &answer
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open questions: %w", err)
	}
	return out, nil
}
