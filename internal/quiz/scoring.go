package quiz

import (
	"fmt"
	"math"
)

// ClosedQuestion carries the options in authoritative order_index order;
// index-based answer matching depends on that ordering.
type ClosedQuestion struct {
	ID      int64
	Text    string
	Points  int
	Options []AnswerOption
}

type AnswerOption struct {
	ID         int64
	Text       string
	OrderIndex int
	IsCorrect  bool
}

type OpenQuestion struct {
	ID            int64
	Text          string
	Points        int
	CorrectAnswer string
}

type AnswerInput struct {
	QuestionID          int64 `json:"question_id"`
	SelectedOptionIndex int   `json:"selected_option_index"`
}

type GradedAnswer struct {
	QuestionID    int64
	SelectedIndex int
	CorrectIndex  int
	IsCorrect     bool
	PointsEarned  int
}

type gradeOutcome struct {
	Answers        []GradedAnswer
	DroppedIDs     []int64
	CorrectCount   int
	TotalClosed    int
	EarnedPoints   int
	TotalPoints    int
	HasOpenAnswers bool
}

// correctOptionIndex resolves the correct option's position by scanning
// is_correct at grading time. The current question configuration is always
// authoritative; nothing is snapshotted at test start.
func correctOptionIndex(q ClosedQuestion) (int, error) {
	for i, opt := range q.Options {
		if opt.IsCorrect {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: question %d", ErrNoCorrectOption, q.ID)
}

// gradeAnswers validates and scores a raw answer list against the test's
// question set. Every closed question must resolve a correct option before
// any answer is graded; a misconfigured answer key fails the submission
// even when that question went unanswered. An out-of-range option index
// fails the whole submission; answers to open questions are accepted but
// not graded; answers matching no question at all are collected in
// DroppedIDs for the caller to log.
func gradeAnswers(closed []ClosedQuestion, open []OpenQuestion, answers []AnswerInput) (*gradeOutcome, error) {
	closedByID := make(map[int64]ClosedQuestion, len(closed))
	correctByID := make(map[int64]int, len(closed))
	totalPoints := 0
	for _, q := range closed {
		idx, err := correctOptionIndex(q)
		if err != nil {
			return nil, err
		}
		closedByID[q.ID] = q
		correctByID[q.ID] = idx
		totalPoints += q.Points
	}
	openIDs := make(map[int64]struct{}, len(open))
	for _, q := range open {
		openIDs[q.ID] = struct{}{}
	}

	out := &gradeOutcome{
		Answers:     make([]GradedAnswer, 0, len(answers)),
		TotalClosed: len(closed),
		TotalPoints: totalPoints,
	}

	for _, a := range answers {
		q, isClosed := closedByID[a.QuestionID]
		if !isClosed {
			if _, isOpen := openIDs[a.QuestionID]; isOpen {
				out.HasOpenAnswers = true
				continue
			}
			// Stale client-side question reference; tolerated.
			out.DroppedIDs = append(out.DroppedIDs, a.QuestionID)
			continue
		}

		if a.SelectedOptionIndex < 0 || a.SelectedOptionIndex >= len(q.Options) {
			return nil, fmt.Errorf("%w: question %d index %d of %d options",
				ErrOptionIndexOutOfRange, a.QuestionID, a.SelectedOptionIndex, len(q.Options))
		}

		correctIdx := correctByID[a.QuestionID]

		graded := GradedAnswer{
			QuestionID:    a.QuestionID,
			SelectedIndex: a.SelectedOptionIndex,
			CorrectIndex:  correctIdx,
			IsCorrect:     a.SelectedOptionIndex == correctIdx,
		}
		if graded.IsCorrect {
			graded.PointsEarned = q.Points
			out.CorrectCount++
			out.EarnedPoints += q.Points
		}
		out.Answers = append(out.Answers, graded)
	}

	return out, nil
}

// scorePercent ignores per-question point weights and open questions:
// the percent is purely correct closed answers over all closed questions.
func scorePercent(correct, totalClosed int) int {
	if totalClosed == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(totalClosed) * 100))
}
