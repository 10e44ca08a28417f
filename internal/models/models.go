// Package models contains the data structures shared across the exam practice
// application: the question catalog, the append-only answer event log, and the
// per-user performance summaries derived from it.
package models

import (
	"encoding/json"
	"time"

	contextutils "examprep/internal/utils"
)

// AnswerOption is a single choice within a question.
type AnswerOption struct {
	Letter    string `json:"letter"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Question is an immutable catalog entry. Questions are created by import and
// never mutated by the selection or recording paths.
type Question struct {
	ID            string         `json:"question_id"`
	Number        int            `json:"question_number"`
	Topic         string         `json:"topic"`
	Text          string         `json:"question_text"`
	Options       []AnswerOption `json:"answer_options"`
	CorrectAnswer string         `json:"correct_answer"`
	Explanation   string         `json:"explanation,omitempty"`
	SourceFile    string         `json:"source_file,omitempty"`
	SourceType    string         `json:"source_type,omitempty"`
	CreatedAt     time.Time      `json:"created_at,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at,omitempty"`
}

// MarshalOptionsToJSON serializes the answer options for storage.
func (q *Question) MarshalOptionsToJSON() (result0 string, err error) {
	if q.Options == nil {
		return "[]", nil
	}
	data, err := json.Marshal(q.Options)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to marshal answer options")
	}
	return string(data), nil
}

// UnmarshalOptionsFromJSON deserializes stored answer options.
func (q *Question) UnmarshalOptionsFromJSON(data string) error {
	if data == "" {
		q.Options = nil
		return nil
	}
	if err := json.Unmarshal([]byte(data), &q.Options); err != nil {
		return contextutils.WrapError(err, "failed to unmarshal answer options")
	}
	return nil
}

// AnswerEvent is an immutable fact: one row per submitted answer, never
// updated or deleted by the application.
type AnswerEvent struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	QuestionID string    `json:"question_id"`
	Choice     string    `json:"choice"`
	IsCorrect  bool      `json:"is_correct"`
	AnsweredAt time.Time `json:"answered_at"`
}

// PerformanceSummary is the running fold of AnswerEvents for one
// (user, question) pair. Replaying the pair's event log from the zero value
// must reproduce it exactly.
type PerformanceSummary struct {
	Username          string    `json:"username"`
	QuestionID        string    `json:"question_id"`
	Topic             string    `json:"topic"`
	TotalAttempts     int       `json:"total_attempts"`
	CorrectAttempts   int       `json:"correct_attempts"`
	IncorrectAttempts int       `json:"incorrect_attempts"`
	Streak            int       `json:"streak"`
	PriorityScore     float64   `json:"priority_score"`
	LastAnsweredAt    time.Time `json:"last_answered_at"`
}

// AccuracyRate returns the fraction of correct attempts as a percentage.
func (ps *PerformanceSummary) AccuracyRate() float64 {
	if ps.TotalAttempts == 0 {
		return 0
	}
	return float64(ps.CorrectAttempts) / float64(ps.TotalAttempts) * 100
}

// SelectionMode determines how the next question is chosen.
type SelectionMode string

const (
	// ModeAdaptive samples questions weighted by priority score.
	ModeAdaptive SelectionMode = "adaptive"
	// ModeUnanswered draws uniformly from never-answered questions.
	ModeUnanswered SelectionMode = "unanswered"
	// ModeWeakest deterministically returns the highest-priority missed question.
	ModeWeakest SelectionMode = "weakest"
	// ModeRandom draws uniformly from all eligible questions.
	ModeRandom SelectionMode = "random"
)

// ParseSelectionMode validates a mode string, defaulting empty input to adaptive.
func ParseSelectionMode(s string) (SelectionMode, error) {
	switch SelectionMode(s) {
	case ModeAdaptive, ModeUnanswered, ModeWeakest, ModeRandom:
		return SelectionMode(s), nil
	case "":
		return ModeAdaptive, nil
	}
	return "", contextutils.WrapErrorf(contextutils.ErrInvalidSelectionMode, "unknown selection mode %q", s)
}

// BatchBalance controls how a simulated-exam batch is composed.
type BatchBalance string

const (
	// BalanceMixed draws the whole batch uniformly at random.
	BalanceMixed BatchBalance = "mixed"
	// BalanceChallenging fills the batch with repeated adaptive draws.
	BalanceChallenging BatchBalance = "challenging"
	// BalanceAdaptive mixes weakest-first drilling with random coverage.
	BalanceAdaptive BatchBalance = "adaptive"
)

// ParseBatchBalance validates a balance string, defaulting empty input to mixed.
func ParseBatchBalance(s string) (BatchBalance, error) {
	switch BatchBalance(s) {
	case BalanceMixed, BalanceChallenging, BalanceAdaptive:
		return BatchBalance(s), nil
	case "":
		return BalanceMixed, nil
	}
	return "", contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown batch balance %q", s)
}

// UserStats is the overall answer tally for a user.
type UserStats struct {
	Username      string  `json:"username"`
	TotalAnswered int     `json:"total_answered"`
	TotalCorrect  int     `json:"total_correct"`
	Accuracy      float64 `json:"accuracy"`
}

// TopicPerformance aggregates summaries for one topic.
type TopicPerformance struct {
	Topic             string  `json:"topic"`
	QuestionsAnswered int     `json:"questions_answered"`
	TotalAttempts     int     `json:"total_attempts"`
	CorrectAttempts   int     `json:"correct_attempts"`
	Accuracy          float64 `json:"accuracy"`
	AvgPriority       float64 `json:"avg_priority"`
}

// TopicMastery grades a topic on a 0-5 level from accuracy and volume.
type TopicMastery struct {
	Topic             string  `json:"topic"`
	Level             int     `json:"level"`
	Accuracy          float64 `json:"accuracy"`
	QuestionsAnswered int     `json:"questions_answered"`
	AvgPriority       float64 `json:"avg_priority"`
}

// AnswerRequest is the request body for submitting an answer.
type AnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	Choice     string `json:"choice" binding:"required"`
}

// AnswerResponse reports the outcome of a submitted answer.
type AnswerResponse struct {
	IsCorrect     bool                `json:"is_correct"`
	CorrectAnswer string              `json:"correct_answer"`
	Explanation   string              `json:"explanation,omitempty"`
	Summary       *PerformanceSummary `json:"summary"`
}
