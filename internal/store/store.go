// Package store defines the persistence contract for the question catalog,
// the answer event log, and per-user performance summaries, together with a
// Postgres implementation and an in-memory implementation for tests.
package store

import (
	"context"

	"examprep/internal/models"
)

// QuestionFilter narrows catalog queries.
type QuestionFilter struct {
	// Topic restricts results to a single topic when non-empty.
	Topic string
}

// SummaryFilter narrows performance summary queries.
type SummaryFilter struct {
	// Topic restricts results to a single topic when non-empty.
	Topic string
}

// UpdateSummaryFunc computes the next summary state from the current one.
// existing is nil when the (user, question) pair has never been folded; the
// returned summary replaces the stored row. The store calls it exactly once,
// under row-level isolation.
type UpdateSummaryFunc func(existing *models.PerformanceSummary) (*models.PerformanceSummary, error)

// QuestionStore is read/write access to the immutable question catalog.
type QuestionStore interface {
	// GetQuestion returns the catalog entry for questionID, or
	// contextutils.ErrQuestionNotFound when no such question exists.
	GetQuestion(ctx context.Context, questionID string) (*models.Question, error)

	// ListQuestions returns catalog entries matching the filter, ordered by
	// question number.
	ListQuestions(ctx context.Context, filter QuestionFilter) ([]*models.Question, error)

	// ListTopics returns the distinct topics present in the catalog, sorted.
	ListTopics(ctx context.Context) ([]string, error)

	// UpsertQuestions inserts or replaces catalog entries keyed by question
	// ID and reports how many rows were written.
	UpsertQuestions(ctx context.Context, questions []*models.Question) (int, error)

	// CountQuestions returns the catalog size under the filter.
	CountQuestions(ctx context.Context, filter QuestionFilter) (int, error)
}

// PerformanceStore is access to the answer event log and the summaries
// derived from it.
type PerformanceStore interface {
	// GetSummary returns the summary for the (username, questionID) pair,
	// or nil with no error when the pair has never been answered.
	GetSummary(ctx context.Context, username, questionID string) (*models.PerformanceSummary, error)

	// ListSummaries returns all summaries for the user matching the filter.
	ListSummaries(ctx context.Context, username string, filter SummaryFilter) ([]*models.PerformanceSummary, error)

	// UpsertSummaryAtomic applies update to the (username, questionID)
	// summary as one atomic read-modify-write. Concurrent calls for the
	// same pair serialize; a failed update leaves the row unchanged.
	UpsertSummaryAtomic(ctx context.Context, username, questionID string, update UpdateSummaryFunc) (*models.PerformanceSummary, error)

	// InsertAnswerEvent appends one event to the log.
	InsertAnswerEvent(ctx context.Context, event *models.AnswerEvent) error

	// RecordAnswerAtomic appends the event and applies update to the
	// matching summary in a single transaction: either both are persisted
	// or neither is.
	RecordAnswerAtomic(ctx context.Context, event *models.AnswerEvent, update UpdateSummaryFunc) (*models.PerformanceSummary, error)

	// ListAnswerEvents returns the user's most recent events, newest first,
	// capped at limit (no cap when limit <= 0).
	ListAnswerEvents(ctx context.Context, username string, limit int) ([]*models.AnswerEvent, error)

	// ResetUserProgress deletes the user's events and summaries. The
	// question catalog is untouched.
	ResetUserProgress(ctx context.Context, username string) error
}

// Store combines the catalog and performance contracts.
type Store interface {
	QuestionStore
	PerformanceStore
}
