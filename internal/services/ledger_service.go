// Package services contains the application's core logic: the performance
// ledger, the adaptive question selector, statistics, authentication, and
// question import.
package services

import (
	"context"
	"errors"
	"time"

	"examprep/internal/config"
	"examprep/internal/models"
	"examprep/internal/observability"
	"examprep/internal/store"
	contextutils "examprep/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// LedgerService is the only writer of performance summaries. Every submitted
// answer passes through RecordAnswer exactly once; the summary for a
// (user, question) pair is a pure fold over that pair's answer events.
type LedgerService struct {
	store  store.Store
	logger *observability.Logger
}

// NewLedgerService creates a LedgerService on the given store.
func NewLedgerService(s store.Store, logger *observability.Logger) *LedgerService {
	if s == nil {
		panic("store cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &LedgerService{store: s, logger: logger}
}

// clampPriority bounds a priority score to the configured range.
func clampPriority(p float64) float64 {
	if p < config.PriorityFloor {
		return config.PriorityFloor
	}
	if p > config.PriorityCeiling {
		return config.PriorityCeiling
	}
	return p
}

// FoldAnswer applies one answer to a summary and returns the next state.
// existing is nil for the first answer of a pair; the first observation sets
// the priority directly to -2.0 or +5.0 without retaining the 3.0 prior.
// The fold is deterministic: replaying a pair's event log from nil
// reproduces the stored summary exactly.
func FoldAnswer(existing *models.PerformanceSummary, topic string, isCorrect bool, answeredAt time.Time) *models.PerformanceSummary {
	if existing == nil {
		next := &models.PerformanceSummary{
			Topic:          topic,
			TotalAttempts:  1,
			LastAnsweredAt: answeredAt,
		}
		if isCorrect {
			next.CorrectAttempts = 1
			next.Streak = 1
			next.PriorityScore = -config.PriorityCorrectDelta
		} else {
			next.IncorrectAttempts = 1
			next.Streak = 0
			next.PriorityScore = config.PriorityIncorrectDelta
		}
		return next
	}

	next := *existing
	next.Topic = topic
	next.TotalAttempts++
	if isCorrect {
		next.CorrectAttempts++
		next.Streak++
		next.PriorityScore = clampPriority(next.PriorityScore - config.PriorityCorrectDelta)
	} else {
		next.IncorrectAttempts++
		next.Streak = 0
		next.PriorityScore = clampPriority(next.PriorityScore + config.PriorityIncorrectDelta)
	}
	next.LastAnsweredAt = answeredAt
	return &next
}

// ReplayEvents folds an ordered event sequence for one pair from the empty
// state. Used by the admin backfill command to rebuild summaries from the log.
func ReplayEvents(events []*models.AnswerEvent, topic string) *models.PerformanceSummary {
	var summary *models.PerformanceSummary
	for _, event := range events {
		summary = FoldAnswer(summary, topic, event.IsCorrect, event.AnsweredAt)
	}
	return summary
}

// RecordAnswer persists one answer event and folds it into the pair's summary
// in a single atomic step. It must be called exactly once per submitted
// answer; duplicate submissions are the caller's responsibility to prevent.
//
// Fails with contextutils.ErrQuestionNotFound when the question is not in the
// catalog and with contextutils.ErrStorageUnavailable when the store cannot
// be reached in time; on any failure no state change is observable.
func (s *LedgerService) RecordAnswer(ctx context.Context, username, questionID, choice string, isCorrect bool, answeredAt time.Time) (result0 *models.PerformanceSummary, err error) {
	ctx, span := observability.TraceLedgerFunction(ctx, "RecordAnswer",
		observability.AttributeUsername(username),
		observability.AttributeQuestionID(questionID),
		attribute.Bool("answer.is_correct", isCorrect),
	)
	defer observability.FinishSpan(span, &err)

	ctx, cancel := context.WithTimeout(ctx, config.StorageOpTimeout)
	defer cancel()

	question, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrQuestionNotFound) {
			return nil, err
		}
		return nil, s.asStorageError(err, "failed to load question for recording")
	}

	event := &models.AnswerEvent{
		Username:   username,
		QuestionID: questionID,
		Choice:     choice,
		IsCorrect:  isCorrect,
		AnsweredAt: answeredAt,
	}

	summary, err := s.store.RecordAnswerAtomic(ctx, event, func(existing *models.PerformanceSummary) (*models.PerformanceSummary, error) {
		return FoldAnswer(existing, question.Topic, isCorrect, answeredAt), nil
	})
	if err != nil {
		return nil, s.asStorageError(err, "failed to record answer")
	}

	s.logger.Debug(ctx, "Answer recorded", map[string]interface{}{
		"username":    username,
		"question_id": questionID,
		"is_correct":  isCorrect,
		"priority":    summary.PriorityScore,
		"streak":      summary.Streak,
	})
	return summary, nil
}

// RebuildSummary replays the full event log for one pair through
// UpsertSummaryAtomic, replacing whatever summary is stored. Administrative
// repair path; normal recording never calls it.
func (s *LedgerService) RebuildSummary(ctx context.Context, username, questionID string) (result0 *models.PerformanceSummary, err error) {
	ctx, span := observability.TraceLedgerFunction(ctx, "RebuildSummary",
		observability.AttributeUsername(username),
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	question, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrQuestionNotFound) {
			return nil, err
		}
		return nil, s.asStorageError(err, "failed to load question for rebuild")
	}

	events, err := s.store.ListAnswerEvents(ctx, username, 0)
	if err != nil {
		return nil, s.asStorageError(err, "failed to list answer events")
	}

	// ListAnswerEvents returns newest first; the fold needs submission order.
	var pairEvents []*models.AnswerEvent
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].QuestionID == questionID {
			pairEvents = append(pairEvents, events[i])
		}
	}
	if len(pairEvents) == 0 {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "no answer events for %s/%s", username, questionID)
	}

	rebuilt := ReplayEvents(pairEvents, question.Topic)
	summary, err := s.store.UpsertSummaryAtomic(ctx, username, questionID, func(*models.PerformanceSummary) (*models.PerformanceSummary, error) {
		return rebuilt, nil
	})
	if err != nil {
		return nil, s.asStorageError(err, "failed to store rebuilt summary")
	}
	return summary, nil
}

// asStorageError maps infrastructure failures onto ErrStorageUnavailable so
// callers can distinguish retryable faults from caller errors.
func (s *LedgerService) asStorageError(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "%s: %v", msg, err)
	}
	var appErr *contextutils.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case contextutils.ErrorCodeStorageUnavailable, contextutils.ErrorCodeRecordNotFound:
			return err
		}
	}
	return contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "%s: %v", msg, err)
}
