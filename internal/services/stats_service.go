package services

import (
	"context"
	"math"
	"sort"

	"examprep/internal/models"
	"examprep/internal/observability"
	"examprep/internal/store"
	contextutils "examprep/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// StatsService aggregates read-only views over the performance summaries.
type StatsService struct {
	store  store.Store
	logger *observability.Logger
}

// NewStatsService creates a StatsService on the given store.
func NewStatsService(s store.Store, logger *observability.Logger) *StatsService {
	if s == nil {
		panic("store cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &StatsService{store: s, logger: logger}
}

// GetUserStats returns the user's overall answer tally.
func (s *StatsService) GetUserStats(ctx context.Context, username string) (result0 *models.UserStats, err error) {
	ctx, span := observability.TraceStatsFunction(ctx, "GetUserStats",
		observability.AttributeUsername(username),
	)
	defer observability.FinishSpan(span, &err)

	summaries, err := s.store.ListSummaries(ctx, username, store.SummaryFilter{})
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to list summaries: %v", err)
	}

	stats := &models.UserStats{Username: username}
	for _, summary := range summaries {
		stats.TotalAnswered += summary.TotalAttempts
		stats.TotalCorrect += summary.CorrectAttempts
	}
	if stats.TotalAnswered > 0 {
		stats.Accuracy = float64(stats.TotalCorrect) / float64(stats.TotalAnswered) * 100
	}

	span.SetAttributes(attribute.Int("stats.total_answered", stats.TotalAnswered))
	return stats, nil
}

// GetTopicPerformance aggregates the user's summaries per topic, sorted by
// topic name.
func (s *StatsService) GetTopicPerformance(ctx context.Context, username string) (result0 []*models.TopicPerformance, err error) {
	ctx, span := observability.TraceStatsFunction(ctx, "GetTopicPerformance",
		observability.AttributeUsername(username),
	)
	defer observability.FinishSpan(span, &err)

	summaries, err := s.store.ListSummaries(ctx, username, store.SummaryFilter{})
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to list summaries: %v", err)
	}

	byTopic := make(map[string]*models.TopicPerformance)
	priorityTotals := make(map[string]float64)
	for _, summary := range summaries {
		perf, ok := byTopic[summary.Topic]
		if !ok {
			perf = &models.TopicPerformance{Topic: summary.Topic}
			byTopic[summary.Topic] = perf
		}
		perf.QuestionsAnswered++
		perf.TotalAttempts += summary.TotalAttempts
		perf.CorrectAttempts += summary.CorrectAttempts
		priorityTotals[summary.Topic] += summary.PriorityScore
	}

	var performances []*models.TopicPerformance
	for topic, perf := range byTopic {
		if perf.TotalAttempts > 0 {
			perf.Accuracy = float64(perf.CorrectAttempts) / float64(perf.TotalAttempts) * 100
		}
		perf.AvgPriority = priorityTotals[topic] / float64(perf.QuestionsAnswered)
		performances = append(performances, perf)
	}
	sort.Slice(performances, func(i, j int) bool {
		return performances[i].Topic < performances[j].Topic
	})

	span.SetAttributes(attribute.Int("topics.count", len(performances)))
	return performances, nil
}

// masteryLevel grades accuracy plus volume on a 0-5 scale. Higher levels
// require both better accuracy and more questions answered; a topic with
// fewer than three answered questions does not register at all.
func masteryLevel(accuracy float64, questionsAnswered int) int {
	switch {
	case accuracy >= 90 && questionsAnswered >= 20:
		return 5
	case accuracy >= 80 && questionsAnswered >= 15:
		return 4
	case accuracy >= 70 && questionsAnswered >= 10:
		return 3
	case accuracy >= 60 && questionsAnswered >= 5:
		return 2
	case questionsAnswered >= 3:
		return 1
	default:
		return 0
	}
}

// GetTopicMastery grades each answered topic on the 0-5 mastery scale.
func (s *StatsService) GetTopicMastery(ctx context.Context, username string) (result0 []*models.TopicMastery, err error) {
	ctx, span := observability.TraceStatsFunction(ctx, "GetTopicMastery",
		observability.AttributeUsername(username),
	)
	defer observability.FinishSpan(span, &err)

	performances, err := s.GetTopicPerformance(ctx, username)
	if err != nil {
		return nil, err
	}

	masteries := make([]*models.TopicMastery, 0, len(performances))
	for _, perf := range performances {
		masteries = append(masteries, &models.TopicMastery{
			Topic:             perf.Topic,
			Level:             masteryLevel(perf.Accuracy, perf.QuestionsAnswered),
			Accuracy:          perf.Accuracy,
			QuestionsAnswered: perf.QuestionsAnswered,
			AvgPriority:       perf.AvgPriority,
		})
	}
	return masteries, nil
}

// GetWeakestTopic returns the answered topic with the highest average
// priority, or ErrNoQuestionsAvailable when the user has no history.
func (s *StatsService) GetWeakestTopic(ctx context.Context, username string) (result0 *models.TopicPerformance, err error) {
	ctx, span := observability.TraceStatsFunction(ctx, "GetWeakestTopic",
		observability.AttributeUsername(username),
	)
	defer observability.FinishSpan(span, &err)

	performances, err := s.GetTopicPerformance(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(performances) == 0 {
		return nil, contextutils.WrapErrorf(contextutils.ErrNoQuestionsAvailable, "no answer history for %s", username)
	}

	weakest := performances[0]
	bestAvg := math.Inf(-1)
	for _, perf := range performances {
		if perf.AvgPriority > bestAvg {
			weakest = perf
			bestAvg = perf.AvgPriority
		}
	}

	span.SetAttributes(observability.AttributeTopic(weakest.Topic))
	return weakest, nil
}

// GetAnswerHistory returns the user's most recent answer events, newest first.
func (s *StatsService) GetAnswerHistory(ctx context.Context, username string, limit int) (result0 []*models.AnswerEvent, err error) {
	ctx, span := observability.TraceStatsFunction(ctx, "GetAnswerHistory",
		observability.AttributeUsername(username),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	events, err := s.store.ListAnswerEvents(ctx, username, limit)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to list answer events: %v", err)
	}
	return events, nil
}

// ResetProgress deletes the user's events and summaries. Administrative
// action; the question catalog is untouched.
func (s *StatsService) ResetProgress(ctx context.Context, username string) (err error) {
	ctx, span := observability.TraceStatsFunction(ctx, "ResetProgress",
		observability.AttributeUsername(username),
	)
	defer observability.FinishSpan(span, &err)

	if err = s.store.ResetUserProgress(ctx, username); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to reset progress: %v", err)
	}

	s.logger.Info(ctx, "Progress reset", map[string]interface{}{"username": username})
	return nil
}
