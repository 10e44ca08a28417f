package services

import (
	"context"
	"testing"
	"time"

	"examprep/internal/models"
	"examprep/internal/store"
	contextutils "examprep/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStatsFixture(t *testing.T) (*StatsService, *store.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore()
	return NewStatsService(memStore, testLogger()), memStore
}

func TestGetUserStats(t *testing.T) {
	stats, memStore := newStatsFixture(t)
	ctx := context.Background()

	// No history
	empty, err := stats.GetUserStats(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, empty.TotalAnswered)
	assert.Zero(t, empty.Accuracy)

	putSummary(t, memStore, "alice", &models.PerformanceSummary{QuestionID: "q1", Topic: "cardiology", TotalAttempts: 4, CorrectAttempts: 3, IncorrectAttempts: 1})
	putSummary(t, memStore, "alice", &models.PerformanceSummary{QuestionID: "q2", Topic: "neurology", TotalAttempts: 6, CorrectAttempts: 2, IncorrectAttempts: 4})
	// Another user's summaries must not leak in
	putSummary(t, memStore, "bob", &models.PerformanceSummary{QuestionID: "q1", Topic: "cardiology", TotalAttempts: 10, CorrectAttempts: 10})

	got, err := stats.GetUserStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, 10, got.TotalAnswered)
	assert.Equal(t, 5, got.TotalCorrect)
	assert.InDelta(t, 50.0, got.Accuracy, 1e-9)
}

func TestGetTopicPerformance(t *testing.T) {
	stats, memStore := newStatsFixture(t)
	ctx := context.Background()

	putSummary(t, memStore, "alice", &models.PerformanceSummary{QuestionID: "q1", Topic: "cardiology", TotalAttempts: 2, CorrectAttempts: 2, PriorityScore: -4})
	putSummary(t, memStore, "alice", &models.PerformanceSummary{QuestionID: "q2", Topic: "cardiology", TotalAttempts: 2, CorrectAttempts: 0, IncorrectAttempts: 2, PriorityScore: 10})
	putSummary(t, memStore, "alice", &models.PerformanceSummary{QuestionID: "q3", Topic: "neurology", TotalAttempts: 1, CorrectAttempts: 1, PriorityScore: -2})

	performances, err := stats.GetTopicPerformance(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, performances, 2)

	// Sorted by topic name
	cardio := performances[0]
	assert.Equal(t, "cardiology", cardio.Topic)
	assert.Equal(t, 2, cardio.QuestionsAnswered)
	assert.Equal(t, 4, cardio.TotalAttempts)
	assert.Equal(t, 2, cardio.CorrectAttempts)
	assert.InDelta(t, 50.0, cardio.Accuracy, 1e-9)
	assert.InDelta(t, 3.0, cardio.AvgPriority, 1e-9)

	neuro := performances[1]
	assert.Equal(t, "neurology", neuro.Topic)
	assert.InDelta(t, 100.0, neuro.Accuracy, 1e-9)
}

func TestMasteryLevel(t *testing.T) {
	tests := []struct {
		name     string
		accuracy float64
		answered int
		expected int
	}{
		{"no answers", 0, 0, 0},
		{"one answer stays level 0", 50, 1, 0},
		{"perfect accuracy below volume floor stays level 0", 95, 2, 0},
		{"low volume low accuracy", 50, 3, 1},
		{"accuracy without volume stays level 1", 95, 4, 1},
		{"level 2", 65, 6, 2},
		{"level 3", 72, 12, 3},
		{"level 4", 85, 16, 4},
		{"level 5", 92, 25, 5},
		{"volume without accuracy", 55, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, masteryLevel(tt.accuracy, tt.answered))
		})
	}
}

func TestGetTopicMastery(t *testing.T) {
	stats, memStore := newStatsFixture(t)
	ctx := context.Background()

	// 5 questions answered at 80% accuracy -> level 2
	for i := 0; i < 5; i++ {
		correct := 1
		incorrect := 0
		if i == 0 {
			correct, incorrect = 0, 1
		}
		putSummary(t, memStore, "alice", &models.PerformanceSummary{
			QuestionID:        string(rune('a' + i)),
			Topic:             "cardiology",
			TotalAttempts:     1,
			CorrectAttempts:   correct,
			IncorrectAttempts: incorrect,
		})
	}

	masteries, err := stats.GetTopicMastery(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, masteries, 1)
	assert.Equal(t, "cardiology", masteries[0].Topic)
	assert.Equal(t, 2, masteries[0].Level)
	assert.InDelta(t, 80.0, masteries[0].Accuracy, 1e-9)
}

func TestGetWeakestTopic(t *testing.T) {
	stats, memStore := newStatsFixture(t)
	ctx := context.Background()

	_, err := stats.GetWeakestTopic(ctx, "alice")
	assert.ErrorIs(t, err, contextutils.ErrNoQuestionsAvailable)

	putSummary(t, memStore, "alice", &models.PerformanceSummary{QuestionID: "q1", Topic: "cardiology", PriorityScore: -4})
	putSummary(t, memStore, "alice", &models.PerformanceSummary{QuestionID: "q2", Topic: "neurology", PriorityScore: 20})

	weakest, err := stats.GetWeakestTopic(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "neurology", weakest.Topic)
}

func TestGetAnswerHistory(t *testing.T) {
	stats, memStore := newStatsFixture(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		err := memStore.InsertAnswerEvent(ctx, &models.AnswerEvent{
			Username:   "alice",
			QuestionID: "q1",
			Choice:     "A",
			AnsweredAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	history, err := stats.GetAnswerHistory(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].AnsweredAt.After(history[1].AnsweredAt))
}

func TestResetProgress(t *testing.T) {
	stats, memStore := newStatsFixture(t)
	ctx := context.Background()

	putSummary(t, memStore, "alice", &models.PerformanceSummary{QuestionID: "q1", Topic: "cardiology", TotalAttempts: 3})
	require.NoError(t, memStore.InsertAnswerEvent(ctx, &models.AnswerEvent{Username: "alice", QuestionID: "q1", Choice: "A", AnsweredAt: time.Now()}))

	require.NoError(t, stats.ResetProgress(ctx, "alice"))

	got, err := stats.GetUserStats(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, got.TotalAnswered)

	history, err := stats.GetAnswerHistory(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}
