package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"examprep/internal/models"
	contextutils "examprep/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedQuestions(t *testing.T, s *MemoryStore, questions ...*models.Question) {
	t.Helper()
	_, err := s.UpsertQuestions(context.Background(), questions)
	require.NoError(t, err)
}

func TestMemoryStore_GetQuestion(t *testing.T) {
	s := NewMemoryStore()
	seedQuestions(t, s,
		&models.Question{ID: "q1", Number: 1, Topic: "cardiology", Text: "Q1?"},
	)

	question, err := s.GetQuestion(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, "cardiology", question.Topic)

	_, err = s.GetQuestion(context.Background(), "missing")
	assert.ErrorIs(t, err, contextutils.ErrQuestionNotFound)
}

func TestMemoryStore_ListQuestions_TopicFilterAndOrder(t *testing.T) {
	s := NewMemoryStore()
	seedQuestions(t, s,
		&models.Question{ID: "q3", Number: 3, Topic: "cardiology"},
		&models.Question{ID: "q1", Number: 1, Topic: "cardiology"},
		&models.Question{ID: "q2", Number: 2, Topic: "neurology"},
	)

	all, err := s.ListQuestions(context.Background(), QuestionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "q1", all[0].ID)
	assert.Equal(t, "q3", all[2].ID)

	cardio, err := s.ListQuestions(context.Background(), QuestionFilter{Topic: "cardiology"})
	require.NoError(t, err)
	require.Len(t, cardio, 2)
	for _, q := range cardio {
		assert.Equal(t, "cardiology", q.Topic)
	}
}

func TestMemoryStore_ListTopics(t *testing.T) {
	s := NewMemoryStore()
	seedQuestions(t, s,
		&models.Question{ID: "q1", Number: 1, Topic: "neurology"},
		&models.Question{ID: "q2", Number: 2, Topic: "cardiology"},
		&models.Question{ID: "q3", Number: 3, Topic: "cardiology"},
	)

	topics, err := s.ListTopics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"cardiology", "neurology"}, topics)
}

func TestMemoryStore_UpsertQuestions_ReplacesExisting(t *testing.T) {
	s := NewMemoryStore()
	seedQuestions(t, s, &models.Question{ID: "q1", Number: 1, Topic: "cardiology", Text: "old"})
	seedQuestions(t, s, &models.Question{ID: "q1", Number: 1, Topic: "cardiology", Text: "new"})

	question, err := s.GetQuestion(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, "new", question.Text)

	count, err := s.CountQuestions(context.Background(), QuestionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryStore_GetSummary_NeverAnswered(t *testing.T) {
	s := NewMemoryStore()
	summary, err := s.GetSummary(context.Background(), "alice", "q1")
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestMemoryStore_UpsertSummaryAtomic_CreatesAndUpdates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created, err := s.UpsertSummaryAtomic(ctx, "alice", "q1", func(existing *models.PerformanceSummary) (*models.PerformanceSummary, error) {
		require.Nil(t, existing)
		return &models.PerformanceSummary{Topic: "cardiology", TotalAttempts: 1, PriorityScore: 5.0}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", created.Username)
	assert.Equal(t, "q1", created.QuestionID)

	updated, err := s.UpsertSummaryAtomic(ctx, "alice", "q1", func(existing *models.PerformanceSummary) (*models.PerformanceSummary, error) {
		require.NotNil(t, existing)
		existing.TotalAttempts++
		return existing, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.TotalAttempts)
}

func TestMemoryStore_UpsertSummaryAtomic_FailedUpdateLeavesStateUnchanged(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.UpsertSummaryAtomic(ctx, "alice", "q1", func(*models.PerformanceSummary) (*models.PerformanceSummary, error) {
		return &models.PerformanceSummary{TotalAttempts: 1}, nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.UpsertSummaryAtomic(ctx, "alice", "q1", func(*models.PerformanceSummary) (*models.PerformanceSummary, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	summary, err := s.GetSummary(ctx, "alice", "q1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalAttempts)
}

func TestMemoryStore_RecordAnswerAtomic_FailedUpdateWritesNoEvent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	boom := errors.New("boom")
	event := &models.AnswerEvent{Username: "alice", QuestionID: "q1", Choice: "A", AnsweredAt: time.Now()}
	_, err := s.RecordAnswerAtomic(ctx, event, func(*models.PerformanceSummary) (*models.PerformanceSummary, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	events, err := s.ListAnswerEvents(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	summary, err := s.GetSummary(ctx, "alice", "q1")
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestMemoryStore_RecordAnswerAtomic_ConcurrentCallsSerialize(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			event := &models.AnswerEvent{Username: "alice", QuestionID: "q1", Choice: "A", IsCorrect: true, AnsweredAt: time.Now()}
			_, err := s.RecordAnswerAtomic(ctx, event, func(existing *models.PerformanceSummary) (*models.PerformanceSummary, error) {
				if existing == nil {
					existing = &models.PerformanceSummary{}
				}
				existing.TotalAttempts++
				existing.CorrectAttempts++
				return existing, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	summary, err := s.GetSummary(ctx, "alice", "q1")
	require.NoError(t, err)
	require.NotNil(t, summary)
	// Every increment must survive: lost updates mean the row lock failed.
	assert.Equal(t, workers, summary.TotalAttempts)
	assert.Equal(t, workers, summary.CorrectAttempts)

	events, err := s.ListAnswerEvents(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, events, workers)
}

func TestMemoryStore_ListAnswerEvents_NewestFirstWithLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := s.InsertAnswerEvent(ctx, &models.AnswerEvent{
			Username:   "alice",
			QuestionID: "q1",
			Choice:     "A",
			AnsweredAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	events, err := s.ListAnswerEvents(ctx, "alice", 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.True(t, events[0].AnsweredAt.After(events[1].AnsweredAt))
	assert.True(t, events[1].AnsweredAt.After(events[2].AnsweredAt))
}

func TestMemoryStore_ResetUserProgress(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, user := range []string{"alice", "bob"} {
		event := &models.AnswerEvent{Username: user, QuestionID: "q1", Choice: "A", AnsweredAt: time.Now()}
		_, err := s.RecordAnswerAtomic(ctx, event, func(*models.PerformanceSummary) (*models.PerformanceSummary, error) {
			return &models.PerformanceSummary{TotalAttempts: 1}, nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, s.ResetUserProgress(ctx, "alice"))

	aliceSummary, err := s.GetSummary(ctx, "alice", "q1")
	require.NoError(t, err)
	assert.Nil(t, aliceSummary)

	aliceEvents, err := s.ListAnswerEvents(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, aliceEvents)

	// Other users are untouched
	bobSummary, err := s.GetSummary(ctx, "bob", "q1")
	require.NoError(t, err)
	require.NotNil(t, bobSummary)
	assert.Equal(t, 1, bobSummary.TotalAttempts)
}
