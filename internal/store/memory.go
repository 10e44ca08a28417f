package store

import (
	"context"
	"sort"
	"sync"

	"examprep/internal/models"
	contextutils "examprep/internal/utils"
)

// MemoryStore is an in-memory Store used by unit tests and local tooling.
// It serializes read-modify-write cycles per (username, question) pair the
// same way the Postgres implementation does with row locks.
type MemoryStore struct {
	mu        sync.RWMutex
	questions map[string]*models.Question
	summaries map[string]*models.PerformanceSummary
	events    []*models.AnswerEvent
	nextID    int64

	rowMu    sync.Mutex
	rowLocks map[string]*sync.Mutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		questions: make(map[string]*models.Question),
		summaries: make(map[string]*models.PerformanceSummary),
		rowLocks:  make(map[string]*sync.Mutex),
		nextID:    1,
	}
}

func pairKey(username, questionID string) string {
	return username + "\x00" + questionID
}

// rowLock returns the mutex serializing updates for one (user, question) pair.
func (s *MemoryStore) rowLock(username, questionID string) *sync.Mutex {
	s.rowMu.Lock()
	defer s.rowMu.Unlock()
	key := pairKey(username, questionID)
	lock, ok := s.rowLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.rowLocks[key] = lock
	}
	return lock
}

// GetQuestion returns the catalog entry for questionID.
func (s *MemoryStore) GetQuestion(_ context.Context, questionID string) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	question, ok := s.questions[questionID]
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrQuestionNotFound, "question %s", questionID)
	}
	copied := *question
	return &copied, nil
}

// ListQuestions returns catalog entries matching the filter, ordered by question number.
func (s *MemoryStore) ListQuestions(_ context.Context, filter QuestionFilter) ([]*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var questions []*models.Question
	for _, question := range s.questions {
		if filter.Topic != "" && question.Topic != filter.Topic {
			continue
		}
		copied := *question
		questions = append(questions, &copied)
	}
	sort.Slice(questions, func(i, j int) bool {
		if questions[i].Number != questions[j].Number {
			return questions[i].Number < questions[j].Number
		}
		return questions[i].ID < questions[j].ID
	})
	return questions, nil
}

// ListTopics returns the distinct topics present in the catalog, sorted.
func (s *MemoryStore) ListTopics(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var topics []string
	for _, question := range s.questions {
		if !seen[question.Topic] {
			seen[question.Topic] = true
			topics = append(topics, question.Topic)
		}
	}
	sort.Strings(topics)
	return topics, nil
}

// UpsertQuestions inserts or replaces catalog entries keyed by question ID.
func (s *MemoryStore) UpsertQuestions(_ context.Context, questions []*models.Question) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, question := range questions {
		copied := *question
		s.questions[question.ID] = &copied
	}
	return len(questions), nil
}

// CountQuestions returns the catalog size under the filter.
func (s *MemoryStore) CountQuestions(ctx context.Context, filter QuestionFilter) (int, error) {
	questions, err := s.ListQuestions(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(questions), nil
}

// GetSummary returns the summary for the pair, or nil when never answered.
func (s *MemoryStore) GetSummary(_ context.Context, username, questionID string) (*models.PerformanceSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[pairKey(username, questionID)]
	if !ok {
		return nil, nil
	}
	copied := *summary
	return &copied, nil
}

// ListSummaries returns all summaries for the user matching the filter.
func (s *MemoryStore) ListSummaries(_ context.Context, username string, filter SummaryFilter) ([]*models.PerformanceSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var summaries []*models.PerformanceSummary
	for _, summary := range s.summaries {
		if summary.Username != username {
			continue
		}
		if filter.Topic != "" && summary.Topic != filter.Topic {
			continue
		}
		copied := *summary
		summaries = append(summaries, &copied)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].QuestionID < summaries[j].QuestionID
	})
	return summaries, nil
}

// UpsertSummaryAtomic applies update under the pair's row lock.
func (s *MemoryStore) UpsertSummaryAtomic(_ context.Context, username, questionID string, update UpdateSummaryFunc) (*models.PerformanceSummary, error) {
	lock := s.rowLock(username, questionID)
	lock.Lock()
	defer lock.Unlock()

	next, err := s.applyUpdate(username, questionID, update)
	if err != nil {
		return nil, err
	}
	return next, nil
}

// applyUpdate runs update against the current summary and stores the result.
// Callers must hold the pair's row lock.
func (s *MemoryStore) applyUpdate(username, questionID string, update UpdateSummaryFunc) (*models.PerformanceSummary, error) {
	key := pairKey(username, questionID)

	s.mu.RLock()
	var existing *models.PerformanceSummary
	if stored, ok := s.summaries[key]; ok {
		copied := *stored
		existing = &copied
	}
	s.mu.RUnlock()

	next, err := update(existing)
	if err != nil {
		return nil, err
	}
	next.Username = username
	next.QuestionID = questionID

	s.mu.Lock()
	stored := *next
	s.summaries[key] = &stored
	s.mu.Unlock()

	result := *next
	return &result, nil
}

// InsertAnswerEvent appends one event to the log.
func (s *MemoryStore) InsertAnswerEvent(_ context.Context, event *models.AnswerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = s.nextID
	s.nextID++
	copied := *event
	s.events = append(s.events, &copied)
	return nil
}

// RecordAnswerAtomic appends the event and folds it into the summary under
// the pair's row lock. A failed update leaves both untouched.
func (s *MemoryStore) RecordAnswerAtomic(_ context.Context, event *models.AnswerEvent, update UpdateSummaryFunc) (*models.PerformanceSummary, error) {
	lock := s.rowLock(event.Username, event.QuestionID)
	lock.Lock()
	defer lock.Unlock()

	next, err := s.applyUpdateWithEvent(event, update)
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *MemoryStore) applyUpdateWithEvent(event *models.AnswerEvent, update UpdateSummaryFunc) (*models.PerformanceSummary, error) {
	key := pairKey(event.Username, event.QuestionID)

	s.mu.RLock()
	var existing *models.PerformanceSummary
	if stored, ok := s.summaries[key]; ok {
		copied := *stored
		existing = &copied
	}
	s.mu.RUnlock()

	next, err := update(existing)
	if err != nil {
		return nil, err
	}
	next.Username = event.Username
	next.QuestionID = event.QuestionID

	s.mu.Lock()
	event.ID = s.nextID
	s.nextID++
	copiedEvent := *event
	s.events = append(s.events, &copiedEvent)
	stored := *next
	s.summaries[key] = &stored
	s.mu.Unlock()

	result := *next
	return &result, nil
}

// ListAnswerEvents returns the user's most recent events, newest first.
func (s *MemoryStore) ListAnswerEvents(_ context.Context, username string, limit int) ([]*models.AnswerEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []*models.AnswerEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Username != username {
			continue
		}
		copied := *s.events[i]
		events = append(events, &copied)
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	return events, nil
}

// ResetUserProgress deletes the user's events and summaries.
func (s *MemoryStore) ResetUserProgress(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, summary := range s.summaries {
		if summary.Username == username {
			delete(s.summaries, key)
		}
	}
	kept := s.events[:0]
	for _, event := range s.events {
		if event.Username != username {
			kept = append(kept, event)
		}
	}
	s.events = kept
	return nil
}

// compile-time interface check
var _ Store = (*MemoryStore)(nil)
