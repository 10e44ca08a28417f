package services

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"examprep/internal/config"
	"examprep/internal/models"
	"examprep/internal/observability"
	"examprep/internal/store"
	contextutils "examprep/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// SelectOptions narrow the eligible set for one selection request.
type SelectOptions struct {
	// Topic restricts the eligible set to one topic when non-empty.
	Topic string
	// Exclude removes already-served question IDs. When exclusion empties
	// the eligible set the selector falls back to the pre-exclusion set.
	Exclude map[string]bool
}

// SelectorService chooses the next question for a user. It only reads
// summaries; recording is the ledger's job.
type SelectorService struct {
	store  store.Store
	logger *observability.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSelectorService creates a selector seeded from the current time.
func NewSelectorService(s store.Store, logger *observability.Logger) *SelectorService {
	return NewSelectorServiceWithSeed(s, logger, time.Now().UnixNano())
}

// NewSelectorServiceWithSeed creates a selector with a fixed seed so tests
// can assert sampling behavior deterministically.
func NewSelectorServiceWithSeed(s store.Store, logger *observability.Logger, seed int64) *SelectorService {
	if s == nil {
		panic("store cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &SelectorService{
		store:  s,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// float64n draws from [0, 1); intn draws from [0, n). Both guard the shared
// rand.Rand, which is not safe for concurrent use.
func (s *SelectorService) float64n() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

func (s *SelectorService) intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

// samplingWeight derives the adaptive-mode weight for one question.
// Never-answered questions get the neutral 3.0; positive priorities are used
// directly; mastered (non-positive) priorities keep a small non-zero weight
// so no question is ever permanently excluded.
func samplingWeight(summary *models.PerformanceSummary) float64 {
	if summary == nil {
		return config.UnansweredWeight
	}
	if summary.PriorityScore > 0 {
		return summary.PriorityScore
	}
	return math.Abs(summary.PriorityScore)*config.MasteredWeightSlope + config.MasteredWeightFloor
}

// weightedSample draws one index from weights via normalized prefix sums and
// binary search. weights must be non-empty with a positive total.
func (s *SelectorService) weightedSample(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}

	prefix := make([]float64, len(weights))
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w / total
		prefix[i] = cumulative
	}
	// Guard against floating point drift at the top end
	prefix[len(prefix)-1] = 1.0

	r := s.float64n()
	return sort.Search(len(prefix), func(i int) bool { return prefix[i] > r })
}

// eligibleSet loads the candidate questions and their summaries for one
// request, applying the topic filter.
func (s *SelectorService) eligibleSet(ctx context.Context, username, topic string) ([]*models.Question, map[string]*models.PerformanceSummary, error) {
	questions, err := s.store.ListQuestions(ctx, store.QuestionFilter{Topic: topic})
	if err != nil {
		return nil, nil, contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to list questions: %v", err)
	}

	summaries, err := s.store.ListSummaries(ctx, username, store.SummaryFilter{Topic: topic})
	if err != nil {
		return nil, nil, contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to list summaries: %v", err)
	}

	byQuestion := make(map[string]*models.PerformanceSummary, len(summaries))
	for _, summary := range summaries {
		byQuestion[summary.QuestionID] = summary
	}
	return questions, byQuestion, nil
}

// applyExclude drops excluded IDs, falling back to the pre-exclusion set
// when exclusion would empty it (repeats beat failing once the pool is
// exhausted).
func applyExclude(questions []*models.Question, exclude map[string]bool) []*models.Question {
	if len(exclude) == 0 || len(questions) == 0 {
		return questions
	}
	var kept []*models.Question
	for _, question := range questions {
		if !exclude[question.ID] {
			kept = append(kept, question)
		}
	}
	if len(kept) == 0 {
		return questions
	}
	return kept
}

// Select returns one question for the user under the given mode, or
// contextutils.ErrNoQuestionsAvailable when the eligible set is empty.
func (s *SelectorService) Select(ctx context.Context, username string, mode models.SelectionMode, opts SelectOptions) (result0 *models.Question, err error) {
	ctx, span := observability.TraceSelectorFunction(ctx, "Select",
		observability.AttributeUsername(username),
		observability.AttributeMode(string(mode)),
		observability.AttributeTopic(opts.Topic),
		attribute.Int("exclude.count", len(opts.Exclude)),
	)
	defer observability.FinishSpan(span, &err)

	ctx, cancel := context.WithTimeout(ctx, config.StorageOpTimeout)
	defer cancel()

	questions, summaries, err := s.eligibleSet(ctx, username, opts.Topic)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, contextutils.WrapErrorf(contextutils.ErrNoQuestionsAvailable, "no questions in catalog for topic %q", opts.Topic)
	}

	switch mode {
	case models.ModeAdaptive:
		return s.selectAdaptive(questions, summaries, opts.Exclude)
	case models.ModeUnanswered:
		return s.selectUnanswered(questions, summaries, opts.Exclude, opts.Topic)
	case models.ModeWeakest:
		return s.selectWeakest(questions, summaries, opts.Exclude, opts.Topic)
	case models.ModeRandom:
		return s.selectRandom(questions, opts.Exclude)
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidSelectionMode, "unknown selection mode %q", mode)
	}
}

// selectAdaptive performs the weighted draw over the eligible set.
func (s *SelectorService) selectAdaptive(questions []*models.Question, summaries map[string]*models.PerformanceSummary, exclude map[string]bool) (*models.Question, error) {
	eligible := applyExclude(questions, exclude)

	weights := make([]float64, len(eligible))
	for i, question := range eligible {
		weights[i] = samplingWeight(summaries[question.ID])
	}

	return eligible[s.weightedSample(weights)], nil
}

// selectUnanswered draws uniformly from questions with no summary row.
func (s *SelectorService) selectUnanswered(questions []*models.Question, summaries map[string]*models.PerformanceSummary, exclude map[string]bool, topic string) (*models.Question, error) {
	var unanswered []*models.Question
	for _, question := range questions {
		if _, answered := summaries[question.ID]; !answered {
			unanswered = append(unanswered, question)
		}
	}
	if len(unanswered) == 0 {
		return nil, contextutils.WrapErrorf(contextutils.ErrNoQuestionsAvailable, "no unanswered questions left in topic %q", topic)
	}

	eligible := applyExclude(unanswered, exclude)
	return eligible[s.intn(len(eligible))], nil
}

// selectWeakest deterministically returns the highest-priority missed
// question: priority descending, ties broken by least-recently-seen first.
func (s *SelectorService) selectWeakest(questions []*models.Question, summaries map[string]*models.PerformanceSummary, exclude map[string]bool, topic string) (*models.Question, error) {
	var missed []*models.Question
	for _, question := range questions {
		if summary, ok := summaries[question.ID]; ok && summary.IncorrectAttempts > 0 {
			missed = append(missed, question)
		}
	}
	if len(missed) == 0 {
		return nil, contextutils.WrapErrorf(contextutils.ErrNoQuestionsAvailable, "no missed questions to drill in topic %q", topic)
	}

	eligible := applyExclude(missed, exclude)
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := summaries[eligible[i].ID], summaries[eligible[j].ID]
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		return a.LastAnsweredAt.Before(b.LastAnsweredAt)
	})
	return eligible[0], nil
}

// selectRandom draws uniformly over the eligible set, ignoring performance.
func (s *SelectorService) selectRandom(questions []*models.Question, exclude map[string]bool) (*models.Question, error) {
	eligible := applyExclude(questions, exclude)
	return eligible[s.intn(len(eligible))], nil
}

// SelectBatch builds an ordered batch by repeated Select calls, accumulating
// chosen IDs into the exclude set. It returns fewer than count questions only
// when the eligible pool is smaller than count.
func (s *SelectorService) SelectBatch(ctx context.Context, username string, mode models.SelectionMode, count int, opts SelectOptions) (result0 []*models.Question, err error) {
	ctx, span := observability.TraceSelectorFunction(ctx, "SelectBatch",
		observability.AttributeUsername(username),
		observability.AttributeMode(string(mode)),
		observability.AttributeCount(count),
	)
	defer observability.FinishSpan(span, &err)

	if count <= 0 {
		count = config.DefaultBatchSize
	}
	if count > config.MaxBatchSize {
		count = config.MaxBatchSize
	}

	exclude := make(map[string]bool, len(opts.Exclude)+count)
	for id := range opts.Exclude {
		exclude[id] = true
	}

	var batch []*models.Question
	seen := make(map[string]bool, count)
	for len(batch) < count {
		question, selectErr := s.Select(ctx, username, mode, SelectOptions{Topic: opts.Topic, Exclude: exclude})
		if selectErr != nil {
			if contextutils.IsError(selectErr, contextutils.ErrNoQuestionsAvailable) && len(batch) > 0 {
				break
			}
			return nil, selectErr
		}
		if seen[question.ID] {
			// Exclusion fell back to an exhausted pool; the batch cannot grow.
			break
		}
		seen[question.ID] = true
		exclude[question.ID] = true
		batch = append(batch, question)
	}

	span.SetAttributes(attribute.Int("batch.size", len(batch)))
	return batch, nil
}

// SelectExamBatch composes a simulated-exam batch under a balance policy:
// mixed is uniform coverage, challenging drills adaptive weights, adaptive
// mixes weakest-first drilling with random breadth.
func (s *SelectorService) SelectExamBatch(ctx context.Context, username string, balance models.BatchBalance, count int, opts SelectOptions) (result0 []*models.Question, err error) {
	ctx, span := observability.TraceSelectorFunction(ctx, "SelectExamBatch",
		observability.AttributeUsername(username),
		attribute.String("batch.balance", string(balance)),
		observability.AttributeCount(count),
	)
	defer observability.FinishSpan(span, &err)

	switch balance {
	case models.BalanceMixed:
		return s.SelectBatch(ctx, username, models.ModeRandom, count, opts)
	case models.BalanceChallenging:
		return s.SelectBatch(ctx, username, models.ModeAdaptive, count, opts)
	case models.BalanceAdaptive:
		// One third weakest-first drilling, the rest random coverage.
		drillCount := count / 3
		var batch []*models.Question
		if drillCount > 0 {
			drilled, drillErr := s.SelectBatch(ctx, username, models.ModeWeakest, drillCount, opts)
			if drillErr != nil && !contextutils.IsError(drillErr, contextutils.ErrNoQuestionsAvailable) {
				return nil, drillErr
			}
			batch = drilled
		}

		exclude := make(map[string]bool, len(opts.Exclude)+len(batch))
		for id := range opts.Exclude {
			exclude[id] = true
		}
		for _, question := range batch {
			exclude[question.ID] = true
		}

		rest, restErr := s.SelectBatch(ctx, username, models.ModeRandom, count-len(batch), SelectOptions{Topic: opts.Topic, Exclude: exclude})
		if restErr != nil {
			if contextutils.IsError(restErr, contextutils.ErrNoQuestionsAvailable) && len(batch) > 0 {
				return batch, nil
			}
			return nil, restErr
		}
		return append(batch, rest...), nil
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown batch balance %q", balance)
	}
}

// SelectNextTopic suggests the topic the user should study next: the one
// with the highest average priority, or a random topic when there is no
// history yet.
func (s *SelectorService) SelectNextTopic(ctx context.Context, username string) (result0 string, err error) {
	ctx, span := observability.TraceSelectorFunction(ctx, "SelectNextTopic",
		observability.AttributeUsername(username),
	)
	defer observability.FinishSpan(span, &err)

	summaries, err := s.store.ListSummaries(ctx, username, store.SummaryFilter{})
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to list summaries: %v", err)
	}

	if len(summaries) == 0 {
		topics, topicsErr := s.store.ListTopics(ctx)
		if topicsErr != nil {
			return "", contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to list topics: %v", topicsErr)
		}
		if len(topics) == 0 {
			return "", contextutils.WrapErrorf(contextutils.ErrNoQuestionsAvailable, "question catalog is empty")
		}
		return topics[s.intn(len(topics))], nil
	}

	totals := make(map[string]float64)
	counts := make(map[string]int)
	for _, summary := range summaries {
		totals[summary.Topic] += summary.PriorityScore
		counts[summary.Topic]++
	}

	var topics []string
	for topic := range totals {
		topics = append(topics, topic)
	}
	// Stable result for equal averages
	sort.Strings(topics)

	best := topics[0]
	bestAvg := math.Inf(-1)
	for _, topic := range topics {
		avg := totals[topic] / float64(counts[topic])
		if avg > bestAvg {
			best = topic
			bestAvg = avg
		}
	}

	span.SetAttributes(observability.AttributeTopic(best))
	return best, nil
}
