package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout    = 60 * time.Second
	ServerShutdownTimeout = 30 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute
	// StorageOpTimeout bounds a single recording or selection call; a call
	// that cannot complete within this window fails as storage-unavailable.
	StorageOpTimeout = 5 * time.Second

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days
)

// Performance fold constants. The summary for a (user, question) pair is a
// deterministic fold over its answer events using these values.
const (
	// PriorityCorrectDelta is subtracted from the priority score on a correct answer.
	PriorityCorrectDelta = 2.0
	// PriorityIncorrectDelta is added to the priority score on an incorrect answer.
	PriorityIncorrectDelta = 5.0
	// PriorityFloor and PriorityCeiling clamp the score so sampling weights stay bounded.
	PriorityFloor   = -10.0
	PriorityCeiling = 50.0
	// PriorityBaseline is the implied score for a pair that has never been answered.
	// The first fold step bypasses it (first answer lands on -2.0 or +5.0 directly).
	PriorityBaseline = 3.0
)

// Selection weight constants
const (
	// UnansweredWeight is the sampling weight for questions with no summary row.
	UnansweredWeight = 3.0
	// MasteredWeightSlope and MasteredWeightFloor shape the weight of questions
	// with non-positive priority: |score|*slope + floor. The floor keeps mastered
	// questions selectable.
	MasteredWeightSlope = 0.1
	MasteredWeightFloor = 0.5
)

// Batch and size constants
const (
	// DefaultBatchSize is the default number of questions for a practice batch.
	DefaultBatchSize = 10
	// MaxBatchSize caps a single batch request.
	MaxBatchSize = 100
	// RecentQuestionWindow is how many recently served question IDs a session
	// excludes from selection before old entries age out.
	RecentQuestionWindow = 10
	// DefaultHistoryLimit is the default number of answer events returned by
	// the history endpoint.
	DefaultHistoryLimit = 50
)

// Session configuration constants
const (
	// Session settings
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	// Session name
	SessionName = "examprep-session"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:;"
)
