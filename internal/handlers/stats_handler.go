package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"examprep/internal/config"
	"examprep/internal/middleware"
	"examprep/internal/observability"
	"examprep/internal/services"
	contextutils "examprep/internal/utils"
)

// StatsHandler serves performance reporting for the session user.
type StatsHandler struct {
	stats  *services.StatsService
	config *config.Config
	logger *observability.Logger
}

// NewStatsHandler creates a new StatsHandler instance
func NewStatsHandler(stats *services.StatsService, cfg *config.Config, logger *observability.Logger) *StatsHandler {
	return &StatsHandler{
		stats:  stats,
		config: cfg,
		logger: logger,
	}
}

// UserStats returns the overall answer tally for the session user.
func (h *StatsHandler) UserStats(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "user_stats")
	defer observability.FinishSpan(span, nil)

	username := middleware.SessionUsername(c)
	span.SetAttributes(attribute.String("user.username", username))

	stats, err := h.stats.GetUserStats(c.Request.Context(), username)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// TopicPerformance returns per-topic aggregates for the session user.
func (h *StatsHandler) TopicPerformance(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "topic_performance")
	defer observability.FinishSpan(span, nil)

	username := middleware.SessionUsername(c)

	performance, err := h.stats.GetTopicPerformance(c.Request.Context(), username)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"topics": performance})
}

// TopicMastery returns the 0-5 mastery grade per topic.
func (h *StatsHandler) TopicMastery(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "topic_mastery")
	defer observability.FinishSpan(span, nil)

	username := middleware.SessionUsername(c)

	mastery, err := h.stats.GetTopicMastery(c.Request.Context(), username)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"topics": mastery})
}

// WeakestTopic returns the topic with the highest average priority.
func (h *StatsHandler) WeakestTopic(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "weakest_topic")
	defer observability.FinishSpan(span, nil)

	username := middleware.SessionUsername(c)

	topic, err := h.stats.GetWeakestTopic(c.Request.Context(), username)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, topic)
}

// History returns the session user's most recent answers, newest first.
func (h *StatsHandler) History(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "answer_history")
	defer observability.FinishSpan(span, nil)

	username := middleware.SessionUsername(c)

	limit := config.DefaultHistoryLimit
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "limit must be a positive integer, got %q", limitParam))
			return
		}
		limit = parsed
	}
	span.SetAttributes(attribute.Int("history.limit", limit))

	events, err := h.stats.GetAnswerHistory(c.Request.Context(), username, limit)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// ResetProgress deletes the session user's events and summaries. The
// question catalog is untouched.
func (h *StatsHandler) ResetProgress(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "reset_progress")
	defer observability.FinishSpan(span, nil)

	username := middleware.SessionUsername(c)
	span.SetAttributes(attribute.String("user.username", username))

	if err := h.stats.ResetProgress(c.Request.Context(), username); err != nil {
		HandleAppError(c, err)
		return
	}

	// A reset session starts fresh; stale exclusions would hide questions.
	if err := clearRecentQuestions(c); err != nil {
		h.logger.Warn(c.Request.Context(), "Failed to clear session exclude set", map[string]interface{}{"error": err.Error()})
	}

	h.logger.Info(c.Request.Context(), "User progress reset", map[string]interface{}{"username": username})
	c.JSON(http.StatusOK, gin.H{"success": true})
}
