package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"examprep/internal/config"
	"examprep/internal/middleware"
	"examprep/internal/models"
	"examprep/internal/observability"
	"examprep/internal/services"
	"examprep/internal/store"
	contextutils "examprep/internal/utils"
)

// QuizHandler serves question selection and answer submission.
type QuizHandler struct {
	ledger   *services.LedgerService
	selector *services.SelectorService
	store    store.Store
	config   *config.Config
	logger   *observability.Logger
}

// NewQuizHandler creates a new QuizHandler instance
func NewQuizHandler(ledger *services.LedgerService, selector *services.SelectorService, s store.Store, cfg *config.Config, logger *observability.Logger) *QuizHandler {
	return &QuizHandler{
		ledger:   ledger,
		selector: selector,
		store:    s,
		config:   cfg,
		logger:   logger,
	}
}

// questionResponse hides the correct answer and explanation until the
// question has been answered.
type questionResponse struct {
	ID      string           `json:"id"`
	Number  int              `json:"number"`
	Topic   string           `json:"topic"`
	Text    string           `json:"text"`
	Options []responseOption `json:"options"`
}

type responseOption struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

func toQuestionResponse(q *models.Question) questionResponse {
	options := make([]responseOption, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, responseOption{Letter: opt.Letter, Text: opt.Text})
	}
	return questionResponse{
		ID:      q.ID,
		Number:  q.Number,
		Topic:   q.Topic,
		Text:    q.Text,
		Options: options,
	}
}

// NextQuestion selects the next question for the session user. Mode and
// topic come from query parameters; questions served recently in this
// session are excluded.
func (h *QuizHandler) NextQuestion(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "next_question")
	defer observability.FinishSpan(span, nil)

	username := middleware.SessionUsername(c)

	modeParam := c.Query("mode")
	if modeParam == "" {
		modeParam = h.config.Selector.DefaultMode
	}
	mode, err := models.ParseSelectionMode(modeParam)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	opts := services.SelectOptions{
		Topic:   c.Query("topic"),
		Exclude: recentQuestions(c),
	}
	span.SetAttributes(
		attribute.String("selector.mode", string(mode)),
		attribute.String("selector.topic", opts.Topic),
		attribute.Int("selector.exclude_count", len(opts.Exclude)),
	)

	question, err := h.selector.Select(c.Request.Context(), username, mode, opts)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	if err := rememberQuestions(c, question.ID); err != nil {
		h.logger.Warn(c.Request.Context(), "Failed to update session exclude set", map[string]interface{}{"error": err.Error()})
	}

	c.JSON(http.StatusOK, toQuestionResponse(question))
}

// GetQuestion returns one question by ID, without the answer key.
func (h *QuizHandler) GetQuestion(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_question")
	defer observability.FinishSpan(span, nil)

	questionID := c.Param("id")
	span.SetAttributes(attribute.String("question.id", questionID))

	question, err := h.store.GetQuestion(c.Request.Context(), questionID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuestionResponse(question))
}

// SubmitAnswer grades a submitted answer, records it in the ledger, and
// returns the outcome with the updated summary.
func (h *QuizHandler) SubmitAnswer(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_answer")
	defer observability.FinishSpan(span, nil)

	username := middleware.SessionUsername(c)

	var req models.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}
	span.SetAttributes(
		attribute.String("question.id", req.QuestionID),
		attribute.String("answer.choice", req.Choice),
	)

	choice := strings.TrimSpace(req.Choice)
	if !contextutils.IsValidChoiceLetter(choice) {
		HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "choice must be a single answer letter, got %q", req.Choice))
		return
	}

	question, err := h.store.GetQuestion(c.Request.Context(), req.QuestionID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	isCorrect := strings.EqualFold(choice, question.CorrectAnswer)
	summary, err := h.ledger.RecordAnswer(c.Request.Context(), username, req.QuestionID, choice, isCorrect, time.Now().UTC())
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AnswerResponse{
		IsCorrect:     isCorrect,
		CorrectAnswer: question.CorrectAnswer,
		Explanation:   question.Explanation,
		Summary:       summary,
	})
}

// Batch returns a batch of distinct questions for a practice session.
func (h *QuizHandler) Batch(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "question_batch")
	defer observability.FinishSpan(span, nil)

	username := middleware.SessionUsername(c)

	mode, err := models.ParseSelectionMode(c.Query("mode"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	count, err := h.batchCount(c)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	opts := services.SelectOptions{
		Topic:   c.Query("topic"),
		Exclude: recentQuestions(c),
	}
	span.SetAttributes(
		attribute.String("selector.mode", string(mode)),
		attribute.Int("selector.count", count),
	)

	questions, err := h.selector.SelectBatch(c.Request.Context(), username, mode, count, opts)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.batchResponse(questions))
}

// ExamBatch returns a simulated-exam batch composed per the balance
// parameter (mixed, challenging, or adaptive).
func (h *QuizHandler) ExamBatch(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "exam_batch")
	defer observability.FinishSpan(span, nil)

	username := middleware.SessionUsername(c)

	balance, err := models.ParseBatchBalance(c.Query("balance"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	count, err := h.batchCount(c)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	opts := services.SelectOptions{Topic: c.Query("topic")}
	span.SetAttributes(
		attribute.String("selector.balance", string(balance)),
		attribute.Int("selector.count", count),
	)

	questions, err := h.selector.SelectExamBatch(c.Request.Context(), username, balance, count, opts)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.batchResponse(questions))
}

// Topics lists the distinct topics in the question catalog.
func (h *QuizHandler) Topics(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_topics")
	defer observability.FinishSpan(span, nil)

	topics, err := h.store.ListTopics(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

// NextTopic suggests the topic the session user most needs to practice.
func (h *QuizHandler) NextTopic(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "next_topic")
	defer observability.FinishSpan(span, nil)

	username := middleware.SessionUsername(c)

	topic, err := h.selector.SelectNextTopic(c.Request.Context(), username)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"topic": topic})
}

func (h *QuizHandler) batchCount(c *gin.Context) (int, error) {
	countParam := c.Query("count")
	if countParam == "" {
		if h.config.Selector.BatchSize > 0 {
			return h.config.Selector.BatchSize, nil
		}
		return config.DefaultBatchSize, nil
	}
	count, err := strconv.Atoi(countParam)
	if err != nil || count < 1 {
		return 0, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "count must be a positive integer, got %q", countParam)
	}
	if count > config.MaxBatchSize {
		return 0, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "count exceeds maximum of %d", config.MaxBatchSize)
	}
	return count, nil
}

func (h *QuizHandler) batchResponse(questions []*models.Question) gin.H {
	out := make([]questionResponse, 0, len(questions))
	for _, q := range questions {
		out = append(out, toQuestionResponse(q))
	}
	return gin.H{
		"questions": out,
		"count":     len(out),
	}
}
