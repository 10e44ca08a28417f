package store

import (
	"context"
	"database/sql"
	"errors"

	"examprep/internal/models"
	"examprep/internal/observability"
	contextutils "examprep/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// Shared query constants to eliminate duplication
const (
	// questionSelectFields contains all question fields for SELECT queries
	questionSelectFields = `id, question_number, topic, question_text, answer_options, correct_answer, explanation, source_file, source_type, created_at, updated_at`

	// summarySelectFields contains all performance summary fields for SELECT queries
	summarySelectFields = `username, question_id, topic, total_attempts, correct_attempts, incorrect_attempts, streak, priority_score, last_answered_at`
)

// PostgresStore implements Store on a Postgres database.
type PostgresStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewPostgresStore creates a PostgresStore on the given connection.
func NewPostgresStore(db *sql.DB, logger *observability.Logger) *PostgresStore {
	if db == nil {
		panic("database connection cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &PostgresStore{db: db, logger: logger}
}

// scanQuestionFromRow scans a database row into a models.Question struct
func (s *PostgresStore) scanQuestionFromRow(row *sql.Row) (result0 *models.Question, err error) {
	question := &models.Question{}
	var optionsJSON string
	var explanation sql.NullString
	var sourceFile sql.NullString
	var sourceType sql.NullString

	err = row.Scan(
		&question.ID,
		&question.Number,
		&question.Topic,
		&question.Text,
		&optionsJSON,
		&question.CorrectAnswer,
		&explanation,
		&sourceFile,
		&sourceType,
		&question.CreatedAt,
		&question.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if explanation.Valid {
		question.Explanation = explanation.String
	}
	if sourceFile.Valid {
		question.SourceFile = sourceFile.String
	}
	if sourceType.Valid {
		question.SourceType = sourceType.String
	}

	if err := question.UnmarshalOptionsFromJSON(optionsJSON); err != nil {
		return nil, err
	}

	return question, nil
}

// scanQuestionFromRows scans database rows into a models.Question struct
func (s *PostgresStore) scanQuestionFromRows(rows *sql.Rows) (result0 *models.Question, err error) {
	question := &models.Question{}
	var optionsJSON string
	var explanation sql.NullString
	var sourceFile sql.NullString
	var sourceType sql.NullString

	err = rows.Scan(
		&question.ID,
		&question.Number,
		&question.Topic,
		&question.Text,
		&optionsJSON,
		&question.CorrectAnswer,
		&explanation,
		&sourceFile,
		&sourceType,
		&question.CreatedAt,
		&question.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if explanation.Valid {
		question.Explanation = explanation.String
	}
	if sourceFile.Valid {
		question.SourceFile = sourceFile.String
	}
	if sourceType.Valid {
		question.SourceType = sourceType.String
	}

	if err := question.UnmarshalOptionsFromJSON(optionsJSON); err != nil {
		return nil, err
	}

	return question, nil
}

// scanSummary scans a summary row from any row-like scanner.
func scanSummary(scan func(dest ...interface{}) error) (result0 *models.PerformanceSummary, err error) {
	summary := &models.PerformanceSummary{}
	var lastAnswered sql.NullTime

	err = scan(
		&summary.Username,
		&summary.QuestionID,
		&summary.Topic,
		&summary.TotalAttempts,
		&summary.CorrectAttempts,
		&summary.IncorrectAttempts,
		&summary.Streak,
		&summary.PriorityScore,
		&lastAnswered,
	)
	if err != nil {
		return nil, err
	}

	if lastAnswered.Valid {
		summary.LastAnsweredAt = lastAnswered.Time
	}

	return summary, nil
}

// GetQuestion returns the catalog entry for questionID.
func (s *PostgresStore) GetQuestion(ctx context.Context, questionID string) (result0 *models.Question, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "GetQuestion",
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	row := s.db.QueryRowContext(ctx, `SELECT `+questionSelectFields+` FROM questions WHERE id = $1`, questionID)
	question, err := s.scanQuestionFromRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapErrorf(contextutils.ErrQuestionNotFound, "question %s", questionID)
		}
		return nil, contextutils.WrapError(err, "failed to get question")
	}
	return question, nil
}

// ListQuestions returns catalog entries matching the filter, ordered by question number.
func (s *PostgresStore) ListQuestions(ctx context.Context, filter QuestionFilter) (result0 []*models.Question, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "ListQuestions",
		observability.AttributeTopic(filter.Topic),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + questionSelectFields + ` FROM questions`
	var args []interface{}
	if filter.Topic != "" {
		query += ` WHERE topic = $1`
		args = append(args, filter.Topic)
	}
	query += ` ORDER BY question_number`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query questions")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var questions []*models.Question
	for rows.Next() {
		question, scanErr := s.scanQuestionFromRows(rows)
		if scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan question")
		}
		questions = append(questions, question)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate questions")
	}

	span.SetAttributes(attribute.Int("questions.count", len(questions)))
	return questions, nil
}

// ListTopics returns the distinct topics present in the catalog, sorted.
func (s *PostgresStore) ListTopics(ctx context.Context) (result0 []string, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "ListTopics")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT topic FROM questions ORDER BY topic`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query topics")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var topics []string
	for rows.Next() {
		var topic string
		if scanErr := rows.Scan(&topic); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan topic")
		}
		topics = append(topics, topic)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate topics")
	}

	span.SetAttributes(attribute.Int("topics.count", len(topics)))
	return topics, nil
}

// UpsertQuestions inserts or replaces catalog entries keyed by question ID.
func (s *PostgresStore) UpsertQuestions(ctx context.Context, questions []*models.Question) (result0 int, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "UpsertQuestions",
		observability.AttributeCount(len(questions)),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error(ctx, "Failed to rollback transaction", rbErr)
			}
		}
	}()

	written := 0
	for _, question := range questions {
		optionsJSON, marshalErr := question.MarshalOptionsToJSON()
		if marshalErr != nil {
			err = marshalErr
			return 0, err
		}

		_, execErr := tx.ExecContext(ctx, `
			INSERT INTO questions (id, question_number, topic, question_text, answer_options, correct_answer, explanation, source_file, source_type, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
			ON CONFLICT (id) DO UPDATE SET
				question_number = EXCLUDED.question_number,
				topic = EXCLUDED.topic,
				question_text = EXCLUDED.question_text,
				answer_options = EXCLUDED.answer_options,
				correct_answer = EXCLUDED.correct_answer,
				explanation = EXCLUDED.explanation,
				source_file = EXCLUDED.source_file,
				source_type = EXCLUDED.source_type,
				updated_at = NOW()`,
			question.ID,
			question.Number,
			question.Topic,
			question.Text,
			optionsJSON,
			question.CorrectAnswer,
			question.Explanation,
			question.SourceFile,
			question.SourceType,
		)
		if execErr != nil {
			err = contextutils.WrapErrorf(execErr, "failed to upsert question %s", question.ID)
			return 0, err
		}
		written++
	}

	if err = tx.Commit(); err != nil {
		err = contextutils.WrapError(err, "failed to commit transaction")
		return 0, err
	}

	span.SetAttributes(attribute.Int("questions.written", written))
	return written, nil
}

// CountQuestions returns the catalog size under the filter.
func (s *PostgresStore) CountQuestions(ctx context.Context, filter QuestionFilter) (result0 int, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "CountQuestions",
		observability.AttributeTopic(filter.Topic),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT COUNT(*) FROM questions`
	var args []interface{}
	if filter.Topic != "" {
		query += ` WHERE topic = $1`
		args = append(args, filter.Topic)
	}

	var count int
	if err = s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, contextutils.WrapError(err, "failed to count questions")
	}
	return count, nil
}

// GetSummary returns the summary for the (username, questionID) pair, or nil
// when the pair has never been answered.
func (s *PostgresStore) GetSummary(ctx context.Context, username, questionID string) (result0 *models.PerformanceSummary, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "GetSummary",
		observability.AttributeUsername(username),
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	row := s.db.QueryRowContext(ctx,
		`SELECT `+summarySelectFields+` FROM performance_summaries WHERE username = $1 AND question_id = $2`,
		username, questionID)
	summary, err := scanSummary(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, contextutils.WrapError(err, "failed to get summary")
	}
	return summary, nil
}

// ListSummaries returns all summaries for the user matching the filter.
func (s *PostgresStore) ListSummaries(ctx context.Context, username string, filter SummaryFilter) (result0 []*models.PerformanceSummary, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "ListSummaries",
		observability.AttributeUsername(username),
		observability.AttributeTopic(filter.Topic),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + summarySelectFields + ` FROM performance_summaries WHERE username = $1`
	args := []interface{}{username}
	if filter.Topic != "" {
		query += ` AND topic = $2`
		args = append(args, filter.Topic)
	}
	query += ` ORDER BY question_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query summaries")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var summaries []*models.PerformanceSummary
	for rows.Next() {
		summary, scanErr := scanSummary(rows.Scan)
		if scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan summary")
		}
		summaries = append(summaries, summary)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate summaries")
	}

	span.SetAttributes(attribute.Int("summaries.count", len(summaries)))
	return summaries, nil
}

// UpsertSummaryAtomic applies update to the pair's summary inside a
// transaction, holding the row lock for the duration.
func (s *PostgresStore) UpsertSummaryAtomic(ctx context.Context, username, questionID string, update UpdateSummaryFunc) (result0 *models.PerformanceSummary, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "UpsertSummaryAtomic",
		observability.AttributeUsername(username),
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error(ctx, "Failed to rollback transaction", rbErr)
			}
		}
	}()

	summary, err := s.upsertSummaryInTx(ctx, tx, username, questionID, update)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = contextutils.WrapError(err, "failed to commit transaction")
		return nil, err
	}
	return summary, nil
}

// upsertSummaryInTx locks the pair, applies update, and writes the result.
func (s *PostgresStore) upsertSummaryInTx(ctx context.Context, tx *sql.Tx, username, questionID string, update UpdateSummaryFunc) (*models.PerformanceSummary, error) {
	// FOR UPDATE alone cannot serialize a pair's first fold: there is no
	// row to lock yet, so two concurrent first answers would both fold
	// from nil and the loser's upsert would overwrite the winner's. The
	// advisory lock exists before the row does and is released at commit.
	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`,
		username, questionID); err != nil {
		return nil, contextutils.WrapError(err, "failed to acquire pair lock")
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+summarySelectFields+` FROM performance_summaries WHERE username = $1 AND question_id = $2 FOR UPDATE`,
		username, questionID)

	existing, err := scanSummary(row.Scan)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapError(err, "failed to lock summary row")
		}
		existing = nil
	}

	next, err := update(existing)
	if err != nil {
		return nil, err
	}
	next.Username = username
	next.QuestionID = questionID

	_, err = tx.ExecContext(ctx, `
		INSERT INTO performance_summaries (username, question_id, topic, total_attempts, correct_attempts, incorrect_attempts, streak, priority_score, last_answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (username, question_id) DO UPDATE SET
			topic = EXCLUDED.topic,
			total_attempts = EXCLUDED.total_attempts,
			correct_attempts = EXCLUDED.correct_attempts,
			incorrect_attempts = EXCLUDED.incorrect_attempts,
			streak = EXCLUDED.streak,
			priority_score = EXCLUDED.priority_score,
			last_answered_at = EXCLUDED.last_answered_at`,
		next.Username,
		next.QuestionID,
		next.Topic,
		next.TotalAttempts,
		next.CorrectAttempts,
		next.IncorrectAttempts,
		next.Streak,
		next.PriorityScore,
		next.LastAnsweredAt,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to upsert summary")
	}
	return next, nil
}

// InsertAnswerEvent appends one event to the log.
func (s *PostgresStore) InsertAnswerEvent(ctx context.Context, event *models.AnswerEvent) (err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "InsertAnswerEvent",
		observability.AttributeUsername(event.Username),
		observability.AttributeQuestionID(event.QuestionID),
	)
	defer observability.FinishSpan(span, &err)

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO answer_events (username, question_id, choice, is_correct, answered_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		event.Username, event.QuestionID, event.Choice, event.IsCorrect, event.AnsweredAt,
	).Scan(&event.ID)
	if err != nil {
		return contextutils.WrapError(err, "failed to insert answer event")
	}
	return nil
}

// RecordAnswerAtomic appends the event and folds it into the summary in a
// single transaction.
func (s *PostgresStore) RecordAnswerAtomic(ctx context.Context, event *models.AnswerEvent, update UpdateSummaryFunc) (result0 *models.PerformanceSummary, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "RecordAnswerAtomic",
		observability.AttributeUsername(event.Username),
		observability.AttributeQuestionID(event.QuestionID),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error(ctx, "Failed to rollback transaction", rbErr)
			}
		}
	}()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO answer_events (username, question_id, choice, is_correct, answered_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		event.Username, event.QuestionID, event.Choice, event.IsCorrect, event.AnsweredAt,
	).Scan(&event.ID)
	if err != nil {
		err = contextutils.WrapError(err, "failed to insert answer event")
		return nil, err
	}

	summary, err := s.upsertSummaryInTx(ctx, tx, event.Username, event.QuestionID, update)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = contextutils.WrapError(err, "failed to commit transaction")
		return nil, err
	}
	return summary, nil
}

// ListAnswerEvents returns the user's most recent events, newest first.
func (s *PostgresStore) ListAnswerEvents(ctx context.Context, username string, limit int) (result0 []*models.AnswerEvent, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "ListAnswerEvents",
		observability.AttributeUsername(username),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT id, username, question_id, choice, is_correct, answered_at FROM answer_events WHERE username = $1 ORDER BY answered_at DESC, id DESC`
	args := []interface{}{username}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query answer events")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var events []*models.AnswerEvent
	for rows.Next() {
		event := &models.AnswerEvent{}
		if scanErr := rows.Scan(&event.ID, &event.Username, &event.QuestionID, &event.Choice, &event.IsCorrect, &event.AnsweredAt); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan answer event")
		}
		events = append(events, event)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate answer events")
	}

	span.SetAttributes(attribute.Int("events.count", len(events)))
	return events, nil
}

// ResetUserProgress deletes the user's events and summaries.
func (s *PostgresStore) ResetUserProgress(ctx context.Context, username string) (err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "ResetUserProgress",
		observability.AttributeUsername(username),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error(ctx, "Failed to rollback transaction", rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM answer_events WHERE username = $1`, username); err != nil {
		err = contextutils.WrapError(err, "failed to delete answer events")
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM performance_summaries WHERE username = $1`, username); err != nil {
		err = contextutils.WrapError(err, "failed to delete summaries")
		return err
	}

	if err = tx.Commit(); err != nil {
		err = contextutils.WrapError(err, "failed to commit transaction")
		return err
	}

	s.logger.Info(ctx, "User progress reset", map[string]interface{}{"username": username})
	return nil
}

// compile-time interface check
var _ Store = (*PostgresStore)(nil)
