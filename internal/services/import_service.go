package services

import (
	"context"
	"encoding/json"
	"strings"

	"examprep/internal/models"
	"examprep/internal/observability"
	"examprep/internal/store"
	contextutils "examprep/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
)

// questionImportSchema validates a bulk import payload before anything
// touches the catalog. Imports are all-or-nothing: one invalid entry rejects
// the whole payload.
const questionImportSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["question_id", "question_number", "topic", "question_text", "answer_options", "correct_answer"],
		"properties": {
			"question_id": {"type": "string", "minLength": 1},
			"question_number": {"type": "integer", "minimum": 0},
			"topic": {"type": "string", "minLength": 1},
			"question_text": {"type": "string", "minLength": 1},
			"answer_options": {
				"type": "array",
				"minItems": 2,
				"items": {
					"type": "object",
					"required": ["letter", "text"],
					"properties": {
						"letter": {"type": "string", "minLength": 1},
						"text": {"type": "string"},
						"is_correct": {"type": "boolean"}
					}
				}
			},
			"correct_answer": {"type": "string", "minLength": 1},
			"explanation": {"type": "string"},
			"source_file": {"type": "string"},
			"source_type": {"type": "string"}
		}
	}
}`

// ImportService loads question catalogs from JSON payloads.
type ImportService struct {
	store  store.Store
	logger *observability.Logger
}

// NewImportService creates an ImportService on the given store.
func NewImportService(s store.Store, logger *observability.Logger) *ImportService {
	if s == nil {
		panic("store cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &ImportService{store: s, logger: logger}
}

// ValidatePayload checks a raw import payload against the import schema.
func (s *ImportService) ValidatePayload(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(questionImportSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "import payload is not valid JSON: %v", err)
	}
	if !result.Valid() {
		var errorMessages []string
		for _, e := range result.Errors() {
			errorMessages = append(errorMessages, e.String())
		}
		return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "import payload failed schema validation: %s", strings.Join(errorMessages, "; "))
	}
	return nil
}

// ImportQuestions validates and upserts a JSON array of questions, keyed by
// question_id. Re-importing an existing ID replaces the catalog entry;
// answer events and summaries referencing it are untouched.
func (s *ImportService) ImportQuestions(ctx context.Context, data []byte) (result0 int, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "ImportQuestions",
		attribute.Int("payload.bytes", len(data)),
	)
	defer observability.FinishSpan(span, &err)

	if err = s.ValidatePayload(data); err != nil {
		return 0, err
	}

	var questions []*models.Question
	if err = json.Unmarshal(data, &questions); err != nil {
		return 0, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "failed to decode import payload: %v", err)
	}
	if len(questions) == 0 {
		return 0, nil
	}

	seen := make(map[string]bool, len(questions))
	for _, question := range questions {
		if seen[question.ID] {
			return 0, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "duplicate question_id %q in payload", question.ID)
		}
		seen[question.ID] = true
	}

	written, err := s.store.UpsertQuestions(ctx, questions)
	if err != nil {
		return 0, contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to upsert questions: %v", err)
	}

	s.logger.Info(ctx, "Questions imported", map[string]interface{}{"count": written})
	span.SetAttributes(attribute.Int("questions.imported", written))
	return written, nil
}
