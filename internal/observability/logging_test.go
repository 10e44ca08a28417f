package observability

import (
	"context"
	"testing"

	"examprep/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Disabled(t *testing.T) {
	logger := NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	require.NotNil(t, logger)

	// No-op logger must not panic on any level
	ctx := context.Background()
	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message", map[string]interface{}{"k": "v"})
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message", assert.AnError)
}

func TestNewLogger_NilConfig(t *testing.T) {
	logger := NewLogger(nil)
	require.NotNil(t, logger)
	logger.Info(context.Background(), "should not panic")
}

func TestLogger_MergeFields(t *testing.T) {
	logger := NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	tests := []struct {
		name     string
		fields   []map[string]interface{}
		expected map[string]interface{}
	}{
		{"no fields", nil, map[string]interface{}{}},
		{"single nil map", []map[string]interface{}{nil}, map[string]interface{}{}},
		{
			"single map",
			[]map[string]interface{}{{"a": 1}},
			map[string]interface{}{"a": 1},
		},
		{
			"multiple maps merge with later wins",
			[]map[string]interface{}{{"a": 1, "b": 2}, {"b": 3}},
			map[string]interface{}{"a": 1, "b": 3},
		},
		{
			"nil map among maps is skipped",
			[]map[string]interface{}{{"a": 1}, nil, {"c": 4}},
			map[string]interface{}{"a": 1, "c": 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, logger.mergeFields(tt.fields...))
		})
	}
}
