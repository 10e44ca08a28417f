package contextutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		want     bool
	}{
		{name: "simple", username: "ana", want: true},
		{name: "mixed case and digits", username: "Ana42", want: true},
		{name: "empty", username: "", want: false},
		{name: "single char", username: "a", want: false},
		{name: "spaces", username: "ana maria", want: false},
		{name: "punctuation", username: "ana@example", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidUsername(tt.username))
		})
	}
}

func TestIsValidChoiceLetter(t *testing.T) {
	tests := []struct {
		name   string
		choice string
		want   bool
	}{
		{name: "upper", choice: "A", want: true},
		{name: "lower", choice: "c", want: true},
		{name: "empty", choice: "", want: false},
		{name: "digit", choice: "1", want: false},
		{name: "multiple letters", choice: "AB", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidChoiceLetter(tt.choice))
		})
	}
}
