package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeLine_SizeLimit(t *testing.T) {
	limit := DefaultMaxLineSize

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"Under Limit", limit - 1, false},
		{"Exact Limit", limit, false},
		{"Over Limit", limit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizeLine(strings.Repeat("a", tt.size))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrLineTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeLine_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxLineSize, "8")
	_, err := SanitizeLine("open gallery")
	assert.ErrorIs(t, err, ErrLineTooLarge)

	t.Setenv(EnvMaxLineSize, "not-a-number")
	_, err = SanitizeLine("open gallery")
	assert.NoError(t, err)
}

func TestSanitizeLine_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain", "open gallery", "open gallery"},
		{"Trailing Newline", "continue\r\n", "continue"},
		{"Tab", "set\tsave.chapter 2", "set save.chapter 2"},
		{"ANSI Code", "\x1b[31mhangup\x1b[0m", "[31mhangup[0m"},
		{"Null Byte", "tri\x00gger 1", "trigger 1"},
		{"Empty", "   \n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeLine(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSanitizeLine_InvalidUTF8(t *testing.T) {
	_, err := SanitizeLine("browse \xff\xfe")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}
