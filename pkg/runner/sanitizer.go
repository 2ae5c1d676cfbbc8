package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxLineSize bounds one console command.
	DefaultMaxLineSize = 1024
	// EnvMaxLineSize overrides DefaultMaxLineSize.
	EnvMaxLineSize = "CALLGATE_MAX_LINE_SIZE"
)

var (
	ErrLineTooLarge = errors.New("command exceeds maximum allowed size")
	ErrInvalidUTF8  = errors.New("command contains invalid UTF-8 sequences")
)

// SanitizeLine prepares one console line: it rejects oversized or invalid UTF-8 input,
// drops control characters (ANSI escapes included) and trims surrounding space.
// Flag values typed at the console end up in the save file, so nothing unprintable gets through.
func SanitizeLine(line string) (string, error) {
	if limit := maxLineSize(); len(line) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrLineTooLarge, len(line), limit)
	}
	if !utf8.ValidString(line) {
		return "", ErrInvalidUTF8
	}

	clean := strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, line)
	return strings.TrimSpace(clean), nil
}

func maxLineSize() int {
	if val := os.Getenv(EnvMaxLineSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxLineSize
}
