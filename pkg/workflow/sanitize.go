package workflow

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
	// DefaultMaxMessageSize is 4KB (conservative default)
	DefaultMaxMessageSize = 4096
	// EnvMaxMessageSize is the environment variable to override the default
	EnvMaxMessageSize = "ARBOR_MAX_REPORT_SIZE"
)

var (
	ErrMessageTooLarge = errors.New("report message exceeds maximum allowed size")
	ErrInvalidUTF8     = errors.New("report message contains invalid UTF-8 sequences")
)

// SanitizeMessage cleans a report message by enforcing size limits,
// validating UTF-8, and stripping dangerous control characters. Report
// messages are caller-authored and end up on terminals and HTTP responses,
// so they must not be able to poison the log they land in.
func SanitizeMessage(message string) (string, error) {
	// 1. Enforce Size Limit
	limit := getMaxMessageSize()
	if len(message) > limit {
		// We explicitly reject rather than truncate to ensure deterministic state.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrMessageTooLarge, len(message), limit)
	}

	// 2. Validate UTF-8
	if !utf8.ValidString(message) {
		return "", ErrInvalidUTF8
	}

	// 3. Strip Control Characters
	// We preserve:
	// - Newline (\n)
	// - Tab (\t)
	// - Carriage Return (\r) - treated as whitespace
	// We remove:
	// - ANSI codes (ESC), NULL, BEL, etc.
	// This prevents log poisoning and terminal corruption.

	// Fast path: if no control chars, return as is.
	clean := true
	for _, r := range message {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return message, nil
	}

	// Slow path: build clean string
	var b strings.Builder
	b.Grow(len(message))
	for _, r := range message {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func getMaxMessageSize() int {
	if val := os.Getenv(EnvMaxMessageSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxMessageSize
}
