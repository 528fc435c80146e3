package utils

import (
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"
)

// Must stops the process on bootstrap errors.
func Must(e error) {
	if e != nil {
		slog.Error("fatal", "error", e)
		os.Exit(1)
	}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Snippet prepares free text for a log line.
func Snippet(s string, n int) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "<empty>"
	}
	if utf8.RuneCountInString(trimmed) > n {
		return Truncate(trimmed, n) + "…(truncated)"
	}
	return trimmed
}
