package util

import (
	"html"
	"strings"
)

// SanitizeInput escapes HTML/script-like characters in captured attacker
// input so stored payloads are safe to render.
func SanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return html.EscapeString(s)
}

// Truncate bounds s to at most n characters, never splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

