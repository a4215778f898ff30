package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString drops control characters, trims surrounding whitespace and, when maxLen > 0,
// cuts the result to at most maxLen bytes without splitting a rune.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input))
	if maxLen <= 0 || len(cleaned) <= maxLen {
		return cleaned
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
		cut--
	}
	return strings.TrimSpace(cleaned[:cut])
}

// SanitizeOptional applies SanitizeString to an optional field. Blank input becomes nil.
func SanitizeOptional(input *string, maxLen int) *string {
	if input == nil {
		return nil
	}
	cleaned := SanitizeString(*input, maxLen)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
