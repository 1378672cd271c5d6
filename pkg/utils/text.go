// Package utils provides shared utilities for text and logging.
package utils

import "unicode/utf8"

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	cut := Clip(s, maxLen)
	if len(cut) == len(s) {
		return s
	}
	return cut + "..."
}

// Clip returns at most maxRunes runes of s without a suffix. A multi-byte
// rune is never split. If maxRunes is 0 or negative, returns s unchanged.
func Clip(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}
