package main

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxUsernameRunes = 24
	maxRoomNameRunes = 64
)

// Everything shown in the terminal is plain text; tags are stripped.
var textPolicy = bluemonday.StrictPolicy()

// SanitizeUsername strips markup and control characters from a display name
// and caps its length. An empty result means the name is unusable.
func SanitizeUsername(name string) string {
	return truncateRunes(cleanText(name), maxUsernameRunes)
}

func SanitizeRoomName(name string) string {
	return truncateRunes(cleanText(name), maxRoomNameRunes)
}

// cleanText makes server-supplied text safe to print: no markup, no escape
// sequences, no line breaks.
func cleanText(s string) string {
	if s == "" {
		return ""
	}
	// StrictPolicy escapes what it keeps; undo that for the terminal
	s = html.UnescapeString(textPolicy.Sanitize(html.UnescapeString(s)))
	s = stripControl(s)
	return strings.TrimSpace(s)
}

// stripControl drops control runes, turning tabs and newlines into spaces.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
