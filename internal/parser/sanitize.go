package parser

import (
	"html"
	"regexp"
	"strings"
)

// Control characters other than tab, newline and carriage return
var controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// Sanitize makes extracted free text safe to log and to store in the client map:
// markup-significant characters are escaped and control characters removed.
func Sanitize(s string) string {
	s = html.EscapeString(s)
	s = controlChars.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// collapseSpace joins a value that was wrapped across lines into a single line
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
