package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// Class tells whether a notification came straight from the bank or was relayed
type Class string

const (
	ClassDirect    Class = "direct"
	ClassForwarded Class = "forwarded"
)

// Structural hints that a human relayed the message
var forwardIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Subject:.*Fwd:`),
	regexp.MustCompile(`(?i)-------- Mensagem encaminhada --------`),
	regexp.MustCompile(`(?i)Mensagem encaminhada`),
	regexp.MustCompile(`(?i)Forwarded message`),
	regexp.MustCompile(`(?i)X-Forwarded-Message-Id:`),
	regexp.MustCompile(`(?i)From:.*<.*>.*Nubank`),
}

// Banner line that separates the forwarder's note from the relayed message
var forwardBanner = regexp.MustCompile(`(?i)(Mensagem encaminhada|Forwarded message)`)

var (
	numericLine = regexp.MustCompile(`^\d{3,}$`)
	anyTag      = regexp.MustCompile(`<[^>]*>`)
	lineBreaks  = regexp.MustCompile(`(?i)<br\s*/?>|</(?:div|p|tr|li)>`)
)

// Classify reports the message class from the raw, undecoded message
func Classify(raw string) Class {
	for _, re := range forwardIndicators {
		if re.MatchString(raw) {
			return ClassForwarded
		}
	}
	return ClassDirect
}

// ForwardedAccountID looks for an account id the forwarder typed above the
// forwarding banner. Starting at the banner it walks upward, skipping blank
// lines, markup-only lines and header-like lines (a colon or an arrow glyph);
// the first remaining line is the candidate and must be a number of at least
// three digits.
func ForwardedAccountID(decoded string) (int64, bool) {
	decoded = strings.ReplaceAll(decoded, "\r\n", "\n")
	lines := strings.Split(lineBreaks.ReplaceAllString(decoded, "\n"), "\n")

	banner := -1
	for i, line := range lines {
		if forwardBanner.MatchString(line) {
			banner = i
			break
		}
	}
	if banner <= 0 {
		return 0, false
	}

	for i := banner - 1; i >= 0; i-- {
		// Blank and markup-only lines reduce to nothing
		line := strings.TrimSpace(anyTag.ReplaceAllString(lines[i], ""))
		if line == "" {
			continue
		}
		if strings.Contains(line, ":") || strings.ContainsAny(line, ">»→") {
			continue
		}

		if !numericLine.MatchString(line) {
			return 0, false
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	}
	return 0, false
}
