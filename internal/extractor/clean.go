package extractor

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	spaceRun    = regexp.MustCompile(` {2,}`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
	lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// Clean normalizes line endings, drops control characters, collapses runs of
// spaces and keeps at most one blank line between paragraphs. Clean is
// idempotent.
func Clean(s string) string {
	s = lineEndings.Replace(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t' || r == '\v' || r == '\f':
			return ' '
		case r == unicode.ReplacementChar:
			return -1
		case unicode.IsControl(r):
			return -1
		case unicode.Is(unicode.Cf, r):
			// zero-width and bidi format characters
			return -1
		case unicode.IsSpace(r):
			return ' '
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// joinRuns joins text runs of one page with single spaces.
func joinRuns(runs []string) string {
	parts := make([]string, 0, len(runs))
	for _, r := range runs {
		r = strings.TrimSpace(r)
		if r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, " ")
}

// paragraphs splits cleaned text on blank lines.
func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
