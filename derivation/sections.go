package derivation

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxSectionChars bounds one prompt section before truncation.
const MaxSectionChars = 1500

// MaxTotalChars bounds the whole assembled prompt (~4000 tokens).
const MaxTotalChars = 16000

// truncatedSentinel is appended whenever MaxTotalChars forces a cut.
const truncatedSentinel = "\n\n(data truncated)"

// promptSection is a heading plus body, grouping together
// a day's sources by type before folding them into one prompt.
type promptSection struct {
	Heading string
	Body    string
}

// appendSection renders one section into the growing prompt.
func appendSection(prompt *strings.Builder, s promptSection) {
	prompt.WriteString("\n## ")
	prompt.WriteString(s.Heading)
	prompt.WriteString("\n")
	prompt.WriteString(s.Body)
	prompt.WriteString("\n")
}

// truncateRunes cuts s to at most maxRunes runes, never splitting a
// multi-byte rune — Go strings are UTF-8, so a naive byte-index cut (the
// original's is_char_boundary walk-back) can land mid-rune and corrupt the
// trailing character; counting runes up front avoids that entirely.
func truncateRunes(s string, maxRunes int) (string, bool) {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:maxRunes]), true
}

// capLines appends lines to a section body until the rune budget is spent,
// then replaces the remainder with a single "... and N more" marker —
// mirroring the original's per-section char-budget loop over grouped rows.
func capLines(lines []string, totalCount int, moreNoun string) string {
	var body strings.Builder
	used := 0
	emitted := 0
	for _, line := range lines {
		n := utf8.RuneCountInString(line)
		if used+n > MaxSectionChars {
			remaining := totalCount - emitted
			if remaining > 0 {
				if emitted > 0 {
					body.WriteString("\n")
				}
				body.WriteString("  ... and ")
				body.WriteString(strconv.Itoa(remaining))
				body.WriteString(" more ")
				body.WriteString(moreNoun)
			}
			break
		}
		if emitted > 0 {
			body.WriteString("\n")
		}
		body.WriteString(line)
		used += n
		emitted++
	}
	return body.String()
}

// truncateTotal applies MaxTotalChars to the fully-assembled prompt.
func truncateTotal(prompt string) string {
	truncated, cut := truncateRunes(prompt, MaxTotalChars)
	if cut {
		return truncated + truncatedSentinel
	}
	return truncated
}
