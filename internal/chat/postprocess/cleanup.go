package postprocess

import (
	"regexp"
	"strings"
)

var (
	questionLabelPattern = regexp.MustCompile(`(?i)^\s*(q|question)\s*[:.]\s*`)
	markupPattern        = regexp.MustCompile(`[*#_\x60]+|^[-•>]\s*`)
	ordinalPrefixPattern = regexp.MustCompile(`^\s*(\d+[.)]|[-•*])\s*`)
	multiSpacePattern    = regexp.MustCompile(`[ \t]+`)
)

// CleanAnswer removes the "Q:"/"Question:" labeling artifact some ingested
// answers carry, then strips markup.
func CleanAnswer(answer string) string {
	answer = questionLabelPattern.ReplaceAllString(answer, "")
	return StripMarkup(answer)
}

// StripMarkup drops asterisks, bullets, and header symbols line by line and
// collapses runs of spaces.
func StripMarkup(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))

	for _, line := range lines {
		line = markupPattern.ReplaceAllString(line, "")
		line = multiSpacePattern.ReplaceAllString(line, " ")
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n")
}

// ParseFollowUps splits model output into at most three questions, dropping
// ordinal and bullet prefixes.
func ParseFollowUps(text string) []string {
	var questions []string

	for _, line := range strings.Split(text, "\n") {
		line = ordinalPrefixPattern.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		questions = append(questions, line)
		if len(questions) == maxFollowUps {
			break
		}
	}

	return questions
}
