package session

import (
	"regexp"
	"strings"

	prose "github.com/jdkato/prose/v2"
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "your": true, "all": true, "can": true,
	"had": true, "has": true, "have": true, "was": true, "what": true,
	"when": true, "where": true, "which": true, "who": true, "why": true,
	"how": true, "with": true, "this": true, "that": true, "there": true,
	"from": true, "they": true, "will": true, "would": true, "could": true,
	"should": true, "about": true, "does": true, "did": true, "is": true,
	"it": true, "its": true, "do": true, "me": true, "my": true,
	"any": true, "some": true, "much": true, "many": true, "please": true,
}

var nonWordPattern = regexp.MustCompile(`\W+`)

// ExtractKeywords pulls up to limit topic keywords from a query: lowercase,
// stop words and short tokens dropped, first occurrence order preserved.
// Tokenization goes through prose; on failure a plain non-word split stands
// in.
func ExtractKeywords(query string, limit int) []string {
	var tokens []string

	doc, err := prose.NewDocument(strings.ToLower(query),
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err == nil {
		for _, tok := range doc.Tokens() {
			tokens = append(tokens, tok.Text)
		}
	} else {
		tokens = nonWordPattern.Split(strings.ToLower(query), -1)
	}

	keywords := make([]string, 0, limit)
	seen := make(map[string]bool)

	for _, token := range tokens {
		token = nonWordPattern.ReplaceAllString(token, "")
		if len(token) <= 2 || stopWords[token] || seen[token] {
			continue
		}
		seen[token] = true
		keywords = append(keywords, token)
		if len(keywords) == limit {
			break
		}
	}

	return keywords
}
