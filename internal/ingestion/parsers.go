package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const defaultPairConfidence = 0.5

var whitespacePattern = regexp.MustCompile(`\s+`)

// ParseCSV reads question/answer rows: question, answer, optional category,
// optional confidence. A header row naming the first column "question" is
// skipped.
func ParseCSV(r io.Reader) (Upload, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return Upload{}, fmt.Errorf("failed to parse csv: %w", err)
	}

	var upload Upload
	var fullText strings.Builder

	for i, record := range records {
		if len(record) < 2 {
			continue
		}

		question := strings.TrimSpace(record[0])
		answer := strings.TrimSpace(record[1])

		if i == 0 && strings.EqualFold(question, "question") {
			continue
		}
		if question == "" || answer == "" {
			continue
		}

		pair := RawPair{
			Question:   question,
			Answer:     answer,
			Confidence: defaultPairConfidence,
		}
		if len(record) > 2 {
			pair.Category = strings.TrimSpace(record[2])
		}
		if len(record) > 3 {
			if conf, err := strconv.ParseFloat(strings.TrimSpace(record[3]), 64); err == nil && conf >= 0 && conf <= 1 {
				pair.Confidence = conf
			}
		}

		upload.Pairs = append(upload.Pairs, pair)
		fullText.WriteString(question + "\n" + answer + "\n\n")
	}

	upload.FullText = strings.TrimSpace(fullText.String())
	return upload, nil
}

// ParseHTML extracts Q&A pairs from FAQ-style markup: each heading or
// definition term becomes a question, the text until the next one becomes
// its answer.
func ParseHTML(r io.Reader) (Upload, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	var upload Upload

	doc.Find("h1, h2, h3, h4, dt").Each(func(i int, heading *goquery.Selection) {
		question := collapseSpace(heading.Text())
		if question == "" {
			return
		}

		var answerParts []string
		for sibling := heading.Next(); sibling.Length() > 0; sibling = sibling.Next() {
			if sibling.Is("h1, h2, h3, h4, dt") {
				break
			}
			if text := collapseSpace(sibling.Text()); text != "" {
				answerParts = append(answerParts, text)
			}
		}

		if len(answerParts) == 0 {
			return
		}

		upload.Pairs = append(upload.Pairs, RawPair{
			Question:   question,
			Answer:     strings.Join(answerParts, " "),
			Confidence: defaultPairConfidence,
		})
	})

	upload.FullText = collapseSpace(doc.Find("body").Text())
	return upload, nil
}

func collapseSpace(text string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}
