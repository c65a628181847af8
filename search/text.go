package search

import (
	"strings"
	"unicode"
)

// Words ignored when checking whether a review mentions every query word.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "do": true, "does": true, "for": true,
	"from": true, "has": true, "have": true, "how": true, "i": true, "in": true,
	"is": true, "it": true, "its": true, "my": true, "of": true, "on": true,
	"or": true, "so": true, "that": true, "the": true, "this": true, "to": true,
	"very": true, "was": true, "what": true, "which": true, "with": true, "you": true,
}

// significantWords lowercases text, splits it on anything that is not a
// letter, digit or apostrophe, and drops stop words.
func significantWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	words := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f != "" && !stopWords[f] {
			words = append(words, f)
		}
	}
	return words
}

// containsAllQueryWords reports whether every significant query word occurs
// in the review text or one of its metadata values, so a product name in the
// query can match the product_name field. A query made only of stop words
// matches nothing.
func containsAllQueryWords(document string, metadata map[string]string, query string) bool {
	queryWords := significantWords(query)
	if len(queryWords) == 0 {
		return false
	}

	seen := make(map[string]struct{})
	add := func(text string) {
		for _, w := range significantWords(text) {
			seen[w] = struct{}{}
		}
	}
	add(document)
	for _, value := range metadata {
		add(value)
	}

	for _, w := range queryWords {
		if _, ok := seen[w]; !ok {
			return false
		}
	}
	return true
}
