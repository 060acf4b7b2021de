package core

import (
	"strings"
	"unicode"
)

// stopwords excluded from keyword-overlap scoring.
var stopwords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "will": {},
	"when": {}, "what": {}, "where": {}, "which": {}, "their": {}, "there": {},
	"been": {}, "were": {}, "they": {}, "them": {}, "then": {}, "than": {},
	"into": {}, "over": {}, "only": {}, "also": {}, "some": {}, "such": {},
	"very": {}, "just": {}, "about": {}, "after": {}, "before": {}, "being": {},
	"does": {}, "each": {}, "more": {}, "most": {}, "other": {}, "should": {},
	"would": {}, "could": {}, "these": {}, "those": {}, "because": {},
}

// Keywords tokenises text for overlap scoring: lowercase, punctuation
// stripped, tokens of length <= 3 and stopwords dropped.
func Keywords(text string) map[string]struct{} {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	keywords := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if len(token) <= 3 {
			continue
		}
		if _, stop := stopwords[token]; stop {
			continue
		}
		keywords[token] = struct{}{}
	}
	return keywords
}

// OverlapScore counts keywords shared by two token sets.
func OverlapScore(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	score := 0
	for token := range a {
		if _, ok := b[token]; ok {
			score++
		}
	}
	return score
}
