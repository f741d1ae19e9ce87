package grounding

import (
	"strings"
	"unicode"
)

var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "its": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "their": {}, "this": {}, "to": {}, "was": {}, "were": {},
	"which": {}, "with": {},
}

// LexicalOverlap returns the fraction of text's content words that appear in
// any of the sources. Text without content words has zero overlap.
func LexicalOverlap(text string, sources []string) float64 {
	tokens := filterStopwords(tokenize(text))
	if len(tokens) == 0 {
		return 0
	}

	vocab := make(map[string]struct{})
	for _, s := range sources {
		for _, token := range tokenize(s) {
			vocab[token] = struct{}{}
		}
	}

	var hits int
	for _, token := range tokens {
		if _, ok := vocab[token]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

// normalize lowercases text and collapses punctuation and whitespace.
func normalize(text string) string {
	return strings.Join(tokenize(text), " ")
}

func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	tokens := strings.Fields(builder.String())
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func filterStopwords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := lexicalStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
