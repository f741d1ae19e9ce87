package grounding

import (
	"strings"

	"github.com/agext/levenshtein"

	"slidedeck-ai/internal/deck"
)

// DefaultDuplicateThreshold is the similarity at or above which two texts are near-duplicates.
const DefaultDuplicateThreshold = 0.8

// maxCompareRunes bounds the quadratic edit-distance comparison.
const maxCompareRunes = 4000

// Similarity returns the normalized Levenshtein similarity of a and b in [0,1],
// ignoring case, punctuation and spacing.
func Similarity(a, b string) float64 {
	na, nb := clip(normalize(a)), clip(normalize(b))
	if na == "" && nb == "" {
		return 1
	}
	return levenshtein.Similarity(na, nb, nil)
}

// NearDuplicate reports whether a and b are at least threshold similar.
func NearDuplicate(a, b string, threshold float64) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	return Similarity(a, b) >= threshold
}

// DedupeItems drops items that nearly duplicate an earlier item.
func DedupeItems(items []deck.ContentItem, threshold float64) []deck.ContentItem {
	out := make([]deck.ContentItem, 0, len(items))
	for _, item := range items {
		dup := false
		for _, kept := range out {
			if NearDuplicate(item.Text, kept.Text, threshold) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, item)
		}
	}
	return out
}

// JoinText concatenates item texts for section-level comparison.
func JoinText(items []deck.ContentItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.Text
	}
	return strings.Join(parts, "\n")
}

// WordCount counts whitespace-separated words across items.
func WordCount(items []deck.ContentItem) int {
	n := 0
	for _, item := range items {
		n += len(strings.Fields(item.Text))
	}
	return n
}

func clip(s string) string {
	r := []rune(s)
	if len(r) > maxCompareRunes {
		return string(r[:maxCompareRunes])
	}
	return s
}
