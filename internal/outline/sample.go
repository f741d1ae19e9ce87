package outline

import (
	"strings"

	"slidedeck-ai/internal/deck"
)

const (
	excerptRunes     = 600
	excerptSeparator = "\n\n[...]\n\n"
)

// Sample returns the document text when it fits in budget runes, otherwise
// evenly spaced chunk excerpts from beginning to end that together fit.
func Sample(chunks []deck.Chunk, budget int) string {
	if len(chunks) == 0 || budget <= 0 {
		return ""
	}

	full := reassemble(chunks)
	if len(full) <= budget {
		return string(full)
	}

	k := budget / excerptRunes
	k = max(1, min(k, len(chunks)))
	sep := len([]rune(excerptSeparator))
	per := (budget - sep*(k-1)) / k
	if per <= 0 {
		per = budget
		k = 1
	}

	parts := make([]string, 0, k)
	for j := 0; j < k; j++ {
		idx := 0
		if k > 1 {
			idx = j * (len(chunks) - 1) / (k - 1)
		}
		text := []rune(strings.TrimSpace(chunks[idx].Text))
		if len(text) > per {
			text = text[:per]
		}
		parts = append(parts, string(text))
	}
	return strings.Join(parts, excerptSeparator)
}

// reassemble recovers the document text from overlapping chunks.
func reassemble(chunks []deck.Chunk) []rune {
	var out []rune
	for i, c := range chunks {
		text := []rune(c.Text)
		if i+1 < len(chunks) {
			if keep := chunks[i+1].CharStart - c.CharStart; keep >= 0 && keep < len(text) {
				text = text[:keep]
			}
		}
		out = append(out, text...)
	}
	return out
}
