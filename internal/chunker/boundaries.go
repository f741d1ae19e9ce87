package chunker

import (
	"sort"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// boundaries holds sorted rune offsets at which a new paragraph or sentence begins.
type boundaries struct {
	paragraphs []int
	sentences  []int
}

// findBoundaries scans text once for paragraph and sentence starts.
func findBoundaries(text string) boundaries {
	var b boundaries

	runes := []rune(text)
	for i := 0; i+1 < len(runes); i++ {
		if runes[i] != '\n' || runes[i+1] != '\n' {
			continue
		}
		j := i + 2
		for j < len(runes) && runes[j] == '\n' {
			j++
		}
		if j < len(runes) {
			b.paragraphs = append(b.paragraphs, j)
		}
		i = j - 1
	}

	state := -1
	rest := text
	pos := 0
	for len(rest) > 0 {
		var sentence string
		sentence, rest, state = uniseg.FirstSentenceInString(rest, state)
		pos += utf8.RuneCountInString(sentence)
		if len(rest) > 0 {
			b.sentences = append(b.sentences, pos)
		}
	}

	return b
}

// snap returns the best chunk end in (lo, hi]: the last paragraph start,
// else the last sentence start, else hi itself.
func (b boundaries) snap(lo, hi int) int {
	if p, ok := lastIn(b.paragraphs, lo, hi); ok {
		return p
	}
	if s, ok := lastIn(b.sentences, lo, hi); ok {
		return s
	}
	return hi
}

func lastIn(offsets []int, lo, hi int) (int, bool) {
	i := sort.SearchInts(offsets, hi+1) - 1
	if i < 0 || offsets[i] <= lo {
		return 0, false
	}
	return offsets[i], true
}
