package synthesis

import (
	"regexp"
	"strings"

	"github.com/rivo/uniseg"

	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/grounding"
)

var (
	citationGroup  = regexp.MustCompile(`(?i)\[\s*(s\d+(?:\s*[,;]\s*s\d+)*)\s*\]`)
	leadingCites   = regexp.MustCompile(`(?i)^(?:\s*\[\s*s\d+(?:\s*[,;]\s*s\d+)*\s*\])+`)
	bulletMarker   = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)
	spaceBeforeEnd = regexp.MustCompile(`\s+([.,;:!?])`)
	labelSplit     = regexp.MustCompile(`\s*[,;]\s*`)
)

// parseBullets reads one draft per non-empty output line.
func parseBullets(raw string, set deck.RetrievedSet) []grounding.Draft {
	var drafts []grounding.Draft
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = bulletMarker.ReplaceAllString(line, "")
		text, cites := splitCitations(line, set)
		if text == "" {
			if n := len(drafts); n > 0 {
				drafts[n-1].Citations = append(drafts[n-1].Citations, cites...)
			}
			continue
		}
		drafts = append(drafts, grounding.Draft{Text: text, Citations: cites})
	}
	return drafts
}

// parseSentences splits paragraph output into one draft per sentence.
// Citations opening a sentence belong to the sentence before it.
func parseSentences(raw string, set deck.RetrievedSet) []grounding.Draft {
	paragraph := strings.Join(strings.Fields(raw), " ")

	var drafts []grounding.Draft
	state := -1
	rest := paragraph
	for len(rest) > 0 {
		var sentence string
		sentence, rest, state = uniseg.FirstSentenceInString(rest, state)

		if lead := leadingCites.FindString(sentence); lead != "" && len(drafts) > 0 {
			_, cites := splitCitations(lead, set)
			drafts[len(drafts)-1].Citations = append(drafts[len(drafts)-1].Citations, cites...)
			sentence = sentence[len(lead):]
		}

		text, cites := splitCitations(sentence, set)
		if text == "" {
			if n := len(drafts); n > 0 {
				drafts[n-1].Citations = append(drafts[n-1].Citations, cites...)
			}
			continue
		}
		drafts = append(drafts, grounding.Draft{Text: text, Citations: cites})
	}
	return drafts
}

// splitCitations removes citation groups from s and returns the cleaned text
// with the resolved citations in order of appearance.
func splitCitations(s string, set deck.RetrievedSet) (string, []string) {
	var cites []string
	for _, m := range citationGroup.FindAllStringSubmatch(s, -1) {
		for _, label := range labelSplit.Split(m[1], -1) {
			cites = append(cites, resolveLabel(strings.TrimSpace(label), set))
		}
	}
	text := citationGroup.ReplaceAllString(s, "")
	text = strings.Join(strings.Fields(text), " ")
	text = spaceBeforeEnd.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text), cites
}
