// Package grounding checks drafted content against the retrieved context
// and scores how well each item is supported.
package grounding

import (
	"strings"

	"slidedeck-ai/internal/deck"
)

// Policy decides what happens to drafts without a single valid citation.
type Policy string

const (
	// PolicyDrop removes ungrounded drafts.
	PolicyDrop Policy = "drop"
	// PolicyFlag keeps them with empty provenance and near-zero confidence.
	PolicyFlag Policy = "flag"
)

// FlaggedConfidenceCeiling caps the confidence of flagged drafts.
const FlaggedConfidenceCeiling = 0.05

// Weights of the confidence components.
type Weights struct {
	Relevance float64 `yaml:"relevance"`
	Lexical   float64 `yaml:"lexical"`
	Cited     float64 `yaml:"cited"`
}

// DefaultWeights returns 0.4 relevance, 0.4 lexical, 0.2 citation presence.
func DefaultWeights() Weights {
	return Weights{Relevance: 0.4, Lexical: 0.4, Cited: 0.2}
}

// Options configures Validate.
type Options struct {
	Policy  Policy  `yaml:"policy"`
	Weights Weights `yaml:"weights"`
}

// DefaultOptions returns the drop policy with default weights.
func DefaultOptions() Options {
	return Options{Policy: PolicyDrop, Weights: DefaultWeights()}
}

// Draft is one unvalidated content item as produced by the model.
// Citations hold chunk IDs, or the raw label when it could not be resolved.
type Draft struct {
	Text      string
	Citations []string
}

// Report is the outcome of validating a batch of drafts.
type Report struct {
	Items []deck.ContentItem
	// Dropped counts drafts removed for lacking valid citations.
	Dropped int
	// Fabricated counts citations that were not part of the retrieved set.
	Fabricated int
}

// Validate keeps only provenance that exists in set and scores every
// surviving item. It has no side effects.
func Validate(drafts []Draft, set deck.RetrievedSet, opts Options) Report {
	if opts.Policy == "" {
		opts.Policy = PolicyDrop
	}

	var report Report
	for _, d := range drafts {
		text := strings.TrimSpace(d.Text)
		if text == "" {
			continue
		}

		cites := unique(d.Citations)
		var cited []deck.RetrievedChunk
		for _, id := range cites {
			if c, ok := set.Lookup(id); ok {
				cited = append(cited, c)
			}
		}
		report.Fabricated += len(cites) - len(cited)

		if len(cited) == 0 {
			if opts.Policy == PolicyDrop {
				report.Dropped++
				continue
			}
			conf := Confidence(text, nil, opts.Weights)
			if conf > FlaggedConfidenceCeiling {
				conf = FlaggedConfidenceCeiling
			}
			report.Items = append(report.Items, deck.ContentItem{Text: text, Provenance: []string{}, Confidence: conf})
			continue
		}

		provenance := make([]string, len(cited))
		for i, c := range cited {
			provenance[i] = c.ChunkID
		}
		conf := Confidence(text, cited, opts.Weights) * float64(len(cited)) / float64(len(cites))
		report.Items = append(report.Items, deck.ContentItem{
			Text:       text,
			Provenance: provenance,
			Confidence: clamp01(conf),
		})
	}
	return report
}

// Confidence combines mean retrieval score, lexical overlap with the cited
// texts and citation presence into a value in [0,1].
func Confidence(text string, cited []deck.RetrievedChunk, w Weights) float64 {
	total := w.Relevance + w.Lexical + w.Cited
	if total <= 0 {
		return 0
	}

	var relevance, lexical, present float64
	if len(cited) > 0 {
		sources := make([]string, len(cited))
		for i, c := range cited {
			relevance += clamp01(float64(c.Score))
			sources[i] = c.Text
		}
		relevance /= float64(len(cited))
		lexical = LexicalOverlap(text, sources)
		present = 1
	}

	return clamp01((w.Relevance*relevance + w.Lexical*lexical + w.Cited*present) / total)
}

// Scale multiplies every item's confidence by factor, clamped to [0,1].
func Scale(items []deck.ContentItem, factor float64) []deck.ContentItem {
	out := make([]deck.ContentItem, len(items))
	for i, item := range items {
		item.Confidence = clamp01(item.Confidence * factor)
		out[i] = item
	}
	return out
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
