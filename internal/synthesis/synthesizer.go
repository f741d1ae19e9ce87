// Package synthesis drafts grounded slide content for one outline section
// from its retrieved context.
package synthesis

import (
	"context"
	"fmt"
	"strings"

	"slidedeck-ai/internal/contextutil"
	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/grounding"
	"slidedeck-ai/internal/llm"
)

// Style is the shape of the drafted content.
type Style string

const (
	StyleBullets   Style = "bullets"
	StyleParagraph Style = "paragraph"
)

// maxAttempts caps model calls per section: the draft and one regeneration.
const maxAttempts = 2

// Options configures synthesis and its quality checks.
type Options struct {
	Style       Style   `yaml:"style"`
	Items       int     `yaml:"items"`
	TargetWords int     `yaml:"target_words"`
	MinWords    int     `yaml:"min_words"`
	Tone        string  `yaml:"tone"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	// DuplicateThreshold is the similarity at which content counts as repeated.
	DuplicateThreshold float64 `yaml:"duplicate_threshold"`
	// DegradedPenalty scales confidence of content that failed its checks twice.
	DegradedPenalty float64           `yaml:"degraded_penalty"`
	Grounding       grounding.Options `yaml:"grounding"`
}

// DefaultOptions returns the default synthesis settings.
func DefaultOptions() Options {
	return Options{
		Style:              StyleBullets,
		Items:              4,
		TargetWords:        60,
		MinWords:           12,
		Tone:               "professional",
		MaxTokens:          800,
		Temperature:        0.3,
		DuplicateThreshold: grounding.DefaultDuplicateThreshold,
		DegradedPenalty:    0.5,
		Grounding:          grounding.DefaultOptions(),
	}
}

// Request is the input for one section.
type Request struct {
	Section   deck.OutlineSection
	Retrieved deck.RetrievedSet
	// OtherTitles names the remaining sections so the model can avoid their material.
	OtherTitles []string
	// Others holds content already produced for other sections.
	Others []string
	// Tone overrides the configured tone when set.
	Tone string
}

// Result is the synthesized content of one section.
type Result struct {
	SectionID string
	Items     []deck.ContentItem
	// Insufficient is set when nothing was retrieved and no call was made.
	Insufficient bool
	Degraded     bool
	Warning      *deck.SectionWarning
	Attempts     int
	Dropped      int
	Fabricated   int
}

// Synthesizer turns retrieved context into grounded content items.
type Synthesizer struct {
	llm  llm.Completer
	opts Options
}

// NewSynthesizer creates a Synthesizer. Zero option fields take their defaults.
func NewSynthesizer(completer llm.Completer, opts Options) *Synthesizer {
	def := DefaultOptions()
	if opts.Style != StyleParagraph {
		opts.Style = StyleBullets
	}
	if opts.Items <= 0 {
		opts.Items = def.Items
	}
	if opts.TargetWords <= 0 {
		opts.TargetWords = def.TargetWords
	}
	if opts.MinWords < 0 {
		opts.MinWords = 0
	}
	if opts.Tone == "" {
		opts.Tone = def.Tone
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.DuplicateThreshold <= 0 || opts.DuplicateThreshold > 1 {
		opts.DuplicateThreshold = def.DuplicateThreshold
	}
	if opts.DegradedPenalty < 0 || opts.DegradedPenalty > 1 {
		opts.DegradedPenalty = def.DegradedPenalty
	}
	if opts.Grounding.Policy == "" {
		opts.Grounding.Policy = grounding.PolicyDrop
	}
	if opts.Grounding.Weights == (grounding.Weights{}) {
		opts.Grounding.Weights = grounding.DefaultWeights()
	}
	return &Synthesizer{llm: completer, opts: opts}
}

// Options returns the effective options.
func (s *Synthesizer) Options() Options { return s.opts }

// Synthesize drafts, validates and checks content for one section. A failed
// quality check triggers one regeneration; content that still fails is
// accepted with reduced confidence and a warning. Model errors are returned.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (Result, error) {
	if len(req.Retrieved.Items) == 0 {
		contextutil.LoggerFromContext(ctx).InfoContext(ctx, "no context retrieved, skipping synthesis", "section_id", req.Section.ID)
		return Result{
			SectionID:    req.Section.ID,
			Items:        []deck.ContentItem{},
			Insufficient: true,
			Warning: &deck.SectionWarning{
				SectionID: req.Section.ID,
				Title:     req.Section.Title,
				Reason:    "no source material was relevant enough to use",
			},
		}, nil
	}

	first, err := s.attempt(ctx, req, "")
	if err != nil {
		return Result{}, err
	}
	return s.Revise(ctx, req, first)
}

// Revise re-checks prev against req, for example once the content of other
// sections is known. Passing content is returned unchanged. Failing content is
// regenerated once if prev used a single attempt, then degraded if it still fails.
func (s *Synthesizer) Revise(ctx context.Context, req Request, prev Result) (Result, error) {
	logger := contextutil.LoggerFromContext(ctx)
	if prev.Insufficient || prev.Degraded {
		return prev, nil
	}

	reason := s.check(prev.Items, req.Others)
	if reason == "" {
		return prev, nil
	}
	if prev.Attempts >= maxAttempts {
		return s.degrade(req, prev, reason), nil
	}

	logger.InfoContext(ctx, "regenerating section", "section_id", req.Section.ID, "reason", reason)
	next, err := s.attempt(ctx, req, reason)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		logger.WarnContext(ctx, "regeneration failed, keeping first draft", "section_id", req.Section.ID, "error", err)
		prev.Attempts++
		return s.degrade(req, prev, reason), nil
	}
	next.Attempts += prev.Attempts

	if again := s.check(next.Items, req.Others); again != "" {
		return s.degrade(req, next, again), nil
	}
	return next, nil
}

// attempt makes one model call and validates the output.
func (s *Synthesizer) attempt(ctx context.Context, req Request, retryReason string) (Result, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt()},
		{Role: llm.RoleUser, Content: userPrompt(req, s.opts, retryReason)},
	}
	raw, err := s.llm.ChatWithMessages(ctx, messages, llm.ChatParams{
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return Result{}, fmt.Errorf("synthesize section %s: %w", req.Section.ID, err)
	}

	var drafts []grounding.Draft
	if s.opts.Style == StyleParagraph {
		drafts = parseSentences(raw, req.Retrieved)
	} else {
		drafts = parseBullets(raw, req.Retrieved)
	}

	report := grounding.Validate(drafts, req.Retrieved, s.opts.Grounding)
	items := report.Items
	if s.opts.Style == StyleParagraph {
		items = mergeParagraph(items)
	} else {
		items = grounding.DedupeItems(items, s.opts.DuplicateThreshold)
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "section drafted",
		"section_id", req.Section.ID,
		"drafts", len(drafts),
		"items", len(items),
		"dropped", report.Dropped,
		"fabricated_citations", report.Fabricated,
	)

	return Result{
		SectionID:  req.Section.ID,
		Items:      items,
		Attempts:   1,
		Dropped:    report.Dropped,
		Fabricated: report.Fabricated,
	}, nil
}

// check returns why items fail the quality bar, or "" when they pass.
func (s *Synthesizer) check(items []deck.ContentItem, others []string) string {
	grounded := false
	for _, item := range items {
		if len(item.Provenance) > 0 {
			grounded = true
			break
		}
	}
	if !grounded {
		return "no statement could be tied to the source material"
	}
	if words := grounding.WordCount(items); words < s.opts.MinWords {
		return fmt.Sprintf("only %d words of content, expected at least %d", words, s.opts.MinWords)
	}
	text := grounding.JoinText(items)
	for _, other := range others {
		if grounding.NearDuplicate(text, other, s.opts.DuplicateThreshold) {
			return "content repeats another section"
		}
	}
	return ""
}

func (s *Synthesizer) degrade(req Request, res Result, reason string) Result {
	res.Items = grounding.Scale(res.Items, s.opts.DegradedPenalty)
	res.Degraded = true
	res.Warning = &deck.SectionWarning{SectionID: req.Section.ID, Title: req.Section.Title, Reason: reason}
	return res
}

// mergeParagraph joins validated sentences into one item. Provenance is the
// ordered union and confidence the mean of the sentences.
func mergeParagraph(items []deck.ContentItem) []deck.ContentItem {
	if len(items) == 0 {
		return []deck.ContentItem{}
	}
	texts := make([]string, 0, len(items))
	provenance := []string{}
	seen := make(map[string]bool)
	var sum float64
	for _, item := range items {
		texts = append(texts, item.Text)
		sum += item.Confidence
		for _, id := range item.Provenance {
			if !seen[id] {
				seen[id] = true
				provenance = append(provenance, id)
			}
		}
	}
	return []deck.ContentItem{{
		Text:       strings.Join(texts, " "),
		Provenance: provenance,
		Confidence: sum / float64(len(items)),
	}}
}
