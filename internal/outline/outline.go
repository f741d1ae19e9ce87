// Package outline plans the deck: a single global pass over a document
// sample that yields the ordered list of sections.
package outline

import (
	"context"
	"fmt"
	"strings"

	"slidedeck-ai/internal/contextutil"
	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/llm"
)

// Options bound the generated outline.
type Options struct {
	MinSections int `yaml:"min_sections"`
	MaxSections int `yaml:"max_sections"`
	// MaxAttempts counts every model call, the first one included.
	MaxAttempts int `yaml:"max_attempts"`
	// SampleChars is the rune budget of the document sample sent to the model.
	SampleChars int `yaml:"sample_chars"`
	MaxTokens   int `yaml:"max_tokens"`
}

// DefaultOptions returns the default outline bounds.
func DefaultOptions() Options {
	return Options{MinSections: 3, MaxSections: 8, MaxAttempts: 3, SampleChars: 12000, MaxTokens: 1024}
}

// Generator produces outlines with a language model.
type Generator struct {
	llm  llm.Completer
	opts Options
}

// NewGenerator creates a Generator. Zero option fields take their defaults.
func NewGenerator(completer llm.Completer, opts Options) *Generator {
	def := DefaultOptions()
	if opts.MinSections <= 0 {
		opts.MinSections = def.MinSections
	}
	if opts.MaxSections < opts.MinSections {
		opts.MaxSections = max(def.MaxSections, opts.MinSections)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.SampleChars <= 0 {
		opts.SampleChars = def.SampleChars
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	return &Generator{llm: completer, opts: opts}
}

// Options returns the effective options.
func (g *Generator) Options() Options { return g.opts }

// Generate asks the model for an outline of the document. Malformed answers
// are retried with a stricter instruction; once MaxAttempts calls have failed
// the error wraps deck.ErrOutlineGenerationFailed.
func (g *Generator) Generate(ctx context.Context, title string, chunks []deck.Chunk) ([]deck.OutlineSection, error) {
	logger := contextutil.LoggerFromContext(ctx)

	sample := Sample(chunks, g.opts.SampleChars)
	if strings.TrimSpace(sample) == "" {
		return nil, fmt.Errorf("%w: document has no text", deck.ErrOutlineGenerationFailed)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: g.systemPrompt()},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Document title: %s\n\nDocument excerpts:\n\n%s", title, sample)},
	}
	params := llm.ChatParams{MaxTokens: g.opts.MaxTokens, JSON: true}

	var lastErr error
	for attempt := 1; attempt <= g.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			messages = append(messages[:2:2], llm.Message{Role: llm.RoleUser, Content: retryInstruction(lastErr, g.opts)})
		}

		raw, err := g.llm.ChatWithMessages(ctx, messages, params)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("model call failed: %w", err)
			logger.WarnContext(ctx, "outline attempt failed", "attempt", attempt, "error", lastErr)
			continue
		}

		sections, err := Parse(raw, g.opts)
		if err != nil {
			lastErr = err
			logger.WarnContext(ctx, "outline attempt malformed", "attempt", attempt, "error", err)
			continue
		}

		logger.InfoContext(ctx, "outline generated", "sections", len(sections), "attempts", attempt)
		return sections, nil
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", deck.ErrOutlineGenerationFailed, g.opts.MaxAttempts, lastErr)
}

func (g *Generator) systemPrompt() string {
	return fmt.Sprintf(`You plan slide decks from long documents.
Read the excerpts and propose between %d and %d sections that follow the document's own narrative.
Each section needs a short slide title and a one or two sentence intent describing what the slide should convey.
Titles must be distinct.
Respond with JSON only, in exactly this shape:
{"sections":[{"title":"...","intent":"..."}]}`, g.opts.MinSections, g.opts.MaxSections)
}

func retryInstruction(prev error, opts Options) string {
	reason := "unknown error"
	if prev != nil {
		reason = prev.Error()
	}
	return fmt.Sprintf(`Your previous answer could not be used: %s.
Respond again with ONLY a JSON object, no prose and no code fences, of the form
{"sections":[{"title":"...","intent":"..."}]}
with between %d and %d sections, each with a non-empty distinct title.`, reason, opts.MinSections, opts.MaxSections)
}

// ValidateSections checks a user-edited outline and returns it in canonical
// form: sorted by order, titles trimmed and IDs assigned from the order.
func ValidateSections(sections []deck.OutlineSection, opts Options) ([]deck.OutlineSection, error) {
	if len(sections) < opts.MinSections || (opts.MaxSections > 0 && len(sections) > opts.MaxSections) {
		return nil, &deck.ConfigError{Field: "sections", Message: fmt.Sprintf("expected between %d and %d sections, got %d", opts.MinSections, opts.MaxSections, len(sections))}
	}

	out := make([]deck.OutlineSection, len(sections))
	seenOrder := make(map[int]bool, len(sections))
	seenTitle := make(map[string]bool, len(sections))
	for _, s := range sections {
		if s.Order < 0 || s.Order >= len(sections) || seenOrder[s.Order] {
			return nil, &deck.ConfigError{Field: "sections", Message: fmt.Sprintf("order must be contiguous from 0, got %d", s.Order)}
		}
		seenOrder[s.Order] = true

		s.Title = strings.TrimSpace(s.Title)
		if s.Title == "" {
			return nil, &deck.ConfigError{Field: "sections", Message: fmt.Sprintf("section %d has an empty title", s.Order)}
		}
		key := strings.ToLower(s.Title)
		if seenTitle[key] {
			return nil, &deck.ConfigError{Field: "sections", Message: fmt.Sprintf("duplicate title %q", s.Title)}
		}
		seenTitle[key] = true

		s.Intent = strings.TrimSpace(s.Intent)
		s.ID = SectionID(s.Order)
		out[s.Order] = s
	}
	return out, nil
}

// SectionID returns the identifier of the section at order.
func SectionID(order int) string {
	return fmt.Sprintf("section_%d", order+1)
}
