package slides

import (
	"fmt"
	"strings"
	"time"

	"slidedeck-ai/internal/deck"
)

// Options configures assembly.
type Options struct {
	Media MediaPolicy `yaml:"media"`
}

// DefaultOptions returns media on every content slide.
func DefaultOptions() Options {
	return Options{Media: MediaAll}
}

// SectionContent is the synthesized content of one outline section.
type SectionContent struct {
	Section deck.OutlineSection
	Items   []deck.ContentItem
}

// Input is everything needed to assemble a deck.
type Input struct {
	Title     string
	SourcePDF string
	// Sections must be in outline order.
	Sections []SectionContent
	// ChunkIDs is the chunk set of the source document.
	ChunkIDs map[string]struct{}
	Metadata map[string]any
}

// Assembler builds decks.
type Assembler struct {
	opts Options
	now  func() time.Time
}

// NewAssembler creates an Assembler. An unknown media policy falls back to MediaAll.
func NewAssembler(opts Options) *Assembler {
	if !opts.Media.Valid() {
		opts.Media = MediaAll
	}
	return &Assembler{opts: opts, now: time.Now}
}

// Assemble builds the title slide and one content slide per section, then
// checks the deck invariants. Violations wrap deck.ErrAssemblyInvariant.
func (a *Assembler) Assemble(in Input) (deck.SlideDeck, error) {
	slides := make([]deck.Slide, 0, len(in.Sections)+1)
	slides = append(slides, titleSlide(in))

	for i, sc := range in.Sections {
		content := cloneItems(sc.Items)
		layout := SelectLayout(Shape{
			ContentCount: len(content),
			HasMedia:     a.opts.Media.HasMedia(i, len(content)),
		})
		slides = append(slides, deck.Slide{
			ID:      slideID(i + 1),
			Type:    deck.SlideTypeContent,
			Title:   strings.TrimSpace(sc.Section.Title),
			Content: content,
			Metadata: deck.SlideMetadata{
				SlideNumber: i + 2,
				Layout:      layout.Name,
				HasMedia:    layout.MediaSlots > 0,
				MediaSlots:  layout.MediaSlots,
			},
		})
	}

	metadata := make(map[string]any, len(in.Metadata)+1)
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	metadata["media_policy"] = string(a.opts.Media)

	d := deck.SlideDeck{
		Title:     strings.TrimSpace(in.Title),
		Slides:    slides,
		Metadata:  metadata,
		CreatedAt: deck.Timestamp(a.now()),
		SourcePDF: in.SourcePDF,
	}

	sections := make([]deck.OutlineSection, len(in.Sections))
	for i, sc := range in.Sections {
		sections[i] = sc.Section
	}
	if err := CheckInvariants(d, sections, in.ChunkIDs); err != nil {
		return deck.SlideDeck{}, err
	}
	return d, nil
}

func titleSlide(in Input) deck.Slide {
	content := []deck.ContentItem{}
	if len(in.Sections) > 0 && len(in.Sections[0].Items) > 0 {
		content = cloneItems(in.Sections[0].Items[:1])
	}
	layout := SelectLayout(Shape{ContentCount: len(content), IsFirst: true})
	return deck.Slide{
		ID:      slideID(0),
		Type:    deck.SlideTypeTitle,
		Title:   strings.TrimSpace(in.Title),
		Content: content,
		Metadata: deck.SlideMetadata{
			SlideNumber: 1,
			Layout:      layout.Name,
			IsTitle:     true,
		},
	}
}

// CheckInvariants verifies the structural guarantees of an assembled deck.
// A nil chunkIDs skips the provenance check.
func CheckInvariants(d deck.SlideDeck, sections []deck.OutlineSection, chunkIDs map[string]struct{}) error {
	if len(d.Slides) != len(sections)+1 {
		return invariantf("deck has %d slides for %d sections", len(d.Slides), len(sections))
	}

	first := d.Slides[0]
	if first.Type != deck.SlideTypeTitle || !first.Metadata.IsTitle || first.Metadata.HasMedia {
		return invariantf("first slide is not a title slide")
	}

	for i, s := range d.Slides {
		if strings.TrimSpace(s.Title) == "" {
			return invariantf("slide %d has an empty title", i+1)
		}
		if s.Metadata.SlideNumber != i+1 {
			return invariantf("slide %d is numbered %d", i+1, s.Metadata.SlideNumber)
		}
		if i > 0 {
			if s.Type != deck.SlideTypeContent || s.Metadata.IsTitle {
				return invariantf("slide %d is not a content slide", i+1)
			}
			if want := strings.TrimSpace(sections[i-1].Title); s.Title != want {
				return invariantf("slide %d is %q, outline order expects %q", i+1, s.Title, want)
			}
		}
		for _, item := range s.Content {
			if item.Confidence < 0 || item.Confidence > 1 {
				return invariantf("slide %d has confidence %v outside [0,1]", i+1, item.Confidence)
			}
			if chunkIDs == nil {
				continue
			}
			for _, id := range item.Provenance {
				if _, ok := chunkIDs[id]; !ok {
					return invariantf("slide %d cites unknown chunk %s", i+1, id)
				}
			}
		}
	}
	return nil
}

func invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", deck.ErrAssemblyInvariant, fmt.Sprintf(format, args...))
}

func slideID(n int) string {
	return fmt.Sprintf("slide_%d", n)
}

func cloneItems(items []deck.ContentItem) []deck.ContentItem {
	out := make([]deck.ContentItem, len(items))
	for i, item := range items {
		prov := make([]string, len(item.Provenance))
		copy(prov, item.Provenance)
		item.Provenance = prov
		out[i] = item
	}
	return out
}
