package slides

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidedeck-ai/internal/deck"
)

func TestStatistics(t *testing.T) {
	d, err := fixedAssembler(DefaultOptions()).Assemble(testInput())
	require.NoError(t, err)

	// Title slide carries the first item as its subtitle; "Gaps" has no items.
	assert.Equal(t, DeckStats{
		TotalSlides:            4,
		ContentSlides:          3,
		TitleSlides:            1,
		TotalBullets:           4,
		SlidesWithProvenance:   3,
		AverageBulletsPerSlide: 1,
	}, Statistics(d))
}

func TestStatistics_UncitedAndEmpty(t *testing.T) {
	assert.Equal(t, DeckStats{}, Statistics(deck.SlideDeck{}))

	d := deck.SlideDeck{Slides: []deck.Slide{
		{Type: deck.SlideTypeTitle, Title: "T"},
		{Type: deck.SlideTypeContent, Title: "A", Content: []deck.ContentItem{{Text: "uncited"}, {Text: "also uncited", Provenance: []string{}}}},
		{Type: deck.SlideTypeContent, Title: "B", Content: []deck.ContentItem{{Text: "x", Provenance: []string{"c1"}}, {Text: "y", Provenance: []string{"c2"}}, {Text: "z"}}},
	}}
	got := Statistics(d)
	assert.Equal(t, 5, got.TotalBullets)
	assert.Equal(t, 1, got.SlidesWithProvenance)
	assert.InDelta(t, 5.0/3.0, got.AverageBulletsPerSlide, 1e-9)
}
