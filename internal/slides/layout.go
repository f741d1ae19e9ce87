// Package slides turns synthesized sections into an ordered slide deck.
package slides

// Layout names.
const (
	LayoutTitle                           = "title"
	LayoutSectionHeader                   = "section-header"
	LayoutKeyStatement                    = "key-statement"
	LayoutTwoColDescription               = "two-col-description"
	LayoutThreePoints                     = "three-points"
	LayoutFourPointsGrid                  = "four-points-grid"
	LayoutFourPointsGridBelow             = "four-points-grid-below"
	LayoutSixPoints                       = "six-points"
	LayoutMediaDescriptionBelow           = "media-description-below"
	LayoutTwoMediaDescription             = "two-media-description"
	LayoutHeadingDescriptionMediaRight    = "heading-description-media-right"
	LayoutHeadingFourPointsMediaLeft      = "heading-four-points-media-left"
	LayoutHeadingTwoMediaDescriptionBelow = "heading-two-media-description-below"
)

// Shape is everything the layout decision may look at.
type Shape struct {
	ContentCount int
	HasMedia     bool
	IsFirst      bool
}

// Layout is a named slide arrangement and the media slots it reserves.
type Layout struct {
	Name       string
	MediaSlots int
}

var textLayouts = []string{
	LayoutSectionHeader,
	LayoutKeyStatement,
	LayoutTwoColDescription,
	LayoutThreePoints,
	LayoutFourPointsGrid,
	LayoutFourPointsGridBelow,
	LayoutSixPoints,
}

var mediaLayouts = []Layout{
	{Name: LayoutMediaDescriptionBelow, MediaSlots: 1},
	{Name: LayoutTwoMediaDescription, MediaSlots: 2},
	{Name: LayoutHeadingDescriptionMediaRight, MediaSlots: 1},
	{Name: LayoutHeadingFourPointsMediaLeft, MediaSlots: 1},
	{Name: LayoutHeadingTwoMediaDescriptionBelow, MediaSlots: 2},
}

// SelectLayout picks the layout for a slide shape.
func SelectLayout(s Shape) Layout {
	if s.IsFirst {
		return Layout{Name: LayoutTitle}
	}
	n := max(s.ContentCount, 0)
	if s.HasMedia && n > 0 {
		return mediaLayouts[min(n, len(mediaLayouts))-1]
	}
	return Layout{Name: textLayouts[min(n, len(textLayouts)-1)]}
}

// MediaPolicy decides which content slides carry media.
type MediaPolicy string

const (
	MediaNone      MediaPolicy = "none"
	MediaAll       MediaPolicy = "all"
	MediaAlternate MediaPolicy = "alternate"
)

// HasMedia reports whether the content slide at index (0-based, title slide
// excluded) with contentCount items carries media.
func (p MediaPolicy) HasMedia(index, contentCount int) bool {
	if contentCount <= 0 {
		return false
	}
	switch p {
	case MediaNone:
		return false
	case MediaAlternate:
		return index%2 == 0
	default:
		return true
	}
}

// Valid reports whether p is a known policy.
func (p MediaPolicy) Valid() bool {
	switch p {
	case MediaNone, MediaAll, MediaAlternate:
		return true
	}
	return false
}
