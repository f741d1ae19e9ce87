package slides

import "slidedeck-ai/internal/deck"

// DeckStats summarizes the slides of a deck.
//
// swagger:model DeckStats
type DeckStats struct {
	TotalSlides          int `json:"total_slides"`
	ContentSlides        int `json:"content_slides"`
	TitleSlides          int `json:"title_slides"`
	TotalBullets         int `json:"total_bullets"`
	SlidesWithProvenance int `json:"slides_with_provenance"`
	// AverageBulletsPerSlide counts the title slide as a slide.
	AverageBulletsPerSlide float64 `json:"average_bullets_per_slide"`
}

// Statistics counts slides by type, content items, and slides with at least
// one cited item.
func Statistics(d deck.SlideDeck) DeckStats {
	var s DeckStats
	s.TotalSlides = len(d.Slides)
	for _, slide := range d.Slides {
		switch slide.Type {
		case deck.SlideTypeTitle:
			s.TitleSlides++
		case deck.SlideTypeContent:
			s.ContentSlides++
		}
		s.TotalBullets += len(slide.Content)
		for _, item := range slide.Content {
			if len(item.Provenance) > 0 {
				s.SlidesWithProvenance++
				break
			}
		}
	}
	if s.TotalSlides > 0 {
		s.AverageBulletsPerSlide = float64(s.TotalBullets) / float64(s.TotalSlides)
	}
	return s
}
