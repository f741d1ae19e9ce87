package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/service"
	"slidedeck-ai/internal/slides"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <deck-id|latest|deck.json>",
		Short: "Show slide statistics of a stored deck or a deck JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if strings.HasSuffix(strings.ToLower(args[0]), ".json") {
				d, err := readDeckFile(args[0])
				if err != nil {
					return err
				}
				printStats(cmd.OutOrStdout(), d.Title, slides.Statistics(d))
				return nil
			}

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := a.DeckService("")
			var stored service.StoredDeck
			if args[0] == "latest" {
				stored, err = svc.Latest(ctx)
			} else {
				stored, err = svc.GetDeck(ctx, args[0])
			}
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stored.Deck.Title, slides.Statistics(stored.Deck))
			return nil
		},
	}
}

func readDeckFile(path string) (deck.SlideDeck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return deck.SlideDeck{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var d deck.SlideDeck
	if err := json.Unmarshal(data, &d); err != nil {
		return deck.SlideDeck{}, fmt.Errorf("%s is not a deck file: %w", path, err)
	}
	return d, nil
}

func printStats(w io.Writer, title string, s slides.DeckStats) {
	fmt.Fprintf(w, "%s\n", title)
	fmt.Fprintf(w, "  slides:              %d (%d title, %d content)\n", s.TotalSlides, s.TitleSlides, s.ContentSlides)
	fmt.Fprintf(w, "  bullets:             %d\n", s.TotalBullets)
	fmt.Fprintf(w, "  slides with sources: %d\n", s.SlidesWithProvenance)
	fmt.Fprintf(w, "  bullets per slide:   %.2f\n", s.AverageBulletsPerSlide)
}
