package main

import (
	"github.com/spf13/cobra"

	"slidedeck-ai/internal/service"
)

func regenerateCmd() *cobra.Command {
	var outlinePath string
	var narrativePath string
	var tone string
	var out string

	cmd := &cobra.Command{
		Use:   "regenerate <document-id>",
		Short: "Build a new deck for an indexed document from an edited outline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sections, err := readOutline(outlinePath)
			if err != nil {
				return err
			}
			narrative, err := readOptional(narrativePath)
			if err != nil {
				return err
			}
			if out == "" {
				out = a.Config.OutputDir
			}

			resp, err := a.DeckService(out).Regenerate(ctx, service.RegenerateRequest{
				DocumentID: args[0],
				Sections:   sections,
				Narrative:  narrative,
				Tone:       tone,
			})
			if err != nil {
				return err
			}
			printDeckSummary(cmd.OutOrStdout(), cmd.ErrOrStderr(), resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&outlinePath, "outline", "", "outline JSON written by the outline command")
	cmd.Flags().StringVar(&narrativePath, "narrative", "", "markdown file with per-section directions")
	cmd.Flags().StringVar(&tone, "tone", "", "tone of the slide text")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory for deck JSON (default from OUTPUT_DIR)")
	_ = cmd.MarkFlagRequired("outline")
	return cmd
}
