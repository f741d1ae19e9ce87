package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"slidedeck-ai/internal/ingest"
	"slidedeck-ai/internal/service"
)

func batchCmd() *cobra.Command {
	var chunks chunkFlags
	var tone string
	var out string

	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Generate a deck for every supported file in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			files, err := ingest.Scan(ctx, args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no supported files in %s", args[0])
			}
			if out == "" {
				out = a.Config.OutputDir
			}

			svc := a.DeckService(out)
			params := chunks.params(cmd, a.Config.ChunkParams)
			var failed int
			for _, path := range files {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				resp, err := generateFile(cmd, svc, path, service.SourceRequest{Params: params, Tone: tone})
				if err != nil {
					failed++
					slog.ErrorContext(ctx, "deck generation failed", "file", path, "error", err)
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					continue
				}
				printDeckSummary(cmd.OutOrStdout(), cmd.ErrOrStderr(), resp)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d documents converted\n", len(files)-failed, len(files))
			if failed > 0 {
				return fmt.Errorf("%d documents failed", failed)
			}
			return nil
		},
	}
	chunks.register(cmd)
	cmd.Flags().StringVar(&tone, "tone", "", "tone of the slide text")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory for deck JSON (default from OUTPUT_DIR)")
	return cmd
}
