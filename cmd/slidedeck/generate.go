package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/service"
)

// chunkFlags are the chunking overrides shared by generate, outline and batch.
type chunkFlags struct {
	chunkSize int
	overlap   int
	maxChunks int
}

func (f *chunkFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.chunkSize, "chunk-size", 0, "characters per chunk (default from CHUNK_SIZE)")
	cmd.Flags().IntVar(&f.overlap, "overlap", 0, "characters shared by consecutive chunks (default from CHUNK_OVERLAP)")
	cmd.Flags().IntVar(&f.maxChunks, "max-chunks", 0, "maximum number of chunks, 0 for no cap (default from MAX_CHUNKS)")
}

// params applies the flags the user set over defaults.
func (f *chunkFlags) params(cmd *cobra.Command, defaults deck.ChunkParams) deck.ChunkParams {
	p := defaults
	if cmd.Flags().Changed("chunk-size") {
		p.ChunkSize = f.chunkSize
	}
	if cmd.Flags().Changed("overlap") {
		p.Overlap = f.overlap
	}
	if cmd.Flags().Changed("max-chunks") {
		p.MaxChunks = f.maxChunks
	}
	return p
}

func generateCmd() *cobra.Command {
	var chunks chunkFlags
	var narrativePath string
	var tone string
	var out string

	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Generate a slide deck from a PDF, text or markdown file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			narrative, err := readOptional(narrativePath)
			if err != nil {
				return err
			}
			if out == "" {
				out = a.Config.OutputDir
			}

			resp, err := generateFile(cmd, a.DeckService(out), args[0], service.SourceRequest{
				Params:    chunks.params(cmd, a.Config.ChunkParams),
				Narrative: narrative,
				Tone:      tone,
			})
			if err != nil {
				return err
			}
			printDeckSummary(cmd.OutOrStdout(), cmd.ErrOrStderr(), resp)
			return nil
		},
	}
	chunks.register(cmd)
	cmd.Flags().StringVar(&narrativePath, "narrative", "", "markdown file with per-section directions")
	cmd.Flags().StringVar(&tone, "tone", "", "tone of the slide text, e.g. professional or conversational")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory for deck JSON (default from OUTPUT_DIR)")
	return cmd
}

// generateFile opens path and runs it through svc.Generate.
func generateFile(cmd *cobra.Command, svc service.DeckService, path string, req service.SourceRequest) (service.DeckResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return service.DeckResponse{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return service.DeckResponse{}, err
	}

	req.FileName = filepath.Base(path)
	req.File = f
	req.Size = info.Size()
	return svc.Generate(cmd.Context(), req)
}

func printDeckSummary(stdout, stderr io.Writer, resp service.DeckResponse) {
	fmt.Fprintf(stdout, "%s: %d slides, deck %s, document %s\n", resp.Deck.Title, len(resp.Deck.Slides), resp.DeckID, resp.DocumentID)
	if resp.OutputPath != "" {
		fmt.Fprintf(stdout, "written to %s\n", resp.OutputPath)
	}
	for _, w := range resp.Warnings {
		fmt.Fprintln(stderr, "warning:", w.Message())
	}
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
