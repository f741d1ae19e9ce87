package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/service"
)

// outlineFile is the editable outline format read by regenerate.
type outlineFile struct {
	DocumentID string                `json:"document_id"`
	Title      string                `json:"title"`
	Sections   []deck.OutlineSection `json:"sections"`
}

func outlineCmd() *cobra.Command {
	var chunks chunkFlags
	var save string

	cmd := &cobra.Command{
		Use:   "outline <file>",
		Short: "Index a document and print its outline and narrative for editing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}

			resp, err := a.DeckService("").Outline(ctx, service.SourceRequest{
				FileName: filepath.Base(args[0]),
				File:     f,
				Size:     info.Size(),
				Params:   chunks.params(cmd, a.Config.ChunkParams),
			})
			if err != nil {
				return err
			}

			body, err := json.MarshalIndent(outlineFile{
				DocumentID: resp.DocumentID,
				Title:      resp.Title,
				Sections:   resp.Sections,
			}, "", "  ")
			if err != nil {
				return err
			}
			if save != "" {
				if err := os.WriteFile(save, body, 0644); err != nil {
					return fmt.Errorf("failed to write outline: %w", err)
				}
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, string(body))
			fmt.Fprintln(w)
			fmt.Fprint(w, resp.Narrative)
			return nil
		},
	}
	chunks.register(cmd)
	cmd.Flags().StringVar(&save, "save", "", "also write the outline JSON to this file")
	return cmd
}

// readOutline reads an outline file. Both the outlineFile object and a bare
// array of sections are accepted.
func readOutline(path string) ([]deck.OutlineSection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read outline: %w", err)
	}

	var sections []deck.OutlineSection
	if err := json.Unmarshal(data, &sections); err == nil {
		return sections, nil
	}
	var file outlineFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse outline %s: %w", path, err)
	}
	return file.Sections, nil
}
