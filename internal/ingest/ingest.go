// Package ingest extracts document text from PDF, plain text and markdown files.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"slidedeck-ai/internal/contextutil"
	"slidedeck-ai/internal/deck"
)

// MaxFileSize bounds the size of a single source file.
const MaxFileSize = 64 << 20

var (
	// ErrUnsupportedFormat is returned for file types that cannot be extracted.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrNoText is returned when a file yields no extractable text.
	ErrNoText = errors.New("document has no extractable text")
	// ErrTooLarge is returned for files over MaxFileSize.
	ErrTooLarge = errors.New("file too large")
)

var extractors = map[string]func(ctx context.Context, r io.ReaderAt, size int64) (pages []string, title string, err error){
	".pdf":      extractPDF,
	".txt":      extractText,
	".md":       extractMarkdown,
	".markdown": extractMarkdown,
}

// Supported reports whether name has an extractable file extension.
func Supported(name string) bool {
	_, ok := extractors[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Extract reads the document in r. The title comes from the file metadata
// or first heading when present, otherwise from the file name.
func Extract(ctx context.Context, name string, r io.ReaderAt, size int64) (deck.Document, error) {
	extract, ok := extractors[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return deck.Document{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
	if size > MaxFileSize {
		return deck.Document{}, fmt.Errorf("%w: %d bytes, limit is %d", ErrTooLarge, size, MaxFileSize)
	}

	pages, title, err := extract(ctx, r, size)
	if err != nil {
		return deck.Document{}, fmt.Errorf("failed to extract %s: %w", filepath.Base(name), err)
	}

	text, breaks := joinPages(pages)
	if strings.TrimSpace(text) == "" {
		return deck.Document{}, fmt.Errorf("%w: %s", ErrNoText, filepath.Base(name))
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = deck.DisplayTitle(deck.TitleFromName(name))
	}

	doc := deck.Document{
		ID:         deck.DocumentIdentity(text),
		Name:       filepath.Base(name),
		Title:      title,
		Text:       text,
		PageBreaks: breaks,
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "document extracted",
		"document_id", doc.ID,
		"name", doc.Name,
		"pages", len(pages),
		"runes", utf8.RuneCountInString(text),
	)
	return doc, nil
}

// ExtractFile opens and extracts the file at path.
func ExtractFile(ctx context.Context, path string) (deck.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return deck.Document{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return deck.Document{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return Extract(ctx, path, f, info.Size())
}

// pageSeparator is inserted between pages so page text never runs together.
const pageSeparator = "\n\n"

// joinPages concatenates pages and returns the rune offsets at which pages
// 2..n begin.
func joinPages(pages []string) (string, []int) {
	var b strings.Builder
	breaks := make([]int, 0, max(len(pages)-1, 0))
	offset := 0
	for i, p := range pages {
		p = strings.TrimRight(normalizeNewlines(p), " \t\n")
		if i > 0 {
			b.WriteString(pageSeparator)
			offset += len(pageSeparator)
			breaks = append(breaks, offset)
		}
		b.WriteString(p)
		offset += utf8.RuneCountInString(p)
	}
	return b.String(), breaks
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func readAll(r io.ReaderAt, size int64) ([]byte, error) {
	buf := make([]byte, size)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// extractText reads UTF-8 text. Form feeds separate pages.
func extractText(_ context.Context, r io.ReaderAt, size int64) ([]string, string, error) {
	data, err := readAll(r, size)
	if err != nil {
		return nil, "", err
	}
	text := string(bytes.TrimPrefix(data, []byte("\ufeff")))
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\ufffd")
	}
	return strings.Split(text, "\f"), "", nil
}

// extractMarkdown reads markdown as text and takes the first level 1 heading as title.
func extractMarkdown(ctx context.Context, r io.ReaderAt, size int64) ([]string, string, error) {
	pages, _, err := extractText(ctx, r, size)
	if err != nil {
		return nil, "", err
	}
	for _, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
				return pages, strings.TrimSpace(rest), nil
			}
		}
	}
	return pages, "", nil
}
