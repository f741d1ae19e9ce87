package ingest

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"rsc.io/pdf"
)

// extractPDF returns the text of every page and the Info dictionary title.
func extractPDF(ctx context.Context, r io.ReaderAt, size int64) (pages []string, title string, err error) {
	// rsc.io/pdf panics on some malformed input.
	defer func() {
		if p := recover(); p != nil {
			pages, title, err = nil, "", fmt.Errorf("malformed pdf: %v", p)
		}
	}()

	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open pdf: %w", err)
	}

	title = doc.Trailer().Key("Info").Key("Title").Text()

	n := doc.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, pageText(page.Content().Text))
	}
	return pages, title, nil
}

// pageText joins positioned glyphs into lines. A change in baseline starts a
// new line and a horizontal gap inserts a space.
func pageText(texts []pdf.Text) string {
	var b strings.Builder
	var prev *pdf.Text
	for i := range texts {
		t := &texts[i]
		if prev != nil {
			lineHeight := math.Max(prev.FontSize, 1)
			switch {
			case math.Abs(t.Y-prev.Y) > lineHeight*0.5:
				b.WriteByte('\n')
			case t.X-(prev.X+prev.W) > lineHeight*0.25 && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(t.S, " "):
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
		prev = t
	}
	return b.String()
}
