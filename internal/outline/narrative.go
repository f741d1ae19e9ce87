package outline

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"slidedeck-ai/internal/deck"
)

// maxNarrativeHeadingLevel is the deepest heading that opens a narrative block.
const maxNarrativeHeadingLevel = 3

// NarrativeBlock is the markdown under one heading of a narrative.
type NarrativeBlock struct {
	Heading string
	Level   int
	Body    string
}

// Narrative is a parsed markdown narrative.
type Narrative struct {
	// Preamble is the text before the first heading.
	Preamble string
	Blocks   []NarrativeBlock
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// ParseNarrative splits markdown into heading blocks. Only top-level headings
// up to level 3 open a block, so headings inside code, lists or quotes stay
// part of the surrounding body.
func ParseNarrative(source string) Narrative {
	content := []byte(source)
	doc := markdown.Parser().Parse(text.NewReader(content))

	type mark struct {
		heading   string
		level     int
		lineStart int
		bodyStart int
	}
	var marks []mark
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level > maxNarrativeHeadingLevel || h.Lines().Len() == 0 {
			continue
		}
		first := h.Lines().At(0)
		last := h.Lines().At(h.Lines().Len() - 1)
		start := lineStart(content, first.Start)
		end := lineEnd(content, max(last.Stop-1, first.Start))
		if !bytes.HasPrefix(bytes.TrimLeft(content[start:end], " "), []byte("#")) {
			// setext heading: the underline follows the text
			end = lineEnd(content, end)
		}
		marks = append(marks, mark{
			heading:   strings.TrimSpace(nodeText(h, content)),
			level:     h.Level,
			lineStart: start,
			bodyStart: end,
		})
	}

	if len(marks) == 0 {
		return Narrative{Preamble: strings.TrimSpace(source)}
	}

	out := Narrative{Preamble: strings.TrimSpace(string(content[:marks[0].lineStart]))}
	for i, m := range marks {
		stop := len(content)
		if i+1 < len(marks) {
			stop = marks[i+1].lineStart
		}
		body := ""
		if m.bodyStart < stop {
			body = strings.TrimSpace(string(content[m.bodyStart:stop]))
		}
		out.Blocks = append(out.Blocks, NarrativeBlock{Heading: m.heading, Level: m.level, Body: body})
	}
	return out
}

// ApplyNarrative attaches narrative directions to sections. A block whose
// heading matches a section title becomes that section's narrative. When no
// heading matches, the whole narrative directs every section; otherwise
// unmatched sections receive the preamble.
func ApplyNarrative(sections []deck.OutlineSection, source string) []deck.OutlineSection {
	out := make([]deck.OutlineSection, len(sections))
	copy(out, sections)
	if strings.TrimSpace(source) == "" {
		return out
	}

	parsed := ParseNarrative(source)
	byHeading := make(map[string]string, len(parsed.Blocks))
	for _, b := range parsed.Blocks {
		key := headingKey(b.Heading)
		if _, dup := byHeading[key]; !dup {
			byHeading[key] = b.Body
		}
	}

	matched := make([]bool, len(out))
	matchedAny := false
	for i, s := range out {
		if body, ok := byHeading[headingKey(s.Title)]; ok {
			out[i].Narrative = body
			matched[i] = true
			matchedAny = true
		}
	}

	if !matchedAny {
		whole := strings.TrimSpace(source)
		for i := range out {
			out[i].Narrative = whole
		}
		return out
	}
	for i := range out {
		if !matched[i] && parsed.Preamble != "" {
			out[i].Narrative = parsed.Preamble
		}
	}
	return out
}

// RenderNarrative renders an outline as editable markdown: the deck title as
// a level 1 heading and one level 2 block per section.
func RenderNarrative(title string, sections []deck.OutlineSection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", strings.TrimSpace(title))
	for _, s := range sections {
		fmt.Fprintf(&b, "\n## %s\n", s.Title)
		if d := strings.TrimSpace(s.Direction()); d != "" {
			fmt.Fprintf(&b, "\n%s\n", d)
		}
	}
	return b.String()
}

func headingKey(s string) string {
	s = leadingNumber.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// nodeText extracts plain text from a node and its children.
func nodeText(node ast.Node, content []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Text:
			buf.Write(v.Segment.Value(content))
			if v.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func lineStart(content []byte, pos int) int {
	if pos > len(content) {
		pos = len(content)
	}
	return bytes.LastIndexByte(content[:pos], '\n') + 1
}

// lineEnd returns the offset just past the newline ending the line at pos.
func lineEnd(content []byte, pos int) int {
	if pos >= len(content) {
		return len(content)
	}
	if i := bytes.IndexByte(content[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(content)
}
