package synthesis

import (
	"fmt"
	"strings"

	"slidedeck-ai/internal/deck"
)

func systemPrompt() string {
	return `You write slide content strictly from the numbered sources you are given.
Every statement must be supported by at least one source and must cite it with its label, for example [S2] or [S1][S3].
Never cite a label that was not provided and never add facts that are not in the sources.`
}

// sourceLabel returns the citation label of the source at index i.
func sourceLabel(i int) string {
	return fmt.Sprintf("S%d", i+1)
}

func userPrompt(req Request, opts Options, retryReason string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Slide title: %s\n", req.Section.Title)
	if d := strings.TrimSpace(req.Section.Direction()); d != "" {
		fmt.Fprintf(&b, "Direction: %s\n", d)
	}
	tone := req.Tone
	if tone == "" {
		tone = opts.Tone
	}
	fmt.Fprintf(&b, "Tone: %s\n", tone)
	if len(req.OtherTitles) > 0 {
		fmt.Fprintf(&b, "Other slides in this deck: %s\n", strings.Join(req.OtherTitles, "; "))
	}
	b.WriteString("Do not repeat material belonging to other sections.\n\n")

	b.WriteString("Sources:\n")
	for i, item := range req.Retrieved.Items {
		fmt.Fprintf(&b, "\n[%s] (pages %d-%d)\n%s\n", sourceLabel(i), item.PageRange.First, item.PageRange.Last, strings.TrimSpace(item.Text))
	}
	b.WriteString("\n")

	switch opts.Style {
	case StyleParagraph:
		fmt.Fprintf(&b, "Write one paragraph of about %d words. End every sentence with the labels of the sources it uses.\n", opts.TargetWords)
	default:
		fmt.Fprintf(&b, "Write %d bullet points, about %d words in total. Put each bullet on its own line starting with \"- \" and end it with the labels of the sources it uses.\n", opts.Items, opts.TargetWords)
	}
	b.WriteString("Output only the content, with no heading or commentary.\n")

	if retryReason != "" {
		fmt.Fprintf(&b, "\nYour previous answer was rejected: %s. Follow the instructions exactly, use only the sources above and cite every statement.\n", retryReason)
	}
	return b.String()
}

// resolveLabel maps a citation label to a chunk ID. Unknown labels are
// returned unchanged so validation can reject them.
func resolveLabel(label string, set deck.RetrievedSet) string {
	upper := strings.ToUpper(label)
	for i, item := range set.Items {
		if sourceLabel(i) == upper {
			return item.ChunkID
		}
	}
	return label
}
