package outline

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"slidedeck-ai/internal/deck"
)

var errMalformed = errors.New("malformed outline")

var leadingNumber = regexp.MustCompile(`^(?:\d+[.):]|[-*•])\s*`)

type rawSection struct {
	Title             string `json:"title"`
	Intent            string `json:"intent"`
	IntentDescription string `json:"intent_description"`
	Description       string `json:"description"`
}

func (r rawSection) intent() string {
	for _, s := range []string{r.Intent, r.IntentDescription, r.Description} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Parse extracts and normalizes an outline from model output. It accepts
// {"sections":[...]} or a bare array, with or without surrounding prose or
// code fences.
func Parse(raw string, opts Options) ([]deck.OutlineSection, error) {
	items, err := decode(raw)
	if err != nil {
		return nil, err
	}
	return normalize(items, opts)
}

func decode(raw string) ([]rawSection, error) {
	s := strings.TrimSpace(stripFences(raw))
	obj := strings.IndexByte(s, '{')
	arr := strings.IndexByte(s, '[')

	switch {
	case obj >= 0 && (arr < 0 || obj < arr):
		end := strings.LastIndexByte(s, '}')
		if end < obj {
			return nil, fmt.Errorf("%w: unterminated JSON object", errMalformed)
		}
		var wrapper struct {
			Sections []rawSection `json:"sections"`
		}
		if err := json.Unmarshal([]byte(s[obj:end+1]), &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}
		if wrapper.Sections == nil {
			return nil, fmt.Errorf("%w: missing \"sections\" array", errMalformed)
		}
		return wrapper.Sections, nil

	case arr >= 0:
		end := strings.LastIndexByte(s, ']')
		if end < arr {
			return nil, fmt.Errorf("%w: unterminated JSON array", errMalformed)
		}
		var items []rawSection
		if err := json.Unmarshal([]byte(s[arr:end+1]), &items); err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}
		return items, nil
	}
	return nil, fmt.Errorf("%w: no JSON found in response", errMalformed)
}

func normalize(items []rawSection, opts Options) ([]deck.OutlineSection, error) {
	seen := make(map[string]bool, len(items))
	sections := make([]deck.OutlineSection, 0, len(items))
	for _, item := range items {
		title := strings.TrimSpace(leadingNumber.ReplaceAllString(strings.TrimSpace(item.Title), ""))
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if seen[key] {
			continue
		}
		seen[key] = true

		order := len(sections)
		sections = append(sections, deck.OutlineSection{
			ID:     SectionID(order),
			Order:  order,
			Title:  title,
			Intent: item.intent(),
		})
		if opts.MaxSections > 0 && len(sections) == opts.MaxSections {
			break
		}
	}

	if len(sections) < opts.MinSections {
		return nil, fmt.Errorf("%w: got %d usable sections, need at least %d", errMalformed, len(sections), opts.MinSections)
	}
	return sections, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
