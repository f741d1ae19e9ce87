package outline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/llm"
	llmmocks "slidedeck-ai/internal/llm/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testChunks() []deck.Chunk {
	return []deck.Chunk{
		{ID: "c0", Ordinal: 0, Text: "Solar capacity doubled.", CharStart: 0, CharEnd: 23},
		{ID: "c1", Ordinal: 1, Text: "Wind farms expanded offshore.", CharStart: 23, CharEnd: 52},
	}
}

const validOutline = `{"sections":[
  {"title":"Background","intent":"Why energy matters"},
  {"title":"Solar","intent":"Solar growth"},
  {"title":"Wind","intent":"Wind growth"}
]}`

func TestGenerator_Generate(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := llmmocks.NewMockCompleter(ctrl)

	completer.EXPECT().
		ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []llm.Message, params llm.ChatParams) (string, error) {
			assert.True(t, params.JSON)
			require.Len(t, msgs, 2)
			assert.Contains(t, msgs[1].Content, "Energy Report")
			assert.Contains(t, msgs[1].Content, "Wind farms expanded offshore.")
			return validOutline, nil
		})

	g := NewGenerator(completer, DefaultOptions())
	sections, err := g.Generate(context.Background(), "Energy Report", testChunks())
	require.NoError(t, err)
	require.Len(t, sections, 3)
	for i, s := range sections {
		assert.Equal(t, i, s.Order)
		assert.Equal(t, SectionID(i), s.ID)
	}
	assert.Equal(t, "Solar growth", sections[1].Intent)
}

func TestGenerator_RetriesWithStricterInstruction(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := llmmocks.NewMockCompleter(ctrl)

	gomock.InOrder(
		completer.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
			Return("Sure! Here is an outline: Background, Solar, Wind.", nil),
		completer.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llm.Message, _ llm.ChatParams) (string, error) {
				require.Len(t, msgs, 3)
				assert.Contains(t, msgs[2].Content, "could not be used")
				assert.Contains(t, msgs[2].Content, "no JSON found")
				return "```json\n" + validOutline + "\n```", nil
			}),
	)

	g := NewGenerator(completer, DefaultOptions())
	sections, err := g.Generate(context.Background(), "Energy Report", testChunks())
	require.NoError(t, err)
	assert.Len(t, sections, 3)
}

func TestGenerator_FailsAfterMaxAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := llmmocks.NewMockCompleter(ctrl)
	completer.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(`{"sections":[{"title":"Only one"}]}`, nil).
		Times(3)

	g := NewGenerator(completer, DefaultOptions())
	_, err := g.Generate(context.Background(), "Energy Report", testChunks())
	require.Error(t, err)
	assert.True(t, errors.Is(err, deck.ErrOutlineGenerationFailed))
	assert.Contains(t, err.Error(), "need at least 3")
}

func TestGenerator_ModelErrorsCountAsAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := llmmocks.NewMockCompleter(ctrl)
	completer.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", errors.New("connection refused")).
		Times(2)

	opts := DefaultOptions()
	opts.MaxAttempts = 2
	_, err := NewGenerator(completer, opts).Generate(context.Background(), "t", testChunks())
	assert.ErrorIs(t, err, deck.ErrOutlineGenerationFailed)
}

func TestGenerator_CancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := llmmocks.NewMockCompleter(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	completer.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ []llm.Message, _ llm.ChatParams) (string, error) {
			cancel()
			return "", ctx.Err()
		})

	_, err := NewGenerator(completer, DefaultOptions()).Generate(ctx, "t", testChunks())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerator_EmptyDocument(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := llmmocks.NewMockCompleter(ctrl)

	_, err := NewGenerator(completer, DefaultOptions()).Generate(context.Background(), "t", []deck.Chunk{{Text: "  "}})
	assert.ErrorIs(t, err, deck.ErrOutlineGenerationFailed)
}

func TestParse(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name       string
		raw        string
		wantTitles []string
		wantErr    bool
	}{
		{
			name:       "wrapped object",
			raw:        validOutline,
			wantTitles: []string{"Background", "Solar", "Wind"},
		},
		{
			name:       "bare array with prose",
			raw:        `Here you go: [{"title":"A"},{"title":"B"},{"title":"C"}] hope this helps`,
			wantTitles: []string{"A", "B", "C"},
		},
		{
			name:       "trims numbering, blanks and duplicates",
			raw:        `{"sections":[{"title":"1. Intro"},{"title":"  "},{"title":"intro"},{"title":"Body"},{"title":"- Close"}]}`,
			wantTitles: []string{"Intro", "Body", "Close"},
		},
		{
			name:       "truncates to max",
			raw:        `[{"title":"a"},{"title":"b"},{"title":"c"},{"title":"d"},{"title":"e"},{"title":"f"},{"title":"g"},{"title":"h"},{"title":"i"}]`,
			wantTitles: []string{"a", "b", "c", "d", "e", "f", "g", "h"},
		},
		{
			name:    "too few sections",
			raw:     `[{"title":"a"},{"title":"A"}]`,
			wantErr: true,
		},
		{
			name:    "object without sections",
			raw:     `{"slides":[{"title":"a"}]}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			raw:     `{"sections":[{"title":}]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections, err := Parse(tt.raw, opts)
			if tt.wantErr {
				assert.ErrorIs(t, err, errMalformed)
				return
			}
			require.NoError(t, err)
			titles := make([]string, len(sections))
			for i, s := range sections {
				titles[i] = s.Title
			}
			assert.Equal(t, tt.wantTitles, titles)
		})
	}
}

func TestParse_IntentAliases(t *testing.T) {
	raw := `[{"title":"a","intent":"one"},{"title":"b","intent_description":"two"},{"title":"c","description":"three"}]`
	sections, err := Parse(raw, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "one", sections[0].Intent)
	assert.Equal(t, "two", sections[1].Intent)
	assert.Equal(t, "three", sections[2].Intent)
}

func TestValidateSections(t *testing.T) {
	opts := DefaultOptions()
	valid := []deck.OutlineSection{
		{Order: 2, Title: "Close "},
		{Order: 0, Title: "Intro"},
		{Order: 1, Title: "Body", Intent: " details "},
	}

	got, err := ValidateSections(valid, opts)
	require.NoError(t, err)
	assert.Equal(t, []deck.OutlineSection{
		{ID: "section_1", Order: 0, Title: "Intro"},
		{ID: "section_2", Order: 1, Title: "Body", Intent: "details"},
		{ID: "section_3", Order: 2, Title: "Close"},
	}, got)

	tests := []struct {
		name     string
		sections []deck.OutlineSection
	}{
		{name: "too few", sections: valid[:2]},
		{name: "empty title", sections: []deck.OutlineSection{{Order: 0, Title: "a"}, {Order: 1, Title: " "}, {Order: 2, Title: "c"}}},
		{name: "duplicate title", sections: []deck.OutlineSection{{Order: 0, Title: "a"}, {Order: 1, Title: "A"}, {Order: 2, Title: "c"}}},
		{name: "gap in order", sections: []deck.OutlineSection{{Order: 0, Title: "a"}, {Order: 1, Title: "b"}, {Order: 3, Title: "c"}}},
		{name: "repeated order", sections: []deck.OutlineSection{{Order: 0, Title: "a"}, {Order: 0, Title: "b"}, {Order: 1, Title: "c"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateSections(tt.sections, opts)
			var cfgErr *deck.ConfigError
			require.True(t, errors.As(err, &cfgErr), "want ConfigError, got %v", err)
			assert.Equal(t, "sections", cfgErr.Field)
		})
	}
}

func TestSample(t *testing.T) {
	t.Run("small document is reassembled without overlap", func(t *testing.T) {
		chunks := []deck.Chunk{
			{Text: "abcdef", CharStart: 0},
			{Text: "efghij", CharStart: 4},
		}
		assert.Equal(t, "abcdefghij", Sample(chunks, 100))
	})

	t.Run("large document is sampled evenly within budget", func(t *testing.T) {
		chunks := make([]deck.Chunk, 50)
		for i := range chunks {
			chunks[i] = deck.Chunk{Ordinal: i, Text: strings.Repeat(string(rune('a'+i%26)), 1000), CharStart: i * 1000}
		}
		got := Sample(chunks, 3000)
		assert.LessOrEqual(t, len([]rune(got)), 3000)
		parts := strings.Split(got, excerptSeparator)
		require.Len(t, parts, 5)
		assert.True(t, strings.HasPrefix(parts[0], "a"))
		assert.True(t, strings.HasPrefix(parts[4], string(rune('a'+49%26))))
	})

	t.Run("no chunks", func(t *testing.T) {
		assert.Empty(t, Sample(nil, 100))
	})
}
