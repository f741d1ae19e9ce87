package synthesis

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
	"slidedeck-ai/internal/grounding"
	"slidedeck-ai/internal/llm"
	llmmocks "slidedeck-ai/internal/llm/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func energySet() deck.RetrievedSet {
	return deck.RetrievedSet{
		SectionID: "section_2",
		Items: []deck.RetrievedChunk{
			{ChunkID: "c3", Score: 0.9, Ordinal: 3, Text: "Solar capacity doubled across the region in 2023."},
			{ChunkID: "c7", Score: 0.8, Ordinal: 7, Text: "Offshore wind farms expanded along northern coasts."},
			{ChunkID: "c12", Score: 0.5, Ordinal: 12, Text: "Coal use declined."},
		},
	}
}

func energyRequest() Request {
	return Request{
		Section:     deck.OutlineSection{ID: "section_2", Order: 1, Title: "Renewables", Intent: "How renewables grew"},
		Retrieved:   energySet(),
		OtherTitles: []string{"Background", "Outlook"},
	}
}

const goodBullets = `- Solar capacity doubled across the region in 2023 [S1]
- Offshore wind farms expanded along northern coasts [S2][S9]
- The moon is made of cheese`

func TestSynthesize_EmptyRetrievalMakesNoCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := llmmocks.NewMockCompleter(ctrl)

	req := energyRequest()
	req.Retrieved = deck.RetrievedSet{SectionID: "section_2"}

	res, err := NewSynthesizer(completer, DefaultOptions()).Synthesize(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Insufficient)
	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Items)
	require.NotNil(t, res.Warning)
	assert.Equal(t, "section_2", res.Warning.SectionID)
	assert.Equal(t, 0, res.Attempts)
}

func TestSynthesize_Bullets(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := llmmocks.NewMockCompleter(ctrl)

	completer.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []llm.Message, params llm.ChatParams) (string, error) {
			require.Len(t, msgs, 2)
			prompt := msgs[1].Content
			assert.Contains(t, prompt, "[S1]")
			assert.Contains(t, prompt, "[S3]")
			assert.Contains(t, prompt, "Direction: How renewables grew")
			assert.Contains(t, prompt, "Tone: conversational")
			assert.Contains(t, prompt, "Do not repeat material belonging to other sections")
			assert.Contains(t, prompt, "Background; Outlook")
			assert.False(t, params.JSON)
			return goodBullets, nil
		})

	req := energyRequest()
	req.Tone = "conversational"
	res, err := NewSynthesizer(completer, DefaultOptions()).Synthesize(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, res.Items, 2)
	assert.Equal(t, "Solar capacity doubled across the region in 2023", res.Items[0].Text)
	assert.Equal(t, []string{"c3"}, res.Items[0].Provenance)
	assert.Equal(t, []string{"c7"}, res.Items[1].Provenance)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 1, res.Fabricated)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Degraded)
	assert.Nil(t, res.Warning)

	set := energySet()
	for _, item := range res.Items {
		assert.GreaterOrEqual(t, item.Confidence, 0.0)
		assert.LessOrEqual(t, item.Confidence, 1.0)
		for _, id := range item.Provenance {
			assert.True(t, set.Contains(id))
		}
	}
}

func TestSynthesize_RegeneratesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := llmmocks.NewMockCompleter(ctrl)

	gomock.InOrder(
		completer.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
			Return("- Solar grew [S1]", nil),
		completer.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llm.Message, _ llm.ChatParams) (string, error) {
				assert.Contains(t, msgs[1].Content, "previous answer was rejected: only 2 words")
				return goodBullets, nil
			}),
	)

	res, err := NewSynthesizer(completer, DefaultOptions()).Synthesize(context.Background(), energyRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.False(t, res.Degraded)
	assert.Len(t, res.Items, 2)
}

func TestSynthesize_DegradesAfterSecondFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := llmmocks.NewMockCompleter(ctrl)
	completer.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("- Solar capacity doubled [S1]", nil).
		Times(2)

	opts := DefaultOptions()
	res, err := NewSynthesizer(completer, opts).Synthesize(context.Background(), energyRequest())
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Equal(t, 2, res.Attempts)
	require.NotNil(t, res.Warning)
	assert.ErrorIs(t, *res.Warning, deck.ErrSynthesisDegraded)
	assert.Contains(t, res.Warning.Message(), "Renewables")

	require.Len(t, res.Items, 1)
	set := energySet()
	want := grounding.Confidence("Solar capacity doubled", set.Items[:1], opts.Grounding.Weights) * opts.DegradedPenalty
	assert.InDelta(t, want, res.Items[0].Confidence, 1e-9)
}

func TestSynthesize_UngroundedOutputIsNeverFabricated(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := llmmocks.NewMockCompleter(ctrl)
	completer.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("- Everything is great\n- Trust me [S42]", nil).
		Times(2)

	res, err := NewSynthesizer(completer, DefaultOptions()).Synthesize(context.Background(), energyRequest())
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Empty(t, res.Items)
	assert.Equal(t, 1, res.Fabricated)
}

func TestSynthesize_FlagPolicyKeepsUncitedItems(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := llmmocks.NewMockCompleter(ctrl)
	completer.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return(goodBullets, nil)

	opts := DefaultOptions()
	opts.Grounding.Policy = grounding.PolicyFlag
	res, err := NewSynthesizer(completer, opts).Synthesize(context.Background(), energyRequest())
	require.NoError(t, err)

	require.Len(t, res.Items, 3)
	flagged := res.Items[2]
	assert.Empty(t, flagged.Provenance)
	assert.LessOrEqual(t, flagged.Confidence, grounding.FlaggedConfidenceCeiling)
}

func TestSynthesize_Paragraph(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := llmmocks.NewMockCompleter(ctrl)
	completer.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []llm.Message, _ llm.ChatParams) (string, error) {
			assert.Contains(t, msgs[1].Content, "Write one paragraph")
			return "Solar capacity doubled across the region [S1]. Offshore wind farms expanded along the coast. [S2] The moon is cheese [S5].", nil
		})

	opts := DefaultOptions()
	opts.Style = StyleParagraph
	res, err := NewSynthesizer(completer, opts).Synthesize(context.Background(), energyRequest())
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "Solar capacity doubled across the region. Offshore wind farms expanded along the coast.", res.Items[0].Text)
	assert.Equal(t, []string{"c3", "c7"}, res.Items[0].Provenance)
	assert.Equal(t, 1, res.Dropped)
}

func TestSynthesize_ModelError(t *testing.T) {
	ctrl := gomock.NewController(t)
	completer := llmmocks.NewMockCompleter(ctrl)
	completer.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", errors.New("upstream unavailable"))

	_, err := NewSynthesizer(completer, DefaultOptions()).Synthesize(context.Background(), energyRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "section_2")
}

func TestRevise(t *testing.T) {
	text := "Solar capacity doubled across the region in 2023 and wind expanded offshore"
	prev := Result{
		SectionID: "section_2",
		Items:     []deck.ContentItem{{Text: text, Provenance: []string{"c3"}, Confidence: 0.8}},
		Attempts:  1,
	}

	t.Run("passing content is unchanged", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		completer := llmmocks.NewMockCompleter(ctrl)

		req := energyRequest()
		req.Others = []string{"Coal use declined sharply over the decade"}
		res, err := NewSynthesizer(completer, DefaultOptions()).Revise(context.Background(), req, prev)
		require.NoError(t, err)
		assert.Equal(t, prev, res)
	})

	t.Run("duplicate after two attempts degrades without a call", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		completer := llmmocks.NewMockCompleter(ctrl)

		req := energyRequest()
		req.Others = []string{strings.ToUpper(text)}
		exhausted := prev
		exhausted.Attempts = 2
		res, err := NewSynthesizer(completer, DefaultOptions()).Revise(context.Background(), req, exhausted)
		require.NoError(t, err)
		assert.True(t, res.Degraded)
		assert.InDelta(t, 0.4, res.Items[0].Confidence, 1e-9)
		assert.Equal(t, "content repeats another section", res.Warning.Reason)
	})

	t.Run("duplicate after one attempt regenerates", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		completer := llmmocks.NewMockCompleter(ctrl)
		completer.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llm.Message, _ llm.ChatParams) (string, error) {
				assert.Contains(t, msgs[1].Content, "content repeats another section")
				return goodBullets, nil
			})

		req := energyRequest()
		req.Others = []string{text}
		res, err := NewSynthesizer(completer, DefaultOptions()).Revise(context.Background(), req, prev)
		require.NoError(t, err)
		assert.False(t, res.Degraded)
		assert.Equal(t, 2, res.Attempts)
	})
}
