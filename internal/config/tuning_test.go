package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidedeck-ai/internal/grounding"
	"slidedeck-ai/internal/slides"
	"slidedeck-ai/internal/synthesis"
)

func TestLoadTuning_MissingFileUsesDefaults(t *testing.T) {
	got, err := LoadTuning(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultTuning(), got)

	got, err = LoadTuning("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTuning(), got)
}

func TestLoadTuning_OverridesOnlyGivenKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
retrieval:
  min_score: 0.45
  top_n: 12
synthesis:
  style: paragraph
  degraded_penalty: 0.25
  grounding:
    policy: flag
    weights:
      relevance: 0.5
      lexical: 0.3
      cited: 0.2
slides:
  media: alternate
`), 0o644))

	got, err := LoadTuning(path)
	require.NoError(t, err)

	def := DefaultTuning()
	assert.Equal(t, 0.45, got.Retrieval.MinScore)
	assert.Equal(t, 12, got.Retrieval.TopN)
	assert.Equal(t, def.Retrieval.MaxResults, got.Retrieval.MaxResults)
	assert.Equal(t, synthesis.StyleParagraph, got.Synthesis.Style)
	assert.Equal(t, 0.25, got.Synthesis.DegradedPenalty)
	assert.Equal(t, def.Synthesis.MinWords, got.Synthesis.MinWords)
	assert.Equal(t, grounding.PolicyFlag, got.Synthesis.Grounding.Policy)
	assert.Equal(t, grounding.Weights{Relevance: 0.5, Lexical: 0.3, Cited: 0.2}, got.Synthesis.Grounding.Weights)
	assert.Equal(t, slides.MediaAlternate, got.Slides.Media)
	assert.Equal(t, def.Outline, got.Outline)
}

func TestLoadTuning_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval: [unclosed"), 0o644))

	_, err := LoadTuning(path)
	assert.Error(t, err)
}
