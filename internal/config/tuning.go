package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"slidedeck-ai/internal/outline"
	"slidedeck-ai/internal/pipeline"
	"slidedeck-ai/internal/retrieval"
	"slidedeck-ai/internal/slides"
	"slidedeck-ai/internal/synthesis"
)

// Tuning holds the numeric thresholds of the pipeline stages.
type Tuning struct {
	Outline   outline.Options   `yaml:"outline"`
	Retrieval retrieval.Options `yaml:"retrieval"`
	Synthesis synthesis.Options `yaml:"synthesis"`
	Slides    slides.Options    `yaml:"slides"`
	Pipeline  pipeline.Options  `yaml:"pipeline"`
}

// DefaultTuning returns the built-in thresholds.
func DefaultTuning() Tuning {
	return Tuning{
		Outline:   outline.DefaultOptions(),
		Retrieval: retrieval.DefaultOptions(),
		Synthesis: synthesis.DefaultOptions(),
		Slides:    slides.DefaultOptions(),
		Pipeline:  pipeline.DefaultOptions(),
	}
}

// LoadTuning reads the YAML tuning file at path over the defaults. Keys
// missing from the file keep their default. A missing file yields the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("failed to read tuning file: %w", err)
	}

	if err := yaml.Unmarshal(data, &t); err != nil {
		return DefaultTuning(), fmt.Errorf("failed to parse tuning file %s: %w", path, err)
	}
	return t, nil
}
