package deck

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned for chunking parameters that cannot be honored.
	ErrConfig = errors.New("invalid configuration")
	// ErrEmbeddingUnavailable is returned when the embedding capability cannot be reached.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	// ErrOutlineGenerationFailed is returned when no valid outline could be parsed.
	ErrOutlineGenerationFailed = errors.New("outline generation failed")
	// ErrSynthesisDegraded marks a section accepted below quality thresholds.
	ErrSynthesisDegraded = errors.New("synthesis degraded")
	// ErrAssemblyInvariant is returned when an assembled deck breaks a structural invariant.
	ErrAssemblyInvariant = errors.New("assembly invariant violated")
)

// ConfigError describes an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error on field %s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrConfig) match any ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// Stage is a state of the document-level processing run.
type Stage string

const (
	StageIngested    Stage = "ingested"
	StageChunked     Stage = "chunked"
	StageIndexed     Stage = "indexed"
	StageOutlined    Stage = "outlined"
	StageRetrieved   Stage = "retrieved"
	StageSynthesized Stage = "synthesized"
	StageAssembled   Stage = "assembled"
)

// StageError tags a fatal failure with the stage at which it occurred.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage recorded on err, if any.
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}

// SectionWarning reports a non-fatal, section-level degradation.
type SectionWarning struct {
	SectionID string `json:"section_id"`
	Title     string `json:"title"`
	Reason    string `json:"reason"`
}

func (w SectionWarning) Error() string {
	return fmt.Sprintf("section %q: %s", w.Title, w.Reason)
}

// Unwrap lets callers match warnings with errors.Is(err, ErrSynthesisDegraded).
func (w SectionWarning) Unwrap() error {
	return ErrSynthesisDegraded
}

// Message returns the user-facing text for the warning.
func (w SectionWarning) Message() string {
	return fmt.Sprintf("Content quality may be degraded for section %q: %s", w.Title, w.Reason)
}
