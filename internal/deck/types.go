package deck

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"
)

// FormatVersion is the version of the persisted deck JSON shape.
// Bump it whenever SlideDeck or Slide change shape.
const FormatVersion = 1

// Document is the extracted text of one source file.
type Document struct {
	ID    string // content identity, see DocumentIdentity
	Name  string // source file name, e.g. "report.pdf"
	Title string
	Text  string
	// PageBreaks holds rune offsets at which pages 2..n begin. Monotonic.
	PageBreaks []int
}

// DocumentIdentity derives a stable identifier from document text.
func DocumentIdentity(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}

// TitleFromName derives a human-readable title from a file name.
// "quarterly-report_2024.pdf" becomes "quarterly report 2024".
func TitleFromName(name string) string {
	base := filepath.Base(name)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.NewReplacer("-", " ", "_", " ").Replace(title)
	return strings.TrimSpace(title)
}

// UntitledDocument is the title used when neither the file nor its name
// yields one.
const UntitledDocument = "Untitled document"

// DisplayTitle returns title trimmed, or UntitledDocument when blank.
func DisplayTitle(title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return UntitledDocument
}

// ChunkParams is the chunking configuration surface.
type ChunkParams struct {
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`
	Overlap   int `json:"overlap" yaml:"overlap"`
	// MaxChunks caps the chunk count. Zero means no cap.
	MaxChunks int `json:"max_chunks" yaml:"max_chunks"`
}

// DefaultChunkParams returns the defaults used when no parameters are supplied.
func DefaultChunkParams() ChunkParams {
	return ChunkParams{ChunkSize: 2000, Overlap: 200, MaxChunks: 1500}
}

// Validate reports a *ConfigError when the parameters cannot produce chunks.
func (p ChunkParams) Validate() error {
	switch {
	case p.ChunkSize <= 0:
		return &ConfigError{Field: "chunk_size", Message: "must be greater than 0"}
	case p.Overlap < 0:
		return &ConfigError{Field: "overlap", Message: "must not be negative"}
	case p.Overlap >= p.ChunkSize:
		return &ConfigError{Field: "overlap", Message: "must be smaller than chunk_size"}
	case p.MaxChunks < 0:
		return &ConfigError{Field: "max_chunks", Message: "must not be negative"}
	}
	return nil
}

// PageRange is an inclusive 1-based page span.
type PageRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// Chunk is an overlapping window of document text.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Ordinal    int       `json:"ordinal"`
	Text       string    `json:"text"`
	CharStart  int       `json:"char_start"`
	CharEnd    int       `json:"char_end"` // exclusive
	PageRange  PageRange `json:"page_range"`
	Embedding  []float32 `json:"embedding_vector,omitempty"`
}

// OutlineSection is one planned section of the deck.
type OutlineSection struct {
	ID        string `json:"id"`
	Order     int    `json:"order"`
	Title     string `json:"title"`
	Intent    string `json:"intent_description"`
	Narrative string `json:"narrative,omitempty"`
}

// Direction returns the controlling instruction for the section:
// the narrative when one was supplied, the generated intent otherwise.
func (s OutlineSection) Direction() string {
	if strings.TrimSpace(s.Narrative) != "" {
		return s.Narrative
	}
	return s.Intent
}

// RetrievedChunk is a chunk selected as context for a section.
type RetrievedChunk struct {
	ChunkID   string    `json:"chunk_id"`
	Score     float32   `json:"score"`
	Ordinal   int       `json:"ordinal"`
	Text      string    `json:"text"`
	PageRange PageRange `json:"page_range"`
}

// RetrievedSet is the ordered, deduplicated context for one section.
type RetrievedSet struct {
	SectionID string           `json:"section_id"`
	Items     []RetrievedChunk `json:"items"`
}

// Contains reports whether chunkID is part of the set.
func (s RetrievedSet) Contains(chunkID string) bool {
	_, ok := s.Lookup(chunkID)
	return ok
}

// Lookup returns the retrieved chunk with the given ID.
func (s RetrievedSet) Lookup(chunkID string) (RetrievedChunk, bool) {
	for _, item := range s.Items {
		if item.ChunkID == chunkID {
			return item, true
		}
	}
	return RetrievedChunk{}, false
}

// IDs returns the chunk IDs in set order.
func (s RetrievedSet) IDs() []string {
	ids := make([]string, len(s.Items))
	for i, item := range s.Items {
		ids[i] = item.ChunkID
	}
	return ids
}

// ContentItem is one grounded bullet or paragraph.
type ContentItem struct {
	Text       string   `json:"text"`
	Provenance []string `json:"provenance"`
	Confidence float64  `json:"confidence"`
}

// SlideType distinguishes the title slide from content slides.
type SlideType string

const (
	SlideTypeTitle   SlideType = "title"
	SlideTypeContent SlideType = "content"
)

// SlideMetadata carries the structural layout decision for a slide.
type SlideMetadata struct {
	SlideNumber int    `json:"slide_number"`
	Layout      string `json:"layout"`
	HasMedia    bool   `json:"has_media"`
	MediaSlots  int    `json:"media_slots"`
	IsTitle     bool   `json:"is_title"`
}

// Slide is a single slide of the deck.
type Slide struct {
	ID       string        `json:"id"`
	Type     SlideType     `json:"type"`
	Title    string        `json:"title"`
	Content  []ContentItem `json:"content"`
	Metadata SlideMetadata `json:"metadata"`
}

// SlideDeck is the terminal artifact of a processing run.
type SlideDeck struct {
	Title     string         `json:"title"`
	Slides    []Slide        `json:"slides"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
	SourcePDF string         `json:"source_pdf"`
}

// Timestamp formats t the way CreatedAt is persisted.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
