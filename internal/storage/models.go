package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_stores.go -package=mocks slidedeck-ai/internal/storage DocumentStore,ChunkStore,DeckStore

import "time"

// DocumentRecord describes an indexed document and the parameters its index was built with.
type DocumentRecord struct {
	ID                 string // content hash identity
	Name               string // original file name
	Title              string
	ChunkSize          int // requested
	Overlap            int
	MaxChunks          int
	EffectiveChunkSize int // after max_chunks scaling
	EmbeddingModel     string
	VectorSize         int
	ChunkCount         int
	CreatedAt          time.Time
}

// ChunkRecord is a persisted chunk with its embedding.
type ChunkRecord struct {
	ID         string // UUID (same as vector point ID)
	DocumentID string
	Ordinal    int
	Text       string
	CharStart  int
	CharEnd    int
	PageFirst  int
	PageLast   int
	Embedding  []float32
}

// DeckRecord is an assembled deck serialized as JSON.
type DeckRecord struct {
	ID         string
	DocumentID string
	SourcePDF  string
	Title      string
	Body       []byte
	CreatedAt  time.Time
}
