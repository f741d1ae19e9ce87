package index

import (
	"math"
	"sort"
	"unicode/utf8"

	"slidedeck-ai/internal/chunker"
)

// TokensPerRune is an approximation for token counting (4 chars per token).
const TokensPerRune = 4.0

// Stats describes an index build for deck metadata.
type Stats struct {
	ChunkCount         int             `json:"chunk_count"`
	ChunkSize          int             `json:"chunk_size"`
	Overlap            int             `json:"overlap"`
	EffectiveChunkSize int             `json:"effective_chunk_size"`
	EmbeddingModel     string          `json:"embedding_model"`
	ChunkTokenStats    ChunkTokenStats `json:"chunk_token_stats"`
	ChunkerVersion     string          `json:"chunker_version"`
	IndexVersion       string          `json:"index_version"`
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// Stats computes build statistics for the index.
func (ix *Index) Stats() Stats {
	counts := make([]int, len(ix.chunks))
	for i, c := range ix.chunks {
		// Estimate tokens from rune count (approximation: ~4 chars per token)
		n := int(math.Round(float64(utf8.RuneCountInString(c.Text)) / TokensPerRune))
		if n < 1 {
			n = 1
		}
		counts[i] = n
	}

	return Stats{
		ChunkCount:         len(ix.chunks),
		ChunkSize:          ix.meta.Requested.ChunkSize,
		Overlap:            ix.meta.Requested.Overlap,
		EffectiveChunkSize: ix.meta.Effective.ChunkSize,
		EmbeddingModel:     ix.meta.EmbeddingModel,
		ChunkTokenStats:    computeTokenStats(counts),
		ChunkerVersion:     chunker.Version,
		IndexVersion:       ix.meta.Version(),
	}
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	// Sort for percentile calculation
	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range tokenCounts {
		sum += count
	}
	mean := float64(sum) / float64(len(tokenCounts))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}
