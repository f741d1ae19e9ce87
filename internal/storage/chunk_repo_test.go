package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func seedDocument(t *testing.T, db *sql.DB, docID string, n int) []ChunkRecord {
	t.Helper()
	chunks := make([]ChunkRecord, n)
	for i := range chunks {
		chunks[i] = ChunkRecord{
			ID:         docID + "-chunk-" + string(rune('a'+i)),
			DocumentID: docID,
			Ordinal:    i,
			Text:       "chunk text",
			CharStart:  i * 450,
			CharEnd:    i*450 + 500,
			PageFirst:  1,
			PageLast:   2,
			Embedding:  []float32{float32(i), 0.5, -1},
		}
	}
	doc := &DocumentRecord{ID: docID, Name: docID + ".pdf", Title: "Doc", ChunkSize: 500, Overlap: 50, EffectiveChunkSize: 500, EmbeddingModel: "m", VectorSize: 3}
	if err := NewDocumentRepo(db).SaveIndex(context.Background(), doc, chunks); err != nil {
		t.Fatalf("SaveIndex() error = %v", err)
	}
	return chunks
}

func TestChunkRepo_ListByDocument(t *testing.T) {
	db := newTestDB(t)
	want := seedDocument(t, db, "doc1", 3)
	seedDocument(t, db, "doc2", 2)

	repo := NewChunkRepo(db)
	got, err := repo.ListByDocument(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("ListByDocument() returned %d chunks, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i].ID != want[i].ID || got[i].Ordinal != i {
			t.Errorf("ListByDocument()[%d] = %s/%d, want %s/%d", i, got[i].ID, got[i].Ordinal, want[i].ID, i)
		}
		if got[i].CharStart != want[i].CharStart || got[i].PageLast != 2 {
			t.Errorf("ListByDocument()[%d] offsets not preserved: %+v", i, got[i])
		}
		if len(got[i].Embedding) != 3 || got[i].Embedding[0] != float32(i) || got[i].Embedding[2] != -1 {
			t.Errorf("ListByDocument()[%d] embedding = %v", i, got[i].Embedding)
		}
	}

	empty, err := repo.ListByDocument(context.Background(), "missing")
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListByDocument() for missing document = %v, want empty", empty)
	}
}

func TestChunkRepo_ListIDsByDocument(t *testing.T) {
	db := newTestDB(t)
	chunks := seedDocument(t, db, "doc1", 3)

	ids, err := NewChunkRepo(db).ListIDsByDocument(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("ListIDsByDocument() error = %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("ListIDsByDocument() returned %d ids, want 3", len(ids))
	}
	for i, id := range ids {
		if id != chunks[i].ID {
			t.Errorf("ListIDsByDocument()[%d] = %s, want %s", i, id, chunks[i].ID)
		}
	}
}

func TestChunkRepo_GetByID(t *testing.T) {
	db := newTestDB(t)
	chunks := seedDocument(t, db, "doc1", 2)
	repo := NewChunkRepo(db)

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{name: "existing chunk", id: chunks[1].ID},
		{name: "missing chunk", id: "nope", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetByID(context.Background(), tt.id)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("GetByID() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetByID() unexpected error: %v", err)
			}
			if got.Ordinal != 1 || got.DocumentID != "doc1" {
				t.Errorf("GetByID() = %+v", got)
			}
		})
	}
}

func TestEmbeddingEncoding(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
	}{
		{name: "empty", vec: nil},
		{name: "values", vec: []float32{0, 1.25, -3.5, 1e-7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEmbedding(EncodeEmbedding(tt.vec))
			if err != nil {
				t.Fatalf("DecodeEmbedding() error = %v", err)
			}
			if len(got) != len(tt.vec) {
				t.Fatalf("DecodeEmbedding() len = %d, want %d", len(got), len(tt.vec))
			}
			for i := range got {
				if got[i] != tt.vec[i] {
					t.Errorf("DecodeEmbedding()[%d] = %v, want %v", i, got[i], tt.vec[i])
				}
			}
		})
	}

	if _, err := DecodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Error("DecodeEmbedding() should reject truncated blobs")
	}
}
