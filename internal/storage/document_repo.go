package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DocumentStore defines the interface for document index persistence.
type DocumentStore interface {
	// SaveIndex replaces the document row and all of its chunks in one transaction.
	SaveIndex(ctx context.Context, doc *DocumentRecord, chunks []ChunkRecord) error
	// GetByID gets a document by ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*DocumentRecord, error)
	// Delete removes a document and, through the foreign key, its chunks.
	Delete(ctx context.Context, id string) error
}

// DocumentRepo implements DocumentStore on SQLite.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// SaveIndex replaces the document and its chunks atomically. A failure leaves
// the previous index untouched.
func (r *DocumentRepo) SaveIndex(ctx context.Context, doc *DocumentRecord, chunks []ChunkRecord) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.ChunkCount = len(chunks)

	if _, err = tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", doc.ID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, name, title, chunk_size, overlap, max_chunks, effective_chunk_size,
			embedding_model, vector_size, chunk_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, title = excluded.title, chunk_size = excluded.chunk_size,
			overlap = excluded.overlap, max_chunks = excluded.max_chunks,
			effective_chunk_size = excluded.effective_chunk_size,
			embedding_model = excluded.embedding_model, vector_size = excluded.vector_size,
			chunk_count = excluded.chunk_count, created_at = excluded.created_at`,
		doc.ID, doc.Name, doc.Title, doc.ChunkSize, doc.Overlap, doc.MaxChunks, doc.EffectiveChunkSize,
		doc.EmbeddingModel, doc.VectorSize, doc.ChunkCount, doc.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, ordinal, text, char_start, char_end, page_first, page_last, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for i := range chunks {
		c := &chunks[i]
		if c.DocumentID != doc.ID {
			err = fmt.Errorf("chunk %s belongs to document %s, not %s", c.ID, c.DocumentID, doc.ID)
			return err
		}
		if _, err = stmt.ExecContext(ctx,
			c.ID, c.DocumentID, c.Ordinal, c.Text, c.CharStart, c.CharEnd, c.PageFirst, c.PageLast,
			EncodeEmbedding(c.Embedding),
		); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.Ordinal, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}
	return nil
}

// GetByID gets a document by ID. Returns ErrNotFound if not found.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*DocumentRecord, error) {
	var doc DocumentRecord
	var createdAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, title, chunk_size, overlap, max_chunks, effective_chunk_size,
			embedding_model, vector_size, chunk_count, created_at
		 FROM documents WHERE id = ?`,
		id,
	).Scan(&doc.ID, &doc.Name, &doc.Title, &doc.ChunkSize, &doc.Overlap, &doc.MaxChunks,
		&doc.EffectiveChunkSize, &doc.EmbeddingModel, &doc.VectorSize, &doc.ChunkCount, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	doc.CreatedAt, err = parseTimestamp(createdAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Delete removes a document and its chunks. Deleting a missing document is not an error.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
