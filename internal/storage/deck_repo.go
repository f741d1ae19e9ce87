package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeckStore defines the interface for assembled deck persistence.
type DeckStore interface {
	// Insert stores a deck. An empty ID is replaced with a new UUID.
	Insert(ctx context.Context, deck *DeckRecord) error
	// GetByID gets a deck by ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*DeckRecord, error)
	// Latest returns the most recently created deck. Returns ErrNotFound when none exist.
	Latest(ctx context.Context) (*DeckRecord, error)
}

// DeckRepo implements DeckStore on SQLite.
type DeckRepo struct {
	db *sql.DB
}

// NewDeckRepo creates a new DeckRepo.
func NewDeckRepo(db *sql.DB) *DeckRepo {
	return &DeckRepo{db: db}
}

// Insert stores a deck.
func (r *DeckRepo) Insert(ctx context.Context, deck *DeckRecord) error {
	if deck.ID == "" {
		deck.ID = uuid.New().String()
	}
	if deck.CreatedAt.IsZero() {
		deck.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO decks (id, document_id, source_pdf, title, body, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		deck.ID, deck.DocumentID, deck.SourcePDF, deck.Title, string(deck.Body), deck.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert deck: %w", err)
	}
	return nil
}

// GetByID gets a deck by ID.
func (r *DeckRepo) GetByID(ctx context.Context, id string) (*DeckRecord, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		"SELECT id, document_id, source_pdf, title, body, created_at FROM decks WHERE id = ?", id))
}

// Latest returns the most recently created deck.
func (r *DeckRepo) Latest(ctx context.Context) (*DeckRecord, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		"SELECT id, document_id, source_pdf, title, body, created_at FROM decks ORDER BY created_at DESC, rowid DESC LIMIT 1"))
}

func (r *DeckRepo) scanOne(row *sql.Row) (*DeckRecord, error) {
	var d DeckRecord
	var body, createdAt string
	err := row.Scan(&d.ID, &d.DocumentID, &d.SourcePDF, &d.Title, &body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query deck: %w", err)
	}
	d.Body = []byte(body)
	d.CreatedAt, err = parseTimestamp(createdAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
