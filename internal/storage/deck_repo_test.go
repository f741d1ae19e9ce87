package storage

import (
	"context"
	"testing"
	"time"
)

func TestDeckRepo_InsertAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewDeckRepo(db)
	ctx := context.Background()

	deck := &DeckRecord{DocumentID: "doc1", SourcePDF: "report.pdf", Title: "Report", Body: []byte(`{"title":"Report"}`)}
	if err := repo.Insert(ctx, deck); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if deck.ID == "" {
		t.Fatal("Insert() should assign an ID")
	}

	got, err := repo.GetByID(ctx, deck.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if string(got.Body) != `{"title":"Report"}` || got.SourcePDF != "report.pdf" {
		t.Errorf("GetByID() = %+v", got)
	}

	if _, err := repo.GetByID(ctx, "missing"); err != ErrNotFound {
		t.Errorf("GetByID() missing error = %v, want ErrNotFound", err)
	}
}

func TestDeckRepo_Latest(t *testing.T) {
	db := newTestDB(t)
	repo := NewDeckRepo(db)
	ctx := context.Background()

	if _, err := repo.Latest(ctx); err != ErrNotFound {
		t.Fatalf("Latest() on empty table error = %v, want ErrNotFound", err)
	}

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, title := range []string{"first", "second"} {
		d := &DeckRecord{DocumentID: "doc", SourcePDF: "x.pdf", Title: title, Body: []byte("{}"), CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Insert(ctx, d); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	got, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got.Title != "second" {
		t.Errorf("Latest() title = %q, want second", got.Title)
	}
	if !got.CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("Latest() CreatedAt = %v", got.CreatedAt)
	}
}
