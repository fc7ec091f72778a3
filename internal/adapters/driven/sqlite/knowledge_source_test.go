package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

func openTemp(t *testing.T) *KnowledgeSource {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "kb", "knowledge.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestKnowledgeSource_Empty(t *testing.T) {
	s := openTemp(t)

	docs, err := s.LoadDocuments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no documents, got %d", len(docs))
	}
	if s.Name() != "sqlite" {
		t.Errorf("expected sqlite, got %s", s.Name())
	}
}

func TestKnowledgeSource_SaveAndLoad(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	err := s.SaveBatch(ctx, []domain.Document{
		{ID: "shipping.md", Text: "We ship worldwide."},
		{ID: "refunds.md", Text: "Refunds take 14 days."},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	docs, err := s.LoadDocuments(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != "refunds.md" || docs[1].ID != "shipping.md" {
		t.Errorf("expected documents ordered by ID, got %s, %s", docs[0].ID, docs[1].ID)
	}
}

func TestKnowledgeSource_Upsert(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	_ = s.SaveBatch(ctx, []domain.Document{{ID: "faq.md", Text: "old"}})
	_ = s.SaveBatch(ctx, []domain.Document{{ID: "faq.md", Text: "new"}})

	docs, err := s.LoadDocuments(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 1 || docs[0].Text != "new" {
		t.Errorf("expected single updated document, got %+v", docs)
	}
}

func TestKnowledgeSource_Delete(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	_ = s.SaveBatch(ctx, []domain.Document{{ID: "a.md", Text: "a"}, {ID: "b.md", Text: "b"}})
	if err := s.Delete(ctx, "a.md"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	docs, _ := s.LoadDocuments(ctx)
	if len(docs) != 1 || docs[0].ID != "b.md" {
		t.Errorf("expected only b.md, got %+v", docs)
	}
}

func TestKnowledgeSource_SaveBatchEmpty(t *testing.T) {
	s := openTemp(t)
	if err := s.SaveBatch(context.Background(), nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
