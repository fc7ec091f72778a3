package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.KnowledgeSource = (*KnowledgeSource)(nil)

// KnowledgeSource serves documents from the knowledge_documents table
type KnowledgeSource struct {
	db *DB
}

// NewKnowledgeSource creates a new KnowledgeSource
func NewKnowledgeSource(db *DB) *KnowledgeSource {
	return &KnowledgeSource{db: db}
}

// Name returns the source name
func (s *KnowledgeSource) Name() string {
	return "postgres"
}

// LoadDocuments returns every document ordered by ID
func (s *KnowledgeSource) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text FROM knowledge_documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query knowledge documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(&doc.ID, &doc.Text); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SaveBatch upserts documents in a single transaction
func (s *KnowledgeSource) SaveBatch(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO knowledge_documents (id, text)
			VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET
				text = EXCLUDED.text,
				updated_at = NOW()
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, doc := range docs {
			if _, err := stmt.ExecContext(ctx, doc.ID, doc.Text); err != nil {
				return fmt.Errorf("save document %s: %w", doc.ID, err)
			}
		}
		return nil
	})
}

// Delete removes a document by ID
func (s *KnowledgeSource) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_documents WHERE id = $1`, id)
	return err
}
