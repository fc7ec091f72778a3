package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.KnowledgeSource = (*KnowledgeSource)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS knowledge_documents (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
)`

// KnowledgeSource serves documents from a single-file SQLite database.
// Useful for local deployments without PostgreSQL.
type KnowledgeSource struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the schema
func Open(ctx context.Context, path string) (*KnowledgeSource, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &KnowledgeSource{db: db}, nil
}

// Name returns the source name
func (s *KnowledgeSource) Name() string {
	return "sqlite"
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

// SaveBatch upserts documents in one transaction
func (s *KnowledgeSource) SaveBatch(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO knowledge_documents (id, text) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET text = excluded.text, updated_at = datetime('now')`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, doc := range docs {
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Text); err != nil {
			return fmt.Errorf("save document %s: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

// Delete removes a document by ID
func (s *KnowledgeSource) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_documents WHERE id = ?`, id)
	return err
}

// Close closes the database
func (s *KnowledgeSource) Close() error {
	return s.db.Close()
}
