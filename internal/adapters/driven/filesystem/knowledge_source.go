package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.KnowledgeSource = (*KnowledgeSource)(nil)

// ignoreFiles are read from the knowledge root, in this order
var ignoreFiles = []string{".gitignore", ".ragignore"}

// KnowledgeSource reads documents from a directory tree.
// A document's ID is its slash-separated path relative to the root.
type KnowledgeSource struct {
	root        string
	extensions  []string
	maxFileSize int64
	logger      *slog.Logger
}

// Config holds configuration for the filesystem knowledge source.
type Config struct {
	Root        string
	Extensions  []string // default: .md, .markdown, .txt
	MaxFileSize int64    // bytes, default: 1 MiB; larger files are skipped
	Logger      *slog.Logger
}

// NewKnowledgeSource creates a filesystem knowledge source
func NewKnowledgeSource(cfg Config) *KnowledgeSource {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	extensions := cfg.Extensions
	if len(extensions) == 0 {
		extensions = []string{".md", ".markdown", ".txt"}
	}
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}

	maxFileSize := cfg.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = 1 << 20
	}

	return &KnowledgeSource{
		root:        cfg.Root,
		extensions:  normalized,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// Name returns the source name
func (s *KnowledgeSource) Name() string {
	return "filesystem"
}

// LoadDocuments walks the root in lexical order and returns every matching
// file. A missing root is an error; callers treat it as an empty knowledge base.
func (s *KnowledgeSource) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("knowledge directory %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge directory %s: not a directory", s.root)
	}

	matchers := s.loadIgnoreFiles()

	var docs []domain.Document
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}

		// Directories are not matched so negated file patterns keep working
		for _, m := range matchers {
			if m.MatchesPath(relPath) {
				return nil
			}
		}

		if !s.hasExtension(path) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		if fi.Size() > s.maxFileSize {
			s.logger.Warn("skipping large knowledge file", "path", relPath, "size", fi.Size(), "max", s.maxFileSize)
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		docs = append(docs, domain.Document{ID: relPath, Text: string(content)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk knowledge directory: %w", err)
	}

	s.logger.Debug("loaded knowledge documents", "root", s.root, "documents", len(docs))
	return docs, nil
}

func (s *KnowledgeSource) loadIgnoreFiles() []*ignore.GitIgnore {
	var matchers []*ignore.GitIgnore
	for _, name := range ignoreFiles {
		path := filepath.Join(s.root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		m, err := ignore.CompileIgnoreFile(path)
		if err != nil {
			s.logger.Warn("invalid ignore file", "path", path, "error", err)
			continue
		}
		matchers = append(matchers, m)
	}
	return matchers
}

func (s *KnowledgeSource) hasExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range s.extensions {
		if ext == want {
			return true
		}
	}
	return false
}
