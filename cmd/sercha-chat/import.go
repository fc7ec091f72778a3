package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-chat/internal/adapters/driven/filesystem"
	"github.com/custodia-labs/sercha-chat/internal/config"
	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// documentWriter is implemented by the database-backed knowledge sources
type documentWriter interface {
	LoadDocuments(ctx context.Context) ([]domain.Document, error)
	SaveBatch(ctx context.Context, docs []domain.Document) error
	Delete(ctx context.Context, id string) error
}

var (
	importDir   string
	importPrune bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy a directory of documents into the configured database backend",
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&importDir, "dir", "", "directory to import (defaults to knowledge.dir)")
	importCmd.Flags().BoolVar(&importPrune, "prune", false, "delete stored documents that are not in the directory")
}

func runImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Knowledge.Backend == config.BackendFilesystem {
		return fmt.Errorf("import needs knowledge.backend %q or %q", config.BackendPostgres, config.BackendSQLite)
	}

	dir := importDir
	if dir == "" {
		dir = cfg.Knowledge.Dir
	}
	docs, err := filesystem.NewKnowledgeSource(filesystem.Config{
		Root:        dir,
		Extensions:  cfg.Knowledge.Extensions,
		MaxFileSize: cfg.Knowledge.MaxFileSize,
		Logger:      logger,
	}).LoadDocuments(ctx)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	writer, ok := a.source.(documentWriter)
	if !ok {
		return fmt.Errorf("knowledge backend %s is read-only", a.source.Name())
	}
	if err := writer.SaveBatch(ctx, docs); err != nil {
		return fmt.Errorf("save documents: %w", err)
	}
	log.Printf("Imported %d documents from %s into %s", len(docs), dir, a.source.Name())

	if importPrune {
		pruned, err := pruneDocuments(ctx, writer, docs)
		if err != nil {
			return err
		}
		log.Printf("Pruned %d documents no longer in %s", pruned, dir)
	}
	return nil
}

// pruneDocuments deletes every stored document whose ID is not in keep
func pruneDocuments(ctx context.Context, store documentWriter, keep []domain.Document) (int, error) {
	ids := make(map[string]struct{}, len(keep))
	for _, doc := range keep {
		ids[doc.ID] = struct{}{}
	}

	stored, err := store.LoadDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("load stored documents: %w", err)
	}

	pruned := 0
	for _, doc := range stored {
		if _, ok := ids[doc.ID]; ok {
			continue
		}
		if err := store.Delete(ctx, doc.ID); err != nil {
			return pruned, fmt.Errorf("delete document %s: %w", doc.ID, err)
		}
		pruned++
	}
	return pruned, nil
}
