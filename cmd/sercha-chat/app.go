package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-chat/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-chat/internal/adapters/driven/filesystem"
	"github.com/custodia-labs/sercha-chat/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/sercha-chat/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-chat/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/sercha-chat/internal/config"
	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-chat/internal/core/services"
	"github.com/custodia-labs/sercha-chat/internal/postprocessors"
	"github.com/custodia-labs/sercha-chat/internal/runtime"
)

// app holds the wired adapters and services shared by every command
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db          *postgres.DB
	redisClient *redis.Client
	sqliteKB    *sqlite.KnowledgeSource

	source   driven.KnowledgeSource
	lock     driven.DistributedLock
	services *runtime.Services
	cache    *services.IndexCache

	settings  driving.SettingsService
	retrieval driving.RetrievalService
	chat      driving.ChatService
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	// ===== Infrastructure =====
	if cfg.Knowledge.Backend == config.BackendPostgres || cfg.Lock.Backend == config.LockPostgres {
		logger.Info("connecting to PostgreSQL")
		if a.db, err = postgres.Connect(ctx, postgres.DefaultConfig(cfg.Database.URL)); err != nil {
			return nil, err
		}
		if err = a.db.InitSchema(ctx); err != nil {
			return nil, err
		}
	}

	switch cfg.Lock.Backend {
	case config.LockRedis:
		logger.Info("connecting to Redis")
		if a.redisClient, err = redisadapter.NewClient(ctx, cfg.Redis.URL); err != nil {
			return nil, err
		}
		lock := redisadapter.NewLock(a.redisClient, redisadapter.WithKeyPrefix(cfg.Lock.KeyPrefix))
		logger.Info("rebuild lock ready", "backend", config.LockRedis, "owner", lock.OwnerID())
		a.lock = lock
	case config.LockPostgres:
		a.lock = postgres.NewAdvisoryLock(a.db)
	}

	switch cfg.Knowledge.Backend {
	case config.BackendFilesystem:
		a.source = filesystem.NewKnowledgeSource(filesystem.Config{
			Root:        cfg.Knowledge.Dir,
			Extensions:  cfg.Knowledge.Extensions,
			MaxFileSize: cfg.Knowledge.MaxFileSize,
			Logger:      logger,
		})
	case config.BackendPostgres:
		a.source = postgres.NewKnowledgeSource(a.db)
	case config.BackendSQLite:
		if a.sqliteKB, err = sqlite.Open(ctx, cfg.Knowledge.SQLitePath); err != nil {
			return nil, err
		}
		a.source = a.sqliteKB
	default:
		return nil, fmt.Errorf("unknown knowledge backend %q", cfg.Knowledge.Backend)
	}

	// ===== AI services =====
	a.services = runtime.NewServices(domain.NewRuntimeConfig(cfg.Knowledge.Backend, cfg.Lock.Backend))
	a.cache = services.NewIndexCache(services.IndexCacheConfig{
		Chunker:   postprocessors.DefaultPipeline(),
		Lock:      a.lock,
		Logger:    logger,
		BatchSize: cfg.Embedding.BatchSize,
		LockTTL:   cfg.Lock.TTL,
		LockWait:  cfg.Lock.Wait,
		LockPoll:  cfg.Lock.Poll,
	})

	factory := ai.NewFactory(ai.WithQueryCache(cfg.Embedding.QueryCacheSize, cfg.Embedding.QueryCacheTTL))
	a.settings = services.NewSettingsService(factory, a.services, logger, services.WithIndexInvalidator(a.cache))

	status, err := a.settings.ApplyAISettings(ctx, cfg.AISettings())
	if err != nil {
		return nil, fmt.Errorf("apply AI settings: %w", err)
	}
	logStatus(logger, status)

	// ===== Core services =====
	a.retrieval = services.NewRetrievalService(services.RetrievalServiceConfig{
		Embedders: a.services,
		Cache:     a.cache,
		Source:    a.source,
		ChunkSize: cfg.Retrieval.ChunkSize,
		TopK:      cfg.Retrieval.TopK,
		Logger:    logger,
	})
	a.chat = services.NewChatService(services.ChatServiceConfig{
		Services:    a.services,
		Retrieval:   a.retrieval,
		Assembler:   services.NewContextAssembler(cfg.Retrieval.MaxContextChars),
		Temperature: cfg.Chat.Temperature,
		MaxTokens:   cfg.Chat.MaxTokens,
		TopK:        cfg.Retrieval.TopK,
		Logger:      logger,
	})

	return a, nil
}

// reload re-reads the config and hot-swaps the AI services. Other sections
// need a restart.
func (a *app) reload(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	status, err := a.settings.ApplyAISettings(ctx, cfg.AISettings())
	if err != nil {
		return err
	}
	logStatus(a.logger, status)
	return nil
}

// Close releases every connection the app opened
func (a *app) Close() error {
	var errs []error
	if a.services != nil {
		errs = append(errs, a.services.Close())
	}
	if a.sqliteKB != nil {
		errs = append(errs, a.sqliteKB.Close())
	}
	if a.redisClient != nil {
		errs = append(errs, a.redisClient.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func logStatus(logger *slog.Logger, status *driving.AISettingsStatus) {
	if status == nil {
		return
	}
	for name, s := range map[string]driving.AIServiceStatus{"embedding": status.Embedding, "chat": status.LLM} {
		switch {
		case s.Error != "":
			logger.Warn("AI service unavailable", "service", name, "provider", s.Provider, "error", s.Error)
		case s.Available:
			logger.Info("AI service ready", "service", name, "provider", s.Provider, "model", s.Model)
		default:
			logger.Warn("AI service not configured", "service", name)
		}
	}
	logger.Info("chat mode", "mode", status.EffectiveMode)
}
