package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpserver "github.com/custodia-labs/sercha-chat/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-chat/internal/core/services"
)

var warmOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP chat proxy",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&warmOnStart, "warm", false, "build the knowledge index before accepting requests")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	log.Printf("Starting Sercha Chat %s", version)
	log.Printf("  Knowledge backend: %s", cfg.Knowledge.Backend)
	if cfg.Lock.Backend != "" {
		log.Printf("  Rebuild lock: %s", cfg.Lock.Backend)
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()

	if warmOnStart {
		stats, err := a.retrieval.Warm(ctx)
		if err != nil {
			logger.Warn("initial index build failed", "error", err)
		} else {
			log.Printf("  Index: %d chunks from %d documents", stats.Chunks, stats.Documents)
		}
	}

	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.Server.Host
	serverCfg.Port = cfg.Server.Port
	serverCfg.Version = version
	serverCfg.AllowedOrigins = cfg.Server.AllowedOrigins
	serverCfg.MaxBodyBytes = cfg.Server.MaxBodyBytes
	serverCfg.Logger = logger

	if cfg.Retrieval.RefreshInterval > 0 {
		scheduler := services.NewScheduler(services.SchedulerConfig{
			Retrieval: a.retrieval,
			Embedders: a.services,
			Logger:    logger,
			Interval:  cfg.Retrieval.RefreshInterval,
		})
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer scheduler.Stop()
		serverCfg.Refresh = scheduler
		log.Printf("  Index refresh every %s", cfg.Retrieval.RefreshInterval)
	}

	go reloadOnHangup(ctx, a)

	// Typed nils must not reach the server as non-nil Pingers
	var dbPinger, redisPinger httpserver.Pinger
	if a.db != nil {
		dbPinger = a.db
	}
	if a.redisClient != nil {
		redisPinger = a.lock
	}

	server := httpserver.NewServer(serverCfg, a.chat, a.retrieval, a.settings, dbPinger, redisPinger)
	return server.Start(ctx)
}

// reloadOnHangup re-applies AI settings from the config on SIGHUP
func reloadOnHangup(ctx context.Context, a *app) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			a.logger.Info("reloading AI settings")
			if err := a.reload(ctx); err != nil {
				a.logger.Error("reload failed", "error", err)
			}
		}
	}
}
