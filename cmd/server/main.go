// Package main provides the entry point for the fan voting backend.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/api"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/config"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/contract"
	dbpkg "github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/db"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/explorer"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/logger"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/pricing"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/projector"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/scheduler"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/store"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/syncer"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/tui"
)

func main() {
	// Try to load .env from CWD if present; otherwise use environment as-is
	if _, statErr := os.Stat(".env"); statErr == nil {
		_ = godotenv.Load(".env")
	}

	cfg := config.Load()

	// When the dashboard owns the terminal, logs go to a file instead
	var logWriter io.Writer = os.Stderr
	if cfg.Dashboard {
		logFile, err := os.OpenFile("server.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			logWriter = logFile
			fmt.Fprintf(os.Stderr, "Logs written to server.log\n")
		} else {
			fmt.Fprintf(os.Stderr, "Warning: failed to open log file, logs will go to stderr (may interfere with dashboard): %v\n", err)
		}
	}
	log := logger.NewWithWriter(cfg.LogLevel, logWriter)

	log.Infof("config loaded: %s", cfg.DebugString())

	gormDB, err := dbpkg.Open(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if gormDB == nil {
		log.Fatalf("DATABASE_URL is required")
	}
	if err := dbpkg.AutoMigrate(gormDB); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	log.Infow("database ready")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	chain, err := contract.Dial(ctx, cfg.RPCURL, cfg.ContractAddress, cfg.HTTPTimeout)
	if err != nil {
		log.Fatalf("failed to connect chain RPC: %v", err)
	}
	defer chain.Close()

	st, err := store.New(gormDB, cfg.DedupCacheSize, log)
	if err != nil {
		log.Fatalf("failed to init vote store: %v", err)
	}
	proj := projector.New(gormDB, log)
	feed := explorer.NewClient(cfg.EtherscanAPIURL, cfg.EtherscanAPIKey,
		cfg.ChainID, cfg.ContractAddress, cfg.HTTPTimeout)

	var updateCh chan interface{}
	if cfg.Dashboard {
		updateCh = make(chan interface{}, syncer.UpdateChannelBuffer)
		go func() {
			if err := tui.Run(updateCh); err != nil {
				log.Errorw("dashboard error", "err", err)
			}
			cancel()
		}()
	}

	sync := syncer.New(cfg, gormDB, st, proj, feed, chain, log, updateCh)
	oracle := pricing.NewSpotOracle(cfg.HTTPTimeout, log)
	tracker := pricing.NewCollectibleTracker(gormDB, cfg.HTTPTimeout, log)

	if cfg.ResetOnStart {
		if err := sync.Reset(ctx); err != nil {
			log.Fatalf("startup reset failed: %v", err)
		}
	} else if err := sync.SeedTeams(ctx); err != nil {
		log.Warnw("team seed failed, names fall back to ids", "err", err)
	}

	// Initial pass before the periodic loops take over
	if err := sync.ReconcileAll(ctx); err != nil {
		log.Warnw("initial reconciliation failed, sweep will retry", "err", err)
	}
	if err := sync.SyncStatus(ctx); err != nil {
		log.Warnw("initial status sync failed", "err", err)
	}
	if err := tracker.Refresh(ctx); err != nil {
		log.Warnw("initial price refresh failed", "err", err)
	}

	gate := scheduler.NewGate(cfg.MaxWorkers)
	sched := scheduler.New(gate, log)
	sched.Start(ctx, "status-sync", cfg.StatusSyncInterval, cfg.SyncJitter, sync.SyncStatus)
	sched.Start(ctx, "vote-sync", cfg.TxSyncInterval, cfg.SyncJitter, sync.SyncVotes)
	sched.Start(ctx, "price-sync", cfg.PriceSyncInterval, cfg.SyncJitter, tracker.Refresh)

	ctler := api.NewController(cfg, gormDB, st, proj, sync, oracle, tracker, log)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.WithCORS(ctler.NewRouter()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("http server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("http server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Infow("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("http shutdown", "err", err)
	}

	sched.Wait()
	if updateCh != nil {
		close(updateCh)
		time.Sleep(200 * time.Millisecond)
	}
	_ = log.Sync()
}
