// Command chunkstored serves resumable chunked uploads over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitrise-io/go-chunkstore/chunkstore"
	"github.com/bitrise-io/go-chunkstore/chunkstore/s3store"
	"github.com/bitrise-io/go-chunkstore/config"
	"github.com/bitrise-io/go-chunkstore/coordinator"
	"github.com/bitrise-io/go-chunkstore/internal"
	"github.com/bitrise-io/go-chunkstore/ledger"
	"github.com/bitrise-io/go-chunkstore/resume"
	"github.com/bitrise-io/go-chunkstore/server"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	_ "github.com/joho/godotenv/autoload"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := log.NewLogger()
	if err := run(logger); err != nil {
		logger.Errorf("%s", err)
		os.Exit(1)
	}
}

func run(logger log.Logger) error {
	cfg, err := config.Load(env.NewRepository(), pathutil.NewPathModifier())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.EnableDebugLog(cfg.Verbose)
	cfg.Print(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	totals, err := ledger.OpenSQLite(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := totals.Close(); err != nil {
			logger.Warnf("Failed to close ledger: %s", err)
		}
	}()

	coord := coordinator.New(store, totals, logger)
	srv := server.New(coord, resume.NewQuery(store), store, cfg.MaxChunkSize, logger)

	if cfg.StaleAfter > 0 {
		go runReaper(ctx, coord, cfg.ReapInterval, cfg.StaleAfter, logger)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	logger.Infof("Listening on %s", cfg.Addr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Donef("Stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger log.Logger) (chunkstore.Store, error) {
	switch cfg.Backend {
	case config.BackendS3:
		awsConfig, err := s3store.LoadAWSConfig(ctx, cfg.S3.Region, cfg.S3.AccessKeyID, string(cfg.S3.SecretAccessKey), logger)
		if err != nil {
			return nil, err
		}
		store, err := s3store.NewFromAWSConfig(*awsConfig, s3store.Config{
			Bucket: cfg.S3.Bucket,
			Prefix: cfg.S3.Prefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		osProxy := internal.RealOS{}
		layout := cfg.Layout()
		if err := layout.Ensure(osProxy); err != nil {
			return nil, fmt.Errorf("prepare %s: %w", layout.Root, err)
		}
		return chunkstore.NewFileStore(layout, osProxy, logger), nil
	}
}

type reaper interface {
	ReapStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// runReaper abandons stale uploads every interval until ctx is done.
func runReaper(ctx context.Context, r reaper, interval, staleAfter time.Duration, logger log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reaped, err := r.ReapStale(ctx, staleAfter)
			if err != nil {
				logger.Warnf("Failed to reap stale uploads: %s", err)
				continue
			}
			if reaped > 0 {
				logger.Infof("Abandoned %d stale upload(s)", reaped)
			}
		}
	}
}
