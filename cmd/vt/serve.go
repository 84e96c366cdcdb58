package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harvestlink/traceledger/internal/actors"
	"github.com/harvestlink/traceledger/internal/anomaly"
	"github.com/harvestlink/traceledger/internal/archive"
	"github.com/harvestlink/traceledger/internal/config"
	"github.com/harvestlink/traceledger/internal/events"
	"github.com/harvestlink/traceledger/internal/server"
	"github.com/harvestlink/traceledger/internal/store/postgres"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the traceability ledger server",
	// Override PersistentPreRunE so we don't create an HTTP API client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		st, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (TRACE_NATS_URL not set)")
		}

		var resolver *actors.Resolver
		if cfg.ProfileURL != "" {
			dir := actors.NewHTTPDirectory(cfg.ProfileURL, cfg.ProfileToken)
			resolver = actors.NewResolver(dir, actors.DefaultChunkSize, logger)
			logger.Info("profile directory enabled", "url", cfg.ProfileURL)
		}

		ledgerServer := server.NewLedgerServer(st, publisher, resolver, logger)

		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: ledgerServer.NewHTTPHandler(cfg.AuthToken),
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start the archive scheduler if a destination is configured.
		var scheduler *archive.Scheduler
		if cfg.ArchiveInterval > 0 && cfg.ArchiveS3Bucket != "" {
			s3Dest, err := archive.NewS3Destination(
				context.Background(),
				cfg.ArchiveS3Bucket,
				cfg.ArchiveS3Key,
				cfg.ArchiveS3Region,
				cfg.ArchiveS3Endpoint,
			)
			if err != nil {
				logger.Error("failed to create S3 archive destination", "err", err)
			} else {
				scheduler = archive.NewScheduler(st, []archive.Destination{s3Dest}, cfg.ArchiveInterval, logger)
				scheduler.Start()
				logger.Info("archive scheduler started",
					"interval", cfg.ArchiveInterval, "bucket", cfg.ArchiveS3Bucket, "key", cfg.ArchiveS3Key)
			}
		}

		// Start the anomaly subscriber when both NATS and a scorer are available.
		var anomalyCancel context.CancelFunc
		if cfg.NATSURL != "" && cfg.ScorerURL != "" {
			sub, err := events.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.Error("failed to create anomaly subscriber", "err", err)
			} else {
				handler := anomaly.NewHandler(st, anomaly.NewHTTPScorer(cfg.ScorerURL), publisher, logger)
				var anomalyCtx context.Context
				anomalyCtx, anomalyCancel = context.WithCancel(context.Background())
				go func() {
					if err := handler.StartSubscriber(anomalyCtx, sub); err != nil {
						logger.Error("anomaly subscriber error", "err", err)
					}
					sub.Close()
				}()
				logger.Info("anomaly subscriber started", "scorer_url", cfg.ScorerURL)
			}
		}

		logger.Info("traceledger server started", "http_addr", cfg.HTTPAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if anomalyCancel != nil {
			anomalyCancel()
			logger.Info("anomaly subscriber stopped")
		}
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("archive scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
