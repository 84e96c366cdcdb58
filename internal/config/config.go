package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DatabaseURL string // TRACE_DATABASE_URL (required)
	HTTPAddr    string // TRACE_HTTP_ADDR (default ":8080")
	NATSURL     string // TRACE_NATS_URL (optional, empty = no events, no anomaly hook)
	AuthToken   string // TRACE_AUTH_TOKEN (optional, empty = auth disabled)

	// External collaborators
	ProfileURL   string // TRACE_PROFILE_URL (profile directory; empty = sentinel-only actors)
	ProfileToken string // TRACE_PROFILE_TOKEN (optional)
	ScorerURL    string // TRACE_SCORER_URL (anomaly scorer; empty = hook disabled)

	// Archive settings
	ArchiveInterval   time.Duration // TRACE_ARCHIVE_INTERVAL (default 15m; 0 = disabled)
	ArchiveS3Bucket   string        // TRACE_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string        // TRACE_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // TRACE_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Key      string        // TRACE_ARCHIVE_S3_KEY (default "traceledger/ledger.jsonl")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:       os.Getenv("TRACE_DATABASE_URL"),
		HTTPAddr:          envOrDefault("TRACE_HTTP_ADDR", ":8080"),
		NATSURL:           os.Getenv("TRACE_NATS_URL"),
		AuthToken:         os.Getenv("TRACE_AUTH_TOKEN"),
		ProfileURL:        os.Getenv("TRACE_PROFILE_URL"),
		ProfileToken:      os.Getenv("TRACE_PROFILE_TOKEN"),
		ScorerURL:         os.Getenv("TRACE_SCORER_URL"),
		ArchiveS3Bucket:   os.Getenv("TRACE_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("TRACE_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("TRACE_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Key:      envOrDefault("TRACE_ARCHIVE_S3_KEY", "traceledger/ledger.jsonl"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("TRACE_DATABASE_URL is required")
	}

	intervalStr := envOrDefault("TRACE_ARCHIVE_INTERVAL", "15m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("TRACE_ARCHIVE_INTERVAL: %w", err)
		}
		c.ArchiveInterval = d
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
