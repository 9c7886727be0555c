package main

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds service configuration. Everything comes from environment
// variables with sensible local-dev defaults, using the same names as the
// original deployment where it makes sense so env setup can be reused.
type Config struct {
	ListenAddr  string
	DatabaseDSN string

	// StorageRoot is the local directory holding the two blob namespaces,
	// <root>/dicom for raw files and <root>/image for extracted previews.
	StorageRoot string

	// GCSBucket, when set, switches blob persistence from local disk to a
	// GCS bucket using the same two namespaces as object prefixes.
	GCSBucket string

	ScoringURL     string
	ScoringTimeout time.Duration
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() Config {
	addr := os.Getenv("FUNDUSVAULT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		// Matches the compose setup the original service shipped with.
		dsn = "postgres://postgres:postgres@db:5432/postgres?sslmode=disable"
	}

	storageRoot := os.Getenv("FUNDUSVAULT_STORAGE_DIR")
	if storageRoot == "" {
		storageRoot = filepath.Join(".", "storage")
	}

	scoringURL := os.Getenv("FUNDUSVAULT_SCORING_URL")
	if scoringURL == "" {
		scoringURL = "http://apitest.mediwhale.net/predict"
	}

	timeout := 30 * time.Second
	if raw := os.Getenv("FUNDUSVAULT_SCORING_TIMEOUT_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}

	return Config{
		ListenAddr:     addr,
		DatabaseDSN:    dsn,
		StorageRoot:    storageRoot,
		GCSBucket:      os.Getenv("FUNDUSVAULT_GCS_BUCKET"),
		ScoringURL:     scoringURL,
		ScoringTimeout: timeout,
	}
}
