package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"cloud.google.com/go/storage"

	"fundusvault-rest/predictor"
)

func main() {
	cfg := LoadConfig()

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := openDatabase(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatalw("failed to open catalog database", "error", err)
	}
	logger.Infow("database tables checked/created")

	ctx := context.Background()

	// Two blob namespaces: raw DICOM files and extracted previews. Either
	// both on local disk or both in the configured GCS bucket.
	var rawStore, previewStore BlobStore
	if cfg.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			logger.Fatalw("failed to init GCS storage client", "error", err)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warnw("error closing storage client", "error", err)
			}
		}()
		rawStore = newGCSBlobStore(client, cfg.GCSBucket, "dicom")
		previewStore = newGCSBlobStore(client, cfg.GCSBucket, "image")
		logger.Infow("blob storage on GCS", "bucket", cfg.GCSBucket)
	} else {
		rawStore, err = newDiskBlobStore(filepath.Join(cfg.StorageRoot, "dicom"))
		if err != nil {
			logger.Fatalw("failed to init raw blob store", "error", err)
		}
		previewStore, err = newDiskBlobStore(filepath.Join(cfg.StorageRoot, "image"))
		if err != nil {
			logger.Fatalw("failed to init preview blob store", "error", err)
		}
		logger.Infow("blob storage on local disk", "root", cfg.StorageRoot)
	}

	catalog := NewCatalog(db, logger)
	extractor := NewPixelExtractor(previewStore, logger)
	scorer := NewPredictScorer(predictor.NewClient(cfg.ScoringURL, cfg.ScoringTimeout), logger)
	ingestor := NewIngestor(rawStore, extractor, scorer, catalog, logger)

	h := &Handlers{
		Cfg:      cfg,
		Catalog:  catalog,
		Ingestor: ingestor,
		Log:      logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/dicom-web/study", h.StudyCollectionHandler)
	mux.HandleFunc("/dicom-web/study/", h.StudyByIDHandler)
	mux.HandleFunc("/dicom-web/patient/", h.PatientByIDHandler)
	mux.HandleFunc("/healthz", h.HealthHandler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: withCORS(mux),
	}

	go func() {
		logger.Infow("FundusVault REST server listening",
			"addr", cfg.ListenAddr, "scoring_url", cfg.ScoringURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Infow("shutting down server")
	if err := server.Shutdown(context.Background()); err != nil {
		logger.Warnw("server shutdown error", "error", err)
	}
}
