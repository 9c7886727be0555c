package main

import (
	"context"

	"go.uber.org/zap"
)

const dicomMediaType = "application/dicom"

// uploadedFile is one file of an ingest request, in declared order.
type uploadedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// fileState tracks how far one file progressed through the pipeline.
// A batch aborts at the first decode/validation failure; files already
// committed stay committed.
type fileState int

const (
	statePending fileState = iota
	stateValidated
	stateStored
	stateScored
	stateIndexed
	stateCommitted
	stateAborted
)

func (s fileState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateValidated:
		return "validated"
	case stateStored:
		return "stored"
	case stateScored:
		return "scored"
	case stateIndexed:
		return "indexed"
	case stateCommitted:
		return "committed"
	case stateAborted:
		return "aborted"
	}
	return "unknown"
}

// Ingestor drives one upload request's files through decode, validation,
// blob persistence, preview extraction, scoring, and the catalog upsert,
// strictly in input order with one committed transaction per file.
type Ingestor struct {
	raw       BlobStore
	extractor *PixelExtractor
	scorer    Scorer
	catalog   *Catalog
	log       *zap.SugaredLogger
}

func NewIngestor(raw BlobStore, extractor *PixelExtractor, scorer Scorer, catalog *Catalog, log *zap.SugaredLogger) *Ingestor {
	return &Ingestor{raw: raw, extractor: extractor, scorer: scorer, catalog: catalog, log: log}
}

// ProcessBatch ingests files in order. pathStudyID is the study identifier
// from the URL path, or empty for the flat variant where each file must
// carry its own StudyID. On error the returned slice still holds the
// results of every file committed before the abort.
func (ing *Ingestor) ProcessBatch(ctx context.Context, pathStudyID string, files []uploadedFile) ([]StoredFileInfo, error) {
	stored := make([]StoredFileInfo, 0, len(files))

	for _, file := range files {
		info, err := ing.processFile(ctx, pathStudyID, file)
		if err != nil {
			return stored, err
		}
		stored = append(stored, info)
	}

	return stored, nil
}

func (ing *Ingestor) processFile(ctx context.Context, pathStudyID string, file uploadedFile) (StoredFileInfo, error) {
	state := statePending
	fail := func(err error) (StoredFileInfo, error) {
		ing.log.Warnw("file aborted ingest batch",
			"file", file.Name, "reached", state.String(), "error", err)
		state = stateAborted
		return StoredFileInfo{}, err
	}

	if file.ContentType != dicomMediaType {
		return fail(errUnsupportedMediaType(file.Name))
	}

	ds, err := decodeDataset(file.Name, file.Data)
	if err != nil {
		return fail(err)
	}

	rec, err := extractRecord(&ds, file.Name)
	if err != nil {
		return fail(err)
	}

	studyID := pathStudyID
	if pathStudyID != "" {
		if rec.StudyID != pathStudyID {
			return fail(errIdentifierMismatch(file.Name, pathStudyID, rec.StudyID))
		}
	} else {
		if rec.StudyID == "" {
			return fail(errMissingField(file.Name, "StudyID (0020,0010)"))
		}
		studyID = rec.StudyID
	}
	state = stateValidated

	storedName := rec.ImageUID + ".dcm"
	blobPath, createdBlob, err := ing.raw.Put(ctx, storedName, file.Data)
	if err != nil {
		return fail(errPersistence(file.Name, err))
	}
	if !createdBlob {
		ing.log.Warnw("raw file already stored, skipping write but processing catalog",
			"file", file.Name, "image_uid", rec.ImageUID)
	}
	state = stateStored

	preview := ing.extractor.Extract(ctx, &ds, rec.ImageUID, file.Name)

	score := 0.0
	if preview != nil {
		score = ing.scorer.Score(ctx, rec.ImageUID+".png", preview.PNG)
	} else {
		ing.log.Infow("no preview available, using default score", "file", file.Name)
	}
	state = stateScored

	imageKey, err := ing.catalog.UpsertFile(ctx, upsertInput{
		StudyID:  studyID,
		Record:   rec,
		Score:    &score,
		BlobPath: blobPath,
	})
	if err != nil {
		return fail(errPersistence(file.Name, err))
	}
	state = stateIndexed

	// UpsertFile's transaction committed; from here nothing can roll this
	// file back.
	state = stateCommitted
	ing.log.Infow("file ingested",
		"file", file.Name, "image_uid", rec.ImageUID, "study_id", studyID,
		"score", score, "state", state.String())

	return StoredFileInfo{ImageKey: imageKey, FileName: storedName, Score: &score}, nil
}
