package main

import (
	"context"
	"errors"
	"testing"
)

func newTestIngestor(t *testing.T, scorer Scorer) (*Ingestor, *Catalog, *diskBlobStore) {
	t.Helper()
	raw := newTestBlobStore(t)
	previews := newTestBlobStore(t)
	catalog, _ := newTestCatalog(t)
	extractor := NewPixelExtractor(previews, testLogger())
	return NewIngestor(raw, extractor, scorer, catalog, testLogger()), catalog, raw
}

func uploadFor(t *testing.T, name string, spec datasetSpec) uploadedFile {
	t.Helper()
	return uploadedFile{Name: name, ContentType: dicomMediaType, Data: spec.encode(t)}
}

func withPixels(spec datasetSpec) datasetSpec {
	spec.Pixels = []int{0, 100, 200, 300}
	spec.Rows, spec.Cols, spec.Bits = 2, 2, 16
	return spec
}

func TestProcessBatchHappyPath(t *testing.T) {
	scorer := &fixedScorer{score: 0.75}
	ing, catalog, raw := newTestIngestor(t, scorer)

	a := withPixels(defaultSpec())
	b := withPixels(defaultSpec())
	b.ImageUID = "2.25.333"
	b.Laterality = "L"

	stored, err := ing.ProcessBatch(context.Background(), "", []uploadedFile{
		uploadFor(t, "a.dcm", a),
		uploadFor(t, "b.dcm", b),
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d files, want 2", len(stored))
	}

	if stored[0].FileName != a.ImageUID+".dcm" || stored[1].FileName != b.ImageUID+".dcm" {
		t.Errorf("stored names = %q, %q; want UID-derived order preserved",
			stored[0].FileName, stored[1].FileName)
	}
	for i, s := range stored {
		if s.Score == nil || *s.Score != 0.75 {
			t.Errorf("stored[%d].Score = %v, want 0.75", i, s.Score)
		}
		if s.ImageKey == 0 {
			t.Errorf("stored[%d].ImageKey = 0", i)
		}
	}
	if len(scorer.calls) != 2 {
		t.Errorf("scorer called %d times, want 2", len(scorer.calls))
	}

	for _, uid := range []string{a.ImageUID, b.ImageUID} {
		ok, err := raw.Exists(context.Background(), uid+".dcm")
		if err != nil || !ok {
			t.Errorf("raw blob %s.dcm: ok=%v err=%v", uid, ok, err)
		}
	}

	study, err := catalog.GetStudy(context.Background(), a.StudyID)
	if err != nil || study == nil {
		t.Fatalf("GetStudy: study=%v err=%v", study, err)
	}
	if len(study.Images) != 2 {
		t.Errorf("catalog holds %d images, want 2", len(study.Images))
	}
}

// The batch aborts at the first bad file, keeping everything committed
// before it and touching nothing after it.
func TestProcessBatchAbortsMidBatch(t *testing.T) {
	ing, catalog, _ := newTestIngestor(t, &fixedScorer{score: 0.5})

	good := defaultSpec()
	bad := defaultSpec()
	bad.ImageUID = "2.25.333"
	bad.Sex = ""
	never := defaultSpec()
	never.ImageUID = "2.25.444"

	stored, err := ing.ProcessBatch(context.Background(), "", []uploadedFile{
		uploadFor(t, "good.dcm", good),
		uploadFor(t, "bad.dcm", bad),
		uploadFor(t, "never.dcm", never),
	})

	var ingErr *IngestError
	if !errors.As(err, &ingErr) {
		t.Fatalf("error = %v, want *IngestError", err)
	}
	if ingErr.Kind != ErrMissingField || ingErr.FileName != "bad.dcm" {
		t.Errorf("error = %+v, want ErrMissingField on bad.dcm", ingErr)
	}
	if len(stored) != 1 {
		t.Fatalf("stored %d files, want exactly the one before the failure", len(stored))
	}
	if stored[0].FileName != good.ImageUID+".dcm" {
		t.Errorf("stored[0].FileName = %q, want %q", stored[0].FileName, good.ImageUID+".dcm")
	}

	study, err2 := catalog.GetStudy(context.Background(), good.StudyID)
	if err2 != nil || study == nil {
		t.Fatalf("GetStudy: study=%v err=%v", study, err2)
	}
	if len(study.Images) != 1 {
		t.Errorf("catalog holds %d images, want only the committed one", len(study.Images))
	}
	for _, img := range study.Images {
		if img.ImageUID != good.ImageUID {
			t.Errorf("unexpected image %q survived the abort", img.ImageUID)
		}
	}
}

func TestProcessBatchRejectsWrongMediaType(t *testing.T) {
	ing, _, _ := newTestIngestor(t, &fixedScorer{})

	_, err := ing.ProcessBatch(context.Background(), "", []uploadedFile{
		{Name: "a.pdf", ContentType: "application/pdf", Data: []byte("x")},
	})

	var ingErr *IngestError
	if !errors.As(err, &ingErr) {
		t.Fatalf("error = %v, want *IngestError", err)
	}
	if ingErr.Kind != ErrUnsupportedMediaType {
		t.Errorf("Kind = %v, want ErrUnsupportedMediaType", ingErr.Kind)
	}
	if ingErr.HTTPStatus() != 415 {
		t.Errorf("HTTPStatus = %d, want 415", ingErr.HTTPStatus())
	}
}

func TestProcessBatchPathVariantMismatch(t *testing.T) {
	ing, _, _ := newTestIngestor(t, &fixedScorer{})
	spec := defaultSpec() // StudyID 100001

	_, err := ing.ProcessBatch(context.Background(), "999999", []uploadedFile{
		uploadFor(t, "a.dcm", spec),
	})

	var ingErr *IngestError
	if !errors.As(err, &ingErr) {
		t.Fatalf("error = %v, want *IngestError", err)
	}
	if ingErr.Kind != ErrIdentifierMismatch {
		t.Errorf("Kind = %v, want ErrIdentifierMismatch", ingErr.Kind)
	}
	if ingErr.Path != "999999" || ingErr.Payload != spec.StudyID {
		t.Errorf("mismatch values = %q vs %q, want 999999 vs %s", ingErr.Path, ingErr.Payload, spec.StudyID)
	}
}

func TestProcessBatchFlatVariantNeedsStudyID(t *testing.T) {
	ing, _, _ := newTestIngestor(t, &fixedScorer{})
	spec := defaultSpec()
	spec.StudyID = ""

	_, err := ing.ProcessBatch(context.Background(), "", []uploadedFile{
		uploadFor(t, "a.dcm", spec),
	})

	var ingErr *IngestError
	if !errors.As(err, &ingErr) {
		t.Fatalf("error = %v, want *IngestError", err)
	}
	if ingErr.Kind != ErrMissingField || ingErr.Field != "StudyID (0020,0010)" {
		t.Errorf("error = %+v, want missing StudyID", ingErr)
	}
}

// A file the path variant accepts is identical to one the flat variant
// accepts; only the StudyID source differs.
func TestProcessBatchPathVariantMatch(t *testing.T) {
	ing, catalog, _ := newTestIngestor(t, &fixedScorer{score: 0.4})
	spec := defaultSpec()

	stored, err := ing.ProcessBatch(context.Background(), spec.StudyID, []uploadedFile{
		uploadFor(t, "a.dcm", spec),
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored %d files, want 1", len(stored))
	}

	study, err := catalog.GetStudy(context.Background(), spec.StudyID)
	if err != nil || study == nil {
		t.Fatalf("GetStudy: study=%v err=%v", study, err)
	}
}

func TestProcessBatchReingestUpdatesScoreOnly(t *testing.T) {
	scorer := &fixedScorer{score: 0.2}
	ing, catalog, _ := newTestIngestor(t, scorer)
	spec := withPixels(defaultSpec())

	first, err := ing.ProcessBatch(context.Background(), "", []uploadedFile{uploadFor(t, "a.dcm", spec)})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	scorer.score = 0.8
	second, err := ing.ProcessBatch(context.Background(), "", []uploadedFile{uploadFor(t, "a.dcm", spec)})
	if err != nil {
		t.Fatalf("re-ingest: %v", err)
	}

	if first[0].ImageKey != second[0].ImageKey {
		t.Errorf("re-ingest image key = %d, want %d", second[0].ImageKey, first[0].ImageKey)
	}
	if *second[0].Score != 0.8 {
		t.Errorf("re-ingest score = %v, want 0.8", *second[0].Score)
	}

	study, err := catalog.GetStudy(context.Background(), spec.StudyID)
	if err != nil || study == nil {
		t.Fatalf("GetStudy: study=%v err=%v", study, err)
	}
	if len(study.Images) != 1 {
		t.Fatalf("catalog holds %d images after re-ingest, want 1", len(study.Images))
	}
	if s := study.Images[0].Score; s == nil || *s != 0.8 {
		t.Errorf("catalog score = %v, want 0.8", s)
	}
}

// Files without pixel data still ingest; they just never reach the scorer
// and carry the default score.
func TestProcessBatchNoPixelDataDefaultScore(t *testing.T) {
	scorer := &fixedScorer{score: 0.9}
	ing, _, _ := newTestIngestor(t, scorer)
	spec := defaultSpec() // no Pixels

	stored, err := ing.ProcessBatch(context.Background(), "", []uploadedFile{uploadFor(t, "a.dcm", spec)})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(scorer.calls) != 0 {
		t.Errorf("scorer called %d times for a file without pixel data, want 0", len(scorer.calls))
	}
	if s := stored[0].Score; s == nil || *s != 0 {
		t.Errorf("score = %v, want the default 0", s)
	}
}
