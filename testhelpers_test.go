package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// datasetSpec describes a synthetic DICOM file for tests. Empty string
// fields are omitted from the dataset entirely, which is how the missing
// field cases are produced. Pixels of nil means no PixelData element.
type datasetSpec struct {
	StudyID    string
	StudyDate  string
	PatientID  string
	BirthDate  string
	Sex        string
	Laterality string
	Age        string

	StudyUID string
	ImageUID string

	Pixels []int
	Rows   int
	Cols   int
	Bits   int
}

func defaultSpec() datasetSpec {
	return datasetSpec{
		StudyID:    "100001",
		StudyDate:  "20250110",
		PatientID:  "PAT-001",
		BirthDate:  "19840321",
		Sex:        "F",
		Laterality: "R",
		Age:        "040Y",
		StudyUID:   "2.25.111",
		ImageUID:   "2.25.222",
	}
}

func mustNewElement(t *testing.T, tg tag.Tag, data interface{}) *dicom.Element {
	t.Helper()
	el, err := dicom.NewElement(tg, data)
	if err != nil {
		t.Fatalf("NewElement(%v): %v", tg, err)
	}
	return el
}

// grayFrame builds a single-sample native frame whose raw slice type matches
// the bit depth, as the writer requires.
func grayFrame(pixels []int, rows, cols, bits int) frame.INativeFrame {
	if bits == 8 {
		nf := frame.NewNativeFrame[uint8](8, rows, cols, rows*cols, 1)
		for i, v := range pixels {
			nf.RawData[i] = uint8(v)
		}
		return nf
	}
	nf := frame.NewNativeFrame[uint16](bits, rows, cols, rows*cols, 1)
	for i, v := range pixels {
		nf.RawData[i] = uint16(v)
	}
	return nf
}

// dataset builds the in-memory form, with file meta elements included so
// the same dataset can also be serialized with dicom.Write.
func (s datasetSpec) dataset(t *testing.T) dicom.Dataset {
	t.Helper()

	els := []*dicom.Element{
		mustNewElement(t, tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.7"}),
		mustNewElement(t, tag.MediaStorageSOPInstanceUID, []string{s.ImageUID}),
		mustNewElement(t, tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
		mustNewElement(t, tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.7"}),
		mustNewElement(t, tag.SOPInstanceUID, []string{s.ImageUID}),
	}

	appendStr := func(tg tag.Tag, v string) {
		if v != "" {
			els = append(els, mustNewElement(t, tg, []string{v}))
		}
	}

	appendStr(tag.StudyDate, s.StudyDate)
	appendStr(tag.PatientID, s.PatientID)
	appendStr(tag.PatientBirthDate, s.BirthDate)
	appendStr(tag.PatientSex, s.Sex)
	appendStr(tag.PatientAge, s.Age)
	appendStr(tag.StudyInstanceUID, s.StudyUID)
	appendStr(tag.StudyID, s.StudyID)
	appendStr(tag.Laterality, s.Laterality)

	if s.Pixels != nil {
		rows, cols, bits := s.Rows, s.Cols, s.Bits
		if rows == 0 || cols == 0 {
			t.Fatalf("datasetSpec with pixels needs Rows and Cols")
		}
		if bits == 0 {
			bits = 16
		}
		els = append(els,
			mustNewElement(t, tag.SamplesPerPixel, []int{1}),
			mustNewElement(t, tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
			mustNewElement(t, tag.Rows, []int{rows}),
			mustNewElement(t, tag.Columns, []int{cols}),
			mustNewElement(t, tag.BitsAllocated, []int{bits}),
			mustNewElement(t, tag.BitsStored, []int{bits}),
			mustNewElement(t, tag.HighBit, []int{bits - 1}),
			mustNewElement(t, tag.PixelRepresentation, []int{0}),
			mustNewElement(t, tag.PixelData, dicom.PixelDataInfo{
				Frames: []*frame.Frame{
					{Encapsulated: false, NativeData: grayFrame(s.Pixels, rows, cols, bits)},
				},
			}),
		)
	}

	return dicom.Dataset{Elements: els}
}

// encode serializes the dataset into the bytes an HTTP client would upload.
func (s datasetSpec) encode(t *testing.T) []byte {
	t.Helper()
	ds := s.dataset(t)
	var buf bytes.Buffer
	if err := dicom.Write(&buf, ds); err != nil {
		t.Fatalf("dicom.Write: %v", err)
	}
	return buf.Bytes()
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// openTestDB gives each test its own migrated SQLite catalog file.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := openDatabase(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("openDatabase: %v", err)
	}
	return db
}

func newTestBlobStore(t *testing.T) *diskBlobStore {
	t.Helper()
	store, err := newDiskBlobStore(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("newDiskBlobStore: %v", err)
	}
	return store
}

// fixedScorer returns the same score for every call and records what it saw.
type fixedScorer struct {
	score float64
	calls []string
}

func (s *fixedScorer) Score(_ context.Context, fileName string, _ []byte) float64 {
	s.calls = append(s.calls, fileName)
	return s.score
}
