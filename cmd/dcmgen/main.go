// dcmgen fabricates synthetic DICOM files suitable for exercising the
// ingest endpoint locally: fresh UIDs, the mandatory clinical tags, and a
// small 16-bit gradient pixel payload.
//
//	go run ./cmd/dcmgen -out=./testdicom -count=3 -patient=PAT-001 -study=100001
package main

import (
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const (
	transferSyntaxExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
	sopClassSecondaryCapture             = "1.2.840.10008.5.1.4.1.1.7"
)

// newUID derives a DICOM UID under the 2.25 UUID root.
func newUID() string {
	u := uuid.New()
	var n big.Int
	n.SetBytes(u[:])
	return "2.25." + n.String()
}

// patientAge formats the age at study time the way the tag expects, e.g. "042Y".
func patientAge(studyDate, birthDate string) string {
	const layout = "20060102"
	s, err1 := time.Parse(layout, studyDate)
	b, err2 := time.Parse(layout, birthDate)
	if err1 != nil || err2 != nil {
		return "000Y"
	}
	age := s.Year() - b.Year()
	if s.Month() < b.Month() || (s.Month() == b.Month() && s.Day() < b.Day()) {
		age--
	}
	return fmt.Sprintf("%03dY", age)
}

func mustElement(t tag.Tag, data interface{}) *dicom.Element {
	el, err := dicom.NewElement(t, data)
	if err != nil {
		log.Fatalf("NewElement(%v): %v", t, err)
	}
	return el
}

// gradientFrame builds a rows x cols 16-bit ramp so min-max normalization
// has something to chew on.
func gradientFrame(rows, cols int) frame.INativeFrame {
	nf := frame.NewNativeFrame[uint16](16, rows, cols, rows*cols, 1)
	for i := range nf.RawData {
		nf.RawData[i] = uint16(i % 4096)
	}
	return nf
}

func buildDataset(studyID, studyUID, sopUID, patientID, birthDate, studyDate, sex, laterality string, rows, cols int) dicom.Dataset {
	return dicom.Dataset{Elements: []*dicom.Element{
		mustElement(tag.MediaStorageSOPClassUID, []string{sopClassSecondaryCapture}),
		mustElement(tag.MediaStorageSOPInstanceUID, []string{sopUID}),
		mustElement(tag.TransferSyntaxUID, []string{transferSyntaxExplicitVRLittleEndian}),

		mustElement(tag.SOPClassUID, []string{sopClassSecondaryCapture}),
		mustElement(tag.SOPInstanceUID, []string{sopUID}),
		mustElement(tag.StudyDate, []string{studyDate}),
		mustElement(tag.PatientID, []string{patientID}),
		mustElement(tag.PatientBirthDate, []string{birthDate}),
		mustElement(tag.PatientSex, []string{sex}),
		mustElement(tag.PatientAge, []string{patientAge(studyDate, birthDate)}),
		mustElement(tag.StudyInstanceUID, []string{studyUID}),
		mustElement(tag.StudyID, []string{studyID}),
		mustElement(tag.Laterality, []string{laterality}),

		mustElement(tag.SamplesPerPixel, []int{1}),
		mustElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		mustElement(tag.Rows, []int{rows}),
		mustElement(tag.Columns, []int{cols}),
		mustElement(tag.BitsAllocated, []int{16}),
		mustElement(tag.BitsStored, []int{16}),
		mustElement(tag.HighBit, []int{15}),
		mustElement(tag.PixelRepresentation, []int{0}),
		mustElement(tag.PixelData, dicom.PixelDataInfo{
			Frames: []*frame.Frame{
				{Encapsulated: false, NativeData: gradientFrame(rows, cols)},
			},
		}),
	}}
}

func main() {
	var (
		outDir     = flag.String("out", "testdicom", "output directory")
		count      = flag.Int("count", 1, "number of files to generate")
		studyID    = flag.String("study", "100001", "StudyID shared by all generated files")
		patientID  = flag.String("patient", "PAT-001", "PatientID")
		birthDate  = flag.String("birth", "19840321", "PatientBirthDate (yyyymmdd)")
		studyDate  = flag.String("date", "20250110", "StudyDate (yyyymmdd)")
		sex        = flag.String("sex", "F", "PatientSex")
		laterality = flag.String("laterality", "R", "Laterality")
		rows       = flag.Int("rows", 64, "pixel rows")
		cols       = flag.Int("cols", 64, "pixel columns")
	)
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("mkdir %s: %v", *outDir, err)
	}

	studyUID := newUID()
	for i := 0; i < *count; i++ {
		sopUID := newUID()
		ds := buildDataset(*studyID, studyUID, sopUID, *patientID, *birthDate, *studyDate, *sex, *laterality, *rows, *cols)

		path := filepath.Join(*outDir, fmt.Sprintf("%s_%d.dcm", *studyID, i+1))
		f, err := os.Create(path)
		if err != nil {
			log.Fatalf("create %s: %v", path, err)
		}
		if err := dicom.Write(f, ds); err != nil {
			_ = f.Close()
			log.Fatalf("write %s: %v", path, err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("close %s: %v", path, err)
		}

		fmt.Printf("wrote %s\n", path)
		fmt.Printf("  StudyID:          %s\n", *studyID)
		fmt.Printf("  StudyInstanceUID: %s\n", studyUID)
		fmt.Printf("  SOPInstanceUID:   %s\n", sopUID)
	}
}
