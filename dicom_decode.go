package main

import (
	"bytes"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// dicomRecord is the validated metadata view of one uploaded file. The five
// mandatory fields are always populated; the rest are best-effort.
type dicomRecord struct {
	StudyID          string // mandatory in the flat ingest variant only
	StudyDate        string
	PatientID        string
	PatientBirthDate string
	PatientSex       string
	Laterality       string

	PatientAge *string
	StudyUID   string
	ImageUID   string
}

// decodeDataset parses raw upload bytes into a DICOM dataset. This is the
// single point where undecodable input turns into a DecodeError.
func decodeDataset(fileName string, content []byte) (dicom.Dataset, error) {
	ds, err := dicom.Parse(bytes.NewReader(content), int64(len(content)), nil)
	if err != nil {
		return dicom.Dataset{}, errDecode(fileName, err)
	}
	return ds, nil
}

// tagString extracts the first string value for the given tag, using
// dicom.MustGetStrings on the element's value so we get clean values like
// "R" or "1.2.840...." instead of the verbose Element.String() form.
func tagString(ds *dicom.Dataset, t tag.Tag) string {
	if ds == nil {
		return ""
	}
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return ""
	}
	vals := dicom.MustGetStrings(el.Value)
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

// extractRecord pulls the clinical metadata out of a decoded dataset and
// enforces presence of the mandatory fields. Variant-specific StudyID rules
// (path mismatch, flat presence) are applied by the caller.
func extractRecord(ds *dicom.Dataset, fileName string) (dicomRecord, error) {
	rec := dicomRecord{
		StudyID:          tagString(ds, tag.StudyID),
		StudyDate:        tagString(ds, tag.StudyDate),
		PatientID:        tagString(ds, tag.PatientID),
		PatientBirthDate: tagString(ds, tag.PatientBirthDate),
		PatientSex:       tagString(ds, tag.PatientSex),
		Laterality:       tagString(ds, tag.Laterality),
		StudyUID:         tagString(ds, tag.StudyInstanceUID),
		ImageUID:         tagString(ds, tag.SOPInstanceUID),
	}

	if age := tagString(ds, tag.PatientAge); age != "" {
		rec.PatientAge = &age
	}

	if rec.StudyDate == "" {
		return rec, errMissingField(fileName, "StudyDate (0008,0020)")
	}
	if rec.PatientID == "" {
		return rec, errMissingField(fileName, "PatientID (0010,0020)")
	}
	if rec.PatientBirthDate == "" {
		return rec, errMissingField(fileName, "PatientBirthDate (0010,0030)")
	}
	if rec.PatientSex == "" {
		return rec, errMissingField(fileName, "PatientSex (0010,0040)")
	}
	if rec.Laterality == "" {
		return rec, errMissingField(fileName, "Laterality (0020,0060)")
	}

	return rec, nil
}
