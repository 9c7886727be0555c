package main

import (
	"fmt"
	"net/http"
)

// IngestError is the request-fatal error family for the ingest pipeline.
// Scoring failures are deliberately absent: they are absorbed into a default
// score and never reach the caller.
type IngestError struct {
	Kind     ErrorKind
	FileName string
	Field    string // MissingField only
	Path     string // IdentifierMismatch: value from the URL path
	Payload  string // IdentifierMismatch: value found in the file
	Err      error
}

type ErrorKind int

const (
	ErrUnsupportedMediaType ErrorKind = iota
	ErrDecode
	ErrMissingField
	ErrIdentifierMismatch
	ErrPersistence
)

func (e *IngestError) Error() string {
	switch e.Kind {
	case ErrUnsupportedMediaType:
		return fmt.Sprintf("unsupported media type for %s: only application/dicom is accepted", e.FileName)
	case ErrDecode:
		return fmt.Sprintf("invalid DICOM file %s: %v", e.FileName, e.Err)
	case ErrMissingField:
		return fmt.Sprintf("DICOM file %s is missing %s", e.FileName, e.Field)
	case ErrIdentifierMismatch:
		return fmt.Sprintf("mismatched StudyID for file %s: path parameter %q does not match DICOM StudyID %q", e.FileName, e.Path, e.Payload)
	case ErrPersistence:
		return fmt.Sprintf("persistence failure for %s: %v", e.FileName, e.Err)
	}
	return fmt.Sprintf("ingest failure for %s: %v", e.FileName, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind to the response code the original service
// used for the same condition.
func (e *IngestError) HTTPStatus() int {
	switch e.Kind {
	case ErrUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case ErrDecode, ErrMissingField, ErrIdentifierMismatch:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errUnsupportedMediaType(fileName string) *IngestError {
	return &IngestError{Kind: ErrUnsupportedMediaType, FileName: fileName}
}

func errDecode(fileName string, err error) *IngestError {
	return &IngestError{Kind: ErrDecode, FileName: fileName, Err: err}
}

func errMissingField(fileName, field string) *IngestError {
	return &IngestError{Kind: ErrMissingField, FileName: fileName, Field: field}
}

func errIdentifierMismatch(fileName, pathValue, payloadValue string) *IngestError {
	return &IngestError{Kind: ErrIdentifierMismatch, FileName: fileName, Path: pathValue, Payload: payloadValue}
}

func errPersistence(fileName string, err error) *IngestError {
	return &IngestError{Kind: ErrPersistence, FileName: fileName, Err: err}
}
