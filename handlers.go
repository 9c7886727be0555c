package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Handlers holds dependencies shared by HTTP handlers.
type Handlers struct {
	Cfg      Config
	Catalog  *Catalog
	Ingestor *Ingestor
	Log      *zap.SugaredLogger
}

// writeJSON is a small helper to send JSON responses with status code.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Errorw("writeJSON failed", "error", err)
	}
}

// readBatch pulls the uploaded files out of the multipart form, preserving
// input order within the "files" field.
func (h *Handlers) readBatch(r *http.Request) ([]uploadedFile, error) {
	// Limit to 512MB in memory/temporary files.
	if err := r.ParseMultipartForm(512 << 20); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		return nil, fmt.Errorf("no files provided")
	}

	files := make([]uploadedFile, 0, len(parts))
	for _, fh := range parts {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open uploaded file %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read uploaded file %s: %w", fh.Filename, err)
		}
		files = append(files, uploadedFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

// ingest runs one batch and writes the response, shared by both variants.
func (h *Handlers) ingest(w http.ResponseWriter, r *http.Request, pathStudyID string) {
	files, err := h.readBatch(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"detail": err.Error(),
		})
		return
	}

	stored, err := h.Ingestor.ProcessBatch(r.Context(), pathStudyID, files)
	if err != nil {
		status := http.StatusInternalServerError
		var ingErr *IngestError
		if errors.As(err, &ingErr) {
			status = ingErr.HTTPStatus()
		}
		// Files committed before the abort stand; report them alongside the
		// failure so the caller knows exactly how far the batch got.
		h.writeJSON(w, status, map[string]interface{}{
			"detail":       err.Error(),
			"stored_files": stored,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"stored_files": stored,
	})
}

// StudyCollectionHandler implements /dicom-web/study:
// POST ingests a batch whose StudyID comes from each file's own metadata,
// GET lists all studies with nested patient and images.
func (h *Handlers) StudyCollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.ingest(w, r, "")
	case http.MethodGet:
		studies, err := h.Catalog.ListStudies(r.Context())
		if err != nil {
			h.Log.Errorw("list studies failed", "error", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"detail": "Database Error",
			})
			return
		}
		h.writeJSON(w, http.StatusOK, studies)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// StudyByIDHandler implements /dicom-web/study/{study_id}:
// POST ingests a batch whose files must all carry the path's StudyID,
// GET returns that single study.
func (h *Handlers) StudyByIDHandler(w http.ResponseWriter, r *http.Request) {
	const prefix = "/dicom-web/study/"
	studyID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, prefix))
	if studyID == "" || strings.Contains(studyID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.ingest(w, r, studyID)
	case http.MethodGet:
		study, err := h.Catalog.GetStudy(r.Context(), studyID)
		if err != nil {
			h.Log.Errorw("get study failed", "study_id", studyID, "error", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"detail": "Database Error",
			})
			return
		}
		if study == nil {
			h.writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"detail": fmt.Sprintf("Study with ID '%s' not found.", studyID),
			})
			return
		}
		h.writeJSON(w, http.StatusOK, study)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// PatientByIDHandler implements DELETE /dicom-web/patient/{patient_id}.
// Studies and images under the patient are removed by referential cascade.
func (h *Handlers) PatientByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	const prefix = "/dicom-web/patient/"
	patientID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, prefix))
	if patientID == "" || strings.Contains(patientID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	found, err := h.Catalog.DeletePatient(r.Context(), patientID)
	if err != nil {
		h.Log.Errorw("delete patient failed", "patient_id", patientID, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"detail": "Database Error",
		})
		return
	}
	if !found {
		h.writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"detail": fmt.Sprintf("Patient with ID '%s' not found.", patientID),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"patient_id": patientID,
	})
}

// HealthHandler implements GET /healthz.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := h.Catalog.Ping(r.Context()); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"ok": false,
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}
