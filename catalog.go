package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Catalog is the three-level Patient/Study/Image index. All ingest mutations
// for one file run inside a single transaction; lookups by natural key that
// miss are resolved with conflict-safe inserts so concurrent uploads of the
// same unseen key cannot produce duplicates or constraint failures.
type Catalog struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewCatalog(db *gorm.DB, log *zap.SugaredLogger) *Catalog {
	return &Catalog{db: db, log: log}
}

// upsertInput carries everything CatalogUpsert needs for one file.
type upsertInput struct {
	StudyID  string
	Record   dicomRecord
	Score    *float64
	BlobPath string
}

// UpsertFile runs the per-file catalog mutation: find-or-create Patient and
// Study by natural key, then create the Image or, when its image_uid is
// already known, update only its score. Returns the image's surrogate key.
//
// The Study keeps the Patient it was created with even if a later file
// carrying the same StudyID names a different PatientID. That first-writer-
// wins behavior is inherited from the original system; see DESIGN.md.
func (c *Catalog) UpsertFile(ctx context.Context, in upsertInput) (uint, error) {
	rec := in.Record
	var imageKey uint

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		patient := Patient{
			PatientID:        rec.PatientID,
			PatientSex:       rec.PatientSex,
			PatientBirthDate: rec.PatientBirthDate,
			PatientAge:       rec.PatientAge,
		}
		created, err := insertOrFetch(tx, &patient, "patient_id", rec.PatientID)
		if err != nil {
			return fmt.Errorf("upsert patient %s: %w", rec.PatientID, err)
		}
		if created {
			c.log.Infow("new patient created", "patient_id", rec.PatientID)
		}

		study := Study{
			PatientKey: patient.Key,
			StudyID:    in.StudyID,
			StudyUID:   rec.StudyUID,
			StudyDate:  rec.StudyDate,
			Result:     0,
		}
		created, err = insertOrFetch(tx, &study, "study_id", in.StudyID)
		if err != nil {
			return fmt.Errorf("upsert study %s: %w", in.StudyID, err)
		}
		if created {
			c.log.Infow("new study created", "study_id", in.StudyID, "patient_id", rec.PatientID)
		}

		var image Image
		err = tx.Where("image_uid = ?", rec.ImageUID).First(&image).Error
		switch {
		case err == nil:
			// Re-ingestion: only the score moves; path and ownership are fixed.
			if err := tx.Model(&image).Update("score", in.Score).Error; err != nil {
				return fmt.Errorf("update image %s score: %w", rec.ImageUID, err)
			}
			c.log.Infow("updated existing image with new score", "image_uid", rec.ImageUID)
		case errors.Is(err, gorm.ErrRecordNotFound):
			image = Image{
				StudyKey:   study.Key,
				ImageUID:   rec.ImageUID,
				Laterality: rec.Laterality,
				Score:      in.Score,
				ImagePath:  in.BlobPath,
			}
			created, err := insertOrFetch(tx, &image, "image_uid", rec.ImageUID)
			if err != nil {
				return fmt.Errorf("upsert image %s: %w", rec.ImageUID, err)
			}
			if !created {
				// Lost a concurrent race after the miss above; converge on
				// the same score-only update as the found case.
				if err := tx.Model(&image).Update("score", in.Score).Error; err != nil {
					return fmt.Errorf("update image %s score: %w", rec.ImageUID, err)
				}
			} else {
				c.log.Infow("new image created",
					"image_uid", rec.ImageUID, "study_id", in.StudyID, "score", in.Score)
			}
		default:
			return fmt.Errorf("find image %s: %w", rec.ImageUID, err)
		}

		imageKey = image.Key
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imageKey, nil
}

// insertOrFetch inserts dest, treating a natural-key conflict as "already
// exists" and reloading the existing row into dest. Returns whether this
// call created the row.
func insertOrFetch[T any](tx *gorm.DB, dest *T, keyColumn string, keyValue string) (bool, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: keyColumn}},
		DoNothing: true,
	}).Create(dest)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	if err := tx.Where(keyColumn+" = ?", keyValue).First(dest).Error; err != nil {
		return false, err
	}
	return false, nil
}

// ListStudies returns every study with its patient and images preloaded.
func (c *Catalog) ListStudies(ctx context.Context) ([]Study, error) {
	var studies []Study
	err := c.db.WithContext(ctx).
		Preload("Patient").
		Preload("Images").
		Find(&studies).Error
	if err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	return studies, nil
}

// GetStudy returns the study with the given StudyID, or nil when absent.
func (c *Catalog) GetStudy(ctx context.Context, studyID string) (*Study, error) {
	var study Study
	err := c.db.WithContext(ctx).
		Preload("Patient").
		Preload("Images").
		Where("study_id = ?", studyID).
		First(&study).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get study %s: %w", studyID, err)
	}
	return &study, nil
}

// DeletePatient removes the patient row; studies and images follow through
// the ON DELETE CASCADE constraints. Returns false when no such patient.
func (c *Catalog) DeletePatient(ctx context.Context, patientID string) (bool, error) {
	res := c.db.WithContext(ctx).Where("patient_id = ?", patientID).Delete(&Patient{})
	if res.Error != nil {
		return false, fmt.Errorf("delete patient %s: %w", patientID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Ping checks catalog connectivity for the liveness endpoint.
func (c *Catalog) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
