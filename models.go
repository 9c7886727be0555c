package main

import (
	"time"
)

// Patient is one row of the patient table, keyed by the surrogate
// patient_key and uniquely identified by the DICOM PatientID.
//
// The surrogate key Go fields are named Key so the PatientKey/StudyKey
// fields on the child structs resolve as belongs-to references; the cascade
// constraints sit on the has-many side, which puts the foreign key on the
// child table.
type Patient struct {
	Key              uint      `gorm:"column:patient_key;primaryKey" json:"patient_key"`
	PatientID        string    `gorm:"column:patient_id;uniqueIndex;not null" json:"patient_id"`
	PatientSex       string    `gorm:"column:patient_sex;not null" json:"patient_sex"`
	PatientBirthDate string    `gorm:"column:patient_birth_date;not null" json:"patient_birth_date"`
	PatientAge       *string   `gorm:"column:patient_age" json:"patient_age"`
	CreatedDate      time.Time `gorm:"column:created_date;autoCreateTime" json:"created_date"`

	Studies []Study `gorm:"foreignKey:PatientKey;references:Key;constraint:OnDelete:CASCADE" json:"-"`
}

func (Patient) TableName() string { return "patient" }

// Study groups images under a human-facing StudyID plus a globally unique
// StudyInstanceUID. The patient link is set when the row is created and
// never rewritten afterwards.
type Study struct {
	Key         uint      `gorm:"column:study_key;primaryKey" json:"study_key"`
	PatientKey  uint      `gorm:"column:patient_key;not null;index" json:"-"`
	StudyID     string    `gorm:"column:study_id;uniqueIndex;not null" json:"study_id"`
	StudyUID    string    `gorm:"column:study_uid;uniqueIndex" json:"study_uid"`
	StudyDate   string    `gorm:"column:study_date;not null" json:"study_date"`
	Result      float64   `gorm:"column:result" json:"result"`
	CreatedDate time.Time `gorm:"column:created_date;autoCreateTime" json:"created_date"`
	UpdatedDate time.Time `gorm:"column:updated_date;autoUpdateTime" json:"updated_date"`

	Patient *Patient `gorm:"foreignKey:PatientKey;references:Key" json:"patient,omitempty"`
	Images  []Image  `gorm:"foreignKey:StudyKey;references:Key;constraint:OnDelete:CASCADE" json:"images"`
}

func (Study) TableName() string { return "study" }

// Image is one ingested DICOM instance. image_uid (the SOPInstanceUID) is
// unique across the whole catalog and is the deduplication key.
type Image struct {
	Key         uint      `gorm:"column:image_key;primaryKey" json:"image_key"`
	StudyKey    uint      `gorm:"column:study_key;not null;index" json:"-"`
	ImageUID    string    `gorm:"column:image_uid;uniqueIndex;not null" json:"image_uid"`
	Laterality  string    `gorm:"column:laterality" json:"laterality"`
	Score       *float64  `gorm:"column:score" json:"score"`
	ImagePath   string    `gorm:"column:image_path" json:"image_path"`
	CreatedDate time.Time `gorm:"column:created_date;autoCreateTime" json:"created_date"`
	UpdatedDate time.Time `gorm:"column:updated_date;autoUpdateTime" json:"updated_date"`

	Study *Study `gorm:"foreignKey:StudyKey;references:Key" json:"-"`
}

func (Image) TableName() string { return "image" }

// StoredFileInfo is one element of the ingest response array, in the order
// files were processed.
type StoredFileInfo struct {
	ImageKey uint     `json:"image_key"`
	FileName string   `json:"file_name"`
	Score    *float64 `json:"score"`
}
