package model

import (
	"time"

	"github.com/google/uuid"
)

// ScanStatus is the lifecycle state of a scan. Transitions only move
// forward: PENDING -> COMPLETED -> VERIFIED.
type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "PENDING"
	ScanStatusCompleted ScanStatus = "COMPLETED"
	ScanStatusVerified  ScanStatus = "VERIFIED"
)

// rank orders statuses for forward-only transition checks.
func (s ScanStatus) rank() int {
	switch s {
	case ScanStatusPending:
		return 0
	case ScanStatusCompleted:
		return 1
	case ScanStatusVerified:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next is a forward move.
func (s ScanStatus) CanTransitionTo(next ScanStatus) bool {
	return next.rank() > s.rank()
}

// TumorType is the closed classification label set produced by the model.
type TumorType string

const (
	TumorGlioma     TumorType = "glioma"
	TumorMeningioma TumorType = "meningioma"
	TumorNone       TumorType = "notumor"
	TumorPituitary  TumorType = "pituitary"
)

// Valid reports whether t is one of the known labels.
func (t TumorType) Valid() bool {
	switch t {
	case TumorGlioma, TumorMeningioma, TumorNone, TumorPituitary:
		return true
	}
	return false
}

// Scan is one uploaded MRI image plus its derived classification and
// clinical reasoning. A scan always belongs to exactly one patient.
type Scan struct {
	Base
	PatientID         uuid.UUID  `json:"patient_id" db:"patient_id"`
	UploadedBy        uuid.UUID  `json:"uploaded_by" db:"uploaded_by"`
	ImageURL          string     `json:"mri_image_url" db:"image_url"`
	TumorType         TumorType  `json:"tumor_type" db:"tumor_type"`
	Confidence        float64    `json:"confidence" db:"confidence"`
	ClinicalReasoning *string    `json:"clinical_reasoning" db:"clinical_reasoning"`
	Status            ScanStatus `json:"status" db:"status"`
	ScanDate          time.Time  `json:"scan_date" db:"scan_date"`
}

// ScanSummary is the read-side projection used by the listing endpoints.
// Patient and uploader fields are denormalized for display.
type ScanSummary struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	PatientUID        string     `json:"patient_uid" db:"patient_uid"`
	PatientName       string     `json:"patient_name" db:"patient_name"`
	TumorType         TumorType  `json:"tumor_type" db:"tumor_type"`
	Confidence        float64    `json:"confidence" db:"confidence"`
	ClinicalReasoning *string    `json:"clinical_reasoning" db:"clinical_reasoning"`
	Status            ScanStatus `json:"status" db:"status"`
	ImageURL          string     `json:"mri_image_url" db:"image_url"`
	ScanDate          time.Time  `json:"scan_date" db:"scan_date"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UploaderUsername  string     `json:"uploaded_by_username" db:"uploader_username"`
}

// Review is a doctor's annotation and verification decision on a scan.
// A scan may accumulate reviews from several doctors; all are retained.
type Review struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ScanID         uuid.UUID `json:"scan_id" db:"scan_id"`
	DoctorID       uuid.UUID `json:"doctor_id" db:"doctor_id"`
	Comments       *string   `json:"comments" db:"comments"`
	FinalDiagnosis *string   `json:"final_diagnosis" db:"final_diagnosis"`
	Verified       bool      `json:"verified" db:"verified"`
	ReviewedAt     time.Time `json:"reviewed_at" db:"reviewed_at"`
}

// AddReviewRequest represents review submission parameters
type AddReviewRequest struct {
	Comments       *string `json:"comments"`
	FinalDiagnosis *string `json:"final_diagnosis" binding:"omitempty,max=200"`
	Verified       bool    `json:"verified"`
}

// Report references the generated summary document for a verified scan.
// One-to-one with its scan.
type Report struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ScanID      uuid.UUID `json:"scan_id" db:"scan_id"`
	ReportURL   string    `json:"report_url" db:"report_url"`
	GeneratedAt time.Time `json:"generated_at" db:"generated_at"`
}
