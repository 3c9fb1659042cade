package model

// Patient represents a registered imaging patient. PatientUID is the
// externally assigned identifier; it is globally unique and immutable
// after creation.
type Patient struct {
	Base
	PatientUID string  `json:"patient_uid" db:"patient_uid"`
	FullName   string  `json:"full_name" db:"full_name"`
	Age        int     `json:"age" db:"age"`
	Gender     string  `json:"gender" db:"gender"`
	Phone      *string `json:"phone" db:"phone"`
	Address    *string `json:"address" db:"address"`
}

// CreatePatientRequest represents patient creation parameters
type CreatePatientRequest struct {
	PatientUID string  `json:"patient_uid" binding:"required,max=30"`
	FullName   string  `json:"full_name" binding:"required,max=150"`
	Age        int     `json:"age" binding:"required,gt=0"`
	Gender     string  `json:"gender" binding:"required,max=10"`
	Phone      *string `json:"phone"`
	Address    *string `json:"address"`
}

// PatientDetail pairs a patient with its full scan history,
// ordered scan_date desc then created_at desc.
type PatientDetail struct {
	Patient *Patient       `json:"patient"`
	Scans   []*ScanSummary `json:"scans"`
}

// RegistryEntry is one row of the doctor-facing patient registry:
// a patient plus the count aggregate over their scans.
type RegistryEntry struct {
	Patient
	ScanCount int `json:"scan_count" db:"scan_count"`
}
