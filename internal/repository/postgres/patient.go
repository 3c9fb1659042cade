package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/neuroscan/neuroscan-api/internal/model"
	"github.com/neuroscan/neuroscan-api/internal/repository"
	apperrors "github.com/neuroscan/neuroscan-api/pkg/errors"
)

type patientRepository struct {
	db *sqlx.DB
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (id, patient_uid, full_name, age, gender, phone, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	patient.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.PatientUID,
		patient.FullName,
		patient.Age,
		patient.Gender,
		patient.Phone,
		patient.Address,
		patient.CreatedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.Conflict("patient UID already exists", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE id = $1`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("patient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByUID(ctx context.Context, uid string) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE patient_uid = $1`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("patient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient by UID: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) List(ctx context.Context) ([]*model.Patient, error) {
	query := `SELECT * FROM patients ORDER BY created_at DESC`
	var patients []*model.Patient
	err := r.db.SelectContext(ctx, &patients, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) ListWithScanCounts(ctx context.Context) ([]*model.RegistryEntry, error) {
	query := `
		SELECT p.*, COUNT(s.id) AS scan_count
		FROM patients p
		LEFT JOIN scans s ON s.patient_id = p.id
		GROUP BY p.id
		ORDER BY p.created_at DESC
	`
	var entries []*model.RegistryEntry
	err := r.db.SelectContext(ctx, &entries, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient registry: %w", err)
	}
	return entries, nil
}
