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

const scanSummaryColumns = `
	s.id, p.patient_uid, p.full_name AS patient_name,
	s.tumor_type, s.confidence, s.clinical_reasoning, s.status,
	s.image_url, s.scan_date, s.created_at,
	u.username AS uploader_username
`

type scanRepository struct {
	db *sqlx.DB
}

func NewScanRepository(db *sqlx.DB) repository.ScanRepository {
	return &scanRepository{db: db}
}

func (r *scanRepository) Create(ctx context.Context, scan *model.Scan) error {
	query := `
		INSERT INTO scans (
			id, patient_id, uploaded_by, image_url, tumor_type, confidence,
			clinical_reasoning, status, scan_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	scan.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		scan.ID,
		scan.PatientID,
		scan.UploadedBy,
		scan.ImageURL,
		scan.TumorType,
		scan.Confidence,
		scan.ClinicalReasoning,
		scan.Status,
		scan.ScanDate,
		scan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scan: %w", err)
	}
	return nil
}

func (r *scanRepository) Get(ctx context.Context, id uuid.UUID) (*model.Scan, error) {
	query := `SELECT * FROM scans WHERE id = $1`
	var scan model.Scan
	err := r.db.GetContext(ctx, &scan, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("scan", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return &scan, nil
}

func (r *scanRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ScanStatus) error {
	query := `UPDATE scans SET status = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update scan status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperrors.NotFound("scan", nil)
	}
	return nil
}

func (r *scanRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.ScanSummary, error) {
	query := `
		SELECT ` + scanSummaryColumns + `
		FROM scans s
		JOIN patients p ON p.id = s.patient_id
		JOIN users u ON u.id = s.uploaded_by
		WHERE s.patient_id = $1
		ORDER BY s.scan_date DESC, s.created_at DESC
	`
	var scans []*model.ScanSummary
	err := r.db.SelectContext(ctx, &scans, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient scans: %w", err)
	}
	return scans, nil
}

func (r *scanRepository) ListByUploader(ctx context.Context, uploaderID uuid.UUID) ([]*model.ScanSummary, error) {
	query := `
		SELECT ` + scanSummaryColumns + `
		FROM scans s
		JOIN patients p ON p.id = s.patient_id
		JOIN users u ON u.id = s.uploaded_by
		WHERE s.uploaded_by = $1
		ORDER BY s.created_at DESC
	`
	var scans []*model.ScanSummary
	err := r.db.SelectContext(ctx, &scans, query, uploaderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploader scans: %w", err)
	}
	return scans, nil
}

func (r *scanRepository) ListAll(ctx context.Context) ([]*model.ScanSummary, error) {
	query := `
		SELECT ` + scanSummaryColumns + `
		FROM scans s
		JOIN patients p ON p.id = s.patient_id
		JOIN users u ON u.id = s.uploaded_by
		ORDER BY s.created_at DESC
	`
	var scans []*model.ScanSummary
	err := r.db.SelectContext(ctx, &scans, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	return scans, nil
}

func (r *scanRepository) AddReview(ctx context.Context, review *model.Review) error {
	query := `
		INSERT INTO scan_reviews (id, scan_id, doctor_id, comments, final_diagnosis, verified, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	review.ReviewedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		review.ID,
		review.ScanID,
		review.DoctorID,
		review.Comments,
		review.FinalDiagnosis,
		review.Verified,
		review.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add review: %w", err)
	}
	return nil
}

func (r *scanRepository) ListReviews(ctx context.Context, scanID uuid.UUID) ([]*model.Review, error) {
	query := `SELECT * FROM scan_reviews WHERE scan_id = $1 ORDER BY reviewed_at DESC`
	var reviews []*model.Review
	err := r.db.SelectContext(ctx, &reviews, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

func (r *scanRepository) CreateReport(ctx context.Context, report *model.Report) error {
	query := `
		INSERT INTO scan_reports (id, scan_id, report_url, generated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scan_id) DO UPDATE SET report_url = EXCLUDED.report_url, generated_at = EXCLUDED.generated_at
	`
	report.GeneratedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.ScanID,
		report.ReportURL,
		report.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (r *scanRepository) GetReport(ctx context.Context, scanID uuid.UUID) (*model.Report, error) {
	query := `SELECT * FROM scan_reports WHERE scan_id = $1`
	var report model.Report
	err := r.db.GetContext(ctx, &report, query, scanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("report", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}
