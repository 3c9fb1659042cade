package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/neuroscan/neuroscan-api/internal/model"
)

// All repository interfaces in one file
type (
	// UserRepository handles identity records
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByUsername(ctx context.Context, username string) (*model.User, error)
	}

	// PatientRepository handles the patient registry
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByUID(ctx context.Context, uid string) (*model.Patient, error)
		List(ctx context.Context) ([]*model.Patient, error)
		ListWithScanCounts(ctx context.Context) ([]*model.RegistryEntry, error)
	}

	// ScanRepository handles scans, reviews and reports
	ScanRepository interface {
		Create(ctx context.Context, scan *model.Scan) error
		Get(ctx context.Context, id uuid.UUID) (*model.Scan, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.ScanStatus) error
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.ScanSummary, error)
		ListByUploader(ctx context.Context, uploaderID uuid.UUID) ([]*model.ScanSummary, error)
		ListAll(ctx context.Context) ([]*model.ScanSummary, error)
		AddReview(ctx context.Context, review *model.Review) error
		ListReviews(ctx context.Context, scanID uuid.UUID) ([]*model.Review, error)
		CreateReport(ctx context.Context, report *model.Report) error
		GetReport(ctx context.Context, scanID uuid.UUID) (*model.Report, error)
	}

	// OutboxRepository handles pending integration events
	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
