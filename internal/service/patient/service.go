package patient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/neuroscan/neuroscan-api/internal/model"
	"github.com/neuroscan/neuroscan-api/internal/repository"
	apperrors "github.com/neuroscan/neuroscan-api/pkg/errors"
)

type Service interface {
	Create(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	GetByUID(ctx context.Context, uid string) (*model.Patient, error)
	GetDetail(ctx context.Context, uid string) (*model.PatientDetail, error)
	List(ctx context.Context) ([]*model.Patient, error)
	Registry(ctx context.Context) ([]*model.RegistryEntry, error)
}

type service struct {
	patients repository.PatientRepository
	scans    repository.ScanRepository
}

func NewService(patients repository.PatientRepository, scans repository.ScanRepository) Service {
	return &service{patients: patients, scans: scans}
}

func (s *service) Create(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	patient := &model.Patient{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: time.Now().UTC(),
		},
		PatientUID: req.PatientUID,
		FullName:   req.FullName,
		Age:        req.Age,
		Gender:     req.Gender,
		Phone:      req.Phone,
		Address:    req.Address,
	}

	if err := s.patients.Create(ctx, patient); err != nil {
		if apperrors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.Conflict("patient UID already registered", err)
		}
		return nil, err
	}
	return patient, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return s.patients.Get(ctx, id)
}

func (s *service) GetByUID(ctx context.Context, uid string) (*model.Patient, error) {
	return s.patients.GetByUID(ctx, uid)
}

// GetDetail returns the patient plus their full scan history.
func (s *service) GetDetail(ctx context.Context, uid string) (*model.PatientDetail, error) {
	patient, err := s.patients.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	scans, err := s.scans.ListByPatient(ctx, patient.ID)
	if err != nil {
		return nil, err
	}

	return &model.PatientDetail{Patient: patient, Scans: scans}, nil
}

func (s *service) List(ctx context.Context) ([]*model.Patient, error) {
	return s.patients.List(ctx)
}

// Registry is the doctor-facing patient list with scan count aggregates.
func (s *service) Registry(ctx context.Context) ([]*model.RegistryEntry, error) {
	return s.patients.ListWithScanCounts(ctx)
}
