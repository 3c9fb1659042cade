package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/neuroscan/neuroscan-api/internal/email"
	"github.com/neuroscan/neuroscan-api/internal/model"
	"github.com/neuroscan/neuroscan-api/internal/predictor"
	"github.com/neuroscan/neuroscan-api/internal/reasoner"
	"github.com/neuroscan/neuroscan-api/internal/repository"
	"github.com/neuroscan/neuroscan-api/internal/storage"
	"github.com/neuroscan/neuroscan-api/pkg/logger"
	"github.com/neuroscan/neuroscan-api/pkg/metrics"
)

// IngestRequest is one technician upload: the image plus the patient it
// belongs to and the optional acquisition timestamp.
type IngestRequest struct {
	PatientUID  string
	Image       []byte
	Filename    string
	ScanDateRaw string
	UploadedBy  uuid.UUID
}

// Preview is a stateless classification result, nothing persisted.
type Preview struct {
	TumorType         model.TumorType `json:"tumor_type"`
	Confidence        float64         `json:"confidence"`
	ClinicalReasoning string          `json:"clinical_reasoning"`
}

type Service interface {
	Ingest(ctx context.Context, req *IngestRequest) (*model.Scan, error)
	Predict(ctx context.Context, image []byte, filename string, patient reasoner.PatientContext) (*Preview, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Scan, error)
	ListByUploader(ctx context.Context, uploaderID uuid.UUID) ([]*model.ScanSummary, error)
	ListByPatientUID(ctx context.Context, patientUID string) ([]*model.ScanSummary, error)
	ListAll(ctx context.Context) ([]*model.ScanSummary, error)
	AddReview(ctx context.Context, doctorID, scanID uuid.UUID, req *model.AddReviewRequest) (*model.Review, error)
	ListReviews(ctx context.Context, scanID uuid.UUID) ([]*model.Review, error)
	GetReport(ctx context.Context, scanID uuid.UUID) (*model.Report, error)
}

type service struct {
	scans      repository.ScanRepository
	patients   repository.PatientRepository
	users      repository.UserRepository
	outbox     repository.OutboxRepository
	classifier predictor.Classifier
	reasoner   reasoner.Reasoner
	store      storage.Uploader
	mailer     email.Service
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

func NewService(
	scans repository.ScanRepository,
	patients repository.PatientRepository,
	users repository.UserRepository,
	outbox repository.OutboxRepository,
	classifier predictor.Classifier,
	reasoner reasoner.Reasoner,
	store storage.Uploader,
	mailer email.Service,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) Service {
	return &service{
		scans:      scans,
		patients:   patients,
		users:      users,
		outbox:     outbox,
		classifier: classifier,
		reasoner:   reasoner,
		store:      store,
		mailer:     mailer,
		metrics:    metrics,
		logger:     logger,
	}
}

// Ingest runs the intake pipeline: classify, explain, store the image,
// then persist the record as COMPLETED. A classifier or asset-store
// failure aborts the whole upload with nothing persisted; a reasoning
// failure only degrades the stored explanation to a placeholder.
func (s *service) Ingest(ctx context.Context, req *IngestRequest) (*model.Scan, error) {
	patient, err := s.patients.GetByUID(ctx, req.PatientUID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	pred, err := s.classifier.Classify(ctx, req.Image, req.Filename)
	s.metrics.ClassifierLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.ClassifierFailures.Inc()
		return nil, err
	}

	explanation := s.reasoner.Explain(ctx, pred.Label, pred.Confidence, reasoner.PatientContext{
		Age:    patient.Age,
		Gender: patient.Gender,
	})
	if explanation.Degraded {
		s.metrics.ExplanationsDegraded.Inc()
	}

	imageURL, err := s.store.UploadScan(ctx, req.Image, req.Filename)
	if err != nil {
		s.metrics.AssetUploadFailures.Inc()
		return nil, err
	}

	scan := &model.Scan{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: time.Now().UTC(),
		},
		PatientID:         patient.ID,
		UploadedBy:        req.UploadedBy,
		ImageURL:          imageURL,
		TumorType:         pred.Label,
		Confidence:        pred.Confidence,
		ClinicalReasoning: &explanation.Text,
		Status:            model.ScanStatusCompleted,
		ScanDate:          parseScanDate(req.ScanDateRaw),
	}

	if err := s.scans.Create(ctx, scan); err != nil {
		return nil, err
	}

	s.metrics.ScansIngested.WithLabelValues(string(pred.Label)).Inc()
	s.publishEvent(ctx, model.EventScanCreated, scan, patient)

	return scan, nil
}

// Predict classifies an image without touching the database or the
// asset store. Used by the public preview endpoint. Patient context is
// whatever the caller chose to supply; it only shapes the reasoning.
func (s *service) Predict(ctx context.Context, image []byte, filename string, patient reasoner.PatientContext) (*Preview, error) {
	pred, err := s.classifier.Classify(ctx, image, filename)
	if err != nil {
		s.metrics.ClassifierFailures.Inc()
		return nil, err
	}

	explanation := s.reasoner.Explain(ctx, pred.Label, pred.Confidence, patient)
	if explanation.Degraded {
		s.metrics.ExplanationsDegraded.Inc()
	}

	return &Preview{
		TumorType:         pred.Label,
		Confidence:        pred.Confidence,
		ClinicalReasoning: explanation.Text,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*model.Scan, error) {
	return s.scans.Get(ctx, id)
}

func (s *service) ListByUploader(ctx context.Context, uploaderID uuid.UUID) ([]*model.ScanSummary, error) {
	return s.scans.ListByUploader(ctx, uploaderID)
}

func (s *service) ListByPatientUID(ctx context.Context, patientUID string) ([]*model.ScanSummary, error) {
	patient, err := s.patients.GetByUID(ctx, patientUID)
	if err != nil {
		return nil, err
	}
	return s.scans.ListByPatient(ctx, patient.ID)
}

func (s *service) ListAll(ctx context.Context) ([]*model.ScanSummary, error) {
	return s.scans.ListAll(ctx)
}

// AddReview records a doctor's annotation. A verified review advances
// the scan to VERIFIED, generates the report and notifies the uploader.
// Report and notification failures never fail the review itself.
func (s *service) AddReview(ctx context.Context, doctorID, scanID uuid.UUID, req *model.AddReviewRequest) (*model.Review, error) {
	scan, err := s.scans.Get(ctx, scanID)
	if err != nil {
		return nil, err
	}

	review := &model.Review{
		ID:             uuid.New(),
		ScanID:         scan.ID,
		DoctorID:       doctorID,
		Comments:       req.Comments,
		FinalDiagnosis: req.FinalDiagnosis,
		Verified:       req.Verified,
		ReviewedAt:     time.Now().UTC(),
	}

	if err := s.scans.AddReview(ctx, review); err != nil {
		return nil, err
	}
	s.metrics.ReviewsRecorded.WithLabelValues(fmt.Sprintf("%t", req.Verified)).Inc()

	if req.Verified && scan.Status.CanTransitionTo(model.ScanStatusVerified) {
		if err := s.scans.UpdateStatus(ctx, scan.ID, model.ScanStatusVerified); err != nil {
			return nil, err
		}
		scan.Status = model.ScanStatusVerified
		s.onVerified(ctx, scan, review)
	}

	return review, nil
}

func (s *service) ListReviews(ctx context.Context, scanID uuid.UUID) ([]*model.Review, error) {
	return s.scans.ListReviews(ctx, scanID)
}

func (s *service) GetReport(ctx context.Context, scanID uuid.UUID) (*model.Report, error) {
	return s.scans.GetReport(ctx, scanID)
}

// onVerified runs the post-verification side effects. None of them can
// fail the review transaction; failures are logged and counted only.
func (s *service) onVerified(ctx context.Context, scan *model.Scan, review *model.Review) {
	patient, err := s.patients.Get(ctx, scan.PatientID)
	if err != nil {
		s.logger.Error(err, "Failed to load patient for verification side effects",
			"scan_id", scan.ID.String())
		return
	}

	if err := s.generateReport(ctx, scan, patient, review); err != nil {
		s.logger.Error(err, "Failed to generate report", "scan_id", scan.ID.String())
	}

	s.publishEvent(ctx, model.EventScanVerified, scan, patient)
	s.notifyUploader(ctx, scan, patient)
}

func (s *service) generateReport(ctx context.Context, scan *model.Scan, patient *model.Patient, review *model.Review) error {
	content := buildReportDocument(scan, patient, review)
	filename := fmt.Sprintf("report_%s.md", scan.ID)

	url, err := s.store.UploadReport(ctx, content, filename)
	if err != nil {
		return err
	}

	return s.scans.CreateReport(ctx, &model.Report{
		ID:          uuid.New(),
		ScanID:      scan.ID,
		ReportURL:   url,
		GeneratedAt: time.Now().UTC(),
	})
}

func buildReportDocument(scan *model.Scan, patient *model.Patient, review *model.Review) []byte {
	reasoning := ""
	if scan.ClinicalReasoning != nil {
		reasoning = *scan.ClinicalReasoning
	}
	diagnosis := string(scan.TumorType)
	if review.FinalDiagnosis != nil && *review.FinalDiagnosis != "" {
		diagnosis = *review.FinalDiagnosis
	}
	comments := ""
	if review.Comments != nil {
		comments = *review.Comments
	}

	doc := fmt.Sprintf(`# Verified Scan Report

## Patient
- UID: %s
- Name: %s
- Age: %d
- Gender: %s

## Scan
- Scan date: %s
- Classification: %s
- Confidence: %.1f%%
- Image: %s

## Clinical Reasoning
%s

## Doctor Review
- Final diagnosis: %s
- Comments: %s
- Reviewed at: %s
`,
		patient.PatientUID, patient.FullName, patient.Age, patient.Gender,
		scan.ScanDate.Format("2006-01-02 15:04"),
		scan.TumorType, scan.Confidence*100, scan.ImageURL,
		reasoning,
		diagnosis, comments,
		review.ReviewedAt.Format(time.RFC3339))

	return []byte(doc)
}

func (s *service) publishEvent(ctx context.Context, eventType string, scan *model.Scan, patient *model.Patient) {
	payload, err := json.Marshal(map[string]interface{}{
		"scan_id":     scan.ID,
		"patient_uid": patient.PatientUID,
		"tumor_type":  scan.TumorType,
		"confidence":  scan.Confidence,
		"status":      scan.Status,
	})
	if err != nil {
		s.logger.Error(err, "Failed to marshal outbox payload", "event_type", eventType)
		return
	}

	if err := s.outbox.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	}); err != nil {
		s.logger.Error(err, "Failed to write outbox event",
			"event_type", eventType, "scan_id", scan.ID.String())
	}
}

func (s *service) notifyUploader(ctx context.Context, scan *model.Scan, patient *model.Patient) {
	uploader, err := s.users.Get(ctx, scan.UploadedBy)
	if err != nil {
		s.logger.Error(err, "Failed to load uploader for notification", "scan_id", scan.ID.String())
		return
	}
	if uploader.Email == nil || *uploader.Email == "" {
		return
	}

	if err := s.mailer.SendScanVerified(ctx, *uploader.Email, patient, scan); err != nil {
		s.logger.Error(err, "Failed to send verification notice",
			"scan_id", scan.ID.String(), "to", *uploader.Email)
	}
}

// parseScanDate tolerates the common browser datetime-local format by
// appending missing seconds. Anything unparseable, including an empty
// value, falls back to the current time.
func parseScanDate(raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}
	if len(raw) == 16 {
		raw += ":00"
	}
	t, err := time.Parse("2006-01-02T15:04:05", raw)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}
