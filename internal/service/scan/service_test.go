package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroscan/neuroscan-api/internal/model"
	"github.com/neuroscan/neuroscan-api/internal/predictor"
	"github.com/neuroscan/neuroscan-api/internal/reasoner"
	apperrors "github.com/neuroscan/neuroscan-api/pkg/errors"
	"github.com/neuroscan/neuroscan-api/pkg/logger"
	"github.com/neuroscan/neuroscan-api/pkg/metrics"
)

// Shared across tests; promauto panics on duplicate registration.
var testMetrics = metrics.NewMetrics("scan_service_test")

type fakeScanRepo struct {
	scans   map[uuid.UUID]*model.Scan
	reviews []*model.Review
	reports []*model.Report
}

func newFakeScanRepo() *fakeScanRepo {
	return &fakeScanRepo{scans: make(map[uuid.UUID]*model.Scan)}
}

func (r *fakeScanRepo) Create(ctx context.Context, scan *model.Scan) error {
	r.scans[scan.ID] = scan
	return nil
}

func (r *fakeScanRepo) Get(ctx context.Context, id uuid.UUID) (*model.Scan, error) {
	scan, ok := r.scans[id]
	if !ok {
		return nil, apperrors.NotFound("scan", nil)
	}
	copied := *scan
	return &copied, nil
}

func (r *fakeScanRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ScanStatus) error {
	scan, ok := r.scans[id]
	if !ok {
		return apperrors.NotFound("scan", nil)
	}
	scan.Status = status
	return nil
}

func (r *fakeScanRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.ScanSummary, error) {
	return nil, nil
}

func (r *fakeScanRepo) ListByUploader(ctx context.Context, uploaderID uuid.UUID) ([]*model.ScanSummary, error) {
	return nil, nil
}

func (r *fakeScanRepo) ListAll(ctx context.Context) ([]*model.ScanSummary, error) {
	return nil, nil
}

func (r *fakeScanRepo) AddReview(ctx context.Context, review *model.Review) error {
	r.reviews = append(r.reviews, review)
	return nil
}

func (r *fakeScanRepo) ListReviews(ctx context.Context, scanID uuid.UUID) ([]*model.Review, error) {
	return r.reviews, nil
}

func (r *fakeScanRepo) CreateReport(ctx context.Context, report *model.Report) error {
	r.reports = append(r.reports, report)
	return nil
}

func (r *fakeScanRepo) GetReport(ctx context.Context, scanID uuid.UUID) (*model.Report, error) {
	for _, rep := range r.reports {
		if rep.ScanID == scanID {
			return rep, nil
		}
	}
	return nil, apperrors.NotFound("report", nil)
}

type fakePatientRepo struct {
	byUID map[string]*model.Patient
}

func (r *fakePatientRepo) Create(ctx context.Context, p *model.Patient) error { return nil }

func (r *fakePatientRepo) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	for _, p := range r.byUID {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperrors.NotFound("patient", nil)
}

func (r *fakePatientRepo) GetByUID(ctx context.Context, uid string) (*model.Patient, error) {
	p, ok := r.byUID[uid]
	if !ok {
		return nil, apperrors.NotFound("patient", nil)
	}
	return p, nil
}

func (r *fakePatientRepo) List(ctx context.Context) ([]*model.Patient, error) { return nil, nil }

func (r *fakePatientRepo) ListWithScanCounts(ctx context.Context) ([]*model.RegistryEntry, error) {
	return nil, nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func (r *fakeUserRepo) Create(ctx context.Context, u *model.User) error { return nil }

func (r *fakeUserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", nil)
	}
	return u, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return nil, apperrors.NotFound("user", nil)
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (r *fakeOutboxRepo) Create(ctx context.Context, e *model.OutboxEvent) error {
	r.events = append(r.events, e)
	return nil
}

func (r *fakeOutboxRepo) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return r.events, nil
}

func (r *fakeOutboxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	return nil
}

func (r *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeClassifier struct {
	pred *predictor.Prediction
	err  error
}

func (c *fakeClassifier) Classify(ctx context.Context, image []byte, filename string) (*predictor.Prediction, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.pred, nil
}

type fakeReasoner struct {
	explanation reasoner.Explanation
}

func (r *fakeReasoner) Explain(ctx context.Context, label model.TumorType, confidence float64, patient reasoner.PatientContext) reasoner.Explanation {
	return r.explanation
}

type fakeUploader struct {
	scanURL    string
	reportURL  string
	scanErr    error
	numReports int
}

func (u *fakeUploader) UploadScan(ctx context.Context, data []byte, filename string) (string, error) {
	if u.scanErr != nil {
		return "", u.scanErr
	}
	return u.scanURL, nil
}

func (u *fakeUploader) UploadReport(ctx context.Context, data []byte, filename string) (string, error) {
	u.numReports++
	return u.reportURL, nil
}

type fakeMailer struct {
	sentTo []string
}

func (m *fakeMailer) SendScanVerified(ctx context.Context, to string, patient *model.Patient, scan *model.Scan) error {
	m.sentTo = append(m.sentTo, to)
	return nil
}

type fixture struct {
	svc        Service
	scanRepo   *fakeScanRepo
	outboxRepo *fakeOutboxRepo
	uploader   *fakeUploader
	mailer     *fakeMailer
	patient    *model.Patient
	tech       *model.User
}

func newFixture(t *testing.T, classifier *fakeClassifier, reason *fakeReasoner, uploader *fakeUploader) *fixture {
	t.Helper()

	email := "tech@example.com"
	tech := &model.User{
		Base:     model.Base{ID: uuid.New(), CreatedAt: time.Now()},
		Username: "tech1",
		Email:    &email,
		Role:     model.RoleTechnician,
	}
	patient := &model.Patient{
		Base:       model.Base{ID: uuid.New(), CreatedAt: time.Now()},
		PatientUID: "P-1001",
		FullName:   "Jane Roe",
		Age:        42,
		Gender:     "female",
	}

	scanRepo := newFakeScanRepo()
	outboxRepo := &fakeOutboxRepo{}
	mailer := &fakeMailer{}

	svc := NewService(
		scanRepo,
		&fakePatientRepo{byUID: map[string]*model.Patient{patient.PatientUID: patient}},
		&fakeUserRepo{users: map[uuid.UUID]*model.User{tech.ID: tech}},
		outboxRepo,
		classifier,
		reason,
		uploader,
		mailer,
		testMetrics,
		logger.NewLogger(nil),
	)

	return &fixture{
		svc:        svc,
		scanRepo:   scanRepo,
		outboxRepo: outboxRepo,
		uploader:   uploader,
		mailer:     mailer,
		patient:    patient,
		tech:       tech,
	}
}

func TestIngestSuccess(t *testing.T) {
	f := newFixture(t,
		&fakeClassifier{pred: &predictor.Prediction{Label: model.TumorGlioma, Confidence: 0.87}},
		&fakeReasoner{explanation: reasoner.Explanation{Text: "Typical glioma presentation."}},
		&fakeUploader{scanURL: "https://assets.example.com/mri_scans/abc.jpg"},
	)

	scan, err := f.svc.Ingest(context.Background(), &IngestRequest{
		PatientUID:  "P-1001",
		Image:       []byte("fake-image"),
		Filename:    "scan.jpg",
		ScanDateRaw: "2024-01-01T10:30",
		UploadedBy:  f.tech.ID,
	})

	require.NoError(t, err)
	assert.Equal(t, model.TumorGlioma, scan.TumorType)
	assert.Equal(t, 0.87, scan.Confidence)
	assert.Equal(t, "https://assets.example.com/mri_scans/abc.jpg", scan.ImageURL)
	assert.Equal(t, model.ScanStatusCompleted, scan.Status)
	require.NotNil(t, scan.ClinicalReasoning)
	assert.Equal(t, "Typical glioma presentation.", *scan.ClinicalReasoning)
	assert.Equal(t, 10, scan.ScanDate.Hour())
	assert.Equal(t, 30, scan.ScanDate.Minute())
	assert.Equal(t, 0, scan.ScanDate.Second())

	require.Len(t, f.scanRepo.scans, 1)
	require.Len(t, f.outboxRepo.events, 1)
	assert.Equal(t, model.EventScanCreated, f.outboxRepo.events[0].EventType)
}

func TestIngestDegradedExplanation(t *testing.T) {
	f := newFixture(t,
		&fakeClassifier{pred: &predictor.Prediction{Label: model.TumorPituitary, Confidence: 0.91}},
		&fakeReasoner{explanation: reasoner.Explanation{Text: reasoner.QuotaPlaceholder, Degraded: true}},
		&fakeUploader{scanURL: "https://assets.example.com/x.jpg"},
	)

	scan, err := f.svc.Ingest(context.Background(), &IngestRequest{
		PatientUID: "P-1001",
		Image:      []byte("img"),
		Filename:   "scan.jpg",
		UploadedBy: f.tech.ID,
	})

	require.NoError(t, err)
	require.NotNil(t, scan.ClinicalReasoning)
	assert.Equal(t, reasoner.QuotaPlaceholder, *scan.ClinicalReasoning)
	assert.Equal(t, model.ScanStatusCompleted, scan.Status)
}

func TestIngestClassifierFailureAborts(t *testing.T) {
	f := newFixture(t,
		&fakeClassifier{err: apperrors.Prediction("classification service unreachable", errors.New("boom"))},
		&fakeReasoner{},
		&fakeUploader{scanURL: "https://assets.example.com/x.jpg"},
	)

	_, err := f.svc.Ingest(context.Background(), &IngestRequest{
		PatientUID: "P-1001",
		Image:      []byte("img"),
		Filename:   "scan.jpg",
		UploadedBy: f.tech.ID,
	})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrPrediction))
	assert.Empty(t, f.scanRepo.scans)
	assert.Empty(t, f.outboxRepo.events)
}

func TestIngestStorageFailureAborts(t *testing.T) {
	f := newFixture(t,
		&fakeClassifier{pred: &predictor.Prediction{Label: model.TumorMeningioma, Confidence: 0.7}},
		&fakeReasoner{explanation: reasoner.Explanation{Text: "note"}},
		&fakeUploader{scanErr: apperrors.Storage("asset store unreachable", errors.New("down"))},
	)

	_, err := f.svc.Ingest(context.Background(), &IngestRequest{
		PatientUID: "P-1001",
		Image:      []byte("img"),
		Filename:   "scan.jpg",
		UploadedBy: f.tech.ID,
	})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrStorage))
	assert.Empty(t, f.scanRepo.scans)
}

func TestIngestUnknownPatient(t *testing.T) {
	f := newFixture(t,
		&fakeClassifier{pred: &predictor.Prediction{Label: model.TumorNone, Confidence: 0.99}},
		&fakeReasoner{explanation: reasoner.Explanation{Text: "note"}},
		&fakeUploader{scanURL: "https://assets.example.com/x.jpg"},
	)

	_, err := f.svc.Ingest(context.Background(), &IngestRequest{
		PatientUID: "P-9999",
		Image:      []byte("img"),
		Filename:   "scan.jpg",
		UploadedBy: f.tech.ID,
	})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.Empty(t, f.scanRepo.scans)
}

func TestVerifiedReviewAdvancesStatus(t *testing.T) {
	f := newFixture(t,
		&fakeClassifier{pred: &predictor.Prediction{Label: model.TumorGlioma, Confidence: 0.87}},
		&fakeReasoner{explanation: reasoner.Explanation{Text: "note"}},
		&fakeUploader{scanURL: "https://a/x.jpg", reportURL: "https://a/report.md"},
	)

	scan, err := f.svc.Ingest(context.Background(), &IngestRequest{
		PatientUID: "P-1001",
		Image:      []byte("img"),
		Filename:   "scan.jpg",
		UploadedBy: f.tech.ID,
	})
	require.NoError(t, err)

	diagnosis := "glioma grade II"
	review, err := f.svc.AddReview(context.Background(), uuid.New(), scan.ID, &model.AddReviewRequest{
		FinalDiagnosis: &diagnosis,
		Verified:       true,
	})
	require.NoError(t, err)
	assert.True(t, review.Verified)

	stored, err := f.svc.Get(context.Background(), scan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusVerified, stored.Status)

	// Report generated and uploader notified.
	assert.Equal(t, 1, f.uploader.numReports)
	require.Len(t, f.scanRepo.reports, 1)
	assert.Equal(t, "https://a/report.md", f.scanRepo.reports[0].ReportURL)
	assert.Equal(t, []string{"tech@example.com"}, f.mailer.sentTo)

	// SCAN_CREATED then SCAN_VERIFIED.
	require.Len(t, f.outboxRepo.events, 2)
	assert.Equal(t, model.EventScanVerified, f.outboxRepo.events[1].EventType)
}

func TestUnverifiedReviewKeepsStatus(t *testing.T) {
	f := newFixture(t,
		&fakeClassifier{pred: &predictor.Prediction{Label: model.TumorGlioma, Confidence: 0.87}},
		&fakeReasoner{explanation: reasoner.Explanation{Text: "note"}},
		&fakeUploader{scanURL: "https://a/x.jpg"},
	)

	scan, err := f.svc.Ingest(context.Background(), &IngestRequest{
		PatientUID: "P-1001",
		Image:      []byte("img"),
		Filename:   "scan.jpg",
		UploadedBy: f.tech.ID,
	})
	require.NoError(t, err)

	comments := "needs a second look"
	_, err = f.svc.AddReview(context.Background(), uuid.New(), scan.ID, &model.AddReviewRequest{
		Comments: &comments,
		Verified: false,
	})
	require.NoError(t, err)

	stored, err := f.svc.Get(context.Background(), scan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusCompleted, stored.Status)
	assert.Equal(t, 0, f.uploader.numReports)
	assert.Empty(t, f.mailer.sentTo)
}

func TestParseScanDate(t *testing.T) {
	// Browser datetime-local format, seconds repaired.
	got := parseScanDate("2024-01-01T10:30")
	assert.Equal(t, time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC), got)

	// Full format accepted as-is.
	got = parseScanDate("2024-06-15T08:45:30")
	assert.Equal(t, time.Date(2024, 6, 15, 8, 45, 30, 0, time.UTC), got)

	// Empty and garbage both fall back to roughly now.
	for _, raw := range []string{"", "not-a-date"} {
		got = parseScanDate(raw)
		assert.WithinDuration(t, time.Now().UTC(), got, 5*time.Second)
	}
}
