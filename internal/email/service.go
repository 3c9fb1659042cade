package email

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/neuroscan/neuroscan-api/internal/config"
	"github.com/neuroscan/neuroscan-api/internal/model"
	"github.com/neuroscan/neuroscan-api/pkg/logger"
)

// Service sends operational notifications. All sends are best-effort;
// callers must not fail their own operation on a send error.
type Service interface {
	SendScanVerified(ctx context.Context, to string, patient *model.Patient, scan *model.Scan) error
}

type smtpService struct {
	cfg    config.SMTPConfig
	dialer *gomail.Dialer
	logger *logger.Logger
}

func NewSMTPService(cfg config.SMTPConfig, logger *logger.Logger) Service {
	return &smtpService{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger,
	}
}

func (s *smtpService) SendScanVerified(ctx context.Context, to string, patient *model.Patient, scan *model.Scan) error {
	if !s.cfg.Enabled {
		s.logger.Debug("Email disabled, skipping verification notice", "to", to)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("Scan verified for patient %s", patient.PatientUID))
	m.SetBody("text/html", fmt.Sprintf(
		`<p>A scan you uploaded has been reviewed and verified by a doctor.</p>
<ul>
  <li>Patient: %s (%s)</li>
  <li>Classification: %s (%.1f%% confidence)</li>
  <li>Scan date: %s</li>
</ul>
<p>The full report is available in the scan record.</p>`,
		patient.FullName, patient.PatientUID,
		scan.TumorType, scan.Confidence*100,
		scan.ScanDate.Format("2006-01-02 15:04")))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send verification notice: %w", err)
	}
	return nil
}
