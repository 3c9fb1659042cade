package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"

	"github.com/neuroscan/neuroscan-api/internal/config"
	"github.com/neuroscan/neuroscan-api/internal/model"
	"github.com/neuroscan/neuroscan-api/pkg/circuitbreaker"
	apperrors "github.com/neuroscan/neuroscan-api/pkg/errors"
	"github.com/neuroscan/neuroscan-api/pkg/logger"
)

// Prediction is the classifier verdict for a single image.
type Prediction struct {
	Label      model.TumorType `json:"label"`
	Confidence float64         `json:"confidence"`
}

// Classifier produces a tumor classification for an MRI image.
type Classifier interface {
	Classify(ctx context.Context, image []byte, filename string) (*Prediction, error)
}

// HTTPClassifier calls the hosted CNN model over HTTP. The underlying
// client is initialized on first use so constructing the service does
// not touch the network.
type HTTPClassifier struct {
	cfg    config.ClassifierConfig
	logger *logger.Logger
	cb     *circuitbreaker.CircuitBreaker

	once   sync.Once
	client *http.Client
}

func NewHTTPClassifier(cfg config.ClassifierConfig, logger *logger.Logger) *HTTPClassifier {
	return &HTTPClassifier{
		cfg:    cfg,
		logger: logger,
		cb: circuitbreaker.New(circuitbreaker.Settings{
			Name:        "classifier",
			MaxFailures: 5,
		}),
	}
}

func (c *HTTPClassifier) httpClient() *http.Client {
	c.once.Do(func() {
		c.client = &http.Client{Timeout: c.cfg.TimeoutSeconds}
	})
	return c.client
}

func (c *HTTPClassifier) Classify(ctx context.Context, image []byte, filename string) (*Prediction, error) {
	var pred *Prediction
	err := c.cb.Execute(func() error {
		var execErr error
		pred, execErr = c.classify(ctx, image, filename)
		return execErr
	})
	if err != nil {
		if err == circuitbreaker.ErrOpen {
			return nil, apperrors.Prediction("classification service unavailable", err)
		}
		return nil, err
	}
	return pred, nil
}

func (c *HTTPClassifier) classify(ctx context.Context, image []byte, filename string) (*Prediction, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, apperrors.Prediction("failed to build classifier request", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, apperrors.Prediction("failed to build classifier request", err)
	}
	if err := writer.Close(); err != nil {
		return nil, apperrors.Prediction("failed to build classifier request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, body)
	if err != nil {
		return nil, apperrors.Prediction("failed to build classifier request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, apperrors.Prediction("classification service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error(nil, "Classifier returned non-OK status",
			"status", resp.StatusCode,
			"body", string(respBody))
		return nil, apperrors.Prediction(
			fmt.Sprintf("classification service returned status %d", resp.StatusCode), nil)
	}

	var result struct {
		Label      model.TumorType `json:"label"`
		Confidence float64         `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.Prediction("failed to decode classifier response", err)
	}

	if !result.Label.Valid() {
		return nil, apperrors.Prediction(
			fmt.Sprintf("classifier returned unknown label %q", result.Label), nil)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, apperrors.Prediction(
			fmt.Sprintf("classifier returned out-of-range confidence %f", result.Confidence), nil)
	}

	return &Prediction{Label: result.Label, Confidence: result.Confidence}, nil
}
