package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/patrickmn/go-cache"

	"github.com/neuroscan/neuroscan-api/internal/config"
	"github.com/neuroscan/neuroscan-api/internal/model"
	"github.com/neuroscan/neuroscan-api/pkg/logger"
)

// Placeholder texts stored when no generated reasoning is available.
// Degraded explanations never block scan ingestion.
const (
	QuotaPlaceholder   = "**System Note:** AI reasoning temporarily unavailable due to usage limits. Please retry after a short interval."
	GenericPlaceholder = "**System Note:** AI reasoning currently unavailable."
)

// Explanation is generated clinical reasoning for a classification.
// Degraded marks placeholder text produced when generation failed.
type Explanation struct {
	Text     string
	Degraded bool
}

// PatientContext carries the demographic fields the prompt is built from.
type PatientContext struct {
	Age    int
	Gender string
}

// Reasoner produces clinical reasoning text for a classified scan.
type Reasoner interface {
	Explain(ctx context.Context, label model.TumorType, confidence float64, patient PatientContext) Explanation
}

// HTTPReasoner calls a hosted generative-language API. Responses are
// cached per label and patient demographics so repeated uploads for the
// same presentation do not burn quota.
type HTTPReasoner struct {
	cfg    config.ReasonerConfig
	client *http.Client
	cache  *cache.Cache
	logger *logger.Logger
}

func NewHTTPReasoner(cfg config.ReasonerConfig, logger *logger.Logger) *HTTPReasoner {
	return &HTTPReasoner{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.TimeoutSeconds},
		cache:  cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger: logger,
	}
}

func (r *HTTPReasoner) Explain(ctx context.Context, label model.TumorType, confidence float64, patient PatientContext) Explanation {
	cacheKey := fmt.Sprintf("%s|%d|%s", label, patient.Age, patient.Gender)
	if cached, found := r.cache.Get(cacheKey); found {
		return Explanation{Text: cached.(string)}
	}

	prompt := buildPrompt(label, confidence, patient)

	text, err := r.generate(ctx, r.cfg.Model, prompt)
	if err != nil && isQuotaError(err) && r.cfg.FallbackModel != "" {
		r.logger.Info("Primary reasoning model over quota, trying fallback",
			"model", r.cfg.Model, "fallback", r.cfg.FallbackModel)
		text, err = r.generate(ctx, r.cfg.FallbackModel, prompt)
	}

	if err != nil {
		r.logger.Error(err, "Reasoning generation failed", "label", string(label))
		if isQuotaError(err) {
			return Explanation{Text: QuotaPlaceholder, Degraded: true}
		}
		return Explanation{Text: GenericPlaceholder, Degraded: true}
	}

	r.cache.Set(cacheKey, text, cache.DefaultExpiration)
	return Explanation{Text: text}
}

func buildPrompt(label model.TumorType, confidence float64, patient PatientContext) string {
	if label == model.TumorNone {
		return fmt.Sprintf(
			"An MRI scan of a %d-year-old %s patient was classified as showing no tumor "+
				"with %.1f%% confidence. Write a short clinical note (3-4 sentences) for the "+
				"reviewing radiologist summarizing this finding and any recommended follow-up. "+
				"Use markdown.",
			patient.Age, patient.Gender, confidence*100)
	}
	return fmt.Sprintf(
		"An MRI scan of a %d-year-old %s patient was classified as a %s tumor with "+
			"%.1f%% confidence. Write a short clinical note (3-4 sentences) for the reviewing "+
			"radiologist describing typical characteristics of this tumor type, its common "+
			"presentation for this demographic, and recommended next steps. Use markdown.",
		patient.Age, patient.Gender, label, confidence*100)
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// quotaError wraps failures that indicate exhausted usage limits.
type quotaError struct {
	status int
	body   string
}

func (e *quotaError) Error() string {
	return fmt.Sprintf("reasoning quota exhausted (status %d): %s", e.status, e.body)
}

func isQuotaError(err error) bool {
	_, ok := err.(*quotaError)
	return ok
}

func (r *HTTPReasoner) generate(ctx context.Context, modelName, prompt string) (string, error) {
	reqBody, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal reasoning request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", strings.TrimRight(r.cfg.URL, "/"), modelName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to build reasoning request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reasoning service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if resp.StatusCode == http.StatusTooManyRequests || strings.Contains(string(respBody), "RESOURCE_EXHAUSTED") {
			return "", &quotaError{status: resp.StatusCode, body: string(respBody)}
		}
		return "", fmt.Errorf("reasoning service returned status %d: %s", resp.StatusCode, respBody)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode reasoning response: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("reasoning response contained no candidates")
	}

	text := strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("reasoning response was empty")
	}
	return text, nil
}
