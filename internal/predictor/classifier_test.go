package predictor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroscan/neuroscan-api/internal/config"
	"github.com/neuroscan/neuroscan-api/internal/model"
	apperrors "github.com/neuroscan/neuroscan-api/pkg/errors"
	"github.com/neuroscan/neuroscan-api/pkg/logger"
)

func newTestClassifier(url string) *HTTPClassifier {
	return NewHTTPClassifier(config.ClassifierConfig{
		URL:            url,
		TimeoutSeconds: 5 * time.Second,
	}, logger.NewLogger(nil))
}

func TestClassifySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "scan.jpg", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"label":"glioma","confidence":0.87}`))
	}))
	defer srv.Close()

	pred, err := newTestClassifier(srv.URL).Classify(context.Background(), []byte("img"), "scan.jpg")
	require.NoError(t, err)
	assert.Equal(t, model.TumorGlioma, pred.Label)
	assert.Equal(t, 0.87, pred.Confidence)
}

func TestClassifyUnknownLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"label":"sarcoma","confidence":0.5}`))
	}))
	defer srv.Close()

	_, err := newTestClassifier(srv.URL).Classify(context.Background(), []byte("img"), "scan.jpg")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrPrediction))
}

func TestClassifyOutOfRangeConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"label":"glioma","confidence":1.5}`))
	}))
	defer srv.Close()

	_, err := newTestClassifier(srv.URL).Classify(context.Background(), []byte("img"), "scan.jpg")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrPrediction))
}

func TestClassifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClassifier(srv.URL).Classify(context.Background(), []byte("img"), "scan.jpg")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrPrediction))
}

func TestClassifyCircuitOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClassifier(srv.URL)
	for i := 0; i < 5; i++ {
		_, err := c.Classify(context.Background(), []byte("img"), "scan.jpg")
		require.Error(t, err)
	}

	// Breaker is now open; calls fail fast without reaching the server.
	_, err := c.Classify(context.Background(), []byte("img"), "scan.jpg")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrPrediction))
}
