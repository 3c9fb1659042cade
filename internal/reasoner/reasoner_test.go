package reasoner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroscan/neuroscan-api/internal/config"
	"github.com/neuroscan/neuroscan-api/internal/model"
	"github.com/neuroscan/neuroscan-api/pkg/logger"
)

func newTestReasoner(url string) *HTTPReasoner {
	return NewHTTPReasoner(config.ReasonerConfig{
		URL:            url,
		APIKey:         "test-key",
		Model:          "primary-model",
		FallbackModel:  "fallback-model",
		TimeoutSeconds: 5 * time.Second,
		CacheTTL:       time.Minute,
	}, logger.NewLogger(nil))
}

func generatedBody(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":"` + text + `"}]}}]}`
}

func TestExplainSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.True(t, strings.Contains(r.URL.Path, "primary-model"))
		w.Write([]byte(generatedBody("Typical glioma presentation.")))
	}))
	defer srv.Close()

	exp := newTestReasoner(srv.URL).Explain(context.Background(), model.TumorGlioma, 0.87,
		PatientContext{Age: 42, Gender: "female"})

	assert.False(t, exp.Degraded)
	assert.Equal(t, "Typical glioma presentation.", exp.Text)
}

func TestExplainQuotaFallsBackThenDegrades(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":{"status":"RESOURCE_EXHAUSTED"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	exp := newTestReasoner(srv.URL).Explain(context.Background(), model.TumorGlioma, 0.87,
		PatientContext{Age: 42, Gender: "female"})

	// Primary then fallback were both tried.
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.True(t, exp.Degraded)
	assert.Equal(t, QuotaPlaceholder, exp.Text)
}

func TestExplainGenericFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	exp := newTestReasoner(srv.URL).Explain(context.Background(), model.TumorMeningioma, 0.7,
		PatientContext{Age: 60, Gender: "male"})

	assert.True(t, exp.Degraded)
	assert.Equal(t, GenericPlaceholder, exp.Text)
}

func TestExplainCachesByDemographics(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(generatedBody("cached note")))
	}))
	defer srv.Close()

	rsn := newTestReasoner(srv.URL)
	ctx := context.Background()
	pc := PatientContext{Age: 42, Gender: "female"}

	first := rsn.Explain(ctx, model.TumorGlioma, 0.87, pc)
	second := rsn.Explain(ctx, model.TumorGlioma, 0.91, pc)
	require.Equal(t, first.Text, second.Text)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Different demographics miss the cache.
	rsn.Explain(ctx, model.TumorGlioma, 0.87, PatientContext{Age: 7, Gender: "male"})
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestExplainDegradedNotCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "internal", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(generatedBody("recovered note")))
	}))
	defer srv.Close()

	rsn := newTestReasoner(srv.URL)
	ctx := context.Background()
	pc := PatientContext{Age: 42, Gender: "female"}

	exp := rsn.Explain(ctx, model.TumorGlioma, 0.87, pc)
	assert.True(t, exp.Degraded)

	// Placeholder was not cached; the retry reaches the server again.
	exp = rsn.Explain(ctx, model.TumorGlioma, 0.87, pc)
	assert.False(t, exp.Degraded)
	assert.Equal(t, "recovered note", exp.Text)
}
