package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexanderramin/clicktrail/internal/capture"
	"github.com/alexanderramin/clicktrail/internal/llm"
	"github.com/alexanderramin/clicktrail/internal/service"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnEvent_CountsOutcomes(t *testing.T) {
	m := New()

	m.OnEvent(capture.EventOutcome{Recorded: true, Reason: capture.ReasonRecorded, Stable: true, StabilityWait: 300 * time.Millisecond})
	m.OnEvent(capture.EventOutcome{Recorded: true, Reason: capture.ReasonRecorded, FieldFailures: 2, StabilityWait: time.Second})
	m.OnEvent(capture.EventOutcome{Reason: capture.ReasonNoActiveApp})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.clicks.WithLabelValues(capture.ReasonRecorded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clicks.WithLabelValues(capture.ReasonNoActiveApp)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fieldFailures))
	assert.Equal(t, 2, testutil.CollectAndCount(m.stabilityWait))
}

func TestOnCallComplete(t *testing.T) {
	m := New()

	m.OnCallComplete(llm.CallEvent{Provider: llm.ProviderOpenAI, Success: true, LatencyMs: 1200, Images: 10})
	m.OnCallComplete(llm.CallEvent{Provider: llm.ProviderOpenAI, ErrorCode: "HTTP_STATUS", LatencyMs: 80})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("openai", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("openai", "HTTP_STATUS")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.llmImages))
}

func TestObserveUseCase(t *testing.T) {
	m := New()

	m.ObserveUseCase(context.Background(), service.UseCaseEvent{Name: "analyze-session", Success: true, Duration: 3 * time.Second})
	m.ObserveUseCase(context.Background(), service.UseCaseEvent{Name: "analyze-session", Duration: time.Second})

	assert.Equal(t, 2, testutil.CollectAndCount(m.useCases))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.OnEvent(capture.EventOutcome{Reason: capture.ReasonStorage})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `clicktrail_clicks_total{outcome="storage"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
