// Package metrics exposes capture and LLM activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alexanderramin/clicktrail/internal/capture"
	"github.com/alexanderramin/clicktrail/internal/llm"
	"github.com/alexanderramin/clicktrail/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clicktrail"

// Metrics implements the capture, LLM and use-case observers on a private
// registry.
type Metrics struct {
	Registry *prometheus.Registry

	clicks        *prometheus.CounterVec
	stabilityWait *prometheus.HistogramVec
	fieldFailures prometheus.Counter
	llmCalls      *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	llmImages     prometheus.Counter
	useCases      *prometheus.HistogramVec
}

var (
	_ capture.Observer = (*Metrics)(nil)
	_ llm.Observer     = (*Metrics)(nil)

	_ service.UseCaseObserver = (*Metrics)(nil)
)

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Clicks handled, by outcome.",
		}, []string{"outcome"}),
		stabilityWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stability_wait_seconds",
			Help:      "Time spent waiting for the screen to settle after a click.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.5, 0.75, 1, 1.5},
		}, []string{"stable"}),
		fieldFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_field_failures_total",
			Help:      "Optional context fields that could not be captured.",
		}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM round trips, by provider and result code.",
		}, []string{"provider", "code"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "LLM round-trip latency.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 9),
		}, []string{"provider"}),
		llmImages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_images_sent_total",
			Help:      "Screenshots attached to LLM requests.",
		}),
		useCases: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "use_case_duration_seconds",
			Help:      "Service use case duration, by name and success.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"use_case", "success"}),
	}

	m.Registry.MustRegister(
		m.clicks, m.stabilityWait, m.fieldFailures,
		m.llmCalls, m.llmLatency, m.llmImages, m.useCases,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) OnEvent(o capture.EventOutcome) {
	m.clicks.WithLabelValues(o.Reason).Inc()
	if o.FieldFailures > 0 {
		m.fieldFailures.Add(float64(o.FieldFailures))
	}
	if o.StabilityWait > 0 {
		m.stabilityWait.WithLabelValues(strconv.FormatBool(o.Stable)).Observe(o.StabilityWait.Seconds())
	}
}

func (m *Metrics) OnCallComplete(e llm.CallEvent) {
	code := "ok"
	if !e.Success {
		code = e.ErrorCode
	}
	m.llmCalls.WithLabelValues(string(e.Provider), code).Inc()
	m.llmLatency.WithLabelValues(string(e.Provider)).Observe(float64(e.LatencyMs) / 1000)
	m.llmImages.Add(float64(e.Images))
}

func (m *Metrics) ObserveUseCase(_ context.Context, e service.UseCaseEvent) {
	m.useCases.WithLabelValues(e.Name, strconv.FormatBool(e.Success)).Observe(e.Duration.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
