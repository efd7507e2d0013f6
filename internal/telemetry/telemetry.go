package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap"

	"whspr/internal/status"
)

// Metrics records dictation activity as OpenTelemetry instruments exported
// in Prometheus format. It is a status.Sink.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler
	log      *zap.SugaredLogger

	recordings     metric.Int64Counter
	transcriptions metric.Int64Counter
	errors         metric.Int64Counter
	level          metric.Float64Gauge
	recordingDur   metric.Float64Histogram
	transcribeDur  metric.Float64Histogram
	totalDur       metric.Float64Histogram
	vadSaved       metric.Float64Histogram
}

// New builds a meter provider backed by its own Prometheus registry.
func New(log *zap.SugaredLogger) (*Metrics, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	res := resource.NewSchemaless(attribute.String("service.name", "whspr"))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter), sdkmetric.WithResource(res))
	meter := mp.Meter("whspr")

	m := &Metrics{
		provider: mp,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		log:      log,
	}
	var errs []error
	add := func(err error) { errs = append(errs, err) }

	m.recordings, err = meter.Int64Counter("whspr.recordings", metric.WithDescription("Recordings started"))
	add(err)
	m.transcriptions, err = meter.Int64Counter("whspr.transcriptions", metric.WithDescription("Non-empty transcriptions produced"))
	add(err)
	m.errors, err = meter.Int64Counter("whspr.errors", metric.WithDescription("Pipeline failures"))
	add(err)
	m.level, err = meter.Float64Gauge("whspr.input.level", metric.WithDescription("Live input level 0-1"))
	add(err)
	m.recordingDur, err = meter.Float64Histogram("whspr.recording.duration", metric.WithUnit("s"))
	add(err)
	m.transcribeDur, err = meter.Float64Histogram("whspr.transcription.duration", metric.WithUnit("s"))
	add(err)
	m.totalDur, err = meter.Float64Histogram("whspr.pipeline.duration", metric.WithUnit("s"))
	add(err)
	m.vadSaved, err = meter.Float64Histogram("whspr.vad.saved", metric.WithUnit("s"))
	add(err)
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("create instruments: %w", err)
	}
	return m, nil
}

// Handler serves the Prometheus exposition.
func (m *Metrics) Handler() http.Handler { return m.handler }

func (m *Metrics) Publish(ev status.Event) error {
	ctx := context.Background()
	switch ev.Kind {
	case status.KindState:
		switch ev.State {
		case status.Active:
			m.recordings.Add(ctx, 1)
		case status.Error:
			m.errors.Add(ctx, 1)
		}
	case status.KindTranscript:
		m.transcriptions.Add(ctx, 1)
	case status.KindLevel:
		m.level.Record(ctx, float64(ev.Level))
	case status.KindBenchmark:
		if s := ev.Summary; s != nil {
			attrs := metric.WithAttributes(attribute.String("provider", s.Provider))
			m.recordingDur.Record(ctx, s.Recording.Seconds(), attrs)
			m.transcribeDur.Record(ctx, s.Transcription.Seconds(), attrs)
			m.totalDur.Record(ctx, s.Total.Seconds(), attrs)
			if s.SavedAudio > 0 {
				m.vadSaved.Record(ctx, s.SavedAudio.Seconds())
			}
		}
	}
	return nil
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	m.log.Infow("serving metrics", "addr", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Warnw("metrics server stopped", "error", err)
		}
	}()
	return nil
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
