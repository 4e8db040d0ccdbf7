// Package app wires the callscribe subsystems into a running HTTP service.
//
// The App struct owns the full lifecycle: New builds the recognizer chain,
// the orchestrator and the HTTP routes, Run serves until the context is
// cancelled, and Shutdown drains in-flight requests and releases resources.
//
// For testing, inject a recognizer with [WithRecognizer] so that no provider
// registry is needed.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/callscribe/internal/api"
	"github.com/MrWong99/callscribe/internal/config"
	"github.com/MrWong99/callscribe/internal/health"
	"github.com/MrWong99/callscribe/internal/observe"
	"github.com/MrWong99/callscribe/internal/orchestrator"
	"github.com/MrWong99/callscribe/internal/resilience"
	"github.com/MrWong99/callscribe/pkg/provider/stt"
)

// readHeaderTimeout bounds how long a client may take to send headers.
// Bodies are not bounded; a recording upload can be slow.
const readHeaderTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg      atomic.Pointer[config.Config]
	logLevel *slog.LevelVar
	registry *config.Registry
	rec      stt.Recognizer
	metrics  *observe.Metrics
	scrape   http.Handler
	tp       trace.TracerProvider
	orchOpts []orchestrator.Option

	orch    *orchestrator.Orchestrator
	handler http.Handler
	server  *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithRegistry builds the recognizer chain from the providers section of the
// config using reg.
func WithRegistry(reg *config.Registry) Option {
	return func(a *App) { a.registry = reg }
}

// WithRecognizer injects a recognizer instead of building one from config.
func WithRecognizer(r stt.Recognizer) Option {
	return func(a *App) { a.rec = r }
}

// WithMetrics records metrics on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithTelemetry records metrics on t and serves its registry at /metrics.
func WithTelemetry(t *observe.Telemetry) Option {
	return func(a *App) {
		a.metrics = t.Metrics
		a.scrape = t.Handler()
		a.tp = t.TracerProvider
	}
}

// WithTracerProvider starts request and transcription spans on tp instead
// of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *App) { a.tp = tp }
}

// WithLogLevel lets config reloads change the level of the handler that
// reads v.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithOrchestratorOptions appends options to the orchestrator New builds.
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(a *App) { a.orchOpts = append(a.orchOpts, opts...) }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg. Either [WithRegistry] or [WithRecognizer]
// must be given.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{}
	for _, o := range opts {
		o(a)
	}
	a.cfg.Store(cfg)
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.scrape == nil {
		a.scrape = observe.MetricsHandler()
	}

	if a.rec == nil {
		if a.registry == nil {
			return nil, errors.New("app: no recognizer and no provider registry")
		}
		fb, err := a.registry.BuildRecognizer(cfg, a.metrics)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.rec = fb
		slog.Info("recognizer chain ready", "backends", fb.Status())
	}

	orchOpts := append([]orchestrator.Option{
		orchestrator.WithOptions(cfg.OrchestratorOptions()),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithTracerProvider(a.tp),
	}, a.orchOpts...)
	a.orch = orchestrator.New(a.rec, orchOpts...)

	a.handler = a.routes(cfg)
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return a, nil
}

func (a *App) routes(cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	api.New(a.orch, api.WithMaxUploadBytes(int64(cfg.Server.MaxUploadMB)<<20)).Register(mux)

	var checks []health.Checker
	if fb, ok := a.rec.(*resilience.RecognizerFallback); ok {
		checks = append(checks, health.RecognizerCheck(fb, func() []health.BreakerStatus {
			status := fb.Status()
			out := make([]health.BreakerStatus, len(status))
			for i, s := range status {
				out[i] = health.BreakerStatus{Name: s.Name, State: s.State}
			}
			return out
		}))
	}
	health.New(checks...).Register(mux)

	if cfg.Observability.MetricsEnabled() {
		mux.Handle("GET /metrics", a.scrape)
	}
	return observe.Middleware(a.metrics, observe.WithTracerProvider(a.tp))(mux)
}

// Handler returns the root HTTP handler, middleware included.
func (a *App) Handler() http.Handler { return a.handler }

// Orchestrator returns the orchestrator serving transcription requests.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// Config returns the config most recently applied.
func (a *App) Config() *config.Config { return a.cfg.Load() }

// ─── Config reload ───────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable parts of next: the log level, the
// recognition parameters, the retry policy and segmentation. Changes to
// other sections are logged and take effect on the next start.
func (a *App) ApplyConfig(prev, next *config.Config) {
	d := config.Diff(prev, next)

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.OrchestratorChanged() {
		a.orch.SetOptions(next.OrchestratorOptions())
		slog.Info("transcription settings reloaded",
			"transcription", d.TranscriptionChanged,
			"retry", d.RetryChanged,
			"segmentation", d.SegmentationChanged,
		)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes take effect after restart", "sections", d.RestartRequired)
	}
	a.cfg.Store(next)
}

// Watch reloads the config file at path on every change and applies it with
// [App.ApplyConfig]. The watch is released by Shutdown.
func (a *App) Watch(path string, opts ...config.WatcherOption) error {
	w, err := config.NewWatcher(path, a.ApplyConfig, opts...)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if cur := w.Current(); cur != nil {
		a.ApplyConfig(a.cfg.Load(), cur)
	}
	a.closers = append(a.closers, func() error {
		w.Stop()
		return nil
	})
	slog.Info("watching config for changes", "path", path)
	return nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run listens on the configured address and serves until ctx is cancelled.
// When ctx is done, Run returns context.Canceled (or the underlying cause).
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener. The listener is closed on return.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	tls := a.cfg.Load().Server.TLS

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	slog.Info("server listening", "addr", ln.Addr().String(), "tls", tls != nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops accepting requests, waits for in-flight transcriptions
// until ctx expires, then runs the closers in order.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown incomplete", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
