package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/callscribe/internal/app"
	"github.com/MrWong99/callscribe/internal/config"
	"github.com/MrWong99/callscribe/internal/observe"
	"github.com/MrWong99/callscribe/internal/orchestrator"
	"github.com/MrWong99/callscribe/internal/transcript"
	"github.com/MrWong99/callscribe/pkg/provider/stt"
)

// shutdownTimeout bounds the wait for in-flight transcriptions on exit.
const shutdownTimeout = 30 * time.Second

// loadConfig loads path, reporting a missing file with a hint.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", path)
	}
	return cfg, err
}

// newRegistry returns a registry holding the built-in recognizers.
func newRegistry(cfg *config.Config) *config.Registry {
	reg := config.NewRegistry()
	registerBuiltinRecognizers(reg, cfg.Polling)
	return reg
}

// ── serve ─────────────────────────────────────────────────────────────────────

// ServeCmd runs the HTTP service.
type ServeCmd struct {
	Config       string        `short:"c" type:"path" default:"config.yaml" env:"CALLSCRIBE_CONFIG" help:"Path to the YAML configuration file"`
	Watch        bool          `default:"true" negatable:"" help:"Reload the config file when it changes"`
	PollInterval time.Duration `default:"0s" help:"Also re-read the config file on this interval (0 disables)"`
}

// Run starts the service and blocks until SIGINT or SIGTERM.
func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	g.applyConfig(cfg)

	slog.Info("callscribe starting",
		"version", version,
		"config", c.Config,
		"listen_addr", cfg.Server.ListenAddr,
		"recognizer", cfg.Providers.Recognizer.Label(),
		"fallbacks", len(cfg.Providers.Fallbacks),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := observe.Setup(ctx, observe.WithService(cfg.Observability.ServiceName, version))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	opts := []app.Option{app.WithRegistry(newRegistry(cfg)), app.WithTelemetry(tel)}
	if g.LogLevel == nil {
		opts = append(opts, app.WithLogLevel(logLevel))
	}
	application, err := app.New(cfg, opts...)
	if err != nil {
		return err
	}

	if c.Watch {
		var wopts []config.WatcherOption
		if c.PollInterval > 0 {
			wopts = append(wopts, config.WithPollInterval(c.PollInterval))
		}
		if err := application.Watch(c.Config, wopts...); err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		}
	}

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	} else {
		runErr = nil
		slog.Info("shutdown signal received, stopping")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("shutdown: %w", err))
	}
	slog.Info("goodbye")
	return runErr
}

// ── transcribe ────────────────────────────────────────────────────────────────

// TranscribeCmd transcribes local recordings.
type TranscribeCmd struct {
	Config      string   `short:"c" type:"path" default:"config.yaml" env:"CALLSCRIBE_CONFIG" help:"Path to the YAML configuration file"`
	Files       []string `arg:"" type:"existingfile" help:"Recordings to transcribe"`
	Out         string   `short:"o" type:"path" help:"Write one <name>.json result per recording to this directory instead of printing to stdout"`
	Text        bool     `help:"Print plain-text transcripts to stdout instead of one JSON result per line"`
	Concurrency int      `short:"j" default:"2" help:"Recordings transcribed in parallel"`
}

// Run transcribes every file. A failed file does not stop the others.
func (c *TranscribeCmd) Run(g *Globals) error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	g.applyConfig(cfg)

	rec, err := newRegistry(cfg).BuildRecognizer(cfg, nil)
	if err != nil {
		return err
	}
	orch := orchestrator.New(rec, orchestrator.WithOptions(cfg.OrchestratorOptions()))

	if c.Out != "" {
		if err := os.MkdirAll(c.Out, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return transcribeAll(ctx, orch, c.Files, c.Concurrency, c.output(os.Stdout, c.Files))
}

// resultWriter persists one transcription result.
type resultWriter func(path string, res *orchestrator.Result) error

// output returns the writer for the selected mode: <name>.json files under
// --out, plain text with --text, otherwise one JSON result per line on
// stdout.
func (c *TranscribeCmd) output(stdout io.Writer, files []string) resultWriter {
	if c.Out != "" {
		names := outputNames(files)
		return func(path string, res *orchestrator.Result) error {
			data, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(c.Out, names[path]), append(data, '\n'), 0o644)
		}
	}

	var mu sync.Mutex
	if c.Text {
		return func(path string, res *orchestrator.Result) error {
			mu.Lock()
			defer mu.Unlock()
			_, err := fmt.Fprintf(stdout, "== %s (%s)\n%s\n\n", path, describe(res), res.Transcript.FullText)
			return err
		}
	}
	enc := json.NewEncoder(stdout)
	return func(path string, res *orchestrator.Result) error {
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(struct {
			File string `json:"file"`
			*orchestrator.Result
		}{path, res})
	}
}

// outputNames maps every input path to a distinct <base>.json name. Inputs
// sharing a base name get -2, -3, ... suffixes in argument order.
func outputNames(files []string) map[string]string {
	names := make(map[string]string, len(files))
	used := make(map[string]bool, len(files))
	for _, path := range files {
		if _, ok := names[path]; ok {
			continue
		}
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		name := base + ".json"
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s-%d.json", base, n)
		}
		used[name] = true
		names[path] = name
	}
	return names
}

func describe(res *orchestrator.Result) string {
	s := fmt.Sprintf("%d attempt(s)", res.Attempts)
	if res.BestEffort {
		s += ", best effort: " + res.Plausibility.Reason
	}
	return s
}

// transcribeAll runs at most concurrency transcriptions at a time and
// returns the joined per-file errors.
func transcribeAll(ctx context.Context, tr interface {
	Transcribe(context.Context, stt.Audio) (*orchestrator.Result, error)
}, files []string, concurrency int, write resultWriter) error {
	if concurrency < 1 {
		concurrency = 1
	}
	var (
		mu   sync.Mutex
		errs []error
	)
	fail := func(path string, err error) {
		slog.Error("transcription failed", "file", path, "err", err)
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", path, err))
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, path := range files {
		g.Go(func() error {
			res, err := tr.Transcribe(ctx, stt.FileAudio(path))
			if err != nil {
				fail(path, err)
				return nil
			}
			if err := write(path, res); err != nil {
				fail(path, err)
				return nil
			}
			slog.Info("transcribed", "file", path, "id", res.ID, "attempts", res.Attempts, "best_effort", res.BestEffort)
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

// ── format ────────────────────────────────────────────────────────────────────

// FormatCmd formats a saved recognition result without calling a recognizer.
type FormatCmd struct {
	Result string `arg:"" type:"existingfile" help:"json-v2 recognition result"`
	Config string `short:"c" type:"path" help:"Take segmentation settings from this config file"`
	JSON   bool   `help:"Print the transcript and plausibility report as JSON"`
}

// Run prints the formatted transcript.
func (c *FormatCmd) Run(g *Globals) error {
	f := transcript.NewFormatter()
	if c.Config != "" {
		cfg, err := loadConfig(c.Config)
		if err != nil {
			return err
		}
		g.applyConfig(cfg)
		f = cfg.Segmentation.Formatter()
	}

	data, err := os.ReadFile(c.Result)
	if err != nil {
		return err
	}
	var raw stt.RecognitionResult
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode %s: %w", c.Result, err)
	}
	return printTranscript(os.Stdout, f.Format(&raw), c.JSON)
}

// ── parse ─────────────────────────────────────────────────────────────────────

// ParseCmd structures a plain-text transcript.
type ParseCmd struct {
	Transcript string `arg:"" type:"existingfile" help:"Plain-text transcript, one utterance per line"`
	JSON       bool   `default:"true" negatable:"" help:"Print the transcript and plausibility report as JSON"`
}

// Run prints the parsed transcript.
func (c *ParseCmd) Run(*Globals) error {
	data, err := os.ReadFile(c.Transcript)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		return fmt.Errorf("%s is empty", c.Transcript)
	}
	return printTranscript(os.Stdout, transcript.ParseText(string(data)), c.JSON)
}

func printTranscript(w io.Writer, t transcript.Transcript, asJSON bool) error {
	p := transcript.CheckPlausibility(t)
	if !asJSON {
		if !p.Valid {
			slog.Warn("transcript is implausible", "reason", p.Reason)
		}
		_, err := fmt.Fprintln(w, t.FullText)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Plausibility transcript.Plausibility `json:"plausibility"`
		Transcript   transcript.Transcript   `json:"transcript"`
	}{p, t})
}

// ── validate-config ───────────────────────────────────────────────────────────

// ValidateConfigCmd loads a config file and reports problems.
type ValidateConfigCmd struct {
	Config string `arg:"" type:"path" help:"Config file to check"`
}

// Run reports whether the config is valid and whether its recognizers can
// be constructed.
func (c *ValidateConfigCmd) Run(*Globals) error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	rec, err := newRegistry(cfg).BuildRecognizer(cfg, nil)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(rec.Status()))
	for _, s := range rec.Status() {
		names = append(names, s.Name)
	}
	fmt.Printf("%s: ok (recognizers: %s)\n", c.Config, strings.Join(names, ", "))
	return nil
}
