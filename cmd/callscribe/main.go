// Command callscribe turns diarized call recordings into two-party
// Agent/Customer transcripts. It runs as an HTTP service or as a one-shot
// command line tool.
package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/MrWong99/callscribe/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Globals are flags shared by every command.
type Globals struct {
	LogLevel  *string `env:"CALLSCRIBE_LOG_LEVEL" enum:"debug,info,warn,error" help:"Log level; overrides server.log_level [${enum}]"`
	LogFormat *string `env:"CALLSCRIBE_LOG_FORMAT" enum:"text,json" help:"Log format; overrides server.log_format [${enum}]"`
}

// logLevel is shared by every handler newLogger builds so a config reload
// can change it.
var logLevel = new(slog.LevelVar)

// CLI is the command tree.
type CLI struct {
	Globals `embed:""`

	Serve          ServeCmd          `cmd:"" default:"withargs" help:"Run the HTTP transcription service"`
	Transcribe     TranscribeCmd     `cmd:"" help:"Transcribe recordings from disk"`
	Format         FormatCmd         `cmd:"" help:"Format a saved json-v2 recognition result"`
	Parse          ParseCmd          `cmd:"" help:"Parse a plain-text transcript"`
	ValidateConfig ValidateConfigCmd `cmd:"" name:"validate-config" help:"Check a config file and exit"`
}

func main() {
	loadEnvFiles()

	var cli CLI
	slog.SetDefault(newLogger(os.Stderr, logLevel, config.LogFormatText))

	ctx := kong.Parse(&cli,
		kong.Name("callscribe"),
		kong.Description("Speaker-stabilised call transcription.\n\nVersion: ${version}"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	if cli.LogLevel != nil {
		logLevel.Set(config.LogLevel(*cli.LogLevel).Level())
	}
	if cli.LogFormat != nil {
		slog.SetDefault(newLogger(os.Stderr, logLevel, config.LogFormat(*cli.LogFormat)))
	}

	if err := ctx.Run(&cli.Globals); err != nil {
		slog.Error("callscribe failed", "command", ctx.Command(), "err", err)
		os.Exit(1)
	}
}

// loadEnvFiles loads the first-found .env style files so ${VAR} references
// in the config resolve without exporting secrets in the shell. Variables
// already set in the environment win.
func loadEnvFiles() {
	envFiles := []string{".env", "callscribe.env"}
	if home, err := os.UserHomeDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(home, ".config", "callscribe.env"))
	}
	if extra := os.Getenv("CALLSCRIBE_ENV_FILE"); extra != "" {
		envFiles = append([]string{extra}, envFiles...)
	}

	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		if err := godotenv.Load(envFile); err != nil {
			slog.Error("failed to load environment file", "path", envFile, "err", err)
			continue
		}
		slog.Debug("loaded environment file", "path", envFile)
	}
}

// applyConfig takes the log settings from cfg unless a flag overrode them.
func (g *Globals) applyConfig(cfg *config.Config) {
	if g.LogLevel == nil {
		logLevel.Set(cfg.Server.LogLevel.Level())
	}
	if g.LogFormat == nil {
		slog.SetDefault(newLogger(os.Stderr, logLevel, cfg.Server.LogFormat))
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(w io.Writer, level *slog.LevelVar, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
