// Command agentdesk runs the agent chat API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/matiasleandrokruk/agentdesk/internal/api"
	"github.com/matiasleandrokruk/agentdesk/internal/domain/analytics"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/config"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/eventbus"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/llm"
	"github.com/matiasleandrokruk/agentdesk/internal/infra/sqlite"
	"github.com/matiasleandrokruk/agentdesk/internal/server"
	"github.com/matiasleandrokruk/agentdesk/internal/version"
	pkgauth "github.com/matiasleandrokruk/agentdesk/pkg/auth"
)

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet(version.Name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}

	if *showHelp {
		printHelp(out)
		return 0
	}

	switch cmd := fs.Arg(0); cmd {
	case "":
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	case "serve", "migrate":
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintln(out, err) //nolint:errcheck
			return 1
		}
		logger := newLogger(os.Stderr, cfg.LogLevel)
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cmd == "migrate" {
			err = migrate(cfg, out)
		} else {
			err = serve(ctx, cfg, logger)
		}
		if err != nil {
			logger.Error(cmd+" failed", "error", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(out, "unknown command %q\n\n", cmd) //nolint:errcheck
		printHelp(out)
		return 2
	}
}

// newLogger returns a JSON slog logger. Unknown levels fall back to info.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// openDB opens the database, creating its directory, and applies migrations.
func openDB(path string) (*sql.DB, error) {
	if path != sqlite.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sqlite.NewDB(path)
	if err != nil {
		return nil, err
	}
	if err := sqlite.MigrateUp(db); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func migrate(cfg config.Config, out io.Writer) error {
	db, err := openDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	v, err := sqlite.MigrationVersion(db)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "database %s at migration %d\n", cfg.DBPath, v) //nolint:errcheck
	return nil
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	tokens, err := pkgauth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		return err
	}
	if cfg.LLMAPIKey == "" {
		logger.Warn("LLM_API_KEY is not set, chat turns will fail")
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		return err
	}

	counter, err := llm.NewTokenCounter()
	if err != nil {
		logger.Warn("tokenizer unavailable, using heuristic prompt sizes", "error", err)
	}

	bus := eventbus.New()
	defer bus.Close()
	analytics.NewAggregator(db, logger).Start(ctx, bus)

	router := api.NewRouter(api.Deps{
		DB:     db,
		Tokens: tokens,
		Completer: llm.NewClient(llm.ClientConfig{
			BaseURL:        cfg.LLMBaseURL,
			APIKey:         cfg.LLMAPIKey,
			Model:          cfg.LLMModel,
			MaxTokens:      cfg.LLMMaxTokens,
			ThinkingBudget: cfg.LLMThinkingBudget,
		}),
		Events:        bus,
		TokenCounter:  counter,
		HistoryWindow: cfg.HistoryWindow,
		CORSOrigins:   cfg.CORSOrigins,
		Logger:        logger,
	})

	srvCfg := server.DefaultConfig()
	srvCfg.Host, srvCfg.Port = cfg.Host, cfg.Port
	srv := server.NewServer(router, db, srvCfg, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		db.Close() //nolint:errcheck
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
}

func printHelp(out io.Writer) {
	helpText := `agentdesk - multi-tenant AI agent chat API

Usage:
  agentdesk [options] [command]

Options:
  --version    Show version information
  --help       Show this help message

Commands:
  serve        Start the HTTP server
  migrate      Apply database migrations and print the schema version

Environment:
  JWT_SECRET, LLM_API_KEY, LLM_API_URL, LLM_MODEL, DB_PATH, HOST, PORT,
  CHAT_HISTORY_WINDOW, LOG_LEVEL, CORS_ALLOWED_ORIGINS, AGENTDESK_CONFIG (YAML file)

Examples:
  agentdesk --version
  PORT=8080 agentdesk serve
  agentdesk migrate`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
