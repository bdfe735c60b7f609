package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github-analyzer/internal/config"
	"github-analyzer/internal/github"
	"github-analyzer/internal/store"
	"github-analyzer/internal/store/memory"
	mongostore "github-analyzer/internal/store/mongo"
	"github-analyzer/internal/store/postgres"
	"github-analyzer/internal/syncer"
)

var (
	configDir    string
	logLevelFlag string
	outputJSON   bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "analyzer",
	Short: "Analyze GitHub repositories and contributors by topic",
	Long: `analyzer fetches repository and contributor metadata from the GitHub API
and stores it in MongoDB (or PostgreSQL) for later inspection.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory containing an optional .env file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn or error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print results as JSON")
}

// setup loads configuration and installs the process logger. Logs go to
// stderr so that tables and JSON on stdout stay machine readable.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.LoadConfig(configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.LogLevel
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	logLevel := new(slog.LevelVar)
	setLogLevel(level, logLevel)
	logger = newLogger(cfg.LogFormat, cmd.ErrOrStderr(), logLevel)
	slog.SetDefault(logger)

	logger.Debug("Configuration loaded successfully", "store_driver", cfg.StoreDriver)
	return nil
}

func newLogger(format string, w io.Writer, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch strings.ToLower(level) {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}

// openStore connects to the configured backend.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		s, err := postgres.New(ctx, cfg.DBURL, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreMemory:
		logger.Warn("Using the in-memory store; results are discarded on exit")
		return memory.New(), nil
	default:
		s, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func githubConfig() github.Config {
	return github.Config{
		BaseURL:         cfg.GithubAPIURL,
		Token:           cfg.GithubToken,
		SafetyMargin:    cfg.RateLimitSafetyMargin,
		MinWait:         cfg.RateLimitMinWait,
		MaxWait:         cfg.RateLimitMaxWait,
		RequestInterval: cfg.RequestInterval,
		MaxAttempts:     cfg.MaxAttempts,
		InitialBackoff:  cfg.InitialBackoff,
		MaxBackoff:      cfg.MaxBackoff,
		Timeout:         cfg.RequestTimeout,
	}
}

// newSyncer wires the GitHub client and, when save is set, a store. The
// returned cleanup closes the store.
func newSyncer(ctx context.Context, save bool) (*syncer.Syncer, func(), error) {
	if err := cfg.RequireToken(); err != nil {
		return nil, nil, err
	}
	client, err := github.NewClient(githubConfig(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	var st store.Store
	cleanup := func() {}
	if save {
		st, err = openStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { closeStore(st) }
	}
	return syncer.New(client, st, logger, syncer.Options{Concurrency: cfg.Concurrency}), cleanup, nil
}

func closeStore(st store.Store) {
	if err := st.Close(context.Background()); err != nil {
		logger.Warn("Failed to close store", "error", err)
	}
}

// withStore runs fn against the configured store and closes it afterwards.
func withStore(ctx context.Context, fn func(store.Store) error) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)
	return fn(st)
}
