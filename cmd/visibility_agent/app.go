package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/jonathan/ai-visibility/internal/config"
	"github.com/jonathan/ai-visibility/internal/correlation"
	"github.com/jonathan/ai-visibility/internal/db"
	"github.com/jonathan/ai-visibility/internal/deepdive"
	"github.com/jonathan/ai-visibility/internal/jobs"
	"github.com/jonathan/ai-visibility/internal/llm"
	"github.com/jonathan/ai-visibility/internal/orchestrator"
	"github.com/jonathan/ai-visibility/internal/report"
	"github.com/jonathan/ai-visibility/internal/runindex"
	"github.com/jonathan/ai-visibility/internal/storage"
	"github.com/jonathan/ai-visibility/internal/subscription"
)

// app holds the components shared by every command.
type app struct {
	settings  config.Settings
	store     *storage.FSStore
	resolver  *correlation.Resolver
	reports   *report.Builder
	business  *config.BusinessStore
	runs      *orchestrator.Service
	deepDives *deepdive.Service
	usage     *subscription.Tracker

	closers []func()
}

// Close releases databases and clients in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires storage, the run index, the job store, the workers and the
// optional Postgres database from settings.
func newApp(ctx context.Context, settings config.Settings) (*app, error) {
	a := &app{settings: settings}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	s := a.settings

	store, err := storage.NewFSStore(s.ResultsDir)
	if err != nil {
		return fmt.Errorf("failed to open results directory: %w", err)
	}
	a.store = store

	index := runindex.Multi{runindex.NewFileIndex(store)}
	if s.IndexPath != "" {
		sqlite, err := runindex.OpenSQLite(s.IndexPath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = sqlite.Close() })
		index = append(runindex.Multi{sqlite}, index...)
		log.Printf("[app] run index at %s", sqlite.Path())
	}

	a.resolver = correlation.NewResolver(store, index)
	a.reports = report.NewBuilder(store, a.resolver)
	a.business = config.NewBusinessStore(s.BusinessConfig)

	jobStore, err := a.jobStore(ctx)
	if err != nil {
		return err
	}

	var local *orchestrator.Local
	var remote *orchestrator.Remote
	if s.RemoteMode() {
		remote = orchestrator.NewRemote(orchestrator.NewHTTPBackend(s.BackendURL, nil))
		log.Printf("[app] remote mode, backend %s", s.BackendURL)
	} else {
		worker, err := a.worker(ctx)
		if err != nil {
			return err
		}
		local = orchestrator.NewLocal(store, index, orchestrator.NewRegistry(worker), a.business, s.MaxParallelProviders)
		log.Printf("[app] local mode, %s workers", s.WorkerMode)
	}
	a.runs = orchestrator.NewService(jobStore, local, remote)

	if s.DatabaseURL == "" {
		a.deepDives = deepdive.NewService(deepdive.NewFileStore(s.DeepDiveFile))
		a.usage = subscription.NewTracker(subscription.NewMemoryUsage())
		return nil
	}

	database, err := db.Connect(ctx, s.DatabaseURL)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, database.Close)
	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	a.deepDives = deepdive.NewService(deepdive.NewPostgresStore(database))
	a.usage = subscription.NewTracker(subscription.NewPostgresUsage(database))
	return nil
}

func (a *app) jobStore(ctx context.Context) (jobs.Store, error) {
	s := a.settings
	if s.RedisAddr != "" {
		rs := jobs.NewRedisStore(s.RedisAddr, s.RedisPassword, s.RedisDB, s.Retention())
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", s.RedisAddr, err)
		}
		a.closers = append(a.closers, func() { _ = rs.Close() })
		return rs, nil
	}

	ms := jobs.NewMemoryStore(s.Retention())
	sweepCtx, cancel := context.WithCancel(context.Background())
	ms.StartSweeper(sweepCtx, time.Minute)
	a.closers = append(a.closers, cancel)
	return ms, nil
}

func (a *app) worker(ctx context.Context) (orchestrator.Worker, error) {
	s := a.settings
	if s.WorkerMode == config.WorkerModeLLM {
		if s.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for worker mode %q", config.WorkerModeLLM)
		}
		client, err := llm.NewClient(ctx, llm.ConfigFromEnv(), s.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return orchestrator.NewLLMWorker(client, a.store), nil
	}

	configPath, err := filepath.Abs(s.BusinessConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve business config path: %w", err)
	}
	return &orchestrator.ExecWorker{
		Python:     s.PythonBin,
		Dir:        s.WorkerDir,
		ConfigPath: configPath,
		EnvFile:    s.WorkerEnvFile,
		Store:      a.store,
	}, nil
}

// loadSettings resolves settings for a command and applies flag overrides.
func loadSettings(override func(*config.Settings)) (config.Settings, error) {
	s, err := config.Load(settingsPath)
	if err != nil {
		return config.Settings{}, err
	}
	if override != nil {
		override(&s)
		if err := s.Validate(); err != nil {
			return config.Settings{}, err
		}
	}
	return s, nil
}
