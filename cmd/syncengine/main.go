// Command syncengine runs the execution and scheduling engine as a
// standalone process: it opens the configured store, starts the
// scheduler's background dispatch loop, and serves a WebSocket event feed
// plus a Prometheus metrics endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rsync-studio/syncengine/internal/domain"
	"github.com/rsync-studio/syncengine/internal/engine"
	"github.com/rsync-studio/syncengine/internal/eventsink/wsink"
	"github.com/rsync-studio/syncengine/internal/logging"
	"github.com/rsync-studio/syncengine/internal/registry"
	"github.com/rsync-studio/syncengine/internal/repository"
	"github.com/rsync-studio/syncengine/internal/retention"
	"github.com/rsync-studio/syncengine/internal/scheduler"
	"github.com/rsync-studio/syncengine/internal/store/gormstore"
	"github.com/rsync-studio/syncengine/internal/transfer"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type config struct {
	httpAddr   string
	dbDriver   string
	dbDSN      string
	logLevel   string
	rsyncBin   string
	defaultLog string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "syncengine",
		Short: "syncengine — recurring rsync job execution and scheduling engine",
		Long: `syncengine orchestrates recurring, scriptable file-synchronization
jobs that wrap rsync: durable job definitions, supervised subprocess
execution, live progress streaming, time-bucketed snapshot retention,
run statistics, and scheduled history pruning.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.httpAddr, "http-addr", envOrDefault("SYNCENGINE_HTTP_ADDR", ":8090"), "address for the WebSocket event feed and metrics endpoint")
	root.PersistentFlags().StringVar(&cfg.dbDriver, "db-driver", envOrDefault("SYNCENGINE_DB_DRIVER", "sqlite"), "store driver (sqlite or postgres)")
	root.PersistentFlags().StringVar(&cfg.dbDSN, "db-dsn", envOrDefault("SYNCENGINE_DB_DSN", "./syncengine.db"), "store DSN or sqlite file path")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("SYNCENGINE_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.rsyncBin, "rsync-bin", envOrDefault("SYNCENGINE_RSYNC_BIN", "rsync"), "rsync binary name or path")
	root.PersistentFlags().StringVar(&cfg.defaultLog, "log-dir", envOrDefault("SYNCENGINE_LOG_DIR", "./logs"), "fallback invocation log directory when settings.log_directory is unset")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("syncengine %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := logging.Build(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting syncengine",
		zap.String("version", version),
		zap.String("http_addr", cfg.httpAddr),
		zap.String("db_driver", cfg.dbDriver),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// --- 1. Store ---
	gormDB, err := gormstore.Open(gormstore.Config{
		Driver:   cfg.dbDriver,
		DSN:      cfg.dbDSN,
		Logger:   logger,
		LogLevel: gormLogLevel(cfg.logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	jobRepo := gormstore.NewJobRepository(gormDB)
	invocationRepo := gormstore.NewInvocationRepository(gormDB)
	snapshotRepo := gormstore.NewSnapshotRepository(gormDB)
	statisticsRepo := gormstore.NewStatisticsRepository(gormDB)
	settingsRepo := gormstore.NewSettingsRepository(gormDB)
	settings := repository.SettingsAdapter{Repo: settingsRepo, Ctx: ctx}

	// --- 2. Execution engine ---
	supervisor := transfer.NewSupervisor(cfg.rsyncBin)
	jobRegistry := registry.New()

	eng := engine.New(engine.Config{
		Supervisor:    supervisor,
		Registry:      jobRegistry,
		Invocations:   invocationRepo,
		Snapshots:     snapshotRepo,
		Statistics:    statisticsRepo,
		Settings:      settings,
		DefaultLogDir: cfg.defaultLog,
		Logger:        logger,
	})

	// --- 3. Event feed ---
	hub := wsink.NewHub()
	defer hub.CloseAll()

	// --- 4. Scheduler ---
	sched, err := scheduler.New(scheduler.Config{
		Jobs:        jobRepo,
		Invocations: invocationRepo,
		Executor:    eng,
		Settings:    settings,
		SinkFactory: func(job domain.Job) engine.EventSink {
			return wsink.NewSink(hub, job.ID.String())
		},
		OnScheduled: func(job domain.Job) {
			logger.Info("dispatching scheduled job", zap.String("job_id", job.ID.String()), zap.String("job_name", job.Name))
		},
		RetentionSweep: func(ctx context.Context) error {
			return runHistoryRetention(ctx, invocationRepo, settings, logger)
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			logger.Warn("scheduler shutdown error", zap.Error(err))
		}
	}()

	// --- 5. HTTP: WebSocket event feed + metrics ---
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/jobs/", func(w http.ResponseWriter, r *http.Request) {
		jobID := r.URL.Path[len("/ws/jobs/"):]
		if jobID == "" {
			http.Error(w, "job id required", http.StatusBadRequest)
			return
		}
		client, err := wsink.NewClient(hub, w, r, jobID, logger)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client.Serve()
	})
	mux.Handle("/metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:         cfg.httpAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.httpAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down syncengine")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	eng.Wait()
	logger.Info("syncengine stopped")
	return nil
}

// runHistoryRetention sweeps old/overflow invocation records, deleting each
// pruned invocation's log file (best-effort) and then its row.
func runHistoryRetention(ctx context.Context, invocations repository.InvocationRepository, settings domain.SettingsReader, logger *zap.Logger) error {
	all, err := invocations.ListAll(ctx, repository.ListOptions{})
	if err != nil {
		return fmt.Errorf("history retention: list invocations: %w", err)
	}

	cfg := retention.HistoryConfig{
		MaxAgeDays: domain.IntSetting(settings, domain.KeyMaxLogAgeDays),
		MaxPerJob:  domain.IntSetting(settings, domain.KeyMaxHistoryPerJob),
	}

	pruned := retention.InvocationsToPrune(all, cfg, time.Now().UTC())
	for _, p := range pruned {
		if p.LogFilePath != nil {
			if err := os.Remove(*p.LogFilePath); err != nil && !os.IsNotExist(err) {
				logger.Warn("failed to remove pruned log file", zap.String("path", *p.LogFilePath), zap.Error(err))
			}
		}
		if err := invocations.Delete(ctx, p.InvocationID); err != nil {
			logger.Error("failed to delete pruned invocation", zap.String("invocation_id", p.InvocationID.String()), zap.Error(err))
		}
	}
	if len(pruned) > 0 {
		logger.Info("history retention pruned invocations", zap.Int("count", len(pruned)))
	}
	return nil
}

// gormLogLevel maps the application log level string to a GORM logger level.
func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "info":
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
