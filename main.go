package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streamcast/config"
	"streamcast/credentials"
	"streamcast/encoder"
	"streamcast/job"
	"streamcast/jobstore"
	"streamcast/logger"
	"streamcast/probe"
	"streamcast/routes"
	"streamcast/taskqueue"
	"streamcast/tracker"
	"streamcast/utils"
	writerbackends "streamcast/writerBackends"

	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
)

const (
	recordRetention = 30 * 24 * time.Hour
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("Failed to load .env: %v", err)
	}
	if err := logger.Init(config.GetLogFile(), true); err != nil {
		logger.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()
	logger.SetLevelFromString(config.GetLogLevel())
	logger.Info("Starting streamcast initialization")

	tools, err := config.ResolveTools()
	if err != nil {
		logger.Fatalf("Failed to resolve media tools: %v", err)
	}
	logger.Infof("Using ffmpeg=%s ffprobe=%s", tools.FFmpeg, tools.FFprobe)

	if err := os.MkdirAll(config.GetDataDir(), 0755); err != nil {
		logger.Fatalf("Failed to create data dir: %v", err)
	}
	if err := os.MkdirAll(config.GetWorkRoot(), 0755); err != nil {
		logger.Fatalf("Failed to create work root: %v", err)
	}

	creds, err := credentials.Open(config.GetCredentialsDBPath())
	if err != nil {
		logger.Fatalf("Failed to initialize credentials store: %v", err)
	}
	defer creds.Close()

	jobs, err := jobstore.Open(config.GetJobsDBPath())
	if err != nil {
		logger.Fatalf("Failed to initialize job store: %v", err)
	}
	defer jobs.Close()

	ledger, err := taskqueue.OpenLedger(config.GetLedgerDBPath())
	if err != nil {
		logger.Fatalf("Failed to initialize job ledger: %v", err)
	}
	defer ledger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, creds)
	if err != nil {
		logger.Fatalf("Failed to initialize storage backend: %v", err)
	}
	defer writerbackends.Close(backend)
	logger.Infof("Publishing to %s backend", backend.Name())

	trk, webhook, closeTrackers := buildTrackers(ctx, jobs)
	defer closeTrackers()

	runner := utils.ExecRunner{}
	strays := job.StrayRoot(config.GetStrayDir(), config.GetWorkers())
	pipeline := job.NewPipeline(job.Deps{
		Prober:         probe.NewProber(tools, runner),
		Encoder:        encoder.New(tools, runner, config.GetEncodeTimeout()),
		Publisher:      writerbackends.NewPublisher(backend, config.GetUploadConcurrency(), config.GetUploadTimeout()),
		Tracker:        trk,
		Source:         backend,
		DeliveryDomain: config.GetDeliveryDomain(),
		FallbackRoot:   strays,
	})

	supervisor := job.NewSupervisor(job.SupervisorConfig{
		Runner:         pipeline,
		Ledger:         ledger,
		Registry:       jobs,
		Tracker:        trk,
		Callbacks:      webhook,
		WorkRoot:       config.GetWorkRoot(),
		FallbackRoot:   strays,
		Workers:        config.GetWorkers(),
		QueueSize:      config.GetQueueSize(),
		JobTimeout:     config.GetJobTimeout(),
		OrphanDeadline: config.GetOrphanDeadline(),
	})

	// Anything left in the ledger belongs to a previous process.
	if n, err := supervisor.SweepOrphans(ctx); err != nil {
		logger.Errorf("Startup orphan sweep failed: %v", err)
	} else if n > 0 {
		logger.Warnf("Failed %d orphaned jobs from a previous run", n)
	}
	if n, err := supervisor.Resume(ctx); err != nil {
		logger.Errorf("Failed to resume jobs: %v", err)
	} else if n > 0 {
		logger.Infof("Resumed %d jobs from a previous run", n)
	}
	supervisor.Start()

	go maintenanceRoutine(ctx, jobs, supervisor)

	api := &routes.API{
		Jobs:        supervisor,
		Registry:    jobs,
		Credentials: creds,
		JWTSecret:   []byte(config.GetJWTSecret()),
		AdminToken:  config.GetAdminToken(),
	}
	if len(api.JWTSecret) == 0 {
		logger.Warn("STREAMCAST_JWT_SECRET is not set; job submissions will be refused")
	}
	mux := http.NewServeMux()
	api.Register(mux)

	srv := &http.Server{
		Addr:              config.GetListenAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("streamcast listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown: %v", err)
	}
	if err := supervisor.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Supervisor shutdown: %v", err)
	}
}

// openBackend builds the storage backend from stored credentials when
// STREAMCAST_STORAGE_KEY is set, otherwise from the environment.
func openBackend(ctx context.Context, creds *credentials.Store) (writerbackends.Backend, error) {
	if key := config.GetStorageKey(); key != "" {
		stored, err := creds.Get(key)
		if err != nil {
			return nil, err
		}
		return writerbackends.New(ctx, stored.Backend, stored.AccessInfo)
	}
	return writerbackends.New(ctx, config.GetStorageBackend(), config.StorageCredentialsFromEnv())
}

// buildTrackers fans state changes out from the job store to whichever
// mirrors are configured. The job store stays authoritative.
func buildTrackers(ctx context.Context, jobs *jobstore.Store) (tracker.Tracker, *tracker.Webhook, func()) {
	var (
		secondaries []tracker.Tracker
		closers     []func()
	)

	if addr := config.GetRedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.GetRedisPassword(),
			DB:       config.GetRedisDB(),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("Redis at %s unreachable, continuing without it: %v", addr, err)
			client.Close()
		} else {
			secondaries = append(secondaries, tracker.NewRedis(client))
			closers = append(closers, func() { client.Close() })
			logger.Infof("Mirroring job state to redis at %s", addr)
		}
	}

	if dsn := config.GetPostgresURL(); dsn != "" {
		pg, err := tracker.NewPostgres(ctx, dsn)
		if err != nil {
			logger.Warnf("Postgres unavailable, continuing without it: %v", err)
		} else {
			secondaries = append(secondaries, pg)
			closers = append(closers, pg.Close)
			logger.Info("Recording job state on posts in postgres")
		}
	}

	webhook := tracker.NewWebhook(config.GetWebhookURL())
	secondaries = append(secondaries, webhook)

	return tracker.NewMulti(jobs, secondaries...), webhook, func() {
		for _, c := range closers {
			c()
		}
	}
}

// maintenanceRoutine prunes old job records and sweeps orphans every 24 hours.
func maintenanceRoutine(ctx context.Context, jobs *jobstore.Store, supervisor *job.Supervisor) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Maintenance routine stopped")
			return
		case <-ticker.C:
			logger.Info("Running scheduled maintenance")
			if n, err := jobs.CleanupOldRecords(recordRetention); err != nil {
				logger.Errorf("Failed to clean up old job records: %v", err)
			} else {
				logger.Infof("Removed %d job records older than %v", n, recordRetention)
			}
			if _, err := supervisor.SweepOrphans(ctx); err != nil {
				logger.Errorf("Orphan sweep failed: %v", err)
			}
		}
	}
}
