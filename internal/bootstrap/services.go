package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/echofeed/voicepipe/config"
	"github.com/echofeed/voicepipe/internal/adapters/analyze"
	"github.com/echofeed/voicepipe/internal/adapters/blob"
	"github.com/echofeed/voicepipe/internal/adapters/imagegen"
	"github.com/echofeed/voicepipe/internal/adapters/pipelinerunner"
	"github.com/echofeed/voicepipe/internal/adapters/push"
	"github.com/echofeed/voicepipe/internal/adapters/transcribe"
	"github.com/echofeed/voicepipe/internal/core"
	"github.com/echofeed/voicepipe/internal/data"
	"github.com/echofeed/voicepipe/internal/observability/statsd"
	"github.com/echofeed/voicepipe/internal/service"
)

const (
	// submissionQueueKey is the Redis list the upload edge pushes accepted jobs onto.
	submissionQueueKey = "voicepipe:submissions"

	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// ObservabilityContainer groups observability dependencies.
type ObservabilityContainer struct {
	Metrics *statsd.Client
}

func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	out := ObservabilityContainer{}
	if !cfg.Metrics.IsEnabled() {
		return out
	}

	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  "voicepipe",
		Logger:  logger,
	})
	if err != nil {
		logger.Warn("statsd client unavailable; metrics disabled", "error", err)
		return out
	}
	out.Metrics = client
	return out
}

// ServiceDeps groups external dependencies for service construction.
type ServiceDeps struct {
	Config      *config.AppConfig
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// ServiceContainer holds the constructed services and their shared ports.
type ServiceContainer struct {
	Pipeline      *service.PipelineService
	Tracker       *service.StatusTracker
	Publisher     *service.ChannelPublisher
	Queue         core.SubmissionQueue
	Cache         core.CacheRepository
	Blobs         core.BlobStore
	Observability ObservabilityContainer
}

// NewServices wires repositories, adapters, and the orchestrator.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	if deps.RedisClient == nil {
		return ServiceContainer{}, errors.New("redis client is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	observability := buildObservability(logger, cfg.Observability)
	// Assign through a plain interface variable so a disabled (nil) client
	// stays a nil Sink instead of a typed-nil interface value.
	var metricsSink statsd.Sink
	if observability.Metrics != nil {
		metricsSink = observability.Metrics
	}

	cacheRepo := data.NewRedisCacheRepo(deps.RedisClient)
	resultCache := data.NewResultCacheRepo(cacheRepo, data.ResultCacheConfig{
		ResultTTL:   cfg.Cache.ResultTTL,
		MemoTTL:     cfg.Cache.MemoTTL,
		InflightTTL: cfg.Cache.InflightTTL,
	})
	statusStore := data.NewStatusStoreRepo(cacheRepo, data.StatusStoreConfig{
		TTL: cfg.Cache.StatusTTL,
	})
	queue := data.NewRedisSubmissionQueue(deps.RedisClient, submissionQueueKey)

	tracker, err := service.NewStatusTracker(service.StatusTrackerOptions{
		Store:   statusStore,
		Pusher:  push.NewRedisPusher(deps.RedisClient),
		Logger:  logger.With("component", "status_tracker"),
		Metrics: metricsSink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create status tracker: %w", err)
	}

	transcriber, err := transcribe.NewClient(transcribe.Options{
		BaseURL:         cfg.Transcription.BaseURL,
		APIKey:          cfg.Transcription.APIKey,
		Logger:          logger.With("component", "transcribe"),
		PollInterval:    cfg.Transcription.PollInterval,
		MaxPollAttempts: cfg.Transcription.MaxPollAttempts,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create transcription client: %w", err)
	}

	analyzer := analyze.NewAnalyzer(analyze.Options{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.ChatModel,
		Logger:  logger.With("component", "analyze"),
	})

	blobs, err := blob.NewStore(ctx, blob.Options{
		Endpoint:      cfg.Blob.Endpoint,
		AccessKey:     cfg.Blob.AccessKey,
		SecretKey:     cfg.Blob.SecretKey,
		Bucket:        cfg.Blob.Bucket,
		UseSSL:        cfg.Blob.UseSSL,
		PublicBaseURL: cfg.Blob.PublicBaseURL,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create blob store: %w", err)
	}

	synthesizer, err := imagegen.NewSynthesizer(imagegen.Options{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.ImageModel,
		Size:    cfg.OpenAI.ImageSize,
		Blobs:   blobs,
		Logger:  logger.With("component", "imagegen"),
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create image synthesizer: %w", err)
	}

	publisher := service.NewChannelPublisher(cfg.Pipeline.EventBufferSize, logger)

	pipeline, err := service.NewPipelineService(service.PipelineServiceOptions{
		Transcriber:     transcriber,
		Analyzer:        analyzer,
		Synthesizer:     synthesizer,
		ResultCache:     resultCache,
		MemoCache:       resultCache,
		Tracker:         tracker,
		Publisher:       publisher,
		Queue:           queue,
		DescribeContext: analyze.DescribeContext,
		Logger:          logger.With("component", "pipeline"),
		Metrics:         metricsSink,
		Config: service.PipelineConfig{
			ImageStyles:       cfg.Pipeline.Styles(),
			TranscribeTimeout: cfg.Pipeline.TranscribeTimeout,
			AnalyzeTimeout:    cfg.Pipeline.AnalyzeTimeout,
			GenerateTimeout:   cfg.Pipeline.GenerateTimeout,
			OverallTimeout:    cfg.Pipeline.OverallTimeout,
		},
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create pipeline service: %w", err)
	}

	return ServiceContainer{
		Pipeline:      pipeline,
		Tracker:       tracker,
		Publisher:     publisher,
		Queue:         queue,
		Cache:         cacheRepo,
		Blobs:         blobs,
		Observability: observability,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newPipelineRunnerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModePipelineRunner,
		name: "pipeline runner",
		start: func(ctx context.Context) error {
			runner, err := pipelinerunner.NewRunner(pipelinerunner.RunnerOptions{
				Queue:       deps.cfg.Services.Queue,
				Pipeline:    deps.cfg.Services.Pipeline,
				Logger:      deps.logger.With("component", "pipeline_runner"),
				Concurrency: deps.cfg.Config.Pipeline.RunnerConcurrency,
				DequeueWait: deps.cfg.Config.Pipeline.DequeueWait,
			})
			if err != nil {
				return fmt.Errorf("create pipeline runner: %w", err)
			}
			return runner.Run(ctx)
		},
	}
}

func newCompletionLoggerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeCompletionLogger,
		name: "completion logger",
		start: func(ctx context.Context) error {
			logger := deps.logger.With("component", "completion_logger")
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case event := <-deps.cfg.Services.Publisher.Events():
					logger.InfoContext(ctx, "voice note processed",
						"job_id", event.JobID,
						"owner_id", event.OwnerID,
						"mood", event.Result.Sentiment.Mood,
						"image_ref", event.Result.ImageRef,
						"completed_at", event.CompletedAt,
					)
				}
			}
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	return []backgroundService{
		newPipelineRunnerBackgroundService(deps),
		newCompletionLoggerBackgroundService(deps),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, len(enabledServices)+1)

	deps := &serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	}
	handles := startBackgroundServices(deps, buildBackgroundServices(deps))

	return waitForShutdown(shutdownConfig{
		cancel:      cancel,
		errCh:       errCh,
		metrics:     cfg.Services.Observability.Metrics,
		logger:      logger,
		backgrounds: handles,
	})
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	cancel      context.CancelFunc
	errCh       <-chan error
	metrics     *statsd.Client
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		gracefulStop(cfg)
		return nil
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		gracefulStop(cfg)
		return err
	}
}

// gracefulStop waits for background services to finish and closes the metrics sink.
func gracefulStop(cfg shutdownConfig) {
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	if cfg.metrics != nil {
		if err := cfg.metrics.Close(); err != nil {
			cfg.logger.Warn("close metrics sink", "error", err)
		}
	}
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
