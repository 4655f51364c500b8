package tasks

import (
	"net/http"
	"time"

	pkgconfig "leadgen/internal/pkg/config"
	"leadgen/internal/pkg/database"
	"leadgen/internal/pkg/health"
	"leadgen/internal/pkg/httpclient"
	"leadgen/internal/pkg/idempotency"
	"leadgen/internal/pkg/logger"
	"leadgen/internal/pkg/redis"
	"leadgen/internal/pkg/scheduler"
	"leadgen/internal/pkg/server"
	"leadgen/internal/pkg/worker"

	"leadgen/internal/service/tasks/config"
	"leadgen/internal/service/tasks/handler"
	"leadgen/internal/service/tasks/jobs"
	"leadgen/internal/service/tasks/repository"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// core holds everything except the archive database
var core = fx.Options(
	pkgconfig.Module,
	logger.Module,
	redis.Module,
	httpclient.Module,
	worker.Module,
	scheduler.Module,
	health.Module,
	idempotency.Module,
	server.Module,

	fx.Provide(
		config.NewServiceConfig,
		provideWorkerConfig,
		provideSchedulerConfig,
		provideHTTPClientConfig,
		provideHealthConfig,
		provideIdempotencyConfig,
		providePrometheusRegistry,
		provideSink,
		provideTaskHandler,
		fx.Annotate(
			provideTaskMiddleware,
			fx.ResultTags(`group:"task_middlewares"`),
		),
	),

	fx.Invoke(registerJobs),
	fx.Invoke(registerRoutes),
	fx.Invoke(registerHealthProviders),
)

// TasksApp runs the task manager with evicted tasks archived to postgres
var TasksApp = fx.Options(
	core,
	database.Module,
	fx.Provide(
		provideArchiveRepository,
		provideArchiver,
	),
)

// TasksAppInMemory runs the task manager without a database; evicted tasks are dropped
var TasksAppInMemory = fx.Options(
	core,
)

// MigrationApp provides only what the migrate command needs
var MigrationApp = fx.Options(
	pkgconfig.Module,
	logger.Module,
	database.Module,
)

func provideWorkerConfig(cfg *config.ServiceConfig) worker.Config { return cfg.Tasks }

func provideSchedulerConfig(cfg *config.ServiceConfig) scheduler.Config { return cfg.Recurring }

func provideHTTPClientConfig(cfg *config.ServiceConfig) httpclient.Config { return cfg.HTTP }

func provideHealthConfig(cfg *config.ServiceConfig) *health.ServiceConfig {
	hc := cfg.Health.ServiceConfig
	return &hc
}

func provideIdempotencyConfig(cfg *config.ServiceConfig) idempotency.Config { return cfg.Idempotency }

func providePrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideTaskMiddleware(log *logger.Logger) worker.Middleware {
	return worker.Chain(
		worker.TracingMiddleware(),
		worker.LoggingMiddleware(log),
	)
}

// SinkParams holds dependencies for the metrics sink
type SinkParams struct {
	fx.In

	Config   *config.ServiceConfig
	Logger   *logger.Logger
	Redis    *redisv9.Client `optional:"true"`
	Registry *prometheus.Registry
}

// provideSink fans snapshots out to every enabled destination
func provideSink(p SinkParams) (worker.Sink, error) {
	var sinks worker.MultiSink
	if p.Config.Metrics.Log {
		sinks = append(sinks, worker.NewLogSink(p.Logger))
	}
	if p.Config.Metrics.Redis && p.Redis != nil {
		rc := worker.DefaultRedisSinkConfig()
		if p.Config.Metrics.RedisTTL > 0 {
			rc.TTL = p.Config.Metrics.RedisTTL
		}
		sinks = append(sinks, worker.NewRedisSink(p.Redis, rc))
	}
	if p.Config.Metrics.Prometheus {
		ps, err := worker.NewPrometheusSink(p.Registry, p.Config.Metrics.Namespace)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ps)
	}
	p.Logger.Info("Task metrics sinks configured", zap.Int("count", len(sinks)))
	return sinks, nil
}

func provideArchiveRepository(db *database.Database, cfg *config.ServiceConfig, log *logger.Logger) *repository.ArchiveRepository {
	return repository.NewArchiveRepository(db, cfg.Archive.BatchSize, log)
}

func provideArchiver(repo *repository.ArchiveRepository, cfg *config.ServiceConfig) worker.Archiver {
	if !cfg.Archive.Enabled {
		return worker.NopArchiver{}
	}
	return repo
}

// TaskHandlerParams holds dependencies for the admin handler
type TaskHandlerParams struct {
	fx.In

	Manager     *worker.Manager
	Archive     *repository.ArchiveRepository `optional:"true"`
	Scheduler   *scheduler.Scheduler
	Idempotency *idempotency.Service
	Config      *config.ServiceConfig
	Logger      *logger.Logger
}

func provideTaskHandler(p TaskHandlerParams) *handler.TaskHandler {
	var archive handler.ArchiveLister
	if p.Archive != nil {
		archive = p.Archive
	}
	opts := []handler.Option{handler.WithIdempotency(p.Idempotency)}
	if p.Config.Admin.SubmitRate > 0 {
		store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(p.Config.Admin.SubmitRate),
			Burst:     p.Config.Admin.SubmitBurst,
			ExpiresIn: 3 * time.Minute,
		})
		opts = append(opts, handler.WithSubmitMiddleware(middleware.RateLimiter(store)))
	}
	return handler.NewTaskHandler(p.Manager, archive, p.Scheduler, p.Logger, opts...)
}

// JobsParams holds dependencies for registering task kinds
type JobsParams struct {
	fx.In

	Manager *worker.Manager
	Config  *config.ServiceConfig
	Client  *http.Client
	Archive *repository.ArchiveRepository `optional:"true"`
	Logger  *logger.Logger
}

// registerJobs installs every task kind whose dependencies are present
func registerJobs(p JobsParams) error {
	var purger jobs.Purger
	if p.Archive != nil {
		purger = p.Archive
	}
	return jobs.Register(p.Manager, p.Logger,
		jobs.NewExportJob(p.Client, p.Config.Export.Endpoint, p.Config.Export.APIKey, p.Logger),
		jobs.NewPurgeJob(purger, p.Config.Archive.PurgeAfterDays, p.Logger),
		jobs.NewAnalyticsJob(p.Manager),
	)
}

// RoutesParams holds dependencies for registering routes
type RoutesParams struct {
	fx.In

	Server   *server.Server
	Handler  *handler.TaskHandler
	Health   *health.Service
	Registry *prometheus.Registry
	Config   *config.ServiceConfig
	Logger   *logger.Logger
}

func registerRoutes(p RoutesParams) {
	e := p.Server.GetEcho()

	health.RegisterRoutes(e, p.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{Registry: p.Registry})))

	var mw []echo.MiddlewareFunc
	if p.Config.Admin.JWTSecret != "" {
		mw = append(mw, server.BearerAuth([]byte(p.Config.Admin.JWTSecret)))
	} else {
		p.Logger.Warn("Admin API is not protected: admin.jwt_secret is empty")
	}
	handler.RegisterRoutes(e, p.Handler, mw...)
}

// HealthProvidersParams holds dependencies for the health providers
type HealthProvidersParams struct {
	fx.In

	Health  *health.Service
	Manager *worker.Manager
	Config  *config.ServiceConfig
	Redis   *redisv9.Client    `optional:"true"`
	DB      *database.Database `optional:"true"`
	Logger  *logger.Logger
}

func registerHealthProviders(p HealthProvidersParams) error {
	p.Health.RegisterProvider(health.NewTaskManagerProvider(health.TaskManagerProviderConfig{
		Checker:            p.Manager,
		DegradedQueueDepth: p.Config.Health.DegradedQueueDepth,
	}))
	if p.Redis != nil {
		p.Health.RegisterProvider(health.NewRedisProvider("redis", p.Redis, 500*time.Millisecond))
	}
	if p.DB != nil {
		sqlDB, err := p.DB.SQLDB()
		if err != nil {
			return err
		}
		p.Health.RegisterProvider(health.NewPostgresProvider("postgres", sqlDB))
	}
	p.Logger.Info("Health providers registered")
	return nil
}
