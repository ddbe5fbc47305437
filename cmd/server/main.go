package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/PowerQR/config"
	appmodel "github.com/sifan077/PowerQR/internal/app/model"
	apprepository "github.com/sifan077/PowerQR/internal/app/repository"
	appserver "github.com/sifan077/PowerQR/internal/app/server"
	"github.com/sifan077/PowerQR/internal/app/service"
	"github.com/sifan077/PowerQR/internal/backend"
	inthttp "github.com/sifan077/PowerQR/internal/http/handler"
	"github.com/sifan077/PowerQR/internal/http/middleware"
	"github.com/sifan077/PowerQR/internal/infra/logger"
	infraNATS "github.com/sifan077/PowerQR/internal/infra/nats"
	infraPostgres "github.com/sifan077/PowerQR/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/PowerQR/internal/infra/prometheus"
	infraRedis "github.com/sifan077/PowerQR/internal/infra/redis"
	"github.com/sifan077/PowerQR/internal/render"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.MustInit(logger.ConfigFromEnv("powerqr"))
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("backend_url", cfg.Backend.BaseURL),
		zap.String("public_base_url", cfg.Backend.PublicBaseURL),
		zap.String("session_store", cfg.Session.Store),
		zap.Bool("postgres", cfg.Postgres.Enabled),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("nats", cfg.NATS.Enabled),
	)

	checks := map[string]inthttp.CheckFunc{}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var exportRepo apprepository.ExportEventRepository
	if cfg.Postgres.Enabled {
		pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			log.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		defer pool.Close()

		gormDB, err := infraPostgres.NewGorm(pool)
		if err != nil {
			log.Fatal("Failed to open GORM connection", zap.Error(err))
		}
		if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.ExportEvent{}); err != nil {
			log.Fatal("Failed to run database migrations", zap.Error(err))
		}
		exportRepo = apprepository.NewExportEventRepository(gormDB)
		checks["postgres"] = pool.Ping
		log.Info("Connected to Postgres successfully")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		log.Info("Connected to Redis successfully")
	}

	var recorder service.ExportRecorder = service.NopExportRecorder()
	if cfg.NATS.Enabled {
		natsConn, js, err := infraNATS.Connect(cfg.NATS, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Drain()
		checks["nats"] = func(context.Context) error {
			if natsConn.Status() != nats.CONNECTED {
				return fmt.Errorf("nats status %s", natsConn.Status())
			}
			return nil
		}
		log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

		if exportRepo != nil {
			consumer := service.NewExportConsumer(js, log, exportRepo)
			if err := consumer.Start(); err != nil {
				log.Fatal("Failed to start export consumer", zap.Error(err))
			}
			defer consumer.Stop()
			recorder = service.NewExportPublisher(js)
		} else {
			log.Warn("Export audit disabled: NATS is configured but Postgres is not")
		}
	}

	if exportRepo != nil {
		pruner := service.NewExportAuditPruner(log, exportRepo, cfg.Render.AuditRetention, cfg.Render.AuditPrune)
		pruner.Start()
		defer pruner.Stop()
	}

	var sessions apprepository.KVStore
	switch cfg.Session.Store {
	case "redis":
		sessions = apprepository.NewRedisKVStore(redisClient, cfg.Session.KeyPrefix)
	default:
		sessions = apprepository.NewMemoryKVStore()
		log.Warn("Using in-memory session store; the login does not survive a restart")
	}

	api := backend.NewHTTPClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, log)
	checks["backend"] = api.Ping

	sizing := service.SizingPolicy{
		PreviewMin: cfg.Render.PreviewMinPx,
		PreviewMax: cfg.Render.PreviewMaxPx,
		ExportMin:  cfg.Render.ExportMinPx,
		ExportMax:  cfg.Render.ExportMaxPx,
	}.Normalized()

	logos := render.NewLogoLoader(render.LogoLoaderConfig{
		MaxBytes:     cfg.Render.LogoMaxBytes,
		CacheTTL:     cfg.Render.LogoCacheTTL,
		FetchTimeout: cfg.Render.LogoTimeout,
	}, nil, log)
	engine := render.NewRasterEngine(render.RasterEngineConfig{
		MinPx: min(sizing.PreviewMin, sizing.ExportMin),
		MaxPx: max(sizing.PreviewMax, sizing.ExportMax),
	}, logos, log)
	metrics := infraPrometheus.NewMetrics(registry, func() float64 { return float64(engine.Live()) })

	adapter := service.NewPersistenceAdapter(sizing, log)
	resolver := service.NewResolver(sizing)
	pipeline := service.NewExportPipeline(engine, sizing, recorder, metrics, log)
	guard := service.NewSessionGuard(api, sessions, log)
	links := service.NewLinkService(api, guard, adapter, cfg.Backend.PublicBaseURL)
	admin := service.NewAdminService(api, guard, links, log)
	editor := service.NewEditorService(links, resolver, pipeline, adapter, cfg.Session.EditorTTL, log)
	defer editor.CloseAll()

	var limiter fiber.Handler
	if cfg.RateLimit.Enabled {
		var counter middleware.Counter = middleware.NewMemoryCounter()
		if redisClient != nil {
			counter = middleware.NewRedisCounter(redisClient)
		}
		limiter = middleware.RateLimit(counter, middleware.RateLimitConfig{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
			KeyPrefix:   cfg.Session.KeyPrefix + ":ratelimit",
		}, log)
	}

	if cfg.Prometheus.Enabled {
		promServer := infraPrometheus.NewServer(cfg.Prometheus, registry, log)
		promServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := promServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	}

	server := appserver.New(appserver.Dependencies{
		Logger: log,
		Guard:  guard,
		Links:  links,
		Admin:  admin,
		Editor: editor,
		Checks: checks,
		Options: appserver.Options{
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			BodyLimit:    cfg.Server.BodyLimit,
			CORSOrigins:  cfg.Server.CORSOrigins,
			MaxLogoBytes: cfg.Render.LogoMaxBytes,
		},
		ExportLimiter: limiter,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting dashboard server", zap.String("addr", cfg.Server.Addr))
		errCh <- server.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Fiber server exited", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Graceful shutdown failed", zap.Error(err))
		}
	}
}
