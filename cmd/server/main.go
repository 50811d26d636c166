package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/unsubstantiated-Script/chonker-chopper/config"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/enrichment"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/repository"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/server"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/service"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/http/handler"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/infra/database"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/infra/logger"
	natsclient "github.com/unsubstantiated-Script/chonker-chopper/internal/infra/nats"
	infraPrometheus "github.com/unsubstantiated-Script/chonker-chopper/internal/infra/prometheus"
	infraRedis "github.com/unsubstantiated-Script/chonker-chopper/internal/infra/redis"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.MustInit(logger.Config{
		Development: cfg.App.IsDevelopment(),
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
	})
	defer func() { _ = logger.Sync() }()

	log.Info("Configuration loaded",
		zap.String("env", cfg.App.Env),
		zap.String("database_driver", cfg.Database.Driver),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
		zap.Bool("prometheus_enabled", cfg.Prometheus.Enabled),
	)

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	if err := database.AutoMigrate(ctx, db, &model.ShortenedURL{}, &model.ClickEvent{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	var probes []handler.Probe
	if cfg.Database.Driver == database.DriverPostgres {
		var pool *pgxpool.Pool
		pool, err = database.NewPool(ctx, cfg.Postgres)
		if err != nil {
			log.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		defer pool.Close()
		probes = append(probes, server.PostgresProbe(pool))
	} else {
		probes = append(probes, server.DatabaseProbe(db))
	}
	log.Info("Connected to database")

	// Left as an untyped nil when disabled so the cache decorator is skipped.
	var rdb redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer client.Close()
		rdb = client
		probes = append(probes, server.RedisProbe(client))
		log.Info("Connected to Redis", zap.String("addr", infraRedis.Addr(cfg.Redis)))
	}

	registry := infraPrometheus.NewRegistry()
	metrics := service.NewMetrics(registry)

	var publisher service.EventPublisher = service.NoopEventPublisher{}
	consumerDone := make(chan struct{})
	if cfg.NATS.Enabled {
		var (
			nc *nats.Conn
			js nats.JetStreamContext
		)
		nc, js, err = natsclient.Connect(cfg.NATS)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer func() { _ = nc.Drain() }()

		if err := natsclient.EnsureStream(js, &nats.StreamConfig{
			Name:     model.EventStreamName,
			Subjects: []string{model.EventStreamSubjects},
			MaxBytes: model.EventStreamMaxBytes,
		}); err != nil {
			log.Fatal("Failed to ensure event stream", zap.Error(err))
		}

		publisher = service.NewJetStreamEventPublisher(js)
		probes = append(probes, server.NATSProbe(nc))
		log.Info("Connected to NATS", zap.String("url", natsclient.URL(cfg.NATS)))

		if cfg.NATS.Consume {
			consumer := service.NewEventConsumer(js, metrics, logger.Component("events"))
			go func() {
				defer close(consumerDone)
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("Event consumer stopped", zap.Error(err))
				}
			}()
		} else {
			close(consumerDone)
		}
	} else {
		close(consumerDone)
	}

	if cfg.Prometheus.Enabled {
		promServer := infraPrometheus.NewServer(cfg.Prometheus, registry)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	}

	var locator enrichment.Locator = enrichment.StubLocator{}
	if cfg.GeoIP.DBPath != "" {
		geo, err := enrichment.NewGeoIPLocator(cfg.GeoIP.DBPath)
		if err != nil {
			log.Fatal("Failed to open GeoIP database", zap.Error(err))
		}
		defer func() { _ = geo.Close() }()
		locator = geo
	}

	urlRepo := repository.NewCachedURLRepository(
		repository.NewURLRepository(db), rdb, cfg.Redis.CacheTTL, logger.Component("cache"))
	clickRepo := repository.NewClickEventRepository(db)

	filter := service.NewCodeFilter(cfg.Shortener.FilterCapacity, cfg.Shortener.FilterFPRate)
	seeded, err := filter.Seed(ctx, urlRepo, cfg.Shortener.SeedBatchSize)
	if err != nil {
		log.Fatal("Failed to seed short code filter", zap.Error(err))
	}
	log.Info("Short code filter seeded", zap.Int("codes", seeded))

	dispatcher := service.NewEventDispatcher(publisher, metrics, logger.Component("events"))
	codes := service.NewCodeGenerator(urlRepo, filter, cfg.Shortener.MaxCodeAttempts, metrics, logger.Component("codes"))
	urlService := service.NewURLService(urlRepo, codes, dispatcher, service.IngestLimits{
		MaxFileBytes: cfg.Ingest.MaxFileBytes(),
		MaxRows:      cfg.Ingest.MaxRows,
	}, metrics, logger.Component("urls"))
	recorder := service.NewClickRecorder(clickRepo, locator, dispatcher, metrics, logger.Component("clicks"))
	redirects := service.NewRedirectService(urlRepo, recorder, metrics, logger.Component("redirect"))
	analytics := service.NewAnalyticsService(urlRepo)

	srv := server.New(server.Dependencies{
		Logger:         logger.Component("http"),
		Registry:       registry,
		URLs:           urlService,
		Analytics:      analytics,
		Redirects:      redirects,
		Probes:         probes,
		BaseURL:        cfg.App.BaseURL,
		AllowOrigins:   cfg.HTTP.AllowOrigins,
		ProxyHeader:    cfg.HTTP.ProxyHeader,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxUploadBytes: cfg.Ingest.MaxFileBytes(),
	})

	listenErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		listenErr <- srv.Listen(cfg.HTTP.Addr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-listenErr:
		if err != nil {
			log.Error("HTTP server exited", zap.Error(err))
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg.HTTP.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown", zap.Error(err))
	}

	dispatcher.Wait()
	<-consumerDone
	log.Info("Stopped")
}

func shutdownTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}
