package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/threatwatch/internal/alerts"
	"github.com/richxcame/threatwatch/internal/geo"
	"github.com/richxcame/threatwatch/internal/monitor"
	"github.com/richxcame/threatwatch/internal/patterns"
	"github.com/richxcame/threatwatch/internal/prediction"
	"github.com/richxcame/threatwatch/internal/store/firestore"
	"github.com/richxcame/threatwatch/internal/store/memory"
	"github.com/richxcame/threatwatch/internal/store/postgres"
	"github.com/richxcame/threatwatch/pkg/common"
	"github.com/richxcame/threatwatch/pkg/config"
	"github.com/richxcame/threatwatch/pkg/database"
	"github.com/richxcame/threatwatch/pkg/health"
	"github.com/richxcame/threatwatch/pkg/logger"
	"github.com/richxcame/threatwatch/pkg/middleware"
	"github.com/richxcame/threatwatch/pkg/ratelimit"
	"github.com/richxcame/threatwatch/pkg/redis"
	"github.com/richxcame/threatwatch/pkg/secrets"
	"github.com/richxcame/threatwatch/pkg/storage"
	"github.com/richxcame/threatwatch/pkg/tracing"
	"github.com/richxcame/threatwatch/pkg/validation"
	"github.com/richxcame/threatwatch/pkg/websocket"
	"go.uber.org/zap"
)

const (
	serviceName  = "threatwatch"
	version      = "1.0.0"
	maxBodyBytes = 1 << 20
)

// backend is a store serving both alerts and scam patterns
type backend interface {
	alerts.Store
	patterns.Store
}

// dependencies carries what the router needs
type dependencies struct {
	alerts   *alerts.Service
	patterns *patterns.Service
	engine   *prediction.Engine
	limiter  *ratelimit.Limiter
	hub      *websocket.Hub
	checks   map[string]func() error
	sentry   bool
}

func main() {
	// Load configuration
	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Secrets.Provider != "" {
		resolver, err := secrets.NewResolver(ctx, cfg.Secrets)
		if err != nil {
			logger.Fatal("Failed to initialize secrets provider", zap.Error(err))
		}
		if err := secrets.Apply(ctx, resolver, cfg); err != nil {
			logger.Fatal("Failed to resolve secrets", zap.Error(err))
		}
		if err := resolver.Close(); err != nil {
			logger.Warn("Failed to close secrets provider", zap.Error(err))
		}
	}

	sentryEnabled := cfg.Sentry.DSN != ""
	if sentryEnabled {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Server.Environment,
			Release:     serviceName + "@" + version,
		})
		if err != nil {
			logger.Warn("Failed to initialize Sentry", zap.Error(err))
			sentryEnabled = false
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	shutdownTracing, err := tracing.Init(ctx, serviceName, version, cfg.Server.Environment, cfg.Tracing)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	checks := make(map[string]func() error)

	store, closeStore, err := openStore(ctx, cfg, checks)
	if err != nil {
		logger.Fatal("Failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		checks["redis"] = health.RedisChecker(redisClient.Client)
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.RedisAddr()))
	}

	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		natsConn, err = nats.Connect(cfg.NATS.URL, nats.Name(serviceName), nats.MaxReconnects(-1))
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		checks["nats"] = health.NATSChecker(natsConn)
		logger.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
	}

	emission, err := patterns.ParseTrendEmission(cfg.Patterns.TrendEmission)
	if err != nil {
		logger.Fatal("Invalid trend emission", zap.Error(err))
	}

	alertService := alerts.NewService(store)
	patternService := patterns.NewService(store, alertService, emission)

	models, err := prediction.LoadModels(ctx, cfg.Models, storage.NewOpener(cfg.Models.Storage))
	if err != nil {
		logger.Fatal("Failed to load models", zap.Error(err))
	}
	for name, remote := range models.Remote() {
		checks["model_"+name] = health.HTTPEndpointChecker(remote.StatusURL(), health.CheckerConfig{Timeout: cfg.Models.Timeout})
	}
	engine := prediction.NewEngine(models)

	var (
		worker *monitor.Worker
		hub    *websocket.Hub
	)
	if cfg.Monitor.Enabled {
		hub = websocket.NewHub(logger.Named("websocket"))
		go hub.Run(ctx)

		sinks := monitor.MultiSink{
			monitor.NewLogSink(logger.Named("escalations")),
			monitor.NewBroadcastSink(hub),
		}
		if redisClient != nil {
			sinks = append(sinks, monitor.NewRedisSink(redisClient.Client, cfg.Escalation.RedisChannel))
		}
		if natsConn != nil {
			sinks = append(sinks, monitor.NewNATSSink(natsConn, cfg.Escalation.NATSSubject))
		}

		center := geo.Point{Latitude: cfg.Monitor.Latitude, Longitude: cfg.Monitor.Longitude}
		provider := monitor.NewCommunityContextProvider(alertService, center, cfg.Monitor.RadiusKm, logger.Named("monitor"))
		worker = monitor.NewWorker(engine, provider, sinks, logger.Named("monitor"), monitor.WithInterval(cfg.Monitor.Interval))
		go worker.Start(ctx)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled && redisClient != nil {
		limiter = ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit)
	}

	router := setupRouter(cfg, dependencies{
		alerts:   alertService,
		patterns: patternService,
		engine:   engine,
		limiter:  limiter,
		hub:      hub,
		checks:   checks,
		sentry:   sentryEnabled,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Starting threatwatch service",
			zap.String("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down threatwatch service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if worker != nil {
		worker.Stop()
	}
	if natsConn != nil {
		if err := natsConn.Drain(); err != nil {
			logger.Warn("Failed to drain NATS connection", zap.Error(err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	closeStore()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Failed to flush traces", zap.Error(err))
	}

	logger.Info("Threatwatch service stopped")
}

// openStore builds the configured store and registers its health check
func openStore(ctx context.Context, cfg *config.Config, checks map[string]func() error) (backend, func(), error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		if err := database.RunMigrations(cfg.Database.MigrationURL(), postgres.Migrations, postgres.MigrationsDir); err != nil {
			return nil, nil, err
		}
		pool, err := database.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		checks["database"] = health.DatabaseChecker(pool)
		return postgres.NewStore(pool), func() { database.Close(pool) }, nil

	case config.StoreFirestore:
		client, err := firestore.NewClient(ctx, cfg.Firebase)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to Firestore", zap.String("project", cfg.Firebase.ProjectID))
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close Firestore client", zap.Error(err))
			}
		}
		return firestore.NewStore(client, cfg.Firebase.AlertsPath, cfg.Firebase.PatternsPath), closeFn, nil

	case config.StoreMemory:
		logger.Warn("Using in-memory store, data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// setupRouter wires middleware and routes
func setupRouter(cfg *config.Config, deps dependencies) *gin.Engine {
	production := cfg.Server.Environment == "production"
	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	validation.UseJSONFieldNames()

	router := gin.New()
	router.Use(middleware.CorrelationID())
	if deps.sentry {
		router.Use(sentrygin.New(sentrygin.Options{}))
	}
	router.Use(middleware.Recovery())
	router.Use(tracing.Middleware(serviceName))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.SecurityHeaders(production))

	corsConfig := cors.DefaultConfig()
	if origins := splitOrigins(cfg.Server.CORSOrigins); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, alerts.DeviceIDHeader, middleware.CorrelationIDHeader)
	corsConfig.ExposeHeaders = []string{middleware.CorrelationIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
	router.Use(cors.New(corsConfig))

	// Health and metrics
	router.GET("/healthz", common.HealthCheck(serviceName, version))
	router.GET("/health/live", common.HealthCheck(serviceName, version))
	router.GET("/health/ready", common.HealthCheckWithDeps(serviceName, version, deps.checks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	alertHandler := alerts.NewHandler(deps.alerts, cfg.Alerts.FingerprintSalt)
	patternHandler := patterns.NewHandler(deps.patterns)
	if deps.limiter != nil {
		identify := reporterIdentity(cfg.Alerts.FingerprintSalt)
		alertHandler.UseOnSubmit(ratelimit.Middleware(deps.limiter, "alerts", identify))
		patternHandler.UseOnSubmit(ratelimit.Middleware(deps.limiter, "patterns", identify))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.MaxBodySize(maxBodyBytes))
	api.Use(middleware.ValidateJSONContentType())
	{
		alertHandler.RegisterRoutes(api)
		patternHandler.RegisterRoutes(api)
		prediction.NewHandler(deps.engine).RegisterRoutes(api)
		if deps.hub != nil {
			upgrader := websocket.NewUpgrader(splitOrigins(cfg.Server.CORSOrigins))
			api.GET("/escalations/stream", websocket.ServeWS(deps.hub, upgrader))
		}
	}

	return router
}

// reporterIdentity keys the rate limit on the device fingerprint, falling back
// to a fingerprint of the client address
func reporterIdentity(salt string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		if device := strings.TrimSpace(c.GetHeader(alerts.DeviceIDHeader)); device != "" {
			return alerts.Fingerprint(device, salt)
		}
		return alerts.Fingerprint("ip:"+c.ClientIP(), salt)
	}
}

func splitOrigins(origins string) []string {
	var result []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			result = append(result, o)
		}
	}
	return result
}
