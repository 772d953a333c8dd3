package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	appControllers "github.com/yigit/placement/internal/app/controllers"
	"github.com/yigit/placement/internal/app/identity"
	appMigrations "github.com/yigit/placement/internal/app/migrations"
	"github.com/yigit/placement/internal/app/notify"
	appRepos "github.com/yigit/placement/internal/app/repositories"
	appRoutes "github.com/yigit/placement/internal/app/routes"
	"github.com/yigit/placement/internal/app/scheduler"
	appServices "github.com/yigit/placement/internal/app/services"
	"github.com/yigit/placement/internal/config"
	"github.com/yigit/placement/internal/db"
	appMiddleware "github.com/yigit/placement/internal/middleware"
	pkgAuth "github.com/yigit/placement/internal/pkg/auth"
	"github.com/yigit/placement/internal/pkg/helpers"
	"github.com/yigit/placement/internal/pkg/logger"
	"github.com/yigit/placement/internal/pkg/websocket"
	"github.com/yigit/placement/internal/seed"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	Repos          *appRepos.Repositories
	Services       *appServices.Services
	JWTService     *pkgAuth.JWTService
	AuthMiddleware *appMiddleware.AuthMiddleware
	ApplyLimiter   appMiddleware.Limiter
	Controllers    appRoutes.Controllers
	Identity       *identity.Resolver
	Hub            *websocket.Hub
	Dispatcher     *notify.Dispatcher
	AMQPSink       *notify.AMQPSink
	Sweeper        *scheduler.FreezeSweeper
	Redis          *redis.Client
	Logger         zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := config.GetEnv("CONFIG_PATH", filepath.Join("configs", "config.yaml"))
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	logger.Configure(logger.Config{
		Level:   logLevel,
		Pretty:  prettyLog,
		Service: "placement-api",
	})

	lgr := log.Logger
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection and runs migrations.
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*pgxpool.Pool, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	dbPool := database.Pool
	lgr.Info().Msg("Database connection successfully established.")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	migrationsDir := cfg.Database.MigrationsDir
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		dbPool.Close()
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	lgr.Info().Msg("Running database migrations...")
	migrator := appMigrations.NewMigrator(dbPool, lgr)
	if err := migrator.MigrateFromDirectory(ctx, migrationsDir); err != nil {
		dbPool.Close()
		lgr.Error().Err(err).Msg("Database migration error")
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	if cfg.Database.Seed {
		if err := seed.CreateDefaultData(ctx, appRepos.NewRepositories(dbPool), lgr); err != nil {
			lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
		}
	}

	return dbPool, nil
}

// SetupRedis connects to redis when enabled. A nil client disables caching and rate limiting.
func SetupRedis(cfg *config.Config, lgr zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		lgr.Info().Msg("Redis disabled; identity cache and rate limiting are off")
		return nil
	}
	client, err := db.NewRedisClient(cfg)
	if err != nil {
		lgr.Warn().Err(err).Msg("Redis unavailable; continuing without cache")
		return nil
	}
	lgr.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")
	return client
}

func notificationSinks(cfg *config.Config, hub *websocket.Hub, lgr zerolog.Logger) ([]notify.Sink, *notify.AMQPSink) {
	sinks := []notify.Sink{
		notify.NewLogSink(lgr),
		notify.NewHubSink(hub),
	}
	if !cfg.AMQP.Enabled {
		return sinks, nil
	}
	amqpSink, err := notify.NewAMQPSink(cfg.AMQP.URL, cfg.AMQP.Queue)
	if err != nil {
		lgr.Warn().Err(err).Msg("AMQP unavailable; notifications will not be queued to the broker")
		return sinks, nil
	}
	lgr.Info().Str("queue", cfg.AMQP.Queue).Msg("AMQP notification sink ready")
	return append(sinks, amqpSink), amqpSink
}

// BuildDependencies initializes application repositories, services, and controllers.
// redisClient may be nil.
func BuildDependencies(cfg *config.Config, dbPool *pgxpool.Pool, redisClient *redis.Client, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr, Redis: redisClient}

	deps.Repos = appRepos.NewRepositories(dbPool)

	deps.Hub = websocket.NewHub(logger.Component("websocket"))
	sinks, amqpSink := notificationSinks(cfg, deps.Hub, logger.Component("notify"))
	deps.AMQPSink = amqpSink
	deps.Dispatcher = notify.NewDispatcher(notify.Config{
		Workers:      cfg.Notifications.Workers,
		QueueSize:    cfg.Notifications.QueueSize,
		MaxAttempts:  cfg.Notifications.MaxAttempts,
		RetryBackoff: helpers.ParseDuration(cfg.Notifications.RetryBackoff, 500*time.Millisecond),
	}, logger.Component("notify"), sinks...)

	deps.Services = appServices.NewServices(deps.Repos, deps.Dispatcher, appServices.Options{
		WithdrawWindow:     helpers.ParseDuration(cfg.Applications.WithdrawWindow, 24*time.Hour),
		EnforceEligibility: cfg.Applications.EnforceEligibility,
		Clock:              helpers.SystemClock,
		Logger:             lgr,
	})

	deps.Sweeper = scheduler.NewFreezeSweeper(
		deps.Services.FreezeService,
		helpers.ParseDuration(cfg.Freeze.SweepInterval, 10*time.Minute),
		helpers.SystemClock,
		logger.Component("freeze-sweeper"),
	)

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenExp: helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, time.Hour),
		TokenIssuer:    cfg.JWT.Issuer,
	})

	var cache identity.Store
	if redisClient != nil {
		cache = redisClient
	}
	deps.Identity = identity.NewResolver(cache, deps.Repos.StudentRepository,
		helpers.ParseDuration(cfg.Redis.IdentityTTL, identity.DefaultTTL), lgr)

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService, deps.Identity, logger.Component("auth"))

	if cfg.RateLimit.Enabled && redisClient != nil {
		deps.ApplyLimiter = appMiddleware.NewRedisLimiter(redisClient, cfg.RateLimit.Limit,
			helpers.ParseDuration(cfg.RateLimit.Window, time.Minute), "placement:ratelimit:apply")
	}

	checks := map[string]appControllers.Pinger{"postgres": dbPool}
	if redisClient != nil {
		checks["redis"] = appControllers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	deps.Controllers = appRoutes.Controllers{
		Auth:          appControllers.NewAuthController(deps.Identity, lgr),
		Jobs:          appControllers.NewJobController(deps.Services.JobService, deps.Services.ApplicationService),
		Applications:  appControllers.NewApplicationController(deps.Services.ApplicationService, deps.Services.OfferService),
		Admin:         appControllers.NewAdminController(deps.Services.FreezeService, deps.Services.StudentService),
		Health:        appControllers.NewHealthController(checks),
		Notifications: websocket.NewHandler(deps.Hub, appMiddleware.NotificationTopics, logger.Component("websocket")),
	}

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(gin.Recovery(), appMiddleware.RequestLogger(logger.Component("http")))

	appRoutes.SetupRouter(router, deps.Controllers, deps.AuthMiddleware, deps.ApplyLimiter)

	return router
}
