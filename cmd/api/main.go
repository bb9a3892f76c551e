package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adiselav/CabanApp/internal/api"
	"github.com/adiselav/CabanApp/internal/auth"
	"github.com/adiselav/CabanApp/internal/config"
	"github.com/adiselav/CabanApp/internal/database"
	"github.com/adiselav/CabanApp/internal/domain"
	"github.com/adiselav/CabanApp/internal/events"
	"github.com/adiselav/CabanApp/internal/google"
	"github.com/adiselav/CabanApp/internal/logging"
	"github.com/adiselav/CabanApp/internal/metrics"
	"github.com/adiselav/CabanApp/internal/models"
	"github.com/adiselav/CabanApp/internal/notify"
	"github.com/adiselav/CabanApp/internal/repository"
	"github.com/adiselav/CabanApp/internal/service"
	"github.com/adiselav/CabanApp/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

const pruneInterval = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	limitStore := initRateLimitStore(ctx, redisClient, &logger)

	startMetrics(ctx, cfg, &logger)

	bus := events.NewEventBus()
	initNotifier(ctx, cfg, db, bus, &logger)
	syncWorker := initSheetsWorker(ctx, cfg, db, redisClient, &logger)

	booking := service.NewBookingService(db, bus, syncWorker, limitStore, cfg.Booking, logging.Component(&logger, "booking"))
	catalog := service.NewCatalogService(db, bus, syncWorker, logging.Component(&logger, "catalog"))
	reviews := service.NewReviewService(db, db, bus, cfg.Reviews, logging.Component(&logger, "reviews"))

	if err := seedCatalog(ctx, catalog, &logger); err != nil {
		return err
	}

	backup := database.NewBackupService(db, cfg.Backup, logging.Component(&logger, "backup"))
	go backup.Start(ctx)

	verifier := auth.NewVerifier(cfg.API.Auth.JWTSecret, cfg.API.Auth.Issuer)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, booking, verifier, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Booking: booking,
		Catalog: catalog,
		Reviews: reviews,
		Health:  db,
	}, verifier, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initRateLimitStore prefers redis so limits are shared between replicas and
// falls back to process memory while redis is unreachable.
func initRateLimitStore(ctx context.Context, redisClient *redis.Client, logger *zerolog.Logger) domain.RateLimitStore {
	memory := repository.NewMemoryRateLimitStore()
	go pruneLoop(ctx, memory, logger)

	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverRateLimitStore(
		repository.NewRedisRateLimitStore(redisClient),
		memory,
		logging.Component(logger, "ratelimit"),
	)
}

func pruneLoop(ctx context.Context, store *repository.MemoryRateLimitStore, logger *zerolog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Prune(); n > 0 {
				logger.Debug().Int("windows", n).Msg("expired rate limit windows pruned")
			}
		}
	}
}

func initNotifier(ctx context.Context, cfg *config.Config, db *database.DB, bus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" {
		logger.Info().Msg("telegram bot token not set, owner notifications disabled")
		return
	}

	bot, err := notify.NewBotSender(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}

	notifier := notify.New(bot, db, cfg.Telegram.ReminderHour, logging.Component(logger, "notify"))
	notifier.Register(bus)
	go notifier.StartReminders(ctx)
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
}

// initSheetsWorker returns nil when the spreadsheet mirror is not configured.
func initSheetsWorker(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) domain.SyncWorker {
	if !cfg.Google.Enabled() {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return nil
	}
	go sheetsService.Start(ctx)

	sheetsWorker := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.RetryPolicy{}, logger)
	go sheetsWorker.Start(ctx)

	logger.Info().Str("sheet", cfg.Google.SheetName).Msg("google sheets connected")
	return sheetsWorker
}

// seedCatalog imports the cabins listed in SEED_PATH. Cabins already present
// by name and location are left alone.
func seedCatalog(ctx context.Context, catalog *service.CatalogService, logger *zerolog.Logger) error {
	seedPath := os.Getenv("SEED_PATH")
	if seedPath == "" {
		seedPath = "configs/cabins.yaml"
	}

	data, err := os.ReadFile(seedPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info().Str("seed_path", seedPath).Msg("no catalog seed file")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("read catalog seed")
		return err
	}

	var seed struct {
		Cabins []*models.Cabin `yaml:"cabins"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("parse catalog seed")
		return err
	}

	created, err := catalog.ImportCatalog(ctx, seed.Cabins)
	if err != nil {
		return fmt.Errorf("import catalog seed: %w", err)
	}
	logger.Info().Int("created", created).Int("listed", len(seed.Cabins)).Msg("catalog seed applied")
	return nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	metrics.Register()
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	event := logger.Info().Bool("http", cfg.API.HTTP.Enabled).Int("http_port", cfg.API.HTTP.Port)
	if grpcServer != nil {
		event = event.Str("grpc_addr", grpcServer.Addr())
	}
	event.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
