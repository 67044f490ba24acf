package main // Entry point package

import (
	"context"
	"errors"
	"log" // startup failures before the zap logger exists
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // recover, request id, body limit
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/stuffworth/internal/config"
	"github.com/iliyamo/stuffworth/internal/database"
	"github.com/iliyamo/stuffworth/internal/handler"
	"github.com/iliyamo/stuffworth/internal/logging"
	"github.com/iliyamo/stuffworth/internal/middleware"
	"github.com/iliyamo/stuffworth/internal/queue"
	"github.com/iliyamo/stuffworth/internal/ratelimit"
	"github.com/iliyamo/stuffworth/internal/repository"
	"github.com/iliyamo/stuffworth/internal/router"
	"github.com/iliyamo/stuffworth/internal/sheets"
	"github.com/iliyamo/stuffworth/internal/valuation"
	"github.com/iliyamo/stuffworth/internal/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, using environment variables")
	}
	cfg := config.Load() // Load environment config

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.Migrate(mctx, db)
	cancel()
	if err != nil {
		return err
	}

	users := repository.NewUserRepo(db)
	pins := repository.NewResetPinRepo(db)
	history := repository.NewHistoryRepo(db)
	go purgeExpiredPins(ctx, pins, logger)

	// Redis is optional: without it limiters are per-process and pages are not cached.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, using in-memory rate limits and no page cache")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	authRL := config.LoadAuthRateLimitConfig()
	userRL := config.LoadRateLimitConfig()
	researchRL := config.LoadResearchRateLimitConfig()
	authLimiter := startLimiter(ctx, authRL, rdb)
	userLimiter := startLimiter(ctx, userRL, rdb)
	researchLimiter := startLimiter(ctx, researchRL, rdb)

	var estimator valuation.Estimator
	if g, err := valuation.NewGeminiEstimator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel); err == nil {
		estimator = g
	} else {
		logger.Warn("vision estimates disabled", zap.Error(err))
	}
	var researcher valuation.Researcher
	if p, err := valuation.NewPerplexityResearcher(cfg.PerplexityAPIKey, cfg.PerplexityModel); err == nil {
		researcher = p
	} else {
		logger.Info("market research disabled", zap.Error(err))
	}

	var exporter sheets.Exporter = sheets.Noop{}
	if cfg.SheetsEnabled() {
		s, err := sheets.New(ctx, cfg.SheetID, cfg.SheetClientEmail, cfg.SheetPrivateKey)
		if err != nil {
			logger.Warn("sheet export disabled", zap.Error(err))
		} else {
			exporter = s
		}
	}

	publisher := queue.NewAMQPPublisher(cfg.RabbitURL, logger)
	consumer := queue.NewMailConsumer(cfg.RabbitURL, "logs", logger)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("mail consumer stopped", zap.Error(err))
		}
	}()

	renderer, err := web.New()
	if err != nil {
		return err
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Renderer = renderer
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e,
		handler.NewAuthHandler(cfg, users, pins, publisher, logger),
		cfg.SessionSecret,
		middleware.RateLimit(authRL, authLimiter, logger))
	router.RegisterUser(e, handler.NewUserHandler(history, userLimiter, logger), cfg.SessionSecret)
	router.RegisterResearch(e,
		handler.NewResearchHandler(estimator, researcher, history, exporter, researchLimiter, logger),
		cfg.SessionSecret,
		echomw.BodyLimit("12M"))
	router.RegisterAdmin(e, handler.NewAdminHandler(users, logger), cfg.SessionSecret)
	router.RegisterPages(e, cfg.SessionSecret, middleware.NewPageCache(config.LoadCacheConfig(), rdb, logger))

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}

// startLimiter builds the limiter for cfg and, for in-memory buckets, starts
// the idle-bucket sweeper.
func startLimiter(ctx context.Context, cfg config.RateLimitConfig, rdb *redis.Client) ratelimit.Limiter {
	lim := ratelimit.New(cfg, rdb)
	if m, ok := lim.(*ratelimit.MemoryLimiter); ok {
		go m.Run(ctx, time.Minute)
	}
	return lim
}

// purgeExpiredPins deletes stale reset PINs every 10 minutes.
func purgeExpiredPins(ctx context.Context, pins *repository.ResetPinRepo, logger *zap.Logger) {
	t := time.NewTicker(10 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			n, err := pins.DeleteExpired(dctx)
			cancel()
			if err != nil {
				logger.Warn("purge expired pins", zap.Error(err))
			} else if n > 0 {
				logger.Debug("purged expired pins", zap.Int64("count", n))
			}
		}
	}
}
