package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/minuradeSilva2000/Employee-Register-App-sub000/config"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/db"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/domain"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/handler"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/oauth"
	mongorepo "github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/repository/mongo"
	repo "github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/repository/postgres"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/service"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/throttle"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/events"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/logger"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/metrics"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/ratelimit"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/telemetry"
	authconstant "github.com/minuradeSilva2000/Employee-Register-App-sub000/pkg/constant"
)

const shutdownTimeout = 10 * time.Second

// store is what both repository backends provide.
type store interface {
	domain.AccountRepository
	domain.SessionStore
}

func main() {
	bootLog, _ := zap.NewProduction()
	cfg := config.MustLoad(bootLog)

	log, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		bootLog.Fatal("Failed to build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	shutdownTracing, err := telemetry.Init(ctx, cfg.OTLPEndpoint, log)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tokenService, err := service.NewTokenService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}
	hasher := service.NewPasswordHasher(cfg.BcryptCost)

	opts := []service.Option{
		service.WithMetrics(m),
		service.WithLogger(log),
	}

	var loginThrottle service.LoginThrottle = throttle.Disabled{}
	if cfg.RedisURL != "" {
		rt, err := throttle.NewRedisFromURL(ctx, cfg.RedisURL, cfg.LoginMaxAttempts, cfg.LoginWindow)
		if err != nil {
			return err
		}
		defer rt.Close()
		loginThrottle = rt
		log.Info("Login throttle enabled", zap.Int("max_attempts", cfg.LoginMaxAttempts), zap.Duration("window", cfg.LoginWindow))
	}
	opts = append(opts, service.WithThrottle(loginThrottle))

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Info("Publishing auth events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer func() { _ = publisher.Close() }()
	opts = append(opts, service.WithPublisher(publisher))

	if cfg.GoogleEnabled() {
		opts = append(opts, service.WithIdentityProvider(
			oauth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)))
	}

	authService := service.NewAuthService(st, st, tokenService, hasher, cfg, opts...)
	accountService := service.NewAccountService(st, st, hasher, opts...)

	limiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.RunSweeper(ctx, time.Minute)

	app := fiber.New(fiber.Config{
		AppName:      "hr-admin-auth",
		ErrorHandler: handler.ErrorHandler(log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Header:     authconstant.HeaderRequestID,
		ContextKey: authconstant.LocalsRequestID,
	}))
	app.Use(logger.RequestLogger(log))
	app.Use(m.Middleware())

	handler.RegisterRoutes(app, handler.Routes{
		Auth:        handler.NewAuthHandler(authService, log),
		Accounts:    handler.NewAccountHandler(accountService, log),
		AuthLimiter: limiter.Middleware(),
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore connects the configured backend and returns it with its cleanup.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		client, err := db.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		r := mongorepo.NewRepository(client.Database(cfg.MongoDatabase))
		if err := r.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		return r, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		pool, err := db.NewPostgresPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, nil, err
		}
		if cfg.MigrateOnStart {
			if err := db.MigrateUp(pool, log); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repo.NewPostgresRepository(pool), pool.Close, nil
	}
}
