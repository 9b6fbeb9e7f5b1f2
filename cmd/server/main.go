package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"eshop/internal/auth/credential"
	authhandler "eshop/internal/auth/handler"
	"eshop/internal/auth/oauth"
	"eshop/internal/auth/service"
	"eshop/internal/auth/store/oauthstate"
	"eshop/internal/auth/store/user"
	"eshop/internal/catalog"
	"eshop/internal/docstore"
	jwttoken "eshop/internal/jwt_token"
	"eshop/internal/mailer"
	"eshop/internal/media"
	"eshop/internal/platform/config"
	"eshop/internal/platform/database"
	"eshop/internal/platform/health"
	"eshop/internal/platform/logger"
	"eshop/internal/platform/metrics"
	"eshop/internal/platform/redis"
	"eshop/internal/ratelimit"
	httptransport "eshop/internal/transport/http"
	"eshop/pkg/platform/middleware/auth"
)

const (
	shutdownTimeout   = 10 * time.Second
	poolStatsInterval = 15 * time.Second
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing eshop",
		"addr", cfg.Addr(),
		"env", cfg.Env,
		"db_adapter", cfg.Database.Adapter,
	)

	m := metrics.New()
	probes := health.New(cfg.Env)

	docs, closeDocs, err := openDocstore(ctx, cfg, log, m, probes)
	if err != nil {
		return err
	}
	defer closeDocs()

	storage, err := openMedia(ctx, cfg, log, m)
	if err != nil {
		return err
	}

	sender, err := openMailer(cfg, log)
	if err != nil {
		return err
	}

	states, closeStates, err := openStateStore(ctx, cfg, log, m, probes)
	if err != nil {
		return err
	}
	defer closeStates()

	jwt := jwttoken.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m.Users),
	}
	if cfg.Google.Enabled() {
		provider := oauth.NewGoogle(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.GoogleRedirectURL())
		svcOpts = append(svcOpts, service.WithGoogle(provider, states))
	}
	svc, err := service.New(
		user.New(docs),
		jwt,
		credential.NewHasher(cfg.Auth.BcryptCost),
		mailer.New(sender),
		service.Config{APIURL: cfg.APIURL},
		svcOpts...,
	)
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}

	gate := auth.New(jwttoken.NewGateAdapter(jwt), svc, credential.CheckStaleToken,
		auth.WithLogger(log),
		auth.WithMetrics(m.Gate),
	)

	limiter := ratelimit.New(cfg.RateLimitPerMinute, ratelimit.WithLogger(log))
	go limiter.Start(ctx)

	shop, err := catalog.New(docs, storage,
		catalog.WithLogger(log),
		catalog.WithMetrics(m.Catalog),
	)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	router := httptransport.NewRouter(httptransport.Config{
		Development:    !cfg.Production(),
		TrustProxy:     cfg.TrustProxy,
		RequestTimeout: cfg.RequestTimeout,
		UploadLimit:    cfg.BodyLimit,
	}, httptransport.Router{
		Logger:  log,
		Metrics: m.Request,
		API: []httptransport.Registrar{
			authhandler.New(svc, gate,
				authhandler.WithLogger(log),
				authhandler.WithRateLimit(limiter.Middleware),
				authhandler.WithSecureCookies(cfg.Production()),
			),
			catalog.NewHandler(shop, gate, log),
		},
		Ops:            []httptransport.Registrar{probes},
		MetricsHandler: metrics.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout + 5*time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func openDocstore(ctx context.Context, cfg config.Server, log *slog.Logger, m *metrics.Metrics, probes *health.Handler) (docstore.Store, func(), error) {
	if cfg.Database.Adapter == config.AdapterMemory {
		log.Warn("using in-memory document store; data is lost on restart")
		return docstore.NewMemory(), func() {}, nil
	}

	pool, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Migrate(ctx, log); err != nil {
		pool.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	probes.RegisterCheck("database", pool.Health)
	log.Info("DB connection successful!")

	store := docstore.NewPostgres(pool.DB(),
		docstore.WithMetrics(m.Store),
		docstore.WithTracer(otel.Tracer("eshop/docstore")),
	)
	return store, func() {
		if err := pool.Close(); err != nil {
			log.Error("close database", "error", err)
		}
	}, nil
}

func openMedia(ctx context.Context, cfg config.Server, log *slog.Logger, m *metrics.Metrics) (media.Storage, error) {
	if !cfg.S3.Enabled() {
		log.Warn("S3 is not configured; uploads are kept in memory")
		return media.NewMemory(), nil
	}
	storage, err := media.NewS3(ctx, media.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		Bucket:    cfg.S3.Bucket,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		PublicURL: cfg.S3.PublicURL,
	}, media.WithS3Logger(log), media.WithS3Metrics(m.Media))
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return storage, nil
}

func openMailer(cfg config.Server, log *slog.Logger) (mailer.Sender, error) {
	if !cfg.Email.Enabled() {
		log.Warn("EMAIL_HOST is not set; emails are written to the log")
		return mailer.NewLog(log), nil
	}
	sender, err := mailer.NewSMTP(mailer.SMTPConfig{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		FromName: "E-SHOP",
	})
	if err != nil {
		return nil, fmt.Errorf("smtp: %w", err)
	}
	return sender, nil
}

// openStateStore keeps Google sign-in state in Redis when REDIS_URL is set so
// the callback may land on any instance.
func openStateStore(ctx context.Context, cfg config.Server, log *slog.Logger, m *metrics.Metrics, probes *health.Handler) (service.StateStore, func(), error) {
	if cfg.Redis.URL == "" {
		return oauthstate.NewMemory(oauthstate.DefaultTTL), func() {}, nil
	}
	client, err := redis.New(ctx, cfg.Redis, m.Redis)
	if err != nil {
		return nil, nil, err
	}
	probes.RegisterCheck("redis", client.Health)
	go client.RunPoolStats(ctx, poolStatsInterval)

	return oauthstate.NewRedis(client, oauthstate.DefaultTTL), func() {
		if err := client.Close(); err != nil {
			log.Error("close redis", "error", err)
		}
	}, nil
}
