package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/lapak-id/backend-lapak/internal/auth"
	"github.com/lapak-id/backend-lapak/internal/cart"
	"github.com/lapak-id/backend-lapak/internal/catalog"
	"github.com/lapak-id/backend-lapak/internal/checkout"
	"github.com/lapak-id/backend-lapak/internal/config"
	"github.com/lapak-id/backend-lapak/internal/coupon"
	"github.com/lapak-id/backend-lapak/internal/events"
	"github.com/lapak-id/backend-lapak/internal/health"
	"github.com/lapak-id/backend-lapak/internal/obs"
	"github.com/lapak-id/backend-lapak/internal/ratelimit"
	"github.com/lapak-id/backend-lapak/internal/security"
	"github.com/lapak-id/backend-lapak/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "lapak")
	obs.MustRegisterDomainMetrics(metricsNamespace, prometheus.DefaultRegisterer)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "lapak-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: 1.0,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if cfg.MigrateOnStart {
		runMigrations(cfg, logger)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "lapak-api"
	poolConfig.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri for asynq")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	validate := validator.New()

	catalogStore := catalog.NewStore(pool)
	catalogSvc := &catalog.Service{
		Store: catalogStore,
		Cache: catalog.NewCache(redisClient, cfg.PricingContextTTL),
	}
	catalogHandler := &catalog.Handler{Store: catalogStore, Svc: catalogSvc, Validate: validate}

	settingsStore := settings.NewStore(pool)
	settingsSvc := &settings.Service{Store: settingsStore, Redis: redisClient, TTL: cfg.SettingsCacheTTL}
	settingsHandler := &settings.Handler{Svc: settingsSvc, Validate: validate}

	couponStore := coupon.NewStore(pool)
	couponSvc := &coupon.Service{Repo: couponStore}

	cartStore := cart.NewStore(pool)
	cartSvc := &cart.Service{
		Store:    cartStore,
		Catalog:  catalogSvc,
		Settings: settingsSvc,
		Coupons:  couponSvc,
		TTL:      cfg.CartTTL,
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Validate: validate}
	couponHandler := &coupon.Handler{Store: couponStore, Svc: couponSvc, Quoter: cartSvc, Validate: validate}

	bus := &events.Bus{
		Store:     events.NewStore(pool),
		Scheduler: &events.AsynqScheduler{Client: taskClient},
		Notifiers: []events.Notifier{&events.LogNotifier{Logger: logger}},
	}

	orderStore := checkout.NewStore(pool)
	checkoutSvc := &checkout.Service{
		Pool:     pool,
		Orders:   orderStore,
		Carts:    cartStore,
		Coupons:  couponStore,
		Catalog:  catalogStore,
		CartSvc:  cartSvc,
		Events:   bus,
		Currency: cfg.Currency,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	authSvc := auth.NewService([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	authMW := auth.Middleware{
		Service:      authSvc,
		AccessCookie: envOrDefault("AUTH_ACCESS_COOKIE", "access_token"),
		CartCookie:   envOrDefault("AUTH_CART_COOKIE", "cart_token"),
	}

	limiterStore, err := limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limit store")
	}
	globalLimiter, err := ratelimit.New(limiterStore, cfg.GlobalRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse global rate limit")
	}
	couponLimiter, err := ratelimit.New(limiterStore, cfg.CouponRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse coupon rate limit")
	}
	onLimiterError := func(err error) {
		logger.Error().Err(err).Msg("rate limit store")
	}

	httpMetrics := obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", "")), nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", auth.CartTokenHeader},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{
		Checker:      health.Probes{DB: pool, Redis: redisClient},
		DBTimeout:    500 * time.Millisecond,
		RedisTimeout: 300 * time.Millisecond,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api", func(v chi.Router) {
		v.Use(ratelimit.Middleware(globalLimiter, ratelimit.ByUserOrIP, onLimiterError))
		v.Use(security.CSRF{ExemptHeaders: []string{auth.CartTokenHeader}}.Middleware)
		v.Use(authMW.Authenticate)
		v.Use(authMW.CartSession)

		v.Route("/cart", func(c chi.Router) {
			c.Get("/", cartHandler.Get)
			c.Post("/items", cartHandler.AddItem)
			c.Patch("/items/{itemID}", cartHandler.UpdateItem)
			c.Delete("/items/{itemID}", cartHandler.RemoveItem)
			c.Post("/coupon", cartHandler.ApplyCoupon)
			c.Delete("/coupon", cartHandler.RemoveCoupon)
		})

		v.With(ratelimit.Middleware(couponLimiter, ratelimit.ByUserOrIP, onLimiterError)).
			Post("/coupons/preview", couponHandler.Preview)

		v.Group(func(authed chi.Router) {
			authed.Use(authMW.RequireAuth)
			authed.Post("/checkout", checkoutHandler.Create)
			authed.Get("/orders/{orderID}", checkoutHandler.Get)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMW.RequireAuth)
			admin.Use(authMW.RequireAdmin)

			admin.Get("/coupons", couponHandler.List)
			admin.Post("/coupons", couponHandler.Create)
			admin.Put("/coupons/{code}", couponHandler.Update)
			admin.Delete("/coupons/{code}", couponHandler.Delete)

			admin.Get("/variants/{variantID}/slabs", catalogHandler.ListSlabs)
			admin.Post("/variants/{variantID}/slabs", catalogHandler.CreateSlab)
			admin.Delete("/variants/{variantID}/slabs/{minQty}", catalogHandler.DeleteSlab)

			admin.Get("/flash-sales", catalogHandler.ListFlashSales)
			admin.Post("/flash-sales", catalogHandler.CreateFlashSale)
			admin.Patch("/flash-sales/{saleID}/active", catalogHandler.SetFlashSaleActive)

			admin.Get("/settings", settingsHandler.Get)
			admin.Put("/settings", settingsHandler.Update)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		serverErr <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		health.SetReady(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func runMigrations(cfg *config.Config, logger zerolog.Logger) {
	path := strings.TrimSpace(cfg.MigrationsPath)
	if path == "" {
		return
	}
	m, err := migrate.New("file://"+path, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise migrations")
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Error().Err(srcErr).Msg("close migration source")
		}
		if dbErr != nil {
			logger.Error().Err(dbErr).Msg("close migration database")
		}
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal().Err(err).Msg("run migrations")
	}
	logger.Info().Msg("migrations applied")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}
