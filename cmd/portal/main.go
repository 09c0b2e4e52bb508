// ==============================================================================
// VENDOR & ADMIN PORTAL - cmd/portal/main.go
// ==============================================================================
// Backend-for-frontend: holds browser sessions, enforces KYC review rules and
// relays everything else to the backend API.
// ==============================================================================
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portal/internal/backend"
	"portal/internal/events"
	"portal/internal/handler"
	"portal/internal/kyc"
	"portal/internal/metrics"
	"portal/internal/middleware"
	"portal/internal/repository/postgres"
	"portal/internal/session"
	"portal/pkg/cache"
	"portal/pkg/config"
	"portal/pkg/logger"
	"portal/pkg/validator"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "portal"

func main() {
	cfg := config.Load()
	log := logger.NewWithLevel(serviceName, cfg.LogLevel)

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting portal", map[string]interface{}{
		"port":    cfg.Server.Port,
		"backend": cfg.Backend.BaseURL,
	})

	// Redis holds sessions, rate limits and idempotency keys.
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}
	defer redisCache.Close()

	// The audit database is optional: without it transitions still work but
	// the attempts endpoint reports 503.
	var (
		db       *sqlx.DB
		attempts kyc.AttemptRecorder
	)
	if cfg.Database.URL != "" {
		db, err = sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Warn("Audit database unavailable, attempts will not be recorded", map[string]interface{}{"error": err.Error()})
		} else {
			db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
			db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
			db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
			defer db.Close()
			attempts = postgres.NewTransitionAttemptRepository(db)
		}
	}

	policy := kyc.DefaultPolicy()
	if cfg.KYC.PolicyFile != "" {
		policy, err = kyc.LoadPolicy(cfg.KYC.PolicyFile)
		if err != nil {
			log.Fatal("Failed to load KYC policy", map[string]interface{}{
				"file":  cfg.KYC.PolicyFile,
				"error": err.Error(),
			})
		}
		log.Info("Loaded KYC policy", map[string]interface{}{"digest": policy.Digest()})
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	val := validator.New()
	if err := handler.RegisterValidations(val); err != nil {
		log.Fatal("Failed to register validations", map[string]interface{}{"error": err.Error()})
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := events.NewHub(cfg.CORS.AllowedOrigins, m, log)
	go hub.Run(ctx)

	store := session.NewStore(redisCache.WithPrefix("portal:"), cfg.Session.TTL)
	codec := session.NewCookieCodec(cfg.Session)
	client := backend.NewClient(cfg.Backend, store, m, log)
	service := kyc.NewService(kyc.NewReviewer(policy), client, attempts, hub, m, log)

	authHandler := handler.NewAuthHandler(client, store, codec, val, log)
	kycHandler := handler.NewKYCHandler(service, client, store, codec, val, log)
	proxyHandler := handler.NewProxyHandler(client, "/api", store, codec, log)
	eventsHandler := handler.NewEventsHandler(hub)

	checks := map[string]handler.Pinger{
		"redis": handler.PingFunc(func(ctx context.Context) error {
			return redisCache.Client().Ping(ctx).Err()
		}),
	}
	if db != nil {
		checks["database"] = db
	}
	systemHandler := handler.NewSystemHandler(serviceName, checks, log)

	sessions := middleware.NewSessionMiddleware(store, codec, log)
	loginLimiter := middleware.NewRateLimiter(redisCache.Client(), "login", cfg.RateLimit.LoginLimit, cfg.RateLimit.LoginWindow, log)
	idempotency := middleware.NewIdempotencyMiddleware(redisCache.Client(), 24*time.Hour, log)

	r := mux.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	handler.Routes{
		Auth:         authHandler,
		KYC:          kycHandler,
		Proxy:        proxyHandler,
		Events:       eventsHandler,
		System:       systemHandler,
		Metrics:      promhttp.Handler(),
		Authenticate: sessions.Authenticate,
		LoginLimit:   loginLimiter.Limit,
		Idempotent:   idempotency.Guard,
	}.Register(r)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Portal started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down portal...", nil)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Portal forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Portal stopped gracefully", nil)
}
