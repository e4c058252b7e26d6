package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/store-checkout/internal/domain/discount"
	"github.com/xenking/store-checkout/internal/domain/order"
	"github.com/xenking/store-checkout/internal/domain/payment"
	"github.com/xenking/store-checkout/internal/domain/pricing"
	"github.com/xenking/store-checkout/internal/events"
	"github.com/xenking/store-checkout/internal/handler"
	"github.com/xenking/store-checkout/internal/storage/redislock"
	"github.com/xenking/store-checkout/pkg/health"
	"github.com/xenking/store-checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
		zap.String("lock", cfg.Lock.Backend),
	)

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Storage.
	var (
		repos *repositories
		err   error
	)
	switch cfg.Storage {
	case StorageMemory:
		repos, err = openMemory(ctx, lg, cfg)
	default:
		repos, err = openPostgres(ctx, cfg)
	}
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer repos.close()
	healthSvc.AddReadinessCheck(cfg.Storage, 5*time.Second, repos.ping)

	opts := []order.Option{
		order.WithPaymentTimeout(cfg.Payment.Timeout),
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	}

	// Per-order lock.
	if cfg.Lock.Backend == LockRedis {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Lock.RedisAddr})
		defer func() {
			if err := rdb.Close(); err != nil {
				lg.Warn("Close redis client", zap.Error(err))
			}
		}()
		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		opts = append(opts, order.WithLocker(redislock.New(rdb, redislock.Config{TTL: cfg.Lock.TTL})))
	}

	// Order events.
	if cfg.Events.BrokerURL != "" {
		pub, err := events.Dial(cfg.Events.BrokerURL, cfg.Events.Exchange)
		if err != nil {
			return errors.Wrap(err, "connect event broker")
		}
		defer func() {
			if err := pub.Close(); err != nil {
				lg.Warn("Close event publisher", zap.Error(err))
			}
		}()
		opts = append(opts, order.WithPublisher(pub))
	}

	// Domain services.
	maxAmount, err := cfg.Payment.maxAmount()
	if err != nil {
		return err
	}
	gateway := payment.NewSimulated(payment.SimulatedConfig{
		SuccessRate: cfg.Payment.SuccessRate,
		MaxAmount:   maxAmount,
		Latency:     cfg.Payment.Latency,
	}, uint64(time.Now().UnixNano()))

	catalog := pricing.NewCatalog(repos.products, repos.prices)
	checkout, err := order.NewService(
		repos.users,
		repos.products,
		catalog,
		discount.NewEngine(repos.discounts),
		gateway,
		repos.orders,
		opts...,
	)
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}

	// HTTP.
	h := handler.NewHandler(checkout, catalog)
	securityHandler := handler.NewSecurityHandler(repos.apikeys, []byte(cfg.APIKeyPepper))

	r := chi.NewRouter()
	r.Use(
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.RequestID(),
		httpmiddleware.Instrument("store-api", m),
		httpmiddleware.LogRequests(),
		httpmiddleware.Recovery(),
	)
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Mount("/api", h.Routes(securityHandler))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Payment.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           r,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
	}()

	healthSvc.SetReady(true)
	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
