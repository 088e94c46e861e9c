package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/advomarket/booking/internal/booking"
	"github.com/advomarket/booking/internal/handlers"
	"github.com/advomarket/booking/internal/ledger"
	"github.com/advomarket/booking/internal/outbox"
	"github.com/advomarket/booking/internal/slots"
	"github.com/advomarket/booking/internal/storage"
	"github.com/advomarket/booking/libs/config"
	"github.com/advomarket/booking/libs/db"
	"github.com/advomarket/booking/libs/httpx"
	"github.com/advomarket/booking/libs/kafkax"
	otelx "github.com/advomarket/booking/libs/otel"
	"github.com/advomarket/booking/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var (
		store       ledger.Store
		configStore handlers.ConfigStore
		checks      []runtime.ReadyCheck
	)

	dbURL := config.String("DATABASE_URL", "")
	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	if dbURL != "" {
		pool, err := db.Open(ctx, dbURL, db.Options{
			MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
			MinConns: int32(config.Int("DB_MIN_CONNS", 2)),
		})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		pg := storage.NewPostgresStore(pool)
		store, configStore = pg, pg
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		publisher := outbox.NewPublisher(pool, outbox.NewRepository(pool), logger, outbox.PublisherConfig{
			Brokers:   kafkaBrokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go publisher.Run(ctx)
		if kafkaBrokers != "" {
			checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
		}
	} else {
		logger.Warn("no DATABASE_URL configured, running on the in-memory store")
		mem := storage.NewMemoryStore()
		store, configStore = mem, mem
		go drainEvents(ctx, mem, logger)
	}

	rlLimit := config.Int("RATE_LIMIT_REQUESTS", 120)
	rlWindow := time.Duration(config.Int("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second
	var limiter httpx.Middleware
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
		limiter = httpx.NewRedisRateLimiter(rdb, rlLimit, rlWindow, "booking:rl").
			Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	} else {
		limiter = httpx.NewRateLimiter(rlLimit, rlWindow).Middleware()
	}

	gen := slots.New(store)
	led := ledger.New(store, gen, logger, ledger.Options{
		InstantConfirm: config.Bool("INSTANT_CONFIRM", false),
	})
	svc := booking.NewService(gen, led)

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.NewBookingHandler(svc, logger).Register(mux)
	handlers.NewDashboardHandler(configStore, logger).Register(mux)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("MAX_BODY_BYTES", 1<<20))),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second),
	}
	if origins := config.String("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		middlewares = append(middlewares, httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: splitCSV(origins),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", "X-Professional-Id"},
		}))
	}
	middlewares = append(middlewares, limiter)

	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// drainEvents logs booking events in memory mode, standing in for the
// Kafka-backed outbox publisher.
func drainEvents(ctx context.Context, mem *storage.MemoryStore, logger *slog.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ev := range mem.DrainEvents() {
				logger.Info("booking event",
					"topic", outbox.TopicFor(ev.Kind),
					"appointment_id", ev.AppointmentID,
					"professional_id", ev.ProfessionalID,
				)
			}
		}
	}
}
