package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"rollcall/internal/attendance"
	"rollcall/internal/bootstrap"
	"rollcall/internal/config"
	"rollcall/internal/handler"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/logger"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
	"rollcall/internal/receipt"
	"rollcall/internal/report"
	"rollcall/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.App, log *slog.Logger) error {
	infra, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := infra.Close(); err != nil {
			log.Warn("close infrastructure", "error", err)
		}
	}()

	m := metrics.New(prometheus.DefaultRegisterer)
	svc := attendance.NewService(infra.Store,
		attendance.WithEvents(infra.Queue),
		attendance.WithMetrics(m),
		attendance.WithLogger(log),
		attendance.WithRosterCapacity(cfg.RosterCapacity),
	)

	redisUp := infra.Redis.Healthy(ctx)
	if infra.Redis != nil && !redisUp {
		log.Warn("redis not reachable; report cache and shared rate limits disabled", "addr", cfg.RedisAddr)
	}
	var cache *report.Cache
	if redisUp {
		cache = report.NewCache(infra.Redis.Client, cfg.ReportCacheTTL)
	}
	reports := report.NewGenerator(svc, report.NewExporter(), cache, m, log)

	issuer, err := receipt.NewIssuer(cfg.ReceiptIssuer, cfg.ReceiptKey, cfg.ReceiptTTL)
	if err != nil {
		return err
	}

	health := map[string]handler.HealthCheck{}
	if infra.DB != nil {
		health["db"] = infra.DB.Healthy
	}
	if infra.Redis != nil {
		health["redis"] = infra.Redis.Healthy
	}
	h := handler.New(svc, reports, issuer, health, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(corsConfig(cfg.Origins())))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.Middleware(limiter(infra, redisUp, cfg.RateLimitPerMin, "api", log), "api", log))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)
	h.Routes(r.Group("/api"),
		httpmiddleware.Middleware(limiter(infra, redisUp, cfg.CheckinPerMin, "checkin", log), "checkin", log))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Nothing else drains an in-process queue, so the api runs the worker itself.
	if cfg.QueueBackend == queue.BackendMemory {
		proc := worker.NewProcessor(reports, bootstrap.Archiver(cfg, log), m, log)
		g.Go(func() error {
			msgs, err := infra.Queue.Consume(gctx)
			if err != nil {
				return err
			}
			proc.Run(gctx, msgs)
			return nil
		})
	}

	err = g.Wait()
	log.Info("server exited")
	return err
}

// limiter shares counters across replicas through redis when it is up and
// falls back to a local token bucket otherwise.
func limiter(infra *bootstrap.Infra, redisUp bool, perMin int, scope string, log *slog.Logger) httpmiddleware.Limiter {
	local := httpmiddleware.NewTokenBucket(perMin, perMin)
	if !redisUp {
		return local
	}
	return httpmiddleware.NewFallback(
		httpmiddleware.NewRedisWindow(infra.Redis.Client, perMin, "rollcall:ratelimit:"+scope),
		local, log)
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        24 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
