// Command topicd serves topic inference over HTTP.
//
// It loads the frozen artifact set produced by the builder once at startup
// and answers:
//
//	GET  /                        liveness, replies "topic"
//	POST /topic                   topic distribution of the posted text
//	POST /similar                 nearest documents in topic space (optional)
//	GET  /api/v1/cache/stats      response cache counters
//	POST /api/v1/cache/invalidate drop all cached responses
//	GET  /health/live|ready       health probes
//
// Redis caching and Kafka analytics are both optional; the service runs
// degraded without them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/wikitopics/topic-platform/internal/analytics"
	"github.com/wikitopics/topic-platform/internal/server"
	"github.com/wikitopics/topic-platform/internal/server/cache"
	"github.com/wikitopics/topic-platform/internal/server/handler"
	"github.com/wikitopics/topic-platform/pkg/config"
	"github.com/wikitopics/topic-platform/pkg/health"
	"github.com/wikitopics/topic-platform/pkg/kafka"
	"github.com/wikitopics/topic-platform/pkg/logger"
	"github.com/wikitopics/topic-platform/pkg/metrics"
	"github.com/wikitopics/topic-platform/pkg/middleware"
	pkgredis "github.com/wikitopics/topic-platform/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting topic service", "port", cfg.Server.Port)

	art, err := server.LoadArtifacts(cfg)
	if err != nil {
		slog.Error("failed to load artifacts", "error", err)
		os.Exit(1)
	}
	defer art.Close()

	var responseCache *cache.ResponseCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, response caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		responseCache = cache.New(redisClient, cfg.Redis)
		slog.Info("response cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	collector := analytics.NewCollector(producer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	m := metrics.New()
	m.TopicCount.Set(float64(art.Model.NumTopics()))
	m.VocabularySize.Set(float64(art.Vocabulary.Size()))
	m.CorpusDocuments.Set(float64(art.Corpus.Len()))
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	checker := health.NewChecker()
	checker.Register("model", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d topics over %d terms", art.Model.NumTopics(), art.Vocabulary.Size()),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(art, responseCache, collector, m)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /topic", h.Topic)
	mux.HandleFunc("POST /similar", h.Similar)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Warn("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("topic service listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("topic service stopped")
}
