package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/lusohub/expressions-maker-a22311749/internal/api"
	"github.com/lusohub/expressions-maker-a22311749/internal/cache"
	"github.com/lusohub/expressions-maker-a22311749/internal/client"
	"github.com/lusohub/expressions-maker-a22311749/internal/config"
	"github.com/lusohub/expressions-maker-a22311749/internal/format"
	"github.com/lusohub/expressions-maker-a22311749/internal/model"
	"github.com/lusohub/expressions-maker-a22311749/internal/queue"
	"github.com/lusohub/expressions-maker-a22311749/internal/runner"
	"github.com/lusohub/expressions-maker-a22311749/internal/service"
	"github.com/lusohub/expressions-maker-a22311749/internal/tracing"
)

const (
	serviceName     = "client-relay"
	serviceVersion  = "0.1.0"
	restartBackoff  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("relay exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	tm := tracing.NewManager(tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		Exporter:       cfg.Tracing.Exporter,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	})
	if err := tm.Initialize(ctx); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = tm.Shutdown(sctx)
	}()

	gate, closeGate := newGate(ctx, cfg.Redis)
	defer closeGate()

	mode := client.Mode(cfg.Webhook.Mode)
	wc := client.NewWebhookClient(cfg.Webhook.URL, client.Options{
		Mode:       mode,
		Timeout:    cfg.Webhook.Timeout,
		RatePerSec: cfg.Webhook.RatePerSec,
	})

	pipeline := service.NewPipeline(wc, formatterFor(mode), gate, service.Options{
		FailurePolicy:       service.FailurePolicy(cfg.Delivery.FailurePolicy),
		MaxDeliveryAttempts: cfg.Delivery.MaxDeliveryAttempts,
	})

	src, err := newSource(ctx, cfg.Queue)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			slog.Warn("queue close failed", "error", err)
		}
	}()

	consumer, err := runner.New(restartBackoff, func(ctx context.Context) error {
		return src.Receive(ctx, func(ctx context.Context, msg model.RawMessage) {
			pipeline.Handle(ctx, msg)
		})
	})
	if err != nil {
		return err
	}

	logBanner(cfg, wc.Configured())
	consumer.Start()

	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if cfg.Server.Address != "" {
		srv = &http.Server{
			Addr:              cfg.Server.Address,
			Handler:           loggingMiddleware(api.Router(api.NewHandler(consumer, pipeline))),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("http server listening", "addr", cfg.Server.Address)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if srv != nil {
			if err := srv.Shutdown(sctx); err != nil {
				slog.Warn("http shutdown failed", "error", err)
			}
		}
		consumer.Stop()

		st := pipeline.Stats()
		slog.Info("relay stopped", "received", st.Received, "delivered", st.Delivered, "failed", st.Failed+st.DeliveryFailed)
		return nil
	})

	return g.Wait()
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newGate falls back to NoopGate when no cache is configured or it cannot be
// reached at startup.
func newGate(ctx context.Context, cfg config.RedisConfig) (cache.Gate, func()) {
	if !cfg.Enabled {
		return cache.NoopGate{}, func() {}
	}

	rdb, err := cache.NewRedisClient(ctx, cfg.URL, cfg.Timeout)
	if err != nil {
		slog.Warn("redis unavailable, dedup disabled", "error", err)
		return cache.NoopGate{}, func() {}
	}

	gate := cache.NewRedisGate(rdb, cache.RedisOptions{
		TTL:     cfg.TTL,
		Timeout: cfg.Timeout,
		Reserve: cfg.Reserve,
	})
	return gate, func() { _ = rdb.Close() }
}

func newSource(ctx context.Context, cfg config.QueueConfig) (queue.Source, error) {
	switch cfg.Driver {
	case config.DriverKafka:
		return queue.NewKafkaSource(queue.KafkaConfig{
			Brokers:    cfg.Kafka.Brokers,
			GroupID:    cfg.Kafka.GroupID,
			Topic:      cfg.Kafka.Topic,
			RetryTopic: cfg.Kafka.RetryTopic,
		}), nil
	default:
		c, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		return queue.NewPubSubSource(c, queue.PubSubConfig{
			SubscriptionID:         cfg.PubSub.SubscriptionID,
			NumGoroutines:          cfg.PubSub.NumGoroutines,
			MaxOutstandingMessages: cfg.PubSub.MaxOutstanding,
		}), nil
	}
}

func formatterFor(mode client.Mode) format.Formatter {
	if mode == client.ModeJSON {
		return format.JSON{}
	}
	return format.Text{}
}

func logBanner(cfg *config.Config, webhookConfigured bool) {
	attrs := []any{
		"driver", cfg.Queue.Driver,
		"webhook_configured", webhookConfigured,
		"webhook_mode", cfg.Webhook.Mode,
		"cache_enabled", cfg.Redis.Enabled,
		"failure_policy", cfg.Delivery.FailurePolicy,
	}
	if cfg.Queue.Driver == config.DriverKafka {
		attrs = append(attrs, "brokers", cfg.Queue.Kafka.Brokers, "topic", cfg.Queue.Kafka.Topic)
	} else {
		attrs = append(attrs, "project", cfg.Queue.PubSub.ProjectID, "subscription", cfg.Queue.PubSub.SubscriptionID)
	}
	slog.Info("client relay starting", attrs...)

	if !webhookConfigured {
		slog.Warn("no webhook url configured, messages will be acknowledged without delivery")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
