package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPubSub = "pubsub"
	DriverKafka  = "kafka"
)

type Config struct {
	Server   ServerConfig
	Queue    QueueConfig
	Webhook  WebhookConfig
	Redis    RedisConfig
	Delivery DeliveryConfig
	Log      LogConfig
	Tracing  TracingConfig
}

type ServerConfig struct {
	// Address is empty when the ops HTTP surface is disabled.
	Address string
}

type QueueConfig struct {
	Driver string
	PubSub PubSubConfig
	Kafka  KafkaConfig
}

type PubSubConfig struct {
	ProjectID      string
	SubscriptionID string
	NumGoroutines  int
	MaxOutstanding int
}

type KafkaConfig struct {
	Brokers    []string
	GroupID    string
	Topic      string
	RetryTopic string
}

type WebhookConfig struct {
	// URL is optional; messages are acked with a warning when it is empty.
	URL        string
	Mode       string
	Timeout    time.Duration
	RatePerSec float64
}

type RedisConfig struct {
	Enabled bool
	URL     string
	TTL     time.Duration
	Timeout time.Duration
	Reserve bool
}

type DeliveryConfig struct {
	FailurePolicy       string
	MaxDeliveryAttempts int
}

type LogConfig struct {
	Level  string
	Format string
}

type TracingConfig struct {
	Enabled      bool
	Exporter     string
	OTLPEndpoint string
	SampleRate   float64
}

func LoadAll() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnvAllowEmpty("SERVER_ADDRESS", ":8080"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
	}

	queue, err := loadQueueConfig()
	collect(err)
	cfg.Queue = queue

	webhook, err := loadWebhookConfig()
	collect(err)
	cfg.Webhook = webhook

	redis, err := loadRedisConfig()
	collect(err)
	cfg.Redis = redis

	delivery, err := loadDeliveryConfig()
	collect(err)
	cfg.Delivery = delivery

	tracing, err := loadTracingConfig()
	collect(err)
	cfg.Tracing = tracing

	if len(errs) == 0 {
		collect(validate(cfg))
	}

	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadQueueConfig() (QueueConfig, error) {
	var errs []error
	q := QueueConfig{Driver: strings.ToLower(getEnv("QUEUE_DRIVER", DriverPubSub))}

	switch q.Driver {
	case DriverPubSub:
		project, err := requireEnv("GCP_PROJECT_ID")
		if err != nil {
			errs = append(errs, err)
		}
		sub, err := requireEnv("PUBSUB_SUBSCRIPTION_ID")
		if err != nil {
			errs = append(errs, err)
		}
		workers, err := getEnvInt("PUBSUB_NUM_GOROUTINES", 1)
		if err != nil {
			errs = append(errs, err)
		}
		outstanding, err := getEnvInt("PUBSUB_MAX_OUTSTANDING", 10)
		if err != nil {
			errs = append(errs, err)
		}
		q.PubSub = PubSubConfig{
			ProjectID:      project,
			SubscriptionID: sub,
			NumGoroutines:  workers,
			MaxOutstanding: outstanding,
		}

	case DriverKafka:
		brokers, err := requireEnv("KAFKA_BROKERS")
		if err != nil {
			errs = append(errs, err)
		}
		topic, err := requireEnv("KAFKA_TOPIC")
		if err != nil {
			errs = append(errs, err)
		}
		q.Kafka = KafkaConfig{
			Brokers:    splitList(brokers),
			GroupID:    getEnv("KAFKA_GROUP_ID", "client-relay"),
			Topic:      topic,
			RetryTopic: getEnv("KAFKA_RETRY_TOPIC", topic),
		}

	default:
		errs = append(errs, fmt.Errorf("QUEUE_DRIVER must be %q or %q, got %q", DriverPubSub, DriverKafka, q.Driver))
	}

	return q, joinErrors(errs)
}

func loadWebhookConfig() (WebhookConfig, error) {
	url := getEnv("DISCORD_URL", "")
	if url == "" {
		url = getEnv("WEBHOOK_URL", "")
	}

	timeout, err := getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 15)
	if err != nil {
		return WebhookConfig{}, err
	}
	rate, err := getEnvFloat("WEBHOOK_RATE_PER_SEC", 0)
	if err != nil {
		return WebhookConfig{}, err
	}

	return WebhookConfig{
		URL:        url,
		Mode:       strings.ToLower(getEnv("WEBHOOK_MODE", "file")),
		Timeout:    time.Duration(timeout) * time.Second,
		RatePerSec: rate,
	}, nil
}

func loadRedisConfig() (RedisConfig, error) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		return RedisConfig{Enabled: false}, nil
	}

	var errs []error
	ttl, err := getEnvInt("CACHE_TTL_SECONDS", 3600)
	if err != nil {
		errs = append(errs, err)
	}
	timeout, err := getEnvInt("CACHE_TIMEOUT_MS", 2000)
	if err != nil {
		errs = append(errs, err)
	}
	reserve, err := getEnvBool("CACHE_RESERVE", false)
	if err != nil {
		errs = append(errs, err)
	}

	return RedisConfig{
		Enabled: true,
		URL:     url,
		TTL:     time.Duration(ttl) * time.Second,
		Timeout: time.Duration(timeout) * time.Millisecond,
		Reserve: reserve,
	}, joinErrors(errs)
}

func loadDeliveryConfig() (DeliveryConfig, error) {
	attempts, err := getEnvInt("MAX_DELIVERY_ATTEMPTS", 5)
	if err != nil {
		return DeliveryConfig{}, err
	}
	return DeliveryConfig{
		FailurePolicy:       strings.ToLower(getEnv("DELIVERY_FAILURE_POLICY", "ack")),
		MaxDeliveryAttempts: attempts,
	}, nil
}

func loadTracingConfig() (TracingConfig, error) {
	var errs []error
	enabled, err := getEnvBool("OTEL_ENABLED", false)
	if err != nil {
		errs = append(errs, err)
	}
	rate, err := getEnvFloat("OTEL_SAMPLE_RATE", 1.0)
	if err != nil {
		errs = append(errs, err)
	}

	return TracingConfig{
		Enabled:      enabled,
		Exporter:     strings.ToLower(getEnv("OTEL_EXPORTER", "stdout")),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		SampleRate:   rate,
	}, joinErrors(errs)
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Queue.Driver == DriverPubSub {
		if cfg.Queue.PubSub.NumGoroutines <= 0 {
			errs = append(errs, errors.New("PUBSUB_NUM_GOROUTINES must be > 0"))
		}
		if cfg.Queue.PubSub.MaxOutstanding <= 0 {
			errs = append(errs, errors.New("PUBSUB_MAX_OUTSTANDING must be > 0"))
		}
	}
	if cfg.Queue.Driver == DriverKafka && len(cfg.Queue.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS must list at least one broker"))
	}

	if cfg.Webhook.Mode != "file" && cfg.Webhook.Mode != "json" {
		errs = append(errs, fmt.Errorf("WEBHOOK_MODE must be file or json, got %q", cfg.Webhook.Mode))
	}
	if cfg.Webhook.Timeout <= 0 {
		errs = append(errs, errors.New("WEBHOOK_TIMEOUT_SECONDS must be > 0"))
	}
	if cfg.Webhook.RatePerSec < 0 {
		errs = append(errs, errors.New("WEBHOOK_RATE_PER_SEC must be >= 0"))
	}

	if cfg.Redis.Enabled {
		if cfg.Redis.TTL <= 0 {
			errs = append(errs, errors.New("CACHE_TTL_SECONDS must be > 0"))
		}
		if cfg.Redis.Timeout <= 0 {
			errs = append(errs, errors.New("CACHE_TIMEOUT_MS must be > 0"))
		}
	}

	if cfg.Delivery.FailurePolicy != "ack" && cfg.Delivery.FailurePolicy != "nack" {
		errs = append(errs, fmt.Errorf("DELIVERY_FAILURE_POLICY must be ack or nack, got %q", cfg.Delivery.FailurePolicy))
	}
	if cfg.Delivery.MaxDeliveryAttempts <= 0 {
		errs = append(errs, errors.New("MAX_DELIVERY_ATTEMPTS must be > 0"))
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", cfg.Log.Level))
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.Log.Format))
	}

	if cfg.Tracing.Exporter != "stdout" && cfg.Tracing.Exporter != "otlp" {
		errs = append(errs, fmt.Errorf("OTEL_EXPORTER must be stdout or otlp, got %q", cfg.Tracing.Exporter))
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		errs = append(errs, errors.New("OTEL_SAMPLE_RATE must be between 0 and 1"))
	}

	return joinErrors(errs)
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvAllowEmpty returns def only when key is unset, so an explicit empty
// value can switch a feature off.
func getEnvAllowEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func getEnvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float for env %s: %s", key, v)
	}
	return f, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for env %s: %s", key, v)
	}
	return b, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
