package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/lusohub/expressions-maker-a22311749/internal/model"
)

const (
	attemptHeader = "x-delivery-attempt"
	settleTimeout = 10 * time.Second

	kafkaMinBytes = 1
	kafkaMaxBytes = 10_000_000
)

type KafkaConfig struct {
	Brokers    []string
	GroupID    string
	Topic      string
	RetryTopic string
}

// KafkaSource reads one message at a time so offsets are committed in order.
// Ack commits the offset. Nack republishes the message to the retry topic
// with an incremented attempt header and then commits.
type KafkaSource struct {
	cfg    KafkaConfig
	reader messageReader
	retry  messageWriter
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// retryTopic defaults to the input topic so nacked messages come back to
// the same consumer group.
func (c KafkaConfig) retryTopic() string {
	if c.RetryTopic != "" {
		return c.RetryTopic
	}
	return c.Topic
}

func NewKafkaSource(cfg KafkaConfig) *KafkaSource {
	return &KafkaSource{
		cfg: cfg,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       cfg.Topic,
			MinBytes:    kafkaMinBytes,
			MaxBytes:    kafkaMaxBytes,
			StartOffset: kafka.FirstOffset,
		}),
		retry: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.retryTopic(),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (s *KafkaSource) Receive(ctx context.Context, h Handler) error {
	slog.Info("kafka receive started", "topic", s.cfg.Topic, "group", s.cfg.GroupID)

	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}

		if err := s.handle(ctx, m, h); err != nil {
			return err
		}
	}
}

func (s *KafkaSource) handle(ctx context.Context, m kafka.Message, h Handler) error {
	var nacked bool
	raw := fromKafka(m, func() {}, func() { nacked = true })

	// In-flight messages finish even when shutdown cancels ctx.
	ctx = context.WithoutCancel(ctx)
	h(ctx, raw)

	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	if nacked {
		retry := requeued(m, raw.Attempt+1)
		if err := s.retry.WriteMessages(ctx, retry); err != nil {
			// offset stays uncommitted, the message is read again after restart
			return fmt.Errorf("kafka requeue: %w", err)
		}
	}

	if err := s.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("kafka commit: %w", err)
	}
	return nil
}

func (s *KafkaSource) Close() error {
	rerr := s.reader.Close()
	werr := s.retry.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

func fromKafka(m kafka.Message, ack, nack func()) model.RawMessage {
	attrs := make(map[string]string, len(m.Headers))
	for _, hd := range m.Headers {
		attrs[hd.Key] = string(hd.Value)
	}
	return model.RawMessage{
		ID:          fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset),
		Data:        m.Value,
		PublishTime: m.Time,
		Attributes:  attrs,
		Attempt:     attemptOf(attrs),
		Ack:         ack,
		Nack:        nack,
	}
}

// attemptOf reads the attempt header; messages without one are on their
// first delivery.
func attemptOf(attrs map[string]string) int {
	n, err := strconv.Atoi(attrs[attemptHeader])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func requeued(m kafka.Message, attempt int) kafka.Message {
	headers := make([]kafka.Header, 0, len(m.Headers)+1)
	for _, hd := range m.Headers {
		if hd.Key == attemptHeader {
			continue
		}
		headers = append(headers, hd)
	}
	headers = append(headers, kafka.Header{Key: attemptHeader, Value: []byte(strconv.Itoa(attempt))})

	return kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Headers: headers,
	}
}
