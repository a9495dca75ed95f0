package queue

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"

	"github.com/lusohub/expressions-maker-a22311749/internal/model"
)

type PubSubConfig struct {
	SubscriptionID         string
	NumGoroutines          int
	MaxOutstandingMessages int
}

type PubSubSource struct {
	client *pubsub.Client
	sub    *pubsub.Subscription
}

// NewPubSubSource takes ownership of client; Close closes it.
func NewPubSubSource(client *pubsub.Client, cfg PubSubConfig) *PubSubSource {
	sub := client.Subscription(cfg.SubscriptionID)
	if cfg.NumGoroutines > 0 {
		sub.ReceiveSettings.NumGoroutines = cfg.NumGoroutines
	}
	if cfg.MaxOutstandingMessages > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	}
	return &PubSubSource{client: client, sub: sub}
}

func (s *PubSubSource) Receive(ctx context.Context, h Handler) error {
	slog.Info("pubsub receive started", "subscription", s.sub.String())

	err := s.sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		// In-flight messages finish even when shutdown cancels ctx.
		h(context.WithoutCancel(ctx), fromPubSub(m))
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("pubsub receive: %w", err)
	}
	return nil
}

func (s *PubSubSource) Close() error {
	return s.client.Close()
}

func fromPubSub(m *pubsub.Message) model.RawMessage {
	attempt := 0
	if m.DeliveryAttempt != nil {
		attempt = *m.DeliveryAttempt
	}
	return model.RawMessage{
		ID:          m.ID,
		Data:        m.Data,
		PublishTime: m.PublishTime,
		Attributes:  m.Attributes,
		Attempt:     attempt,
		Ack:         m.Ack,
		Nack:        m.Nack,
	}
}
