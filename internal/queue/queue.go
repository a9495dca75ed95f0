// Package queue adapts message brokers to the pipeline's RawMessage. Every
// source hands each message to the handler once per delivery and leaves
// settlement (Ack/Nack) to the handler.
package queue

import (
	"context"

	"github.com/lusohub/expressions-maker-a22311749/internal/model"
)

type Handler func(ctx context.Context, msg model.RawMessage)

type Source interface {
	// Receive blocks until ctx is done or the source fails.
	Receive(ctx context.Context, h Handler) error
	Close() error
}
