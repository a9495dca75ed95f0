package service

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lusohub/expressions-maker-a22311749/internal/cache"
	"github.com/lusohub/expressions-maker-a22311749/internal/client"
	"github.com/lusohub/expressions-maker-a22311749/internal/decode"
	"github.com/lusohub/expressions-maker-a22311749/internal/format"
	"github.com/lusohub/expressions-maker-a22311749/internal/model"
	"github.com/lusohub/expressions-maker-a22311749/internal/tracing"
)

type Deliverer interface {
	Configured() bool
	Deliver(ctx context.Context, body, filename string) error
}

type Outcome string

const (
	OutcomeDelivered        Outcome = "delivered"
	OutcomeSkippedEmpty     Outcome = "skipped_empty"
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
	OutcomeNotConfigured    Outcome = "not_configured"
	OutcomeDeliveryFailed   Outcome = "delivery_failed"
	OutcomeFailed           Outcome = "failed"
)

// FailurePolicy decides what happens to a message whose delivery failed.
type FailurePolicy string

const (
	// PolicyAck acknowledges failed deliveries; the notification is dropped.
	PolicyAck FailurePolicy = "ack"
	// PolicyNack asks for redelivery until MaxDeliveryAttempts is reached.
	PolicyNack FailurePolicy = "nack"
)

type Options struct {
	FailurePolicy       FailurePolicy
	MaxDeliveryAttempts int
	Now                 func() time.Time
}

type Stats struct {
	Received         int64 `json:"received"`
	Delivered        int64 `json:"delivered"`
	SkippedEmpty     int64 `json:"skipped_empty"`
	SkippedDuplicate int64 `json:"skipped_duplicate"`
	NotConfigured    int64 `json:"not_configured"`
	DeliveryFailed   int64 `json:"delivery_failed"`
	Failed           int64 `json:"failed"`
	Acked            int64 `json:"acked"`
	Nacked           int64 `json:"nacked"`
}

type counters struct {
	received, delivered, skippedEmpty, skippedDuplicate atomic.Int64
	notConfigured, deliveryFailed, failed               atomic.Int64
	acked, nacked                                       atomic.Int64
}

// Pipeline processes one queue message at a time per call and is safe for
// concurrent use. Dedup relies on the gate; nothing here is locked.
type Pipeline struct {
	decoder   *decode.Decoder
	formatter format.Formatter
	gate      cache.Gate
	client    Deliverer
	opts      Options

	stats counters
}

func NewPipeline(c Deliverer, f format.Formatter, g cache.Gate, opts Options) *Pipeline {
	if g == nil {
		g = cache.NoopGate{}
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = PolicyAck
	}
	if opts.MaxDeliveryAttempts <= 0 {
		opts.MaxDeliveryAttempts = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		decoder:   decode.New(),
		formatter: f,
		gate:      g,
		client:    c,
		opts:      opts,
	}
}

// Handle runs msg through the pipeline and settles it with exactly one call
// to Ack or Nack.
func (p *Pipeline) Handle(ctx context.Context, msg model.RawMessage) Outcome {
	log := slog.With("message_id", msg.ID, "attempt_id", uuid.NewString())

	ctx, span := tracing.StartSpan(ctx, "relay.handle",
		attribute.String("messaging.message.id", msg.ID),
		attribute.Int("messaging.delivery_attempt", msg.Attempt),
	)
	defer span.End()

	p.stats.received.Add(1)
	start := time.Now()

	outcome := p.process(ctx, log, msg)
	p.count(outcome)

	ack := p.shouldAck(msg, outcome)
	span.SetAttributes(
		attribute.String("relay.outcome", string(outcome)),
		attribute.Bool("relay.acked", ack),
	)

	if ack {
		p.stats.acked.Add(1)
		if msg.Ack != nil {
			msg.Ack()
		}
	} else {
		p.stats.nacked.Add(1)
		if msg.Nack != nil {
			msg.Nack()
		}
	}

	log.Info("message settled",
		"outcome", outcome,
		"acked", ack,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return outcome
}

func (p *Pipeline) process(ctx context.Context, log *slog.Logger, msg model.RawMessage) (outcome Outcome) {
	var (
		rec     model.ClientRecord
		claimed bool
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("message processing panic recovered", "panic", r, "stack", string(debug.Stack()))
			tracing.RecordError(ctx, errors.New("panic during processing"))
			// a claim left behind would turn the redelivery into a duplicate
			if claimed {
				p.gate.Release(ctx, rec)
			}
			outcome = OutcomeFailed
		}
	}()

	res := p.decoder.Decode(msg.Data)
	rec = res.Record
	log = log.With("decode_strategy", res.Strategy)

	if !rec.HasContent() {
		log.Info("empty message skipped")
		return OutcomeSkippedEmpty
	}

	log = log.With("client", rec.Name)

	if !p.client.Configured() {
		log.Warn("webhook not configured, message acknowledged without delivery")
		return OutcomeNotConfigured
	}

	if !p.gate.ShouldDeliver(ctx, rec) {
		log.Info("duplicate client skipped", "dedup_key", cache.Key(rec))
		return OutcomeSkippedDuplicate
	}
	claimed = true

	body, filename, err := p.formatter.Format(rec, p.opts.Now())
	if err != nil {
		log.Error("format failed", "error", err)
		tracing.RecordError(ctx, err)
		p.gate.Release(ctx, rec)
		return OutcomeFailed
	}

	if err := p.client.Deliver(ctx, body, filename); err != nil {
		attrs := []any{"error", err, "filename", filename}
		var de *client.DeliveryError
		if errors.As(err, &de) && de.StatusCode != 0 {
			attrs = append(attrs, "status", de.StatusCode)
		}
		log.Error("delivery failed", attrs...)
		tracing.RecordError(ctx, err)
		p.gate.Release(ctx, rec)
		return OutcomeDeliveryFailed
	}

	p.gate.MarkDelivered(ctx, rec)
	log.Info("client delivered", "filename", filename)
	return OutcomeDelivered
}

func (p *Pipeline) shouldAck(msg model.RawMessage, outcome Outcome) bool {
	switch outcome {
	case OutcomeFailed:
		return false
	case OutcomeDeliveryFailed:
		if p.opts.FailurePolicy != PolicyNack {
			return true
		}
		// unknown attempt counts stay under the bound
		if msg.Attempt >= p.opts.MaxDeliveryAttempts {
			slog.Warn("delivery attempts exhausted, dropping message",
				"message_id", msg.ID, "attempt", msg.Attempt)
			return true
		}
		return false
	default:
		return true
	}
}

func (p *Pipeline) count(o Outcome) {
	switch o {
	case OutcomeDelivered:
		p.stats.delivered.Add(1)
	case OutcomeSkippedEmpty:
		p.stats.skippedEmpty.Add(1)
	case OutcomeSkippedDuplicate:
		p.stats.skippedDuplicate.Add(1)
	case OutcomeNotConfigured:
		p.stats.notConfigured.Add(1)
	case OutcomeDeliveryFailed:
		p.stats.deliveryFailed.Add(1)
	case OutcomeFailed:
		p.stats.failed.Add(1)
	}
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:         p.stats.received.Load(),
		Delivered:        p.stats.delivered.Load(),
		SkippedEmpty:     p.stats.skippedEmpty.Load(),
		SkippedDuplicate: p.stats.skippedDuplicate.Load(),
		NotConfigured:    p.stats.notConfigured.Load(),
		DeliveryFailed:   p.stats.deliveryFailed.Load(),
		Failed:           p.stats.failed.Load(),
		Acked:            p.stats.acked.Load(),
		Nacked:           p.stats.nacked.Load(),
	}
}
