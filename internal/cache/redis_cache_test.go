package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lusohub/expressions-maker-a22311749/internal/model"
)

func newTestGate(t *testing.T, opts RedisOptions) (*miniredis.Miniredis, *RedisGate) {
	t.Helper()

	// Start in-memory Redis
	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, NewRedisGate(rdb, opts)
}

func TestKey_IgnoresCaseAccentsAndPunctuation(t *testing.T) {
	t.Parallel()

	a := Key(model.ClientRecord{Email: "José.Silva@Example.com"})
	b := Key(model.ClientRecord{Email: "jose.silva@example.com", Name: "Other"})
	c := Key(model.ClientRecord{Email: "  JOSE-SILVA@EXAMPLE.COM "})

	if a != b || b != c {
		t.Fatalf("expected identical keys, got %q %q %q", a, b, c)
	}
	if a != "client:dedup:jose_silva_example_com" {
		t.Fatalf("unexpected key %q", a)
	}
}

func TestKey_DifferentEmailsDiffer(t *testing.T) {
	t.Parallel()

	a := Key(model.ClientRecord{Email: "x@y.com"})
	b := Key(model.ClientRecord{Email: "z@y.com"})
	if a == b {
		t.Fatalf("expected different keys, both %q", a)
	}
}

func TestKey_IdentityPrecedence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rec  model.ClientRecord
		want string
	}{
		{"email wins", model.ClientRecord{Email: "a@b.c", Phone: "123", Name: "N"}, "client:dedup:a_b_c"},
		{"phone next", model.ClientRecord{Phone: "+351 912", Name: "N"}, "client:dedup:351_912"},
		{"name last", model.ClientRecord{Name: "Zoë Ávila"}, "client:dedup:zoe_avila"},
		{"placeholder ignored", model.ClientRecord{Name: model.PlaceholderName, NamePlaceholder: true}, "client:dedup:unknown"},
		{"nothing", model.ClientRecord{}, "client:dedup:unknown"},
		{"symbols only", model.ClientRecord{Email: "@@@"}, "client:dedup:unknown"},
	}

	for _, tc := range cases {
		if got := Key(tc.rec); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestKey_LengthCapped(t *testing.T) {
	t.Parallel()

	got := Key(model.ClientRecord{Email: strings.Repeat("a", 500) + "@x.com"})
	if len(got) != len(keyPrefix)+keyMaxLen {
		t.Fatalf("expected capped key length %d, got %d", len(keyPrefix)+keyMaxLen, len(got))
	}
}

func TestRedisGate_MarkThenSkip(t *testing.T) {
	t.Parallel()

	mr, gate := newTestGate(t, RedisOptions{TTL: 10 * time.Second})
	ctx := context.Background()
	rec := model.ClientRecord{Name: "X", Email: "x@y.com"}

	if !gate.ShouldDeliver(ctx, rec) {
		t.Fatalf("expected first delivery to be permitted")
	}

	gate.MarkDelivered(ctx, rec)

	key := Key(rec)
	if !mr.Exists(key) {
		t.Fatalf("expected key %q to exist", key)
	}
	if ttl := mr.TTL(key); ttl != 10*time.Second {
		t.Fatalf("expected TTL 10s, got %v", ttl)
	}

	dup := model.ClientRecord{Name: "Someone", Email: "X@Y.COM"}
	if gate.ShouldDeliver(ctx, dup) {
		t.Fatalf("expected duplicate to be skipped")
	}
}

func TestRedisGate_ExpiredMarkerPermits(t *testing.T) {
	t.Parallel()

	mr, gate := newTestGate(t, RedisOptions{TTL: time.Minute})
	ctx := context.Background()
	rec := model.ClientRecord{Email: "x@y.com"}

	gate.MarkDelivered(ctx, rec)
	mr.FastForward(2 * time.Minute)

	if !gate.ShouldDeliver(ctx, rec) {
		t.Fatalf("expected delivery after TTL expiry")
	}
}

func TestRedisGate_DefaultTTLIsOneHour(t *testing.T) {
	t.Parallel()

	mr, gate := newTestGate(t, RedisOptions{})
	rec := model.ClientRecord{Phone: "912"}

	gate.MarkDelivered(context.Background(), rec)

	if ttl := mr.TTL(Key(rec)); ttl != time.Hour {
		t.Fatalf("expected default TTL 1h, got %v", ttl)
	}
}

func TestRedisGate_UnidentifiedRecordsBypass(t *testing.T) {
	t.Parallel()

	mr, gate := newTestGate(t, RedisOptions{})
	ctx := context.Background()
	rec := model.ClientRecord{Name: model.PlaceholderName, NamePlaceholder: true, Notes: "hello"}

	gate.MarkDelivered(ctx, rec)
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected no keys written, got %v", keys)
	}
	if !gate.ShouldDeliver(ctx, rec) {
		t.Fatalf("expected unidentified record to be delivered")
	}
}

func TestRedisGate_FailsOpenWhenStoreIsDown(t *testing.T) {
	t.Parallel()

	mr, gate := newTestGate(t, RedisOptions{Timeout: 200 * time.Millisecond})
	ctx := context.Background()
	rec := model.ClientRecord{Email: "x@y.com"}

	gate.MarkDelivered(ctx, rec)
	mr.Close()

	if !gate.ShouldDeliver(ctx, rec) {
		t.Fatalf("expected fail-open when store is unreachable")
	}

	// must not panic or block
	gate.MarkDelivered(ctx, rec)
}

func TestRedisGate_ReserveClaimsOnce(t *testing.T) {
	t.Parallel()

	mr, gate := newTestGate(t, RedisOptions{TTL: time.Hour, Reserve: true, ClaimTTL: 30 * time.Second})
	ctx := context.Background()
	rec := model.ClientRecord{Email: "x@y.com"}

	if !gate.ShouldDeliver(ctx, rec) {
		t.Fatalf("expected first claim to win")
	}
	if gate.ShouldDeliver(ctx, rec) {
		t.Fatalf("expected second claim to lose")
	}

	key := Key(rec)
	if v, _ := mr.Get(key); v != pendingValue {
		t.Fatalf("expected pending claim, got %q", v)
	}
	if ttl := mr.TTL(key); ttl != 30*time.Second {
		t.Fatalf("expected claim TTL 30s, got %v", ttl)
	}

	gate.MarkDelivered(ctx, rec)
	if v, _ := mr.Get(key); v != deliveredValue {
		t.Fatalf("expected delivered marker, got %q", v)
	}
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Fatalf("expected full TTL after delivery, got %v", ttl)
	}
}

func TestRedisGate_ReleaseAfterFailure(t *testing.T) {
	t.Parallel()

	mr, gate := newTestGate(t, RedisOptions{Reserve: true})
	ctx := context.Background()
	rec := model.ClientRecord{Email: "x@y.com"}

	if !gate.ShouldDeliver(ctx, rec) {
		t.Fatalf("expected claim to win")
	}
	gate.Release(ctx, rec)

	if mr.Exists(Key(rec)) {
		t.Fatalf("expected claim to be released")
	}
	if !gate.ShouldDeliver(ctx, rec) {
		t.Fatalf("expected redelivery to claim again")
	}
}

func TestRedisGate_ReleaseIsNoopWithoutReserve(t *testing.T) {
	t.Parallel()

	mr, gate := newTestGate(t, RedisOptions{})
	ctx := context.Background()
	rec := model.ClientRecord{Email: "x@y.com"}

	gate.MarkDelivered(ctx, rec)
	gate.Release(ctx, rec)

	if !mr.Exists(Key(rec)) {
		t.Fatalf("expected delivered marker to survive Release")
	}
}

func TestNewRedisClient(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	rdb, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0", time.Second)
	if err != nil {
		t.Fatalf("NewRedisClient() error: %v", err)
	}
	defer rdb.Close()

	if _, err := NewRedisClient(context.Background(), "not a url", time.Second); err == nil {
		t.Fatalf("expected error for invalid url, got nil")
	}
}

func TestNoopGate(t *testing.T) {
	t.Parallel()

	var g Gate = NoopGate{}
	rec := model.ClientRecord{Email: "x@y.com"}

	g.MarkDelivered(context.Background(), rec)
	g.Release(context.Background(), rec)
	if !g.ShouldDeliver(context.Background(), rec) {
		t.Fatalf("expected noop gate to always permit")
	}
}
