package cache

import (
	"context"
	"regexp"
	"strings"

	"github.com/lusohub/expressions-maker-a22311749/internal/model"
	"github.com/lusohub/expressions-maker-a22311749/internal/textnorm"
)

const (
	keyPrefix       = "client:dedup:"
	keyMaxLen       = 128
	unknownIdentity = "unknown"
)

// Gate decides whether a record should be delivered and remembers the ones
// that were. Implementations fail open: a store fault permits delivery.
type Gate interface {
	ShouldDeliver(ctx context.Context, rec model.ClientRecord) bool
	MarkDelivered(ctx context.Context, rec model.ClientRecord)
	// Release drops any claim taken by ShouldDeliver after a failed delivery.
	Release(ctx context.Context, rec model.ClientRecord)
}

// NoopGate is used when no cache store is configured or reachable.
type NoopGate struct{}

func (NoopGate) ShouldDeliver(context.Context, model.ClientRecord) bool { return true }
func (NoopGate) MarkDelivered(context.Context, model.ClientRecord)      {}
func (NoopGate) Release(context.Context, model.ClientRecord)            {}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Key derives the dedup key from email, else phone, else name. Case, accents
// and punctuation do not change the key.
func Key(rec model.ClientRecord) string {
	id, _ := identity(rec)
	s := strings.ToLower(textnorm.Strip(id))
	s = nonAlnum.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > keyMaxLen {
		s = s[:keyMaxLen]
	}
	if s == "" {
		s = unknownIdentity
	}
	return keyPrefix + s
}

// Identified reports whether rec has an identity field. Records without one
// all share the sentinel key and are never deduplicated.
func Identified(rec model.ClientRecord) bool {
	_, ok := identity(rec)
	return ok
}

func identity(rec model.ClientRecord) (string, bool) {
	switch {
	case strings.TrimSpace(rec.Email) != "":
		return rec.Email, true
	case strings.TrimSpace(rec.Phone) != "":
		return rec.Phone, true
	case strings.TrimSpace(rec.Name) != "" && !rec.NamePlaceholder:
		return rec.Name, true
	}
	return unknownIdentity, false
}
