// Package dedup implements the pre-check half of email deduplication: a
// fast Redis seen-set in front of the authoritative store lookup. The unique
// index on (user_id, external_email_id) remains the source of truth; the
// gate only exists to short-circuit the workflow before any classifier call.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTTL is how long the seen-set remembers a processed message.
	DefaultTTL = 7 * 24 * time.Hour

	keyPrefix = "jobhub:seen:"
)

// EmailLookup is the store-side existence check.
type EmailLookup interface {
	ExistsByExternalID(ctx context.Context, userID, externalEmailID string) (bool, error)
}

// Gate answers "was this email already processed?".
type Gate struct {
	rdb    *redis.Client // optional fast path, may be nil
	emails EmailLookup
	ttl    time.Duration
	log    *logrus.Logger
}

// NewGate creates a dedup gate. rdb may be nil, in which case every check
// goes straight to the store.
func NewGate(rdb *redis.Client, emails EmailLookup, log *logrus.Logger) *Gate {
	return &Gate{
		rdb:    rdb,
		emails: emails,
		ttl:    DefaultTTL,
		log:    log,
	}
}

func seenKey(userID, externalEmailID string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, userID, externalEmailID)
}

// IsDuplicate reports whether the message was already processed for this
// user. Redis errors degrade to the store lookup; a store lookup failure is
// returned as an error so the workflow never proceeds on an inconclusive
// check.
func (g *Gate) IsDuplicate(ctx context.Context, userID, externalEmailID string) (bool, error) {
	if g.rdb != nil {
		n, err := g.rdb.Exists(ctx, seenKey(userID, externalEmailID)).Result()
		if err != nil {
			g.log.WithError(err).Warn("dedup cache unavailable, falling back to store lookup")
		} else if n > 0 {
			return true, nil
		}
	}

	exists, err := g.emails.ExistsByExternalID(ctx, userID, externalEmailID)
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	return exists, nil
}

// MarkSeen records the message in the seen-set after its row is persisted.
// Best-effort: failures only cost a future cache miss.
func (g *Gate) MarkSeen(ctx context.Context, userID, externalEmailID string) {
	if g.rdb == nil {
		return
	}
	if err := g.rdb.Set(ctx, seenKey(userID, externalEmailID), 1, g.ttl).Err(); err != nil {
		g.log.WithError(err).Warn("failed to record email in dedup cache")
	}
}
