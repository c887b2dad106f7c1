// Package dedup remembers webhook deliveries that were already processed so
// that provider redeliveries are acknowledged without side effects.
package dedup

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL bounds how long a delivery key is remembered in memory.
const DefaultTTL = 10 * time.Minute

// Key builds the composite delivery key for a conversation message.
func Key(conversationID, messageID string) string {
	return conversationID + ":" + messageID
}

// MemoryLedger is a process-local set of delivery keys with expiry.
type MemoryLedger struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLedger{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// MarkProcessed records key and reports whether this is its first delivery.
func (l *MemoryLedger) MarkProcessed(_ context.Context, key string) (bool, error) {
	now := l.now().UTC()
	expireBefore := now.Add(-l.ttl)

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, seenAt := range l.seen {
		if seenAt.Before(expireBefore) {
			delete(l.seen, k)
		}
	}

	if _, ok := l.seen[key]; ok {
		return false, nil
	}
	l.seen[key] = now
	return true, nil
}
