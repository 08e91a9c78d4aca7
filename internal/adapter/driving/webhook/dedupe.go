package webhook

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Dedupe window sizing. GitHub redeliveries reuse the original delivery ID,
// so remembering recent IDs lets us drop duplicates without durable state.
const (
	dedupeCacheSize = 4096
	dedupeTTL       = 15 * time.Minute
)

// deliveryCache remembers recently seen webhook delivery IDs in an
// expiring in-memory LRU. Duplicate suppression is best effort only: the
// cache does not survive restarts, and redelivery after the TTL window runs
// the workflow again (which is safe, since check-run updates are full
// replacements).
type deliveryCache struct {
	seen *expirable.LRU[string, struct{}]
}

func newDeliveryCache() *deliveryCache {
	return &deliveryCache{
		seen: expirable.NewLRU[string, struct{}](dedupeCacheSize, nil, dedupeTTL),
	}
}

// Seen records id and reports whether it was already present. An empty id
// (delivery header missing) is never considered a duplicate.
func (c *deliveryCache) Seen(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := c.seen.Get(id); ok {
		return true
	}
	c.seen.Add(id, struct{}{})
	return false
}
