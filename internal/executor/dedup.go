package executor

import (
	"sync"
	"time"
)

// dedup remembers recently executed request IDs so a replayed plan (e.g. the
// same opportunity detected twice before the first execution settled) is not
// submitted again.
type dedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

func newDedup(ttl time.Duration) *dedup {
	return &dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// isDuplicate records id and reports whether it was already seen within the
// TTL.
func (d *dedup) isDuplicate(id string) bool {
	if id == "" {
		return false
	}
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if at, ok := d.seen[id]; ok && now.Sub(at) < d.ttl {
		return true
	}
	if len(d.seen) >= dedupSweepSize {
		d.sweepLocked(now)
	}
	d.seen[id] = now
	return false
}

// dedupSweepSize bounds the map: once reached, expired entries are swept
// before the next insert.
const dedupSweepSize = 4096

func (d *dedup) sweepLocked(now time.Time) {
	for id, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, id)
		}
	}
}
