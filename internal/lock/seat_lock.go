// Package lock implements the seat lock table: short-lived exclusive
// holds on (session template, seat) pairs granted to a user for the
// duration of a booking attempt.  The table is a contention filter in
// front of the transactional inventory and booking checks, not the
// system of record; the authoritative "is this seat booked" fact is
// always the persisted booking rows.
package lock

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultTTL is how long a hold stays live without being released.
// Stale holds are evicted on the next acquire attempt or by
// SweepExpired.
const DefaultTTL = 5 * time.Minute

// Table grants and releases seat holds.  Implementations must be
// safe for concurrent use.  For two concurrent TryAcquire calls on
// the same seat, exactly one may observe true per live-hold window.
type Table interface {
	// TryAcquire attempts to take an exclusive hold on a seat for
	// holderID.  It returns false when a live hold by a different
	// holder exists.  An expired hold is evicted and re-granted; a
	// holder re-acquiring its own seat refreshes the hold.
	TryAcquire(ctx context.Context, sessionID, seatID, holderID uint64) (bool, error)

	// Release drops the hold on one seat.  Only the current holder
	// may release; a mismatched release is a logged no-op so that no
	// user can evict another user's in-flight attempt.
	Release(ctx context.Context, sessionID, seatID, holderID uint64) error

	// ReleaseAll drops every hold the holder has within a session.
	ReleaseAll(ctx context.Context, sessionID, holderID uint64) error

	// IsHeld reports whether a live hold exists on the seat,
	// regardless of holder.  Used to render seat maps.
	IsHeld(ctx context.Context, sessionID, seatID uint64) (bool, error)

	// SweepExpired evicts holds past their TTL and returns how many
	// were removed.
	SweepExpired(ctx context.Context) (int, error)
}

type seatKey struct {
	sessionID uint64
	seatID    uint64
}

type seatHold struct {
	holderID   uint64
	acquiredAt time.Time
}

// MemoryTable is the process-local Table used when the service runs
// as a single instance.  It holds the entire lock state in one map
// guarded by a mutex; hold counts are bounded by the venue size, so
// no sharding is needed.
type MemoryTable struct {
	mu    sync.Mutex
	holds map[seatKey]seatHold
	ttl   time.Duration
	now   func() time.Time // overridable in tests
}

// NewMemoryTable constructs an empty in-memory lock table.  A ttl of
// zero falls back to DefaultTTL.
func NewMemoryTable(ttl time.Duration) *MemoryTable {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryTable{
		holds: make(map[seatKey]seatHold),
		ttl:   ttl,
		now:   time.Now,
	}
}

// TryAcquire implements Table.  The whole check-evict-write sequence
// runs under the table mutex, so at most one caller wins a contested
// seat.
func (t *MemoryTable) TryAcquire(_ context.Context, sessionID, seatID, holderID uint64) (bool, error) {
	key := seatKey{sessionID: sessionID, seatID: seatID}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.holds[key]; ok {
		if !t.expired(existing, now) {
			if existing.holderID != holderID {
				return false, nil
			}
			// Same holder: fall through and refresh the hold.
		} else {
			log.Printf("seat-lock: evicting expired hold session=%d seat=%d holder=%d", sessionID, seatID, existing.holderID)
			delete(t.holds, key)
		}
	}

	t.holds[key] = seatHold{holderID: holderID, acquiredAt: now}
	return true, nil
}

// Release implements Table.
func (t *MemoryTable) Release(_ context.Context, sessionID, seatID, holderID uint64) error {
	key := seatKey{sessionID: sessionID, seatID: seatID}

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.holds[key]
	if !ok || existing.holderID != holderID {
		log.Printf("seat-lock: release by non-holder ignored session=%d seat=%d holder=%d", sessionID, seatID, holderID)
		return nil
	}
	delete(t.holds, key)
	return nil
}

// ReleaseAll implements Table.
func (t *MemoryTable) ReleaseAll(_ context.Context, sessionID, holderID uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, h := range t.holds {
		if key.sessionID == sessionID && h.holderID == holderID {
			delete(t.holds, key)
		}
	}
	return nil
}

// IsHeld implements Table.
func (t *MemoryTable) IsHeld(_ context.Context, sessionID, seatID uint64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.holds[seatKey{sessionID: sessionID, seatID: seatID}]
	return ok && !t.expired(h, t.now()), nil
}

// SweepExpired implements Table.
func (t *MemoryTable) SweepExpired(_ context.Context) (int, error) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, h := range t.holds {
		if t.expired(h, now) {
			delete(t.holds, key)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("seat-lock: swept %d expired holds", removed)
	}
	return removed, nil
}

// Len reports the number of live entries, expired or not.  Exposed
// for monitoring.
func (t *MemoryTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.holds)
}

func (t *MemoryTable) expired(h seatHold, now time.Time) bool {
	return now.Sub(h.acquiredAt) >= t.ttl
}
