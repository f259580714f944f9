package lock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a lock key only when it is still owned by the
// caller, so a holder can never drop a lease that expired and was
// re-granted to someone else in the meantime.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisTable is a Table backed by a keyed lease store, for
// deployments running more than one server process.  Each hold is a
// key "seatlock:<session>:<seat>" whose value is the holder ID and
// whose TTL is the hold window; Redis expiry replaces explicit
// sweeping.
type RedisTable struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTable constructs a Table on top of the given Redis client.
// A ttl of zero falls back to DefaultTTL.
func NewRedisTable(client *redis.Client, ttl time.Duration) *RedisTable {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisTable{client: client, ttl: ttl}
}

func seatLockKey(sessionID, seatID uint64) string {
	return fmt.Sprintf("seatlock:%d:%d", sessionID, seatID)
}

// TryAcquire implements Table via SET NX with a TTL.  When the key
// already exists for the same holder, the lease is refreshed instead
// of rejected, matching the in-memory table's re-acquire behaviour.
func (t *RedisTable) TryAcquire(ctx context.Context, sessionID, seatID, holderID uint64) (bool, error) {
	key := seatLockKey(sessionID, seatID)
	holder := strconv.FormatUint(holderID, 10)

	ok, err := t.client.SetNX(ctx, key, holder, t.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("seat lock acquire: %w", err)
	}
	if ok {
		return true, nil
	}

	current, err := t.client.Get(ctx, key).Result()
	if err == redis.Nil {
		// Lease expired between SETNX and GET; one retry.
		ok, err = t.client.SetNX(ctx, key, holder, t.ttl).Result()
		if err != nil {
			return false, fmt.Errorf("seat lock acquire: %w", err)
		}
		return ok, nil
	}
	if err != nil {
		return false, fmt.Errorf("seat lock acquire: %w", err)
	}
	if current != holder {
		return false, nil
	}
	// Same holder re-acquiring: refresh the lease.
	if err := t.client.Set(ctx, key, holder, t.ttl).Err(); err != nil {
		return false, fmt.Errorf("seat lock refresh: %w", err)
	}
	return true, nil
}

// Release implements Table with the compare-and-delete script.
func (t *RedisTable) Release(ctx context.Context, sessionID, seatID, holderID uint64) error {
	key := seatLockKey(sessionID, seatID)
	holder := strconv.FormatUint(holderID, 10)
	if err := releaseScript.Run(ctx, t.client, []string{key}, holder).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("seat lock release: %w", err)
	}
	return nil
}

// ReleaseAll implements Table by scanning the session's lock keys and
// compare-deleting the ones owned by the holder.  The keyspace per
// session is bounded by the venue size, so a SCAN is cheap.
func (t *RedisTable) ReleaseAll(ctx context.Context, sessionID, holderID uint64) error {
	pattern := fmt.Sprintf("seatlock:%d:*", sessionID)
	holder := strconv.FormatUint(holderID, 10)

	iter := t.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := releaseScript.Run(ctx, t.client, []string{key}, holder).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("seat lock release all: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("seat lock release all: %w", err)
	}
	return nil
}

// IsHeld implements Table with an EXISTS probe; expired leases are
// already gone by the time the probe runs.
func (t *RedisTable) IsHeld(ctx context.Context, sessionID, seatID uint64) (bool, error) {
	n, err := t.client.Exists(ctx, seatLockKey(sessionID, seatID)).Result()
	if err != nil {
		return false, fmt.Errorf("seat lock probe: %w", err)
	}
	return n > 0, nil
}

// SweepExpired is a no-op for the Redis table: key TTLs already evict
// stale holds server-side.
func (t *RedisTable) SweepExpired(context.Context) (int, error) {
	return 0, nil
}
