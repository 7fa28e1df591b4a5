package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/PageNow/presence-api/store"
)

// Liveness tracks per-user last-activity timestamps in a single sorted set.
// Presence of a member means "online"; absence means "offline". The value is
// ephemeral and never persisted beyond eviction.
type Liveness struct {
	store store.Store
}

func NewLiveness(st store.Store) *Liveness {
	return &Liveness{store: st}
}

// TouchTx queues an insert-or-update of the user's timestamp. Heartbeat and
// update triggers pair this with the activity write in the same transaction so
// no reader can see one without the other.
func (l *Liveness) TouchTx(tx store.Tx, userID string, now time.Time) {
	tx.SortedSetAdd(keyStatus, now.UnixMilli(), userID)
}

// Touch updates the user's timestamp on its own.
func (l *Liveness) Touch(ctx context.Context, userID string, now time.Time) error {
	err := l.store.Atomically(ctx, func(tx store.Tx) {
		l.TouchTx(tx, userID, now)
	})
	if err != nil {
		return fmt.Errorf("liveness touch: %w", err)
	}
	return nil
}

// RemoveTx queues removal of the user's liveness entry. The reply carries the
// removal count: 0 means the user was already offline, which lets disconnect
// skip its broadcast instead of emitting a duplicate offline event.
func (l *Liveness) RemoveTx(tx store.Tx, userID string) *store.IntReply {
	return tx.SortedSetRemove(keyStatus, userID)
}

// Online reports whether the user currently has a liveness entry.
func (l *Liveness) Online(ctx context.Context, userID string) (bool, error) {
	_, ok, err := l.store.SortedSetScore(ctx, keyStatus, userID)
	if err != nil {
		return false, fmt.Errorf("liveness lookup: %w", err)
	}
	return ok, nil
}

// LastSeen returns the user's liveness timestamp, if present.
func (l *Liveness) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	millis, ok, err := l.store.SortedSetScore(ctx, keyStatus, userID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("liveness lookup: %w", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(millis), true, nil
}

// Sweep finds and removes, in one atomic range operation, every user whose
// timestamp is at or before now-timeout, returning the evicted ids. Scan and
// delete run in the same transaction, so a user touched concurrently cannot be
// evicted with a fresh timestamp.
func (l *Liveness) Sweep(ctx context.Context, now time.Time, timeout time.Duration) ([]string, error) {
	cutoff := now.Add(-timeout).UnixMilli()
	var expired *store.StringsReply
	err := l.store.Atomically(ctx, func(tx store.Tx) {
		expired = tx.SortedSetRangeByScoreMax(keyStatus, cutoff)
		tx.SortedSetRemoveByScoreMax(keyStatus, cutoff)
	})
	if err != nil {
		return nil, fmt.Errorf("liveness sweep: %w", err)
	}
	return expired.Val(), nil
}
