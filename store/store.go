package store

import (
	"context"
)

// Store is the shared presence state store. It is the single mutable resource
// the service touches: hashes for the connection registry and activity
// records, plus a sorted set for liveness timestamps. Any backend offering
// hash get/set/delete, a score-ordered set with range deletion, and
// multi-command atomic execution satisfies this contract.
type Store interface {
	HashSet(ctx context.Context, key, field, value string) error
	// HashGet reports whether the field exists; a missing field is not an error.
	HashGet(ctx context.Context, key, field string) (string, bool, error)
	// HashMultiGet returns only the fields that exist; missing fields are
	// simply absent from the result.
	HashMultiGet(ctx context.Context, key string, fields []string) (map[string]string, error)
	HashDelete(ctx context.Context, key string, fields ...string) error
	// SortedSetScore returns the member's score and whether the member is present.
	SortedSetScore(ctx context.Context, key, member string) (int64, bool, error)
	// Atomically runs fn against a transaction. Commands queued on the Tx are
	// applied all-or-nothing; no concurrent reader can observe a partially
	// applied transaction. Replies handed out by the Tx are populated only
	// after Atomically returns nil.
	Atomically(ctx context.Context, fn func(tx Tx)) error
	Close() error
}

// Tx queues commands for atomic execution, mirroring the MULTI/EXEC idiom.
// Reads queued on a Tx yield deferred replies resolved when the transaction
// commits.
type Tx interface {
	HashSet(key, field, value string)
	HashDelete(key string, fields ...string)
	SortedSetAdd(key string, score int64, member string)
	// SortedSetRemove removes members and reports how many were actually present.
	SortedSetRemove(key string, members ...string) *IntReply
	// SortedSetRangeByScoreMax queues a read of every member with score <= max,
	// ordered by ascending score.
	SortedSetRangeByScoreMax(key string, max int64) *StringsReply
	// SortedSetRemoveByScoreMax deletes every member with score <= max.
	SortedSetRemoveByScoreMax(key string, max int64)
}

// IntReply is a deferred integer result of a transactional command.
type IntReply struct {
	val int64
}

// Val returns the resolved value. Valid only after the owning transaction
// committed successfully.
func (r *IntReply) Val() int64 { return r.val }

// StringsReply is a deferred string-slice result of a transactional command.
type StringsReply struct {
	val []string
}

// Val returns the resolved value. Valid only after the owning transaction
// committed successfully.
func (r *StringsReply) Val() []string { return r.val }
