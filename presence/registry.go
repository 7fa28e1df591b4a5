package presence

import (
	"context"
	"fmt"

	"github.com/PageNow/presence-api/store"
)

// Registry is the bidirectional mapping between transport connection ids and
// user ids. It reflects best-effort knowledge of liveness: lookups never fail
// on missing entries, they just report absence.
//
// Invariant: at most one live connection per user. A reconnect overwrites the
// previous mapping (last write wins) and both directions agree after every
// write.
type Registry struct {
	store store.Store
}

func NewRegistry(st store.Store) *Registry {
	return &Registry{store: st}
}

// Bind writes both directional mappings atomically. If the user already had a
// different connection, its stale reverse entry is dropped in the same
// transaction so the two directions cannot disagree.
func (r *Registry) Bind(ctx context.Context, connectionID, userID string) error {
	oldConn, hadOld, err := r.store.HashGet(ctx, keyUserConnection, userID)
	if err != nil {
		return fmt.Errorf("registry bind lookup: %w", err)
	}
	err = r.store.Atomically(ctx, func(tx store.Tx) {
		if hadOld && oldConn != connectionID {
			tx.HashDelete(keyConnectionUser, oldConn)
		}
		tx.HashSet(keyUserConnection, userID, connectionID)
		tx.HashSet(keyConnectionUser, connectionID, userID)
	})
	if err != nil {
		return fmt.Errorf("registry bind: %w", err)
	}
	return nil
}

// ResolveUser maps a connection id to its user. The second return is false for
// unknown connections; callers treat that as stale/unauthenticated, not as an
// error.
func (r *Registry) ResolveUser(ctx context.Context, connectionID string) (string, bool, error) {
	userID, ok, err := r.store.HashGet(ctx, keyConnectionUser, connectionID)
	if err != nil {
		return "", false, fmt.Errorf("registry resolve user: %w", err)
	}
	return userID, ok, nil
}

// ResolveConnections maps users to their live connection ids. Users without a
// connection are simply absent from the result.
func (r *Registry) ResolveConnections(ctx context.Context, userIDs []string) (map[string]string, error) {
	conns, err := r.store.HashMultiGet(ctx, keyUserConnection, userIDs)
	if err != nil {
		return nil, fmt.Errorf("registry resolve connections: %w", err)
	}
	return conns, nil
}

// Unbind removes both directional entries. Removing an absent mapping is a
// no-op, which makes cleanup paths idempotent.
func (r *Registry) Unbind(ctx context.Context, connectionID, userID string) error {
	err := r.store.Atomically(ctx, func(tx store.Tx) {
		r.UnbindTx(tx, connectionID, userID)
	})
	if err != nil {
		return fmt.Errorf("registry unbind: %w", err)
	}
	return nil
}

// UnbindTx queues the unbind onto an existing transaction.
func (r *Registry) UnbindTx(tx store.Tx, connectionID, userID string) {
	if userID != "" {
		tx.HashDelete(keyUserConnection, userID)
	}
	if connectionID != "" {
		tx.HashDelete(keyConnectionUser, connectionID)
	}
}
