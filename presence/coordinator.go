package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/PageNow/presence-api/metrics"
	"github.com/PageNow/presence-api/store"
)

// FriendGraph resolves a user's accepted friends. Read-only; the core assumes
// no side effects.
type FriendGraph interface {
	FriendsOf(ctx context.Context, userID string) ([]string, error)
}

// History event types.
const (
	EventConnect         = "CONNECT"
	EventUpdatePresence  = "UPDATE_PRESENCE"
	EventCloseConnection = "CLOSE_CONNECTION"
)

// HistoryEvent is a best-effort telemetry record of a presence transition.
type HistoryEvent struct {
	UserID    string
	Type      string
	Timestamp time.Time
	Extra     map[string]string
}

// HistoryRecorder receives activity-history events. Implementations swallow
// and log their own failures; history is telemetry, not a correctness
// dependency.
type HistoryRecorder interface {
	Record(ctx context.Context, event HistoryEvent)
}

// Coordinator sequences the presence components for each inbound trigger:
// connect, heartbeat, explicit activity update, disconnect and the periodic
// expiry sweep. Per user the state machine is OFFLINE -> ONLINE -> OFFLINE,
// where "online" is solely defined by the presence of a liveness entry.
type Coordinator struct {
	store    store.Store
	registry *Registry
	activity *Activity
	liveness *Liveness
	notifier *Notifier
	graph    FriendGraph
	history  HistoryRecorder
	log      zerolog.Logger
	now      func() time.Time
}

func NewCoordinator(
	st store.Store,
	registry *Registry,
	activity *Activity,
	liveness *Liveness,
	notifier *Notifier,
	graph FriendGraph,
	history HistoryRecorder,
	log zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		store:    st,
		registry: registry,
		activity: activity,
		liveness: liveness,
		notifier: notifier,
		graph:    graph,
		history:  history,
		log:      log,
		now:      time.Now,
	}
}

// Connect binds the connection to the authenticated user. It establishes
// identity only: liveness is not touched and nothing is broadcast, so the user
// stays observably offline until their first heartbeat or update.
func (c *Coordinator) Connect(ctx context.Context, connectionID, userID string) error {
	if err := c.registry.Bind(ctx, connectionID, userID); err != nil {
		return err
	}
	c.history.Record(ctx, HistoryEvent{UserID: userID, Type: EventConnect, Timestamp: c.now()})
	return nil
}

// Heartbeat bumps the user's liveness timestamp. Cheap keep-alive: no
// broadcast.
func (c *Coordinator) Heartbeat(ctx context.Context, connectionID string) error {
	userID, ok, err := c.registry.ResolveUser(ctx, connectionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownConnection
	}
	if err := c.liveness.Touch(ctx, userID, c.now()); err != nil {
		return err
	}
	metrics.HeartbeatsTotal.Inc()
	return nil
}

// UpdateActivity records the user's current page and notifies their online
// friends. The liveness touch and the activity write land in one transaction,
// so no reader can see a user online without an activity record or vice versa.
// A friend-lookup failure aborts only the fan-out; the update itself stands.
func (c *Coordinator) UpdateActivity(ctx context.Context, connectionID string, rec ActivityRecord) error {
	userID, ok, err := c.registry.ResolveUser(ctx, connectionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownConnection
	}

	now := c.now()
	err = c.store.Atomically(ctx, func(tx store.Tx) {
		c.liveness.TouchTx(tx, userID, now)
		c.activity.RecordTx(tx, userID, rec)
	})
	if err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	metrics.ActivityUpdatesTotal.Inc()
	c.history.Record(ctx, HistoryEvent{
		UserID:    userID,
		Type:      EventUpdatePresence,
		Timestamp: now,
		Extra:     map[string]string{"url": rec.URL, "title": rec.Title},
	})

	// Re-read the sticky record so the fan-out reflects exactly what the
	// store now holds.
	latest, err := c.activity.LatestShared(ctx, userID)
	if err != nil {
		return err
	}
	friends, err := c.graph.FriendsOf(ctx, userID)
	if err != nil {
		return fmt.Errorf("friend lookup: %w", err)
	}
	return c.notifier.Notify(ctx, userID, friends, updateMessage(userID, rec, latest))
}

// Disconnect tears down the presence of the user behind the connection. A
// connection the registry no longer knows (already evicted) is a no-op.
func (c *Coordinator) Disconnect(ctx context.Context, connectionID string) error {
	userID, ok, err := c.registry.ResolveUser(ctx, connectionID)
	if err != nil {
		return err
	}
	if !ok {
		c.log.Debug().Str("connection_id", connectionID).Msg("disconnect for unknown connection, skipping")
		return nil
	}
	metrics.DisconnectsTotal.Inc()
	return c.evict(ctx, userID, connectionID, false)
}

// DisconnectUser tears down a user's presence by user id, for triggers that
// carry no connection id.
func (c *Coordinator) DisconnectUser(ctx context.Context, userID string) error {
	conns, err := c.registry.ResolveConnections(ctx, []string{userID})
	if err != nil {
		return err
	}
	metrics.DisconnectsTotal.Inc()
	return c.evict(ctx, userID, conns[userID], false)
}

// SweepExpired evicts every user whose liveness timestamp is older than
// timeout, performing the same per-user teardown and broadcast as an explicit
// disconnect. One fan-out per evicted user. A failed teardown is logged and
// does not stop the rest of the batch.
func (c *Coordinator) SweepExpired(ctx context.Context, now time.Time, timeout time.Duration) ([]string, error) {
	evicted, err := c.liveness.Sweep(ctx, now, timeout)
	if err != nil {
		return nil, err
	}
	for _, userID := range evicted {
		conns, err := c.registry.ResolveConnections(ctx, []string{userID})
		if err != nil {
			c.log.Error().Err(err).Str("user_id", userID).Msg("failed to resolve connection for evicted user")
			continue
		}
		if err := c.evict(ctx, userID, conns[userID], true); err != nil {
			c.log.Error().Err(err).Str("user_id", userID).Msg("failed to evict expired user")
			continue
		}
		metrics.EvictionsTotal.Inc()
	}
	return evicted, nil
}

// evict removes the user's registry and activity entries in one transaction,
// then broadcasts the offline event. When the liveness entry is removed here
// (explicit disconnect) a removal count of zero means the user was already
// offline and the broadcast is skipped, keeping disconnect idempotent.
func (c *Coordinator) evict(ctx context.Context, userID, connectionID string, livenessAlreadyRemoved bool) error {
	var removals *store.IntReply
	err := c.store.Atomically(ctx, func(tx store.Tx) {
		c.registry.UnbindTx(tx, connectionID, userID)
		c.activity.ClearTx(tx, userID)
		if !livenessAlreadyRemoved {
			removals = c.liveness.RemoveTx(tx, userID)
		}
	})
	if err != nil {
		return fmt.Errorf("presence eviction: %w", err)
	}
	if !livenessAlreadyRemoved && removals.Val() != 1 {
		return nil
	}

	c.history.Record(ctx, HistoryEvent{UserID: userID, Type: EventCloseConnection, Timestamp: c.now()})

	friends, err := c.graph.FriendsOf(ctx, userID)
	if err != nil {
		return fmt.Errorf("friend lookup: %w", err)
	}
	return c.notifier.Notify(ctx, userID, friends, offlineMessage(userID))
}

// Snapshot returns the current activity of the user's friends plus the user
// themselves, keyed by user id. Users with no record map to nil.
func (c *Coordinator) Snapshot(ctx context.Context, userID string) (map[string]*ActivityRecord, error) {
	friends, err := c.graph.FriendsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("friend lookup: %w", err)
	}
	return c.activity.GetMulti(ctx, append(friends, userID))
}

// Status reports "online" or "offline" for a single user.
func (c *Coordinator) Status(ctx context.Context, userID string) (string, error) {
	online, err := c.liveness.Online(ctx, userID)
	if err != nil {
		return "", err
	}
	if online {
		return "online", nil
	}
	return "offline", nil
}

// FriendLatestActivity returns the latest shared activity of targetID,
// provided a friendship exists between the caller and the target.
func (c *Coordinator) FriendLatestActivity(ctx context.Context, userID, targetID string) (ActivityRecord, error) {
	friends, err := c.graph.FriendsOf(ctx, userID)
	if err != nil {
		return ActivityRecord{}, fmt.Errorf("friend lookup: %w", err)
	}
	allowed := false
	for _, f := range friends {
		if f == targetID {
			allowed = true
			break
		}
	}
	if !allowed {
		return ActivityRecord{}, ErrNotFriends
	}
	return c.activity.LatestShared(ctx, targetID)
}
