package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/PageNow/presence-api/metrics"
)

// Pusher delivers a payload to one transport connection. Implementations
// return ErrConnectionGone when the endpoint is permanently unreachable and
// apply their own per-send timeout budget.
type Pusher interface {
	Send(ctx context.Context, connectionID string, payload []byte) error
}

// Notifier fans a presence message out to a user's online friends. Delivery is
// best-effort and at-most-once per recipient per call: a slow or failed
// recipient never blocks or fails the others, and no ordering is guaranteed
// across recipients. Gone endpoints are unbound from the registry so the next
// fan-out skips them.
type Notifier struct {
	registry *Registry
	pusher   Pusher
	log      zerolog.Logger
}

func NewNotifier(registry *Registry, pusher Pusher, log zerolog.Logger) *Notifier {
	return &Notifier{registry: registry, pusher: pusher, log: log}
}

// Notify delivers msg to every live connection among friendIDs plus the
// originating user's own connection, so the user's other UI surfaces stay in
// sync. Recipients are pushed concurrently; the call returns once every
// delivery attempt has finished.
func (n *Notifier) Notify(ctx context.Context, userID string, friendIDs []string, msg Message) error {
	targets := make([]string, 0, len(friendIDs)+1)
	targets = append(targets, friendIDs...)
	targets = append(targets, userID)

	conns, err := n.registry.ResolveConnections(ctx, targets)
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notifier encode: %w", err)
	}

	var wg sync.WaitGroup
	for target, connectionID := range conns {
		wg.Add(1)
		go func(target, connectionID string) {
			defer wg.Done()
			n.deliver(ctx, target, connectionID, payload)
		}(target, connectionID)
	}
	wg.Wait()
	return nil
}

func (n *Notifier) deliver(ctx context.Context, userID, connectionID string, payload []byte) {
	err := n.pusher.Send(ctx, connectionID, payload)
	switch {
	case errors.Is(err, ErrConnectionGone):
		// Self-healing: the endpoint is permanently unreachable, so drop the
		// stale mapping and move on.
		n.log.Info().
			Str("user_id", userID).
			Str("connection_id", connectionID).
			Msg("found stale connection, unbinding")
		metrics.StaleConnectionsCleaned.Inc()
		if uerr := n.registry.Unbind(context.Background(), connectionID, userID); uerr != nil {
			n.log.Error().Err(uerr).
				Str("connection_id", connectionID).
				Msg("failed to unbind stale connection")
		}
	case err != nil:
		n.log.Warn().Err(err).
			Str("user_id", userID).
			Str("connection_id", connectionID).
			Msg("presence push failed")
		metrics.NotificationsSent.WithLabelValues("error").Inc()
	default:
		metrics.NotificationsSent.WithLabelValues("ok").Inc()
	}
}
