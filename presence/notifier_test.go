package presence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PageNow/presence-api/store"
)

// fakePusher records deliveries per connection and can be told to fail
// specific connections.
type fakePusher struct {
	mu       sync.Mutex
	sent     map[string][][]byte
	failWith map[string]error
}

func newFakePusher() *fakePusher {
	return &fakePusher{
		sent:     make(map[string][][]byte),
		failWith: make(map[string]error),
	}
}

func (p *fakePusher) Send(ctx context.Context, connectionID string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failWith[connectionID]; ok {
		return err
	}
	p.sent[connectionID] = append(p.sent[connectionID], payload)
	return nil
}

func (p *fakePusher) deliveries(connectionID string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent[connectionID]
}

func (p *fakePusher) messages(t *testing.T, connectionID string) []Message {
	t.Helper()
	var msgs []Message
	for _, payload := range p.deliveries(connectionID) {
		var m Message
		require.NoError(t, json.Unmarshal(payload, &m))
		msgs = append(msgs, m)
	}
	return msgs
}

func TestNotifier_DeliversToOnlineFriendsAndSelf(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	registry := NewRegistry(st)
	pusher := newFakePusher()
	n := NewNotifier(registry, pusher, zerolog.Nop())

	require.NoError(t, registry.Bind(ctx, "c1", "u1"))
	require.NoError(t, registry.Bind(ctx, "c2", "u2"))
	require.NoError(t, registry.Bind(ctx, "c3", "u3"))

	msg := Message{Type: MessageTypeUpdate, UserID: "u1", URL: "https://example.com"}
	require.NoError(t, n.Notify(ctx, "u1", []string{"u2", "u3"}, msg))

	for _, conn := range []string{"c1", "c2", "c3"} {
		msgs := pusher.messages(t, conn)
		require.Len(t, msgs, 1, "connection %s", conn)
		assert.Equal(t, msg, msgs[0])
	}
}

func TestNotifier_SkipsOfflineFriends(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	registry := NewRegistry(st)
	pusher := newFakePusher()
	n := NewNotifier(registry, pusher, zerolog.Nop())

	require.NoError(t, registry.Bind(ctx, "c1", "u1"))
	// u2 has no connection.

	require.NoError(t, n.Notify(ctx, "u1", []string{"u2"}, offlineMessage("u1")))

	assert.Len(t, pusher.deliveries("c1"), 1)
	assert.Len(t, pusher.sent, 1)
}

func TestNotifier_GoneConnectionIsUnbound(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	registry := NewRegistry(st)
	pusher := newFakePusher()
	pusher.failWith["c2"] = ErrConnectionGone
	n := NewNotifier(registry, pusher, zerolog.Nop())

	require.NoError(t, registry.Bind(ctx, "c1", "u1"))
	require.NoError(t, registry.Bind(ctx, "c2", "u2"))

	require.NoError(t, n.Notify(ctx, "u1", []string{"u2"}, offlineMessage("u1")))

	// The gone endpoint's mapping is dropped; the next resolve skips it.
	conns, err := registry.ResolveConnections(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u1": "c1"}, conns)
}

func TestNotifier_TransientFailureDoesNotUnbindOrFail(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	registry := NewRegistry(st)
	pusher := newFakePusher()
	pusher.failWith["c2"] = errors.New("write deadline exceeded")
	n := NewNotifier(registry, pusher, zerolog.Nop())

	require.NoError(t, registry.Bind(ctx, "c1", "u1"))
	require.NoError(t, registry.Bind(ctx, "c2", "u2"))
	require.NoError(t, registry.Bind(ctx, "c3", "u3"))

	require.NoError(t, n.Notify(ctx, "u1", []string{"u2", "u3"}, offlineMessage("u1")))

	// The failed recipient keeps its binding and the others still got the push.
	conns, err := registry.ResolveConnections(ctx, []string{"u2"})
	require.NoError(t, err)
	assert.Equal(t, "c2", conns["u2"])
	assert.Len(t, pusher.deliveries("c1"), 1)
	assert.Len(t, pusher.deliveries("c3"), 1)
}
