package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PageNow/presence-api/auth"
	"github.com/PageNow/presence-api/presence"
	"github.com/PageNow/presence-api/store"
)

type stubVerifier struct {
	users map[string]string // token -> user id
}

func (v *stubVerifier) Verify(ctx context.Context, token string) (auth.Identity, error) {
	if userID, ok := v.users[token]; ok {
		return auth.Identity{UserID: userID, Valid: true}, nil
	}
	return auth.Identity{}, auth.ErrInvalidToken
}

type stubGraph struct {
	friends map[string][]string
}

func (g *stubGraph) FriendsOf(ctx context.Context, userID string) ([]string, error) {
	return g.friends[userID], nil
}

type nopPusher struct{}

func (nopPusher) Send(ctx context.Context, connectionID string, payload []byte) error {
	return nil
}

type nopHistory struct{}

func (nopHistory) Record(ctx context.Context, event presence.HistoryEvent) {}

func newTestAPI(t *testing.T, friends map[string][]string) (*API, *presence.Coordinator) {
	t.Helper()
	st := store.NewMemoryStore()
	registry := presence.NewRegistry(st)
	activity := presence.NewActivity(st)
	liveness := presence.NewLiveness(st)
	notifier := presence.NewNotifier(registry, nopPusher{}, zerolog.Nop())
	coordinator := presence.NewCoordinator(st, registry, activity, liveness, notifier,
		&stubGraph{friends: friends}, nopHistory{}, zerolog.Nop())

	verifier := &stubVerifier{users: map[string]string{"token-u1": "u1"}}
	return NewAPI(coordinator, verifier, zerolog.Nop()), coordinator
}

func get(t *testing.T, api http.HandlerFunc, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api(rec, req)
	return rec
}

func TestAPI_RejectsMissingAndInvalidTokens(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	rec := get(t, api.HandleGetPresence, "/presence", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(t, api.HandleGetPresence, "/presence", "bogus")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_GetPresenceSnapshot(t *testing.T) {
	ctx := context.Background()
	api, coordinator := newTestAPI(t, map[string][]string{"u1": {"u2", "u3"}})

	require.NoError(t, coordinator.Connect(ctx, "c2", "u2"))
	require.NoError(t, coordinator.UpdateActivity(ctx, "c2",
		presence.ActivityRecord{URL: "https://a.example", Title: "x"}))

	rec := get(t, api.HandleGetPresence, "/presence", "token-u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var body struct {
		Presence map[string]*presence.ActivityRecord `json:"presence"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Presence, 3)
	require.NotNil(t, body.Presence["u2"])
	assert.Equal(t, "https://a.example", body.Presence["u2"].URL)
	assert.Nil(t, body.Presence["u3"])
	assert.Nil(t, body.Presence["u1"])
}

func TestAPI_GetUserPresence(t *testing.T) {
	ctx := context.Background()
	api, coordinator := newTestAPI(t, map[string][]string{"u1": {"u2"}})

	require.NoError(t, coordinator.Connect(ctx, "c2", "u2"))
	require.NoError(t, coordinator.UpdateActivity(ctx, "c2",
		presence.ActivityRecord{URL: "https://a.example", Title: "x"}))

	rec := get(t, api.HandleGetUserPresence, "/presence/users/u2", "token-u1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UserID         string                  `json:"userId"`
		LatestActivity presence.ActivityRecord `json:"latestActivity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "u2", body.UserID)
	assert.Equal(t, "https://a.example", body.LatestActivity.URL)
}

func TestAPI_GetUserPresenceRejectsNonFriends(t *testing.T) {
	api, _ := newTestAPI(t, map[string][]string{"u1": {"u2"}})

	rec := get(t, api.HandleGetUserPresence, "/presence/users/u9", "token-u1")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_GetUserPresenceMissingID(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	rec := get(t, api.HandleGetUserPresence, "/presence/users/", "token-u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_GetStatus(t *testing.T) {
	ctx := context.Background()
	api, coordinator := newTestAPI(t, nil)

	rec := get(t, api.HandleGetStatus, "/status/u2", "token-u1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "offline", body["status"])

	require.NoError(t, coordinator.Connect(ctx, "c2", "u2"))
	require.NoError(t, coordinator.Heartbeat(ctx, "c2"))

	rec = get(t, api.HandleGetStatus, "/status/u2", "token-u1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "online", body["status"])
}
