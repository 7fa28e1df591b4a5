package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/PageNow/presence-api/auth"
	"github.com/PageNow/presence-api/metrics"
	"github.com/PageNow/presence-api/presence"
)

// API serves the read-only presence queries over REST.
type API struct {
	coordinator *presence.Coordinator
	verifier    auth.Verifier
	log         zerolog.Logger
}

func NewAPI(coordinator *presence.Coordinator, verifier auth.Verifier, log zerolog.Logger) *API {
	return &API{coordinator: coordinator, verifier: verifier, log: log}
}

// HandleGetPresence returns the current activity of the caller's friends plus
// the caller, keyed by user id. Friends with no record map to null.
func (a *API) HandleGetPresence(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	snapshot, err := a.coordinator.Snapshot(r.Context(), userID)
	if err != nil {
		a.log.Error().Err(err).Str("user_id", userID).Msg("presence snapshot failed")
		writeError(w, http.StatusInternalServerError, "presence lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"presence": snapshot})
}

// HandleGetUserPresence returns the latest shared activity of one friend.
func (a *API) HandleGetUserPresence(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	targetID := strings.TrimPrefix(r.URL.Path, "/presence/users/")
	if targetID == "" || strings.Contains(targetID, "/") {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	rec, err := a.coordinator.FriendLatestActivity(r.Context(), userID, targetID)
	if errors.Is(err, presence.ErrNotFriends) {
		writeError(w, http.StatusForbidden, "not friends with requested user")
		return
	}
	if err != nil {
		a.log.Error().Err(err).Str("user_id", userID).Str("target_id", targetID).Msg("user presence lookup failed")
		writeError(w, http.StatusInternalServerError, "presence lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"userId": targetID, "latestActivity": rec})
}

// HandleGetStatus reports online/offline for a single user.
func (a *API) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authenticate(w, r); !ok {
		return
	}
	targetID := strings.TrimPrefix(r.URL.Path, "/status/")
	if targetID == "" || strings.Contains(targetID, "/") {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	status, err := a.coordinator.Status(r.Context(), targetID)
	if err != nil {
		a.log.Error().Err(err).Str("target_id", targetID).Msg("status lookup failed")
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"userId": targetID, "status": status})
}

func (a *API) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		metrics.AuthFailures.WithLabelValues("missing_token").Inc()
		writeError(w, http.StatusUnauthorized, "missing authorization header")
		return "", false
	}
	identity, err := a.verifier.Verify(r.Context(), token)
	if err != nil || !identity.Valid {
		metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
		writeError(w, http.StatusUnauthorized, "invalid token")
		return "", false
	}
	metrics.AuthSuccess.Inc()
	return identity.UserID, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": detail})
}
