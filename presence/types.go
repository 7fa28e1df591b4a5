package presence

import "errors"

// Store key layout. Names are shared with older deployments, so changing them
// is a breaking migration.
const (
	keyUserConnection = "presence_user_connection"
	keyConnectionUser = "presence_connection_user"
	keyPage           = "presence_page"
	keyLatestPage     = "presence_latest_page"
	keyStatus         = "presence_status"
)

var (
	// ErrUnknownConnection marks an operation arriving on a connection the
	// registry has no record of. Callers treat it as stale or unauthenticated
	// and abort without side effects.
	ErrUnknownConnection = errors.New("presence: unknown connection")

	// ErrConnectionGone is returned by a Pusher when the target endpoint is
	// permanently unreachable. It is the only delivery failure that triggers
	// registry cleanup.
	ErrConnectionGone = errors.New("presence: connection gone")

	// ErrNotFriends rejects a presence query for a user the caller has no
	// accepted friendship with.
	ErrNotFriends = errors.New("presence: users are not friends")
)

// ActivityRecord is a user's current page. The zero record is the "hidden"
// sentinel: online but not sharing what they are doing.
type ActivityRecord struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Hidden reports whether the record is the hidden sentinel.
func (r ActivityRecord) Hidden() bool { return r.URL == "" }

// Push message types delivered to clients.
const (
	MessageTypeUpdate  = "update-presence"
	MessageTypeOffline = "presence-timeout"
)

// Message is the payload fanned out to a user's online friends (and the user's
// own connection). Latest* carry the last non-hidden activity so clients can
// render both "doing now" and "last visible" without a second round trip.
type Message struct {
	Type         string `json:"type"`
	UserID       string `json:"userId"`
	URL          string `json:"url,omitempty"`
	Title        string `json:"title,omitempty"`
	Domain       string `json:"domain,omitempty"`
	LatestURL    string `json:"latestUrl,omitempty"`
	LatestTitle  string `json:"latestTitle,omitempty"`
	LatestDomain string `json:"latestDomain,omitempty"`
}

func updateMessage(userID string, current, latest ActivityRecord) Message {
	return Message{
		Type:         MessageTypeUpdate,
		UserID:       userID,
		URL:          current.URL,
		Title:        current.Title,
		Domain:       DeriveDomain(current.URL),
		LatestURL:    latest.URL,
		LatestTitle:  latest.Title,
		LatestDomain: DeriveDomain(latest.URL),
	}
}

func offlineMessage(userID string) Message {
	return Message{Type: MessageTypeOffline, UserID: userID}
}
