package presence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PageNow/presence-api/store"
)

// Activity stores each user's current page and the sticky "latest shared"
// page. Records are JSON-encoded into two hashes so they can be read back in
// one multi-get per friend set.
type Activity struct {
	store store.Store
}

func NewActivity(st store.Store) *Activity {
	return &Activity{store: st}
}

// RecordTx queues the activity write onto a transaction. The current record is
// always replaced; the latest-shared record is only replaced by a non-hidden
// one. Hiding must never erase what friends can still see.
func (a *Activity) RecordTx(tx store.Tx, userID string, rec ActivityRecord) {
	data := mustEncodeRecord(rec)
	tx.HashSet(keyPage, userID, data)
	if !rec.Hidden() {
		tx.HashSet(keyLatestPage, userID, data)
	}
}

// ClearTx removes both records. Called only on full presence eviction
// (disconnect or timeout), never on a mere hide.
func (a *Activity) ClearTx(tx store.Tx, userID string) {
	tx.HashDelete(keyPage, userID)
	tx.HashDelete(keyLatestPage, userID)
}

// Get returns the user's current activity record, reporting absence via the
// second return.
func (a *Activity) Get(ctx context.Context, userID string) (ActivityRecord, bool, error) {
	return a.get(ctx, keyPage, userID)
}

// LatestShared returns the last non-hidden record, or the empty record if the
// user never shared anything.
func (a *Activity) LatestShared(ctx context.Context, userID string) (ActivityRecord, error) {
	rec, _, err := a.get(ctx, keyLatestPage, userID)
	return rec, err
}

// GetMulti returns the current records for several users at once. Users with
// no record are mapped to nil.
func (a *Activity) GetMulti(ctx context.Context, userIDs []string) (map[string]*ActivityRecord, error) {
	raw, err := a.store.HashMultiGet(ctx, keyPage, userIDs)
	if err != nil {
		return nil, fmt.Errorf("activity multi-get: %w", err)
	}
	result := make(map[string]*ActivityRecord, len(userIDs))
	for _, userID := range userIDs {
		data, ok := raw[userID]
		if !ok {
			result[userID] = nil
			continue
		}
		var rec ActivityRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("activity decode for %s: %w", userID, err)
		}
		result[userID] = &rec
	}
	return result, nil
}

func (a *Activity) get(ctx context.Context, key, userID string) (ActivityRecord, bool, error) {
	data, ok, err := a.store.HashGet(ctx, key, userID)
	if err != nil {
		return ActivityRecord{}, false, fmt.Errorf("activity get: %w", err)
	}
	if !ok {
		return ActivityRecord{}, false, nil
	}
	var rec ActivityRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return ActivityRecord{}, false, fmt.Errorf("activity decode: %w", err)
	}
	return rec, true, nil
}

func mustEncodeRecord(rec ActivityRecord) string {
	// A struct of two strings cannot fail to marshal.
	data, _ := json.Marshal(rec)
	return string(data)
}
