package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements Store on in-process maps guarded by one mutex. It
// exists for tests and single-node development; the lock spans an entire
// transaction, which gives the same all-or-nothing visibility as MULTI/EXEC.
type MemoryStore struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	zsets  map[string]map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hashes: make(map[string]map[string]string),
		zsets:  make(map[string]map[string]int64),
	}
}

func (s *MemoryStore) HashSet(ctx context.Context, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashSet(key, field, value)
	return nil
}

func (s *MemoryStore) HashGet(ctx context.Context, key, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.hashes[key][field]
	return val, ok, nil
}

func (s *MemoryStore) HashMultiGet(ctx context.Context, key string, fields []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make(map[string]string, len(fields))
	for _, f := range fields {
		if val, ok := s.hashes[key][f]; ok {
			result[f] = val
		}
	}
	return result, nil
}

func (s *MemoryStore) HashDelete(ctx context.Context, key string, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashDelete(key, fields...)
	return nil
}

func (s *MemoryStore) SortedSetScore(ctx context.Context, key, member string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.zsets[key][member]
	return score, ok, nil
}

func (s *MemoryStore) Atomically(ctx context.Context, fn func(tx Tx)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Commands execute eagerly; holding the lock across fn makes the whole
	// batch atomic with respect to every other store operation.
	fn(&memoryTx{store: s})
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) hashSet(key, field, value string) {
	if s.hashes[key] == nil {
		s.hashes[key] = make(map[string]string)
	}
	s.hashes[key][field] = value
}

func (s *MemoryStore) hashDelete(key string, fields ...string) {
	h, ok := s.hashes[key]
	if !ok {
		return
	}
	for _, f := range fields {
		delete(h, f)
	}
	if len(h) == 0 {
		delete(s.hashes, key)
	}
}

type memoryTx struct {
	store *MemoryStore
}

func (t *memoryTx) HashSet(key, field, value string) {
	t.store.hashSet(key, field, value)
}

func (t *memoryTx) HashDelete(key string, fields ...string) {
	t.store.hashDelete(key, fields...)
}

func (t *memoryTx) SortedSetAdd(key string, score int64, member string) {
	if t.store.zsets[key] == nil {
		t.store.zsets[key] = make(map[string]int64)
	}
	t.store.zsets[key][member] = score
}

func (t *memoryTx) SortedSetRemove(key string, members ...string) *IntReply {
	reply := &IntReply{}
	set, ok := t.store.zsets[key]
	if !ok {
		return reply
	}
	for _, m := range members {
		if _, present := set[m]; present {
			delete(set, m)
			reply.val++
		}
	}
	if len(set) == 0 {
		delete(t.store.zsets, key)
	}
	return reply
}

func (t *memoryTx) SortedSetRangeByScoreMax(key string, max int64) *StringsReply {
	reply := &StringsReply{}
	set := t.store.zsets[key]
	type entry struct {
		member string
		score  int64
	}
	var matched []entry
	for m, score := range set {
		if score <= max {
			matched = append(matched, entry{m, score})
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score < matched[j].score
		}
		return matched[i].member < matched[j].member
	})
	for _, e := range matched {
		reply.val = append(reply.val, e.member)
	}
	return reply
}

func (t *memoryTx) SortedSetRemoveByScoreMax(key string, max int64) {
	set, ok := t.store.zsets[key]
	if !ok {
		return
	}
	for m, score := range set {
		if score <= max {
			delete(set, m)
		}
	}
	if len(set) == 0 {
		delete(t.store.zsets, key)
	}
}
