package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryValue struct {
	data      string
	expiresAt time.Time
}

// Memory is an in-process Store. It is the fallback when redis is unreachable
// and the backend used by tests. Expiry is checked lazily on read.
type Memory struct {
	mu     sync.RWMutex
	values map[string]memoryValue
	sets   map[string]map[string]struct{}
	lists  map[string][]string
	zsets  map[string]map[string]float64

	// now is swappable so tests can drive expiry.
	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]memoryValue),
		sets:   make(map[string]map[string]struct{}),
		lists:  make(map[string][]string),
		zsets:  make(map[string]map[string]float64),
		now:    time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", false, nil
	}
	if !v.expiresAt.IsZero() && m.now().After(v.expiresAt) {
		delete(m.values, key)
		return "", false, nil
	}
	return v.data, true, nil
}

func (m *Memory) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = memoryValue{data: value, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *Memory) SAdd(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

func (m *Memory) SRem(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.sets[key]; ok {
		delete(set, member)
	}
	return nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.sets[key]
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}
	sort.Strings(members)
	return members, nil
}

func (m *Memory) LPush(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append([]string{value}, m.lists[key]...)
	return nil
}

func (m *Memory) LTrim(_ context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	lo, hi := clampRange(start, stop, int64(len(list)))
	if lo > hi {
		m.lists[key] = nil
		return nil
	}
	m.lists[key] = list[lo : hi+1]
	return nil
}

func (m *Memory) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.lists[key]
	lo, hi := clampRange(start, stop, int64(len(list)))
	if lo > hi {
		return nil, nil
	}
	out := make([]string, hi+1-lo)
	copy(out, list[lo:hi+1])
	return out, nil
}

func (m *Memory) LLen(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.lists[key])), nil
}

func (m *Memory) ZAdd(_ context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	zset, ok := m.zsets[key]
	if !ok {
		zset = make(map[string]float64)
		m.zsets[key] = zset
	}
	zset[member] = score
	return nil
}

func (m *Memory) ZRevRangeWithScores(_ context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	m.mu.RLock()
	zset := m.zsets[key]
	members := make([]ScoredMember, 0, len(zset))
	for member, score := range zset {
		members = append(members, ScoredMember{Member: member, Score: score})
	}
	m.mu.RUnlock()

	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Member > members[j].Member
	})
	lo, hi := clampRange(start, stop, int64(len(members)))
	if lo > hi {
		return nil, nil
	}
	return members[lo : hi+1], nil
}

// clampRange resolves a redis-style inclusive [start, stop] range (negative
// indexes count from the end) against a collection of length n.
func clampRange(start, stop, n int64) (int64, int64) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	return start, stop
}
