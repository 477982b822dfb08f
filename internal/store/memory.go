package store

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

// Memory is an in-process Store for tests and single-node runs.
// TTLs are honored lazily: expired keys disappear on next access.
type Memory struct {
	mu      sync.Mutex
	lists   map[string][]string
	sets    map[string]map[string]struct{}
	hashes  map[string]map[string]string
	strings map[string]string
	expiry  map[string]time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		lists:   make(map[string][]string),
		sets:    make(map[string]map[string]struct{}),
		hashes:  make(map[string]map[string]string),
		strings: make(map[string]string),
		expiry:  make(map[string]time.Time),
	}
}

// reap drops the key's value if its TTL has passed. Callers hold mu.
func (m *Memory) reap(key string) {
	deadline, ok := m.expiry[key]
	if !ok || time.Now().Before(deadline) {
		return
	}
	delete(m.expiry, key)
	delete(m.lists, key)
	delete(m.sets, key)
	delete(m.hashes, key)
	delete(m.strings, key)
}

func (m *Memory) PushHead(_ context.Context, list, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(list)
	m.lists[list] = append([]string{value}, m.lists[list]...)
	return nil
}

func (m *Memory) PopHead(_ context.Context, list string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(list)
	vals := m.lists[list]
	if len(vals) == 0 {
		return "", types.ErrQueueEmpty
	}
	m.lists[list] = vals[1:]
	return vals[0], nil
}

func (m *Memory) PopHeadBlocking(ctx context.Context, list string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		if val, err := m.PopHead(ctx, list); err == nil {
			return val, nil
		}
		if time.Now().After(deadline) {
			return "", types.ErrQueueEmpty
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (m *Memory) QueueLen(_ context.Context, list string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(list)
	return int64(len(m.lists[list])), nil
}

func (m *Memory) TrimmedPush(_ context.Context, list, value string, maxLen int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(list)
	vals := append([]string{value}, m.lists[list]...)
	if int64(len(vals)) > maxLen {
		vals = vals[:maxLen]
	}
	m.lists[list] = vals
	return nil
}

func (m *Memory) Range(_ context.Context, list string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(list)
	vals := m.lists[list]
	n := int64(len(vals))
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
	if start > stop || n == 0 {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, vals[start:stop+1])
	return out, nil
}

func (m *Memory) SetAdd(_ context.Context, set, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(set)
	s, ok := m.sets[set]
	if !ok {
		s = make(map[string]struct{})
		m.sets[set] = s
	}
	s[member] = struct{}{}
	return nil
}

func (m *Memory) SetContains(_ context.Context, set, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(set)
	_, ok := m.sets[set][member]
	return ok, nil
}

func (m *Memory) SetSize(_ context.Context, set string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(set)
	return int64(len(m.sets[set])), nil
}

func (m *Memory) HashSet(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (m *Memory) HashGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiry[key] = time.Now().Add(ttl)
	return nil
}

func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	n, _ := strconv.ParseInt(m.strings[key], 10, 64)
	n++
	m.strings[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *Memory) GetInt(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	n, _ := strconv.ParseInt(m.strings[key], 10, 64)
	return n, nil
}

func (m *Memory) SetInt(ctx context.Context, key string, value int64) error {
	return m.Set(ctx, key, strconv.FormatInt(value, 10))
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	return m.strings[key], nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = value
	delete(m.expiry, key)
	return nil
}

func (m *Memory) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []string
	for k := range m.lists {
		all = append(all, k)
	}
	for k := range m.sets {
		all = append(all, k)
	}
	for k := range m.hashes {
		all = append(all, k)
	}
	for k := range m.strings {
		all = append(all, k)
	}

	var out []string
	seen := make(map[string]struct{})
	for _, k := range all {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		m.reap(k)
		if !m.exists(k) {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.lists, k)
		delete(m.sets, k)
		delete(m.hashes, k)
		delete(m.strings, k)
		delete(m.expiry, k)
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

// exists reports whether the key currently holds any value. Callers hold mu.
func (m *Memory) exists(key string) bool {
	if _, ok := m.lists[key]; ok {
		return true
	}
	if _, ok := m.sets[key]; ok {
		return true
	}
	if _, ok := m.hashes[key]; ok {
		return true
	}
	_, ok := m.strings[key]
	return ok
}
