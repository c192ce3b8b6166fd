// Package memory holds in-process implementations of the store and config
// source contracts. They back the CLI's local mode and the unit tests.
package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value  string
	expire time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expire.IsZero() && !now.Before(e.expire)
}

// WireStore implements ports.WireStore with two maps guarded by one RWMutex.
type WireStore struct {
	mu     sync.RWMutex
	data   map[string]entry
	hashes map[string]map[string]string
	closed bool
	now    func() time.Time
}

func NewWireStore() *WireStore {
	return &WireStore{
		data:   make(map[string]entry),
		hashes: make(map[string]map[string]string),
		now:    time.Now,
	}
}

func (m *WireStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := m.check(ctx); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if e.expired(m.now()) {
		m.mu.Lock()
		// Re-check under the write lock.
		if e, ok = m.data[key]; ok && e.expired(m.now()) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *WireStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := m.check(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry{value: value, expire: m.expiry(ttl)}
	return nil
}

func (m *WireStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := m.check(ctx); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	deleted := false
	if e, ok := m.data[key]; ok {
		deleted = !e.expired(now)
		delete(m.data, key)
	}
	if _, ok := m.hashes[key]; ok {
		deleted = true
		delete(m.hashes, key)
	}
	return deleted, nil
}

func (m *WireStore) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	out := make([]*string, len(keys))
	for i, k := range keys {
		if e, ok := m.data[k]; ok && !e.expired(now) {
			v := e.value
			out[i] = &v
		}
	}
	return out, nil
}

func (m *WireStore) MSet(ctx context.Context, pairs map[string]string) error {
	if err := m.check(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range pairs {
		m.data[k] = entry{value: v}
	}
	return nil
}

func (m *WireStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (m *WireStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := m.check(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		m.hashes[key] = h
	}
	for f, v := range fields {
		h[f] = v
	}
	return nil
}

func (m *WireStore) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	if err := m.check(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hashes[key]
	var n int64
	for _, f := range fields {
		if _, ok := h[f]; ok {
			delete(h, f)
			n++
		}
	}
	if h != nil && len(h) == 0 {
		delete(m.hashes, key)
	}
	return n, nil
}

func (m *WireStore) HLen(ctx context.Context, key string) (int64, error) {
	if err := m.check(ctx); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.hashes[key])), nil
}

func (m *WireStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *WireStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *WireStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}
