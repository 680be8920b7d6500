// Package local is an in-process fallback for deployments without
// Redis. It implements the same Cache surface with plain maps, so the
// services behave identically in tests and single-node setups.
package local

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a key or ZSet member does not exist.
var ErrNotFound = errors.New("cache: key not found")

// Config holds Memory cache settings.
type Config struct {
	GCInterval time.Duration
}

type item struct {
	value    string
	deadline time.Time // zero means no expiry
}

func (it item) live(now time.Time) bool {
	return it.deadline.IsZero() || now.Before(it.deadline)
}

// Memory is an in-process cache. Expired keys are dropped lazily on
// access and swept by a background goroutine.
type Memory struct {
	mu    sync.RWMutex
	kv    map[string]item
	zsets map[string]map[string]float64

	gcInterval time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewCache creates a Memory cache and starts its sweep goroutine.
func NewCache(cfg Config) (*Memory, error) {
	interval := cfg.GCInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	m := &Memory{
		kv:         make(map[string]item),
		zsets:      make(map[string]map[string]float64),
		gcInterval: interval,
		stop:       make(chan struct{}),
	}
	go m.sweep()
	return m, nil
}

// Close stops the sweep goroutine. Safe to call more than once.
func (m *Memory) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Memory) sweep() {
	ticker := time.NewTicker(m.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for k, it := range m.kv {
				if !it.live(now) {
					delete(m.kv, k)
				}
			}
			m.mu.Unlock()
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	it, ok := m.kv[key]
	m.mu.RUnlock()
	if !ok || !it.live(time.Now()) {
		return "", ErrNotFound
	}
	return it.value, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	it := item{value: value}
	if ttl > 0 {
		it.deadline = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.kv[key] = it
	m.mu.Unlock()
	return nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.kv, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	it, ok := m.kv[key]
	m.mu.RUnlock()
	return ok && it.live(time.Now()), nil
}

func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.kv[key]; ok && it.live(time.Now()) {
		return false, nil
	}
	it := item{value: value}
	if ttl > 0 {
		it.deadline = time.Now().Add(ttl)
	}
	m.kv[key] = it
	return true, nil
}

func (m *Memory) ZAdd(_ context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	z, ok := m.zsets[key]
	if !ok {
		z = make(map[string]float64)
		m.zsets[key] = z
	}
	z[member] = score
	m.mu.Unlock()
	return nil
}

func (m *Memory) ZRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	if z, ok := m.zsets[key]; ok {
		for _, member := range members {
			delete(z, member)
		}
	}
	m.mu.Unlock()
	return nil
}

// ZRevRange returns members ordered by score descending, ties broken by
// member ascending so results are stable across calls.
func (m *Memory) ZRevRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	z := m.zsets[key]
	ranked := make([]string, 0, len(z))
	for member := range z {
		ranked = append(ranked, member)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if z[a] != z[b] {
			return z[a] > z[b]
		}
		return a < b
	})
	m.mu.RUnlock()

	n := int64(len(ranked))
	if start < 0 {
		start = 0
	}
	if start >= n {
		return nil, nil
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	return ranked[start : stop+1], nil
}

func (m *Memory) ZScore(_ context.Context, key, member string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if z, ok := m.zsets[key]; ok {
		if score, ok := z[member]; ok {
			return score, nil
		}
	}
	return 0, ErrNotFound
}
