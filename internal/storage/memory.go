package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MemoryStore keeps results in process memory. It is used when no data
// directory is configured; its contents are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]Result
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{results: make(map[string]Result)}
}

func (m *MemoryStore) Put(r Result) (string, error) {
	prepare(&r)
	r.Data = append([]byte(nil), r.Data...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.ID] = r
	return r.ID, nil
}

func (m *MemoryStore) Get(id string) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[id]
	if !ok {
		return Result{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) Purge(ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, r := range m.results {
		if r.Created.Before(cutoff) {
			delete(m.results, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) Close() error { return nil }

// Open returns a BoltDB store at path, or a memory store when path is empty.
func Open(path string) (ResultStore, error) {
	if path == "" {
		return NewMemory(), nil
	}
	return New(path)
}

// RunPurger purges expired results every interval until ctx is done.
func RunPurger(ctx context.Context, store ResultStore, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Purge(ttl)
			if err != nil {
				log.Warn().Err(err).Msg("Result purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int("removed", n).Msg("Expired results purged")
			}
		}
	}
}
