package ratelimiter

import (
	"sync"
	"time"
)

const sweepInterval = time.Minute

type inMemoryEntry struct {
	value     int
	expiresAt time.Time
}

func (e inMemoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemory is a process-local GetterSetter. Expired keys read as misses and
// are swept periodically.
type InMemory struct {
	entries map[string]inMemoryEntry
	mu      sync.RWMutex
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewInMemory() GetterSetter {
	return newInMemory(time.Now, sweepInterval)
}

func newInMemory(now func() time.Time, every time.Duration) *InMemory {
	im := &InMemory{
		entries: make(map[string]inMemoryEntry),
		now:     now,
		stop:    make(chan struct{}),
	}

	go im.sweepLoop(every)

	return im
}

func (i *InMemory) Get(key string) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	entry, ok := i.entries[key]
	if !ok || entry.expired(i.now()) {
		return 0, ErrCacheMiss
	}

	return entry.value, nil
}

func (i *InMemory) Set(key string, value int) error {
	return i.SetWithExpiration(key, value, 0)
}

func (i *InMemory) SetWithExpiration(key string, value int, expiration time.Duration) error {
	entry := inMemoryEntry{value: value}
	if expiration > 0 {
		entry.expiresAt = i.now().Add(expiration)
	}

	i.mu.Lock()
	i.entries[key] = entry
	i.mu.Unlock()

	return nil
}

// Len counts stored keys, expired ones included until the next sweep.
func (i *InMemory) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

func (i *InMemory) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			i.sweep()
		case <-i.stop:
			return
		}
	}
}

func (i *InMemory) sweep() {
	now := i.now()

	i.mu.Lock()
	defer i.mu.Unlock()

	for key, entry := range i.entries {
		if entry.expired(now) {
			delete(i.entries, key)
		}
	}
}

func (i *InMemory) Close() error {
	i.once.Do(func() {
		close(i.stop)
	})
	return nil
}
