// Package cache holds small in-process caches for data that never changes
// once written, such as account credentials.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cache is a keyed read-through store.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Delete(key K)
	Len() int
}

// Cleaner is implemented by caches that can drop expired entries on demand.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically sweeps registered caches for expired entries.
type Janitor struct {
	mu      sync.Mutex
	caches  []Cleaner
	stop    chan struct{}
	done    chan struct{}
	started bool
	once    sync.Once
	logger  *slog.Logger
}

func NewJanitor(logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (j *Janitor) Register(c Cleaner) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.caches = append(j.caches, c)
}

// Start launches the sweep loop. Calling it twice is a no-op.
func (j *Janitor) Start(interval time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		return
	}
	j.started = true
	go j.run(interval)
}

func (j *Janitor) run(interval time.Duration) {
	defer close(j.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				j.logger.Debug("Cache entries expired", "count", n)
			}
		case <-j.stop:
			return
		}
	}
}

// Sweep cleans every registered cache once and returns the number of entries removed.
func (j *Janitor) Sweep() int {
	j.mu.Lock()
	caches := append([]Cleaner(nil), j.caches...)
	j.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop ends the sweep loop and waits for it to exit.
func (j *Janitor) Stop() {
	j.mu.Lock()
	started := j.started
	j.mu.Unlock()
	if !started {
		return
	}
	j.once.Do(func() { close(j.stop) })
	<-j.done
}
