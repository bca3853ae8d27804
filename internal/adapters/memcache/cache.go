package memcache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"crowdmeter/internal/adapters/observability"
)

type entry struct {
	val       []byte
	expiresAt time.Time
}

// Cache is an in-process TTL cache implementing the same port as the redis
// adapter. Values are JSON round-tripped so both backends behave the same.
// Entries expire lazily on read; Cleanup sweeps the rest. There is no
// eviction beyond TTL.
type Cache struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

func New() *Cache {
	return &Cache{m: map[string]entry{}, now: time.Now}
}

func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	e, ok := c.m[key]
	if ok && c.now().After(e.expiresAt) {
		delete(c.m, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		observability.ObserveCache("memory", "miss")
		return false, nil
	}
	observability.ObserveCache("memory", "hit")
	return true, json.Unmarshal(e.val, dst)
}

func (c *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.m[key] = entry{val: b, expiresAt: c.now().Add(time.Duration(ttlSec) * time.Second)}
	c.mu.Unlock()
	observability.ObserveCache("memory", "set")
	return nil
}

func (c *Cache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
	observability.ObserveCache("memory", "del")
	return nil
}

// Cleanup sweeps every expired entry and returns how many were removed.
func (c *Cache) Cleanup() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.m {
		if now.After(e.expiresAt) {
			delete(c.m, k)
			removed++
		}
	}
	return removed
}

// Reset drops all entries. Exists so tests can isolate cases.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.m = map[string]entry{}
	c.mu.Unlock()
}

// StartSweeper runs Cleanup on a fixed interval until the returned stop
// function is called.
func (c *Cache) StartSweeper(interval time.Duration) func() {
	t := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-t.C:
				c.Cleanup()
			case <-done:
				return
			}
		}
	}()
	return func() {
		t.Stop()
		close(done)
	}
}
