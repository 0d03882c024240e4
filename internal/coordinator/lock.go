package coordinator

import (
	"context"
	"sort"
	"sync"
)

// Locker serializes transitions per aggregate. Keys are acquired together;
// the returned unlock releases all of them and is safe to call twice.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

func tableKey(id string) string { return "table:" + id }
func orderKey(id string) string { return "order:" + id }

// KeyedLocker is the in-process Locker. Keys are taken in sorted order so two
// transitions over overlapping groups cannot deadlock.
type KeyedLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{slots: make(map[string]*slot)}
}

func (k *KeyedLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = sortedKeys(keys)
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		s := k.ref(key)
		select {
		case s.ch <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			k.unref(key)
			k.release(held)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(func() { k.release(held) }) }, nil
}

func (k *KeyedLocker) ref(key string) *slot {
	k.mu.Lock()
	defer k.mu.Unlock()

	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	return s
}

func (k *KeyedLocker) unref(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if s, ok := k.slots[key]; ok {
		s.refs--
		if s.refs == 0 {
			delete(k.slots, key)
		}
	}
}

func (k *KeyedLocker) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		k.mu.Lock()
		s := k.slots[keys[i]]
		<-s.ch
		s.refs--
		if s.refs == 0 {
			delete(k.slots, keys[i])
		}
		k.mu.Unlock()
	}
}

func sortedKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
