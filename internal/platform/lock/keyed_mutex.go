package lock

import (
	"context"
	"sync"
)

type keyEntry struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is an in-process lock keyed by string. Entries are reference counted
// and dropped once nobody holds or waits on them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyEntry)}
}

var _ Locker = (*KeyedMutex)(nil)

func (k *KeyedMutex) ref(key string) *keyEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyEntry{ch: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *KeyedMutex) unref(key string, e *keyEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// Lock blocks until key is held or ctx is done.
func (k *KeyedMutex) Lock(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	e := k.ref(key)
	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		k.unref(key, e)
		return ctx.Err()
	}
}

// Unlock releases key. Unlocking a key that is not held panics, like sync.Mutex.
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	k.mu.Unlock()
	if !ok {
		panic("lock: unlock of unlocked key " + key)
	}
	<-e.ch
	k.unref(key, e)
}

// WithAccountLocks implements AccountLocker.
func (k *KeyedMutex) WithAccountLocks(ctx context.Context, accountIDs []string, fn func(ctx context.Context) error) error {
	ids, err := normalize(accountIDs)
	if err != nil {
		return err
	}
	ids = pending(ctx, ids)
	held := make([]string, 0, len(ids))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			k.Unlock(held[i])
		}
	}()
	for _, id := range ids {
		key := AccountKey(id)
		if err := k.Lock(ctx, key); err != nil {
			return err
		}
		held = append(held, key)
	}
	return fn(withHeld(ctx, ids))
}

// TryLock implements Guard.
func (k *KeyedMutex) TryLock(_ context.Context, key string) (func(), bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	e := k.ref(key)
	select {
	case e.ch <- struct{}{}:
		return func() { k.Unlock(key) }, true, nil
	default:
		k.unref(key, e)
		return nil, false, nil
	}
}
