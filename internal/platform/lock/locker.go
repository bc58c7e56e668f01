// Package lock serializes balance mutations per account, in-process or across replicas.
package lock

import (
	"context"
	"errors"
	"sort"
)

// ErrEmptyKey is returned when a lock is requested for an empty key.
var ErrEmptyKey = errors.New("lock key must not be empty")

// AccountLocker runs fn while holding an exclusive lock on every listed account.
// Locks are reentrant through the context handed to fn: nested calls with that context
// only acquire the accounts not already held.
type AccountLocker interface {
	WithAccountLocks(ctx context.Context, accountIDs []string, fn func(ctx context.Context) error) error
}

// Guard is a non-blocking lock used to keep a single job run in flight.
type Guard interface {
	// TryLock returns acquired=false without error when the key is held elsewhere.
	TryLock(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// Locker is implemented by both KeyedMutex and RedisLocker.
type Locker interface {
	AccountLocker
	Guard
}

// AccountKey is the lock key for an account's balance.
func AccountKey(accountID string) string {
	return "lock:account:" + accountID
}

// SweepKey guards one recurrence sweep at a time.
const SweepKey = "lock:recurrence:sweep"

// normalize returns the distinct ids in sorted order. Acquiring in this order rules out lock-order deadlocks.
func normalize(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			return nil, ErrEmptyKey
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

type heldKeysCtxKey struct{}

func heldFrom(ctx context.Context) map[string]struct{} {
	held, _ := ctx.Value(heldKeysCtxKey{}).(map[string]struct{})
	return held
}

// pending filters ids down to those not already held by ctx.
func pending(ctx context.Context, ids []string) []string {
	held := heldFrom(ctx)
	if len(held) == 0 {
		return ids
	}
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := held[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func withHeld(ctx context.Context, ids []string) context.Context {
	if len(ids) == 0 {
		return ctx
	}
	prev := heldFrom(ctx)
	held := make(map[string]struct{}, len(prev)+len(ids))
	for id := range prev {
		held[id] = struct{}{}
	}
	for _, id := range ids {
		held[id] = struct{}{}
	}
	return context.WithValue(ctx, heldKeysCtxKey{}, held)
}

// Holds reports whether ctx carries the lock for accountID.
func Holds(ctx context.Context, accountID string) bool {
	_, ok := heldFrom(ctx)[accountID]
	return ok
}
