package hashmap

import (
	"github.com/skybi/impds-proxy/internal/task"
	"time"
)

type expiringEntry[T any] struct {
	raw     T
	expires time.Time
}

// ExpiringMap implements the Map interface and wraps a NormalMap in order to implement value expiration.
// Expired values are never returned by Lookup; they are physically removed by Sweep.
type ExpiringMap[K comparable, V any] struct {
	normal    *NormalMap[K, *expiringEntry[V]]
	lifetime  time.Duration
	now       func() time.Time
	sweepTask *task.RepeatingTask
}

var _ Map[int, any] = (*ExpiringMap[int, any])(nil)

// NewExpiring creates a new expiring map whose values exist for a specific lifetime
func NewExpiring[K comparable, V any](lifetime time.Duration) *ExpiringMap[K, V] {
	return &ExpiringMap[K, V]{
		normal:   NewNormal[K, *expiringEntry[V]](),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// WithClock replaces the clock used to judge expiration
func (obj *ExpiringMap[K, V]) WithClock(now func() time.Time) *ExpiringMap[K, V] {
	obj.now = now
	return obj
}

// ScheduleSweepTask schedules the task that removes expired values in a specific interval.
// StopSweepTask has to be called as soon as the map is no longer needed.
func (obj *ExpiringMap[K, V]) ScheduleSweepTask(tick time.Duration) {
	if obj.sweepTask != nil {
		return
	}
	obj.sweepTask = task.NewRepeating(func() {
		obj.Sweep()
	}, tick)
	obj.sweepTask.Start()
}

// StopSweepTask stops the sweep task
func (obj *ExpiringMap[K, V]) StopSweepTask() {
	if obj.sweepTask == nil {
		return
	}
	obj.sweepTask.Stop(false)
	obj.sweepTask = nil
}

// Sweep removes all expired values and returns their amount
func (obj *ExpiringMap[K, V]) Sweep() int {
	now := obj.now()
	return obj.normal.DeleteFunc(func(_ K, entry *expiringEntry[V]) bool {
		return !now.Before(entry.expires)
	})
}

// Size returns the amount of stored key-value pairs, including expired ones not swept yet
func (obj *ExpiringMap[K, V]) Size() int {
	return obj.normal.Size()
}

// Lookup returns the value assigned to the given key and a boolean indicating if an unexpired value is present
func (obj *ExpiringMap[K, V]) Lookup(key K) (V, bool) {
	entry, ok := obj.normal.Lookup(key)
	if !ok || !obj.now().Before(entry.expires) {
		var zero V
		return zero, false
	}
	return entry.raw, true
}

// Set sets a key-value pair, restarting its lifetime
func (obj *ExpiringMap[K, V]) Set(key K, value V) {
	obj.normal.Set(key, &expiringEntry[V]{
		raw:     value,
		expires: obj.now().Add(obj.lifetime),
	})
}

// Unset deletes the value assigned to given key
func (obj *ExpiringMap[K, V]) Unset(key K) {
	obj.normal.Unset(key)
}

// Clear removes all key-value pairs
func (obj *ExpiringMap[K, V]) Clear() {
	obj.normal.Clear()
}
