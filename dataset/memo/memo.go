// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package memo implements process-wide, read-mostly metadata
// memoization: a table keyed by canonical dataset identity, written
// only on first load. Concurrent first-loads of the same key may race
// and duplicate work, but since the stored value is value-equal no
// locking is required for correctness.
package memo

import "sync"

// Cache memoizes values of type T keyed by a dataset identity string.
// The zero value is an empty cache ready to use; New returns a pointer
// to one.
type Cache[T any] struct {
	m sync.Map
}

// New returns an empty Cache.
func New[T any]() *Cache[T] {
	return &Cache[T]{}
}

// Load returns the cached value for key, if any.
func (c *Cache[T]) Load(key string) (T, bool) {
	v, ok := c.m.Load(key)
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Store inserts or overwrites the value for key. Overwriting is safe
// because every writer of a given key is expected to produce a
// value-equal result (the same dataset's metadata never changes once
// written).
func (c *Cache[T]) Store(key string, v T) {
	c.m.Store(key, v)
}

// LoadOrStore returns the existing value for key if present, otherwise
// stores and returns v.
func (c *Cache[T]) LoadOrStore(key string, v T) (actual T, loaded bool) {
	a, loaded := c.m.LoadOrStore(key, v)
	return a.(T), loaded
}

// Clear empties the cache. Tests must call this between cases that
// reuse dataset identities, or stale metadata from one test will leak
// into the next.
func (c *Cache[T]) Clear() {
	c.m.Range(func(k, _ any) bool {
		c.m.Delete(k)
		return true
	})
}
