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

package dataset

import "github.com/erigontech/accelerator/dataset/jobdir"

// cacheStride is how many chain links pass between cache snapshots.
// It's a pure optimization knob — raising it trades more disk reads on
// a cache miss for a smaller metadata file.
const cacheStride = 64

// updateCaches recomputes m.CacheDistance and, every cacheStride links,
// embeds a fresh Cache snapshot of the preceding cacheStride-1 chain
// members in walk order, never including the dataset itself.
func updateCaches(root jobdir.Root, m *Metadata) error {
	m.Cache = nil
	m.CacheDistance = 0
	if m.Previous.IsZero() {
		return nil
	}
	prev, err := Load(root, m.Previous)
	if err != nil {
		return err
	}
	distance := prev.CacheDistance + 1
	if distance == cacheStride {
		distance = 0
		entries, err := walkPrevious(root, m.Previous, cacheStride-1)
		if err != nil {
			return err
		}
		m.Cache = entries
	}
	m.CacheDistance = distance
	return nil
}

// walkPrevious collects up to n chain members starting at id and
// following Previous links, oldest-not-included-further than n steps,
// in walk order (newest-of-the-predecessors first, i.e. id itself
// first, then id.Previous, ...).
func walkPrevious(root jobdir.Root, id ID, n int) ([]CacheEntry, error) {
	entries := make([]CacheEntry, 0, n)
	cur := id
	for i := 0; i < n && !cur.IsZero(); i++ {
		m, err := Load(root, cur)
		if err != nil {
			return nil, err
		}
		entries = append(entries, CacheEntry{ID: cur, Meta: *m})
		cur = m.Previous
	}
	return entries, nil
}
