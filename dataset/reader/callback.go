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

package reader

import "github.com/erigontech/accelerator/dataset"

// CallbackResult tells the chain-iteration driver what to do after a
// hook runs, rather than signaling via a raised exception or sentinel
// error.
type CallbackResult int

const (
	// Continue proceeds with this plan entry as normal.
	Continue CallbackResult = iota
	// SkipSlice abandons only the current (dataset, slice) plan entry.
	SkipSlice
	// SkipJob abandons every remaining plan entry for the current dataset.
	SkipJob
	// Stop ends the walk entirely; no further entries are visited.
	Stop
)

// PreDataset is invoked once per dataset in a chain walk, before its
// first slice is opened. Returning SkipSlice or SkipJob from it skips
// the whole dataset. The caller picks this hook type explicitly
// rather than the driver inferring granularity from callback shape.
type PreDataset func(id dataset.ID) CallbackResult

// PreSlice is invoked once per (dataset, slice) plan entry, before its
// column readers are opened.
type PreSlice func(id dataset.ID, slice int) CallbackResult

// PostSlice is invoked once per (dataset, slice) plan entry after its
// rows have all been yielded. In sequential iteration it also runs when
// the consumer stopped early; in round-robin iteration it runs only for
// entries that were read to the end.
type PostSlice func(id dataset.ID, slice int)

// PostDataset is invoked once per dataset after its last entry has run,
// including when a PreSlice SkipJob result abandoned the remaining
// entries. It is not invoked for a dataset whose PreDataset hook did
// not return Continue.
type PostDataset func(id dataset.ID)

// Callbacks bundles the optional hooks a chain walk may supply. Any
// field left nil is simply not invoked.
type Callbacks struct {
	PreDataset  PreDataset
	PreSlice    PreSlice
	PostSlice   PostSlice
	PostDataset PostDataset
}
