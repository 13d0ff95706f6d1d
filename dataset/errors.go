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

import "errors"

// Error taxonomy for the dataset engine. Callers should use errors.Is
// against these sentinels; wrapping (github.com/pkg/errors) adds stack
// context without breaking that match.
var (
	// ErrNoSuchDataset: the metadata file is absent at open.
	ErrNoSuchDataset = errors.New("dataset: no such dataset")
	// ErrDatasetError: corrupt or unsupported metadata (e.g. bad version).
	ErrDatasetError = errors.New("dataset: invalid dataset")
	// ErrDatasetUsageError: caller misuse — undeclared columns, hashlabel
	// mismatch, wrong-slice writes, mismatched lines at finish, a filter
	// over a missing column, rehash requested without the column present.
	ErrDatasetUsageError = errors.New("dataset: usage error")
)
