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

// Package dataset implements the dataset metadata model:
// the identity grammar, the persisted metadata record and column
// descriptor, the chain-cache snapshot, and the lifecycle operations
// (new/append/link/merge) that produce a new record. Writing and
// reading column data itself lives in dataset/writer and dataset/reader.
package dataset

import (
	"strings"

	"github.com/pkg/errors"
)

// DefaultName is the dataset name used when the caller doesn't specify
// one: identity serializes as "job_id" when name is this, else
// "job_id/name".
const DefaultName = "default"

// ID is a dataset identity: the pair (job id, name). It carries no
// metadata of its own; the canonical string form and any resolved
// metadata snapshot are kept as separate concepts rather than folding
// data onto the identity type itself. dataset/reader.Dataset is the
// type that pairs an ID with metadata.
type ID struct {
	Job  string
	Name string
}

// New builds an ID, defaulting an empty name to DefaultName.
func New(job, name string) ID {
	if name == "" {
		name = DefaultName
	}
	return ID{Job: job, Name: name}
}

// String renders the canonical identity form: "job_id" if Name is the
// default, else "job_id/name".
func (id ID) String() string {
	if id.Name == "" || id.Name == DefaultName {
		return id.Job
	}
	return id.Job + "/" + id.Name
}

// IsZero reports whether id is the unset identity.
func (id ID) IsZero() bool {
	return id.Job == ""
}

// ParseID parses the "job_id(/name)?" identity grammar.
func ParseID(s string) (ID, error) {
	if s == "" {
		return ID{}, nil
	}
	if strings.Contains(s, "\n") {
		return ID{}, errors.Errorf("dataset: identity %q contains a newline", s)
	}
	job, name, found := strings.Cut(s, "/")
	if !found {
		return New(job, DefaultName), nil
	}
	if strings.Contains(name, "/") {
		return ID{}, errors.Errorf("dataset: identity %q has more than one '/'", s)
	}
	return New(job, name), nil
}
