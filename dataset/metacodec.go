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

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/erigontech/accelerator/dataset/jobdir"
	"github.com/erigontech/accelerator/dataset/memo"
)

// metaMemo is the process-wide metadata memoization: first load wins,
// concurrent first-loads are harmless since two loads of the same
// identity are value-equal.
var metaMemo = memo.New[*Metadata]()

// ClearMemo empties the process-wide metadata cache. Tests that reuse
// job/dataset identities across cases must call this, or stale
// metadata leaks between them.
func ClearMemo() {
	metaMemo.Clear()
}

func init() {
	gob.Register(ColumnDescriptor{})
	// Min/Max are stored as `any`; gob needs every concrete type ever
	// placed in that interface registered, not just ColumnDescriptor
	// itself, or decoding a record with bounds set fails outright.
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(string(""))
}

// saveMetadata gob-encodes m and writes it to the dataset's metadata
// path.
func saveMetadata(jd jobdir.Job, name string, m *Metadata) error {
	if _, err := jd.DatasetDir(name); err != nil {
		return err
	}
	path := jd.PicklePath(name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "dataset: create %s", path)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(m); err != nil {
		return errors.Wrapf(err, "dataset: encode %s", path)
	}
	if err := saveSummary(jd, name, m); err != nil {
		return err
	}
	metaMemo.Store(New(jd.ID, name).String(), m)
	return nil
}

// saveSummary writes the human-readable dataset.txt alongside
// dataset.pickle: an optional "hashlabel" line, an optional "previous"
// line, a blank line, then a fixed-width name/type/location table in
// column order.
func saveSummary(jd jobdir.Job, name string, m *Metadata) error {
	dir, err := jd.DatasetDir(name)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "dataset.txt")
	if err := os.WriteFile(path, []byte(buildSummary(m)), 0o644); err != nil {
		return errors.Wrapf(err, "dataset: write %s", path)
	}
	return nil
}

func buildSummary(m *Metadata) string {
	var b strings.Builder
	if m.HashLabel != "" {
		fmt.Fprintf(&b, "hashlabel %s\n", m.HashLabel)
	}
	if !m.Previous.IsZero() {
		fmt.Fprintf(&b, "previous %s\n", m.Previous.String())
	}
	b.WriteString("\n")

	names := m.SortedColumnNames()
	nameW, typeW := len("name"), len("type")
	for _, n := range names {
		cd := m.Columns[n]
		if len(cd.Name) > nameW {
			nameW = len(cd.Name)
		}
		if len(cd.Type) > typeW {
			typeW = len(cd.Type)
		}
	}
	writeRow := func(name, typ, location string) {
		fmt.Fprintf(&b, "%-*s  %-*s  %s\n", nameW, name, typeW, typ, location)
	}
	writeRow("name", "type", "location")
	for _, n := range names {
		cd := m.Columns[n]
		writeRow(cd.Name, cd.Type, cd.Location)
	}
	return b.String()
}

// loadMetadataFile reads and decodes one pickle file without consulting
// or populating the memo — used internally once the memo has already
// missed.
func loadMetadataFile(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNoSuchDataset, "%s", path)
		}
		return nil, errors.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()
	var m Metadata
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return nil, errors.Wrapf(ErrDatasetError, "decode %s: %v", path, err)
	}
	if !m.Version.Supported() {
		return nil, errors.Wrapf(ErrDatasetError, "%s: unsupported version %+v", path, m.Version)
	}
	return &m, nil
}

// Load resolves id to its metadata, consulting the process-wide memo
// first. A cache-hit chain snapshot (populated the last time some
// descendant of id was loaded) short-circuits disk reads for up to 63
// prior chain members.
func Load(root jobdir.Root, id ID) (*Metadata, error) {
	key := id.String()
	if m, ok := metaMemo.Load(key); ok {
		return m, nil
	}
	path := root.Job(id.Job).PicklePath(id.Name)
	m, err := loadMetadataFile(path)
	if err != nil {
		return nil, err
	}
	metaMemo.Store(key, m)
	for _, entry := range m.Cache {
		entry := entry
		metaMemo.LoadOrStore(entry.ID.String(), &entry.Meta)
	}
	return m, nil
}
