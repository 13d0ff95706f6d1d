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
	"github.com/pkg/errors"

	"github.com/erigontech/accelerator/dataset/jobdir"
)

// BuildParams describes a brand-new dataset record, as handed over by
// a finishing writer. Columns must already carry their
// final Location/Offsets — merge decisions are made by the writer, not
// here.
type BuildParams struct {
	HashLabel string
	Caption   string
	Filename  string
	Previous  ID
	Columns   map[string]ColumnDescriptor
	Lines     []int64
}

func (p BuildParams) validate() error {
	if p.HashLabel != "" {
		if _, ok := p.Columns[p.HashLabel]; !ok {
			return errors.Wrapf(ErrDatasetUsageError, "hashlabel %q not among columns", p.HashLabel)
		}
	}
	return nil
}

// checkPreviousSlices verifies a chain predecessor exists and shards
// into the same number of slices as the record being built.
func checkPreviousSlices(root jobdir.Root, previous ID, lines []int64) error {
	if previous.IsZero() {
		return nil
	}
	prev, err := Load(root, previous)
	if err != nil {
		return err
	}
	if prev.Slices() != len(lines) {
		return errors.Wrapf(ErrDatasetUsageError,
			"previous %s has %d slices, new dataset has %d", previous, prev.Slices(), len(lines))
	}
	return nil
}

// Build constructs, saves and returns a fresh metadata record with no
// parent: a dataset is created by a writer's finish.
func Build(root jobdir.Root, job, name string, p BuildParams) (*Metadata, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := checkPreviousSlices(root, p.Previous, p.Lines); err != nil {
		return nil, err
	}
	m := &Metadata{
		Version:   CurrentVersion,
		Filename:  p.Filename,
		HashLabel: p.HashLabel,
		Caption:   p.Caption,
		Columns:   p.Columns,
		Previous:  p.Previous,
		Lines:     p.Lines,
	}
	if m.Caption == "" {
		m.Caption = job
	}
	if err := updateCaches(root, m); err != nil {
		return nil, err
	}
	jd := root.Job(job)
	if err := saveMetadata(jd, name, m); err != nil {
		return nil, err
	}
	return m, nil
}

// AppendParams describes extending an existing dataset with new or
// redefined columns: when a parent is set, the new record extends it.
type AppendParams struct {
	BuildParams
	HashLabelOverride bool
}

// BuildWithParent loads parent, overlays p.Columns on top of its
// columns (new columns override same-named parent columns), and saves
// the result under (job, name) with Parent set to parent.
func BuildWithParent(root jobdir.Root, job, name string, parent ID, p AppendParams) (*Metadata, error) {
	parentMeta, err := Load(root, parent)
	if err != nil {
		return nil, err
	}
	if !linesEqual(p.Lines, parentMeta.Lines) {
		return nil, errors.Wrap(ErrDatasetUsageError, "new columns don't have the same number of lines as parent columns")
	}
	hashLabel := p.HashLabel
	switch {
	case p.HashLabelOverride:
		// caller's value wins outright.
	case hashLabel != "" && parentMeta.HashLabel != "" && hashLabel != parentMeta.HashLabel:
		return nil, errors.Wrapf(ErrDatasetUsageError, "hashlabel mismatch %s != %s", parentMeta.HashLabel, hashLabel)
	case hashLabel == "":
		hashLabel = parentMeta.HashLabel
	}
	merged := parentMeta.Clone().Columns
	for k, v := range p.Columns {
		merged[k] = v
	}
	bp := p.BuildParams
	bp.HashLabel = hashLabel
	bp.Columns = merged
	if err := bp.validate(); err != nil {
		return nil, err
	}
	if err := checkPreviousSlices(root, bp.Previous, bp.Lines); err != nil {
		return nil, err
	}
	m := &Metadata{
		Version:   CurrentVersion,
		Filename:  bp.Filename,
		HashLabel: bp.HashLabel,
		Caption:   bp.Caption,
		Columns:   bp.Columns,
		Previous:  bp.Previous,
		Parent:    []ID{parent},
		Lines:     bp.Lines,
	}
	if m.Caption == "" {
		m.Caption = job
	}
	if err := updateCaches(root, m); err != nil {
		return nil, err
	}
	jd := root.Job(job)
	if err := saveMetadata(jd, name, m); err != nil {
		return nil, err
	}
	return m, nil
}

func linesEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// LinkToHere aliases src's columns (optionally filtered) under
// (destJob, name), inheriting src's chain position unless
// overridePrevious is supplied. This is how a job exposes a subjob's
// dataset under its own identity.
func LinkToHere(root jobdir.Root, src ID, destJob, name string, columnFilter []string, overridePrevious *ID) (*Metadata, error) {
	srcMeta, err := Load(root, src)
	if err != nil {
		return nil, err
	}
	m := srcMeta.Clone()
	if len(columnFilter) > 0 {
		want := make(map[string]bool, len(columnFilter))
		for _, c := range columnFilter {
			want[c] = true
		}
		filtered := make(map[string]ColumnDescriptor, len(want))
		for k, v := range m.Columns {
			if want[k] {
				filtered[k] = v
			}
		}
		for c := range want {
			if _, ok := filtered[c]; !ok {
				return nil, errors.Wrapf(ErrDatasetUsageError, "column %q in filter not available in dataset", c)
			}
		}
		if len(filtered) == 0 {
			return nil, errors.Wrap(ErrDatasetUsageError, "filter produced no desired columns")
		}
		m.Columns = filtered
	}
	if overridePrevious != nil {
		if err := checkPreviousSlices(root, *overridePrevious, m.Lines); err != nil {
			return nil, err
		}
		m.Previous = *overridePrevious
		if err := updateCaches(root, m); err != nil {
			return nil, err
		}
	}
	m.Parent = []ID{src}
	jd := root.Job(destJob)
	if err := saveMetadata(jd, name, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Merge combines two datasets' columns into a new record; columns
// from b take priority on name collision. The new record's Previous is
// always exactly what's passed, even when unset — this is a
// deliberate, if perhaps surprising, design decision rather than a bug.
func Merge(root jobdir.Root, a, b ID, destJob, name string, previous ID, allowUnrelated bool) (*Metadata, error) {
	if a == b {
		return nil, errors.Wrapf(ErrDatasetUsageError, "can't merge %s with itself", a)
	}
	am, err := Load(root, a)
	if err != nil {
		return nil, err
	}
	bm, err := Load(root, b)
	if err != nil {
		return nil, err
	}
	if !linesEqual(am.Lines, bm.Lines) {
		return nil, errors.Wrapf(ErrDatasetUsageError, "%s and %s don't have the same line counts", a, b)
	}
	hashLabel, err := mergeHashLabels(a, am.HashLabel, b, bm.HashLabel)
	if err != nil {
		return nil, err
	}
	if !allowUnrelated {
		related, err := haveCommonAncestor(root, a, b)
		if err != nil {
			return nil, err
		}
		if !related {
			return nil, errors.Wrapf(ErrDatasetUsageError, "%s and %s have no common ancestors, set allowUnrelated to allow this", a, b)
		}
	}
	if err := checkPreviousSlices(root, previous, am.Lines); err != nil {
		return nil, err
	}
	merged := am.Clone().Columns
	for k, v := range bm.Clone().Columns {
		merged[k] = v
	}
	m := &Metadata{
		Version:   CurrentVersion,
		HashLabel: hashLabel,
		Columns:   merged,
		Previous:  previous,
		Parent:    []ID{a, b},
		Lines:     append([]int64(nil), am.Lines...),
	}
	if err := updateCaches(root, m); err != nil {
		return nil, err
	}
	jd := root.Job(destJob)
	if err := saveMetadata(jd, name, m); err != nil {
		return nil, err
	}
	return m, nil
}

func mergeHashLabels(a ID, ah string, b ID, bh string) (string, error) {
	switch {
	case ah == "" && bh == "":
		return "", nil
	case ah == "" || bh == "" || ah == bh:
		if ah != "" {
			return ah, nil
		}
		return bh, nil
	default:
		return "", errors.Wrapf(ErrDatasetUsageError, "hashlabel mismatch, %s has %s, %s has %s", a, ah, b, bh)
	}
}

// haveCommonAncestor walks each side's Parent chains up to their tips
// (datasets with no Parent) and reports whether the tip sets intersect.
func haveCommonAncestor(root jobdir.Root, a, b ID) (bool, error) {
	aTips, err := parentTips(root, a)
	if err != nil {
		return false, err
	}
	bTips, err := parentTips(root, b)
	if err != nil {
		return false, err
	}
	for t := range aTips {
		if bTips[t] {
			return true, nil
		}
	}
	return false, nil
}

func parentTips(root jobdir.Root, id ID) (map[string]bool, error) {
	tips := map[string]bool{}
	var walk func(ID) error
	walk = func(id ID) error {
		m, err := Load(root, id)
		if err != nil {
			return err
		}
		if len(m.Parent) == 0 {
			tips[id.String()] = true
			return nil
		}
		for _, p := range m.Parent {
			if err := walk(p); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(id); err != nil {
		return nil, err
	}
	return tips, nil
}
