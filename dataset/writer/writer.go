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

// Package writer implements the dataset writer: column
// declaration, Mode A (one worker per slice) and Mode B (a single
// worker splitting rows across all slices), the three write surfaces,
// finish/discard, meta-only writers, and the small-slice merge step.
//
// Mode A here is scoped to a single Writer lifetime writing all of its
// assigned slices sequentially (via repeated SetSlice calls) within
// one process; coordinating separate OS processes each writing one
// slice of the same dataset is the external job-runtime's job, out of
// scope here the same way it is for dataset/jobdir.
package writer

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/erigontech/accelerator/dataset"
	"github.com/erigontech/accelerator/dataset/codec"
	"github.com/erigontech/accelerator/dataset/jobdir"
	"github.com/erigontech/accelerator/dataset/metrics"
)

type writeMode int

const (
	modeNone writeMode = iota
	modeA
	modeB
)

func sliceToken(slice int) string { return strconv.Itoa(slice) }

// colAgg accumulates one column's count/min/max across every slice it
// was written to, the way Finish aggregates per-slice codec writers
// into the final metadata record.
type colAgg struct {
	count            int64
	min, max         any
	haveMin, haveMax bool
}

func (a *colAgg) absorb(w codec.Writer) {
	a.count += w.Count()
	a.absorbMinMax(w.Min(), w.Max())
}

func (a *colAgg) absorbMinMax(min, max any) {
	if min != nil && (!a.haveMin || mergeLess(min, a.min)) {
		a.min = min
		a.haveMin = true
	}
	if max != nil && (!a.haveMax || mergeLess(a.max, max)) {
		a.max = max
		a.haveMax = true
	}
}

func (a *colAgg) minMax() (any, any) {
	return a.min, a.max
}

// mergeLess compares two values of the ordered concrete codec types
// this engine ships (int64, float64, string); duplicated from the
// reader package's own comparator rather than introducing a shared
// leaf dependency between two otherwise-independent packages.
func mergeLess(a, b any) bool {
	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		return ok && x < y
	case float64:
		y, ok := b.(float64)
		return ok && x < y
	case string:
		y, ok := b.(string)
		return ok && x < y
	default:
		return false
	}
}

// Opts configures a new Writer's construction contract, plus Finish's
// parent-extension and hashlabel-override options.
type Opts struct {
	HashLabel         string
	Caption           string
	Filename          string
	Previous          dataset.ID
	Parent            dataset.ID
	HashLabelOverride bool
	MetaOnly          bool
	// EnableHashDiscard makes Mode A silently drop wrong-slice rows
	// instead of failing.
	EnableHashDiscard bool
}

// Writer builds one dataset's column files and, on Finish, its
// metadata record.
type Writer struct {
	root   jobdir.Root
	job    string
	name   string
	slices int
	opts   Opts

	columns  []columnSpec
	colIndex map[string]int
	seen     map[string]bool
	agg      map[string]*colAgg

	mode   writeMode
	locked bool // true once SetSlice/GetSplitWrite* has run; Add is then forbidden

	curSlice   int
	curWriters map[string]codec.Writer

	splitWriters map[string]map[int]codec.Writer
	router       *router

	lines []int64 // -1 until that slice has been written

	finished, discarded bool
}

// New declares a writer for (job, name) with the given total slice
// count.
func New(root jobdir.Root, job, name string, slices int, opts Opts) (*Writer, error) {
	if slices < 1 {
		return nil, errors.Wrap(dataset.ErrDatasetUsageError, "writer: slices must be >= 1")
	}
	lines := make([]int64, slices)
	for i := range lines {
		lines[i] = -1
	}
	return &Writer{
		root:     root,
		job:      job,
		name:     name,
		slices:   slices,
		opts:     opts,
		colIndex: map[string]int{},
		seen:     map[string]bool{},
		agg:      map[string]*colAgg{},
		lines:    lines,
	}, nil
}

// Add declares a column with no default value.
func (w *Writer) Add(col, typ string) error {
	return w.addColumn(col, typ, nil, false)
}

// AddWithDefault declares a column whose rejected/absent values are
// replaced by def.
func (w *Writer) AddWithDefault(col, typ string, def any) error {
	return w.addColumn(col, typ, def, true)
}

func (w *Writer) addColumn(col, typ string, def any, hasDefault bool) error {
	if w.locked {
		return errors.Wrap(dataset.ErrDatasetUsageError, "writer: columns must be added before the first write or slice selection")
	}
	if !codec.KnownType(typ) {
		return errors.Wrapf(dataset.ErrDatasetUsageError, "writer: unknown column type %q", typ)
	}
	if _, dup := w.colIndex[col]; dup {
		return errors.Wrapf(dataset.ErrDatasetUsageError, "writer: column %q added twice", col)
	}
	cs := columnSpec{
		Name:       col,
		FileName:   dataset.CleanName(col, w.seen),
		Type:       typ,
		Default:    def,
		HasDefault: hasDefault,
	}
	w.colIndex[col] = len(w.columns)
	w.columns = append(w.columns, cs)
	w.agg[col] = &colAgg{}
	return nil
}

func (w *Writer) columnByName(col string) (columnSpec, bool) {
	i, ok := w.colIndex[col]
	if !ok {
		return columnSpec{}, false
	}
	return w.columns[i], true
}

// ensurePath returns the absolute path for col's per-slice file,
// creating the dataset directory if needed.
func (w *Writer) ensurePath(slice int, fileName string) (string, error) {
	dir, err := w.root.Job(w.job).DatasetDir(w.name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, sliceToken(slice)+"."+fileName), nil
}

// relTemplate is the Location a non-merged column gets: a path
// relative to the job directory root carrying a printf placeholder for
// the slice token.
func (w *Writer) relTemplate(fileName string) string {
	return filepath.Join(w.job, w.name, "%s."+fileName)
}

// SetSlice enters (or continues in) Mode A and opens fresh column
// writers for slice, closing whichever slice was previously open.
func (w *Writer) SetSlice(slice int) error {
	if w.finished || w.discarded {
		return errors.Wrap(dataset.ErrDatasetUsageError, "writer: already finished or discarded")
	}
	if w.mode == modeB {
		return errors.Wrap(dataset.ErrDatasetUsageError, "writer: can't mix set_slice with a split writer")
	}
	if w.opts.MetaOnly {
		return errors.Wrap(dataset.ErrDatasetUsageError, "writer: meta-only writers don't take row writes")
	}
	if slice < 0 || slice >= w.slices {
		return errors.Wrapf(dataset.ErrDatasetUsageError, "writer: slice %d out of range [0,%d)", slice, w.slices)
	}
	if err := w.closeCurrentSlice(); err != nil {
		return err
	}
	w.mode = modeA
	w.locked = true
	writers := make(map[string]codec.Writer, len(w.columns))
	for _, cs := range w.columns {
		path, err := w.ensurePath(slice, cs.FileName)
		if err != nil {
			return err
		}
		wopts := codec.WriterOpts{Default: cs.Default}
		if cs.Name == w.opts.HashLabel {
			wopts.HashFilter = &codec.HashFilter{Slice: slice, Slices: w.slices}
		}
		cw, err := codec.NewWriter(cs.Type, path, wopts)
		if err != nil {
			return err
		}
		writers[cs.Name] = cw
	}
	w.curSlice = slice
	w.curWriters = writers
	logrus.WithFields(logrus.Fields{"job": w.job, "dataset": w.name, "slice": slice}).Debug("dataset writer: slice opened")
	return nil
}

func (w *Writer) closeCurrentSlice() error {
	if w.curWriters == nil {
		return nil
	}
	var count int64 = -1
	for _, cs := range w.columns {
		cw := w.curWriters[cs.Name]
		w.agg[cs.Name].absorb(cw)
		if count < 0 {
			count = cw.Count()
		}
		if err := cw.Close(); err != nil {
			return errors.Wrapf(err, "writer: close column %q", cs.Name)
		}
	}
	if count < 0 {
		count = 0
	}
	w.lines[w.curSlice] = count
	w.curWriters = nil
	return nil
}

// enterModeB opens one writer per (column, slice) up front. Idempotent
// once entered.
func (w *Writer) enterModeB() error {
	if w.mode == modeB {
		return nil
	}
	if w.finished || w.discarded {
		return errors.Wrap(dataset.ErrDatasetUsageError, "writer: already finished or discarded")
	}
	if w.mode == modeA {
		return errors.Wrap(dataset.ErrDatasetUsageError, "writer: can't mix a split writer with set_slice")
	}
	if w.opts.MetaOnly {
		return errors.Wrap(dataset.ErrDatasetUsageError, "writer: meta-only writers don't take row writes")
	}
	if len(w.columns) == 0 {
		return errors.Wrap(dataset.ErrDatasetUsageError, "writer: no columns added")
	}
	w.mode = modeB
	w.locked = true
	w.splitWriters = make(map[string]map[int]codec.Writer, len(w.columns))
	for _, cs := range w.columns {
		perSlice := make(map[int]codec.Writer, w.slices)
		for s := 0; s < w.slices; s++ {
			path, err := w.ensurePath(s, cs.FileName)
			if err != nil {
				return err
			}
			cw, err := codec.NewWriter(cs.Type, path, codec.WriterOpts{Default: cs.Default})
			if err != nil {
				return err
			}
			perSlice[s] = cw
		}
		w.splitWriters[cs.Name] = perSlice
	}
	hashType := ""
	if w.opts.HashLabel != "" {
		if cs, ok := w.columnByName(w.opts.HashLabel); ok {
			hashType = cs.Type
		}
	}
	w.router = newRouter(w.slices, w.opts.HashLabel, hashType)
	for i := range w.lines {
		w.lines[i] = 0
	}
	return nil
}

// GetSplitWrite returns the Mode B positional write surface.
func (w *Writer) GetSplitWrite() (func(values ...any) error, error) {
	if err := w.enterModeB(); err != nil {
		return nil, err
	}
	return w.WritePositional, nil
}

// GetSplitWriteList returns the Mode B sequence write surface.
func (w *Writer) GetSplitWriteList() (func(values []any) error, error) {
	if err := w.enterModeB(); err != nil {
		return nil, err
	}
	return w.WriteSlice, nil
}

// GetSplitWriteDict returns the Mode B mapping write surface.
func (w *Writer) GetSplitWriteDict() (func(values map[string]any) error, error) {
	if err := w.enterModeB(); err != nil {
		return nil, err
	}
	return w.WriteMap, nil
}

// WritePositional writes one row given as positional args in add-order
// (write surface 1).
func (w *Writer) WritePositional(values ...any) error {
	row, err := positionalToMap(w.columns, values)
	if err != nil {
		return err
	}
	return w.writeRow(row)
}

// WriteSlice writes one row given as a sequence in add-order (write
// surface 2).
func (w *Writer) WriteSlice(values []any) error {
	row, err := positionalToMap(w.columns, values)
	if err != nil {
		return err
	}
	return w.writeRow(row)
}

// WriteMap writes one row given as a mapping keyed by column name
// (write surface 3).
func (w *Writer) WriteMap(values map[string]any) error {
	row, err := mapToRow(w.columns, values)
	if err != nil {
		return err
	}
	return w.writeRow(row)
}

func (w *Writer) writeRow(row map[string]any) error {
	if w.finished || w.discarded {
		return errors.Wrap(dataset.ErrDatasetUsageError, "writer: already finished or discarded")
	}
	switch w.mode {
	case modeA:
		return w.writeRowModeA(row)
	case modeB:
		return w.writeRowModeB(row)
	default:
		return errors.Wrap(dataset.ErrDatasetUsageError, "writer: call SetSlice or GetSplitWrite* before writing")
	}
}

func (w *Writer) writeRowModeA(row map[string]any) error {
	if w.curWriters == nil {
		return errors.Wrap(dataset.ErrDatasetUsageError, "writer: no slice selected")
	}
	if w.opts.HashLabel != "" {
		hw := w.curWriters[w.opts.HashLabel]
		if !hw.HashCheck(row[w.opts.HashLabel]) {
			if w.opts.EnableHashDiscard {
				logrus.WithFields(logrus.Fields{"job": w.job, "dataset": w.name, "slice": w.curSlice}).Debug("dataset writer: dropped row for wrong slice")
				return nil
			}
			return errors.Wrap(dataset.ErrDatasetUsageError, "writer: attempted to write data for wrong slice")
		}
	}
	for _, cs := range w.columns {
		if err := w.curWriters[cs.Name].Write(row[cs.Name]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeRowModeB(row map[string]any) error {
	slice, err := w.router.route(row)
	if err != nil {
		return err
	}
	for _, cs := range w.columns {
		if err := w.splitWriters[cs.Name][slice].Write(row[cs.Name]); err != nil {
			return err
		}
	}
	w.lines[slice]++
	return nil
}

// ColumnFilename exposes the path a meta-only writer's caller must
// place col's slice file at.
func (w *Writer) ColumnFilename(col string, slice int) (string, error) {
	cs, ok := w.columnByName(col)
	if !ok {
		return "", errors.Wrapf(dataset.ErrDatasetUsageError, "writer: no such column %q", col)
	}
	return w.ensurePath(slice, cs.FileName)
}

// SetLines records slice's row count for a meta-only writer.
func (w *Writer) SetLines(slice int, count int64) error {
	if !w.opts.MetaOnly {
		return errors.Wrap(dataset.ErrDatasetUsageError, "writer: set_lines is only for meta-only writers")
	}
	if slice < 0 || slice >= w.slices {
		return errors.Wrapf(dataset.ErrDatasetUsageError, "writer: slice %d out of range [0,%d)", slice, w.slices)
	}
	w.lines[slice] = count
	return nil
}

// ColumnMinMax is one column's (min, max) contribution for one slice,
// passed to SetMinMax.
type ColumnMinMax struct {
	Min, Max any
}

// SetMinMax records slice's per-column extremes for a meta-only
// writer; Finish aggregates them the same way it aggregates a regular
// writer's per-slice codec.Writer.Min()/Max().
func (w *Writer) SetMinMax(slice int, values map[string]ColumnMinMax) error {
	if !w.opts.MetaOnly {
		return errors.Wrap(dataset.ErrDatasetUsageError, "writer: set_minmax is only for meta-only writers")
	}
	for col, mm := range values {
		if _, ok := w.columnByName(col); !ok {
			return errors.Wrapf(dataset.ErrDatasetUsageError, "writer: no such column %q", col)
		}
		w.agg[col].absorbMinMax(mm.Min, mm.Max)
	}
	return nil
}

// Finish closes every open column writer, runs the small-slice merge,
// and writes the metadata record.
func (w *Writer) Finish() (*dataset.Metadata, error) {
	if w.finished {
		return nil, errors.Wrap(dataset.ErrDatasetUsageError, "writer: already finished")
	}
	if w.discarded {
		return nil, errors.Wrap(dataset.ErrDatasetUsageError, "writer: already discarded")
	}
	switch w.mode {
	case modeA:
		if err := w.closeCurrentSlice(); err != nil {
			return nil, err
		}
	case modeB:
		if err := w.closeSplitWriters(); err != nil {
			return nil, err
		}
	default:
		if !w.opts.MetaOnly {
			return nil, errors.Wrap(dataset.ErrDatasetUsageError, "writer: nothing was written")
		}
	}

	if !w.opts.MetaOnly {
		for s, n := range w.lines {
			if n < 0 {
				return nil, errors.Wrapf(dataset.ErrDatasetUsageError, "writer: slice %d was never written", s)
			}
		}
	}

	cols := make(map[string]dataset.ColumnDescriptor, len(w.columns))
	for _, cs := range w.columns {
		var cd dataset.ColumnDescriptor
		if w.opts.MetaOnly {
			cd = dataset.ColumnDescriptor{Type: cs.Type, BackingType: cs.Type, Name: cs.FileName, Location: w.relTemplate(cs.FileName)}
		} else {
			var err error
			cd, err = maybeMergeColumn(w.root, w.job, w.name, cs, w.slices, w.lines)
			if err != nil {
				return nil, err
			}
		}
		min, max := w.agg[cs.Name].minMax()
		cd.Min, cd.Max = min, max
		cols[cs.Name] = cd
	}

	bp := dataset.BuildParams{
		HashLabel: w.opts.HashLabel,
		Caption:   w.opts.Caption,
		Filename:  w.opts.Filename,
		Previous:  w.opts.Previous,
		Columns:   cols,
		Lines:     append([]int64(nil), w.lines...),
	}

	var meta *dataset.Metadata
	var err error
	if !w.opts.Parent.IsZero() {
		meta, err = dataset.BuildWithParent(w.root, w.job, w.name, w.opts.Parent, dataset.AppendParams{
			BuildParams:       bp,
			HashLabelOverride: w.opts.HashLabelOverride,
		})
	} else {
		meta, err = dataset.Build(w.root, w.job, w.name, bp)
	}
	if err != nil {
		return nil, err
	}
	if err := w.root.Job(w.job).AppendDatasetName(w.name); err != nil {
		return nil, err
	}
	w.finished = true

	var total int64
	for _, n := range w.lines {
		if n > 0 {
			total += n
		}
	}
	metrics.RowsWritten.WithLabelValues(w.job).Add(float64(total))
	logrus.WithFields(logrus.Fields{"job": w.job, "dataset": w.name, "rows": total}).Debug("dataset writer: finished")
	return meta, nil
}

func (w *Writer) closeSplitWriters() error {
	for _, cs := range w.columns {
		for s := 0; s < w.slices; s++ {
			cw := w.splitWriters[cs.Name][s]
			w.agg[cs.Name].absorb(cw)
			if err := cw.Close(); err != nil {
				return errors.Wrapf(err, "writer: close column %q slice %d", cs.Name, s)
			}
		}
	}
	return nil
}

// Discard removes every file this writer has created and aborts the
// build.
func (w *Writer) Discard() error {
	if w.finished {
		return errors.Wrap(dataset.ErrDatasetUsageError, "writer: already finished")
	}
	if w.discarded {
		return nil
	}
	switch w.mode {
	case modeA:
		if w.curWriters != nil {
			for _, cw := range w.curWriters {
				cw.Close()
			}
		}
	case modeB:
		for _, m := range w.splitWriters {
			for _, cw := range m {
				cw.Close()
			}
		}
	}
	for _, cs := range w.columns {
		for s := 0; s < w.slices; s++ {
			p, err := w.ensurePath(s, cs.FileName)
			if err == nil {
				os.Remove(p)
			}
		}
		dir, err := w.root.Job(w.job).DatasetDir(w.name)
		if err == nil {
			os.Remove(filepath.Join(dir, "m."+cs.FileName))
		}
	}
	w.discarded = true
	return nil
}
