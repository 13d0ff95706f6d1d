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

// Package jobdir resolves dataset identities to on-disk paths under a
// root data directory. The actual job runtime — what assigns a job its
// id, its sliceno, and the total slice count — is out of scope here;
// this package only knows how to find a job's directory once it has an
// id, and how to append to its datasets.txt log.
package jobdir

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// Root is the data directory all job directories live under.
type Root struct {
	Path string
}

// New returns a Root rooted at path. The directory is not created here;
// callers create jobs as they need them.
func New(path string) Root {
	return Root{Path: path}
}

// Job resolves a job id to its directory handle.
func (r Root) Job(id string) Job {
	return Job{root: r, ID: id}
}

// Job is a handle to one job's directory.
type Job struct {
	root Root
	ID   string
}

// Dir returns the job's own directory, creating it if necessary.
func (j Job) Dir() (string, error) {
	dir := filepath.Join(j.root.Path, j.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "jobdir: create job dir %s", dir)
	}
	return dir, nil
}

// DatasetDir returns the directory a dataset named name lives in,
// creating it if necessary — the "<name>/" directory holding
// dataset.pickle, dataset.txt and the column files.
func (j Job) DatasetDir(name string) (string, error) {
	jobDir, err := j.Dir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(jobDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "jobdir: create dataset dir %s", dir)
	}
	return dir, nil
}

// PicklePath returns the path to a dataset's metadata record.
func (j Job) PicklePath(name string) string {
	return filepath.Join(j.root.Path, j.ID, name, "dataset.pickle")
}

// SummaryPath returns the path to a dataset's human-readable summary.
func (j Job) SummaryPath(name string) string {
	return filepath.Join(j.root.Path, j.ID, name, "dataset.txt")
}

// ColumnPath returns the path to a column's per-slice or merged file.
// slice is ignored for merged columns (callers pass "m").
func (j Job) ColumnPath(name, sliceToken, filename string) string {
	return filepath.Join(j.root.Path, j.ID, name, sliceToken+"."+filename)
}

// datasetsLogName is the append-only per-job log of finished dataset
// names, written in finish order.
const datasetsLogName = "datasets.txt"

// AppendDatasetName appends name to the job's datasets.txt log. Writers
// in different slice processes may finish around the same time, so the
// append is protected with an advisory file lock (gofrs/flock).
func (j Job) AppendDatasetName(name string) error {
	dir, err := j.Dir()
	if err != nil {
		return err
	}
	logPath := filepath.Join(dir, datasetsLogName)
	lockPath := logPath + ".lock"
	fl := flock.New(lockPath)
	if err := fl.Lock(); err != nil {
		return errors.Wrapf(err, "jobdir: lock %s", lockPath)
	}
	defer fl.Unlock()

	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "jobdir: open %s", logPath)
	}
	defer f.Close()
	if _, err := f.WriteString(name + "\n"); err != nil {
		return errors.Wrapf(err, "jobdir: append %s", logPath)
	}
	return nil
}

// DatasetNames reads back the datasets.txt log in finish order.
func (j Job) DatasetNames() ([]string, error) {
	dir, err := j.Dir()
	if err != nil {
		return nil, err
	}
	logPath := filepath.Join(dir, datasetsLogName)
	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "jobdir: open %s", logPath)
	}
	defer f.Close()
	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			names = append(names, line)
		}
	}
	return names, sc.Err()
}
