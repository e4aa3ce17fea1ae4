// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package session implements recording and persistence of heart rate
// monitoring sessions.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrStorageUnavailable is returned when the session directory cannot
// be created or written.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Header is the first line of a session log.
const Header = "Time Value Voltage"

// NameLayout is the time layout of session log file names.
const NameLayout = "2006-01-02-15-04-05"

// Recorder accumulates the rows of a session log. Each row holds the
// elapsed time in milliseconds, the heart rate value and the auxiliary
// analog reading in volts. A Recorder is not safe for concurrent use.
type Recorder struct {
	interval time.Duration

	start   time.Time
	elapsed time.Duration
	rows    int
	buf     strings.Builder
}

// NewRecorder returns a Recorder that advances its elapsed time by
// interval for each added row.
func NewRecorder(interval time.Duration) *Recorder {
	return &Recorder{interval: interval}
}

// Begin discards any recorded rows and starts a new session at now.
func (r *Recorder) Begin(now time.Time) {
	r.Reset()
	r.start = now
}

// Started returns whether a session has begun.
func (r *Recorder) Started() bool { return !r.start.IsZero() }

// Reset discards all recorded rows and ends the session.
func (r *Recorder) Reset() {
	r.start = time.Time{}
	r.elapsed = 0
	r.rows = 0
	r.buf.Reset()
}

// Add appends a sample row. The raw value is recorded whether or not
// it is a plausible heart rate.
func (r *Recorder) Add(value int, aux float32) {
	r.buf.WriteString(strconv.FormatInt(r.elapsed.Milliseconds(), 10))
	r.buf.WriteByte(' ')
	r.buf.WriteString(strconv.Itoa(value))
	r.buf.WriteByte(' ')
	r.buf.WriteString(strconv.FormatFloat(float64(aux), 'g', -1, 32))
	r.buf.WriteString("V\n")
	r.elapsed += r.interval
	r.rows++
}

// Rows returns the number of recorded rows.
func (r *Recorder) Rows() int { return r.rows }

// Name returns the file name of the session log. Save adds a numeric
// suffix if a log with that name already exists.
func (r *Recorder) Name() string {
	return r.start.Format(NameLayout) + ".txt"
}

// String returns the session log text.
func (r *Recorder) String() string {
	return Header + "\n" + r.buf.String()
}

// Save writes the session log to a new file in dir and returns its
// path. Existing logs are never overwritten. If idx is not nil, it is notified of the new file after the
// file has been synced to storage.
func (r *Recorder) Save(dir string, idx Indexer) (string, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	f, err := create(dir, r.Name())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	path := f.Name()
	_, err = f.WriteString(r.String())
	if err != nil {
		f.Close()
		return path, fmt.Errorf("failed to write session log: %w", err)
	}
	err = f.Sync()
	if err != nil {
		f.Close()
		return path, fmt.Errorf("failed to sync session log: %w", err)
	}
	err = f.Close()
	if err != nil {
		return path, fmt.Errorf("failed to close session log: %w", err)
	}
	if idx != nil {
		err = idx.Index(path)
		if err != nil {
			return path, fmt.Errorf("failed to index session log: %w", err)
		}
	}
	return path, nil
}

// maxSuffix bounds the search for an unused session log name.
const maxSuffix = 1000

// create creates a new file named name in dir. If the name is taken,
// "-1", "-2" and so on are inserted before the extension.
func create(dir, name string) (*os.File, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if !errors.Is(err, fs.ErrExist) || i > maxSuffix {
			return f, err
		}
		name = base + "-" + strconv.Itoa(i) + ext
	}
}
