// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// State is the screen state retained when the screen is recreated.
type State struct {
	InProgress bool          `yaml:"graph_status"`
	Counter    time.Duration `yaml:"graph_counter"`
	Value      int           `yaml:"hr_value"`
}

// WriteState atomically writes s to the file at path.
func WriteState(path string, s State) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	_, err = f.Write(b)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to write state: %w", err)
	}
	return os.Rename(f.Name(), path)
}

// ReadState reads a State from the file at path. If the file does
// not exist, the returned error wraps fs.ErrNotExist.
func ReadState(path string) (State, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var s State
	err = yaml.Unmarshal(b, &s)
	if err != nil {
		return State{}, fmt.Errorf("failed to unmarshal state %s: %w", path, err)
	}
	return s, nil
}
