// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Indexer makes saved files visible to other applications, for
// example by asking the platform media scanner to index them.
type Indexer interface {
	Index(path string) error
}

// CommandIndexer runs an external command with the file path appended
// to its arguments, for example termux-media-scan on Android.
type CommandIndexer struct {
	Args    []string
	Timeout time.Duration
}

func (c CommandIndexer) Index(path string) error {
	if len(c.Args) == 0 {
		return nil
	}
	ctx := context.Background()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	args := append(c.Args[1:len(c.Args):len(c.Args)], path)
	out, err := exec.CommandContext(ctx, c.Args[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", c.Args[0], err, out)
	}
	return nil
}
