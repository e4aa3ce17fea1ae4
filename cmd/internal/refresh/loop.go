// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package refresh implements the periodic graph refresh task. Each
// tick plots the latest heart rate value and requests a repaint, and
// the task reschedules itself only while it is in progress.
package refresh

import (
	"sync"
	"time"

	"github.com/kortschak/hrs/cmd/internal/graph"
)

// Scheduler schedules a function to be called after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Clock is a Scheduler backed by time.AfterFunc.
type Clock struct{}

func (Clock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Loop is a self-rescheduling refresh task.
type Loop struct {
	interval time.Duration
	sched    Scheduler

	value   func() int
	plot    func(graph.Point)
	repaint func()

	// mu is held for the duration of a tick
	// so that a returned Stop guarantees no
	// further plot calls.
	mu         sync.Mutex
	inProgress bool
	counter    time.Duration
	gen        uint64
	pending    Timer
}

// NewLoop returns a new stopped Loop. On each tick, if value returns a
// positive number the elapsed counter is advanced by interval and plot
// is called with the new point, followed by repaint. If sched is nil,
// Clock is used.
func NewLoop(interval time.Duration, sched Scheduler, value func() int, plot func(graph.Point), repaint func()) *Loop {
	if sched == nil {
		sched = Clock{}
	}
	return &Loop{
		interval: interval,
		sched:    sched,
		value:    value,
		plot:     plot,
		repaint:  repaint,
	}
}

// Start starts the loop with a zeroed counter. The first tick runs
// before Start returns.
func (l *Loop) Start() {
	l.Resume(0)
}

// Resume starts the loop with the elapsed counter set to counter.
// The first tick runs before Resume returns.
func (l *Loop) Resume(counter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel()
	l.inProgress = true
	l.counter = counter
	l.gen++
	l.tick(l.gen)
}

// Stop stops the loop and cancels any pending tick. The elapsed
// counter is retained.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inProgress = false
	l.gen++
	l.cancel()
}

// Reset zeroes the elapsed counter.
func (l *Loop) Reset() {
	l.mu.Lock()
	l.counter = 0
	l.mu.Unlock()
}

// Running returns whether the loop is in progress.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inProgress
}

// Counter returns the elapsed counter.
func (l *Loop) Counter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counter
}

func (l *Loop) cancel() {
	if l.pending != nil {
		l.pending.Stop()
		l.pending = nil
	}
}

func (l *Loop) fire(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tick(gen)
}

// tick must be called with l.mu held.
func (l *Loop) tick(gen uint64) {
	if gen != l.gen || !l.inProgress {
		// Stopped or restarted after this tick was scheduled.
		return
	}
	l.pending = nil
	if v := l.value(); v > 0 {
		l.counter += l.interval
		l.plot(graph.Point{Elapsed: l.counter, Value: v})
		l.repaint()
	}
	l.pending = l.sched.AfterFunc(l.interval, func() { l.fire(gen) })
}
