// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package screen implements the heart rate monitor screen controller.
// The controller receives sensor events, keeps the displayed state,
// drives the graph refresh loop and persists session logs when a
// sensor disconnects.
package screen

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kortschak/hrs/cmd/internal/graph"
	"github.com/kortschak/hrs/cmd/internal/refresh"
	"github.com/kortschak/hrs/cmd/internal/session"
)

// Displayed placeholder texts.
const (
	NotAvailableValue = "-"
	NotAvailable      = "n/a"
)

// Displayable heart rate value range.
const (
	MinValue = 0
	MaxValue = 100000000
)

// RateText returns the displayed text for a heart rate value.
func RateText(v int) string {
	if v < MinValue || v > MaxValue {
		return NotAvailableValue
	}
	return strconv.Itoa(v)
}

// Config holds the Controller configuration.
type Config struct {
	// Interval is the graph refresh and
	// session log time step.
	Interval time.Duration
	// Points is the number of points
	// retained by the graph.
	Points int

	// Dir is the session log directory.
	Dir string
	// Indexer is notified of saved logs.
	// It may be nil.
	Indexer session.Indexer

	// Scheduler schedules refresh ticks.
	// If nil, refresh.Clock is used.
	Scheduler refresh.Scheduler
	// Invalidate requests a repaint.
	Invalidate func()
	// Now returns the current time. If nil,
	// time.Now is used.
	Now func() time.Time

	Log logrus.FieldLogger
}

// View is a snapshot of the displayed state.
type View struct {
	Device    string
	Connected bool

	Rate     string
	Position string
	Battery  string

	Points []graph.Point

	// LastSession is the path of the most
	// recently saved session log.
	LastSession string
}

// Controller is the screen controller. Its methods are safe to call
// concurrently.
type Controller struct {
	cfg Config
	log logrus.FieldLogger

	// value is the latest received heart rate.
	value atomic.Int64

	loop *refresh.Loop

	mu        sync.Mutex
	rec       *session.Recorder
	graph     *graph.Buffer
	device    string
	connected bool
	rate      string
	position  string
	battery   string
	last      string
}

// New returns a new Controller in the disconnected state.
func New(cfg Config) *Controller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Invalidate == nil {
		cfg.Invalidate = func() {}
	}
	c := &Controller{
		cfg:      cfg,
		log:      cfg.Log,
		rec:      session.NewRecorder(cfg.Interval),
		graph:    graph.NewBuffer(cfg.Points),
		rate:     NotAvailableValue,
		position: NotAvailable,
		battery:  NotAvailable,
	}
	c.loop = refresh.NewLoop(cfg.Interval, cfg.Scheduler, c.currentValue, c.plot, cfg.Invalidate)
	return c
}

func (c *Controller) currentValue() int { return int(c.value.Load()) }

// plot is called by the refresh loop with its lock held.
// The controller must not call into the loop while holding c.mu.
func (c *Controller) plot(p graph.Point) {
	c.mu.Lock()
	c.graph.Append(p)
	c.mu.Unlock()
}

// DeviceReady starts the monitoring session.
func (c *Controller) DeviceReady(addr string) {
	c.mu.Lock()
	c.device = addr
	c.connected = true
	if !c.rec.Started() {
		c.rec.Begin(c.cfg.Now())
	}
	c.mu.Unlock()

	c.log.WithField("addr", addr).Info("start graph")
	c.loop.Start()
	c.cfg.Invalidate()
}

// DeviceDisconnected ends the monitoring session, saves the session
// log and resets the displayed state.
func (c *Controller) DeviceDisconnected(addr string) {
	c.loop.Stop()
	c.loop.Reset()
	c.value.Store(0)

	c.mu.Lock()
	rec := c.rec
	c.rec = session.NewRecorder(c.cfg.Interval)
	c.connected = false
	c.rate = NotAvailableValue
	c.position = NotAvailable
	c.battery = NotAvailable
	c.graph.Clear()
	c.mu.Unlock()

	log := c.log.WithField("addr", addr)
	if rec.Started() {
		path, err := rec.Save(c.cfg.Dir, c.cfg.Indexer)
		if err != nil {
			log.WithError(err).WithField("file", path).Error("failed to save session")
		} else {
			log.WithField("file", path).WithField("rows", rec.Rows()).Info("saved session")
			c.mu.Lock()
			c.last = path
			c.mu.Unlock()
		}
	}
	c.cfg.Invalidate()
}

// PositionFound sets the displayed sensor position.
func (c *Controller) PositionFound(addr, position string) {
	if position == "" {
		position = NotAvailable
	}
	c.mu.Lock()
	c.position = position
	c.mu.Unlock()
	c.cfg.Invalidate()
}

// BatteryLevel sets the displayed sensor battery level.
func (c *Controller) BatteryLevel(addr string, percent int) {
	c.mu.Lock()
	c.battery = strconv.Itoa(percent) + "%"
	c.mu.Unlock()
	c.cfg.Invalidate()
}

// ValueReceived records a heart rate sample and updates the
// displayed value.
func (c *Controller) ValueReceived(addr string, value int, aux float32) {
	c.value.Store(int64(value))

	c.mu.Lock()
	c.rate = RateText(value)
	if !c.rec.Started() {
		c.rec.Begin(c.cfg.Now())
	}
	c.rec.Add(value, aux)
	c.mu.Unlock()
	c.cfg.Invalidate()
}

// SetDefaultUI resets the displayed values and clears the graph.
func (c *Controller) SetDefaultUI() {
	c.loop.Reset()
	c.value.Store(0)

	c.mu.Lock()
	c.rate = NotAvailableValue
	c.position = NotAvailable
	c.battery = NotAvailable
	c.graph.Clear()
	c.mu.Unlock()
	c.cfg.Invalidate()
}

// SaveState returns the state to retain when the screen is recreated.
func (c *Controller) SaveState() session.State {
	return session.State{
		InProgress: c.loop.Running(),
		Counter:    c.loop.Counter(),
		Value:      c.currentValue(),
	}
}

// RestoreState restores retained state. If the saved state was in
// progress, the refresh loop is resumed from the saved counter.
func (c *Controller) RestoreState(s session.State) {
	c.value.Store(int64(s.Value))
	if s.InProgress {
		c.loop.Resume(s.Counter)
	}
}

// View returns a snapshot of the displayed state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Device:      c.device,
		Connected:   c.connected,
		Rate:        c.rate,
		Position:    c.position,
		Battery:     c.battery,
		Points:      c.graph.Points(),
		LastSession: c.last,
	}
}

// Close stops the refresh loop.
func (c *Controller) Close() {
	c.loop.Stop()
}
