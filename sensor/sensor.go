// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sensor implements a heart rate sensor manager. The manager
// owns the Bluetooth connection to a single sensor, subscribes to heart
// rate notifications and reports device life cycle events and decoded
// values through a Callbacks implementation.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"tinygo.org/x/bluetooth"

	"github.com/kortschak/hrs/battery"
	"github.com/kortschak/hrs/heart"
	"github.com/kortschak/hrs/internal/forkbeard"
)

// Callbacks receives sensor events. Methods may be called from
// goroutines owned by the Bluetooth stack.
type Callbacks interface {
	// DeviceReady is called once the sensor is connected
	// and heart rate notifications are enabled.
	DeviceReady(addr string)
	// DeviceDisconnected is called when the link is lost
	// or closed.
	DeviceDisconnected(addr string)
	// PositionFound is called with the body sensor location.
	// The position is empty if the sensor does not report it.
	PositionFound(addr, position string)
	// ValueReceived is called for each heart rate measurement
	// with the heart rate and the auxiliary analog reading in
	// volts.
	ValueReceived(addr string, value int, aux float32)
}

// BatteryCallbacks is an optional extension of Callbacks that receives
// the sensor battery level.
type BatteryCallbacks interface {
	BatteryLevel(addr string, percent int)
}

// ErrNotFound is returned by Run when no matching sensor is found
// before the scan timeout.
var ErrNotFound = errors.New("sensor not found")

const connectTimeout = 10 * time.Second

// Manager manages the connection to a heart rate sensor.
type Manager struct {
	adapter *bluetooth.Adapter
	cb      Callbacks
	log     logrus.FieldLogger

	// warn throttles logging of measurement
	// decoding failures.
	warn *rate.Limiter

	// noContact is whether the last measurement
	// reported loss of skin contact.
	noContact atomic.Bool

	mu      sync.Mutex
	enabled bool
	addr    string
	lost    chan struct{}
}

// NewManager returns a new Manager using the provided adapter and
// reporting to cb.
func NewManager(adapter *bluetooth.Adapter, cb Callbacks, log logrus.FieldLogger) *Manager {
	return &Manager{
		adapter: adapter,
		cb:      cb,
		log:     log,
		warn:    rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

// Run scans for a sensor, connects to it and reports its events until
// ctx is cancelled or the sensor disconnects. If addr is empty the first
// device advertising the heart rate service is used. Run returns nil
// when the sensor disconnects and may be called again to reconnect.
func (m *Manager) Run(ctx context.Context, addr string, scanTimeout time.Duration) error {
	err := m.enable()
	if err != nil {
		return err
	}

	found, err := m.scan(ctx, addr, scanTimeout)
	if err != nil {
		return err
	}
	addr = found.Address.String()
	log := m.log.WithField("addr", addr)
	log.WithField("name", found.LocalName()).WithField("rssi", found.RSSI).Info("found device")

	// The link may drop before Connect returns.
	lost := m.watch(addr)
	dev, err := m.adapter.Connect(found.Address, bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(connectTimeout),
	})
	if err != nil {
		m.forget()
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	m.noContact.Store(false)

	hr, err := heart.NewRateListener(&dev, func(r heart.Rate, err error) {
		m.handle(addr, r, err)
	})
	if err != nil {
		m.forget()
		dev.Disconnect()
		return fmt.Errorf("failed to start streaming hr: %w", err)
	}

	loc, err := heart.SensorLocation(&dev)
	switch {
	case err == nil:
		m.cb.PositionFound(addr, loc.String())
	case errors.Is(err, forkbeard.ErrNotFound):
		m.cb.PositionFound(addr, "")
	default:
		log.WithError(err).Warn("failed to read sensor position")
		m.cb.PositionFound(addr, "")
	}
	if bc, ok := m.cb.(BatteryCallbacks); ok {
		level, err := battery.Level(&dev)
		if err != nil {
			log.WithError(err).Debug("no battery level")
		} else {
			bc.BatteryLevel(addr, level)
		}
	}

	m.cb.DeviceReady(addr)
	log.Info("device ready")

	select {
	case <-ctx.Done():
		err = errors.Join(hr.Close(), dev.Disconnect())
		if err != nil {
			log.WithError(err).Warn("failed to close device")
		}
		err = ctx.Err()
	case <-lost:
		log.Info("device disconnected")
		err = nil
	}
	m.forget()
	m.cb.DeviceDisconnected(addr)
	return err
}

func (m *Manager) enable() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled {
		return nil
	}
	err := m.adapter.Enable()
	if err != nil {
		return fmt.Errorf("failed to enable bluetooth: %w", err)
	}
	m.adapter.SetConnectHandler(m.connectHandler)
	m.enabled = true
	return nil
}

// watch returns a channel that is closed when the link to addr is lost.
func (m *Manager) watch(addr string) <-chan struct{} {
	lost := make(chan struct{})
	m.mu.Lock()
	m.addr = addr
	m.lost = lost
	m.mu.Unlock()
	return lost
}

// forget stops watching for loss of the current link.
func (m *Manager) forget() {
	m.mu.Lock()
	m.addr = ""
	m.lost = nil
	m.mu.Unlock()
}

func (m *Manager) connectHandler(dev bluetooth.Device, connected bool) {
	if connected {
		return
	}
	m.linkLost(dev.Address.String())
}

func (m *Manager) linkLost(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lost == nil || !strings.EqualFold(addr, m.addr) {
		return
	}
	close(m.lost)
	m.lost = nil
}

// scan returns the first advertisement matching addr, or advertising
// the heart rate service when addr is empty.
func (m *Manager) scan(ctx context.Context, addr string, timeout time.Duration) (bluetooth.ScanResult, error) {
	m.log.Info("scanning...")
	result := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)
	go func() {
		scanErr <- m.adapter.Scan(func(adapter *bluetooth.Adapter, found bluetooth.ScanResult) {
			if !matches(addr, found.Address.String(), found.HasServiceUUID(heart.ServiceUUID)) {
				return
			}
			select {
			case result <- found:
				adapter.StopScan()
			default:
			}
		})
	}()

	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}
	select {
	case found := <-result:
		return found, nil
	case err := <-scanErr:
		if err != nil {
			return bluetooth.ScanResult{}, fmt.Errorf("failed to scan: %w", err)
		}
		return bluetooth.ScanResult{}, ErrNotFound
	case <-timeoutC:
		m.adapter.StopScan()
		return bluetooth.ScanResult{}, ErrNotFound
	case <-ctx.Done():
		m.adapter.StopScan()
		return bluetooth.ScanResult{}, ctx.Err()
	}
}

func matches(want, addr string, hasHRService bool) bool {
	if want == "" {
		return hasHRService
	}
	return strings.EqualFold(want, addr)
}

// handle forwards a decoded notification to the callbacks. Measurements
// taken without skin contact are forwarded; changes in contact are logged.
func (m *Manager) handle(addr string, r heart.Rate, err error) {
	if err != nil {
		if m.warn.Allow() {
			m.log.WithField("addr", addr).WithError(err).Warn("failed to get hr measurement")
		}
		return
	}
	noContact := r.ContactSupported && !r.Contact
	if m.noContact.Swap(noContact) != noContact {
		if noContact {
			m.log.WithField("addr", addr).Info("lost sensor contact")
		} else {
			m.log.WithField("addr", addr).Info("sensor contact restored")
		}
	}
	m.cb.ValueReceived(addr, int(r.HR), r.Voltage())
}
