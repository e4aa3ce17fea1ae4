// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package heart implements handling of the standard 180d Bluetooth
// heart rate service notifications.
package heart

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/kortschak/hrs/internal/forkbeard"
)

const (
	RateServiceID     = "180d"
	RateMeasurementID = "2a37"
	SensorLocationID  = "2a38"
)

var (
	hrService      = must(bluetooth.ParseUUID(RateServiceID))
	hrMeasurement  = must(bluetooth.ParseUUID(RateMeasurementID))
	sensorLocation = must(bluetooth.ParseUUID(SensorLocationID))
)

// ServiceUUID is the heart rate service UUID, suitable for scan filtering.
var ServiceUUID = hrService

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// RateListener implements handling of heart rate notifications.
type RateListener struct {
	char bluetooth.DeviceCharacteristic
}

// NewRateListener returns a new RateListener for the provided Bluetooth
// device. The h function is called with received heart rate notifications.
func NewRateListener(dev *bluetooth.Device, h func(Rate, error)) (*RateListener, error) {
	char, err := forkbeard.DeviceCharacteristic(dev, hrService, hrMeasurement)
	if err != nil {
		return nil, fmt.Errorf("failed to get heart rate device characteristic: %w", err)
	}
	err = char.EnableNotifications(func(buf []byte) {
		var m Rate
		err := m.UnmarshalBinary(buf)
		h(m, err)
	})
	if err != nil {
		return nil, err
	}
	return &RateListener{char: char}, nil
}

// Close disables heart rate notifications from the connected sensor.
func (l *RateListener) Close() error { return l.char.EnableNotifications(nil) }

// Auxiliary ADC parameters for sensors that append an analog sample.
const (
	ADCMax       = 4096 // 12-bit
	ADCReference = 3.6  // V
)

// Rate is a heart rate measurement.
type Rate struct {
	HR               uint16
	RR               []time.Duration
	Energy           int // kJ
	EnergyExpended   bool
	Contact          bool
	ContactSupported bool

	// ADC is the raw auxiliary analog sample when
	// ADCPresent is true.
	ADC        uint16
	ADCPresent bool
}

// Voltage returns the auxiliary analog reading in volts, or zero
// if the measurement did not carry one.
func (m Rate) Voltage() float32 {
	if !m.ADCPresent {
		return 0
	}
	return float32(m.ADC) * ADCReference / ADCMax
}

func (m *Rate) UnmarshalBinary(data []byte) error {
	// https://www.bluetooth.com/specifications/specs/heart-rate-service-1-0/

	if len(data) < 2 {
		return io.ErrUnexpectedEOF
	}

	// 3.1.1.1. Flags Field
	// bit 0x20 is reserved by the Bluetooth SIG and
	// is used by analog front-end sensors to signal a
	// trailing 12-bit ADC sample ahead of RR data.
	// | 0x20 | 0x10 | 0x8 | 0x4  0x2 | 0x1 |
	// | adc  |  rr  | nrg | scs  cnt | fmt |
	hrFormat := int(data[0] & 0x01)
	contact := data[0]&0x6 == 0x6
	contactSupported := data[0]&0x4 != 0
	energyExpended := data[0]&0x8 != 0
	rrPresent := data[0]&0x10 != 0
	adcPresent := data[0]&0x20 != 0
	offset := 1

	// A sensor that has lost skin contact still reports
	// its last measured value; callers check Contact.
	if len(data) < offset+1+hrFormat {
		return io.ErrUnexpectedEOF
	}
	var hrValue uint16
	if hrFormat == 1 {
		hrValue = binary.LittleEndian.Uint16(data[offset:])
	} else {
		hrValue = uint16(data[offset])
	}
	offset += 1 + hrFormat

	energy := -1
	if energyExpended {
		if len(data) < offset+2 {
			return io.ErrUnexpectedEOF
		}
		energy = int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
	}

	var adc uint16
	if adcPresent {
		if len(data) < offset+2 {
			return io.ErrUnexpectedEOF
		}
		adc = binary.LittleEndian.Uint16(data[offset:]) & (ADCMax - 1)
		offset += 2
	}

	var rr []time.Duration
	if rrPresent {
		rrData := data[offset:]
		rr = make([]time.Duration, 0, len(rrData)/2)
		for i := 0; i+1 < len(rrData); i += 2 {
			rr = append(rr, time.Duration(binary.LittleEndian.Uint16(rrData[i:]))*time.Second/1024)
		}
	}

	*m = Rate{
		HR:               hrValue,
		RR:               rr,
		Energy:           energy,
		EnergyExpended:   energyExpended,
		Contact:          contact,
		ContactSupported: contactSupported,
		ADC:              adc,
		ADCPresent:       adcPresent,
	}
	return nil
}

// Location is a body sensor location.
type Location uint8

const (
	Other Location = iota
	Chest
	Wrist
	Finger
	Hand
	EarLobe
	Foot
)

var locationNames = [...]string{
	Other:   "Other",
	Chest:   "Chest",
	Wrist:   "Wrist",
	Finger:  "Finger",
	Hand:    "Hand",
	EarLobe: "Ear Lobe",
	Foot:    "Foot",
}

func (l Location) String() string {
	if int(l) < len(locationNames) {
		return locationNames[l]
	}
	return fmt.Sprintf("Location(%d)", uint8(l))
}

// SensorLocation returns the body location of the sensor for the
// provided Bluetooth device. Sensors that do not expose the body
// sensor location characteristic return an error wrapping
// forkbeard.ErrNotFound.
func SensorLocation(dev *bluetooth.Device) (Location, error) {
	b, err := forkbeard.ReadByte(dev, hrService, sensorLocation)
	if err != nil {
		return 0, fmt.Errorf("failed to read body sensor location: %w", err)
	}
	return Location(b), nil
}
