// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package battery implements reading of the standard 180f Bluetooth
// battery service characteristic.
package battery

import (
	"fmt"

	"tinygo.org/x/bluetooth"

	"github.com/kortschak/hrs/internal/forkbeard"
)

const (
	ServiceID             = "180f"
	LevelCharacteristicID = "2a19"
)

var (
	batteryService             = must(bluetooth.ParseUUID(ServiceID))
	batteryLevelCharacteristic = must(bluetooth.ParseUUID(LevelCharacteristicID))
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Level returns the battery level percentage for the provided Bluetooth
// device. Devices without a battery service return an error wrapping
// forkbeard.ErrNotFound.
func Level(dev *bluetooth.Device) (int, error) {
	// https://www.bluetooth.com/specifications/specs/battery-service/

	b, err := forkbeard.ReadByte(dev, batteryService, batteryLevelCharacteristic)
	if err != nil {
		return 0, fmt.Errorf("failed to read battery level: %w", err)
	}
	return Percent(b)
}

// Percent validates a raw battery level characteristic value.
func Percent(b byte) (int, error) {
	if b > 100 {
		return 0, fmt.Errorf("battery level out of range: %d", b)
	}
	return int(b), nil
}
