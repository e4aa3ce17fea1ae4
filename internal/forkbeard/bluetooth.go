// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package forkbeard provides helper functions for interacting with
// Bluetooth devices.
package forkbeard

import (
	"errors"
	"fmt"
	"io"

	"tinygo.org/x/bluetooth"
)

// ErrNotFound is returned when a device does not expose a requested
// service or characteristic.
var ErrNotFound = errors.New("device characteristic not found")

// DeviceCharacteristic returns a specified bluetooth.DeviceCharacteristic
// from a Bluetooth service. If the device does not provide the
// characteristic, the returned error wraps ErrNotFound.
func DeviceCharacteristic(dev *bluetooth.Device, srvID, charID bluetooth.UUID) (bluetooth.DeviceCharacteristic, error) {
	srv, err := dev.DiscoverServices([]bluetooth.UUID{srvID})
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("failed to discover service %s: %w", srvID, err)
	}
	for _, s := range srv {
		char, err := s.DiscoverCharacteristics([]bluetooth.UUID{charID})
		if err != nil {
			return bluetooth.DeviceCharacteristic{}, fmt.Errorf("failed to discover characteristic %s: %w", charID, err)
		}
		if len(char) == 0 {
			continue
		}
		return char[0], nil
	}
	return bluetooth.DeviceCharacteristic{}, fmt.Errorf("%s/%s: %w", srvID, charID, ErrNotFound)
}

// ReadCharacteristic reads data from a Bluetooth characteristic.
func ReadCharacteristic(char bluetooth.DeviceCharacteristic) ([]byte, error) {
	mtu, err := char.GetMTU()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain mtu of characteristic: %w", err)
	}
	buf := make([]byte, mtu)
	n, err := char.Read(buf)
	if err != nil && err != io.EOF {
		return buf[:n], fmt.Errorf("failed to read response from characteristic: %w", err)
	}
	return buf[:n], nil
}

// ReadByte discovers and reads a single byte valued characteristic.
func ReadByte(dev *bluetooth.Device, srvID, charID bluetooth.UUID) (byte, error) {
	char, err := DeviceCharacteristic(dev, srvID, charID)
	if err != nil {
		return 0, err
	}
	resp, err := ReadCharacteristic(char)
	if err != nil {
		return 0, err
	}
	if len(resp) == 0 {
		return 0, fmt.Errorf("empty response from characteristic %s: %w", charID, io.ErrUnexpectedEOF)
	}
	return resp[0], nil
}
