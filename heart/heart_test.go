// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heart

import (
	"errors"
	"io"
	"reflect"
	"testing"
	"time"
)

var rateTests = []struct {
	name    string
	data    []byte
	want    Rate
	wantErr error
}{
	{
		name: "uint8",
		data: []byte{0x00, 72},
		want: Rate{HR: 72, Energy: -1},
	},
	{
		name: "uint16",
		data: []byte{0x01, 0x2c, 0x01},
		want: Rate{HR: 300, Energy: -1},
	},
	{
		name: "contact_rr",
		data: []byte{0x16, 72, 0x00, 0x04, 0x00, 0x02},
		want: Rate{
			HR:               72,
			RR:               []time.Duration{time.Second, time.Second / 2},
			Energy:           -1,
			Contact:          true,
			ContactSupported: true,
		},
	},
	{
		name: "energy",
		data: []byte{0x08, 60, 0x10, 0x00},
		want: Rate{HR: 60, Energy: 16, EnergyExpended: true},
	},
	{
		name: "adc",
		data: []byte{0x20, 80, 0x00, 0x08},
		want: Rate{HR: 80, Energy: -1, ADC: 2048, ADCPresent: true},
	},
	{
		name: "adc_masked_rr",
		data: []byte{0x30, 80, 0xff, 0xff, 0x00, 0x04},
		want: Rate{HR: 80, Energy: -1, ADC: 4095, ADCPresent: true, RR: []time.Duration{time.Second}},
	},
	{
		name: "rr_odd_trailing_byte",
		data: []byte{0x10, 50, 0x00, 0x04, 0x01},
		want: Rate{HR: 50, Energy: -1, RR: []time.Duration{time.Second}},
	},
	{
		name: "no_contact",
		data: []byte{0x04, 72},
		want: Rate{HR: 72, Energy: -1, ContactSupported: true},
	},
	{
		name: "no_contact_uint16",
		data: []byte{0x05, 0x2c, 0x01},
		want: Rate{HR: 300, Energy: -1, ContactSupported: true},
	},
	{
		name:    "empty",
		data:    nil,
		wantErr: io.ErrUnexpectedEOF,
	},
	{
		name:    "short_uint16",
		data:    []byte{0x01, 0x2c},
		wantErr: io.ErrUnexpectedEOF,
	},
	{
		name:    "short_energy",
		data:    []byte{0x08, 60, 0x10},
		wantErr: io.ErrUnexpectedEOF,
	},
	{
		name:    "short_adc",
		data:    []byte{0x20, 60, 0x10},
		wantErr: io.ErrUnexpectedEOF,
	},
}

func TestRateUnmarshalBinary(t *testing.T) {
	for _, test := range rateTests {
		t.Run(test.name, func(t *testing.T) {
			var got Rate
			err := got.UnmarshalBinary(test.data)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("unexpected error: got:%v want:%v", err, test.wantErr)
			}
			if err != nil {
				return
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("unexpected result:\ngot: %#v\nwant:%#v", got, test.want)
			}
		})
	}
}

func TestVoltage(t *testing.T) {
	for _, test := range []struct {
		rate Rate
		want float32
	}{
		{rate: Rate{}, want: 0},
		{rate: Rate{ADC: 2048}, want: 0},
		{rate: Rate{ADC: 0, ADCPresent: true}, want: 0},
		{rate: Rate{ADC: 2048, ADCPresent: true}, want: 1.8},
		{rate: Rate{ADC: 1024, ADCPresent: true}, want: 0.9},
	} {
		got := test.rate.Voltage()
		if diff := got - test.want; diff > 1e-5 || diff < -1e-5 {
			t.Errorf("unexpected voltage for %+v: got:%v want:%v", test.rate, got, test.want)
		}
	}
}

func TestLocationString(t *testing.T) {
	for _, test := range []struct {
		loc  Location
		want string
	}{
		{loc: Other, want: "Other"},
		{loc: Chest, want: "Chest"},
		{loc: EarLobe, want: "Ear Lobe"},
		{loc: Foot, want: "Foot"},
		{loc: 7, want: "Location(7)"},
	} {
		if got := test.loc.String(); got != test.want {
			t.Errorf("unexpected string for %d: got:%q want:%q", test.loc, got, test.want)
		}
	}
}
