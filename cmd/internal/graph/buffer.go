// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package graph implements the bounded point series backing the heart
// rate line chart.
package graph

import "time"

// Point is a single chart point.
type Point struct {
	Elapsed time.Duration
	Value   int
}

// Buffer is a ring of chart points. When full, appending a point
// discards the oldest.
type Buffer struct {
	data       []Point
	head, tail int
	full       bool
}

func NewBuffer(n int) *Buffer {
	return &Buffer{data: make([]Point, n)}
}

func (b *Buffer) Len() int {
	switch {
	case b.full:
		return len(b.data)
	case b.head <= b.tail:
		return b.tail - b.head
	}
	return len(b.data) - b.head + b.tail
}

func (b *Buffer) Size() int {
	return len(b.data)
}

// Append adds points to the end of the series.
func (b *Buffer) Append(pts ...Point) {
	if len(b.data) == 0 {
		return
	}
	for _, p := range pts {
		b.data[b.tail] = p
		b.tail = (b.tail + 1) % len(b.data)
		if b.full {
			b.head = b.tail
			continue
		}
		b.full = b.tail == b.head
	}
}

// Clear removes all points.
func (b *Buffer) Clear() {
	clear(b.data)
	b.head, b.tail = 0, 0
	b.full = false
}

// CopyTo copies the series into dst, oldest first, and returns
// the number of points copied.
func (b *Buffer) CopyTo(dst []Point) int {
	if b.Len() == 0 {
		return 0
	}
	if b.head < b.tail {
		return copy(dst, b.data[b.head:b.tail])
	}
	n := copy(dst, b.data[b.head:])
	n += copy(dst[n:], b.data[:b.tail])
	return n
}

// Points returns a copy of the series, oldest first.
func (b *Buffer) Points() []Point {
	dst := make([]Point, b.Len())
	b.CopyTo(dst)
	return dst
}

// Last returns the most recently appended point.
func (b *Buffer) Last() (Point, bool) {
	if b.Len() == 0 {
		return Point{}, false
	}
	i := b.tail - 1
	if i < 0 {
		i = len(b.data) - 1
	}
	return b.data[i], true
}
