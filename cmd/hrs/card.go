// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"time"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freesans"

	"github.com/kortschak/hrs/cmd/internal/graph"
	"github.com/kortschak/hrs/cmd/internal/screen"
)

const (
	cardWidth  = 296
	cardHeight = 128
	panelWidth = 72
)

var black = color.RGBA{A: 0xff}

// renderCard renders the heart rate panel and the rate graph for v.
func renderCard(v screen.View) *image.Gray {
	card := image.NewGray(image.Rectangle{Max: image.Point{X: cardWidth, Y: cardHeight}})
	blank(card)

	drawRate(subDrawImage(card, image.Rectangle{
		Min: image.Point{X: 0, Y: 0},
		Max: image.Point{X: panelWidth, Y: cardHeight},
	}), v.Rate, v.Position)
	plotRate(subDrawImage(card, image.Rectangle{
		Min: image.Point{X: panelWidth, Y: 0},
		Max: image.Point{X: cardWidth, Y: cardHeight},
	}), v.Points)

	return card
}

func drawRate(img draw.Image, rate, position string) {
	width := img.Bounds().Dx()
	yOffset := -10

	hrFont := &freesans.Bold18pt7b
	_, hrW := tinyfont.LineWidth(hrFont, rate)
	tinyfont.WriteLine(
		displayShim{img},
		hrFont,
		int16(width-int(hrW))/2, int16(int(hrFont.YAdvance)+yOffset), rate,
		black,
	)

	posFont := &freesans.Regular9pt7b
	_, posW := tinyfont.LineWidth(posFont, position)
	tinyfont.WriteLine(
		displayShim{img},
		posFont,
		int16(width-int(posW))/2, int16(int(posFont.YAdvance)+int(hrFont.YAdvance)+yOffset), position,
		black,
	)
}

// plotRate plots the most recent points that fit in img, one point
// per column, and labels the elapsed time of the last point.
func plotRate(img draw.Image, pts []graph.Point) {
	width := img.Bounds().Dx()
	if len(pts) > width {
		pts = pts[len(pts)-width:]
	}
	if len(pts) < 2 {
		return
	}

	min := pts[0].Value
	max := min
	for _, p := range pts[1:] {
		if p.Value < min {
			min = p.Value
		}
		if p.Value > max {
			max = p.Value
		}
	}
	const minRange = 20
	height := img.Bounds().Dy() - 1
	y := func(v int) int { return height - scale(v, min, max, minRange, height) }
	for i, p := range pts[1:] {
		line(img, i, y(pts[i].Value), i+1, y(p.Value), black)
	}

	last := pts[len(pts)-1].Elapsed
	label := strconv.FormatFloat(last.Seconds(), 'f', 1, 64) + "s"
	if last >= time.Hour {
		label = last.Truncate(time.Second).String()
	}
	font := &freesans.Regular9pt7b
	_, w := tinyfont.LineWidth(font, label)
	tinyfont.WriteLine(displayShim{img}, font, int16(width-int(w)), int16(font.YAdvance), label, black)
}
