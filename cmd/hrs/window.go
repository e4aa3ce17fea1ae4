// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gioui.org/app"
	"gioui.org/font/gofont"
	"gioui.org/io/event"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"gioui.org/x/explorer"
	"github.com/sirupsen/logrus"

	"github.com/kortschak/hrs/cmd/internal/screen"
)

// loop runs the window event loop until the window is destroyed.
func loop(w *app.Window, c *screen.Controller, log logrus.FieldLogger) error {
	expl := explorer.NewExplorer(w)
	th := material.NewTheme()
	th.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))

	events := make(chan event.Event)
	ack := make(chan struct{})

	go func() {
		for {
			ev := w.Event()
			events <- ev
			<-ack
			if _, ok := ev.(app.DestroyEvent); ok {
				return
			}
		}
	}()
	var (
		ops    op.Ops
		export widget.Clickable
	)
	for e := range events {
		expl.ListenEvents(e)
		switch e := e.(type) {
		case app.DestroyEvent:
			ack <- struct{}{}
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			v := c.View()
			if export.Clicked(gtx) && v.LastSession != "" {
				go func(path string) {
					err := exportSession(expl, path)
					if err != nil {
						log.WithError(err).WithField("file", path).Error("failed to export session")
					}
				}(v.LastSession)
			}
			card := renderCard(v)
			layout.Flex{Axis: layout.Vertical}.Layout(gtx,
				layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
					return widget.Image{
						Src: paint.NewImageOp(card),
						Fit: widget.Contain,
					}.Layout(gtx)
				}),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return layout.UniformInset(unit.Dp(4)).Layout(gtx,
						material.Body2(th, status(v)).Layout,
					)
				}),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					btn := material.Button(th, &export, "Export session")
					if v.LastSession == "" {
						gtx = gtx.Disabled()
					}
					return layout.UniformInset(unit.Dp(4)).Layout(gtx, btn.Layout)
				}),
			)
			e.Frame(gtx.Ops)
		}
		ack <- struct{}{}
	}
	return nil
}

// status returns the status line for v.
func status(v screen.View) string {
	var s strings.Builder
	if v.Connected {
		s.WriteString(v.Device)
	} else {
		s.WriteString("not connected")
	}
	s.WriteString("  position: ")
	s.WriteString(v.Position)
	s.WriteString("  battery: ")
	s.WriteString(v.Battery)
	if v.LastSession != "" {
		s.WriteString("  last: ")
		s.WriteString(filepath.Base(v.LastSession))
	}
	return s.String()
}

// exportSession copies the session log at path to a file chosen by
// the user.
func exportSession(expl *explorer.Explorer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := expl.CreateFile(filepath.Base(path))
	if err != nil {
		if errors.Is(err, explorer.ErrUserDecline) {
			return nil
		}
		return err
	}
	_, err = io.Copy(dst, src)
	return errors.Join(err, dst.Close())
}
