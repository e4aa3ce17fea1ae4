// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The hrs command is a heart rate monitor. It connects to a Bluetooth
// heart rate sensor, shows the current heart rate and a live graph and
// writes a session log when the sensor disconnects.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"gioui.org/app"
	"gioui.org/io/system"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"tinygo.org/x/bluetooth"

	"github.com/kortschak/hrs/cmd/internal/screen"
	"github.com/kortschak/hrs/cmd/internal/session"
	"github.com/kortschak/hrs/sensor"
)

func main() {
	go func() {
		if err := newRootCmd().Execute(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}()
	app.Main()
}

func newRootCmd() *cobra.Command {
	dataDir, err := app.DataDir()
	if err != nil {
		dataDir = "."
	} else {
		dataDir = filepath.Join(dataDir, "hrs")
	}

	var cfgPath string
	cmd := &cobra.Command{
		Use:           "hrs",
		Short:         "Heart rate monitor",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(viper.New(), cmd.Flags(), cfgPath, dataDir, ".")
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "configuration file (default hrs.yaml in the data or working directory)")
	addFlags(cmd.Flags(), dataDir)
	return cmd
}

func run(ctx context.Context, cfg config, log *logrus.Logger) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	w := new(app.Window)
	w.Option(app.Title("Heart Rate"), app.Size(cardWidth*2, cardHeight*2+96))

	c := screen.New(screen.Config{
		Interval:   cfg.Interval,
		Points:     cfg.Points,
		Dir:        cfg.Dir,
		Indexer:    session.CommandIndexer{Args: cfg.MediaScan, Timeout: 10 * time.Second},
		Invalidate: w.Invalidate,
		Log:        log,
	})
	c.SetDefaultUI()
	if cfg.State != "" {
		restoreState(c, cfg.State, log)
	}

	m := sensor.NewManager(bluetooth.DefaultAdapter, c, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		monitor(ctx, func(ctx context.Context) error {
			return m.Run(ctx, cfg.Addr, cfg.ScanTimeout)
		}, reconnectPause, log)
	}()
	go func() {
		<-ctx.Done()
		w.Perform(system.ActionClose)
	}()

	err := loop(w, c, log)
	if cfg.State != "" {
		serr := session.WriteState(cfg.State, c.SaveState())
		if serr != nil {
			log.WithError(serr).Error("failed to save screen state")
		}
	}
	cancel()
	<-done
	c.Close()
	return err
}

// reconnectPause is the delay between sensor connection attempts.
const reconnectPause = 2 * time.Second

// monitor calls run until ctx is cancelled, waiting pause between
// calls so that a sensor can be reconnected after it disconnects.
func monitor(ctx context.Context, run func(context.Context) error, pause time.Duration, log logrus.FieldLogger) {
	for {
		err := run(ctx)
		if ctx.Err() != nil {
			return
		}
		switch {
		case err == nil:
			log.Info("sensor disconnected, reconnecting")
		case errors.Is(err, sensor.ErrNotFound):
			log.Info("no sensor found, scanning again")
		default:
			log.WithError(err).Warn("sensor connection failed")
		}
		t := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// restoreState restores the controller from the state file at path
// and removes the file so that the state is only restored once.
func restoreState(c *screen.Controller, path string, log logrus.FieldLogger) {
	s, err := session.ReadState(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.WithError(err).Warn("failed to read screen state")
		}
		return
	}
	log.WithField("state", fmt.Sprintf("%+v", s)).Debug("restore screen state")
	c.RestoreState(s)
	err = os.Remove(path)
	if err != nil {
		log.WithError(err).Warn("failed to remove screen state")
	}
}
