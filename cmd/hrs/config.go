// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// config is the hrs configuration. Values are taken from flags, then
// the configuration file, then defaults.
type config struct {
	Addr        string        `mapstructure:"addr"`
	Dir         string        `mapstructure:"dir"`
	Interval    time.Duration `mapstructure:"interval"`
	Points      int           `mapstructure:"points"`
	State       string        `mapstructure:"state"`
	LogLevel    string        `mapstructure:"log_level"`
	ScanTimeout time.Duration `mapstructure:"scan_timeout"`
	MediaScan   []string      `mapstructure:"media_scan"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"addr":         "addr",
	"dir":          "dir",
	"interval":     "interval",
	"points":       "points",
	"state":        "state",
	"log-level":    "log_level",
	"scan-timeout": "scan_timeout",
	"media-scan":   "media_scan",
}

func addFlags(f *pflag.FlagSet, dataDir string) {
	f.String("addr", "", "sensor bluetooth address (default first heart rate sensor found)")
	f.String("dir", filepath.Join(dataDir, "sessions"), "session log directory")
	f.Duration("interval", 10*time.Millisecond, "graph refresh and session log interval")
	f.Int("points", 1000, "number of graph points retained")
	f.String("state", "", "screen state file retained across restarts (disabled if empty)")
	f.String("log-level", "info", "log level")
	f.Duration("scan-timeout", 30*time.Second, "sensor scan timeout (no timeout if zero)")
	f.StringSlice("media-scan", nil, "command run with the path of each saved session log")
}

// loadConfig reads the configuration from the flags in f and the
// configuration file. If path is empty, hrs.yaml is searched for in
// dirs and a missing file is not an error.
func loadConfig(v *viper.Viper, f *pflag.FlagSet, path string, dirs ...string) (config, error) {
	for flag, key := range flagKeys {
		err := v.BindPFlag(key, f.Lookup(flag))
		if err != nil {
			return config{}, fmt.Errorf("failed to bind %s: %w", flag, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hrs")
		v.SetConfigType("yaml")
		for _, d := range dirs {
			v.AddConfigPath(d)
		}
	}
	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}
	var cfg config
	err = v.Unmarshal(&cfg)
	if err != nil {
		return config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if len(cfg.MediaScan) == 0 {
		cfg.MediaScan = nil
	}
	if cfg.Interval <= 0 {
		return config{}, fmt.Errorf("invalid interval: %v", cfg.Interval)
	}
	if cfg.Points <= 0 {
		return config{}, fmt.Errorf("invalid number of points: %d", cfg.Points)
	}
	return cfg, nil
}

func newLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.Out = os.Stderr
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nil
}
