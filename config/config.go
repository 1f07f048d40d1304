// Copyright (C) 2026 The lavatube Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the settings of captures and replays, read from YAML.
package config

import (
	"io"
	"os"
	"time"

	"github.com/andrew-lunarg/lavatube/capture"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/memory"
	"github.com/andrew-lunarg/lavatube/replay"
	"github.com/andrew-lunarg/lavatube/replay/present"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the settings file.
type Config struct {
	Capture Capture `yaml:"capture"`
	Replay  Replay  `yaml:"replay"`
	Log     Log     `yaml:"log"`
}

type Capture struct {
	// BlockSize is the granularity of memory diffs, in bytes.
	BlockSize uint64 `yaml:"block_size"`
	SelfTest  bool   `yaml:"self_test"`
}

type Replay struct {
	VirtualSwapchain bool          `yaml:"virtual_swapchain"`
	BarrierTimeout   time.Duration `yaml:"barrier_timeout"`
	FenceTimeout     time.Duration `yaml:"fence_timeout"`
	// MaxFPS paces presents. Zero is unpaced.
	MaxFPS   float64 `yaml:"max_fps"`
	SelfTest bool    `yaml:"self_test"`
	// Preload reads stream files into memory before replaying.
	Preload bool `yaml:"preload"`
	// StartFrame is the first frame reported by dump and the replay observer.
	StartFrame int `yaml:"start_frame"`
	// EndFrame stops the replay at a frame. Zero replays everything.
	EndFrame int `yaml:"end_frame"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Capture: Capture{BlockSize: memory.DefaultBlockSize},
		Replay: Replay{
			VirtualSwapchain: true,
			BarrierTimeout:   30 * time.Second,
			FenceTimeout:     10 * time.Second,
		},
		Log: Log{Level: "info"},
	}
}

// Parse reads settings from YAML. Values missing from data keep their
// defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "Parsing config")
	}
	return cfg, cfg.Validate()
}

// Load reads the settings file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Validate returns an error for settings that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.Capture.BlockSize == 0:
		return errors.New("capture.block_size must be positive")
	case c.Replay.BarrierTimeout <= 0:
		return errors.New("replay.barrier_timeout must be positive")
	case c.Replay.FenceTimeout <= 0:
		return errors.New("replay.fence_timeout must be positive")
	case c.Replay.MaxFPS < 0:
		return errors.New("replay.max_fps must not be negative")
	case c.Replay.EndFrame < 0:
		return errors.New("replay.end_frame must not be negative")
	case c.Replay.StartFrame < 0:
		return errors.New("replay.start_frame must not be negative")
	case c.Replay.EndFrame > 0 && c.Replay.StartFrame >= c.Replay.EndFrame:
		return errors.New("replay.start_frame must come before replay.end_frame")
	}
	return nil
}

// Severity returns the configured log level.
func (l Log) Severity() log.Severity { return log.ParseSeverity(l.Level) }

// Handler returns a log handler writing to w at the configured level.
func (l Log) Handler(w io.Writer) log.Handler {
	if l.JSON {
		return log.JSON(w, l.Severity())
	}
	return log.Text(w, l.Severity())
}

// CaptureOptions returns the capture settings.
func (c Config) CaptureOptions() capture.Options {
	return capture.Options{BlockSize: c.Capture.BlockSize, SelfTest: c.Capture.SelfTest}
}

// ReplayOptions returns the replay settings.
func (c Config) ReplayOptions() replay.Options {
	return replay.Options{
		BarrierTimeout: c.Replay.BarrierTimeout,
		StartFrame:     c.Replay.StartFrame,
		EndFrame:       c.Replay.EndFrame,
		SelfTest:       c.Replay.SelfTest,
		Present: present.Options{
			Virtual:      c.Replay.VirtualSwapchain,
			FenceTimeout: c.Replay.FenceTimeout,
			MaxFPS:       c.Replay.MaxFPS,
		},
	}
}
