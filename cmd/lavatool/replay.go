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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/andrew-lunarg/lavatube/calls"
	"github.com/andrew-lunarg/lavatube/core/event/task"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/monitor"
	"github.com/andrew-lunarg/lavatube/replay"
	"github.com/urfave/cli/v3"
)

func replayCmd() *cli.Command {
	var (
		driver      string
		noVirtual   bool
		maxFPS      float64
		endFrame    int
		monitorAddr string
		preload     bool
		selfTest    bool
	)
	return &cli.Command{
		Name:      "replay",
		Usage:     "Replay a trace",
		ArgsUsage: "<trace>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "driver", Usage: "driver to replay on: " + driverNames(), Value: "soft", Destination: &driver},
			&cli.BoolFlag{Name: "no-virtual-swapchain", Usage: "present to the driver's swapchains", Destination: &noVirtual},
			&cli.FloatFlag{Name: "max-fps", Usage: "limit the present rate (0 = unlimited)", Destination: &maxFPS},
			&cli.IntFlag{Name: "end-frame", Usage: "stop at this frame (0 = replay all)", Destination: &endFrame},
			&cli.StringFlag{Name: "monitor-addr", Usage: "serve replay status over HTTP on this address", Destination: &monitorAddr},
			&cli.BoolFlag{Name: "preload", Usage: "read streams into memory before replaying", Destination: &preload},
			&cli.BoolFlag{Name: "self-test", Usage: "check the object registry at every frame end", Destination: &selfTest},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cfg, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			if cmd.IsSet("no-virtual-swapchain") {
				cfg.Replay.VirtualSwapchain = !noVirtual
			}
			if cmd.IsSet("max-fps") {
				cfg.Replay.MaxFPS = maxFPS
			}
			if cmd.IsSet("end-frame") {
				cfg.Replay.EndFrame = endFrame
			}
			if cmd.IsSet("preload") {
				cfg.Replay.Preload = preload
			}
			if cmd.IsSet("self-test") {
				cfg.Replay.SelfTest = selfTest
			}
			if err := cfg.Validate(); err != nil {
				return cli.Exit(err.Error(), 2)
			}

			dir, err := openTrace(ctx, cmd)
			if err != nil {
				return err
			}
			dir.Preload = cfg.Replay.Preload
			d, release, err := newDriver(ctx, driver)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			defer release()

			r := replay.New(d, calls.Table(), cfg.ReplayOptions())
			if monitorAddr != "" {
				mctx, stop := context.WithCancel(ctx)
				h := task.Go(mctx, func(ctx context.Context) error {
					return monitor.New(r).Serve(ctx, monitorAddr)
				})
				defer func() {
					stop()
					if err := h.Result(context.Background()); err != nil {
						log.W(ctx, "Monitor: %v", err)
					}
				}()
			}

			start := time.Now()
			if err := r.Run(ctx, dir); err != nil {
				return err
			}
			elapsed := time.Since(start)
			st := r.Status()
			fmt.Fprintf(cmd.Root().Writer, "Replayed %d frames on %s in %v\n", st.Frame, d.Name(), elapsed.Round(time.Millisecond))
			if n := r.Registry.LiveTotal(); n > 0 {
				log.W(ctx, "%d objects still live at the end of the trace", n)
			}
			return nil
		},
	}
}
