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
	"io"
	"strings"
	"sync"

	"github.com/andrew-lunarg/lavatube/api/soft"
	"github.com/andrew-lunarg/lavatube/calls"
	"github.com/andrew-lunarg/lavatube/config"
	"github.com/andrew-lunarg/lavatube/packet"
	"github.com/andrew-lunarg/lavatube/replay"
	"github.com/andrew-lunarg/lavatube/trace"
	"github.com/urfave/cli/v3"
)

func dumpCmd() *cli.Command {
	var thread, startFrame int
	return &cli.Command{
		Name:      "dump",
		Usage:     "List the packets of a trace",
		ArgsUsage: "<trace>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "thread", Usage: "only list this thread (-1 = all)", Value: -1, Destination: &thread},
			&cli.IntFlag{Name: "start-frame", Usage: "list packets from this frame on", Destination: &startFrame},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cfg, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			if cmd.IsSet("start-frame") {
				cfg.Replay.StartFrame = startFrame
			}
			if err := cfg.Validate(); err != nil {
				return cli.Exit(err.Error(), 2)
			}
			dir, err := openTrace(ctx, cmd)
			if err != nil {
				return err
			}
			out := cmd.Root().Writer
			mu := sync.Mutex{}
			return scan(ctx, dir, cfg, func(e replay.Event) {
				if thread >= 0 && e.Thread != thread {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				writeEvent(out, e)
			})
		},
	}
}

// scan replays src on the software driver, reporting every packet to f.
// Packets carry no length, so listing them means decoding them.
func scan(ctx context.Context, src trace.Source, cfg config.Config, f func(replay.Event)) error {
	opts := cfg.ReplayOptions()
	opts.Observer = f
	r := replay.New(soft.New(), calls.Table(), opts)
	return r.Run(ctx, src)
}

func writeEvent(w io.Writer, e replay.Event) {
	switch e.Type {
	case packet.APICall:
		fmt.Fprintf(w, "T%d #%d %s\n", e.Thread, e.Call, e.Name)
	case packet.ThreadBarrier:
		targets := make([]string, len(e.Targets))
		for i, t := range e.Targets {
			targets[i] = fmt.Sprintf("T%d>=%d", t.Thread, t.Count)
		}
		fmt.Fprintf(w, "T%d #%d %v %s\n", e.Thread, e.Call, e.Type, strings.Join(targets, " "))
	case packet.BufferUpdate, packet.ImageUpdate:
		fmt.Fprintf(w, "T%d #%d %v %d: %d bytes\n", e.Thread, e.Call, e.Type, e.Object, e.Bytes)
	case packet.End:
		fmt.Fprintf(w, "T%d end after %d calls\n", e.Thread, e.Call)
	}
}
