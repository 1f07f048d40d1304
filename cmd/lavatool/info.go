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
	"sort"
	"sync"

	"github.com/andrew-lunarg/lavatube/packet"
	"github.com/andrew-lunarg/lavatube/replay"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
)

// threadStats counts the packets of one stream.
type threadStats struct {
	Calls    int   `json:"calls"`
	Barriers int   `json:"barriers"`
	Updates  int   `json:"updates"`
	Bytes    int64 `json:"update_bytes"`
}

func infoCmd() *cli.Command {
	var packets bool
	return &cli.Command{
		Name:      "info",
		Usage:     "Print the metadata of a trace",
		ArgsUsage: "<trace>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "packets", Usage: "also count the packets of every thread", Destination: &packets},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cfg, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			dir, err := openTrace(ctx, cmd)
			if err != nil {
				return err
			}
			out := cmd.Root().Writer
			data, err := json.MarshalIndent(dir.Metadata(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			if !packets {
				return nil
			}

			mu := sync.Mutex{}
			stats := map[int]*threadStats{}
			err = scan(ctx, dir, cfg, func(e replay.Event) {
				mu.Lock()
				defer mu.Unlock()
				s, ok := stats[e.Thread]
				if !ok {
					s = &threadStats{}
					stats[e.Thread] = s
				}
				switch e.Type {
				case packet.APICall:
					s.Calls++
				case packet.ThreadBarrier:
					s.Barriers++
				case packet.BufferUpdate, packet.ImageUpdate:
					s.Updates++
					s.Bytes += int64(e.Bytes)
				}
			})
			if err != nil {
				return err
			}
			threads := make([]int, 0, len(stats))
			for t := range stats {
				threads = append(threads, t)
			}
			sort.Ints(threads)
			for _, t := range threads {
				s := stats[t]
				fmt.Fprintf(out, "thread %d: %d calls, %d barriers, %d updates (%d bytes)\n",
					t, s.Calls, s.Barriers, s.Updates, s.Bytes)
			}
			return nil
		},
	}
}
