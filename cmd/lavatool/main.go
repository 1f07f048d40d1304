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

// The lavatool command inspects and replays lavatube traces.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/andrew-lunarg/lavatube/config"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/trace"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "lavatool",
		Usage: "Inspect and replay lavatube traces",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a YAML config file"},
			&cli.StringFlag{Name: "log-level", Usage: "verbose, debug, info, warning or error"},
			&cli.BoolFlag{Name: "log-json", Usage: "write logs as JSON lines"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			infoCmd(),
			dumpCmd(),
			replayCmd(),
		},
	}
}

// setup loads the configuration, applies the global flags and installs the
// log handler.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, config.Config, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return ctx, cfg, err
		}
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-json") {
		cfg.Log.JSON = cmd.Bool("log-json")
	}
	ctx = log.PutHandler(ctx, cfg.Log.Handler(os.Stderr))
	ctx = log.PutFilter(ctx, log.SeverityFilter(cfg.Log.Severity()))
	return ctx, cfg, nil
}

// openTrace opens the trace directory named by the command's only argument.
func openTrace(ctx context.Context, cmd *cli.Command) (*trace.Dir, error) {
	if cmd.NArg() != 1 {
		return nil, cli.Exit(fmt.Sprintf("%s expects one trace directory", cmd.Name), 2)
	}
	return trace.Open(ctx, cmd.Args().First())
}
