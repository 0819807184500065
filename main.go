/*
vkframe renders one of the testbed demos in a window.

	vkframe -demo textured-cube -samples 4 -config vkframe.toml
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine"
	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/testbed"
)

func main() {
	cfg, err := engine.ParseFlags(os.Args[0], os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		core.LogFatal("%v", err)
	}

	game, err := testbed.New(cfg)
	if err != nil {
		core.LogFatal("%+v", err)
	}

	e, err := engine.New(game)
	if err != nil {
		core.LogFatal("%v", err)
	}

	if err := e.Initialize(); err != nil {
		core.LogFatal("failed to initialize: %+v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := e.Run(ctx)
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %v", err)
	}
	if runErr != nil {
		core.LogFatal("%+v", runErr)
	}
}
