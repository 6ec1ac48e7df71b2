/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/anima-forward/engine"
	"github.com/spaghettifunk/anima-forward/engine/config"
	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/testbed"
)

func main() {
	path := os.Getenv("ANIMA_CONFIG")
	if path == "" {
		path = "anima.toml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		core.LogFatal("invalid configuration: %+v", err)
	}

	tb, err := testbed.NewTestGame(cfg)
	if err != nil {
		core.LogFatal("%+v", err)
	}

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("%+v", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("initialization failed: %+v", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// The loop owns the GPU, so a signal only asks it to stop.
	go func() {
		<-sigCh
		_ = e.Bus().Post(core.EventContext{Code: core.EVENT_CODE_APPLICATION_QUIT})
	}()

	// run engine
	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %+v", err)
	}
	if runErr != nil {
		core.LogFatal("%+v", runErr)
	}
}
