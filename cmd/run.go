package cmd

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli"

	"github.com/spaghettifunk/subsurface/engine"
	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/testbed"
)

// Run opens the window and renders until it is closed, Escape is pressed or
// the process receives SIGINT, SIGTERM or SIGQUIT.
func Run(ctx *cli.Context) error {
	configPath := ctx.String("config")
	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		return err
	}

	appConfig := engine.NewApplicationConfig(cfg, configPath, assetsDir(ctx.String("assets"), configPath))
	appConfig.LogLevel = setupLogging(ctx, appConfig.LogLevel)

	tb := testbed.NewTestGame(appConfig)
	e, err := engine.New(tb.Game)
	if err != nil {
		return err
	}

	if err := e.Initialize(); err != nil {
		core.LogError("engine initialization failed: %s", err)
		_ = e.Shutdown()
		return err
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go watchSignals(sigCh, done, e.Stop)

	runErr := e.Run()
	close(done)
	if err := e.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// watchSignals calls stop on the first signal. It returns once done is
// closed so it never outlives the frame loop.
func watchSignals(sigCh <-chan os.Signal, done <-chan struct{}, stop func()) {
	select {
	case sig, ok := <-sigCh:
		if !ok {
			return
		}
		core.LogInfo("received %s, stopping", sig)
		stop()
	case <-done:
	}
}

// assetsDir defaults to the directory of the config file, or ./assets.
func assetsDir(flag, configPath string) string {
	if flag != "" {
		return flag
	}
	if configPath != "" {
		return filepath.Dir(configPath)
	}
	return "assets"
}
