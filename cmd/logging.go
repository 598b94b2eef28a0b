package cmd

import (
	"github.com/urfave/cli"

	"github.com/spaghettifunk/subsurface/engine/core"
)

// setupLogging applies the config level, then lets -v and -vv raise it.
func setupLogging(ctx *cli.Context, level core.LogLevel) core.LogLevel {
	if ctx.GlobalBool("v") && level > core.LogLevelInfo {
		level = core.LogLevelInfo
	}
	if ctx.GlobalBool("vv") {
		level = core.LogLevelDebug
	}
	core.SetLogLevel(level)
	return level
}
