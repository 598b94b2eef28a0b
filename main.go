/*
Subsurface renders a translucent torus lit by an orbiting spot light,
with shadow-map based subsurface scattering on Vulkan.
*/
package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/spaghettifunk/subsurface/cmd"
)

func main() {
	runFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "assets/config.toml",
			Usage: "TOML config file, watched for [shading] changes",
		},
		cli.StringFlag{
			Name:  "assets",
			Usage: "asset directory (defaults to the config file's directory)",
		},
	}

	app := cli.NewApp()
	app.Name = "subsurface"
	app.Usage = "real-time subsurface scattering demo"
	app.Version = "0.1.0"
	app.Flags = append([]cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}, runFlags...)
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "open the window and render the scene",
			Flags:  runFlags,
			Action: cmd.Run,
		},
		{
			Name:   "list-devices",
			Usage:  "list Vulkan physical devices",
			Action: cmd.ListDevices,
		},
	}
	app.Action = cmd.Run

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
