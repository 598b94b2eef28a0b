package cmd

import (
	"bytes"
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
	"github.com/spaghettifunk/subsurface/engine/renderer/vulkan"
)

// ListDevices prints the Vulkan physical devices and whether each one can
// run the renderer.
func ListDevices(ctx *cli.Context) error {
	setupLogging(ctx, core.LogLevelWarn)

	if err := glfw.Init(); err != nil {
		err := fmt.Errorf("failed to initialize glfw: %w", err)
		core.LogError(err.Error())
		return err
	}
	defer glfw.Terminate()

	devices, err := vulkan.ListDevices("subsurface")
	if err != nil {
		return err
	}
	fmt.Print(deviceTable(devices))
	return nil
}

func deviceTable(devices []metadata.DeviceInfo) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Device", "Type", "API version", "Driver version", "Suitable"})
	for _, d := range devices {
		suitable := "yes"
		if !d.Suitable {
			suitable = "no: " + d.Reason
		}
		table.Append([]string{d.Name, d.Type, d.APIVersion, d.DriverVersion, suitable})
	}
	table.Render()
	return buf.String()
}
