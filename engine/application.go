package engine

import (
	"github.com/spaghettifunk/subsurface/engine/core"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32
	// Window starting position y axis, if applicable.
	StartPosY uint32
	// Window starting width, if applicable.
	StartWidth uint32
	// Window starting height, if applicable.
	StartHeight uint32
	// The application name used in windowing, if applicable.
	Name     string
	LogLevel core.LogLevel
	// Directory holding shaders/ and the config file.
	AssetsDir string
	// Config file watched for shading changes. Empty disables hot reload.
	ConfigPath string
	Config     *core.Config
}

// NewApplicationConfig derives the window and logging settings from cfg.
func NewApplicationConfig(cfg *core.Config, configPath, assetsDir string) *ApplicationConfig {
	return &ApplicationConfig{
		StartPosX:   cfg.Window.PosX,
		StartPosY:   cfg.Window.PosY,
		StartWidth:  cfg.Window.Width,
		StartHeight: cfg.Window.Height,
		Name:        cfg.Window.Title,
		LogLevel:    core.ParseLogLevel(cfg.Log.Level),
		AssetsDir:   assetsDir,
		ConfigPath:  configPath,
		Config:      cfg,
	}
}
