package engine

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/subsurface/engine/core"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	// Input and Events are set by the engine before FnInitialize runs.
	Input        *core.InputState
	Events       *core.EventBus
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// FrameMatrices are the two per-frame inputs of the renderer.
type FrameMatrices struct {
	ViewProjection mgl32.Mat4
	ShadowMatrix   mgl32.Mat4
}

type Initialize func() error
type Update func(deltaTime float64) error
type Render func(deltaTime float64) (FrameMatrices, error)
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
