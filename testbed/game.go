package testbed

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/subsurface/engine"
	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer/components"
)

// TestGame orbits a camera around the scene with the right mouse button and
// swings the light around the torus with the arrow keys.
type TestGame struct {
	*engine.Game
}

type gameState struct {
	camera *components.ArcBallCamera
	light  *components.LightController

	width  uint32
	height uint32
}

func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State:             &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.Input == nil {
		return fmt.Errorf("the engine did not provide an input state")
	}
	cfg := g.ApplicationConfig.Config
	state := g.State.(*gameState)

	state.camera = components.NewArcBallCamera(mgl32.Vec3(cfg.Camera.Target), cfg.Camera.Distance)
	state.camera.RotateSpeed = cfg.Camera.RotateSpeed
	state.camera.ZoomSpeed = cfg.Camera.ZoomSpeed
	state.camera.SetDistanceBounds(cfg.Camera.Near, cfg.Camera.Far)
	state.light = components.NewLightController(cfg.Light)
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)

	state.light.Update(deltaTime, g.Input.IsKeyDown(core.KEY_LEFT), g.Input.IsKeyDown(core.KEY_RIGHT))

	dx, dy := g.Input.MouseDelta()
	state.camera.Update(float32(dx), float32(dy), float32(g.Input.ScrollDelta()), g.Input.IsButtonDown(core.BUTTON_RIGHT))

	if g.Input.IsKeyUp(core.KEY_P) && g.Input.WasKeyDown(core.KEY_P) {
		pos := state.camera.Position()
		lp := state.light.Position()
		core.LogInfo("Camera: [%.3f, %.3f, %.3f] Light: [%.3f, %.3f, %.3f] θ=%.3f",
			pos.X(), pos.Y(), pos.Z(), lp.X(), lp.Y(), lp.Z(), state.light.Theta)
	}
	return nil
}

func (g *TestGame) Render(deltaTime float64) (engine.FrameMatrices, error) {
	state := g.State.(*gameState)
	cam := g.ApplicationConfig.Config.Camera

	aspect := float32(1)
	if state.height > 0 {
		aspect = float32(state.width) / float32(state.height)
	}
	return engine.FrameMatrices{
		ViewProjection: components.ViewProjection(cam.FovY, aspect, cam.Near, cam.Far, state.camera.View()),
		ShadowMatrix:   state.light.ShadowMatrix(),
	}, nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)

	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogDebug("TestGame Shutdown fn....")
	return nil
}
