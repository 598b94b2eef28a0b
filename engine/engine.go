package engine

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/olekukonko/tablewriter"

	"github.com/spaghettifunk/subsurface/engine/assets"
	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/geometry"
	"github.com/spaghettifunk/subsurface/engine/platform"
	"github.com/spaghettifunk/subsurface/engine/renderer"
	"github.com/spaghettifunk/subsurface/engine/renderer/shading"
	"github.com/spaghettifunk/subsurface/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything it owned
	EngineStageShutdown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	running      atomic.Bool
	isSuspended  bool

	events       *core.EventBus
	input        *core.InputState
	platform     *platform.Platform
	assetManager *assets.AssetManager
	backend      *vulkan.VulkanRenderer
	renderer     *renderer.Renderer

	width    uint32
	height   uint32
	clock    *core.Clock
	frames   *core.FrameCounter
	lastTime float64
	resuming bool
}

func New(g *Game) (*Engine, error) {
	events := core.NewEventBus()
	input := core.NewInputState(events)

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	g.Input = input
	g.Events = events

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		events:       events,
		input:        input,
		platform:     platform.New(input, events),
		assetManager: am,
		clock:        core.NewClock(),
		frames:       core.NewFrameCounter(),
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	appConfig := e.gameInstance.ApplicationConfig
	cfg := appConfig.Config
	core.SetLogLevel(appConfig.LogLevel)

	// register some events
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	if err := e.platform.Startup(appConfig.Name,
		appConfig.StartPosX,
		appConfig.StartPosY,
		appConfig.StartWidth,
		appConfig.StartHeight); err != nil {
		return err
	}

	if err := e.assetManager.Initialize(appConfig.AssetsDir); err != nil {
		return err
	}
	if appConfig.ConfigPath != "" {
		if err := e.assetManager.WatchConfig(appConfig.ConfigPath); err != nil {
			return err
		}
	}

	// Initialize tears the backend down itself on failure.
	backend := vulkan.New(e.platform, cfg.Renderer)
	if err := backend.Initialize(appConfig.Name); err != nil {
		return err
	}
	e.backend = backend

	mesh, err := geometry.Scene()
	if err != nil {
		return err
	}
	e.width, e.height = e.platform.FramebufferSize()
	e.renderer, err = renderer.New(e.backend, e.assetManager, mesh, renderer.Options{
		Config: cfg.Renderer,
		Params: shading.FromConfig(cfg.Shading),
		Width:  e.width,
		Height: e.height,
	})
	if err != nil {
		return err
	}

	if err := e.gameInstance.FnInitialize(); err != nil {
		return err
	}
	if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
		return err
	}
	e.isSuspended = e.width == 0 || e.height == 0
	e.currentStage = EngineStageInitialized
	return nil
}

// Run drives the frame loop until the window closes, Escape is pressed or
// Stop is called. A returned error is fatal.
func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.running.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.frames.Start(e.clock.ElapsedDuration())
	e.lastTime = e.clock.Elapsed()

	for e.running.Load() {
		if !e.platform.PumpMessages() {
			e.running.Store(false)
			break
		}

		if e.isSuspended {
			e.platform.WaitMessages()
			continue
		}

		delta := e.tick()

		e.applyShadingUpdates()

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("Game update failed, shutting down: %s", err)
			return err
		}

		matrices, err := e.gameInstance.FnRender(delta)
		if err != nil {
			core.LogError("Game render failed, shutting down: %s", err)
			return err
		}
		if err := e.renderer.Render(matrices.ViewProjection, matrices.ShadowMatrix); err != nil {
			core.LogError("Frame failed, shutting down: %s", err)
			return err
		}

		if e.frames.Tick(e.clock.ElapsedDuration()) {
			e.platform.SetTitle(e.frames.Title(e.gameInstance.ApplicationConfig.Name))
		}

		// NOTE: input state is copied last so this frame's deltas were
		// visible to the game update above.
		e.input.Update()
	}
	return nil
}

// tick advances the clock and returns the seconds since the previous frame.
// The first frame after a resume reports zero so the time spent minimized is
// never simulated, and the FPS window restarts.
func (e *Engine) tick() float64 {
	e.clock.Update()
	now := e.clock.Elapsed()
	if e.resuming {
		e.resuming = false
		e.lastTime = now
		e.frames.Start(e.clock.ElapsedDuration())
	}
	delta := now - e.lastTime
	e.lastTime = now
	return delta
}

// Stop asks the loop to exit after the current frame. Safe to call from
// any goroutine.
func (e *Engine) Stop() {
	e.running.Store(false)
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if e.renderer != nil {
		core.LogInfo("Frame statistics:\n%s", statsTable(e.renderer.Stats(), e.frames))
		keep(e.renderer.Shutdown())
		e.renderer = nil
	}
	if e.backend != nil {
		e.backend.Shutdown()
		e.backend = nil
	}
	if e.gameInstance.FnShutdown != nil {
		keep(e.gameInstance.FnShutdown())
	}
	keep(e.assetManager.Shutdown())
	e.events.Shutdown()
	if e.platform.Window != nil {
		keep(e.platform.Shutdown())
	}

	e.currentStage = EngineStageShutdown
	return firstErr
}

// GetFramebufferSize returns the width and height (in this order)
// of the application framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

// applyShadingUpdates takes a pending config reload, if any, at the frame
// boundary.
func (e *Engine) applyShadingUpdates() {
	select {
	case s := <-e.assetManager.ShadingUpdates():
		e.renderer.SetShadingParams(shading.FromConfig(s))
	default:
	}
}

func (e *Engine) onEvent(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.Stop()
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	if core.KeyCode(data.Data.U16[0]) == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		// Block anything else from processing this.
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	width := data.Data.U32[0]
	height := data.Data.U32[1]

	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
		e.resuming = true
	}
	if e.renderer != nil {
		e.renderer.Resize(width, height)
	}
	if err := e.gameInstance.FnOnResize(width, height); err != nil {
		core.LogError(err.Error())
	}
	return false
}

func statsTable(stats renderer.FrameStats, frames *core.FrameCounter) string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Frames rendered", fmt.Sprintf("%d", stats.Rendered)})
	table.Append([]string{"Frames dropped", fmt.Sprintf("%d", stats.Dropped)})
	table.Append([]string{"Swapchain recreations", fmt.Sprintf("%d", stats.Recreations)})
	table.Append([]string{"Last FPS", fmt.Sprintf("%.2f", frames.FPS())})
	table.Append([]string{"Avg frame time (ms)", fmt.Sprintf("%.2f", frames.AverageFrameTime())})
	table.Render()
	return b.String()
}
