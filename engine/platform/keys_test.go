package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/subsurface/engine/core"
)

func TestTranslateKey(t *testing.T) {
	cases := map[glfw.Key]core.KeyCode{
		glfw.KeyA:      core.KEY_A,
		glfw.KeyZ:      core.KEY_Z,
		glfw.KeyF12:    core.KEY_F12,
		glfw.KeyLeft:   core.KEY_LEFT,
		glfw.KeyRight:  core.KEY_RIGHT,
		glfw.KeyEscape: core.KEY_ESCAPE,
	}
	for in, want := range cases {
		got, ok := translateKey(in)
		assert.True(t, ok, "key %d", in)
		assert.Equal(t, want, got)
	}

	_, ok := translateKey(glfw.KeyKP0)
	assert.False(t, ok)
}

func TestTranslateButton(t *testing.T) {
	b, ok := translateButton(glfw.MouseButtonRight)
	assert.True(t, ok)
	assert.Equal(t, core.BUTTON_RIGHT, b)

	_, ok = translateButton(glfw.MouseButton4)
	assert.False(t, ok)
}

func TestCallbacksFeedInput(t *testing.T) {
	bus := core.NewEventBus()
	input := core.NewInputState(bus)
	p := New(input, bus)

	var resized [2]uint32
	bus.Register(core.EVENT_CODE_RESIZED, t, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		resized = [2]uint32{data.Data.U32[0], data.Data.U32[1]}
		return true
	})

	p.keyCallback(nil, glfw.KeyLeft, 0, glfw.Press, 0)
	p.mouseButtonCallback(nil, glfw.MouseButtonRight, glfw.Press, 0)
	p.scrollCallback(nil, 0, 2)
	p.framebufferSizeCallback(nil, 800, 600)

	assert.True(t, input.IsKeyDown(core.KEY_LEFT))
	assert.True(t, input.IsButtonDown(core.BUTTON_RIGHT))
	assert.Equal(t, 2.0, input.ScrollDelta())
	assert.Equal(t, [2]uint32{800, 600}, resized)

	// repeats do not toggle state
	p.keyCallback(nil, glfw.KeyLeft, 0, glfw.Repeat, 0)
	assert.True(t, input.IsKeyDown(core.KEY_LEFT))
	p.keyCallback(nil, glfw.KeyLeft, 0, glfw.Release, 0)
	assert.False(t, input.IsKeyDown(core.KEY_LEFT))
}
