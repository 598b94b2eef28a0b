package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameCounterReportsOncePerSecond(t *testing.T) {
	fc := NewFrameCounter()
	fc.Start(0)

	reported := 0
	for i := 1; i <= 120; i++ {
		if fc.Tick(time.Duration(i) * time.Second / 120) {
			reported++
		}
	}

	assert.Equal(t, 1, reported)
	assert.Equal(t, 120.0, fc.FPS())
	assert.InDelta(t, 8.33, fc.FrameTime(), 0.005)
	assert.Equal(t, "Subsurface Scattering - 120.00 FPS 8.33 ms", fc.Title("Subsurface Scattering"))
}

func TestFrameCounterResetsWindow(t *testing.T) {
	fc := NewFrameCounter()
	fc.Start(0)

	for i := 1; i <= 60; i++ {
		fc.Tick(time.Duration(i) * time.Second / 60)
	}
	assert.Equal(t, 60.0, fc.FPS())

	// 30 frames over the next second
	for i := 1; i <= 30; i++ {
		fc.Tick(time.Second + time.Duration(i)*time.Second/30)
	}
	assert.Equal(t, 30.0, fc.FPS())
	assert.Equal(t, uint64(90), fc.TotalFrames())
}

func TestFrameCounterNoReadingBeforeOneSecond(t *testing.T) {
	fc := NewFrameCounter()
	fc.Start(0)
	assert.False(t, fc.Tick(999*time.Millisecond))
	assert.Equal(t, 0.0, fc.FPS())
}

func TestFrameCounterAverageFrameTime(t *testing.T) {
	fc := NewFrameCounter()
	fc.Start(0)
	for i := 1; i <= int(AVG_COUNT); i++ {
		fc.Tick(time.Duration(i) * 10 * time.Millisecond)
	}
	assert.InDelta(t, 10.0, fc.AverageFrameTime(), 1e-9)
}

func TestFrameCounterRestartDropsPartialWindow(t *testing.T) {
	fc := NewFrameCounter()
	fc.Start(0)
	for i := 1; i <= 10; i++ {
		fc.Tick(time.Duration(i) * 10 * time.Millisecond)
	}

	// restart after a long pause; the ten earlier frames are not counted
	fc.Start(time.Minute)
	for i := 1; i <= 50; i++ {
		fc.Tick(time.Minute + time.Duration(i)*time.Second/50)
	}
	assert.Equal(t, 50.0, fc.FPS())
	assert.Equal(t, uint64(60), fc.TotalFrames())
}
