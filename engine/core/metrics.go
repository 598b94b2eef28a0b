package core

import (
	"fmt"
	"time"
)

const AVG_COUNT uint8 = 30

// FrameCounter accumulates frames and reports a frame rate once per second.
type FrameCounter struct {
	frames     uint64
	windowFrom time.Duration
	started    bool

	fps float64
	ms  float64

	frameAVGCounter uint8
	msTimes         [AVG_COUNT]float64
	msAvg           float64
	lastFrame       time.Duration
	totalFrames     uint64
}

func NewFrameCounter() *FrameCounter {
	return &FrameCounter{}
}

// Tick records one finished frame at time now. It returns true when a new
// FPS reading is available.
func (fc *FrameCounter) Tick(now time.Duration) bool {
	if !fc.started {
		fc.windowFrom = now
		fc.lastFrame = now
		fc.started = true
	}

	fc.updateAverage(now - fc.lastFrame)
	fc.lastFrame = now

	fc.frames++
	fc.totalFrames++

	elapsed := now - fc.windowFrom
	if elapsed < time.Second {
		return false
	}
	fc.fps = float64(fc.frames) / elapsed.Seconds()
	fc.ms = 1000.0 / fc.fps
	fc.frames = 0
	fc.windowFrom = now
	return true
}

// Start anchors a fresh measurement window without counting a frame.
func (fc *FrameCounter) Start(now time.Duration) {
	fc.frames = 0
	fc.windowFrom = now
	fc.lastFrame = now
	fc.started = true
}

func (fc *FrameCounter) updateAverage(frameTime time.Duration) {
	fc.msTimes[fc.frameAVGCounter] = float64(frameTime) / float64(time.Millisecond)
	if fc.frameAVGCounter == AVG_COUNT-1 {
		sum := 0.0
		for i := uint8(0); i < AVG_COUNT; i++ {
			sum += fc.msTimes[i]
		}
		fc.msAvg = sum / float64(AVG_COUNT)
	}
	fc.frameAVGCounter++
	fc.frameAVGCounter %= AVG_COUNT
}

func (fc *FrameCounter) FPS() float64 {
	return fc.fps
}

func (fc *FrameCounter) FrameTime() float64 {
	return fc.ms
}

// AverageFrameTime is the mean of the last AVG_COUNT frame times in milliseconds.
func (fc *FrameCounter) AverageFrameTime() float64 {
	return fc.msAvg
}

func (fc *FrameCounter) TotalFrames() uint64 {
	return fc.totalFrames
}

func (fc *FrameCounter) Title(base string) string {
	return fmt.Sprintf("%s - %.2f FPS %.2f ms", base, fc.fps, fc.ms)
}
