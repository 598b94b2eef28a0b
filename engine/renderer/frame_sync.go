package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

// FrameSlot is one frame-in-flight worth of per-frame state. A slot is reused
// only after its fence reports that the previous submission on it completed.
type FrameSlot struct {
	Index          int
	Commands       CommandRecorder
	Fence          metadata.FenceHandle
	ImageAcquired  metadata.SemaphoreHandle
	RenderFinished metadata.SemaphoreHandle

	// Per-slot uniform storage and the descriptor sets that reference it.
	Uniforms   *Buffer
	ShadowSet  metadata.DescriptorSetHandle
	ShadingSet metadata.DescriptorSetHandle

	frame    uint64
	pending  bool
	acquired bool
}

// Frame returns the number of the last frame submitted on this slot.
func (s *FrameSlot) Frame() uint64 {
	return s.frame
}

type syncBackend interface {
	SyncDevice
	CommandDevice
	WaitIdle() error
}

// FrameSynchronizer bounds the number of frames the GPU works on at once.
type FrameSynchronizer struct {
	device  syncBackend
	slots   []*FrameSlot
	next    int
	timeout time.Duration

	submitted uint64
}

func NewFrameSynchronizer(device syncBackend, count int, timeout time.Duration) (*FrameSynchronizer, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: frames in flight must be at least 1, got %d", core.ErrInvalidConfig, count)
	}
	fs := &FrameSynchronizer{
		device:  device,
		slots:   make([]*FrameSlot, 0, count),
		timeout: timeout,
	}
	for i := 0; i < count; i++ {
		slot, err := fs.createSlot(i)
		if err != nil {
			fs.Destroy()
			return nil, err
		}
		fs.slots = append(fs.slots, slot)
	}
	core.LogDebug("frame synchronizer created with %d slots", count)
	return fs, nil
}

func (fs *FrameSynchronizer) createSlot(index int) (*FrameSlot, error) {
	commands, err := fs.device.AllocateCommandBuffer()
	if err != nil {
		return nil, fmt.Errorf("slot %d: %w", index, err)
	}
	// signaled so the first wait on a fresh slot returns immediately
	fence, err := fs.device.CreateFence(true)
	if err != nil {
		fs.device.FreeCommandBuffer(commands)
		return nil, fmt.Errorf("slot %d: %w", index, err)
	}
	acquired, err := fs.device.CreateSemaphore()
	if err != nil {
		fs.device.DestroyFence(fence)
		fs.device.FreeCommandBuffer(commands)
		return nil, fmt.Errorf("slot %d: %w", index, err)
	}
	finished, err := fs.device.CreateSemaphore()
	if err != nil {
		fs.device.DestroySemaphore(acquired)
		fs.device.DestroyFence(fence)
		fs.device.FreeCommandBuffer(commands)
		return nil, fmt.Errorf("slot %d: %w", index, err)
	}
	return &FrameSlot{
		Index:          index,
		Commands:       commands,
		Fence:          fence,
		ImageAcquired:  acquired,
		RenderFinished: finished,
	}, nil
}

func (fs *FrameSynchronizer) Slots() []*FrameSlot {
	return fs.slots
}

// AcquireSlot blocks until the next slot's previous submission completed,
// then resets its command recorder.
func (fs *FrameSynchronizer) AcquireSlot() (*FrameSlot, error) {
	slot := fs.slots[fs.next]
	if slot.acquired {
		return nil, fmt.Errorf("frame slot %d acquired twice without submit", slot.Index)
	}
	if err := fs.WaitSlot(slot); err != nil {
		return nil, err
	}
	if err := slot.Commands.Reset(); err != nil {
		return nil, fmt.Errorf("failed to reset commands of slot %d: %w", slot.Index, err)
	}
	slot.acquired = true
	return slot, nil
}

// WaitSlot waits for the last submission on slot. A timeout is reported as
// device loss.
func (fs *FrameSynchronizer) WaitSlot(slot *FrameSlot) error {
	if !slot.pending {
		return nil
	}
	err := fs.device.WaitFence(slot.Fence, fs.timeout)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrFenceTimeout), errors.Is(err, core.ErrDeviceLost):
		return fmt.Errorf("%w: frame %d on slot %d did not complete within %s", core.ErrDeviceLost, slot.frame, slot.Index, fs.timeout)
	default:
		return err
	}
	slot.pending = false
	return nil
}

// Submit hands the recorded commands of slot to the GPU and advances to the
// next slot. The fence is reset immediately before submission.
func (fs *FrameSynchronizer) Submit(slot *FrameSlot) error {
	if !slot.acquired {
		return fmt.Errorf("frame slot %d submitted without being acquired", slot.Index)
	}
	if err := fs.device.ResetFence(slot.Fence); err != nil {
		return err
	}
	slot.acquired = false
	fs.submitted++
	slot.frame = fs.submitted
	err := fs.device.Submit(SubmitInfo{
		Commands:        slot.Commands,
		WaitSemaphore:   slot.ImageAcquired,
		WaitStage:       metadata.PipelineStageColorAttachmentOutput,
		SignalSemaphore: slot.RenderFinished,
		Fence:           slot.Fence,
	})
	if err != nil {
		return fmt.Errorf("failed to submit frame %d: %w", slot.frame, err)
	}
	slot.pending = true
	fs.next = (fs.next + 1) % len(fs.slots)
	return nil
}

// Abandon returns an acquired slot without submitting it. When the slot's
// image-acquired semaphore was signaled by a successful acquire it can no
// longer be waited on, so it is replaced.
func (fs *FrameSynchronizer) Abandon(slot *FrameSlot, imageAcquired bool) error {
	slot.acquired = false
	if !imageAcquired {
		return nil
	}
	sem, err := fs.device.CreateSemaphore()
	if err != nil {
		return err
	}
	fs.device.DestroySemaphore(slot.ImageAcquired)
	slot.ImageAcquired = sem
	return nil
}

// InFlight returns the number of submitted frames not known to be complete.
func (fs *FrameSynchronizer) InFlight() int {
	n := 0
	for _, s := range fs.slots {
		if s.pending {
			n++
		}
	}
	return n
}

// NextFrame returns the number the next submitted frame will carry.
func (fs *FrameSynchronizer) NextFrame() uint64 {
	return fs.submitted + 1
}

func (fs *FrameSynchronizer) Submitted() uint64 {
	return fs.submitted
}

// SafeFrame returns the highest frame number known to have completed.
func (fs *FrameSynchronizer) SafeFrame() uint64 {
	safe := fs.submitted
	for _, s := range fs.slots {
		if s.pending && s.frame-1 < safe {
			safe = s.frame - 1
		}
	}
	return safe
}

// WaitIdle blocks until the device is idle and marks every slot complete.
func (fs *FrameSynchronizer) WaitIdle() error {
	if err := fs.device.WaitIdle(); err != nil {
		return err
	}
	for _, s := range fs.slots {
		s.pending = false
	}
	return nil
}

// Destroy releases the synchronization objects. The device must be idle.
func (fs *FrameSynchronizer) Destroy() {
	for _, s := range fs.slots {
		fs.device.DestroySemaphore(s.RenderFinished)
		fs.device.DestroySemaphore(s.ImageAcquired)
		fs.device.DestroyFence(s.Fence)
		fs.device.FreeCommandBuffer(s.Commands)
	}
	fs.slots = nil
}
