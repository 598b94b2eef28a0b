package renderer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/subsurface/engine/core"
)

func TestFrameSynchronizerRejectsZeroSlots(t *testing.T) {
	_, err := NewFrameSynchronizer(newFakeBackend(), 0, time.Second)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestSlotsAreUsedRoundRobin(t *testing.T) {
	f := newFakeBackend()
	f.autoComplete = true
	fs, err := NewFrameSynchronizer(f, 3, time.Second)
	require.NoError(t, err)

	order := []int{}
	for i := 0; i < 6; i++ {
		slot, err := fs.AcquireSlot()
		require.NoError(t, err)
		order = append(order, slot.Index)
		require.NoError(t, fs.Submit(slot))
		assert.Equal(t, uint64(i+1), slot.Frame())
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, order)
}

func TestAcquireResetsCommands(t *testing.T) {
	f := newFakeBackend()
	fs, err := NewFrameSynchronizer(f, 1, time.Second)
	require.NoError(t, err)

	slot, err := fs.AcquireSlot()
	require.NoError(t, err)
	rec := slot.Commands.(*fakeRecorder)
	assert.Equal(t, 1, rec.resets)

	_, err = fs.AcquireSlot()
	assert.Error(t, err)
}

func TestSafeFrameTracksOldestPendingSubmission(t *testing.T) {
	f := newFakeBackend()
	fs, err := NewFrameSynchronizer(f, 2, time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), fs.SafeFrame())

	s0, err := fs.AcquireSlot()
	require.NoError(t, err)
	require.NoError(t, fs.Submit(s0))
	s1, err := fs.AcquireSlot()
	require.NoError(t, err)
	require.NoError(t, fs.Submit(s1))

	assert.Equal(t, 2, fs.InFlight())
	assert.Equal(t, uint64(0), fs.SafeFrame())
	assert.Equal(t, uint64(3), fs.NextFrame())

	// waiting on slot 0 again proves frame 1 finished
	_, err = fs.AcquireSlot()
	require.NoError(t, err)
	assert.Equal(t, 1, fs.InFlight())
	assert.Equal(t, uint64(1), fs.SafeFrame())

	require.NoError(t, fs.WaitIdle())
	assert.Equal(t, 0, fs.InFlight())
	assert.Equal(t, uint64(2), fs.SafeFrame())
}

func TestAbandonReplacesSignaledSemaphore(t *testing.T) {
	f := newFakeBackend()
	fs, err := NewFrameSynchronizer(f, 2, time.Second)
	require.NoError(t, err)

	slot, err := fs.AcquireSlot()
	require.NoError(t, err)
	old := slot.ImageAcquired
	require.NoError(t, fs.Abandon(slot, true))
	assert.NotEqual(t, old, slot.ImageAcquired)
	assert.NotContains(t, f.semaphores, old)

	again, err := fs.AcquireSlot()
	require.NoError(t, err)
	assert.Same(t, slot, again)
	assert.Equal(t, uint64(0), fs.Submitted())
}

func TestDestroyReleasesSyncObjects(t *testing.T) {
	f := newFakeBackend()
	fs, err := NewFrameSynchronizer(f, 3, time.Second)
	require.NoError(t, err)
	assert.Len(t, f.fences, 3)
	assert.Len(t, f.semaphores, 6)

	fs.Destroy()
	assert.Empty(t, f.fences)
	assert.Empty(t, f.semaphores)
	assert.Empty(t, f.commands)
}
