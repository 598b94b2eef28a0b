package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

func TestCreateImageValidatesUsage(t *testing.T) {
	tests := []struct {
		name string
		desc metadata.ImageDesc
	}{
		{"no usage", metadata.ImageDesc{Name: "a", Width: 4, Height: 4, Format: metadata.FormatD32Sfloat}},
		{"buffer usage", metadata.ImageDesc{Name: "b", Width: 4, Height: 4, Format: metadata.FormatRGBA8Unorm, Usage: metadata.UsageUniform}},
		{"depth target with color format", metadata.ImageDesc{Name: "c", Width: 4, Height: 4, Format: metadata.FormatRGBA8Unorm, Usage: metadata.UsageDepthTarget}},
		{"color target with depth format", metadata.ImageDesc{Name: "d", Width: 4, Height: 4, Format: metadata.FormatD32Sfloat, Usage: metadata.UsageColorTarget}},
		{"zero extent", metadata.ImageDesc{Name: "e", Format: metadata.FormatD32Sfloat, Usage: metadata.UsageDepthTarget}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeBackend()
			rm := NewResourceManager(f, 8)
			img, err := rm.CreateImage(tt.desc)
			assert.Nil(t, img)
			assert.ErrorIs(t, err, core.ErrIncompatibleUsage)
			assert.Empty(t, f.images)
		})
	}
}

func TestCreateBufferValidatesUsage(t *testing.T) {
	f := newFakeBackend()
	rm := NewResourceManager(f, 8)

	_, err := rm.CreateBuffer(metadata.BufferDesc{Name: "a", Size: 16, Usage: metadata.UsageSampled})
	assert.ErrorIs(t, err, core.ErrIncompatibleUsage)
	_, err = rm.CreateBuffer(metadata.BufferDesc{Name: "b", Usage: metadata.UsageUniform})
	assert.ErrorIs(t, err, core.ErrIncompatibleUsage)

	buf, err := rm.CreateBuffer(metadata.BufferDesc{Name: "c", Size: 16, Usage: metadata.UsageVertex | metadata.UsageIndex})
	require.NoError(t, err)
	assert.NotEqual(t, buf.ResourceID().String(), "")
	assert.Equal(t, 1, rm.LiveCount())
}

func TestRequireUsage(t *testing.T) {
	f := newFakeBackend()
	rm := NewResourceManager(f, 8)
	img, err := rm.CreateImage(metadata.ImageDesc{
		Name: "shadow", Width: 64, Height: 64,
		Format: metadata.FormatD32Sfloat,
		Usage:  metadata.UsageDepthTarget | metadata.UsageSampled,
	})
	require.NoError(t, err)

	assert.NoError(t, rm.RequireUsage(img, metadata.UsageDepthTarget))
	assert.NoError(t, rm.RequireUsage(img, metadata.UsageSampled|metadata.UsageDepthTarget))
	assert.ErrorIs(t, rm.RequireUsage(img, metadata.UsageColorTarget), core.ErrIncompatibleUsage)

	require.NoError(t, rm.Release(img))
	assert.ErrorIs(t, rm.RequireUsage(img, metadata.UsageSampled), core.ErrResourceDestroyed)
	assert.ErrorIs(t, rm.Release(img), core.ErrResourceDestroyed)
}

func TestWriteBufferChecksBoundsAndVisibility(t *testing.T) {
	f := newFakeBackend()
	rm := NewResourceManager(f, 8)
	host, err := rm.CreateBuffer(metadata.BufferDesc{Name: "host", Size: 8, Usage: metadata.UsageUniform, HostVisible: true})
	require.NoError(t, err)
	device, err := rm.CreateBuffer(metadata.BufferDesc{Name: "device", Size: 8, Usage: metadata.UsageUniform})
	require.NoError(t, err)

	assert.NoError(t, rm.WriteBuffer(host, 4, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, f.buffers[host.Handle])
	assert.ErrorIs(t, rm.WriteBuffer(host, 6, []byte{1, 2, 3}), core.ErrIncompatibleUsage)
	assert.ErrorIs(t, rm.WriteBuffer(device, 0, []byte{1}), core.ErrIncompatibleUsage)
}

func TestReleaseDefersDestructionUntilFrameIsSafe(t *testing.T) {
	f := newFakeBackend()
	rm := NewResourceManager(f, 8)
	img, err := rm.CreateImage(metadata.ImageDesc{
		Name: "depth", Width: 64, Height: 64,
		Format: metadata.FormatD32Sfloat,
		Usage:  metadata.UsageDepthTarget,
	})
	require.NoError(t, err)

	rm.SetFrame(5)
	require.NoError(t, rm.Release(img))
	assert.Equal(t, 0, rm.LiveCount())
	assert.Equal(t, 1, rm.Pending())

	assert.Equal(t, 0, rm.Collect(4))
	assert.Contains(t, f.images, img.Handle)

	assert.Equal(t, 1, rm.Collect(5))
	assert.NotContains(t, f.images, img.Handle)
	assert.Equal(t, 0, rm.Pending())
}

func TestFullReleaseQueueWaitsForIdle(t *testing.T) {
	f := newFakeBackend()
	rm := NewResourceManager(f, 2)
	bufs := make([]*Buffer, 3)
	for i := range bufs {
		b, err := rm.CreateBuffer(metadata.BufferDesc{Name: "b", Size: 4, Usage: metadata.UsageUniform})
		require.NoError(t, err)
		bufs[i] = b
	}

	rm.SetFrame(10)
	for _, b := range bufs {
		require.NoError(t, rm.Release(b))
	}
	assert.Equal(t, 1, f.waitIdleCalls)
	assert.Len(t, f.buffers, 1)
	assert.Equal(t, 1, rm.Pending())
}

func TestDestroyAllReleasesLiveAndPending(t *testing.T) {
	f := newFakeBackend()
	rm := NewResourceManager(f, 8)
	b, err := rm.CreateBuffer(metadata.BufferDesc{Name: "b", Size: 4, Usage: metadata.UsageVertex})
	require.NoError(t, err)
	_, err = rm.CreateSampler(metadata.SamplerDesc{Name: "s"})
	require.NoError(t, err)
	require.NoError(t, rm.Release(b))

	rm.DestroyAll()
	assert.Empty(t, f.buffers)
	assert.Empty(t, f.samplers)
	assert.Equal(t, 0, rm.LiveCount())
	assert.Equal(t, 0, rm.Pending())
}
