package renderer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/geometry"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
	"github.com/spaghettifunk/subsurface/engine/renderer/shading"
)

func newTestRenderer(t *testing.T, f *fakeBackend, frames uint32) *Renderer {
	t.Helper()
	cfg := core.DefaultConfig().Renderer
	cfg.FramesInFlight = frames
	cfg.ShadowMapSize = 256
	mesh, err := geometry.GeneratePlane(1, 1, 1, 1, 0)
	require.NoError(t, err)
	r, err := New(f, newFakeShaders(), mesh, Options{
		Config: cfg,
		Params: shading.DefaultParams(),
		Width:  1280,
		Height: 720,
	})
	require.NoError(t, err)
	return r
}

func testMatrices() (mgl32.Mat4, mgl32.Mat4) {
	view := mgl32.LookAtV(mgl32.Vec3{0, 0.5, 1}, mgl32.Vec3{0, 0.2, 0}, mgl32.Vec3{0, 1, 0})
	proj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.01, 50)
	light := mgl32.LookAtV(mgl32.Vec3{1, 0.2, 0}, mgl32.Vec3{0, 0.3, 0}, mgl32.Vec3{0, 1, 0})
	lightProj := mgl32.Perspective(mgl32.DegToRad(40), 1, 0.1, 3)
	return proj.Mul4(view), lightProj.Mul4(light)
}

func opIndex(ops []recordedOp, kind opKind, nth int) int {
	for i, op := range ops {
		if op.kind == kind {
			if nth == 0 {
				return i
			}
			nth--
		}
	}
	return -1
}

func TestRendererInitialization(t *testing.T) {
	f := newFakeBackend()
	r := newTestRenderer(t, f, 2)

	assert.Len(t, f.pipelines, 2)
	assert.Len(t, f.renderPasses, 2)
	// one framebuffer per swapchain image plus the shadow map
	assert.Len(t, f.framebuffers, f.imageCount+1)
	// shadow map and swapchain depth
	assert.Len(t, f.images, 2)
	// vertices, indices and one uniform buffer per slot
	assert.Len(t, f.buffers, 4)
	assert.Len(t, f.samplers, 1)
	assert.Len(t, f.sets, 4)

	for _, slot := range r.sync.Slots() {
		writes := f.sets[slot.ShadingSet]
		require.Len(t, writes, 2)
		assert.Equal(t, metadata.DescriptorTypeCombinedImageSampler, writes[1].Type)
		assert.Equal(t, r.shadow.Image.Handle, writes[1].Image)
		assert.Equal(t, slot.Uniforms.Handle, writes[0].Buffer)
		assert.Equal(t, slot.Uniforms.Handle, f.sets[slot.ShadowSet][0].Buffer)
	}
}

func TestFramesInFlightNeverExceedConfiguredLimit(t *testing.T) {
	f := newFakeBackend()
	f.imageCount = 2
	r := newTestRenderer(t, f, 2)
	vp, sm := testMatrices()

	for i := 0; i < 10; i++ {
		require.NoError(t, r.Render(vp, sm))
	}

	assert.Len(t, f.submissions, 10)
	assert.Len(t, f.presentations, 10)
	assert.Equal(t, 2, f.maxInFlight)
	// every frame after the first two had to wait for its slot
	assert.Equal(t, 8, f.blockedWaits)
	assert.Equal(t, uint64(10), r.Stats().Rendered)
}

func TestSingleFrameInFlightSerializesFrames(t *testing.T) {
	f := newFakeBackend()
	r := newTestRenderer(t, f, 1)
	vp, sm := testMatrices()

	for i := 0; i < 4; i++ {
		require.NoError(t, r.Render(vp, sm))
	}
	assert.Equal(t, 1, f.maxInFlight)
}

func TestFenceTimeoutIsDeviceLost(t *testing.T) {
	f := newFakeBackend()
	f.completeOnWait = false
	r := newTestRenderer(t, f, 2)
	vp, sm := testMatrices()

	require.NoError(t, r.Render(vp, sm))
	require.NoError(t, r.Render(vp, sm))
	err := r.Render(vp, sm)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDeviceLost)
	assert.Len(t, f.submissions, 2)
}

func TestAcquireTimeoutIsDeviceLost(t *testing.T) {
	f := newFakeBackend()
	r := newTestRenderer(t, f, 2)
	vp, sm := testMatrices()
	f.acquireErr = core.ErrFenceTimeout

	err := r.Render(vp, sm)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDeviceLost)
	assert.Empty(t, f.submissions)
}

func TestShadowMapBarrierSeparatesPasses(t *testing.T) {
	f := newFakeBackend()
	r := newTestRenderer(t, f, 2)
	vp, sm := testMatrices()
	require.NoError(t, r.Render(vp, sm))

	ops := f.submissions[0].ops
	shadowBegin := opIndex(ops, opBeginPass, 0)
	shadowEnd := opIndex(ops, opEndPass, 0)
	barrier := opIndex(ops, opBarrier, 0)
	mainBegin := opIndex(ops, opBeginPass, 1)
	mainEnd := opIndex(ops, opEndPass, 1)

	require.True(t, shadowBegin >= 0 && mainBegin >= 0 && barrier >= 0)
	assert.Less(t, shadowBegin, shadowEnd)
	assert.Less(t, shadowEnd, barrier)
	assert.Less(t, barrier, mainBegin)
	assert.Less(t, mainBegin, mainEnd)

	assert.Equal(t, "shadow", f.renderPasses[ops[shadowBegin].pass].Name)
	assert.Equal(t, "shading", f.renderPasses[ops[mainBegin].pass].Name)
	assert.Equal(t, []metadata.ClearValue{metadata.ClearDepth(1)}, ops[shadowBegin].clears)
	require.Len(t, ops[mainBegin].clears, 2)
	assert.True(t, ops[mainBegin].clears[1].IsDepth)

	b := ops[barrier].barrier
	assert.Equal(t, r.shadow.Image.Handle, b.Image)
	assert.Equal(t, metadata.ImageAspectDepth, b.Aspect)
	assert.Equal(t, metadata.ImageLayoutDepthAttachment, b.OldLayout)
	assert.Equal(t, metadata.ImageLayoutShaderReadOnly, b.NewLayout)
	assert.Equal(t, metadata.PipelineStageLateFragmentTests, b.SrcStage)
	assert.Equal(t, metadata.AccessDepthAttachmentWrite, b.SrcAccess)
	assert.Equal(t, metadata.PipelineStageFragmentShader, b.DstStage)
	assert.Equal(t, metadata.AccessShaderRead, b.DstAccess)

	// the shadow pass renders at shadow map resolution
	assert.Equal(t, metadata.Rect{Width: 256, Height: 256}, ops[shadowBegin].area)
	assert.Equal(t, metadata.Rect{Width: 1280, Height: 720}, ops[mainBegin].area)
}

func TestStencilDepthFormatBarrierCoversBothAspects(t *testing.T) {
	f := newFakeBackend()
	f.depthFormat = metadata.FormatD24UnormS8Uint
	r := newTestRenderer(t, f, 2)
	vp, sm := testMatrices()
	require.NoError(t, r.Render(vp, sm))

	assert.Equal(t, metadata.FormatD24UnormS8Uint, r.shadow.Image.Desc.Format)
	ops := f.submissions[0].ops
	barrier := opIndex(ops, opBarrier, 0)
	require.GreaterOrEqual(t, barrier, 0)
	assert.Equal(t, metadata.ImageAspectDepthStencil, ops[barrier].barrier.Aspect)

	assert.Equal(t, metadata.ImageAspectDepth, metadata.AspectOf(metadata.FormatD32Sfloat))
	assert.Equal(t, metadata.ImageAspectDepthStencil, metadata.AspectOf(metadata.FormatD32SfloatS8Uint))
	assert.Equal(t, metadata.ImageAspectColor, metadata.AspectOf(metadata.FormatBGRA8Srgb))
}

func TestResizeAfterAcquireDropsFrame(t *testing.T) {
	f := newFakeBackend()
	r := newTestRenderer(t, f, 2)
	vp, sm := testMatrices()
	f.acquireHook = func() { r.Resize(800, 600) }

	require.NoError(t, r.Render(vp, sm))
	assert.Empty(t, f.submissions)
	assert.Empty(t, f.presentations)

	stats := r.Stats()
	assert.Equal(t, uint64(0), stats.Rendered)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, uint64(1), stats.Recreations)
	assert.Equal(t, metadata.Extent2D{Width: 800, Height: 600}, r.Extent())

	require.NoError(t, r.Render(vp, sm))
	require.Len(t, f.submissions, 1)
	require.Len(t, f.presentations, 1)

	ops := f.submissions[0].ops
	fb := f.framebuffers[ops[opIndex(ops, opBeginPass, 1)].framebuffer]
	assert.Equal(t, uint32(800), fb.Width)
	assert.Equal(t, uint32(600), fb.Height)
	assert.Contains(t, f.swapchains, f.presentations[0].swapchain)
}

func TestOutOfDateAcquireDropsFrame(t *testing.T) {
	f := newFakeBackend()
	r := newTestRenderer(t, f, 2)
	vp, sm := testMatrices()
	f.acquireErr = core.ErrSwapchainOutOfDate

	require.NoError(t, r.Render(vp, sm))
	assert.Empty(t, f.submissions)
	assert.Equal(t, uint64(1), r.Stats().Dropped)
	assert.Equal(t, uint64(1), r.Stats().Recreations)

	require.NoError(t, r.Render(vp, sm))
	assert.Len(t, f.submissions, 1)
}

func TestOutOfDatePresentRecreatesSwapchain(t *testing.T) {
	f := newFakeBackend()
	r := newTestRenderer(t, f, 2)
	vp, sm := testMatrices()
	f.presentErr = core.ErrSwapchainOutOfDate

	require.NoError(t, r.Render(vp, sm))
	assert.Len(t, f.submissions, 1)
	assert.Equal(t, uint64(1), r.Stats().Recreations)
	assert.Equal(t, uint64(1), r.Stats().Rendered)

	require.NoError(t, r.Render(vp, sm))
	assert.Len(t, f.submissions, 2)
}

func TestZeroSizedFramebufferSkipsFrames(t *testing.T) {
	f := newFakeBackend()
	r := newTestRenderer(t, f, 2)
	vp, sm := testMatrices()

	r.Resize(0, 0)
	require.NoError(t, r.Render(vp, sm))
	require.NoError(t, r.Render(vp, sm))
	assert.Empty(t, f.submissions)
	assert.Equal(t, uint64(2), r.Stats().Dropped)

	r.Resize(1024, 768)
	require.NoError(t, r.Render(vp, sm))
	assert.Len(t, f.submissions, 1)
	assert.Equal(t, metadata.Extent2D{Width: 1024, Height: 768}, r.Extent())
}

func TestRenderingSameInputsIsRepeatable(t *testing.T) {
	f := newFakeBackend()
	f.imageCount = 2
	f.autoComplete = true
	r := newTestRenderer(t, f, 2)
	vp, sm := testMatrices()
	slot := r.sync.Slots()[0]

	require.NoError(t, r.Render(vp, sm))
	first := append([]byte(nil), f.buffers[slot.Uniforms.Handle]...)
	require.NoError(t, r.Render(vp, sm))
	require.NoError(t, r.Render(vp, sm))
	third := f.buffers[slot.Uniforms.Handle]

	require.Len(t, f.submissions, 3)
	assert.Equal(t, f.submissions[0].info.Commands, f.submissions[2].info.Commands)
	assert.Equal(t, f.submissions[0].ops, f.submissions[2].ops)
	assert.Equal(t, first, third)
}

func TestUniformBlockWrittenToSlotBuffer(t *testing.T) {
	f := newFakeBackend()
	r := newTestRenderer(t, f, 2)
	vp, sm := testMatrices()

	require.NoError(t, r.Render(vp, sm))
	block := NewUniformBlock(vp, sm, shading.DefaultParams())
	assert.Equal(t, block.Bytes(), f.buffers[r.sync.Slots()[0].Uniforms.Handle])
}

func TestShadingParamsApplyToNextFrame(t *testing.T) {
	f := newFakeBackend()
	r := newTestRenderer(t, f, 2)
	vp, sm := testMatrices()

	p := r.ShadingParams()
	p.Radius = 0.5
	r.SetShadingParams(p)
	require.NoError(t, r.Render(vp, sm))

	data := f.buffers[r.sync.Slots()[0].Uniforms.Handle]
	// Scattering.x follows the three matrices and the two positions
	radius := math.Float32frombits(binary.LittleEndian.Uint32(data[3*64+2*16:]))
	assert.Equal(t, float32(0.5), radius)
}

func TestShutdownReleasesEverything(t *testing.T) {
	f := newFakeBackend()
	r := newTestRenderer(t, f, 2)
	vp, sm := testMatrices()
	f.acquireHook = func() { r.Resize(640, 480) }
	for i := 0; i < 4; i++ {
		require.NoError(t, r.Render(vp, sm))
	}

	require.NoError(t, r.Shutdown())
	assert.Empty(t, f.images)
	assert.Empty(t, f.buffers)
	assert.Empty(t, f.samplers)
	assert.Empty(t, f.framebuffers)
	assert.Empty(t, f.renderPasses)
	assert.Empty(t, f.pipelines)
	assert.Empty(t, f.layouts)
	assert.Empty(t, f.fences)
	assert.Empty(t, f.semaphores)
	assert.Empty(t, f.commands)
	assert.Empty(t, f.swapchains)
}

func TestNewFailsOnInvalidShaderAndCleansUp(t *testing.T) {
	f := newFakeBackend()
	shaders := newFakeShaders()
	shaders[ShadingFragmentShader] = []uint32{0xdeadbeef, 0, 0, 0, 0}
	mesh, err := geometry.GeneratePlane(1, 1, 1, 1, 0)
	require.NoError(t, err)

	r, err := New(f, shaders, mesh, Options{
		Config: core.DefaultConfig().Renderer,
		Params: shading.DefaultParams(),
		Width:  1280,
		Height: 720,
	})
	assert.Nil(t, r)
	assert.ErrorIs(t, err, core.ErrShaderInvalid)
	assert.Empty(t, f.pipelines)
	assert.Empty(t, f.renderPasses)
	assert.Empty(t, f.images)
	assert.Empty(t, f.fences)
	assert.Empty(t, f.swapchains)
}
