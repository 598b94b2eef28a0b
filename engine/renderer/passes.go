package renderer

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
	"github.com/spaghettifunk/subsurface/engine/renderer/shading"
)

// ShadowTarget is the depth image rendered from the light and sampled by the
// shading pass.
type ShadowTarget struct {
	Image       *Image
	Sampler     *Sampler
	Framebuffer metadata.FramebufferHandle
	Size        uint32
}

type SceneGeometry struct {
	Vertices   *Buffer
	Indices    *Buffer
	IndexCount uint32
}

type FrameStats struct {
	Rendered    uint64
	Dropped     uint64
	Recreations uint64
}

// PassOrchestrator records and submits one frame: the shadow pass, the
// barrier that makes the shadow map readable, then the shading pass.
type PassOrchestrator struct {
	sync      *FrameSynchronizer
	swapchain *SwapchainManager
	resources *ResourceManager
	shadowP   *Pipeline
	shadingP  *Pipeline
	shadow    *ShadowTarget
	scene     *SceneGeometry

	params     shading.Params
	clearColor [4]float32

	// imagesInFlight maps a swapchain image to the slot that last rendered
	// into it, for the swapchain identified by imagesSet.
	imagesInFlight map[uint32]*FrameSlot
	imagesSet      uint64

	stats FrameStats
}

func NewPassOrchestrator(
	sync *FrameSynchronizer,
	swapchain *SwapchainManager,
	resources *ResourceManager,
	shadowPipeline, shadingPipeline *Pipeline,
	shadow *ShadowTarget,
	scene *SceneGeometry,
	params shading.Params,
	clearColor [4]float32,
) *PassOrchestrator {
	return &PassOrchestrator{
		sync:           sync,
		swapchain:      swapchain,
		resources:      resources,
		shadowP:        shadowPipeline,
		shadingP:       shadingPipeline,
		shadow:         shadow,
		scene:          scene,
		params:         params,
		clearColor:     clearColor,
		imagesInFlight: make(map[uint32]*FrameSlot),
	}
}

func (po *PassOrchestrator) SetParams(p shading.Params) {
	po.params = p
}

func (po *PassOrchestrator) Params() shading.Params {
	return po.params
}

func (po *PassOrchestrator) Stats() FrameStats {
	s := po.stats
	s.Recreations = po.swapchain.Recreations()
	return s
}

// RenderFrame renders one frame. A frame that cannot be presented because
// the swapchain went out of date is dropped and nil is returned; any other
// error is fatal.
func (po *PassOrchestrator) RenderFrame(viewProjection, shadowMatrix mgl32.Mat4) error {
	if po.swapchain.Stale() {
		if err := po.swapchain.Recreate(); err != nil {
			if errors.Is(err, core.ErrSwapchainBooting) {
				po.stats.Dropped++
				return nil
			}
			return err
		}
	}

	slot, err := po.sync.AcquireSlot()
	if err != nil {
		return err
	}
	po.resources.SetFrame(po.sync.NextFrame())

	image, err := po.swapchain.AcquireNext(slot.ImageAcquired)
	if err != nil {
		if aerr := po.sync.Abandon(slot, false); aerr != nil {
			return aerr
		}
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			po.stats.Dropped++
			return nil
		}
		if errors.Is(err, core.ErrFenceTimeout) {
			return fmt.Errorf("%w: image acquire for slot %d: %v", core.ErrDeviceLost, slot.Index, err)
		}
		return err
	}

	if po.imagesSet != po.swapchain.Set() {
		po.imagesInFlight = make(map[uint32]*FrameSlot)
		po.imagesSet = po.swapchain.Set()
	}
	if owner, ok := po.imagesInFlight[image.Index]; ok && owner != slot {
		if err := po.sync.WaitSlot(owner); err != nil {
			return err
		}
	}
	po.imagesInFlight[image.Index] = slot

	block := NewUniformBlock(viewProjection, shadowMatrix, po.params)
	if err := po.resources.WriteBuffer(slot.Uniforms, 0, block.Bytes()); err != nil {
		return err
	}

	if err := po.record(slot, image); err != nil {
		return err
	}

	// a resize that landed after the image was acquired invalidates the
	// recorded framebuffer; drop the frame instead of submitting it
	if po.swapchain.Stale() {
		delete(po.imagesInFlight, image.Index)
		if err := po.sync.WaitIdle(); err != nil {
			return err
		}
		if err := po.sync.Abandon(slot, true); err != nil {
			return err
		}
		po.stats.Dropped++
		if err := po.swapchain.Recreate(); err != nil && !errors.Is(err, core.ErrSwapchainBooting) {
			return err
		}
		return nil
	}

	if err := po.sync.Submit(slot); err != nil {
		return err
	}
	if err := po.swapchain.Present(image, slot.RenderFinished); err != nil {
		if !errors.Is(err, core.ErrSwapchainOutOfDate) {
			return err
		}
		core.LogDebug("present reported an out of date swapchain")
	}
	po.stats.Rendered++
	po.resources.Collect(po.sync.SafeFrame())
	return nil
}

func (po *PassOrchestrator) record(slot *FrameSlot, image SwapchainImage) error {
	if err := po.resources.RequireUsage(po.shadow.Image, metadata.UsageDepthTarget|metadata.UsageSampled); err != nil {
		return err
	}
	if err := po.resources.RequireUsage(po.scene.Vertices, metadata.UsageVertex); err != nil {
		return err
	}
	if err := po.resources.RequireUsage(po.scene.Indices, metadata.UsageIndex); err != nil {
		return err
	}

	cmd := slot.Commands
	if err := cmd.Begin(); err != nil {
		return fmt.Errorf("failed to begin commands: %w", err)
	}

	size := po.shadow.Size
	shadowArea := metadata.Rect{Width: size, Height: size}
	cmd.BeginRenderPass(po.shadowP.RenderPass, po.shadow.Framebuffer, shadowArea, []metadata.ClearValue{
		metadata.ClearDepth(1),
	})
	cmd.SetViewport(metadata.Viewport{Width: float32(size), Height: float32(size), MaxDepth: 1})
	cmd.SetScissor(shadowArea)
	cmd.BindPipeline(po.shadowP.Handle)
	cmd.BindDescriptorSet(po.shadowP.Handle, slot.ShadowSet)
	cmd.BindVertexBuffer(po.scene.Vertices.Handle, 0)
	cmd.BindIndexBuffer(po.scene.Indices.Handle, 0)
	cmd.DrawIndexed(po.scene.IndexCount, 1)
	cmd.EndRenderPass()

	// depth writes of the shadow pass must be visible to fragment-shader
	// reads of the shading pass
	cmd.PipelineBarrier(metadata.ImageBarrier{
		Image:     po.shadow.Image.Handle,
		Aspect:    metadata.AspectOf(po.shadow.Image.Desc.Format),
		OldLayout: metadata.ImageLayoutDepthAttachment,
		NewLayout: metadata.ImageLayoutShaderReadOnly,
		SrcStage:  metadata.PipelineStageLateFragmentTests,
		SrcAccess: metadata.AccessDepthAttachmentWrite,
		DstStage:  metadata.PipelineStageFragmentShader,
		DstAccess: metadata.AccessShaderRead,
	})

	extent := po.swapchain.Extent()
	area := metadata.Rect{Width: extent.Width, Height: extent.Height}
	c := po.clearColor
	cmd.BeginRenderPass(po.shadingP.RenderPass, image.Framebuffer, area, []metadata.ClearValue{
		metadata.ClearColor(c[0], c[1], c[2], c[3]),
		metadata.ClearDepth(1),
	})
	cmd.SetViewport(metadata.Viewport{Width: float32(extent.Width), Height: float32(extent.Height), MaxDepth: 1})
	cmd.SetScissor(area)
	cmd.BindPipeline(po.shadingP.Handle)
	cmd.BindDescriptorSet(po.shadingP.Handle, slot.ShadingSet)
	cmd.BindVertexBuffer(po.scene.Vertices.Handle, 0)
	cmd.BindIndexBuffer(po.scene.Indices.Handle, 0)
	cmd.DrawIndexed(po.scene.IndexCount, 1)
	cmd.EndRenderPass()

	if err := cmd.End(); err != nil {
		return fmt.Errorf("failed to end commands: %w", err)
	}
	return nil
}
