package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/geometry"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
	"github.com/spaghettifunk/subsurface/engine/renderer/shading"
)

// Options configures a Renderer.
type Options struct {
	Config core.RendererConfig
	Params shading.Params
	Width  uint32
	Height uint32
}

// Renderer draws the scene once per call to Render: a shadow map from the
// light, then the scene shaded with subsurface scattering.
type Renderer struct {
	backend   Backend
	resources *ResourceManager
	pipelines *PipelineCatalog
	swapchain *SwapchainManager
	sync      *FrameSynchronizer
	passes    *PassOrchestrator

	shadow *ShadowTarget
	scene  *SceneGeometry
}

func New(backend Backend, shaders ShaderSource, mesh *geometry.Mesh, opts Options) (r *Renderer, err error) {
	cfg := opts.Config
	if len(mesh.Indices) == 0 {
		return nil, errors.New("renderer needs a non-empty mesh")
	}
	cull, err := ParseCullMode(cfg.ShadowCull)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.FenceTimeoutMS) * time.Millisecond

	r = &Renderer{backend: backend}
	defer func() {
		if err != nil {
			_ = r.destroy()
			r = nil
		}
	}()

	r.resources = NewResourceManager(backend, defaultReleaseCapacity)
	r.sync, err = NewFrameSynchronizer(backend, int(cfg.FramesInFlight), timeout)
	if err != nil {
		return r, err
	}
	r.swapchain = NewSwapchainManager(backend, r.resources, r.sync.WaitIdle, timeout)
	if err = r.swapchain.Create(opts.Width, opts.Height); err != nil {
		return r, err
	}

	r.pipelines = NewPipelineCatalog(backend, shaders, geometry.Layout())
	shadowP, err := r.pipelines.BuildShadowPipeline(backend.DepthFormat(), cull)
	if err != nil {
		return r, err
	}
	shadingP, err := r.pipelines.BuildShadingPipeline(r.swapchain.Format(), backend.DepthFormat())
	if err != nil {
		return r, err
	}
	if err = r.swapchain.AttachRenderPass(shadingP.RenderPass); err != nil {
		return r, err
	}

	if r.shadow, err = r.createShadowTarget(shadowP, cfg.ShadowMapSize); err != nil {
		return r, err
	}
	if r.scene, err = r.uploadScene(mesh); err != nil {
		return r, err
	}
	if err = r.createSlotResources(shadowP, shadingP); err != nil {
		return r, err
	}

	r.passes = NewPassOrchestrator(r.sync, r.swapchain, r.resources, shadowP, shadingP, r.shadow, r.scene, opts.Params, cfg.ClearColor)
	core.LogInfo("renderer initialized: %d frames in flight, %dx%d shadow map", cfg.FramesInFlight, cfg.ShadowMapSize, cfg.ShadowMapSize)
	return r, nil
}

func (r *Renderer) createShadowTarget(shadowP *Pipeline, size uint32) (*ShadowTarget, error) {
	img, err := r.resources.CreateImage(metadata.ImageDesc{
		Name:   "shadow-map",
		Width:  size,
		Height: size,
		Format: r.backend.DepthFormat(),
		Usage:  metadata.UsageDepthTarget | metadata.UsageSampled,
	})
	if err != nil {
		return nil, err
	}
	sampler, err := r.resources.CreateSampler(metadata.SamplerDesc{
		Name:        "shadow-map",
		Filter:      metadata.SamplerFilterNearest,
		AddressMode: metadata.SamplerAddressClampToBorder,
		BorderWhite: true,
	})
	if err != nil {
		return nil, err
	}
	if err := r.resources.RequireUsage(img, metadata.UsageDepthTarget); err != nil {
		return nil, err
	}
	fb, err := r.backend.CreateFramebuffer(metadata.FramebufferDesc{
		RenderPass:  shadowP.RenderPass,
		Attachments: []metadata.ImageHandle{img.Handle},
		Width:       size,
		Height:      size,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create shadow framebuffer: %w", err)
	}
	return &ShadowTarget{Image: img, Sampler: sampler, Framebuffer: fb, Size: size}, nil
}

func (r *Renderer) uploadScene(mesh *geometry.Mesh) (*SceneGeometry, error) {
	vertices := mesh.VertexBytes()
	vb, err := r.resources.CreateBuffer(metadata.BufferDesc{
		Name:        mesh.Name + "-vertices",
		Size:        uint64(len(vertices)),
		Usage:       metadata.UsageVertex,
		HostVisible: true,
	})
	if err != nil {
		return nil, err
	}
	if err := r.resources.WriteBuffer(vb, 0, vertices); err != nil {
		return nil, err
	}
	indices := mesh.IndexBytes()
	ib, err := r.resources.CreateBuffer(metadata.BufferDesc{
		Name:        mesh.Name + "-indices",
		Size:        uint64(len(indices)),
		Usage:       metadata.UsageIndex,
		HostVisible: true,
	})
	if err != nil {
		return nil, err
	}
	if err := r.resources.WriteBuffer(ib, 0, indices); err != nil {
		return nil, err
	}
	return &SceneGeometry{Vertices: vb, Indices: ib, IndexCount: mesh.IndexCount()}, nil
}

// createSlotResources gives every frame slot its own uniform buffer and the
// two descriptor sets that read it.
func (r *Renderer) createSlotResources(shadowP, shadingP *Pipeline) error {
	if err := r.resources.RequireUsage(r.shadow.Image, metadata.UsageSampled); err != nil {
		return err
	}
	for _, slot := range r.sync.Slots() {
		ub, err := r.resources.CreateBuffer(metadata.BufferDesc{
			Name:        fmt.Sprintf("frame-uniforms-%d", slot.Index),
			Size:        UniformBlockSize,
			Usage:       metadata.UsageUniform,
			HostVisible: true,
		})
		if err != nil {
			return err
		}
		if err := r.resources.RequireUsage(ub, metadata.UsageUniform); err != nil {
			return err
		}
		slot.Uniforms = ub
		uniform := metadata.DescriptorWrite{
			Binding: 0,
			Type:    metadata.DescriptorTypeUniformBuffer,
			Buffer:  ub.Handle,
			Range:   UniformBlockSize,
		}

		if slot.ShadowSet, err = r.backend.AllocateDescriptorSet(shadowP.Layout); err != nil {
			return err
		}
		if err := r.backend.UpdateDescriptorSet(slot.ShadowSet, []metadata.DescriptorWrite{uniform}); err != nil {
			return err
		}

		if slot.ShadingSet, err = r.backend.AllocateDescriptorSet(shadingP.Layout); err != nil {
			return err
		}
		err = r.backend.UpdateDescriptorSet(slot.ShadingSet, []metadata.DescriptorWrite{
			uniform,
			{
				Binding: 1,
				Type:    metadata.DescriptorTypeCombinedImageSampler,
				Image:   r.shadow.Image.Handle,
				Sampler: r.shadow.Sampler.Handle,
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Render draws one frame with the camera and light matrices. Frames lost to
// a swapchain rebuild are dropped silently; a returned error is fatal.
func (r *Renderer) Render(viewProjection, shadowMatrix mgl32.Mat4) error {
	return r.passes.RenderFrame(viewProjection, shadowMatrix)
}

// Resize notes a new framebuffer size; the swapchain is rebuilt before the
// next frame.
func (r *Renderer) Resize(width, height uint32) {
	r.swapchain.Resize(width, height)
}

func (r *Renderer) SetShadingParams(p shading.Params) {
	r.passes.SetParams(p)
}

func (r *Renderer) ShadingParams() shading.Params {
	return r.passes.Params()
}

func (r *Renderer) Stats() FrameStats {
	return r.passes.Stats()
}

func (r *Renderer) Extent() metadata.Extent2D {
	return r.swapchain.Extent()
}

// Shutdown waits for the GPU and destroys every object the renderer owns.
func (r *Renderer) Shutdown() error {
	return r.destroy()
}

func (r *Renderer) destroy() error {
	var err error
	if r.sync != nil {
		if err = r.sync.WaitIdle(); err != nil {
			core.LogError("wait idle during teardown: %s", err)
		}
	}
	if r.shadow != nil && r.shadow.Framebuffer != 0 {
		r.backend.DestroyFramebuffer(r.shadow.Framebuffer)
		r.shadow.Framebuffer = 0
	}
	if r.swapchain != nil {
		r.swapchain.Destroy()
	}
	if r.pipelines != nil {
		r.pipelines.Destroy()
	}
	if r.sync != nil {
		r.sync.Destroy()
		r.sync = nil
	}
	if r.resources != nil {
		r.resources.DestroyAll()
	}
	return err
}
