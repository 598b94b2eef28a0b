package renderer

import (
	"fmt"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

const (
	ShadowVertexShader    = "shadow.vert"
	ShadingVertexShader   = "sss.vert"
	ShadingFragmentShader = "sss.frag"

	spirvMagic       uint32 = 0x07230203
	spirvHeaderWords        = 5
)

// Shadow depth bias, applied by the rasterizer to reduce acne.
var shadowDepthBias = metadata.DepthBias{ConstantFactor: 1.25, SlopeFactor: 1.75}

// Pipeline is a graphics pipeline together with the render pass and the
// descriptor layout it was built against.
type Pipeline struct {
	Name       string
	Handle     metadata.PipelineHandle
	RenderPass metadata.RenderPassHandle
	Layout     metadata.DescriptorLayoutHandle
	Bindings   []metadata.DescriptorBinding
}

// PipelineCatalog builds and owns the shadow and shading pipelines.
type PipelineCatalog struct {
	device    PipelineDevice
	shaders   ShaderSource
	vertex    metadata.VertexLayout
	pipelines []*Pipeline
}

func NewPipelineCatalog(device PipelineDevice, shaders ShaderSource, vertex metadata.VertexLayout) *PipelineCatalog {
	return &PipelineCatalog{
		device:  device,
		shaders: shaders,
		vertex:  vertex,
	}
}

func ShadowBindings() []metadata.DescriptorBinding {
	return []metadata.DescriptorBinding{
		{Binding: 0, Type: metadata.DescriptorTypeUniformBuffer, Stages: metadata.ShaderStageVertex},
	}
}

func ShadingBindings() []metadata.DescriptorBinding {
	return []metadata.DescriptorBinding{
		{Binding: 0, Type: metadata.DescriptorTypeUniformBuffer, Stages: metadata.ShaderStageVertex | metadata.ShaderStageFragment},
		{Binding: 1, Type: metadata.DescriptorTypeCombinedImageSampler, Stages: metadata.ShaderStageFragment},
	}
}

// ParseCullMode maps the renderer.shadow_cull config value.
func ParseCullMode(s string) (metadata.FaceCullMode, error) {
	switch s {
	case "back", "":
		return metadata.FaceCullModeBack, nil
	case "none":
		return metadata.FaceCullModeNone, nil
	default:
		return metadata.FaceCullModeNone, fmt.Errorf("%w: unknown cull mode `%s`", core.ErrInvalidConfig, s)
	}
}

// BuildShadowPipeline builds the depth-only pipeline rendered from the light.
// Its render pass leaves the depth image in the depth-attachment layout; the
// transition to a sampled layout is recorded explicitly between the passes.
func (pc *PipelineCatalog) BuildShadowPipeline(depthFormat metadata.Format, cull metadata.FaceCullMode) (*Pipeline, error) {
	if !depthFormat.IsDepth() {
		return nil, fmt.Errorf("%w: shadow pass needs a depth format", core.ErrIncompatibleLayout)
	}
	if cull != metadata.FaceCullModeNone && cull != metadata.FaceCullModeBack {
		return nil, fmt.Errorf("%w: shadow pass supports only none or back culling", core.ErrIncompatibleLayout)
	}
	stages, err := pc.loadStages(map[metadata.ShaderStage]string{
		metadata.ShaderStageVertex: ShadowVertexShader,
	})
	if err != nil {
		return nil, err
	}
	pass := metadata.RenderPassDesc{
		Name: "shadow",
		Depth: &metadata.AttachmentDesc{
			Format:        depthFormat,
			Clear:         true,
			Store:         true,
			InitialLayout: metadata.ImageLayoutUndefined,
			FinalLayout:   metadata.ImageLayoutDepthAttachment,
		},
		Dependencies: []metadata.SubpassDependency{
			// the previous frame's shading pass must finish sampling before
			// this pass overwrites the depth image
			{
				Incoming:  true,
				SrcStage:  metadata.PipelineStageFragmentShader,
				SrcAccess: metadata.AccessShaderRead,
				DstStage:  metadata.PipelineStageEarlyFragmentTests | metadata.PipelineStageLateFragmentTests,
				DstAccess: metadata.AccessDepthAttachmentRead | metadata.AccessDepthAttachmentWrite,
			},
		},
	}
	bias := shadowDepthBias
	return pc.build(pass, ShadowBindings(), metadata.PipelineDesc{
		Name:       "shadow",
		Stages:     stages,
		Vertex:     pc.vertex,
		CullMode:   cull,
		DepthTest:  true,
		DepthWrite: true,
		DepthBias:  &bias,
		HasColor:   false,
	})
}

// BuildShadingPipeline builds the pipeline that shades the scene into the
// swapchain image, sampling the shadow map.
func (pc *PipelineCatalog) BuildShadingPipeline(colorFormat, depthFormat metadata.Format) (*Pipeline, error) {
	if colorFormat == metadata.FormatUndefined || colorFormat.IsDepth() {
		return nil, fmt.Errorf("%w: shading pass needs a color format", core.ErrIncompatibleLayout)
	}
	if !depthFormat.IsDepth() {
		return nil, fmt.Errorf("%w: shading pass needs a depth format", core.ErrIncompatibleLayout)
	}
	stages, err := pc.loadStages(map[metadata.ShaderStage]string{
		metadata.ShaderStageVertex:   ShadingVertexShader,
		metadata.ShaderStageFragment: ShadingFragmentShader,
	})
	if err != nil {
		return nil, err
	}
	pass := metadata.RenderPassDesc{
		Name: "shading",
		Color: &metadata.AttachmentDesc{
			Format:        colorFormat,
			Clear:         true,
			Store:         true,
			InitialLayout: metadata.ImageLayoutUndefined,
			FinalLayout:   metadata.ImageLayoutPresentSrc,
		},
		Depth: &metadata.AttachmentDesc{
			Format:        depthFormat,
			Clear:         true,
			Store:         false,
			InitialLayout: metadata.ImageLayoutUndefined,
			FinalLayout:   metadata.ImageLayoutDepthAttachment,
		},
		Dependencies: []metadata.SubpassDependency{
			// every slot shares the swapchain depth image, so the clear must
			// also wait for the previous frame's depth writes
			{
				Incoming:  true,
				SrcStage:  metadata.PipelineStageColorAttachmentOutput | metadata.PipelineStageEarlyFragmentTests | metadata.PipelineStageLateFragmentTests,
				SrcAccess: metadata.AccessDepthAttachmentWrite,
				DstStage:  metadata.PipelineStageColorAttachmentOutput | metadata.PipelineStageEarlyFragmentTests,
				DstAccess: metadata.AccessColorAttachmentWrite | metadata.AccessDepthAttachmentWrite,
			},
		},
	}
	return pc.build(pass, ShadingBindings(), metadata.PipelineDesc{
		Name:       "shading",
		Stages:     stages,
		Vertex:     pc.vertex,
		CullMode:   metadata.FaceCullModeBack,
		DepthTest:  true,
		DepthWrite: true,
		HasColor:   true,
	})
}

func (pc *PipelineCatalog) loadStages(names map[metadata.ShaderStage]string) ([]metadata.ShaderStageDesc, error) {
	stages := []metadata.ShaderStageDesc{}
	for _, stage := range []metadata.ShaderStage{metadata.ShaderStageVertex, metadata.ShaderStageFragment} {
		name, ok := names[stage]
		if !ok {
			continue
		}
		code, err := pc.shaders.LoadShader(name)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s shader `%s`: %w", stage, name, err)
		}
		if err := ValidateSPIRV(code); err != nil {
			return nil, fmt.Errorf("shader `%s`: %w", name, err)
		}
		stages = append(stages, metadata.ShaderStageDesc{Stage: stage, Name: name, Code: code})
	}
	return stages, nil
}

func (pc *PipelineCatalog) build(pass metadata.RenderPassDesc, bindings []metadata.DescriptorBinding, desc metadata.PipelineDesc) (*Pipeline, error) {
	if err := ValidateLayout(desc.Vertex, bindings, desc.Stages); err != nil {
		return nil, fmt.Errorf("pipeline `%s`: %w", desc.Name, err)
	}
	rp, err := pc.device.CreateRenderPass(pass)
	if err != nil {
		return nil, fmt.Errorf("failed to create render pass `%s`: %w", pass.Name, err)
	}
	layout, err := pc.device.CreateDescriptorLayout(bindings)
	if err != nil {
		pc.device.DestroyRenderPass(rp)
		return nil, fmt.Errorf("failed to create descriptor layout for `%s`: %w", desc.Name, err)
	}
	desc.RenderPass = rp
	desc.DescriptorLayouts = []metadata.DescriptorLayoutHandle{layout}
	handle, err := pc.device.CreatePipeline(desc)
	if err != nil {
		pc.device.DestroyDescriptorLayout(layout)
		pc.device.DestroyRenderPass(rp)
		return nil, fmt.Errorf("failed to create pipeline `%s`: %w", desc.Name, err)
	}
	p := &Pipeline{
		Name:       desc.Name,
		Handle:     handle,
		RenderPass: rp,
		Layout:     layout,
		Bindings:   bindings,
	}
	pc.pipelines = append(pc.pipelines, p)
	core.LogDebug("pipeline `%s` created with %d stages", desc.Name, len(desc.Stages))
	return p, nil
}

// ValidateSPIRV checks the module header.
func ValidateSPIRV(code []uint32) error {
	if len(code) < spirvHeaderWords {
		return fmt.Errorf("%w: module of %d words is shorter than the header", core.ErrShaderInvalid, len(code))
	}
	if code[0] != spirvMagic {
		return fmt.Errorf("%w: bad magic number 0x%08x", core.ErrShaderInvalid, code[0])
	}
	return nil
}

// ValidateLayout checks a vertex layout and descriptor bindings against the
// stages that will consume them.
func ValidateLayout(vertex metadata.VertexLayout, bindings []metadata.DescriptorBinding, stages []metadata.ShaderStageDesc) error {
	if len(stages) == 0 {
		return fmt.Errorf("%w: no shader stages", core.ErrIncompatibleLayout)
	}
	hasVertex := false
	var present metadata.ShaderStage
	for _, s := range stages {
		if present&s.Stage != 0 {
			return fmt.Errorf("%w: duplicate %s stage", core.ErrIncompatibleLayout, s.Stage)
		}
		present |= s.Stage
		if s.Stage == metadata.ShaderStageVertex {
			hasVertex = true
		}
	}
	if !hasVertex {
		return fmt.Errorf("%w: missing vertex stage", core.ErrIncompatibleLayout)
	}

	if vertex.Stride == 0 || len(vertex.Attributes) == 0 {
		return fmt.Errorf("%w: empty vertex layout", core.ErrIncompatibleLayout)
	}
	locations := map[uint32]bool{}
	for _, a := range vertex.Attributes {
		if locations[a.Location] {
			return fmt.Errorf("%w: vertex location %d bound twice", core.ErrIncompatibleLayout, a.Location)
		}
		locations[a.Location] = true
		if a.Offset+a.Format.Size() > vertex.Stride {
			return fmt.Errorf("%w: vertex attribute %d overflows stride %d", core.ErrIncompatibleLayout, a.Location, vertex.Stride)
		}
	}

	seen := map[uint32]bool{}
	for _, b := range bindings {
		if seen[b.Binding] {
			return fmt.Errorf("%w: descriptor binding %d declared twice", core.ErrIncompatibleLayout, b.Binding)
		}
		seen[b.Binding] = true
		if b.Stages == 0 || b.Stages&^present != 0 {
			return fmt.Errorf("%w: binding %d is visible to %s which the pipeline lacks", core.ErrIncompatibleLayout, b.Binding, b.Stages)
		}
	}
	return nil
}

// Destroy releases every pipeline with its layout and render pass. The
// device must be idle.
func (pc *PipelineCatalog) Destroy() {
	for i := len(pc.pipelines) - 1; i >= 0; i-- {
		p := pc.pipelines[i]
		pc.device.DestroyPipeline(p.Handle)
		pc.device.DestroyDescriptorLayout(p.Layout)
		pc.device.DestroyRenderPass(p.RenderPass)
	}
	pc.pipelines = nil
}
