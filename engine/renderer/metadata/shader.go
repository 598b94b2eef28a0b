package metadata

type ShaderStage int

const (
	ShaderStageVertex   ShaderStage = 0x00000001
	ShaderStageFragment ShaderStage = 0x00000004
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	case ShaderStageVertex | ShaderStageFragment:
		return "vertex|fragment"
	default:
		return "unknown"
	}
}

type ShaderStageDesc struct {
	Stage ShaderStage
	Name  string
	// SPIR-V words.
	Code []uint32
}

type FaceCullMode int

const (
	FaceCullModeNone FaceCullMode = iota
	FaceCullModeFront
	FaceCullModeBack
	FaceCullModeFrontAndBack
)

type VertexFormat int

const (
	VertexFormatFloat2 VertexFormat = iota
	VertexFormatFloat3
	VertexFormatFloat4
)

func (f VertexFormat) Size() uint32 {
	switch f {
	case VertexFormatFloat2:
		return 8
	case VertexFormatFloat3:
		return 12
	default:
		return 16
	}
}

type VertexAttribute struct {
	Location uint32
	Format   VertexFormat
	Offset   uint32
}

type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}

type DescriptorType int

const (
	DescriptorTypeUniformBuffer DescriptorType = iota
	DescriptorTypeCombinedImageSampler
)

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStage
}

type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType
	// Uniform buffer range, used for DescriptorTypeUniformBuffer.
	Buffer BufferHandle
	Offset uint64
	Range  uint64
	// Sampled image, used for DescriptorTypeCombinedImageSampler.
	Image   ImageHandle
	Sampler SamplerHandle
}

type DepthBias struct {
	ConstantFactor float32
	SlopeFactor    float32
}

type PipelineDesc struct {
	Name              string
	RenderPass        RenderPassHandle
	Stages            []ShaderStageDesc
	Vertex            VertexLayout
	DescriptorLayouts []DescriptorLayoutHandle
	CullMode          FaceCullMode
	DepthTest         bool
	DepthWrite        bool
	DepthBias         *DepthBias
	// HasColor is false for depth-only pipelines.
	HasColor bool
}
