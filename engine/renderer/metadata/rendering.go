package metadata

type ImageLayout int

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutColorAttachment
	ImageLayoutDepthAttachment
	ImageLayoutShaderReadOnly
	ImageLayoutPresentSrc
)

type PipelineStage uint32

const (
	PipelineStageTopOfPipe PipelineStage = 1 << iota
	PipelineStageVertexShader
	PipelineStageEarlyFragmentTests
	PipelineStageFragmentShader
	PipelineStageLateFragmentTests
	PipelineStageColorAttachmentOutput
	PipelineStageBottomOfPipe
)

type Access uint32

const (
	AccessShaderRead Access = 1 << iota
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessDepthAttachmentRead
	AccessDepthAttachmentWrite
)

type ImageAspect int

const (
	ImageAspectColor ImageAspect = iota
	ImageAspectDepth
	ImageAspectDepthStencil
)

// AspectOf returns every aspect a layout transition on an image of format f
// has to cover.
func AspectOf(f Format) ImageAspect {
	switch {
	case f.HasStencil():
		return ImageAspectDepthStencil
	case f.IsDepth():
		return ImageAspectDepth
	default:
		return ImageAspectColor
	}
}

// ImageBarrier is an execution and memory dependency with a layout transition
// on a single image.
type ImageBarrier struct {
	Image     ImageHandle
	Aspect    ImageAspect
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcStage  PipelineStage
	SrcAccess Access
	DstStage  PipelineStage
	DstAccess Access
}

type AttachmentDesc struct {
	Format        Format
	Clear         bool
	Store         bool
	InitialLayout ImageLayout
	FinalLayout   ImageLayout
}

// SubpassDependency orders the single subpass against work outside the pass.
type SubpassDependency struct {
	// Incoming is true for external -> subpass, false for subpass -> external.
	Incoming  bool
	SrcStage  PipelineStage
	SrcAccess Access
	DstStage  PipelineStage
	DstAccess Access
	// ByRegion limits the dependency to matching framebuffer regions. Leave
	// it unset when the other side reads arbitrary texels.
	ByRegion bool
}

type RenderPassDesc struct {
	Name         string
	Color        *AttachmentDesc
	Depth        *AttachmentDesc
	Dependencies []SubpassDependency
}

type FramebufferDesc struct {
	RenderPass  RenderPassHandle
	Attachments []ImageHandle
	Width       uint32
	Height      uint32
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
	IsDepth bool
}

func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

func ClearDepth(depth float32) ClearValue {
	return ClearValue{Depth: depth, IsDepth: true}
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

type Rect struct {
	X, Y          int32
	Width, Height uint32
}

type SwapchainDesc struct {
	Width  uint32
	Height uint32
	Old    SwapchainHandle
}

type SwapchainInfo struct {
	Handle SwapchainHandle
	Format Format
	Extent Extent2D
	// Images are presentable colour images; they are owned by the swapchain.
	Images []ImageHandle
}

// DeviceInfo describes a physical device for listings.
type DeviceInfo struct {
	Name          string
	Type          string
	APIVersion    string
	DriverVersion string
	Suitable      bool
	Reason        string
}
