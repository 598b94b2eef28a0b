package metadata

import "strings"

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	ResourceTypeNone ResourceType = iota
	/** @brief Binary resource type. */
	ResourceTypeBinary
	/** @brief Compiled SPIR-V shader module. */
	ResourceTypeShader
	/** @brief TOML configuration document. */
	ResourceTypeConfig
)

/**
 * @brief A generic structure for a resource. All asset loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data. */
	Data interface{}
}

// Opaque device object handles. Zero is never a valid handle.
type (
	FenceHandle            uint64
	SemaphoreHandle        uint64
	CommandBufferHandle    uint64
	ImageHandle            uint64
	BufferHandle           uint64
	SamplerHandle          uint64
	RenderPassHandle       uint64
	FramebufferHandle      uint64
	PipelineHandle         uint64
	DescriptorLayoutHandle uint64
	DescriptorSetHandle    uint64
	SwapchainHandle        uint64
)

// ResourceUsage declares how a device resource may be bound.
type ResourceUsage uint32

const (
	UsageColorTarget ResourceUsage = 1 << iota
	UsageDepthTarget
	UsageSampled
	UsageUniform
	UsageVertex
	UsageIndex
)

const (
	ImageUsages  = UsageColorTarget | UsageDepthTarget | UsageSampled
	BufferUsages = UsageUniform | UsageVertex | UsageIndex
)

func (u ResourceUsage) Has(other ResourceUsage) bool {
	return other != 0 && u&other == other
}

func (u ResourceUsage) String() string {
	if u == 0 {
		return "none"
	}
	names := []string{}
	for _, n := range []struct {
		bit  ResourceUsage
		name string
	}{
		{UsageColorTarget, "color-target"},
		{UsageDepthTarget, "depth-target"},
		{UsageSampled, "sampled"},
		{UsageUniform, "uniform"},
		{UsageVertex, "vertex"},
		{UsageIndex, "index"},
	} {
		if u&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

type BufferDesc struct {
	Name  string
	Size  uint64
	Usage ResourceUsage
	// HostVisible buffers are persistently mapped and written by the host.
	HostVisible bool
}

type SamplerFilter int

const (
	SamplerFilterNearest SamplerFilter = iota
	SamplerFilterLinear
)

type SamplerAddressMode int

const (
	SamplerAddressClampToEdge SamplerAddressMode = iota
	SamplerAddressClampToBorder
	SamplerAddressRepeat
)

type SamplerDesc struct {
	Name        string
	Filter      SamplerFilter
	AddressMode SamplerAddressMode
	// BorderWhite selects an opaque white border colour, so samples outside
	// a depth map read as "farthest".
	BorderWhite bool
}
