package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

var formats = map[metadata.Format]vk.Format{
	metadata.FormatUndefined:       vk.FormatUndefined,
	metadata.FormatBGRA8Unorm:      vk.FormatB8g8r8a8Unorm,
	metadata.FormatBGRA8Srgb:       vk.FormatB8g8r8a8Srgb,
	metadata.FormatRGBA8Unorm:      vk.FormatR8g8b8a8Unorm,
	metadata.FormatD32Sfloat:       vk.FormatD32Sfloat,
	metadata.FormatD32SfloatS8Uint: vk.FormatD32SfloatS8Uint,
	metadata.FormatD24UnormS8Uint:  vk.FormatD24UnormS8Uint,
}

func toVkFormat(f metadata.Format) vk.Format {
	if vf, ok := formats[f]; ok {
		return vf
	}
	return vk.FormatUndefined
}

func fromVkFormat(vf vk.Format) metadata.Format {
	for f, v := range formats {
		if v == vf {
			return f
		}
	}
	return metadata.FormatUndefined
}

func toVkLayout(l metadata.ImageLayout) vk.ImageLayout {
	switch l {
	case metadata.ImageLayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case metadata.ImageLayoutDepthAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case metadata.ImageLayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case metadata.ImageLayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutUndefined
	}
}

func toVkStages(s metadata.PipelineStage) vk.PipelineStageFlags {
	var out vk.PipelineStageFlagBits
	for bit, vb := range map[metadata.PipelineStage]vk.PipelineStageFlagBits{
		metadata.PipelineStageTopOfPipe:            vk.PipelineStageTopOfPipeBit,
		metadata.PipelineStageVertexShader:         vk.PipelineStageVertexShaderBit,
		metadata.PipelineStageEarlyFragmentTests:   vk.PipelineStageEarlyFragmentTestsBit,
		metadata.PipelineStageFragmentShader:       vk.PipelineStageFragmentShaderBit,
		metadata.PipelineStageLateFragmentTests:    vk.PipelineStageLateFragmentTestsBit,
		metadata.PipelineStageColorAttachmentOutput: vk.PipelineStageColorAttachmentOutputBit,
		metadata.PipelineStageBottomOfPipe:         vk.PipelineStageBottomOfPipeBit,
	} {
		if s&bit != 0 {
			out |= vb
		}
	}
	return vk.PipelineStageFlags(out)
}

func toVkAccess(a metadata.Access) vk.AccessFlags {
	var out vk.AccessFlagBits
	for bit, vb := range map[metadata.Access]vk.AccessFlagBits{
		metadata.AccessShaderRead:           vk.AccessShaderReadBit,
		metadata.AccessColorAttachmentRead:  vk.AccessColorAttachmentReadBit,
		metadata.AccessColorAttachmentWrite: vk.AccessColorAttachmentWriteBit,
		metadata.AccessDepthAttachmentRead:  vk.AccessDepthStencilAttachmentReadBit,
		metadata.AccessDepthAttachmentWrite: vk.AccessDepthStencilAttachmentWriteBit,
	} {
		if a&bit != 0 {
			out |= vb
		}
	}
	return vk.AccessFlags(out)
}

func toVkAspect(a metadata.ImageAspect) vk.ImageAspectFlags {
	switch a {
	case metadata.ImageAspectDepth:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	case metadata.ImageAspectDepthStencil:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	default:
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
}

func toVkShaderStages(s metadata.ShaderStage) vk.ShaderStageFlags {
	var out vk.ShaderStageFlagBits
	if s&metadata.ShaderStageVertex != 0 {
		out |= vk.ShaderStageVertexBit
	}
	if s&metadata.ShaderStageFragment != 0 {
		out |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(out)
}

func toVkImageUsage(u metadata.ResourceUsage) vk.ImageUsageFlags {
	var out vk.ImageUsageFlagBits
	if u&metadata.UsageColorTarget != 0 {
		out |= vk.ImageUsageColorAttachmentBit
	}
	if u&metadata.UsageDepthTarget != 0 {
		out |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&metadata.UsageSampled != 0 {
		out |= vk.ImageUsageSampledBit
	}
	return vk.ImageUsageFlags(out)
}

func toVkBufferUsage(u metadata.ResourceUsage) vk.BufferUsageFlags {
	var out vk.BufferUsageFlagBits
	if u&metadata.UsageUniform != 0 {
		out |= vk.BufferUsageUniformBufferBit
	}
	if u&metadata.UsageVertex != 0 {
		out |= vk.BufferUsageVertexBufferBit
	}
	if u&metadata.UsageIndex != 0 {
		out |= vk.BufferUsageIndexBufferBit
	}
	return vk.BufferUsageFlags(out)
}

func toVkDescriptorType(t metadata.DescriptorType) vk.DescriptorType {
	if t == metadata.DescriptorTypeCombinedImageSampler {
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func toVkVertexFormat(f metadata.VertexFormat) vk.Format {
	switch f {
	case metadata.VertexFormatFloat2:
		return vk.FormatR32g32Sfloat
	case metadata.VertexFormatFloat3:
		return vk.FormatR32g32b32Sfloat
	default:
		return vk.FormatR32g32b32a32Sfloat
	}
}

func toVkCullMode(m metadata.FaceCullMode) vk.CullModeFlags {
	switch m {
	case metadata.FaceCullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeFrontAndBack:
		return vk.CullModeFlags(vk.CullModeFrontAndBack)
	default:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
}

func toVkFilter(f metadata.SamplerFilter) vk.Filter {
	if f == metadata.SamplerFilterLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

func toVkAddressMode(m metadata.SamplerAddressMode) vk.SamplerAddressMode {
	switch m {
	case metadata.SamplerAddressClampToBorder:
		return vk.SamplerAddressModeClampToBorder
	case metadata.SamplerAddressRepeat:
		return vk.SamplerAddressModeRepeat
	default:
		return vk.SamplerAddressModeClampToEdge
	}
}

func toVkClearValues(clears []metadata.ClearValue) []vk.ClearValue {
	out := make([]vk.ClearValue, len(clears))
	for i, c := range clears {
		if c.IsDepth {
			out[i].SetDepthStencil(c.Depth, c.Stencil)
		} else {
			out[i].SetColor(c.Color[:])
		}
	}
	return out
}

func toVkRect(r metadata.Rect) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Width, Height: r.Height},
	}
}
