package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

func attachmentDescription(desc *metadata.AttachmentDesc) vk.AttachmentDescription {
	attachment := vk.AttachmentDescription{
		Format:         toVkFormat(desc.Format),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpDontCare,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  toVkLayout(desc.InitialLayout),
		FinalLayout:    toVkLayout(desc.FinalLayout),
	}
	if desc.Clear {
		attachment.LoadOp = vk.AttachmentLoadOpClear
	}
	if desc.Store {
		attachment.StoreOp = vk.AttachmentStoreOpStore
	}
	return attachment
}

func subpassDependencies(deps []metadata.SubpassDependency) []vk.SubpassDependency {
	out := make([]vk.SubpassDependency, 0, len(deps))
	for _, d := range deps {
		dependency := vk.SubpassDependency{
			SrcSubpass:    0,
			DstSubpass:    vk.SubpassExternal,
			SrcStageMask:  toVkStages(d.SrcStage),
			SrcAccessMask: toVkAccess(d.SrcAccess),
			DstStageMask:  toVkStages(d.DstStage),
			DstAccessMask: toVkAccess(d.DstAccess),
		}
		if d.Incoming {
			dependency.SrcSubpass = vk.SubpassExternal
			dependency.DstSubpass = 0
		}
		if d.ByRegion {
			dependency.DependencyFlags = vk.DependencyFlags(vk.DependencyByRegionBit)
		}
		out = append(out, dependency)
	}
	return out
}

// CreateRenderPass builds a single-subpass render pass. The colour
// attachment, when present, always comes first.
func (vr *VulkanRenderer) CreateRenderPass(desc metadata.RenderPassDesc) (metadata.RenderPassHandle, error) {
	if desc.Color == nil && desc.Depth == nil {
		return 0, fmt.Errorf("render pass `%s` has no attachments", desc.Name)
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint: vk.PipelineBindPointGraphics,
	}
	attachments := []vk.AttachmentDescription{}

	if desc.Color != nil {
		attachments = append(attachments, attachmentDescription(desc.Color))
		subpass.ColorAttachmentCount = 1
		subpass.PColorAttachments = []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}}
	}
	if desc.Depth != nil {
		depthAttachmentReference := vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		attachments = append(attachments, attachmentDescription(desc.Depth))
		subpass.PDepthStencilAttachment = &depthAttachmentReference
	}

	dependencies := subpassDependencies(desc.Dependencies)

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var renderPass vk.RenderPass
	if res := vk.CreateRenderPass(vr.context.Device.LogicalDevice, &renderpassCreateInfo, vr.context.Allocator, &renderPass); res != vk.Success {
		return 0, vulkanError(fmt.Sprintf("failed to create render pass `%s`", desc.Name), res)
	}
	core.LogDebug("Render pass `%s` created with %d attachment(s).", desc.Name, len(attachments))
	return metadata.RenderPassHandle(vr.renderPasses.add(renderPass)), nil
}

func (vr *VulkanRenderer) DestroyRenderPass(h metadata.RenderPassHandle) {
	if renderPass, ok := vr.renderPasses.remove(uint64(h)); ok {
		vk.DestroyRenderPass(vr.context.Device.LogicalDevice, renderPass, vr.context.Allocator)
	}
}
