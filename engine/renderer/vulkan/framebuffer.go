package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

func (vr *VulkanRenderer) CreateFramebuffer(desc metadata.FramebufferDesc) (metadata.FramebufferHandle, error) {
	renderPass, ok := vr.renderPasses.get(uint64(desc.RenderPass))
	if !ok {
		return 0, fmt.Errorf("framebuffer for unknown render pass %d", desc.RenderPass)
	}

	views := make([]vk.ImageView, len(desc.Attachments))
	for i, h := range desc.Attachments {
		img, ok := vr.images.get(uint64(h))
		if !ok {
			return 0, fmt.Errorf("framebuffer attachment %d references unknown image %d", i, h)
		}
		views[i] = img.View
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           desc.Width,
		Height:          desc.Height,
		Layers:          1,
	}

	var framebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(vr.context.Device.LogicalDevice, &framebufferCreateInfo, vr.context.Allocator, &framebuffer); res != vk.Success {
		return 0, vulkanError("failed to create framebuffer", res)
	}
	return metadata.FramebufferHandle(vr.framebuffers.add(framebuffer)), nil
}

func (vr *VulkanRenderer) DestroyFramebuffer(h metadata.FramebufferHandle) {
	if framebuffer, ok := vr.framebuffers.remove(uint64(h)); ok {
		vk.DestroyFramebuffer(vr.context.Device.LogicalDevice, framebuffer, vr.context.Allocator)
	}
}
