package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

// VulkanCommandBuffer records into a primary command buffer, resolving
// opaque handles through the renderer that allocated it.
type VulkanCommandBuffer struct {
	id     metadata.CommandBufferHandle
	Native vk.CommandBuffer
	State  VulkanCommandBufferState

	vr *VulkanRenderer
}

func (vr *VulkanRenderer) AllocateCommandBuffer() (renderer.CommandRecorder, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        vr.context.Device.GraphicsCommandPool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}
	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(vr.context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		return nil, vulkanError("failed to allocate command buffer", res)
	}
	cb := &VulkanCommandBuffer{
		Native: handles[0],
		State:  COMMAND_BUFFER_STATE_READY,
		vr:     vr,
	}
	cb.id = metadata.CommandBufferHandle(vr.commandBuffers.add(cb))
	return cb, nil
}

func (vr *VulkanRenderer) FreeCommandBuffer(commands renderer.CommandRecorder) {
	cb, ok := vr.commandBuffers.remove(uint64(commands.Handle()))
	if !ok {
		return
	}
	vk.FreeCommandBuffers(vr.context.Device.LogicalDevice, vr.context.Device.GraphicsCommandPool, 1, []vk.CommandBuffer{cb.Native})
	cb.Native = nil
	cb.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

// Submit queues the recorded commands on the graphics queue.
func (vr *VulkanRenderer) Submit(info renderer.SubmitInfo) error {
	cb, ok := vr.commandBuffers.get(uint64(info.Commands.Handle()))
	if !ok {
		return fmt.Errorf("submit of unknown command buffer %d", info.Commands.Handle())
	}
	if cb.State != COMMAND_BUFFER_STATE_RECORDING_ENDED {
		return fmt.Errorf("command buffer %d submitted in state %d", cb.id, cb.State)
	}
	fence, ok := vr.fences.get(uint64(info.Fence))
	if !ok {
		return fmt.Errorf("submit with unknown fence %d", info.Fence)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Native},
	}
	if info.WaitSemaphore != 0 {
		wait, ok := vr.semaphores.get(uint64(info.WaitSemaphore))
		if !ok {
			return fmt.Errorf("submit waits on unknown semaphore %d", info.WaitSemaphore)
		}
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{wait}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{toVkStages(info.WaitStage)}
	}
	if info.SignalSemaphore != 0 {
		signal, ok := vr.semaphores.get(uint64(info.SignalSemaphore))
		if !ok {
			return fmt.Errorf("submit signals unknown semaphore %d", info.SignalSemaphore)
		}
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{signal}
	}

	err := vr.locks.SafeQueueCall(uint32(vr.context.Device.GraphicsQueueIndex), func() error {
		if res := vk.QueueSubmit(vr.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence); res != vk.Success {
			return vulkanError("vkQueueSubmit failed", res)
		}
		return nil
	})
	if err != nil {
		return err
	}
	cb.State = COMMAND_BUFFER_STATE_SUBMITTED
	return nil
}

func (v *VulkanCommandBuffer) Handle() metadata.CommandBufferHandle {
	return v.id
}

func (v *VulkanCommandBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(v.Native, 0); res != vk.Success {
		return vulkanError("failed to reset command buffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

func (v *VulkanCommandBuffer) Begin() error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(v.Native, beginInfo); res != vk.Success {
		return vulkanError("failed to begin command buffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(v.Native); res != vk.Success {
		return vulkanError("failed to end command buffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) BeginRenderPass(pass metadata.RenderPassHandle, framebuffer metadata.FramebufferHandle, area metadata.Rect, clears []metadata.ClearValue) {
	rp, ok := v.vr.renderPasses.get(uint64(pass))
	if !ok {
		core.LogError("begin of unknown render pass %d", pass)
		return
	}
	fb, ok := v.vr.framebuffers.get(uint64(framebuffer))
	if !ok {
		core.LogError("begin with unknown framebuffer %d", framebuffer)
		return
	}
	clearValues := toVkClearValues(clears)
	beginInfo := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      rp,
		Framebuffer:     fb,
		RenderArea:      toVkRect(area),
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(v.Native, &beginInfo, vk.SubpassContentsInline)
	v.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (v *VulkanCommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(v.Native)
	v.State = COMMAND_BUFFER_STATE_RECORDING
}

func (v *VulkanCommandBuffer) SetViewport(viewport metadata.Viewport) {
	vk.CmdSetViewport(v.Native, 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

func (v *VulkanCommandBuffer) SetScissor(scissor metadata.Rect) {
	vk.CmdSetScissor(v.Native, 0, 1, []vk.Rect2D{toVkRect(scissor)})
}

func (v *VulkanCommandBuffer) BindPipeline(pipeline metadata.PipelineHandle) {
	p, ok := v.vr.pipelines.get(uint64(pipeline))
	if !ok {
		core.LogError("bind of unknown pipeline %d", pipeline)
		return
	}
	p.Bind(v, vk.PipelineBindPointGraphics)
}

func (v *VulkanCommandBuffer) BindDescriptorSet(pipeline metadata.PipelineHandle, set metadata.DescriptorSetHandle) {
	p, ok := v.vr.pipelines.get(uint64(pipeline))
	if !ok {
		core.LogError("descriptor bind against unknown pipeline %d", pipeline)
		return
	}
	ds, ok := v.vr.descriptorSets.get(uint64(set))
	if !ok {
		core.LogError("bind of unknown descriptor set %d", set)
		return
	}
	vk.CmdBindDescriptorSets(v.Native, vk.PipelineBindPointGraphics, p.PipelineLayout, 0, 1, []vk.DescriptorSet{ds}, 0, nil)
}

func (v *VulkanCommandBuffer) BindVertexBuffer(buffer metadata.BufferHandle, offset uint64) {
	b, ok := v.vr.buffers.get(uint64(buffer))
	if !ok {
		core.LogError("bind of unknown vertex buffer %d", buffer)
		return
	}
	vk.CmdBindVertexBuffers(v.Native, 0, 1, []vk.Buffer{b.Handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (v *VulkanCommandBuffer) BindIndexBuffer(buffer metadata.BufferHandle, offset uint64) {
	b, ok := v.vr.buffers.get(uint64(buffer))
	if !ok {
		core.LogError("bind of unknown index buffer %d", buffer)
		return
	}
	vk.CmdBindIndexBuffer(v.Native, b.Handle, vk.DeviceSize(offset), vk.IndexTypeUint32)
}

func (v *VulkanCommandBuffer) DrawIndexed(indexCount, instanceCount uint32) {
	vk.CmdDrawIndexed(v.Native, indexCount, instanceCount, 0, 0, 0)
}

func (v *VulkanCommandBuffer) PipelineBarrier(barrier metadata.ImageBarrier) {
	img, ok := v.vr.images.get(uint64(barrier.Image))
	if !ok {
		core.LogError("barrier on unknown image %d", barrier.Image)
		return
	}
	vk.CmdPipelineBarrier(v.Native,
		toVkStages(barrier.SrcStage),
		toVkStages(barrier.DstStage),
		0, 0, nil, 0, nil, 1,
		[]vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       toVkAccess(barrier.SrcAccess),
			DstAccessMask:       toVkAccess(barrier.DstAccess),
			OldLayout:           toVkLayout(barrier.OldLayout),
			NewLayout:           toVkLayout(barrier.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img.Handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: toVkAspect(barrier.Aspect),
				LevelCount: 1,
				LayerCount: 1,
			},
		}})
}
