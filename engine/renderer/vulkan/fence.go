package vulkan

import (
	"fmt"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

func (vr *VulkanRenderer) CreateFence(signaled bool) (metadata.FenceHandle, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	// A signaled fence lets the first wait on a fresh slot return at once.
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if res := vk.CreateFence(vr.context.Device.LogicalDevice, &fenceCreateInfo, vr.context.Allocator, &fence); res != vk.Success {
		return 0, vulkanError("failed to create fence", res)
	}
	return metadata.FenceHandle(vr.fences.add(fence)), nil
}

func (vr *VulkanRenderer) WaitFence(h metadata.FenceHandle, timeout time.Duration) error {
	fence, ok := vr.fences.get(uint64(h))
	if !ok {
		return fmt.Errorf("wait on unknown fence %d", h)
	}
	result := vk.WaitForFences(vr.context.Device.LogicalDevice, 1, []vk.Fence{fence}, vk.True, uint64(timeout.Nanoseconds()))
	switch result {
	case vk.Success:
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out after %s", timeout)
		return core.ErrFenceTimeout
	default:
		return vulkanError("vk_fence_wait", result)
	}
}

func (vr *VulkanRenderer) ResetFence(h metadata.FenceHandle) error {
	fence, ok := vr.fences.get(uint64(h))
	if !ok {
		return fmt.Errorf("reset of unknown fence %d", h)
	}
	if res := vk.ResetFences(vr.context.Device.LogicalDevice, 1, []vk.Fence{fence}); res != vk.Success {
		return vulkanError("failed to reset fence", res)
	}
	return nil
}

func (vr *VulkanRenderer) DestroyFence(h metadata.FenceHandle) {
	if fence, ok := vr.fences.remove(uint64(h)); ok {
		vk.DestroyFence(vr.context.Device.LogicalDevice, fence, vr.context.Allocator)
	}
}

func (vr *VulkanRenderer) CreateSemaphore() (metadata.SemaphoreHandle, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &semaphore); res != vk.Success {
		return 0, vulkanError("failed to create semaphore", res)
	}
	return metadata.SemaphoreHandle(vr.semaphores.add(semaphore)), nil
}

func (vr *VulkanRenderer) DestroySemaphore(h metadata.SemaphoreHandle) {
	if semaphore, ok := vr.semaphores.remove(uint64(h)); ok {
		vk.DestroySemaphore(vr.context.Device.LogicalDevice, semaphore, vr.context.Allocator)
	}
}
