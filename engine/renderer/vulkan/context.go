package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/subsurface/engine/core"
)

type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	DescriptorPool vk.DescriptorPool
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	memoryProperties := vc.Device.Memory
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// allocateMemory allocates and returns device memory satisfying reqs.
func (vc *VulkanContext) allocateMemory(reqs vk.MemoryRequirements, props vk.MemoryPropertyFlagBits) (vk.DeviceMemory, error) {
	reqs.Deref()
	index := vc.FindMemoryIndex(reqs.MemoryTypeBits, uint32(props))
	if index < 0 {
		return vk.NullDeviceMemory, vulkanError("no memory type matches the requested properties", vk.ErrorOutOfDeviceMemory)
	}
	var memory vk.DeviceMemory
	res := vk.AllocateMemory(vc.Device.LogicalDevice, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: uint32(index),
	}, vc.Allocator, &memory)
	if res != vk.Success {
		return vk.NullDeviceMemory, vulkanError("vkAllocateMemory failed", res)
	}
	return memory, nil
}
