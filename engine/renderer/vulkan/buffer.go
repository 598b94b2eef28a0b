package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
	// mapped is the persistent host mapping of host-visible buffers.
	mapped unsafe.Pointer
}

func (vr *VulkanRenderer) CreateBuffer(desc metadata.BufferDesc) (metadata.BufferHandle, error) {
	dev := vr.context.Device.LogicalDevice
	out := &VulkanBuffer{Size: desc.Size}

	var buffer vk.Buffer
	res := vk.CreateBuffer(dev, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Usage:       toVkBufferUsage(desc.Usage),
		Size:        vk.DeviceSize(desc.Size),
		SharingMode: vk.SharingModeExclusive,
	}, vr.context.Allocator, &buffer)
	if res != vk.Success {
		return 0, vulkanError(fmt.Sprintf("failed to create buffer `%s`", desc.Name), res)
	}
	out.Handle = buffer

	props := vk.MemoryPropertyDeviceLocalBit
	if desc.HostVisible {
		props = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, buffer, &reqs)

	err := vr.locks.SafeCall(MemoryManagement, func() error {
		memory, err := vr.context.allocateMemory(reqs, props)
		if err != nil {
			return err
		}
		out.Memory = memory
		if res := vk.BindBufferMemory(dev, buffer, memory, 0); res != vk.Success {
			return vulkanError("failed to bind buffer memory", res)
		}
		if desc.HostVisible {
			var ptr unsafe.Pointer
			if res := vk.MapMemory(dev, memory, 0, vk.DeviceSize(desc.Size), 0, &ptr); res != vk.Success {
				return vulkanError("failed to map buffer memory", res)
			}
			out.mapped = ptr
		}
		return nil
	})
	if err != nil {
		out.destroy(vr.context)
		return 0, err
	}
	return metadata.BufferHandle(vr.buffers.add(out)), nil
}

func (vr *VulkanRenderer) WriteBuffer(h metadata.BufferHandle, offset uint64, data []byte) error {
	b, ok := vr.buffers.get(uint64(h))
	if !ok {
		return fmt.Errorf("write to unknown buffer %d", h)
	}
	if b.mapped == nil {
		return fmt.Errorf("buffer %d is not host visible", h)
	}
	if offset+uint64(len(data)) > b.Size {
		return fmt.Errorf("write of %d bytes at %d overflows buffer %d of %d bytes", len(data), offset, h, b.Size)
	}
	vk.Memcopy(unsafe.Add(b.mapped, offset), data)
	return nil
}

func (vr *VulkanRenderer) DestroyBuffer(h metadata.BufferHandle) {
	if b, ok := vr.buffers.remove(uint64(h)); ok {
		b.destroy(vr.context)
	}
}

func (b *VulkanBuffer) destroy(context *VulkanContext) {
	dev := context.Device.LogicalDevice
	if b.mapped != nil {
		vk.UnmapMemory(dev, b.Memory)
		b.mapped = nil
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(dev, b.Memory, context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(dev, b.Handle, context.Allocator)
		b.Handle = vk.NullBuffer
	}
}
