package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

const (
	maxDescriptorSets     = 16
	maxUniformDescriptors = 16
	maxSamplerDescriptors = 16
)

// createDescriptorPool creates the single pool every descriptor set is
// allocated from. Sets are released with the pool at shutdown.
func (vr *VulkanRenderer) createDescriptorPool() error {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: maxUniformDescriptors},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: maxSamplerDescriptors},
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxDescriptorSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(vr.context.Device.LogicalDevice, &poolInfo, vr.context.Allocator, &pool); res != vk.Success {
		return vulkanError("failed to create descriptor pool", res)
	}
	vr.context.DescriptorPool = pool
	return nil
}

func (vr *VulkanRenderer) CreateDescriptorLayout(bindings []metadata.DescriptorBinding) (metadata.DescriptorLayoutHandle, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  toVkDescriptorType(b.Type),
			DescriptorCount: 1,
			StageFlags:      toVkShaderStages(b.Stages),
		}
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(vr.context.Device.LogicalDevice, &layoutInfo, vr.context.Allocator, &layout); res != vk.Success {
		return 0, vulkanError("failed to create descriptor set layout", res)
	}
	return metadata.DescriptorLayoutHandle(vr.descriptorLayouts.add(layout)), nil
}

func (vr *VulkanRenderer) DestroyDescriptorLayout(h metadata.DescriptorLayoutHandle) {
	if layout, ok := vr.descriptorLayouts.remove(uint64(h)); ok {
		vk.DestroyDescriptorSetLayout(vr.context.Device.LogicalDevice, layout, vr.context.Allocator)
	}
}

func (vr *VulkanRenderer) AllocateDescriptorSet(h metadata.DescriptorLayoutHandle) (metadata.DescriptorSetHandle, error) {
	layout, ok := vr.descriptorLayouts.get(uint64(h))
	if !ok {
		return 0, fmt.Errorf("descriptor set for unknown layout %d", h)
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     vr.context.DescriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	var set vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(vr.context.Device.LogicalDevice, &allocInfo, &set); res != vk.Success {
		return 0, vulkanError("failed to allocate descriptor set", res)
	}
	return metadata.DescriptorSetHandle(vr.descriptorSets.add(set)), nil
}

// UpdateDescriptorSet resolves every write before touching the set so a bad
// handle leaves it unchanged.
func (vr *VulkanRenderer) UpdateDescriptorSet(h metadata.DescriptorSetHandle, writes []metadata.DescriptorWrite) error {
	set, ok := vr.descriptorSets.get(uint64(h))
	if !ok {
		return fmt.Errorf("update of unknown descriptor set %d", h)
	}

	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      w.Binding,
			DescriptorCount: 1,
			DescriptorType:  toVkDescriptorType(w.Type),
		}
		switch w.Type {
		case metadata.DescriptorTypeUniformBuffer:
			b, ok := vr.buffers.get(uint64(w.Buffer))
			if !ok {
				return fmt.Errorf("binding %d references unknown buffer %d", w.Binding, w.Buffer)
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: b.Handle,
				Offset: vk.DeviceSize(w.Offset),
				Range:  vk.DeviceSize(w.Range),
			}}
		case metadata.DescriptorTypeCombinedImageSampler:
			img, ok := vr.images.get(uint64(w.Image))
			if !ok {
				return fmt.Errorf("binding %d references unknown image %d", w.Binding, w.Image)
			}
			sampler, ok := vr.samplers.get(uint64(w.Sampler))
			if !ok {
				return fmt.Errorf("binding %d references unknown sampler %d", w.Binding, w.Sampler)
			}
			write.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     sampler,
				ImageView:   img.View,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}}
		default:
			return fmt.Errorf("binding %d has unsupported descriptor type %d", w.Binding, w.Type)
		}
		vkWrites = append(vkWrites, write)
	}

	vk.UpdateDescriptorSets(vr.context.Device.LogicalDevice, uint32(len(vkWrites)), vkWrites, 0, nil)
	return nil
}
