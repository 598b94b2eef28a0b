package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format vk.Format
	// Swapchain images are owned by their swapchain; only the view is ours.
	swapchainOwned bool
}

// viewAspect picks the aspects of an image view. A sampled view may carry a
// single aspect, so sampled depth-stencil images are viewed as depth only.
func viewAspect(format vk.Format, sampled bool) vk.ImageAspectFlags {
	aspect := metadata.AspectOf(fromVkFormat(format))
	if sampled && aspect == metadata.ImageAspectDepthStencil {
		aspect = metadata.ImageAspectDepth
	}
	return toVkAspect(aspect)
}

func createImageView(context *VulkanContext, image vk.Image, format vk.Format, sampled bool) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: viewAspect(format, sampled),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &view); res != vk.Success {
		return vk.NullImageView, vulkanError("failed to create image view", res)
	}
	return view, nil
}

// ImageCreate creates a device-local 2D image with its memory and view.
func ImageCreate(context *VulkanContext, width, height uint32, format vk.Format, usage vk.ImageUsageFlags) (*VulkanImage, error) {
	out := &VulkanImage{Width: width, Height: height, Format: format}
	dev := context.Device.LogicalDevice

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var image vk.Image
	if res := vk.CreateImage(dev, &imageCreateInfo, context.Allocator, &image); res != vk.Success {
		return nil, vulkanError("failed to create image", res)
	}
	out.Handle = image

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dev, image, &reqs)
	memory, err := context.allocateMemory(reqs, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		out.Destroy(context)
		return nil, err
	}
	out.Memory = memory
	if res := vk.BindImageMemory(dev, image, memory, 0); res != vk.Success {
		out.Destroy(context)
		return nil, vulkanError("failed to bind image memory", res)
	}

	view, err := createImageView(context, image, format, usage&vk.ImageUsageFlags(vk.ImageUsageSampledBit) != 0)
	if err != nil {
		out.Destroy(context)
		return nil, err
	}
	out.View = view
	return out, nil
}

func (vi *VulkanImage) Destroy(context *VulkanContext) {
	dev := context.Device.LogicalDevice
	if vi.View != vk.NullImageView {
		vk.DestroyImageView(dev, vi.View, context.Allocator)
		vi.View = vk.NullImageView
	}
	if vi.swapchainOwned {
		return
	}
	if vi.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(dev, vi.Memory, context.Allocator)
		vi.Memory = vk.NullDeviceMemory
	}
	if vi.Handle != vk.NullImage {
		vk.DestroyImage(dev, vi.Handle, context.Allocator)
		vi.Handle = vk.NullImage
	}
}

func (vr *VulkanRenderer) CreateImage(desc metadata.ImageDesc) (metadata.ImageHandle, error) {
	format := toVkFormat(desc.Format)
	if format == vk.FormatUndefined {
		return 0, fmt.Errorf("image `%s` has no device format", desc.Name)
	}
	img, err := ImageCreate(vr.context, desc.Width, desc.Height, format, toVkImageUsage(desc.Usage))
	if err != nil {
		return 0, err
	}
	return metadata.ImageHandle(vr.images.add(img)), nil
}

func (vr *VulkanRenderer) DestroyImage(h metadata.ImageHandle) {
	if img, ok := vr.images.remove(uint64(h)); ok {
		img.Destroy(vr.context)
	}
}

func (vr *VulkanRenderer) CreateSampler(desc metadata.SamplerDesc) (metadata.SamplerHandle, error) {
	border := vk.BorderColorFloatOpaqueBlack
	if desc.BorderWhite {
		border = vk.BorderColorFloatOpaqueWhite
	}
	mode := toVkAddressMode(desc.AddressMode)
	filter := toVkFilter(desc.Filter)
	var sampler vk.Sampler
	res := vk.CreateSampler(vr.context.Device.LogicalDevice, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter,
		MinFilter:               filter,
		AddressModeU:            mode,
		AddressModeV:            mode,
		AddressModeW:            mode,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             border,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		MipmapMode:              vk.SamplerMipmapModeNearest,
	}, vr.context.Allocator, &sampler)
	if res != vk.Success {
		return 0, vulkanError(fmt.Sprintf("failed to create sampler `%s`", desc.Name), res)
	}
	return metadata.SamplerHandle(vr.samplers.add(sampler)), nil
}

func (vr *VulkanRenderer) DestroySampler(h metadata.SamplerHandle) {
	if sampler, ok := vr.samplers.remove(uint64(h)); ok {
		vk.DestroySampler(vr.context.Device.LogicalDevice, sampler, vr.context.Allocator)
	}
}
