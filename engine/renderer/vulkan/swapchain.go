package vulkan

import (
	"fmt"
	"math"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

type VulkanSwapchain struct {
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	Extent      vk.Extent2D
	// Images are registered in the image table with swapchain ownership.
	Images []metadata.ImageHandle
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

func choosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}
	return vk.PresentModeFifo
}

// chooseExtent uses the surface's current extent unless the surface leaves
// it to the application, then clamps to what the surface allows.
func chooseExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	extent := vk.Extent2D{Width: width, Height: height}
	if caps.CurrentExtent.Width != math.MaxUint32 {
		extent = caps.CurrentExtent
	}
	extent.Width = Clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	extent.Height = Clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	return extent
}

func (vr *VulkanRenderer) CreateSwapchain(desc metadata.SwapchainDesc) (metadata.SwapchainInfo, error) {
	device := vr.context.Device
	if err := DeviceQuerySwapchainSupport(device.PhysicalDevice, vr.context.Surface, &device.SwapchainSupport); err != nil {
		return metadata.SwapchainInfo{}, err
	}
	support := device.SwapchainSupport
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return metadata.SwapchainInfo{}, fmt.Errorf("surface reports no formats or present modes")
	}

	swapchain := &VulkanSwapchain{
		ImageFormat: chooseSurfaceFormat(support.Formats),
		Extent:      chooseExtent(support.Capabilities, desc.Width, desc.Height),
	}
	presentMode := choosePresentMode(support.PresentModes)

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          vr.context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchain.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(device.GraphicsQueueIndex),
			uint32(device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	if desc.Old != 0 {
		if old, ok := vr.swapchains.get(uint64(desc.Old)); ok {
			swapchainCreateInfo.OldSwapchain = old.Handle
		}
	}

	dev := device.LogicalDevice
	var handle vk.Swapchain
	err := vr.locks.SafeCall(SwapchainManagement, func() error {
		if res := vk.CreateSwapchain(dev, &swapchainCreateInfo, vr.context.Allocator, &handle); res != vk.Success {
			return vulkanError("failed to create swapchain", res)
		}
		return nil
	})
	if err != nil {
		return metadata.SwapchainInfo{}, err
	}
	swapchain.Handle = handle

	var count uint32
	if res := vk.GetSwapchainImages(dev, handle, &count, nil); res != vk.Success {
		vk.DestroySwapchain(dev, handle, vr.context.Allocator)
		return metadata.SwapchainInfo{}, vulkanError("failed to get swapchain images", res)
	}
	images := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(dev, handle, &count, images); res != vk.Success {
		vk.DestroySwapchain(dev, handle, vr.context.Allocator)
		return metadata.SwapchainInfo{}, vulkanError("failed to get swapchain images", res)
	}

	for _, image := range images {
		view, err := createImageView(vr.context, image, swapchain.ImageFormat.Format, false)
		if err != nil {
			swapchain.release(vr)
			return metadata.SwapchainInfo{}, err
		}
		img := &VulkanImage{
			Handle:         image,
			View:           view,
			Width:          swapchain.Extent.Width,
			Height:         swapchain.Extent.Height,
			Format:         swapchain.ImageFormat.Format,
			swapchainOwned: true,
		}
		swapchain.Images = append(swapchain.Images, metadata.ImageHandle(vr.images.add(img)))
	}

	h := metadata.SwapchainHandle(vr.swapchains.add(swapchain))
	core.LogInfo("Swapchain created: %dx%d, %d images, present mode %d.", swapchain.Extent.Width, swapchain.Extent.Height, len(images), presentMode)

	return metadata.SwapchainInfo{
		Handle: h,
		Format: fromVkFormat(swapchain.ImageFormat.Format),
		Extent: metadata.Extent2D{Width: swapchain.Extent.Width, Height: swapchain.Extent.Height},
		Images: append([]metadata.ImageHandle(nil), swapchain.Images...),
	}, nil
}

// release drops the image views and the swapchain itself. The images go
// with the swapchain.
func (vs *VulkanSwapchain) release(vr *VulkanRenderer) {
	for _, h := range vs.Images {
		vr.DestroyImage(h)
	}
	vs.Images = nil
	if vs.Handle != vk.NullSwapchain {
		_ = vr.locks.SafeCall(SwapchainManagement, func() error {
			vk.DestroySwapchain(vr.context.Device.LogicalDevice, vs.Handle, vr.context.Allocator)
			return nil
		})
		vs.Handle = vk.NullSwapchain
	}
}

func (vr *VulkanRenderer) DestroySwapchain(h metadata.SwapchainHandle) {
	if swapchain, ok := vr.swapchains.remove(uint64(h)); ok {
		swapchain.release(vr)
	}
}

// AcquireNextImage reports a suboptimal swapchain as success; Present is
// where it gets recreated.
func (vr *VulkanRenderer) AcquireNextImage(h metadata.SwapchainHandle, timeout time.Duration, signal metadata.SemaphoreHandle) (uint32, error) {
	swapchain, ok := vr.swapchains.get(uint64(h))
	if !ok {
		return 0, fmt.Errorf("acquire from unknown swapchain %d", h)
	}
	semaphore, ok := vr.semaphores.get(uint64(signal))
	if !ok {
		return 0, fmt.Errorf("acquire signals unknown semaphore %d", signal)
	}
	var index uint32
	result := vk.AcquireNextImage(vr.context.Device.LogicalDevice, swapchain.Handle, uint64(timeout.Nanoseconds()), semaphore, vk.NullFence, &index)
	switch result {
	case vk.Success, vk.Suboptimal:
		return index, nil
	case vk.ErrorOutOfDate:
		core.LogDebug("Swapchain out of date on acquire.")
		return 0, core.ErrSwapchainOutOfDate
	case vk.Timeout, vk.NotReady:
		return 0, fmt.Errorf("acquire timed out after %s: %w", timeout, core.ErrFenceTimeout)
	default:
		return 0, vulkanError("failed to acquire swapchain image", result)
	}
}

func (vr *VulkanRenderer) Present(h metadata.SwapchainHandle, imageIndex uint32, wait metadata.SemaphoreHandle) error {
	swapchain, ok := vr.swapchains.get(uint64(h))
	if !ok {
		return fmt.Errorf("present to unknown swapchain %d", h)
	}
	semaphore, ok := vr.semaphores.get(uint64(wait))
	if !ok {
		return fmt.Errorf("present waits on unknown semaphore %d", wait)
	}
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{semaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{swapchain.Handle},
		PImageIndices:      []uint32{imageIndex},
	}

	var result vk.Result
	_ = vr.locks.SafeQueueCall(uint32(vr.context.Device.PresentQueueIndex), func() error {
		result = vk.QueuePresent(vr.context.Device.PresentQueue, &presentInfo)
		return nil
	})
	switch result {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		core.LogDebug("Swapchain out of date or suboptimal on present.")
		return core.ErrSwapchainOutOfDate
	default:
		return vulkanError("failed to present swapchain image", result)
	}
}

// SurfaceExtent returns the size a new swapchain would get, falling back to
// the window framebuffer when the surface leaves the choice to us. A
// minimized window reports zero.
func (vr *VulkanRenderer) SurfaceExtent() metadata.Extent2D {
	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(vr.context.Device.PhysicalDevice, vr.context.Surface, &caps); res != vk.Success {
		core.LogWarn("failed to query surface capabilities: %s", VulkanResultString(res))
		w, h := vr.platform.FramebufferSize()
		return metadata.Extent2D{Width: w, Height: h}
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	w, h := vr.platform.FramebufferSize()
	if w == 0 || h == 0 {
		return metadata.Extent2D{}
	}
	extent := chooseExtent(caps, w, h)
	return metadata.Extent2D{Width: extent.Width, Height: extent.Height}
}
