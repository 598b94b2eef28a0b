package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

const portabilitySubsetExtension = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	DeviceExtensionNames []string
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
}

// candidate is a physical device that passed the requirements, with the
// data needed to pick among several.
type candidate struct {
	device     vk.PhysicalDevice
	properties vk.PhysicalDeviceProperties
	features   vk.PhysicalDeviceFeatures
	memory     vk.PhysicalDeviceMemoryProperties
	queues     VulkanPhysicalDeviceQueueFamilyInfo
	support    VulkanSwapchainSupportInfo
}

func defaultRequirements() VulkanPhysicalDeviceRequirements {
	return VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}
}

func DeviceCreate(context *VulkanContext) error {
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")
	device := context.Device

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{uint32(device.GraphicsQueueIndex)}
	if device.PresentQueueIndex != device.GraphicsQueueIndex {
		indices = append(indices, uint32(device.PresentQueueIndex))
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	portability, err := deviceHasExtension(device.PhysicalDevice, portabilitySubsetExtension)
	if err != nil {
		return err
	}
	if portability {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtension)
		extensionNames = append(extensionNames, portabilitySubsetExtension)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logical vk.Device
	if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logical); res != vk.Success {
		return vulkanError("vkCreateDevice failed", res)
	}
	device.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	var graphics, present vk.Queue
	vk.GetDeviceQueue(logical, uint32(device.GraphicsQueueIndex), 0, &graphics)
	vk.GetDeviceQueue(logical, uint32(device.PresentQueueIndex), 0, &present)
	device.GraphicsQueue = graphics
	device.PresentQueue = present
	core.LogInfo("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(logical, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		return vulkanError("vkCreateCommandPool failed", res)
	}
	device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	if !DeviceDetectDepthFormat(device) {
		err := fmt.Errorf("%w: no depth format usable as a sampled depth attachment", core.ErrNoSuitableDevice)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	if device == nil {
		return
	}
	device.GraphicsQueue = nil
	device.PresentQueue = nil

	if device.LogicalDevice != nil {
		if device.GraphicsCommandPool != vk.NullCommandPool {
			core.LogDebug("Destroying command pools...")
			vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, context.Allocator)
			device.GraphicsCommandPool = vk.NullCommandPool
		}
		core.LogDebug("Destroying logical device...")
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	device.PhysicalDevice = nil
	device.SwapchainSupport = VulkanSwapchainSupportInfo{}
	device.GraphicsQueueIndex = -1
	device.PresentQueueIndex = -1
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return vulkanError("failed to get surface capabilities", res)
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()
	supportInfo.Capabilities.MinImageExtent.Deref()
	supportInfo.Capabilities.MaxImageExtent.Deref()

	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, nil); res != vk.Success {
		return vulkanError("failed to get surface formats", res)
	}
	supportInfo.Formats = make([]vk.SurfaceFormat, supportInfo.FormatCount)
	if supportInfo.FormatCount != 0 {
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, supportInfo.Formats); res != vk.Success {
			return vulkanError("failed to get surface formats", res)
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, nil); res != vk.Success {
		return vulkanError("failed to get physical device surface present modes", res)
	}
	supportInfo.PresentModes = make([]vk.PresentMode, supportInfo.PresentModeCount)
	if supportInfo.PresentModeCount != 0 {
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, supportInfo.PresentModes); res != vk.Success {
			return vulkanError("failed to get physical device surface present modes", res)
		}
	}
	return nil
}

// DeviceDetectDepthFormat picks the first depth format that can be both
// rendered to and sampled, which the shadow map needs.
func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureDepthStencilAttachmentBit | vk.FormatFeatureSampledImageBit
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if vk.FormatFeatureFlagBits(properties.OptimalTilingFeatures)&flags == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	device.DepthFormat = vk.FormatUndefined
	return false
}

func enumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(instance, &count, nil); res != vk.Success {
		return nil, vulkanError("vkEnumeratePhysicalDevices failed", res)
	}
	if count == 0 {
		err := fmt.Errorf("%w: no devices which support Vulkan were found", core.ErrNoSuitableDevice)
		core.LogError(err.Error())
		return nil, err
	}
	devices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(instance, &count, devices); res != vk.Success {
		return nil, vulkanError("vkEnumeratePhysicalDevices failed", res)
	}
	return devices, nil
}

func inspectPhysicalDevice(device vk.PhysicalDevice) candidate {
	c := candidate{device: device}
	vk.GetPhysicalDeviceProperties(device, &c.properties)
	c.properties.Deref()
	c.properties.Limits.Deref()
	vk.GetPhysicalDeviceFeatures(device, &c.features)
	c.features.Deref()
	vk.GetPhysicalDeviceMemoryProperties(device, &c.memory)
	c.memory.Deref()
	return c
}

// SelectPhysicalDevice picks the first device meeting the requirements,
// preferring a discrete GPU over any other type.
func SelectPhysicalDevice(context *VulkanContext) error {
	devices, err := enumeratePhysicalDevices(context.Instance)
	if err != nil {
		return err
	}

	requirements := defaultRequirements()
	var selected *candidate
	for _, d := range devices {
		c := inspectPhysicalDevice(d)
		ok, reason := PhysicalDeviceMeetsRequirements(d, context.Surface, &requirements, &c.queues, &c.support)
		if !ok {
			core.LogInfo("Skipping device '%s': %s.", CString(c.properties.DeviceName[:]), reason)
			continue
		}
		if selected == nil || (selected.properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu &&
			c.properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu) {
			cc := c
			selected = &cc
		}
	}

	if selected == nil {
		err := fmt.Errorf("%w: no physical devices were found which meet the requirements", core.ErrNoSuitableDevice)
		core.LogError(err.Error())
		return err
	}

	props := selected.properties
	core.LogInfo("Selected device: '%s'.", CString(props.DeviceName[:]))
	core.LogInfo("GPU type is %s.", deviceTypeName(props.DeviceType))
	core.LogInfo("GPU Driver version: %s", versionString(props.DriverVersion))
	core.LogInfo("Vulkan API version: %s", versionString(props.ApiVersion))
	for j := 0; j < int(selected.memory.MemoryHeapCount); j++ {
		heap := selected.memory.MemoryHeaps[j]
		heap.Deref()
		memorySizeGib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}

	context.Device.PhysicalDevice = selected.device
	context.Device.GraphicsQueueIndex = selected.queues.GraphicsFamilyIndex
	context.Device.PresentQueueIndex = selected.queues.PresentFamilyIndex
	context.Device.SwapchainSupport = selected.support
	context.Device.Properties = selected.properties
	context.Device.Features = selected.features
	context.Device.Memory = selected.memory

	core.LogInfo("Physical device selected.")
	return nil
}

// PhysicalDeviceMeetsRequirements reports whether device can render and
// present to surface. A null surface skips the present checks, which is
// used for device listings. The reason is empty when ok.
func PhysicalDeviceMeetsRequirements(
	device vk.PhysicalDevice,
	surface vk.Surface,
	requirements *VulkanPhysicalDeviceRequirements,
	outQueueInfo *VulkanPhysicalDeviceQueueFamilyInfo,
	outSwapchainSupport *VulkanSwapchainSupportInfo,
) (bool, string) {
	outQueueInfo.GraphicsFamilyIndex = -1
	outQueueInfo.PresentFamilyIndex = -1

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	checkPresent := requirements.Present && surface != vk.NullSurface
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		graphics := vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit != 0
		if graphics && outQueueInfo.GraphicsFamilyIndex < 0 {
			outQueueInfo.GraphicsFamilyIndex = int32(i)
		}
		if !checkPresent {
			continue
		}
		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return false, "surface support query failed: " + VulkanResultString(res)
		}
		if supportsPresent == vk.True {
			// Prefer a family that does both.
			if outQueueInfo.PresentFamilyIndex < 0 || (graphics && outQueueInfo.GraphicsFamilyIndex == int32(i)) {
				outQueueInfo.PresentFamilyIndex = int32(i)
			}
		}
	}

	if requirements.Graphics && outQueueInfo.GraphicsFamilyIndex < 0 {
		return false, "no graphics queue"
	}
	if checkPresent && outQueueInfo.PresentFamilyIndex < 0 {
		return false, "no present queue"
	}
	core.LogDebug("Graphics Family Index: %d", outQueueInfo.GraphicsFamilyIndex)
	core.LogDebug("Present Family Index:  %d", outQueueInfo.PresentFamilyIndex)

	if checkPresent {
		if err := DeviceQuerySwapchainSupport(device, surface, outSwapchainSupport); err != nil {
			return false, err.Error()
		}
		if outSwapchainSupport.FormatCount < 1 || outSwapchainSupport.PresentModeCount < 1 {
			return false, "required swapchain support not present"
		}
	}

	for _, name := range requirements.DeviceExtensionNames {
		found, err := deviceHasExtension(device, name)
		if err != nil {
			return false, err.Error()
		}
		if !found {
			return false, fmt.Sprintf("required extension not found: '%s'", name)
		}
	}
	return true, ""
}

func deviceHasExtension(device vk.PhysicalDevice, name string) (bool, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return false, vulkanError("vkEnumerateDeviceExtensionProperties failed", res)
	}
	if count == 0 {
		return false, nil
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		return false, vulkanError("vkEnumerateDeviceExtensionProperties failed", res)
	}
	for i := range available {
		available[i].Deref()
		if CString(available[i].ExtensionName[:]) == name {
			return true, nil
		}
	}
	return false, nil
}

// DescribeDevices lists every physical device of instance with its
// suitability for rendering, ignoring presentation support.
func DescribeDevices(instance vk.Instance) ([]metadata.DeviceInfo, error) {
	devices, err := enumeratePhysicalDevices(instance)
	if err != nil {
		return nil, err
	}
	requirements := defaultRequirements()
	infos := make([]metadata.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		c := inspectPhysicalDevice(d)
		ok, reason := PhysicalDeviceMeetsRequirements(d, vk.NullSurface, &requirements, &c.queues, &c.support)
		infos = append(infos, metadata.DeviceInfo{
			Name:          CString(c.properties.DeviceName[:]),
			Type:          deviceTypeName(c.properties.DeviceType),
			APIVersion:    versionString(c.properties.ApiVersion),
			DriverVersion: versionString(c.properties.DriverVersion),
			Suitable:      ok,
			Reason:        reason,
		})
	}
	return infos, nil
}

func deviceTypeName(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "Integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "Discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "Virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "CPU"
	default:
		return "Unknown"
	}
}

func versionString(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", vk.Version(v).Major(), vk.Version(v).Minor(), vk.Version(v).Patch())
}
