package vulkan

import (
	"fmt"
	"runtime"
	"slices"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/platform"
	"github.com/spaghettifunk/subsurface/engine/renderer"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

const (
	validationLayerName = "VK_LAYER_KHRONOS_validation"
	engineName          = "Subsurface"
)

var _ renderer.Backend = (*VulkanRenderer)(nil)

// VulkanRenderer implements renderer.Backend on goki/vulkan. Device
// objects are exposed as opaque handles resolved through per-kind tables.
type VulkanRenderer struct {
	platform *platform.Platform
	context  *VulkanContext
	locks    *VulkanLockPool
	debug    bool

	fences            *handleTable[vk.Fence]
	semaphores        *handleTable[vk.Semaphore]
	commandBuffers    *handleTable[*VulkanCommandBuffer]
	images            *handleTable[*VulkanImage]
	buffers           *handleTable[*VulkanBuffer]
	samplers          *handleTable[vk.Sampler]
	renderPasses      *handleTable[vk.RenderPass]
	framebuffers      *handleTable[vk.Framebuffer]
	descriptorLayouts *handleTable[vk.DescriptorSetLayout]
	descriptorSets    *handleTable[vk.DescriptorSet]
	pipelines         *handleTable[*VulkanPipeline]
	swapchains        *handleTable[*VulkanSwapchain]
}

func New(p *platform.Platform, cfg core.RendererConfig) *VulkanRenderer {
	return &VulkanRenderer{
		platform: p,
		context: &VulkanContext{
			Allocator: nil,
			Device:    &VulkanDevice{GraphicsQueueIndex: -1, PresentQueueIndex: -1},
		},
		locks:             NewVulkanLockPool(),
		debug:             cfg.Validation,
		fences:            newHandleTable[vk.Fence](),
		semaphores:        newHandleTable[vk.Semaphore](),
		commandBuffers:    newHandleTable[*VulkanCommandBuffer](),
		images:            newHandleTable[*VulkanImage](),
		buffers:           newHandleTable[*VulkanBuffer](),
		samplers:          newHandleTable[vk.Sampler](),
		renderPasses:      newHandleTable[vk.RenderPass](),
		framebuffers:      newHandleTable[vk.Framebuffer](),
		descriptorLayouts: newHandleTable[vk.DescriptorSetLayout](),
		descriptorSets:    newHandleTable[vk.DescriptorSet](),
		pipelines:         newHandleTable[*VulkanPipeline](),
		swapchains:        newHandleTable[*VulkanSwapchain](),
	}
}

// loadLoader points goki/vulkan at the loader glfw found.
func loadLoader() error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}
	return nil
}

func createInstance(appName string, extensions []string, debug bool) (vk.Instance, error) {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString(engineName),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	layers := []string{}
	if debug {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		ok, err := hasInstanceLayer(validationLayerName)
		if err != nil {
			return nil, err
		}
		if ok {
			layers = append(layers, validationLayerName)
			core.LogInfo("Validation layers enabled.")
		} else {
			core.LogWarn("Validation requested but layer `%s` is missing, continuing without it.", validationLayerName)
		}
	}
	for _, e := range extensions {
		core.LogDebug("Required extension: %s", e)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return nil, vulkanError("failed in creating the Vulkan Instance", res)
	}
	if err := vk.InitInstance(instance); err != nil {
		core.LogError(err.Error())
		vk.DestroyInstance(instance, nil)
		return nil, err
	}
	core.LogInfo("Vulkan Instance created.")
	return instance, nil
}

func hasInstanceLayer(name string) (bool, error) {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false, vulkanError("vkEnumerateInstanceLayerProperties failed", res)
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return false, vulkanError("vkEnumerateInstanceLayerProperties failed", res)
	}
	for i := range available {
		available[i].Deref()
		if CString(available[i].LayerName[:]) == name {
			return true, nil
		}
	}
	return false, nil
}

// Initialize creates the instance, surface, device and descriptor pool. On
// error everything created so far is released.
func (vr *VulkanRenderer) Initialize(appName string) (err error) {
	defer func() {
		if err != nil {
			vr.Shutdown()
		}
	}()

	if err := loadLoader(); err != nil {
		return err
	}

	extensions := vr.platform.GetRequiredExtensionNames()
	if !slices.Contains(extensions, "VK_KHR_surface") {
		extensions = append(extensions, "VK_KHR_surface")
	}
	instance, err := createInstance(appName, extensions, vr.debug)
	if err != nil {
		return err
	}
	vr.context.Instance = instance

	if vr.debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		vr.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.platform.CreateVulkanSurface(vr.context.Instance)
	if err != nil {
		core.LogError("Failed to create platform surface: %s", err)
		return err
	}
	vr.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(vr.context); err != nil {
		return err
	}
	if err := vr.createDescriptorPool(); err != nil {
		return err
	}

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

// Shutdown destroys everything the renderer did not release itself, then
// the device, surface and instance.
func (vr *VulkanRenderer) Shutdown() {
	device := vr.context.Device.LogicalDevice
	if device != nil {
		vk.DeviceWaitIdle(device)
		vr.destroyLeaked()
		if vr.context.DescriptorPool != vk.NullDescriptorPool {
			vk.DestroyDescriptorPool(device, vr.context.DescriptorPool, vr.context.Allocator)
			vr.context.DescriptorPool = vk.NullDescriptorPool
		}
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(vr.context)

	if vr.context.Instance == nil {
		return
	}
	if vr.context.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}
	if vr.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
		vr.context.debugMessenger = vk.NullDebugReportCallback
	}
	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
	vr.context.Instance = nil
}

// destroyLeaked releases objects still registered at shutdown, logging a
// warning per kind.
func (vr *VulkanRenderer) destroyLeaked() {
	warn := func(kind string, n int) {
		if n > 0 {
			core.LogWarn("%d %s still alive at shutdown, destroying", n, kind)
		}
	}
	warn("pipelines", vr.pipelines.len())
	vr.pipelines.each(func(h uint64, _ *VulkanPipeline) { vr.DestroyPipeline(metadata.PipelineHandle(h)) })
	warn("framebuffers", vr.framebuffers.len())
	vr.framebuffers.each(func(h uint64, _ vk.Framebuffer) { vr.DestroyFramebuffer(metadata.FramebufferHandle(h)) })
	warn("render passes", vr.renderPasses.len())
	vr.renderPasses.each(func(h uint64, _ vk.RenderPass) { vr.DestroyRenderPass(metadata.RenderPassHandle(h)) })
	warn("descriptor layouts", vr.descriptorLayouts.len())
	vr.descriptorLayouts.each(func(h uint64, _ vk.DescriptorSetLayout) {
		vr.DestroyDescriptorLayout(metadata.DescriptorLayoutHandle(h))
	})
	warn("swapchains", vr.swapchains.len())
	vr.swapchains.each(func(h uint64, _ *VulkanSwapchain) { vr.DestroySwapchain(metadata.SwapchainHandle(h)) })
	warn("images", vr.images.len())
	vr.images.each(func(h uint64, _ *VulkanImage) { vr.DestroyImage(metadata.ImageHandle(h)) })
	warn("buffers", vr.buffers.len())
	vr.buffers.each(func(h uint64, _ *VulkanBuffer) { vr.DestroyBuffer(metadata.BufferHandle(h)) })
	warn("samplers", vr.samplers.len())
	vr.samplers.each(func(h uint64, _ vk.Sampler) { vr.DestroySampler(metadata.SamplerHandle(h)) })
	warn("command buffers", vr.commandBuffers.len())
	vr.commandBuffers.each(func(_ uint64, cb *VulkanCommandBuffer) { vr.FreeCommandBuffer(cb) })
	warn("fences", vr.fences.len())
	vr.fences.each(func(h uint64, _ vk.Fence) { vr.DestroyFence(metadata.FenceHandle(h)) })
	warn("semaphores", vr.semaphores.len())
	vr.semaphores.each(func(h uint64, _ vk.Semaphore) { vr.DestroySemaphore(metadata.SemaphoreHandle(h)) })
	// descriptor sets go away with their pool
}

func (vr *VulkanRenderer) WaitIdle() error {
	if res := vk.DeviceWaitIdle(vr.context.Device.LogicalDevice); res != vk.Success {
		return vulkanError("vkDeviceWaitIdle failed", res)
	}
	return nil
}

func (vr *VulkanRenderer) DepthFormat() metadata.Format {
	return fromVkFormat(vr.context.Device.DepthFormat)
}

// ListDevices creates a throwaway instance and describes every physical
// device on the system. glfw must be initialized.
func ListDevices(appName string) ([]metadata.DeviceInfo, error) {
	if err := loadLoader(); err != nil {
		return nil, err
	}
	instance, err := createInstance(appName, nil, false)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyInstance(instance, nil)
	return DescribeDevices(instance)
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
