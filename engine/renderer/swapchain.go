package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

// SwapchainImage is a presentable image with the framebuffer that targets it.
type SwapchainImage struct {
	Index       uint32
	Image       metadata.ImageHandle
	Framebuffer metadata.FramebufferHandle
	// set identifies the swapchain the image belongs to.
	set uint64
}

type swapchainBackend interface {
	PresentDevice
	CreateFramebuffer(desc metadata.FramebufferDesc) (metadata.FramebufferHandle, error)
	DestroyFramebuffer(framebuffer metadata.FramebufferHandle)
}

// SwapchainManager owns the swapchain, its framebuffers and the depth
// attachment of the shading pass. The framebuffer size generation is bumped
// on every resize; the swapchain is stale until it is rebuilt for the
// latest generation.
type SwapchainManager struct {
	device    swapchainBackend
	resources *ResourceManager
	waitIdle  func() error
	timeout   time.Duration

	info       metadata.SwapchainInfo
	images     []SwapchainImage
	depth      *Image
	renderPass metadata.RenderPassHandle

	width          uint32
	height         uint32
	generation     uint64
	lastGeneration uint64
	set            uint64
	recreations    uint64
}

func NewSwapchainManager(device swapchainBackend, resources *ResourceManager, waitIdle func() error, timeout time.Duration) *SwapchainManager {
	return &SwapchainManager{
		device:    device,
		resources: resources,
		waitIdle:  waitIdle,
		timeout:   timeout,
	}
}

// Create builds the initial swapchain and depth attachment.
func (sm *SwapchainManager) Create(width, height uint32) error {
	if width == 0 || height == 0 {
		return core.ErrSwapchainBooting
	}
	sm.width, sm.height = width, height
	if err := sm.build(); err != nil {
		return err
	}
	sm.lastGeneration = sm.generation
	core.LogInfo("swapchain created (%dx%d, %d images)", sm.info.Extent.Width, sm.info.Extent.Height, len(sm.images))
	return nil
}

func (sm *SwapchainManager) build() error {
	info, err := sm.device.CreateSwapchain(metadata.SwapchainDesc{
		Width:  sm.width,
		Height: sm.height,
		Old:    sm.info.Handle,
	})
	if err != nil {
		return fmt.Errorf("failed to create swapchain: %w", err)
	}
	if sm.info.Handle != 0 {
		sm.device.DestroySwapchain(sm.info.Handle)
	}
	sm.info = info
	sm.set++

	sm.images = make([]SwapchainImage, len(info.Images))
	for i, img := range info.Images {
		sm.images[i] = SwapchainImage{Index: uint32(i), Image: img, set: sm.set}
	}

	depth, err := sm.resources.CreateImage(metadata.ImageDesc{
		Name:   "swapchain-depth",
		Width:  info.Extent.Width,
		Height: info.Extent.Height,
		Format: sm.device.DepthFormat(),
		Usage:  metadata.UsageDepthTarget,
	})
	if err != nil {
		return err
	}
	sm.depth = depth
	if sm.renderPass != 0 {
		return sm.createFramebuffers()
	}
	return nil
}

// AttachRenderPass creates one framebuffer per swapchain image for pass.
// Recreation rebuilds them against the same pass.
func (sm *SwapchainManager) AttachRenderPass(pass metadata.RenderPassHandle) error {
	sm.destroyFramebuffers()
	sm.renderPass = pass
	return sm.createFramebuffers()
}

func (sm *SwapchainManager) createFramebuffers() error {
	if err := sm.resources.RequireUsage(sm.depth, metadata.UsageDepthTarget); err != nil {
		return err
	}
	for i := range sm.images {
		fb, err := sm.device.CreateFramebuffer(metadata.FramebufferDesc{
			RenderPass:  sm.renderPass,
			Attachments: []metadata.ImageHandle{sm.images[i].Image, sm.depth.Handle},
			Width:       sm.info.Extent.Width,
			Height:      sm.info.Extent.Height,
		})
		if err != nil {
			return fmt.Errorf("failed to create framebuffer %d: %w", i, err)
		}
		sm.images[i].Framebuffer = fb
	}
	return nil
}

func (sm *SwapchainManager) destroyFramebuffers() {
	for i := range sm.images {
		if sm.images[i].Framebuffer != 0 {
			sm.device.DestroyFramebuffer(sm.images[i].Framebuffer)
			sm.images[i].Framebuffer = 0
		}
	}
}

// Resize records a new framebuffer size. The swapchain is rebuilt lazily.
func (sm *SwapchainManager) Resize(width, height uint32) {
	sm.width, sm.height = width, height
	sm.generation++
	core.LogDebug("framebuffer resized to %dx%d (generation %d)", width, height, sm.generation)
}

// Stale reports whether the swapchain predates the latest resize.
func (sm *SwapchainManager) Stale() bool {
	return sm.generation != sm.lastGeneration
}

func (sm *SwapchainManager) invalidate() {
	if !sm.Stale() {
		if ext := sm.device.SurfaceExtent(); ext.Width != 0 || ext.Height != 0 {
			sm.width, sm.height = ext.Width, ext.Height
		}
		sm.generation++
	}
}

// Recreate waits for the device to go idle and rebuilds the swapchain, its
// depth attachment and framebuffers. A zero-sized framebuffer returns
// ErrSwapchainBooting and leaves the swapchain stale.
func (sm *SwapchainManager) Recreate() error {
	if sm.width == 0 || sm.height == 0 {
		return core.ErrSwapchainBooting
	}
	if err := sm.waitIdle(); err != nil {
		return err
	}
	generation := sm.generation
	sm.destroyFramebuffers()
	if sm.depth != nil {
		if err := sm.resources.Release(sm.depth); err != nil {
			return err
		}
		sm.depth = nil
	}
	if err := sm.build(); err != nil {
		return err
	}
	sm.lastGeneration = generation
	sm.recreations++
	core.LogInfo("swapchain recreated (%dx%d)", sm.info.Extent.Width, sm.info.Extent.Height)
	return nil
}

// AcquireNext acquires the next presentable image, signaling signal when it
// is ready. An out-of-date swapchain is rebuilt and ErrSwapchainOutOfDate is
// returned so the caller drops the frame.
func (sm *SwapchainManager) AcquireNext(signal metadata.SemaphoreHandle) (SwapchainImage, error) {
	idx, err := sm.device.AcquireNextImage(sm.info.Handle, sm.timeout, signal)
	if err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			sm.invalidate()
			if rerr := sm.Recreate(); rerr != nil && !errors.Is(rerr, core.ErrSwapchainBooting) {
				return SwapchainImage{}, rerr
			}
			return SwapchainImage{}, core.ErrSwapchainOutOfDate
		}
		return SwapchainImage{}, fmt.Errorf("failed to acquire swapchain image: %w", err)
	}
	if int(idx) >= len(sm.images) {
		return SwapchainImage{}, fmt.Errorf("swapchain returned image index %d of %d", idx, len(sm.images))
	}
	return sm.images[idx], nil
}

// Present queues img for presentation once wait is signaled. Images from a
// previous swapchain are never presented.
func (sm *SwapchainManager) Present(img SwapchainImage, wait metadata.SemaphoreHandle) error {
	if img.set != sm.set {
		return fmt.Errorf("%w: image %d belongs to a destroyed swapchain", core.ErrSwapchainOutOfDate, img.Index)
	}
	err := sm.device.Present(sm.info.Handle, img.Index, wait)
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrSwapchainOutOfDate) {
		sm.invalidate()
		if rerr := sm.Recreate(); rerr != nil && !errors.Is(rerr, core.ErrSwapchainBooting) {
			return rerr
		}
		return core.ErrSwapchainOutOfDate
	}
	return fmt.Errorf("failed to present swapchain image: %w", err)
}

func (sm *SwapchainManager) Format() metadata.Format {
	return sm.info.Format
}

func (sm *SwapchainManager) DepthFormat() metadata.Format {
	return sm.device.DepthFormat()
}

func (sm *SwapchainManager) Extent() metadata.Extent2D {
	return sm.info.Extent
}

func (sm *SwapchainManager) ImageCount() int {
	return len(sm.images)
}

// Set identifies the current swapchain; it changes on every rebuild.
func (sm *SwapchainManager) Set() uint64 {
	return sm.set
}

func (sm *SwapchainManager) Recreations() uint64 {
	return sm.recreations
}

// Destroy releases the framebuffers and the swapchain. The depth attachment
// is left to the ResourceManager. The device must be idle.
func (sm *SwapchainManager) Destroy() {
	sm.destroyFramebuffers()
	if sm.info.Handle != 0 {
		sm.device.DestroySwapchain(sm.info.Handle)
		sm.info.Handle = 0
	}
	sm.images = nil
}
