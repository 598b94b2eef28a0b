package renderer

import (
	"time"

	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

// CommandRecorder records GPU work for a single frame slot. Implementations
// are not safe for concurrent use; every call happens on the render thread.
type CommandRecorder interface {
	Handle() metadata.CommandBufferHandle
	Reset() error
	Begin() error
	End() error
	BeginRenderPass(pass metadata.RenderPassHandle, framebuffer metadata.FramebufferHandle, area metadata.Rect, clears []metadata.ClearValue)
	EndRenderPass()
	SetViewport(viewport metadata.Viewport)
	SetScissor(scissor metadata.Rect)
	BindPipeline(pipeline metadata.PipelineHandle)
	BindDescriptorSet(pipeline metadata.PipelineHandle, set metadata.DescriptorSetHandle)
	BindVertexBuffer(buffer metadata.BufferHandle, offset uint64)
	BindIndexBuffer(buffer metadata.BufferHandle, offset uint64)
	DrawIndexed(indexCount, instanceCount uint32)
	PipelineBarrier(barrier metadata.ImageBarrier)
}

type SubmitInfo struct {
	Commands        CommandRecorder
	WaitSemaphore   metadata.SemaphoreHandle
	WaitStage       metadata.PipelineStage
	SignalSemaphore metadata.SemaphoreHandle
	Fence           metadata.FenceHandle
}

// SyncDevice creates and waits on host/GPU synchronization primitives.
// WaitFence returns core.ErrFenceTimeout when the timeout elapses and
// core.ErrDeviceLost when the device reports loss.
type SyncDevice interface {
	CreateFence(signaled bool) (metadata.FenceHandle, error)
	WaitFence(fence metadata.FenceHandle, timeout time.Duration) error
	ResetFence(fence metadata.FenceHandle) error
	DestroyFence(fence metadata.FenceHandle)
	CreateSemaphore() (metadata.SemaphoreHandle, error)
	DestroySemaphore(semaphore metadata.SemaphoreHandle)
}

type CommandDevice interface {
	AllocateCommandBuffer() (CommandRecorder, error)
	FreeCommandBuffer(commands CommandRecorder)
	Submit(info SubmitInfo) error
}

type ResourceDevice interface {
	CreateImage(desc metadata.ImageDesc) (metadata.ImageHandle, error)
	DestroyImage(image metadata.ImageHandle)
	CreateBuffer(desc metadata.BufferDesc) (metadata.BufferHandle, error)
	WriteBuffer(buffer metadata.BufferHandle, offset uint64, data []byte) error
	DestroyBuffer(buffer metadata.BufferHandle)
	CreateSampler(desc metadata.SamplerDesc) (metadata.SamplerHandle, error)
	DestroySampler(sampler metadata.SamplerHandle)
}

type PipelineDevice interface {
	CreateRenderPass(desc metadata.RenderPassDesc) (metadata.RenderPassHandle, error)
	DestroyRenderPass(pass metadata.RenderPassHandle)
	CreateFramebuffer(desc metadata.FramebufferDesc) (metadata.FramebufferHandle, error)
	DestroyFramebuffer(framebuffer metadata.FramebufferHandle)
	CreateDescriptorLayout(bindings []metadata.DescriptorBinding) (metadata.DescriptorLayoutHandle, error)
	DestroyDescriptorLayout(layout metadata.DescriptorLayoutHandle)
	AllocateDescriptorSet(layout metadata.DescriptorLayoutHandle) (metadata.DescriptorSetHandle, error)
	UpdateDescriptorSet(set metadata.DescriptorSetHandle, writes []metadata.DescriptorWrite) error
	CreatePipeline(desc metadata.PipelineDesc) (metadata.PipelineHandle, error)
	DestroyPipeline(pipeline metadata.PipelineHandle)
}

// PresentDevice owns the surface side of the device. AcquireNextImage and
// Present return core.ErrSwapchainOutOfDate when the surface no longer
// matches the swapchain.
type PresentDevice interface {
	SurfaceExtent() metadata.Extent2D
	DepthFormat() metadata.Format
	CreateSwapchain(desc metadata.SwapchainDesc) (metadata.SwapchainInfo, error)
	DestroySwapchain(swapchain metadata.SwapchainHandle)
	AcquireNextImage(swapchain metadata.SwapchainHandle, timeout time.Duration, signal metadata.SemaphoreHandle) (uint32, error)
	Present(swapchain metadata.SwapchainHandle, imageIndex uint32, wait metadata.SemaphoreHandle) error
}

// Backend is everything the renderer needs from a graphics device.
type Backend interface {
	SyncDevice
	CommandDevice
	ResourceDevice
	PipelineDevice
	PresentDevice
	WaitIdle() error
}

// ShaderSource resolves a shader name into SPIR-V words.
type ShaderSource interface {
	LoadShader(name string) ([]uint32, error)
}
