package renderer

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

type opKind int

const (
	opBeginPass opKind = iota
	opEndPass
	opViewport
	opScissor
	opBindPipeline
	opBindSet
	opBindVertex
	opBindIndex
	opDraw
	opBarrier
)

type recordedOp struct {
	kind        opKind
	pass        metadata.RenderPassHandle
	framebuffer metadata.FramebufferHandle
	area        metadata.Rect
	clears      []metadata.ClearValue
	viewport    metadata.Viewport
	pipeline    metadata.PipelineHandle
	set         metadata.DescriptorSetHandle
	buffer      metadata.BufferHandle
	count       uint32
	barrier     metadata.ImageBarrier
}

type fakeRecorder struct {
	handle    metadata.CommandBufferHandle
	ops       []recordedOp
	recording bool
	resets    int
}

func (r *fakeRecorder) Handle() metadata.CommandBufferHandle { return r.handle }

func (r *fakeRecorder) Reset() error {
	r.ops = nil
	r.recording = false
	r.resets++
	return nil
}

func (r *fakeRecorder) Begin() error {
	if r.recording {
		return fmt.Errorf("command buffer %d already recording", r.handle)
	}
	r.recording = true
	return nil
}

func (r *fakeRecorder) End() error {
	if !r.recording {
		return fmt.Errorf("command buffer %d not recording", r.handle)
	}
	r.recording = false
	return nil
}

func (r *fakeRecorder) BeginRenderPass(pass metadata.RenderPassHandle, fb metadata.FramebufferHandle, area metadata.Rect, clears []metadata.ClearValue) {
	r.ops = append(r.ops, recordedOp{kind: opBeginPass, pass: pass, framebuffer: fb, area: area, clears: clears})
}

func (r *fakeRecorder) EndRenderPass() { r.ops = append(r.ops, recordedOp{kind: opEndPass}) }

func (r *fakeRecorder) SetViewport(v metadata.Viewport) {
	r.ops = append(r.ops, recordedOp{kind: opViewport, viewport: v})
}

func (r *fakeRecorder) SetScissor(s metadata.Rect) {
	r.ops = append(r.ops, recordedOp{kind: opScissor, area: s})
}

func (r *fakeRecorder) BindPipeline(p metadata.PipelineHandle) {
	r.ops = append(r.ops, recordedOp{kind: opBindPipeline, pipeline: p})
}

func (r *fakeRecorder) BindDescriptorSet(p metadata.PipelineHandle, s metadata.DescriptorSetHandle) {
	r.ops = append(r.ops, recordedOp{kind: opBindSet, pipeline: p, set: s})
}

func (r *fakeRecorder) BindVertexBuffer(b metadata.BufferHandle, _ uint64) {
	r.ops = append(r.ops, recordedOp{kind: opBindVertex, buffer: b})
}

func (r *fakeRecorder) BindIndexBuffer(b metadata.BufferHandle, _ uint64) {
	r.ops = append(r.ops, recordedOp{kind: opBindIndex, buffer: b})
}

func (r *fakeRecorder) DrawIndexed(count, _ uint32) {
	r.ops = append(r.ops, recordedOp{kind: opDraw, count: count})
}

func (r *fakeRecorder) PipelineBarrier(b metadata.ImageBarrier) {
	r.ops = append(r.ops, recordedOp{kind: opBarrier, barrier: b})
}

type submission struct {
	info SubmitInfo
	ops  []recordedOp
}

type presentation struct {
	swapchain metadata.SwapchainHandle
	index     uint32
	wait      metadata.SemaphoreHandle
}

// fakeBackend is an in-memory Backend. Submitted work completes either
// immediately (autoComplete), when the host waits on its fence
// (completeOnWait), or when the test calls completeOldest.
type fakeBackend struct {
	next uint64

	fences       map[metadata.FenceHandle]bool
	semaphores   map[metadata.SemaphoreHandle]bool
	commands     map[metadata.CommandBufferHandle]*fakeRecorder
	images       map[metadata.ImageHandle]metadata.ImageDesc
	buffers      map[metadata.BufferHandle][]byte
	samplers     map[metadata.SamplerHandle]metadata.SamplerDesc
	renderPasses map[metadata.RenderPassHandle]metadata.RenderPassDesc
	framebuffers map[metadata.FramebufferHandle]metadata.FramebufferDesc
	layouts      map[metadata.DescriptorLayoutHandle][]metadata.DescriptorBinding
	sets         map[metadata.DescriptorSetHandle][]metadata.DescriptorWrite
	pipelines    map[metadata.PipelineHandle]metadata.PipelineDesc
	swapchains   map[metadata.SwapchainHandle]metadata.SwapchainInfo

	extent     metadata.Extent2D
	imageCount int
	nextImage  uint32

	autoComplete   bool
	completeOnWait bool
	pending        []metadata.FenceHandle
	maxInFlight    int
	blockedWaits   int

	submissions   []submission
	presentations []presentation
	waitIdleCalls int

	depthFormat metadata.Format
	acquireErr  error
	presentErr  error
	acquireHook func()
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		fences:         map[metadata.FenceHandle]bool{},
		semaphores:     map[metadata.SemaphoreHandle]bool{},
		commands:       map[metadata.CommandBufferHandle]*fakeRecorder{},
		images:         map[metadata.ImageHandle]metadata.ImageDesc{},
		buffers:        map[metadata.BufferHandle][]byte{},
		samplers:       map[metadata.SamplerHandle]metadata.SamplerDesc{},
		renderPasses:   map[metadata.RenderPassHandle]metadata.RenderPassDesc{},
		framebuffers:   map[metadata.FramebufferHandle]metadata.FramebufferDesc{},
		layouts:        map[metadata.DescriptorLayoutHandle][]metadata.DescriptorBinding{},
		sets:           map[metadata.DescriptorSetHandle][]metadata.DescriptorWrite{},
		pipelines:      map[metadata.PipelineHandle]metadata.PipelineDesc{},
		swapchains:     map[metadata.SwapchainHandle]metadata.SwapchainInfo{},
		extent:         metadata.Extent2D{Width: 1280, Height: 720},
		imageCount:     3,
		depthFormat:    metadata.FormatD32Sfloat,
		completeOnWait: true,
	}
}

func (f *fakeBackend) handle() uint64 {
	f.next++
	return f.next
}

func (f *fakeBackend) CreateFence(signaled bool) (metadata.FenceHandle, error) {
	h := metadata.FenceHandle(f.handle())
	f.fences[h] = signaled
	return h, nil
}

func (f *fakeBackend) WaitFence(h metadata.FenceHandle, _ time.Duration) error {
	signaled, ok := f.fences[h]
	if !ok {
		return fmt.Errorf("unknown fence %d", h)
	}
	if signaled {
		return nil
	}
	if !f.completeOnWait {
		return core.ErrFenceTimeout
	}
	f.blockedWaits++
	f.complete(h)
	return nil
}

func (f *fakeBackend) ResetFence(h metadata.FenceHandle) error {
	f.fences[h] = false
	return nil
}

func (f *fakeBackend) DestroyFence(h metadata.FenceHandle) { delete(f.fences, h) }

func (f *fakeBackend) CreateSemaphore() (metadata.SemaphoreHandle, error) {
	h := metadata.SemaphoreHandle(f.handle())
	f.semaphores[h] = true
	return h, nil
}

func (f *fakeBackend) DestroySemaphore(h metadata.SemaphoreHandle) { delete(f.semaphores, h) }

func (f *fakeBackend) AllocateCommandBuffer() (CommandRecorder, error) {
	r := &fakeRecorder{handle: metadata.CommandBufferHandle(f.handle())}
	f.commands[r.handle] = r
	return r, nil
}

func (f *fakeBackend) FreeCommandBuffer(c CommandRecorder) { delete(f.commands, c.Handle()) }

func (f *fakeBackend) Submit(info SubmitInfo) error {
	if f.fences[info.Fence] {
		return fmt.Errorf("fence %d submitted while signaled", info.Fence)
	}
	if !f.semaphores[info.WaitSemaphore] || !f.semaphores[info.SignalSemaphore] {
		return fmt.Errorf("submit with unknown semaphore")
	}
	rec := info.Commands.(*fakeRecorder)
	if rec.recording {
		return fmt.Errorf("command buffer %d submitted while recording", rec.handle)
	}
	ops := make([]recordedOp, len(rec.ops))
	copy(ops, rec.ops)
	f.submissions = append(f.submissions, submission{info: info, ops: ops})

	f.pending = append(f.pending, info.Fence)
	if len(f.pending) > f.maxInFlight {
		f.maxInFlight = len(f.pending)
	}
	if f.autoComplete {
		f.complete(info.Fence)
	}
	return nil
}

func (f *fakeBackend) complete(h metadata.FenceHandle) {
	f.fences[h] = true
	for i, p := range f.pending {
		if p == h {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			break
		}
	}
}

func (f *fakeBackend) completeOldest() {
	if len(f.pending) > 0 {
		f.complete(f.pending[0])
	}
}

func (f *fakeBackend) WaitIdle() error {
	f.waitIdleCalls++
	for len(f.pending) > 0 {
		f.complete(f.pending[0])
	}
	return nil
}

func (f *fakeBackend) CreateImage(desc metadata.ImageDesc) (metadata.ImageHandle, error) {
	h := metadata.ImageHandle(f.handle())
	f.images[h] = desc
	return h, nil
}

func (f *fakeBackend) DestroyImage(h metadata.ImageHandle) { delete(f.images, h) }

func (f *fakeBackend) CreateBuffer(desc metadata.BufferDesc) (metadata.BufferHandle, error) {
	h := metadata.BufferHandle(f.handle())
	f.buffers[h] = make([]byte, desc.Size)
	return h, nil
}

func (f *fakeBackend) WriteBuffer(h metadata.BufferHandle, offset uint64, data []byte) error {
	buf, ok := f.buffers[h]
	if !ok {
		return fmt.Errorf("unknown buffer %d", h)
	}
	copy(buf[offset:], data)
	return nil
}

func (f *fakeBackend) DestroyBuffer(h metadata.BufferHandle) { delete(f.buffers, h) }

func (f *fakeBackend) CreateSampler(desc metadata.SamplerDesc) (metadata.SamplerHandle, error) {
	h := metadata.SamplerHandle(f.handle())
	f.samplers[h] = desc
	return h, nil
}

func (f *fakeBackend) DestroySampler(h metadata.SamplerHandle) { delete(f.samplers, h) }

func (f *fakeBackend) CreateRenderPass(desc metadata.RenderPassDesc) (metadata.RenderPassHandle, error) {
	h := metadata.RenderPassHandle(f.handle())
	f.renderPasses[h] = desc
	return h, nil
}

func (f *fakeBackend) DestroyRenderPass(h metadata.RenderPassHandle) { delete(f.renderPasses, h) }

func (f *fakeBackend) CreateFramebuffer(desc metadata.FramebufferDesc) (metadata.FramebufferHandle, error) {
	for _, a := range desc.Attachments {
		if _, ok := f.images[a]; ok {
			continue
		}
		owned := false
		for _, sc := range f.swapchains {
			for _, img := range sc.Images {
				if img == a {
					owned = true
				}
			}
		}
		if !owned {
			return 0, fmt.Errorf("framebuffer attachment %d does not exist", a)
		}
	}
	h := metadata.FramebufferHandle(f.handle())
	f.framebuffers[h] = desc
	return h, nil
}

func (f *fakeBackend) DestroyFramebuffer(h metadata.FramebufferHandle) { delete(f.framebuffers, h) }

func (f *fakeBackend) CreateDescriptorLayout(b []metadata.DescriptorBinding) (metadata.DescriptorLayoutHandle, error) {
	h := metadata.DescriptorLayoutHandle(f.handle())
	f.layouts[h] = b
	return h, nil
}

func (f *fakeBackend) DestroyDescriptorLayout(h metadata.DescriptorLayoutHandle) { delete(f.layouts, h) }

func (f *fakeBackend) AllocateDescriptorSet(l metadata.DescriptorLayoutHandle) (metadata.DescriptorSetHandle, error) {
	if _, ok := f.layouts[l]; !ok {
		return 0, fmt.Errorf("unknown layout %d", l)
	}
	h := metadata.DescriptorSetHandle(f.handle())
	f.sets[h] = nil
	return h, nil
}

func (f *fakeBackend) UpdateDescriptorSet(s metadata.DescriptorSetHandle, writes []metadata.DescriptorWrite) error {
	f.sets[s] = append(f.sets[s], writes...)
	return nil
}

func (f *fakeBackend) CreatePipeline(desc metadata.PipelineDesc) (metadata.PipelineHandle, error) {
	h := metadata.PipelineHandle(f.handle())
	f.pipelines[h] = desc
	return h, nil
}

func (f *fakeBackend) DestroyPipeline(h metadata.PipelineHandle) { delete(f.pipelines, h) }

func (f *fakeBackend) SurfaceExtent() metadata.Extent2D { return f.extent }

func (f *fakeBackend) DepthFormat() metadata.Format { return f.depthFormat }

func (f *fakeBackend) CreateSwapchain(desc metadata.SwapchainDesc) (metadata.SwapchainInfo, error) {
	info := metadata.SwapchainInfo{
		Handle: metadata.SwapchainHandle(f.handle()),
		Format: metadata.FormatBGRA8Srgb,
		Extent: metadata.Extent2D{Width: desc.Width, Height: desc.Height},
	}
	for i := 0; i < f.imageCount; i++ {
		info.Images = append(info.Images, metadata.ImageHandle(f.handle()))
	}
	f.swapchains[info.Handle] = info
	f.nextImage = 0
	return info, nil
}

func (f *fakeBackend) DestroySwapchain(h metadata.SwapchainHandle) { delete(f.swapchains, h) }

func (f *fakeBackend) AcquireNextImage(sc metadata.SwapchainHandle, _ time.Duration, signal metadata.SemaphoreHandle) (uint32, error) {
	if _, ok := f.swapchains[sc]; !ok {
		return 0, fmt.Errorf("acquire on destroyed swapchain %d", sc)
	}
	if !f.semaphores[signal] {
		return 0, fmt.Errorf("acquire with unknown semaphore %d", signal)
	}
	if err := f.acquireErr; err != nil {
		f.acquireErr = nil
		return 0, err
	}
	idx := f.nextImage
	f.nextImage = (f.nextImage + 1) % uint32(f.imageCount)
	if hook := f.acquireHook; hook != nil {
		f.acquireHook = nil
		hook()
	}
	return idx, nil
}

func (f *fakeBackend) Present(sc metadata.SwapchainHandle, idx uint32, wait metadata.SemaphoreHandle) error {
	if _, ok := f.swapchains[sc]; !ok {
		return fmt.Errorf("present on destroyed swapchain %d", sc)
	}
	f.presentations = append(f.presentations, presentation{swapchain: sc, index: idx, wait: wait})
	if err := f.presentErr; err != nil {
		f.presentErr = nil
		return err
	}
	return nil
}

type fakeShaders map[string][]uint32

func (s fakeShaders) LoadShader(name string) ([]uint32, error) {
	code, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("shader `%s` not found", name)
	}
	return code, nil
}

func validModule() []uint32 {
	return []uint32{spirvMagic, 0x00010000, 0, 8, 0, 0x00020011, 1}
}

func newFakeShaders() fakeShaders {
	return fakeShaders{
		ShadowVertexShader:    validModule(),
		ShadingVertexShader:   validModule(),
		ShadingFragmentShader: validModule(),
	}
}
