package renderer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/subsurface/engine/containers"
	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

const defaultReleaseCapacity = 64

// Resource is a device object owned by the ResourceManager.
type Resource interface {
	ResourceID() uuid.UUID
	ResourceName() string
	Usage() metadata.ResourceUsage
	Released() bool
}

type resourceBase struct {
	id       uuid.UUID
	name     string
	usage    metadata.ResourceUsage
	released bool
}

func (r *resourceBase) ResourceID() uuid.UUID          { return r.id }
func (r *resourceBase) ResourceName() string           { return r.name }
func (r *resourceBase) Usage() metadata.ResourceUsage { return r.usage }
func (r *resourceBase) Released() bool                 { return r.released }

type Image struct {
	resourceBase
	Handle metadata.ImageHandle
	Desc   metadata.ImageDesc
}

type Buffer struct {
	resourceBase
	Handle metadata.BufferHandle
	Desc   metadata.BufferDesc
}

type Sampler struct {
	resourceBase
	Handle metadata.SamplerHandle
	Desc   metadata.SamplerDesc
}

type pendingRelease struct {
	resource Resource
	frame    uint64
}

type resourceBackend interface {
	ResourceDevice
	WaitIdle() error
}

// ResourceManager creates images, buffers and samplers with a declared
// usage, and defers their destruction until no submitted frame can still
// reference them.
type ResourceManager struct {
	device  resourceBackend
	live    map[uuid.UUID]Resource
	pending *containers.RingQueue[pendingRelease]
	// frame is the number of the frame currently being recorded.
	frame uint64
}

func NewResourceManager(device resourceBackend, capacity int) *ResourceManager {
	if capacity <= 0 {
		capacity = defaultReleaseCapacity
	}
	return &ResourceManager{
		device:  device,
		live:    make(map[uuid.UUID]Resource),
		pending: containers.NewRingQueue[pendingRelease](capacity),
	}
}

// SetFrame tags subsequent releases with the frame being recorded.
func (rm *ResourceManager) SetFrame(frame uint64) {
	rm.frame = frame
}

func (rm *ResourceManager) CreateImage(desc metadata.ImageDesc) (*Image, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: image `%s` has zero extent", core.ErrIncompatibleUsage, desc.Name)
	}
	if desc.Usage == 0 || desc.Usage&^metadata.ImageUsages != 0 {
		return nil, fmt.Errorf("%w: image `%s` cannot be created with usage %s", core.ErrIncompatibleUsage, desc.Name, desc.Usage)
	}
	if desc.Usage.Has(metadata.UsageDepthTarget) && !desc.Format.IsDepth() {
		return nil, fmt.Errorf("%w: image `%s` is a depth target without a depth format", core.ErrIncompatibleUsage, desc.Name)
	}
	if desc.Usage.Has(metadata.UsageColorTarget) && desc.Format.IsDepth() {
		return nil, fmt.Errorf("%w: image `%s` is a color target with a depth format", core.ErrIncompatibleUsage, desc.Name)
	}
	handle, err := rm.device.CreateImage(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create image `%s`: %w", desc.Name, err)
	}
	img := &Image{
		resourceBase: resourceBase{id: uuid.New(), name: desc.Name, usage: desc.Usage},
		Handle:       handle,
		Desc:         desc,
	}
	rm.live[img.id] = img
	core.LogDebug("created image `%s` %dx%d (%s)", desc.Name, desc.Width, desc.Height, desc.Usage)
	return img, nil
}

func (rm *ResourceManager) CreateBuffer(desc metadata.BufferDesc) (*Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("%w: buffer `%s` has zero size", core.ErrIncompatibleUsage, desc.Name)
	}
	if desc.Usage == 0 || desc.Usage&^metadata.BufferUsages != 0 {
		return nil, fmt.Errorf("%w: buffer `%s` cannot be created with usage %s", core.ErrIncompatibleUsage, desc.Name, desc.Usage)
	}
	handle, err := rm.device.CreateBuffer(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer `%s`: %w", desc.Name, err)
	}
	buf := &Buffer{
		resourceBase: resourceBase{id: uuid.New(), name: desc.Name, usage: desc.Usage},
		Handle:       handle,
		Desc:         desc,
	}
	rm.live[buf.id] = buf
	core.LogDebug("created buffer `%s` of %d bytes (%s)", desc.Name, desc.Size, desc.Usage)
	return buf, nil
}

// CreateSampler creates a sampler. Samplers carry UsageSampled.
func (rm *ResourceManager) CreateSampler(desc metadata.SamplerDesc) (*Sampler, error) {
	handle, err := rm.device.CreateSampler(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler `%s`: %w", desc.Name, err)
	}
	s := &Sampler{
		resourceBase: resourceBase{id: uuid.New(), name: desc.Name, usage: metadata.UsageSampled},
		Handle:       handle,
		Desc:         desc,
	}
	rm.live[s.id] = s
	return s, nil
}

// WriteBuffer copies data into a host-visible buffer.
func (rm *ResourceManager) WriteBuffer(buf *Buffer, offset uint64, data []byte) error {
	if err := rm.checkLive(buf); err != nil {
		return err
	}
	if !buf.Desc.HostVisible {
		return fmt.Errorf("%w: buffer `%s` is not host visible", core.ErrIncompatibleUsage, buf.name)
	}
	if offset+uint64(len(data)) > buf.Desc.Size {
		return fmt.Errorf("%w: write of %d bytes at offset %d overflows buffer `%s` (%d bytes)",
			core.ErrIncompatibleUsage, len(data), offset, buf.name, buf.Desc.Size)
	}
	return rm.device.WriteBuffer(buf.Handle, offset, data)
}

// RequireUsage fails when res was released or was not created with usage.
func (rm *ResourceManager) RequireUsage(res Resource, usage metadata.ResourceUsage) error {
	if err := rm.checkLive(res); err != nil {
		return err
	}
	if !res.Usage().Has(usage) {
		return fmt.Errorf("%w: `%s` declared %s, bound as %s", core.ErrIncompatibleUsage, res.ResourceName(), res.Usage(), usage)
	}
	return nil
}

func (rm *ResourceManager) checkLive(res Resource) error {
	if res == nil {
		return fmt.Errorf("%w: nil resource", core.ErrResourceDestroyed)
	}
	if _, ok := rm.live[res.ResourceID()]; !ok || res.Released() {
		return fmt.Errorf("%w: `%s`", core.ErrResourceDestroyed, res.ResourceName())
	}
	return nil
}

// Release schedules res for destruction once the frame currently being
// recorded has completed on the GPU.
func (rm *ResourceManager) Release(res Resource) error {
	if err := rm.checkLive(res); err != nil {
		return err
	}
	delete(rm.live, res.ResourceID())
	markReleased(res)

	entry := pendingRelease{resource: res, frame: rm.frame}
	if err := rm.pending.Enqueue(entry); err != nil {
		if !errors.Is(err, containers.ErrQueueFull) {
			return err
		}
		core.LogWarn("release queue is full, waiting for the device to go idle")
		if err := rm.device.WaitIdle(); err != nil {
			return err
		}
		rm.drain()
		return rm.pending.Enqueue(entry)
	}
	return nil
}

// Collect destroys every released resource whose frame is at or below
// safeFrame and returns how many were destroyed.
func (rm *ResourceManager) Collect(safeFrame uint64) int {
	return rm.pending.DrainWhile(func(p pendingRelease) bool {
		return p.frame <= safeFrame
	}, func(p pendingRelease) {
		rm.destroy(p.resource)
	})
}

// Pending returns the number of released resources awaiting destruction.
func (rm *ResourceManager) Pending() int {
	return rm.pending.Len()
}

func (rm *ResourceManager) LiveCount() int {
	return len(rm.live)
}

// DestroyAll destroys every pending and live resource. The device must be idle.
func (rm *ResourceManager) DestroyAll() {
	rm.drain()
	for id, res := range rm.live {
		core.LogDebug("destroying `%s` (%s) at shutdown", res.ResourceName(), id)
		markReleased(res)
		rm.destroy(res)
		delete(rm.live, id)
	}
}

func (rm *ResourceManager) drain() {
	rm.pending.DrainWhile(nil, func(p pendingRelease) {
		rm.destroy(p.resource)
	})
}

func (rm *ResourceManager) destroy(res Resource) {
	switch r := res.(type) {
	case *Image:
		rm.device.DestroyImage(r.Handle)
	case *Buffer:
		rm.device.DestroyBuffer(r.Handle)
	case *Sampler:
		rm.device.DestroySampler(r.Handle)
	default:
		core.LogWarn("unknown resource type %T", res)
	}
}

func markReleased(res Resource) {
	switch r := res.(type) {
	case *Image:
		r.released = true
	case *Buffer:
		r.released = true
	case *Sampler:
		r.released = true
	}
}
