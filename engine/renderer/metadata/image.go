package metadata

type Format int

const (
	FormatUndefined Format = iota
	FormatBGRA8Unorm
	FormatBGRA8Srgb
	FormatRGBA8Unorm
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
)

func (f Format) IsDepth() bool {
	return f == FormatD32Sfloat || f.HasStencil()
}

func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

type Extent2D struct {
	Width  uint32
	Height uint32
}

type ImageDesc struct {
	Name   string
	Width  uint32
	Height uint32
	Format Format
	Usage  ResourceUsage
}
