package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/geometry"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

func TestShadowPipelineIsDepthOnly(t *testing.T) {
	f := newFakeBackend()
	pc := NewPipelineCatalog(f, newFakeShaders(), geometry.Layout())

	p, err := pc.BuildShadowPipeline(metadata.FormatD32Sfloat, metadata.FaceCullModeBack)
	require.NoError(t, err)

	desc := f.pipelines[p.Handle]
	assert.False(t, desc.HasColor)
	assert.True(t, desc.DepthWrite)
	require.NotNil(t, desc.DepthBias)
	require.Len(t, desc.Stages, 1)
	assert.Equal(t, metadata.ShaderStageVertex, desc.Stages[0].Stage)
	assert.Equal(t, metadata.FaceCullModeBack, desc.CullMode)

	pass := f.renderPasses[p.RenderPass]
	assert.Nil(t, pass.Color)
	require.NotNil(t, pass.Depth)
	assert.Equal(t, metadata.ImageLayoutDepthAttachment, pass.Depth.FinalLayout)
	require.Len(t, pass.Dependencies, 1)
	dep := pass.Dependencies[0]
	assert.True(t, dep.Incoming)
	assert.Equal(t, metadata.PipelineStageFragmentShader, dep.SrcStage)
	assert.Equal(t, metadata.AccessShaderRead, dep.SrcAccess)
	assert.NotZero(t, dep.DstAccess&metadata.AccessDepthAttachmentWrite)
	assert.False(t, dep.ByRegion)

	assert.Equal(t, ShadowBindings(), f.layouts[p.Layout])
}

func TestShadingPipelinePresents(t *testing.T) {
	f := newFakeBackend()
	pc := NewPipelineCatalog(f, newFakeShaders(), geometry.Layout())

	p, err := pc.BuildShadingPipeline(metadata.FormatBGRA8Srgb, metadata.FormatD32Sfloat)
	require.NoError(t, err)

	desc := f.pipelines[p.Handle]
	assert.True(t, desc.HasColor)
	assert.Len(t, desc.Stages, 2)
	assert.Equal(t, geometry.Layout(), desc.Vertex)
	pass := f.renderPasses[p.RenderPass]
	require.NotNil(t, pass.Color)
	assert.Equal(t, metadata.ImageLayoutPresentSrc, pass.Color.FinalLayout)
	assert.Equal(t, ShadingBindings(), f.layouts[p.Layout])

	// the depth clear is ordered after the previous frame's depth writes
	require.Len(t, pass.Dependencies, 1)
	dep := pass.Dependencies[0]
	assert.True(t, dep.Incoming)
	assert.NotZero(t, dep.SrcStage&metadata.PipelineStageLateFragmentTests)
	assert.NotZero(t, dep.SrcStage&metadata.PipelineStageColorAttachmentOutput)
	assert.NotZero(t, dep.SrcAccess&metadata.AccessDepthAttachmentWrite)
	assert.NotZero(t, dep.DstAccess&metadata.AccessDepthAttachmentWrite)
	assert.NotZero(t, dep.DstAccess&metadata.AccessColorAttachmentWrite)
	assert.False(t, dep.ByRegion)
}

func TestInvalidShaderRejectedBeforeDeviceCalls(t *testing.T) {
	tests := []struct {
		name string
		code []uint32
	}{
		{"empty", nil},
		{"short", []uint32{spirvMagic, 0x00010000}},
		{"bad magic", []uint32{0x03022307, 0x00010000, 0, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeBackend()
			shaders := newFakeShaders()
			shaders[ShadowVertexShader] = tt.code
			pc := NewPipelineCatalog(f, shaders, geometry.Layout())

			_, err := pc.BuildShadowPipeline(metadata.FormatD32Sfloat, metadata.FaceCullModeBack)
			assert.ErrorIs(t, err, core.ErrShaderInvalid)
			assert.Empty(t, f.renderPasses)
			assert.Empty(t, f.layouts)
			assert.Empty(t, f.pipelines)
		})
	}
}

func TestBuildRejectsIncompatibleFormats(t *testing.T) {
	f := newFakeBackend()
	pc := NewPipelineCatalog(f, newFakeShaders(), geometry.Layout())

	_, err := pc.BuildShadowPipeline(metadata.FormatRGBA8Unorm, metadata.FaceCullModeBack)
	assert.ErrorIs(t, err, core.ErrIncompatibleLayout)
	_, err = pc.BuildShadowPipeline(metadata.FormatD32Sfloat, metadata.FaceCullModeFront)
	assert.ErrorIs(t, err, core.ErrIncompatibleLayout)
	_, err = pc.BuildShadingPipeline(metadata.FormatD32Sfloat, metadata.FormatD32Sfloat)
	assert.ErrorIs(t, err, core.ErrIncompatibleLayout)
	assert.Empty(t, f.pipelines)
}

func TestValidateLayout(t *testing.T) {
	vertexOnly := []metadata.ShaderStageDesc{{Stage: metadata.ShaderStageVertex, Code: validModule()}}
	both := append(vertexOnly, metadata.ShaderStageDesc{Stage: metadata.ShaderStageFragment, Code: validModule()})

	assert.NoError(t, ValidateLayout(geometry.Layout(), ShadowBindings(), vertexOnly))
	assert.NoError(t, ValidateLayout(geometry.Layout(), ShadingBindings(), both))

	// the sampler binding is visible to a fragment stage the pipeline lacks
	assert.ErrorIs(t, ValidateLayout(geometry.Layout(), ShadingBindings(), vertexOnly), core.ErrIncompatibleLayout)

	overflow := metadata.VertexLayout{Stride: 16, Attributes: []metadata.VertexAttribute{
		{Location: 0, Format: metadata.VertexFormatFloat3, Offset: 0},
		{Location: 1, Format: metadata.VertexFormatFloat3, Offset: 12},
	}}
	assert.ErrorIs(t, ValidateLayout(overflow, ShadowBindings(), vertexOnly), core.ErrIncompatibleLayout)

	dupLocation := metadata.VertexLayout{Stride: 24, Attributes: []metadata.VertexAttribute{
		{Location: 0, Format: metadata.VertexFormatFloat3, Offset: 0},
		{Location: 0, Format: metadata.VertexFormatFloat3, Offset: 12},
	}}
	assert.ErrorIs(t, ValidateLayout(dupLocation, ShadowBindings(), vertexOnly), core.ErrIncompatibleLayout)

	dupBinding := append(ShadowBindings(), ShadowBindings()...)
	assert.ErrorIs(t, ValidateLayout(geometry.Layout(), dupBinding, vertexOnly), core.ErrIncompatibleLayout)

	fragmentOnly := []metadata.ShaderStageDesc{{Stage: metadata.ShaderStageFragment, Code: validModule()}}
	assert.ErrorIs(t, ValidateLayout(geometry.Layout(), nil, fragmentOnly), core.ErrIncompatibleLayout)
}

func TestParseCullMode(t *testing.T) {
	m, err := ParseCullMode("back")
	require.NoError(t, err)
	assert.Equal(t, metadata.FaceCullModeBack, m)
	m, err = ParseCullMode("none")
	require.NoError(t, err)
	assert.Equal(t, metadata.FaceCullModeNone, m)
	_, err = ParseCullMode("front")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestCatalogDestroy(t *testing.T) {
	f := newFakeBackend()
	pc := NewPipelineCatalog(f, newFakeShaders(), geometry.Layout())
	_, err := pc.BuildShadowPipeline(metadata.FormatD32Sfloat, metadata.FaceCullModeNone)
	require.NoError(t, err)
	_, err = pc.BuildShadingPipeline(metadata.FormatBGRA8Srgb, metadata.FormatD32Sfloat)
	require.NoError(t, err)

	pc.Destroy()
	assert.Empty(t, f.pipelines)
	assert.Empty(t, f.layouts)
	assert.Empty(t, f.renderPasses)
}
