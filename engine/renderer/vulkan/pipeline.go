package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/subsurface/engine/core"
	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

// VulkanPipeline holds a graphics pipeline and its layout.
type VulkanPipeline struct {
	Handle         vk.Pipeline
	PipelineLayout vk.PipelineLayout
}

// CreatePipeline builds a triangle-list graphics pipeline with dynamic
// viewport and scissor. Shader modules are destroyed once the pipeline
// exists.
func (vr *VulkanRenderer) CreatePipeline(desc metadata.PipelineDesc) (metadata.PipelineHandle, error) {
	renderPass, ok := vr.renderPasses.get(uint64(desc.RenderPass))
	if !ok {
		return 0, fmt.Errorf("pipeline `%s` targets unknown render pass %d", desc.Name, desc.RenderPass)
	}
	setLayouts := make([]vk.DescriptorSetLayout, len(desc.DescriptorLayouts))
	for i, h := range desc.DescriptorLayouts {
		layout, ok := vr.descriptorLayouts.get(uint64(h))
		if !ok {
			return 0, fmt.Errorf("pipeline `%s` uses unknown descriptor layout %d", desc.Name, h)
		}
		setLayouts[i] = layout
	}

	stages := make([]*VulkanShaderStage, 0, len(desc.Stages))
	defer func() {
		for _, s := range stages {
			s.Destroy(vr.context)
		}
	}()
	stageInfos := make([]vk.PipelineShaderStageCreateInfo, 0, len(desc.Stages))
	for _, sd := range desc.Stages {
		stage, err := NewShaderModule(vr.context, sd)
		if err != nil {
			return 0, err
		}
		stages = append(stages, stage)
		stageInfos = append(stageInfos, stage.ShaderStageCreateInfo)
	}

	// Viewport and scissor are dynamic; only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                toVkCullMode(desc.CullMode),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}
	if desc.DepthBias != nil {
		rasterizerCreateInfo.DepthBiasEnable = vk.True
		rasterizerCreateInfo.DepthBiasConstantFactor = desc.DepthBias.ConstantFactor
		rasterizerCreateInfo.DepthBiasSlopeFactor = desc.DepthBias.SlopeFactor
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}
	if desc.DepthTest {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthCompareOp = vk.CompareOpLess
		depthStencil.DepthBoundsTestEnable = vk.False
	}
	if desc.DepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}

	// Opaque output, no blending. Depth-only pipelines have no attachment.
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:         vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable: vk.False,
		LogicOp:       vk.LogicOpCopy,
	}
	if desc.HasColor {
		colorBlendStateCreateInfo.AttachmentCount = 1
		colorBlendStateCreateInfo.PAttachments = []vk.PipelineColorBlendAttachmentState{{
			BlendEnable: vk.False,
			ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
				vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
		}}
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input
	bindingDescription := vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    desc.Vertex.Stride,
		InputRate: vk.VertexInputRateVertex,
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(desc.Vertex.Attributes))
	for i, a := range desc.Vertex.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   toVkVertexFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDescription},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	// Pipeline layout
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}

	outPipeline := &VulkanPipeline{}
	dev := vr.context.Device.LogicalDevice
	err := vr.locks.SafeCall(PipelineManagement, func() error {
		var layout vk.PipelineLayout
		if res := vk.CreatePipelineLayout(dev, &pipelineLayoutCreateInfo, vr.context.Allocator, &layout); res != vk.Success {
			return vulkanError(fmt.Sprintf("vkCreatePipelineLayout failed for `%s`", desc.Name), res)
		}
		outPipeline.PipelineLayout = layout

		pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
			SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
			StageCount:          uint32(len(stageInfos)),
			PStages:             stageInfos,
			PVertexInputState:   &vertexInputInfo,
			PInputAssemblyState: &inputAssembly,
			PViewportState:      &viewportState,
			PRasterizationState: &rasterizerCreateInfo,
			PMultisampleState:   &multisamplingCreateInfo,
			PDepthStencilState:  &depthStencil,
			PColorBlendState:    &colorBlendStateCreateInfo,
			PDynamicState:       &dynamicStateCreateInfo,
			Layout:              layout,
			RenderPass:          renderPass,
			Subpass:             0,
			BasePipelineHandle:  vk.NullPipeline,
			BasePipelineIndex:   -1,
		}
		pipelines := make([]vk.Pipeline, 1)
		if res := vk.CreateGraphicsPipelines(dev, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, vr.context.Allocator, pipelines); res != vk.Success {
			return vulkanError(fmt.Sprintf("vkCreateGraphicsPipelines failed for `%s`", desc.Name), res)
		}
		outPipeline.Handle = pipelines[0]
		return nil
	})
	if err != nil {
		outPipeline.destroy(vr.context)
		return 0, err
	}

	core.LogDebug("Graphics pipeline `%s` created.", desc.Name)
	return metadata.PipelineHandle(vr.pipelines.add(outPipeline)), nil
}

func (vr *VulkanRenderer) DestroyPipeline(h metadata.PipelineHandle) {
	p, ok := vr.pipelines.remove(uint64(h))
	if !ok {
		return
	}
	_ = vr.locks.SafeCall(PipelineManagement, func() error {
		p.destroy(vr.context)
		return nil
	})
}

func (pipeline *VulkanPipeline) destroy(context *VulkanContext) {
	if pipeline.Handle != vk.NullPipeline {
		vk.DestroyPipeline(context.Device.LogicalDevice, pipeline.Handle, context.Allocator)
		pipeline.Handle = vk.NullPipeline
	}
	if pipeline.PipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(context.Device.LogicalDevice, pipeline.PipelineLayout, context.Allocator)
		pipeline.PipelineLayout = vk.NullPipelineLayout
	}
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer, bindPoint vk.PipelineBindPoint) {
	vk.CmdBindPipeline(commandBuffer.Native, bindPoint, pipeline.Handle)
}
