package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

type renderPass struct {
	ctx    *Context
	handle vk.RenderPass
}

// CreateRenderPass creates the single subpass forward pass: one color
// attachment presented at the end and one depth attachment.
func (d *Device) CreateRenderPass(desc driver.RenderPassDesc) (driver.RenderPass, error) {
	colorAttachment := vk.AttachmentDescription{
		Format:         toVkFormat(desc.ColorFormat),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}
	depthAttachment := vk.AttachmentDescription{
		Format:         toVkFormat(desc.DepthFormat),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	depthAttachmentReference := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
		PDepthStencilAttachment: &depthAttachmentReference,
	}

	stages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit)
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stages,
		SrcAccessMask: 0,
		DstStageMask:  stages,
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 2,
		PAttachments:    []vk.AttachmentDescription{colorAttachment, depthAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	var handle vk.RenderPass
	if err := checkResult(vk.CreateRenderPass(d.ctx.Device, &info, d.ctx.Allocator, &handle), "vkCreateRenderPass"); err != nil {
		return nil, err
	}
	return &renderPass{ctx: d.ctx, handle: handle}, nil
}

func (rp *renderPass) Destroy() {
	if rp.handle != nil {
		vk.DestroyRenderPass(rp.ctx.Device, rp.handle, rp.ctx.Allocator)
		rp.handle = nil
	}
}

type pipeline struct {
	ctx    *Context
	handle vk.Pipeline
	layout vk.PipelineLayout
}

func (d *Device) CreatePipeline(desc driver.PipelineDesc) (driver.Pipeline, error) {
	// Viewport and scissor are dynamic; the counts still have to be set.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

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

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       boolToVk(desc.DepthTest),
		DepthWriteEnable:      boolToVk(desc.DepthWrite),
		DepthCompareOp:        toVkCompareOp(desc.DepthCompare),
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         boolToVk(desc.BlendAlphaEnabled),
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	attachments := desc.ColorAttachments
	if attachments == 0 {
		attachments = 1
	}
	blendStates := make([]vk.PipelineColorBlendAttachmentState, attachments)
	for i := range blendStates {
		blendStates[i] = colorBlendAttachmentState
	}
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: attachments,
		PAttachments:    blendStates,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	attributes := make([]vk.VertexInputAttributeDescription, len(desc.VertexAttributes))
	for i, a := range desc.VertexAttributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   toVkFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.VertexStride,
			InputRate: vk.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	setLayouts := make([]vk.DescriptorSetLayout, len(desc.SetLayouts))
	for i, l := range desc.SetLayouts {
		setLayouts[i] = l.(*descriptorSetLayout).handle
	}
	// Only 128 bytes are guaranteed, with 4-byte alignment.
	if len(desc.PushConstants) > 32 {
		return nil, errors.Newf("cannot have more than 32 push constant ranges, got %d", len(desc.PushConstants))
	}
	ranges := make([]vk.PushConstantRange, len(desc.PushConstants))
	for i, r := range desc.PushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: toVkShaderStages(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	out := &pipeline{ctx: d.ctx}
	if err := checkResult(vk.CreatePipelineLayout(d.ctx.Device, &pipelineLayoutCreateInfo, d.ctx.Allocator, &out.layout), "vkCreatePipelineLayout"); err != nil {
		return nil, err
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, len(desc.Shaders))
	for i, s := range desc.Shaders {
		stages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(toVkShaderStages(s.Stage())),
			Module: s.(*shaderModule).handle,
			PName:  VulkanSafeString("main"),
		}
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              out.layout,
		RenderPass:          desc.RenderPass.(*renderPass).handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
	pipelines := make([]vk.Pipeline, 1)
	if err := checkResult(vk.CreateGraphicsPipelines(d.ctx.Device, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, d.ctx.Allocator, pipelines), "vkCreateGraphicsPipelines"); err != nil {
		vk.DestroyPipelineLayout(d.ctx.Device, out.layout, d.ctx.Allocator)
		return nil, err
	}
	out.handle = pipelines[0]

	core.LogDebug("Graphics pipeline created!")
	return out, nil
}

func (p *pipeline) Destroy() {
	if p.handle != nil {
		vk.DestroyPipeline(p.ctx.Device, p.handle, p.ctx.Allocator)
		p.handle = nil
	}
	if p.layout != nil {
		vk.DestroyPipelineLayout(p.ctx.Device, p.layout, p.ctx.Allocator)
		p.layout = nil
	}
}
