package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

func toVkFormat(f driver.Format) vk.Format {
	switch f {
	case driver.FormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case driver.FormatRGBA8Srgb:
		return vk.FormatR8g8b8a8Srgb
	case driver.FormatBGRA8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case driver.FormatBGRA8Srgb:
		return vk.FormatB8g8r8a8Srgb
	case driver.FormatD32Sfloat:
		return vk.FormatD32Sfloat
	case driver.FormatRG32Sfloat:
		return vk.FormatR32g32Sfloat
	case driver.FormatRGB32Sfloat:
		return vk.FormatR32g32b32Sfloat
	default:
		return vk.FormatUndefined
	}
}

func fromVkFormat(f vk.Format) driver.Format {
	switch f {
	case vk.FormatR8g8b8a8Unorm:
		return driver.FormatRGBA8Unorm
	case vk.FormatR8g8b8a8Srgb:
		return driver.FormatRGBA8Srgb
	case vk.FormatB8g8r8a8Unorm:
		return driver.FormatBGRA8Unorm
	case vk.FormatB8g8r8a8Srgb:
		return driver.FormatBGRA8Srgb
	case vk.FormatD32Sfloat:
		return driver.FormatD32Sfloat
	default:
		return driver.FormatUndefined
	}
}

func toVkLayout(l driver.ImageLayout) vk.ImageLayout {
	switch l {
	case driver.LayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case driver.LayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case driver.LayoutDepthAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case driver.LayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case driver.LayoutPresent:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutUndefined
	}
}

func toVkAccess(a driver.AccessFlags) vk.AccessFlags {
	var out vk.AccessFlagBits
	if a&driver.AccessTransferWrite != 0 {
		out |= vk.AccessTransferWriteBit
	}
	if a&driver.AccessShaderRead != 0 {
		out |= vk.AccessShaderReadBit
	}
	return vk.AccessFlags(out)
}

func toVkStage(s driver.PipelineStage) vk.PipelineStageFlags {
	var out vk.PipelineStageFlagBits
	if s&driver.StageTopOfPipe != 0 {
		out |= vk.PipelineStageTopOfPipeBit
	}
	if s&driver.StageTransfer != 0 {
		out |= vk.PipelineStageTransferBit
	}
	if s&driver.StageFragmentShader != 0 {
		out |= vk.PipelineStageFragmentShaderBit
	}
	if s&driver.StageColorAttachmentOutput != 0 {
		out |= vk.PipelineStageColorAttachmentOutputBit
	}
	return vk.PipelineStageFlags(out)
}

func toVkImageUsage(u driver.ImageUsage) vk.ImageUsageFlags {
	var out vk.ImageUsageFlagBits
	if u&driver.UsageTransferSrc != 0 {
		out |= vk.ImageUsageTransferSrcBit
	}
	if u&driver.UsageTransferDst != 0 {
		out |= vk.ImageUsageTransferDstBit
	}
	if u&driver.UsageSampled != 0 {
		out |= vk.ImageUsageSampledBit
	}
	if u&driver.UsageDepthAttachment != 0 {
		out |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&driver.UsageColorAttachment != 0 {
		out |= vk.ImageUsageColorAttachmentBit
	}
	return vk.ImageUsageFlags(out)
}

func toVkAspect(a driver.ImageAspect) vk.ImageAspectFlags {
	var out vk.ImageAspectFlagBits
	if a&driver.AspectColor != 0 {
		out |= vk.ImageAspectColorBit
	}
	if a&driver.AspectDepth != 0 {
		out |= vk.ImageAspectDepthBit
	}
	return vk.ImageAspectFlags(out)
}

func toVkBufferUsage(u driver.BufferUsage) vk.BufferUsageFlags {
	var out vk.BufferUsageFlagBits
	if u&driver.BufferUsageTransferSrc != 0 {
		out |= vk.BufferUsageTransferSrcBit
	}
	if u&driver.BufferUsageUniform != 0 {
		out |= vk.BufferUsageUniformBufferBit
	}
	if u&driver.BufferUsageVertex != 0 {
		out |= vk.BufferUsageVertexBufferBit
	}
	if u&driver.BufferUsageIndex != 0 {
		out |= vk.BufferUsageIndexBufferBit
	}
	return vk.BufferUsageFlags(out)
}

func toVkShaderStages(s driver.ShaderStage) vk.ShaderStageFlags {
	var out vk.ShaderStageFlagBits
	if s&driver.ShaderStageVertex != 0 {
		out |= vk.ShaderStageVertexBit
	}
	if s&driver.ShaderStageFragment != 0 {
		out |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(out)
}

func toVkDescriptorType(t driver.DescriptorType) vk.DescriptorType {
	if t == driver.DescriptorCombinedImageSampler {
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func toVkCompareOp(c driver.CompareOp) vk.CompareOp {
	switch c {
	case driver.CompareLessOrEqual:
		return vk.CompareOpLessOrEqual
	case driver.CompareGreater:
		return vk.CompareOpGreater
	case driver.CompareGreaterOrEqual:
		return vk.CompareOpGreaterOrEqual
	default:
		return vk.CompareOpLess
	}
}

func toVkCullMode(c driver.CullMode) vk.CullModeFlags {
	switch c {
	case driver.CullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case driver.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case driver.CullModeFrontAndBack:
		return vk.CullModeFlags(vk.CullModeFrontAndBack)
	default:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
}
