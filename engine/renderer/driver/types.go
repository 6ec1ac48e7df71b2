package driver

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

type Format int

const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatRGBA8Srgb
	FormatBGRA8Unorm
	FormatBGRA8Srgb
	FormatD32Sfloat
	FormatRG32Sfloat
	FormatRGB32Sfloat
)

// BytesPerPixel returns the texel size of color formats, 0 for the rest.
func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatRGBA8Unorm, FormatRGBA8Srgb, FormatBGRA8Unorm, FormatBGRA8Srgb:
		return 4
	default:
		return 0
	}
}

func (f Format) IsDepth() bool {
	return f == FormatD32Sfloat
}

func (f Format) String() string {
	switch f {
	case FormatRGBA8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatRGBA8Srgb:
		return "R8G8B8A8_SRGB"
	case FormatBGRA8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatBGRA8Srgb:
		return "B8G8R8A8_SRGB"
	case FormatD32Sfloat:
		return "D32_SFLOAT"
	case FormatRG32Sfloat:
		return "R32G32_SFLOAT"
	case FormatRGB32Sfloat:
		return "R32G32B32_SFLOAT"
	default:
		return "UNDEFINED"
	}
}

type ImageLayout int

const (
	LayoutUndefined ImageLayout = iota
	LayoutTransferDst
	LayoutShaderReadOnly
	LayoutDepthAttachment
	LayoutColorAttachment
	LayoutPresent
)

func (l ImageLayout) String() string {
	switch l {
	case LayoutUndefined:
		return "UNDEFINED"
	case LayoutTransferDst:
		return "TRANSFER_DST_OPTIMAL"
	case LayoutShaderReadOnly:
		return "SHADER_READ_ONLY_OPTIMAL"
	case LayoutDepthAttachment:
		return "DEPTH_STENCIL_ATTACHMENT_OPTIMAL"
	case LayoutColorAttachment:
		return "COLOR_ATTACHMENT_OPTIMAL"
	case LayoutPresent:
		return "PRESENT_SRC"
	default:
		return fmt.Sprintf("ImageLayout(%d)", int(l))
	}
}

type AccessFlags uint32

const (
	AccessNone          AccessFlags = 0
	AccessTransferWrite AccessFlags = 1 << iota
	AccessShaderRead
)

type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageTransfer
	StageFragmentShader
	StageColorAttachmentOutput
)

func (s PipelineStage) String() string {
	switch s {
	case StageTopOfPipe:
		return "TOP_OF_PIPE"
	case StageTransfer:
		return "TRANSFER"
	case StageFragmentShader:
		return "FRAGMENT_SHADER"
	case StageColorAttachmentOutput:
		return "COLOR_ATTACHMENT_OUTPUT"
	default:
		return fmt.Sprintf("PipelineStage(%#x)", uint32(s))
	}
}

type ImageUsage uint32

const (
	UsageTransferSrc ImageUsage = 1 << iota
	UsageTransferDst
	UsageSampled
	UsageDepthAttachment
	UsageColorAttachment
)

type ImageAspect uint32

const (
	AspectColor ImageAspect = 1 << iota
	AspectDepth
)

type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageUniform
	BufferUsageVertex
	BufferUsageIndex
)

type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
)

type DescriptorType int

const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorCombinedImageSampler
)

type CompareOp int

const (
	CompareLess CompareOp = iota
	CompareLessOrEqual
	CompareGreater
	CompareGreaterOrEqual
)

// DepthClear is the far plane value for the compare direction: 1.0 when
// nearer fragments have smaller depth, 0.0 for reversed Z.
func (c CompareOp) DepthClear() float32 {
	switch c {
	case CompareGreater, CompareGreaterOrEqual:
		return 0.0
	default:
		return 1.0
	}
}

func (c CompareOp) String() string {
	switch c {
	case CompareLess:
		return "less"
	case CompareLessOrEqual:
		return "less_or_equal"
	case CompareGreater:
		return "greater"
	case CompareGreaterOrEqual:
		return "greater_or_equal"
	default:
		return fmt.Sprintf("CompareOp(%d)", int(c))
	}
}

// ParseCompareOp is the inverse of CompareOp.String.
func ParseCompareOp(s string) (CompareOp, error) {
	for _, c := range []CompareOp{CompareLess, CompareLessOrEqual, CompareGreater, CompareGreaterOrEqual} {
		if c.String() == s {
			return c, nil
		}
	}
	return CompareLess, errors.Newf("unknown depth compare op `%s`", s)
}

type CullMode int

const (
	CullModeBack CullMode = iota
	CullModeNone
	CullModeFront
	CullModeFrontAndBack
)
