package driver

import (
	"fmt"
	"math"
)

// Handle is an opaque index into a per-kind table owned by the device.
// The zero value is the null handle.
type Handle uint32

type (
	Surface       Handle
	Swapchain     Handle
	Image         Handle
	ImageView     Handle
	Framebuffer   Handle
	RenderPass    Handle
	CommandBuffer Handle
	Fence         Handle
	Semaphore     Handle
	Buffer        Handle
	Texture       Handle
	Pipeline      Handle
	DescriptorSet Handle
	Queue         Handle
)

// UndefinedExtent is reported as the current surface width when the
// surface size is determined by the swapchain extent.
const UndefinedExtent = math.MaxUint32

// Infinite disables the timeout of a blocking call.
const Infinite = math.MaxUint64

type Extent struct {
	Width, Height uint32
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// IsZero reports whether either side is empty.
func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

type Format uint32

const (
	FormatUndefined Format = iota
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Srgb
	FormatD16Unorm
	FormatD32Float
	FormatD32FloatS8Uint
	FormatD24UnormS8Uint
)

var formatNames = map[Format]string{
	FormatUndefined:      "UNDEFINED",
	FormatB8G8R8A8Unorm:  "B8G8R8A8_UNORM",
	FormatB8G8R8A8Srgb:   "B8G8R8A8_SRGB",
	FormatR8G8B8A8Unorm:  "R8G8B8A8_UNORM",
	FormatR8G8B8A8Srgb:   "R8G8B8A8_SRGB",
	FormatD16Unorm:       "D16_UNORM",
	FormatD32Float:       "D32_SFLOAT",
	FormatD32FloatS8Uint: "D32_SFLOAT_S8_UINT",
	FormatD24UnormS8Uint: "D24_UNORM_S8_UINT",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", uint32(f))
}

func (f Format) IsDepth() bool {
	switch f {
	case FormatD16Unorm, FormatD32Float, FormatD32FloatS8Uint, FormatD24UnormS8Uint:
		return true
	}
	return false
}

func (f Format) HasStencil() bool {
	return f == FormatD32FloatS8Uint || f == FormatD24UnormS8Uint
}

// IsBGRA reports whether the red and blue channels are swapped in memory
// relative to image.RGBA.
func (f Format) IsBGRA() bool {
	return f == FormatB8G8R8A8Unorm || f == FormatB8G8R8A8Srgb
}

type ColorSpace uint32

const (
	ColorSpaceSrgbNonlinear ColorSpace = iota
	ColorSpaceExtendedSrgbLinear
	ColorSpaceHdr10St2084
)

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type PresentMode uint32

const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFifo
	PresentModeFifoRelaxed
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "IMMEDIATE"
	case PresentModeMailbox:
		return "MAILBOX"
	case PresentModeFifo:
		return "FIFO"
	case PresentModeFifoRelaxed:
		return "FIFO_RELAXED"
	}
	return fmt.Sprintf("PresentMode(%d)", uint32(m))
}

// ParsePresentMode accepts the names returned by String, case sensitive.
func ParsePresentMode(s string) (PresentMode, bool) {
	for _, m := range []PresentMode{PresentModeImmediate, PresentModeMailbox, PresentModeFifo, PresentModeFifoRelaxed} {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

// SampleCount is a number of samples per pixel. Valid values are powers of
// two between 1 and 64.
type SampleCount uint32

const MaxSampleCount SampleCount = 64

func (s SampleCount) Valid() bool {
	return s >= 1 && s <= MaxSampleCount && s&(s-1) == 0
}

// SampleCountFlags is a bit set where bit value n means n samples are
// supported, the same encoding Vulkan uses.
type SampleCountFlags uint32

func (f SampleCountFlags) Has(s SampleCount) bool {
	return s.Valid() && uint32(f)&uint32(s) != 0
}

type SurfaceCapabilities struct {
	MinImageCount  uint32
	MaxImageCount  uint32
	CurrentExtent  Extent
	MinImageExtent Extent
	MaxImageExtent Extent
}

type ImageLayout uint32

const (
	LayoutUndefined ImageLayout = iota
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutShaderReadOnly
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresentSrc
)

func (l ImageLayout) String() string {
	return [...]string{"UNDEFINED", "COLOR_ATTACHMENT", "DEPTH_STENCIL_ATTACHMENT", "SHADER_READ_ONLY", "TRANSFER_SRC", "TRANSFER_DST", "PRESENT_SRC"}[l]
}

type ImageUsage uint32

const (
	UsageColorAttachment ImageUsage = 1 << iota
	UsageDepthStencilAttachment
	UsageTransientAttachment
	UsageSampled
	UsageTransferSrc
	UsageTransferDst
)

type Aspect uint32

const (
	AspectColor Aspect = 1 << iota
	AspectDepth
	AspectStencil
)

// AspectFor returns the aspects an attachment of format f covers.
func AspectFor(f Format) Aspect {
	switch {
	case f.HasStencil():
		return AspectDepth | AspectStencil
	case f.IsDepth():
		return AspectDepth
	}
	return AspectColor
}

type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageColorAttachmentOutput
	StageEarlyFragmentTests
	StageFragmentShader
	StageTransfer
	StageBottomOfPipe
)

type ShaderStage uint32

const (
	ShaderVertex ShaderStage = 1 << iota
	ShaderFragment
)

type SwapchainDesc struct {
	Surface     Surface
	Format      SurfaceFormat
	PresentMode PresentMode
	Extent      Extent
	ImageCount  uint32
	Usage       ImageUsage
	// Old is the retiring swapchain, or zero.
	Old Swapchain
}

type ImageDesc struct {
	Extent  Extent
	Format  Format
	Usage   ImageUsage
	Samples SampleCount
}

type RenderPassDesc struct {
	ColorFormat Format
	DepthFormat Format
	Samples     SampleCount
}

// ClearValue is interpreted as a color for color attachments and as
// depth/stencil for depth attachments.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

func ClearDepth(depth float32, stencil uint32) ClearValue {
	return ClearValue{Depth: depth, Stencil: stencil}
}

type SubmitInfo struct {
	CommandBuffer CommandBuffer
	Wait          Semaphore
	WaitStage     PipelineStage
	Signal        Semaphore
	Fence         Fence
}

type QueueKind uint32

const (
	QueueGraphics QueueKind = iota
	QueuePresent
)

type BufferUsage uint32

const (
	BufferVertex BufferUsage = 1 << iota
	BufferIndex
	BufferUniform
	BufferTransferSrc
	BufferTransferDst
)

type BufferDesc struct {
	Size  uint64
	Usage BufferUsage
	// HostVisible buffers can be written with WriteBuffer. Others are
	// device local and filled through a staging copy at creation.
	HostVisible bool
}

type IndexType uint32

const (
	IndexUint16 IndexType = iota
	IndexUint32
)

type VertexFormat uint32

const (
	VertexFloat2 VertexFormat = iota
	VertexFloat3
	VertexFloat4
)

type VertexAttribute struct {
	Location uint32
	Format   VertexFormat
	Offset   uint32
}

type DescriptorType uint32

const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorCombinedImageSampler
)

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStage
}

type ShaderDesc struct {
	Stage ShaderStage
	// SPIR-V byte code.
	Code  []byte
	Entry string
}

type PipelineDesc struct {
	RenderPass   RenderPass
	Samples      SampleCount
	Shaders      []ShaderDesc
	VertexStride uint32
	Attributes   []VertexAttribute
	Bindings     []DescriptorBinding
	// PushConstantSize is the size in bytes of the vertex stage push
	// constant range, zero for none.
	PushConstantSize uint32
	CullBackFaces    bool
	DepthTest        bool
}
