package vulkan

import (
	"image"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

// CreateTexture uploads img into a sampled sRGB image and pairs it with a
// linear, repeating sampler.
func (b *VulkanBackend) CreateTexture(img *image.RGBA) (driver.Texture, error) {
	bounds := img.Bounds()
	extent := driver.Extent{Width: uint32(bounds.Dx()), Height: uint32(bounds.Dy())}
	if extent.IsZero() {
		return 0, errors.New("texture image is empty")
	}

	pixels := img.Pix
	if img.Stride != bounds.Dx()*4 || bounds.Min != (image.Point{}) {
		pixels = make([]byte, 0, bounds.Dx()*bounds.Dy()*4)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			off := img.PixOffset(bounds.Min.X, y)
			pixels = append(pixels, img.Pix[off:off+bounds.Dx()*4]...)
		}
	}

	format := vk.FormatR8g8b8a8Srgb
	usage := vk.ImageUsageFlags(vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit)
	vkImg, mem, err := b.createVkImage(extent, format, usage, 1)
	if err != nil {
		return 0, err
	}
	tex := textureObject{image: vkImg, memory: mem}

	stage, err := b.staging(pixels)
	if err != nil {
		b.destroyTexture(tex)
		return 0, err
	}
	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	err = b.Immediate(func(cb driver.CommandBuffer) error {
		cmd, err := b.cmd(cb)
		if err != nil {
			return err
		}
		b.barrier(cmd, vkImg, aspect, driver.LayoutUndefined, driver.LayoutTransferDst)
		vk.CmdCopyBufferToImage(cmd, stage.handle, vkImg, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
			ImageSubresource: vk.ImageSubresourceLayers{AspectMask: aspect, LayerCount: 1},
			ImageExtent:      vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		}})
		b.barrier(cmd, vkImg, aspect, driver.LayoutTransferDst, driver.LayoutShaderReadOnly)
		return nil
	})
	b.destroyVkBuffer(stage)
	if err != nil {
		b.destroyTexture(tex)
		return 0, errors.Wrap(err, "upload texture")
	}

	if tex.view, err = b.createVkView(vkImg, format, aspect); err != nil {
		b.destroyTexture(tex)
		return 0, err
	}

	samplerInfo := vk.SamplerCreateInfo{
		SType:         vk.StructureTypeSamplerCreateInfo,
		MagFilter:     vk.FilterLinear,
		MinFilter:     vk.FilterLinear,
		MipmapMode:    vk.SamplerMipmapModeLinear,
		AddressModeU:  vk.SamplerAddressModeRepeat,
		AddressModeV:  vk.SamplerAddressModeRepeat,
		AddressModeW:  vk.SamplerAddressModeRepeat,
		CompareOp:     vk.CompareOpAlways,
		BorderColor:   vk.BorderColorIntOpaqueBlack,
		MaxAnisotropy: 1,
	}
	if b.device.anisotropy {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = 16
	}
	if res := vk.CreateSampler(b.logical(), &samplerInfo, b.context.Allocator, &tex.sampler); res != vk.Success {
		b.destroyTexture(tex)
		return 0, resultError(res, "create sampler")
	}
	return driver.Texture(b.textures.Insert(tex)), nil
}

func (b *VulkanBackend) destroyTexture(tex textureObject) {
	if tex.sampler != vk.NullSampler {
		vk.DestroySampler(b.logical(), tex.sampler, b.context.Allocator)
	}
	if tex.view != vk.NullImageView {
		vk.DestroyImageView(b.logical(), tex.view, b.context.Allocator)
	}
	if tex.image != vk.NullImage {
		vk.DestroyImage(b.logical(), tex.image, b.context.Allocator)
	}
	if tex.memory != vk.NullDeviceMemory {
		vk.FreeMemory(b.logical(), tex.memory, b.context.Allocator)
	}
}

func (b *VulkanBackend) DestroyTexture(t driver.Texture) {
	if tex, ok := b.textures.Remove(uint32(t)); ok {
		b.destroyTexture(tex)
	}
}

// ReadImage copies a color image into host memory through a transfer
// buffer and returns it as RGBA, swapping channels for BGRA formats.
func (b *VulkanBackend) ReadImage(img driver.Image, f driver.Format, extent driver.Extent, layout driver.ImageLayout) (*image.RGBA, error) {
	obj, ok := b.images.Get(uint32(img))
	if !ok {
		return nil, errors.Wrapf(driver.ErrUnknownHandle, "image %d", img)
	}
	if extent.IsZero() {
		return nil, errors.Newf("cannot read back a %s image", extent)
	}
	size := uint64(extent.Width) * uint64(extent.Height) * 4
	dst, err := b.createVkBuffer(size, vk.BufferUsageFlags(vk.BufferUsageTransferDstBit), hostVisible)
	if err != nil {
		return nil, err
	}
	defer b.destroyVkBuffer(dst)

	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	err = b.Immediate(func(cb driver.CommandBuffer) error {
		cmd, err := b.cmd(cb)
		if err != nil {
			return err
		}
		b.barrier(cmd, obj.handle, aspect, layout, driver.LayoutTransferSrc)
		vk.CmdCopyImageToBuffer(cmd, obj.handle, vk.ImageLayoutTransferSrcOptimal, dst.handle, 1, []vk.BufferImageCopy{{
			ImageSubresource: vk.ImageSubresourceLayers{AspectMask: aspect, LayerCount: 1},
			ImageExtent:      vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		}})
		b.barrier(cmd, obj.handle, aspect, driver.LayoutTransferSrc, layout)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "read back image")
	}

	out := image.NewRGBA(image.Rect(0, 0, int(extent.Width), int(extent.Height)))
	copy(out.Pix, unsafe.Slice((*byte)(dst.mapped), size))
	if f.IsBGRA() {
		for i := 0; i+3 < len(out.Pix); i += 4 {
			out.Pix[i], out.Pix[i+2] = out.Pix[i+2], out.Pix[i]
		}
	}
	return out, nil
}
