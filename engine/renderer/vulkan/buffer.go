package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

const hostVisible = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit

// createVkBuffer creates a buffer with its own allocation. Host visible
// buffers stay mapped for their whole lifetime.
func (b *VulkanBackend) createVkBuffer(size uint64, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlagBits) (bufferObject, error) {
	obj := bufferObject{size: size}
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	if res := vk.CreateBuffer(b.logical(), &info, b.context.Allocator, &obj.handle); res != vk.Success {
		return obj, resultError(res, "create buffer")
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.logical(), obj.handle, &reqs)
	reqs.Deref()
	memType, ok := b.device.FindMemoryIndex(reqs.MemoryTypeBits, props)
	if !ok {
		b.destroyVkBuffer(obj)
		return bufferObject{}, errors.Newf("no memory type with properties %#x for buffer", uint32(props))
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}
	if res := vk.AllocateMemory(b.logical(), &allocInfo, b.context.Allocator, &obj.memory); res != vk.Success {
		b.destroyVkBuffer(obj)
		return bufferObject{}, resultError(res, "allocate buffer memory")
	}
	if res := vk.BindBufferMemory(b.logical(), obj.handle, obj.memory, 0); res != vk.Success {
		b.destroyVkBuffer(obj)
		return bufferObject{}, resultError(res, "bind buffer memory")
	}
	if props&vk.MemoryPropertyHostVisibleBit != 0 {
		var ptr unsafe.Pointer
		if res := vk.MapMemory(b.logical(), obj.memory, 0, vk.DeviceSize(size), 0, &ptr); res != vk.Success {
			b.destroyVkBuffer(obj)
			return bufferObject{}, resultError(res, "map buffer memory")
		}
		obj.mapped = ptr
	}
	return obj, nil
}

func (b *VulkanBackend) destroyVkBuffer(obj bufferObject) {
	if obj.mapped != nil {
		vk.UnmapMemory(b.logical(), obj.memory)
	}
	if obj.handle != vk.NullBuffer {
		vk.DestroyBuffer(b.logical(), obj.handle, b.context.Allocator)
	}
	if obj.memory != vk.NullDeviceMemory {
		vk.FreeMemory(b.logical(), obj.memory, b.context.Allocator)
	}
}

// staging returns a mapped transfer source holding data.
func (b *VulkanBackend) staging(data []byte) (bufferObject, error) {
	obj, err := b.createVkBuffer(uint64(len(data)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), hostVisible)
	if err != nil {
		return obj, err
	}
	vk.Memcopy(obj.mapped, data)
	return obj, nil
}

// CreateBuffer creates a buffer of desc.Size bytes initialized with data.
// Device local buffers are filled through a staging copy.
func (b *VulkanBackend) CreateBuffer(desc driver.BufferDesc, data []byte) (driver.Buffer, error) {
	if desc.Size == 0 {
		desc.Size = uint64(len(data))
	}
	if uint64(len(data)) > desc.Size {
		return 0, errors.Newf("buffer data is %d bytes, buffer holds %d", len(data), desc.Size)
	}
	usage := toVkBufferUsage(desc.Usage)

	if desc.HostVisible {
		obj, err := b.createVkBuffer(desc.Size, usage, hostVisible)
		if err != nil {
			return 0, err
		}
		if len(data) > 0 {
			vk.Memcopy(obj.mapped, data)
		}
		return driver.Buffer(b.buffers.Insert(obj)), nil
	}

	obj, err := b.createVkBuffer(desc.Size, usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit), vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return 0, err
	}
	if len(data) > 0 {
		stage, err := b.staging(data)
		if err != nil {
			b.destroyVkBuffer(obj)
			return 0, err
		}
		err = b.Immediate(func(cb driver.CommandBuffer) error {
			cmd, err := b.cmd(cb)
			if err != nil {
				return err
			}
			vk.CmdCopyBuffer(cmd, stage.handle, obj.handle, 1, []vk.BufferCopy{{Size: vk.DeviceSize(len(data))}})
			return nil
		})
		b.destroyVkBuffer(stage)
		if err != nil {
			b.destroyVkBuffer(obj)
			return 0, errors.Wrap(err, "upload buffer")
		}
	}
	return driver.Buffer(b.buffers.Insert(obj)), nil
}

// WriteBuffer copies data into a host visible buffer at offset.
func (b *VulkanBackend) WriteBuffer(buf driver.Buffer, offset uint64, data []byte) error {
	obj, ok := b.buffers.Get(uint32(buf))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "buffer %d", buf)
	}
	if obj.mapped == nil {
		return errors.Newf("buffer %d is not host visible", buf)
	}
	if offset+uint64(len(data)) > obj.size {
		return errors.Newf("write of %d bytes at %d overflows buffer %d of %d bytes", len(data), offset, buf, obj.size)
	}
	vk.Memcopy(unsafe.Add(obj.mapped, offset), data)
	return nil
}

func (b *VulkanBackend) DestroyBuffer(buf driver.Buffer) {
	if obj, ok := b.buffers.Remove(uint32(buf)); ok {
		b.destroyVkBuffer(obj)
	}
}
