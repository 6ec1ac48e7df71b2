package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

type buffer struct {
	ctx         *Context
	handle      vk.Buffer
	memory      vk.DeviceMemory
	size        uint64
	hostVisible bool
}

func (d *Device) CreateBuffer(desc driver.BufferDesc) (driver.Buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       toVkBufferUsage(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if err := checkResult(vk.CreateBuffer(d.ctx.Device, &info, d.ctx.Allocator, &handle), "vkCreateBuffer"); err != nil {
		return nil, err
	}

	flags := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if desc.HostVisible {
		flags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.ctx.Device, handle, &reqs)
	memory, err := d.allocate(reqs, flags)
	if err != nil {
		vk.DestroyBuffer(d.ctx.Device, handle, d.ctx.Allocator)
		return nil, err
	}
	if err := checkResult(vk.BindBufferMemory(d.ctx.Device, handle, memory, 0), "vkBindBufferMemory"); err != nil {
		vk.FreeMemory(d.ctx.Device, memory, d.ctx.Allocator)
		vk.DestroyBuffer(d.ctx.Device, handle, d.ctx.Allocator)
		return nil, err
	}
	return &buffer{
		ctx:         d.ctx,
		handle:      handle,
		memory:      memory,
		size:        desc.Size,
		hostVisible: desc.HostVisible,
	}, nil
}

func (b *buffer) Size() uint64 {
	return b.size
}

// Write maps the range, copies data and unmaps. The memory is coherent so
// no flush is needed.
func (b *buffer) Write(offset uint64, data []byte) error {
	if !b.hostVisible {
		return errors.New("write to a device local buffer")
	}
	if offset+uint64(len(data)) > b.size {
		return errors.Newf("write of %d bytes at %d overflows buffer of %d", len(data), offset, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	var mapped unsafe.Pointer
	if err := checkResult(vk.MapMemory(b.ctx.Device, b.memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &mapped), "vkMapMemory"); err != nil {
		return err
	}
	vk.Memcopy(mapped, data)
	vk.UnmapMemory(b.ctx.Device, b.memory)
	return nil
}

func (b *buffer) Destroy() {
	if b.handle == nil {
		return
	}
	vk.DestroyBuffer(b.ctx.Device, b.handle, b.ctx.Allocator)
	vk.FreeMemory(b.ctx.Device, b.memory, b.ctx.Allocator)
	b.handle = nil
	b.memory = nil
}
