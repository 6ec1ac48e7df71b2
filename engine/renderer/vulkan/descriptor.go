package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

type descriptorSetLayout struct {
	ctx    *Context
	handle vk.DescriptorSetLayout
}

func (d *Device) CreateDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  toVkDescriptorType(b.Type),
			DescriptorCount: 1,
			StageFlags:      toVkShaderStages(b.Stages),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var handle vk.DescriptorSetLayout
	if err := checkResult(vk.CreateDescriptorSetLayout(d.ctx.Device, &info, d.ctx.Allocator, &handle), "vkCreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	return &descriptorSetLayout{ctx: d.ctx, handle: handle}, nil
}

func (l *descriptorSetLayout) Destroy() {
	if l.handle != nil {
		vk.DestroyDescriptorSetLayout(l.ctx.Device, l.handle, l.ctx.Allocator)
		l.handle = nil
	}
}

type descriptorPool struct {
	ctx    *Context
	handle vk.DescriptorPool
}

// CreateDescriptorPool creates a pool whose sets can be freed one by one.
func (d *Device) CreateDescriptorPool(maxSets uint32, sizes map[driver.DescriptorType]uint32) (driver.DescriptorPool, error) {
	poolSizes := make([]vk.DescriptorPoolSize, 0, len(sizes))
	for t, n := range sizes {
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{
			Type:            toVkDescriptorType(t),
			DescriptorCount: n,
		})
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var handle vk.DescriptorPool
	if err := checkResult(vk.CreateDescriptorPool(d.ctx.Device, &info, d.ctx.Allocator, &handle), "vkCreateDescriptorPool"); err != nil {
		return nil, err
	}
	return &descriptorPool{ctx: d.ctx, handle: handle}, nil
}

func (p *descriptorPool) Allocate(layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout.(*descriptorSetLayout).handle},
	}
	var handle vk.DescriptorSet
	err := p.ctx.locks.SafeCall(descriptorManagement, func() error {
		return checkResult(vk.AllocateDescriptorSets(p.ctx.Device, &info, &handle), "vkAllocateDescriptorSets")
	})
	if err != nil {
		return nil, err
	}
	return &descriptorSet{pool: p, handle: handle}, nil
}

// Destroy frees every set allocated from the pool.
func (p *descriptorPool) Destroy() {
	if p.handle != nil {
		vk.DestroyDescriptorPool(p.ctx.Device, p.handle, p.ctx.Allocator)
		p.handle = nil
	}
}

type descriptorSet struct {
	pool   *descriptorPool
	handle vk.DescriptorSet
}

func (s *descriptorSet) WriteUniformBuffer(binding uint32, b driver.Buffer) {
	buf := b.(*buffer)
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          s.handle,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buf.handle,
			Offset: 0,
			Range:  vk.DeviceSize(buf.size),
		}},
	}
	vk.UpdateDescriptorSets(s.pool.ctx.Device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func (s *descriptorSet) WriteImageSampler(binding uint32, view driver.ImageView, smp driver.Sampler) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          s.handle,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     smp.(*sampler).handle,
			ImageView:   view.(viewHandle).viewHandle(),
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}},
	}
	vk.UpdateDescriptorSets(s.pool.ctx.Device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func (s *descriptorSet) Free() error {
	if s.handle == nil || s.pool.handle == nil {
		return nil
	}
	err := s.pool.ctx.locks.SafeCall(descriptorManagement, func() error {
		return checkResult(vk.FreeDescriptorSets(s.pool.ctx.Device, s.pool.handle, 1, &s.handle), "vkFreeDescriptorSets")
	})
	s.handle = nil
	return err
}
