package drivertest

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

type Op int

const (
	OpBeginRenderPass Op = iota
	OpEndRenderPass
	OpBindPipeline
	OpSetViewport
	OpSetScissor
	OpBindVertexBuffer
	OpBindIndexBuffer
	OpBindDescriptorSets
	OpPushConstants
	OpDrawIndexed
	OpPipelineBarrier
	OpCopyBufferToImage
)

func (o Op) String() string {
	return [...]string{
		"BeginRenderPass", "EndRenderPass", "BindPipeline", "SetViewport", "SetScissor",
		"BindVertexBuffer", "BindIndexBuffer", "BindDescriptorSets", "PushConstants",
		"DrawIndexed", "PipelineBarrier", "CopyBufferToImage",
	}[o]
}

// Command is one recorded call; only the fields relevant to Op are set.
type Command struct {
	Op         Op
	Begin      driver.RenderPassBegin
	Pipeline   driver.Pipeline
	Viewport   driver.Viewport
	Scissor    driver.Rect2D
	Buffer     driver.Buffer
	FirstSet   uint32
	Sets       []driver.DescriptorSet
	Stages     driver.ShaderStage
	Offset     uint32
	Data       []byte
	IndexCount uint32
	SrcStage   driver.PipelineStage
	DstStage   driver.PipelineStage
	Barriers   []driver.ImageBarrier
	Image      driver.Image
	Region     driver.BufferImageCopy
}

type cbState int

const (
	cbInitial cbState = iota
	cbRecording
	cbExecutable
)

type CommandBuffer struct {
	resource
	state        cbState
	oneTime      bool
	inRenderPass bool
	commands     []Command
	misuse       error
	pending      atomic.Bool
}

func (c *CommandBuffer) Begin(oneTimeSubmit bool) error {
	if c.state == cbRecording {
		return errors.Wrap(ErrInvalidUsage, "begin while recording")
	}
	if c.pending.Load() {
		return errors.Wrap(ErrInvalidUsage, "begin while pending on the queue")
	}
	c.state = cbRecording
	c.oneTime = oneTimeSubmit
	c.commands = c.commands[:0]
	c.misuse = nil
	return nil
}

func (c *CommandBuffer) End() error {
	if c.state != cbRecording {
		return errors.Wrap(ErrInvalidUsage, "end without begin")
	}
	if c.inRenderPass {
		return errors.Wrap(ErrInvalidUsage, "end inside a render pass")
	}
	if c.misuse != nil {
		return c.misuse
	}
	c.state = cbExecutable
	return nil
}

func (c *CommandBuffer) Reset() error {
	if c.pending.Load() {
		return errors.Wrap(ErrInvalidUsage, "reset while pending on the queue")
	}
	c.state = cbInitial
	c.commands = nil
	c.inRenderPass = false
	c.misuse = nil
	return nil
}

func (c *CommandBuffer) Free() {
	c.resource.Destroy()
}

// Commands returns what was recorded since the last Begin.
func (c *CommandBuffer) Commands() []Command {
	return append([]Command(nil), c.commands...)
}

func (c *CommandBuffer) record(cmd Command) {
	if c.state != cbRecording && c.misuse == nil {
		c.misuse = errors.Wrapf(ErrInvalidUsage, "%s outside recording", cmd.Op)
	}
	c.commands = append(c.commands, cmd)
}

func (c *CommandBuffer) BeginRenderPass(info driver.RenderPassBegin) {
	if c.inRenderPass && c.misuse == nil {
		c.misuse = errors.Wrap(ErrInvalidUsage, "nested render pass")
	}
	c.inRenderPass = true
	c.record(Command{Op: OpBeginRenderPass, Begin: info})
}

func (c *CommandBuffer) EndRenderPass() {
	c.inRenderPass = false
	c.record(Command{Op: OpEndRenderPass})
}

func (c *CommandBuffer) BindPipeline(p driver.Pipeline) {
	c.record(Command{Op: OpBindPipeline, Pipeline: p})
}

func (c *CommandBuffer) SetViewport(v driver.Viewport) {
	c.record(Command{Op: OpSetViewport, Viewport: v})
}

func (c *CommandBuffer) SetScissor(r driver.Rect2D) {
	c.record(Command{Op: OpSetScissor, Scissor: r})
}

func (c *CommandBuffer) BindVertexBuffer(b driver.Buffer) {
	c.record(Command{Op: OpBindVertexBuffer, Buffer: b})
}

func (c *CommandBuffer) BindIndexBuffer(b driver.Buffer) {
	c.record(Command{Op: OpBindIndexBuffer, Buffer: b})
}

func (c *CommandBuffer) BindDescriptorSets(p driver.Pipeline, firstSet uint32, sets []driver.DescriptorSet) {
	c.record(Command{Op: OpBindDescriptorSets, Pipeline: p, FirstSet: firstSet, Sets: append([]driver.DescriptorSet(nil), sets...)})
}

func (c *CommandBuffer) PushConstants(p driver.Pipeline, stages driver.ShaderStage, offset uint32, data []byte) {
	c.record(Command{Op: OpPushConstants, Pipeline: p, Stages: stages, Offset: offset, Data: append([]byte(nil), data...)})
}

func (c *CommandBuffer) DrawIndexed(indexCount uint32) {
	if !c.inRenderPass && c.misuse == nil {
		c.misuse = errors.Wrap(ErrInvalidUsage, "draw outside a render pass")
	}
	c.record(Command{Op: OpDrawIndexed, IndexCount: indexCount})
}

func (c *CommandBuffer) PipelineBarrier(src, dst driver.PipelineStage, barriers []driver.ImageBarrier) {
	c.record(Command{Op: OpPipelineBarrier, SrcStage: src, DstStage: dst, Barriers: append([]driver.ImageBarrier(nil), barriers...)})
}

func (c *CommandBuffer) CopyBufferToImage(src driver.Buffer, dst driver.Image, region driver.BufferImageCopy) {
	if c.inRenderPass && c.misuse == nil {
		c.misuse = errors.Wrap(ErrInvalidUsage, "copy inside a render pass")
	}
	c.record(Command{Op: OpCopyBufferToImage, Buffer: src, Image: dst, Region: region})
}

// Filter returns the commands with the given op, in recording order.
func Filter(cmds []Command, op Op) []Command {
	var out []Command
	for _, c := range cmds {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}
