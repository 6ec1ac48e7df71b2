package forward

import (
	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

type layoutPair struct {
	from driver.ImageLayout
	to   driver.ImageLayout
}

type transition struct {
	srcAccess driver.AccessFlags
	dstAccess driver.AccessFlags
	srcStage  driver.PipelineStage
	dstStage  driver.PipelineStage
}

// Every layout change a texture goes through. Anything else is a bug.
var transitions = map[layoutPair]transition{
	{driver.LayoutUndefined, driver.LayoutTransferDst}: {
		srcAccess: driver.AccessNone,
		dstAccess: driver.AccessTransferWrite,
		srcStage:  driver.StageTopOfPipe,
		dstStage:  driver.StageTransfer,
	},
	{driver.LayoutTransferDst, driver.LayoutShaderReadOnly}: {
		srcAccess: driver.AccessTransferWrite,
		dstAccess: driver.AccessShaderRead,
		srcStage:  driver.StageTransfer,
		dstStage:  driver.StageFragmentShader,
	},
}

func lookupTransition(from, to driver.ImageLayout) (transition, error) {
	t, ok := transitions[layoutPair{from, to}]
	if !ok {
		return transition{}, core.AssertionFailed(core.ErrUnsupportedTransition, "%s -> %s", from, to)
	}
	return t, nil
}

func recordTransition(cmd driver.CommandBuffer, image driver.Image, mipLevels uint32, from, to driver.ImageLayout) error {
	t, err := lookupTransition(from, to)
	if err != nil {
		return err
	}
	cmd.PipelineBarrier(t.srcStage, t.dstStage, []driver.ImageBarrier{{
		Image:     image,
		OldLayout: from,
		NewLayout: to,
		SrcAccess: t.srcAccess,
		DstAccess: t.dstAccess,
		Aspect:    driver.AspectColor,
		MipLevels: mipLevels,
	}})
	return nil
}
