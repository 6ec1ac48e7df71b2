//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/target"
)

type Build mg.Namespace

var shaders = []struct {
	src string
	out string
}{
	{"assets/shaders/fwd_vertex.vert", "assets/shaders/fwd_vertex.spv"},
	{"assets/shaders/fwd_fragment.frag", "assets/shaders/fwd_fragment.spv"},
}

// Compiles the forward pass GLSL shaders to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

func buildShaders() error {
	for _, s := range shaders {
		stale, err := target.Path(s.out, s.src)
		if err != nil {
			return err
		}
		if !stale {
			continue
		}
		if _, err := executeCmd("glslc", withArgs(s.src, "-o", s.out), withStream()); err != nil {
			return err
		}
	}
	return nil
}
