// Package scene is a flat list of entities with a perspective camera. It
// is the smallest thing the forward renderer can draw.
package scene

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

// Maps OpenGL clip depth [-1,1] onto the [0,1] range Vulkan uses.
var clipCorrection = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

type Perspective struct {
	FOV  float32 // degrees
	Near float32
	Far  float32
}

func DefaultPerspective() Perspective {
	return Perspective{FOV: 60, Near: 0.01, Far: 100}
}

type Scene struct {
	Camera *Camera

	perspective Perspective
	width       uint32
	height      uint32
	entities    []metadata.Entity
}

func New(width, height uint32, perspective Perspective) *Scene {
	return &Scene{
		Camera:      NewCamera(),
		perspective: perspective,
		width:       width,
		height:      height,
	}
}

func (s *Scene) Resize(width, height uint32) {
	s.width, s.height = width, height
}

// Projection is perspective times camera view, with zero-to-one depth.
func (s *Scene) Projection() mgl32.Mat4 {
	aspect := float32(1)
	if s.height != 0 {
		aspect = float32(s.width) / float32(s.height)
	}
	p := mgl32.Perspective(mgl32.DegToRad(s.perspective.FOV), aspect, s.perspective.Near, s.perspective.Far)
	return clipCorrection.Mul4(p).Mul4(s.Camera.View())
}

func (s *Scene) AddEntity(e metadata.Entity) error {
	for _, existing := range s.entities {
		if existing.ID == e.ID {
			return errors.Newf("entity `%s` already in scene", e.ID)
		}
	}
	s.entities = append(s.entities, e)
	return nil
}

func (s *Scene) RemoveEntity(id string) bool {
	for i, e := range s.entities {
		if e.ID == id {
			s.entities = append(s.entities[:i], s.entities[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveMesh drops every entity drawn with the mesh.
func (s *Scene) RemoveMesh(meshID string) int {
	kept := s.entities[:0]
	for _, e := range s.entities {
		if e.MeshID != meshID {
			kept = append(kept, e)
		}
	}
	n := len(s.entities) - len(kept)
	s.entities = kept
	return n
}

func (s *Scene) SetTransform(id string, transform mgl32.Mat4) bool {
	for i := range s.entities {
		if s.entities[i].ID == id {
			s.entities[i].Transform = transform
			return true
		}
	}
	return false
}

// EntitiesByMesh returns the entities of the mesh in insertion order.
func (s *Scene) EntitiesByMesh(meshID string) []metadata.Entity {
	var out []metadata.Entity
	for _, e := range s.entities {
		if e.MeshID == meshID {
			out = append(out, e)
		}
	}
	return out
}

func (s *Scene) Len() int {
	return len(s.entities)
}
