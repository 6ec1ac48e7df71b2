package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

func TestSceneEntities(t *testing.T) {
	s := New(800, 600, DefaultPerspective())
	for _, e := range []metadata.Entity{
		{ID: "a", MeshID: "cube"},
		{ID: "b", MeshID: "cube"},
		{ID: "c", MeshID: "plane"},
	} {
		if err := s.AddEntity(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.AddEntity(metadata.Entity{ID: "a", MeshID: "plane"}); err == nil {
		t.Fatal("added a duplicate entity id")
	}

	cubes := s.EntitiesByMesh("cube")
	if len(cubes) != 2 || cubes[0].ID != "a" || cubes[1].ID != "b" {
		t.Fatalf("cubes = %v", cubes)
	}

	moved := mgl32.Translate3D(1, 2, 3)
	if !s.SetTransform("b", moved) || s.SetTransform("zzz", moved) {
		t.Fatal("SetTransform reported the wrong result")
	}
	if s.EntitiesByMesh("cube")[1].Transform != moved {
		t.Fatal("transform not stored")
	}

	if n := s.RemoveMesh("cube"); n != 2 || s.Len() != 1 {
		t.Fatalf("RemoveMesh removed %d, %d left", n, s.Len())
	}
	if !s.RemoveEntity("c") || s.RemoveEntity("c") || s.Len() != 0 {
		t.Fatal("RemoveEntity")
	}
}

func TestProjectionDepthRange(t *testing.T) {
	p := DefaultPerspective()
	s := New(800, 600, p)

	near := s.Projection().Mul4x1(mgl32.Vec4{0, 0, -p.Near, 1})
	far := s.Projection().Mul4x1(mgl32.Vec4{0, 0, -p.Far, 1})
	if d := near.Z() / near.W(); !mgl32.FloatEqualThreshold(d, 0, 1e-4) {
		t.Fatalf("near plane depth %f, want 0", d)
	}
	if d := far.Z() / far.W(); !mgl32.FloatEqualThreshold(d, 1, 1e-4) {
		t.Fatalf("far plane depth %f, want 1", d)
	}

	// The camera moves the world the other way.
	s.Camera.SetPosition(mgl32.Vec3{0, 0, 10})
	moved := s.Projection().Mul4x1(mgl32.Vec4{0, 0, 10 - p.Near, 1})
	if d := moved.Z() / moved.W(); !mgl32.FloatEqualThreshold(d, 0, 1e-4) {
		t.Fatalf("near plane depth %f after moving the camera", d)
	}
}

func TestCameraView(t *testing.T) {
	c := NewCamera()
	if c.View() != mgl32.Ident4() {
		t.Fatal("fresh camera is not at the origin")
	}
	c.SetPosition(mgl32.Vec3{1, 0, 0})
	v := c.View()
	if got := v.Mul4x1(mgl32.Vec4{1, 0, 0, 1}); !got.ApproxEqual(mgl32.Vec4{0, 0, 0, 1}) {
		t.Fatalf("camera position maps to %v", got)
	}
	if c.IsDirty {
		t.Fatal("View did not clear the dirty flag")
	}
	c.MoveForward(2)
	if !c.Position.ApproxEqual(mgl32.Vec3{1, 0, -2}) {
		t.Fatalf("moved forward to %v", c.Position)
	}
}
