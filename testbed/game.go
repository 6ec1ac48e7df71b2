package testbed

import (
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-forward/engine"
	"github.com/spaghettifunk/anima-forward/engine/config"
	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-forward/engine/systems"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32

	meshes   []*metadata.Mesh
	rotation float32
	speed    float32
	paused   bool
}

// Entities of the testbed: a big cube with the configured texture and a
// smaller one with the default checkerboard orbiting it.
const (
	bigCube   = "test_cube"
	smallCube = "test_cube_2"
)

func NewTestGame(cfg *config.EngineConfig) (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			Config: cfg,
			State: &gameState{
				speed: 0.5,
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() error {
	core.LogDebug("initializing testbed...")
	state := g.state()
	ts := g.SystemManager.TextureSystem

	texture := ts.Default()
	if len(g.Config.Assets.Textures) > 0 {
		if id, ok := ts.Acquire(textureName(g.Config.Assets.Textures[0])); ok {
			texture = id
		}
	}

	vertices, indices := systems.GenerateCube(10.0, 10.0, 10.0, 1.0, 1.0)
	big, err := g.SystemManager.MeshSystem.Create(systems.MeshConfig{
		Name:     bigCube,
		Vertices: vertices,
		Indices:  indices,
		Texture:  texture,
	})
	if err != nil {
		return err
	}
	vertices, indices = systems.GenerateCube(2.0, 2.0, 2.0, 1.0, 1.0)
	small, err := g.SystemManager.MeshSystem.Create(systems.MeshConfig{
		Name:     smallCube,
		Vertices: vertices,
		Indices:  indices,
		Texture:  ts.Default(),
	})
	if err != nil {
		return err
	}
	state.meshes = []*metadata.Mesh{big, small}

	if err := g.Scene.AddEntity(metadata.Entity{ID: bigCube, MeshID: bigCube, Transform: mgl32.Ident4()}); err != nil {
		return err
	}
	if err := g.Scene.AddEntity(metadata.Entity{ID: smallCube, MeshID: smallCube, Transform: mgl32.Translate3D(10, 0, 1)}); err != nil {
		return err
	}
	g.Scene.Camera.SetPosition(mgl32.Vec3{0, 0, 40})

	g.Bus.Fire(core.EventContext{
		Code:   core.EVENT_CODE_MESHES_LOADED,
		Sender: g,
		Data:   state.meshes,
	})
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.state()

	if g.Input.IsKeyDown(core.KEY_SPACE) && !g.Input.WasKeyDown(core.KEY_SPACE) {
		state.paused = !state.paused
	}
	if g.Input.IsKeyDown(core.KEY_UP) {
		state.speed += float32(deltaTime)
	}
	if g.Input.IsKeyDown(core.KEY_DOWN) {
		state.speed -= float32(deltaTime)
	}
	if g.Input.IsKeyDown(core.KEY_Q) && !g.Input.WasKeyDown(core.KEY_Q) {
		g.unloadSmallCube()
	}

	if !state.paused {
		state.rotation += state.speed * float32(deltaTime)
	}
	spin := mgl32.HomogRotate3DY(state.rotation)
	g.Scene.SetTransform(bigCube, spin)
	// The small cube orbits the big one.
	g.Scene.SetTransform(smallCube, spin.Mul4(mgl32.Translate3D(10, 0, 1)).Mul4(spin))
	return nil
}

// unloadSmallCube takes the small cube out of the scene, stops the renderer
// from drawing it and frees its buffers.
func (g *TestGame) unloadSmallCube() {
	mesh, ok := g.SystemManager.MeshSystem.Get(smallCube)
	if !ok {
		return
	}
	g.Scene.RemoveMesh(smallCube)
	g.Bus.Fire(core.EventContext{
		Code:   core.EVENT_CODE_MESH_UNLOADED,
		Sender: g,
		Data:   mesh,
	})
	g.SystemManager.MeshSystem.Destroy(smallCube)
	core.LogInfo("mesh `%s` unloaded", smallCube)
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.state()
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogDebug("shutting down testbed...")
	return nil
}

// textureName strips directories and extension, the way the texture loader
// names images.
func textureName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
