package engine

import (
	"github.com/spaghettifunk/anima-forward/engine/config"
	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/scene"
	"github.com/spaghettifunk/anima-forward/engine/systems"
)

// Game is the application driven by the engine. The engine fills in the
// systems before FnInitialize is called.
type Game struct {
	Config        *config.EngineConfig
	SystemManager *systems.SystemManager
	Scene         *scene.Scene
	Input         *core.Input
	Bus           *core.EventBus
	State         interface{}
	FnInitialize  Initialize
	FnUpdate      Update
	FnOnResize    OnResize
	FnShutdown    Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
