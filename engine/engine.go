package engine

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/config"
	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/platform"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
	"github.com/spaghettifunk/anima-forward/engine/renderer/forward"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-forward/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima-forward/engine/scene"
	"github.com/spaghettifunk/anima-forward/engine/systems"
)

const eventQueueCapacity = 256

type Engine struct {
	currentStage Stage
	gameInstance *Game
	cfg          *config.EngineConfig
	isRunning    bool
	isSuspended  bool
	width        uint32
	height       uint32

	bus      *core.EventBus
	input    *core.Input
	platform *platform.Platform
	clock    *core.Clock
	metrics  *core.Metrics
	lastTime time.Duration

	vkContext     *vulkan.Context
	device        *vulkan.Device
	queue         *vulkan.Queue
	swapchain     *vulkan.Swapchain
	uploadPool    driver.CommandPool
	systemManager *systems.SystemManager
	scene         *scene.Scene
	renderer      *forward.Renderer
}

func New(g *Game) (*Engine, error) {
	if g.Config == nil {
		g.Config = config.Default()
	}
	if err := g.Config.Validate(); err != nil {
		return nil, err
	}
	core.LogConfigure(g.Config.Log.Level)

	bus := core.NewEventBus(eventQueueCapacity)
	input := core.NewInput(bus)
	p, err := platform.New(bus, input)
	if err != nil {
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		cfg:          g.Config,
		bus:          bus,
		input:        input,
		platform:     p,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		isRunning:    true,
		isSuspended:  false,
		width:        g.Config.Application.StartWidth,
		height:       g.Config.Application.StartHeight,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageBooting
	app := e.cfg.Application

	// register some events
	e.bus.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.bus.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.bus.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	if err := e.platform.Startup(app.Name, app.StartPosX, app.StartPosY, app.StartWidth, app.StartHeight); err != nil {
		return err
	}
	e.width, e.height = e.platform.FramebufferSize()

	if err := e.createBackend(); err != nil {
		return err
	}
	e.currentStage = EngineStageBootComplete

	e.currentStage = EngineStageInitializing
	sm, err := systems.NewSystemManager(e.device, forward.NewTextureUploader(e.device, e.queue, e.uploadPool, e.cfg.Renderer.FenceTimeout.Duration), e.cfg.Renderer.MaxTextures)
	if err != nil {
		return err
	}
	e.systemManager = sm
	if err := sm.Initialize(e.cfg.Assets.Dir); err != nil {
		return err
	}

	extent := e.swapchain.Extent()
	e.scene = scene.New(extent.Width, extent.Height, scene.DefaultPerspective())

	e.renderer, err = forward.New(e.device, e.queue, e.swapchain, sm.TextureSystem, e.scene, e.cfg.Forward())
	if err != nil {
		return err
	}
	e.renderer.RegisterEvents(e.bus)
	e.bus.Register(core.EVENT_CODE_TEXTURE_RELOADED, e, e.onTextureReloaded)

	if err := e.loadTextures(); err != nil {
		return err
	}
	if e.cfg.Assets.Watch {
		sm.WatchTextures(e.bus)
	}

	g := e.gameInstance
	g.SystemManager = sm
	g.Scene = e.scene
	g.Input = e.input
	g.Bus = e.bus
	if err := g.FnInitialize(); err != nil {
		return err
	}
	if err := g.FnOnResize(extent.Width, extent.Height); err != nil {
		return err
	}
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) createBackend() error {
	var err error
	e.vkContext, err = vulkan.NewContext(e.platform.VulkanConfig(e.cfg.Application.Name, e.cfg.Renderer.Validation))
	if err != nil {
		return err
	}
	if !e.vkContext.SupportsDepthFormat(driver.FormatD32Sfloat) {
		return errors.Mark(errors.New("device has no D32 depth attachment support"), core.ErrDeviceFailure)
	}
	e.device = vulkan.NewDevice(e.vkContext)
	e.queue = e.device.Queue()
	e.swapchain, err = vulkan.NewSwapchain(e.device, e.width, e.height)
	if err != nil {
		return err
	}
	// Single-use upload commands get their own pool, frames record from the
	// renderer's.
	e.uploadPool, err = e.device.CreateCommandPool()
	return err
}

// loadTextures decodes the configured textures in parallel and hands them
// to the texture system, either uploading right away or inside the first
// frame.
func (e *Engine) loadTextures() error {
	if len(e.cfg.Assets.Textures) == 0 {
		return nil
	}
	paths := make([]string, len(e.cfg.Assets.Textures))
	for i, t := range e.cfg.Assets.Textures {
		paths[i] = filepath.Join(e.cfg.Assets.Dir, t)
	}
	images, err := e.systemManager.AssetManager.LoadTextures(context.Background(), paths, &metadata.ImageResourceParams{FlipY: true})
	if err != nil {
		return err
	}
	ts := e.systemManager.TextureSystem
	for _, img := range images {
		if !e.cfg.Renderer.UploadInFrame {
			if _, err := ts.Load(img); err != nil {
				return err
			}
			continue
		}
		_, t, err := ts.Stage(img)
		if err != nil {
			return err
		}
		if err := e.renderer.QueueTextureUpload(t); err != nil {
			return err
		}
	}
	core.LogInfo("%d textures loaded", len(images))
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		e.platform.PumpMessages()
		e.bus.Dispatch()
		if !e.isRunning {
			break
		}
		if e.isSuspended {
			e.platform.WaitWhileMinimized()
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := (currentTime - e.lastTime).Seconds()

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("Game update failed, shutting down: %v", err)
			return err
		}
		if err := e.drawFrame(); err != nil {
			core.LogError("Frame failed, shutting down: %v", err)
			return err
		}

		e.clock.Update()
		e.metrics.Update((e.clock.Elapsed() - currentTime).Seconds(), uint32(e.renderer.Stats().DrawCalls))

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		e.input.Update()
		e.lastTime = currentTime
	}
	return nil
}

// drawFrame acquires the next image, records and submits it, and presents
// it. An out of date swapchain is rebuilt and the frame skipped.
func (e *Engine) drawFrame() error {
	if err := e.swapchain.AcquireNextImage(); err != nil {
		if errors.Is(err, core.ErrSwapchainBooting) {
			return e.recreateSwapchain()
		}
		return err
	}
	if err := e.renderer.RecordAndSubmit(e.scene); err != nil {
		return err
	}
	if err := e.swapchain.Present(e.queue); err != nil {
		if errors.Is(err, core.ErrSwapchainBooting) {
			return e.recreateSwapchain()
		}
		return err
	}
	return nil
}

func (e *Engine) recreateSwapchain() error {
	width, height := e.platform.FramebufferSize()
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return nil
	}
	if err := e.device.WaitIdle(); err != nil {
		return err
	}
	if err := e.swapchain.Recreate(width, height); err != nil {
		if errors.Is(err, core.ErrSwapchainBooting) {
			return nil
		}
		return err
	}
	extent := e.swapchain.Extent()
	e.width, e.height = extent.Width, extent.Height
	e.scene.Resize(extent.Width, extent.Height)
	if err := e.renderer.OnResize(extent); err != nil {
		return err
	}
	return e.gameInstance.FnOnResize(extent.Width, extent.Height)
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	if e.device != nil {
		if err := e.device.WaitIdle(); err != nil {
			core.LogError("wait idle on shutdown: %v", err)
		}
	}
	if e.renderer != nil {
		e.renderer.Cleanup()
	}
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("game shutdown: %v", err)
		}
	}
	if e.systemManager != nil {
		if err := e.systemManager.Shutdown(); err != nil {
			return err
		}
	}
	if e.uploadPool != nil {
		e.uploadPool.Destroy()
	}
	if e.swapchain != nil {
		e.swapchain.Destroy()
	}
	if e.vkContext != nil {
		e.vkContext.Destroy()
	}
	if err := e.platform.Shutdown(); err != nil {
		return err
	}
	core.LogInfo("shutdown complete after %.1fs, %.1f fps", e.clock.Elapsed().Seconds(), e.metrics.FPS())
	return nil
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

// Bus returns the event bus. Post is safe from any goroutine.
func (e *Engine) Bus() *core.EventBus {
	return e.bus
}

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT recieved, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Code)
		return false
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.bus.Fire(core.EventContext{
			Code:   core.EVENT_CODE_APPLICATION_QUIT,
			Sender: e,
		})
		// Block anything else from processing this.
		return true
	}
	return false
}

// onResized rebuilds the swapchain and then the renderer against it, so the
// event does not travel on to the renderer's own listener.
func (e *Engine) onResized(context core.EventContext) bool {
	re, ok := context.Data.(*core.ResizeEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Code)
		return false
	}
	if re.Width == e.width && re.Height == e.height && !e.isSuspended {
		return true
	}
	core.LogDebug("Window resize: %d, %d", re.Width, re.Height)

	// Handle minimization
	if re.Width == 0 || re.Height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if err := e.recreateSwapchain(); err != nil {
		core.LogError("resize failed: %v", err)
		e.isRunning = false
	}
	return true
}

func (e *Engine) onTextureReloaded(context core.EventContext) bool {
	data, ok := context.Data.(*metadata.ImageResourceData)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Code)
		return false
	}
	if err := e.systemManager.ReloadTexture(data, e.renderer); err != nil {
		core.LogError("%v", err)
	}
	return true
}
