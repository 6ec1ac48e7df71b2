package platform

import (
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/vulkan"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

var keyMap = map[glfw.Key]core.KeyCode{
	glfw.KeySpace:  core.KEY_SPACE,
	glfw.KeyLeft:   core.KEY_LEFT,
	glfw.KeyUp:     core.KEY_UP,
	glfw.KeyRight:  core.KEY_RIGHT,
	glfw.KeyDown:   core.KEY_DOWN,
	glfw.KeyA:      core.KEY_A,
	glfw.KeyD:      core.KEY_D,
	glfw.KeyE:      core.KEY_E,
	glfw.KeyQ:      core.KEY_Q,
	glfw.KeyS:      core.KEY_S,
	glfw.KeyW:      core.KEY_W,
	glfw.KeyEscape: core.KEY_ESCAPE,
}

// Platform owns the window. Callbacks never touch the renderer; they post
// to the bus and the render thread picks the events up on Dispatch.
type Platform struct {
	Window *glfw.Window
	bus    *core.EventBus
	input  *core.Input
}

func New(bus *core.EventBus, input *core.Input) (*Platform, error) {
	if bus == nil {
		return nil, errors.New("platform requires an event bus")
	}
	return &Platform{
		bus:   bus,
		input: input,
	}, nil
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return errors.Wrap(err, "failed to initialize glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("vulkan is not supported by the window system")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return errors.Wrap(err, "failed to create window")
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	return nil
}

// VulkanConfig returns the window system pieces the vulkan context needs.
func (p *Platform) VulkanConfig(applicationName string, validation bool) vulkan.ContextConfig {
	return vulkan.ContextConfig{
		ApplicationName: applicationName,
		ProcAddr:        glfw.GetVulkanGetInstanceProcAddress(),
		Extensions:      p.Window.GetRequiredInstanceExtensions(),
		CreateSurface: func(instance vk.Instance) (uintptr, error) {
			return p.Window.CreateWindowSurface(instance, nil)
		},
		Validation: validation,
	}
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

// WaitWhileMinimized blocks on window events until the framebuffer has a
// size again.
func (p *Platform) WaitWhileMinimized() {
	for w, h := p.Window.GetFramebufferSize(); (w == 0 || h == 0) && !p.Window.ShouldClose(); w, h = p.Window.GetFramebufferSize() {
		glfw.WaitEvents()
	}
}

func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	code, ok := keyMap[key]
	if !ok || p.input == nil || action == glfw.Repeat {
		return
	}
	if err := p.input.ProcessKey(code, action == glfw.Press); err != nil {
		core.LogWarn("dropped key event: %s", err)
	}
}

func (p *Platform) closeCallback(w *glfw.Window) {
	if err := p.bus.Post(core.EventContext{Code: core.EVENT_CODE_APPLICATION_QUIT}); err != nil {
		core.LogWarn("dropped quit event: %s", err)
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	err := p.bus.Post(core.EventContext{
		Code: core.EVENT_CODE_RESIZED,
		Data: &core.ResizeEvent{Width: uint32(width), Height: uint32(height)},
	})
	if err != nil {
		core.LogWarn("dropped resize event: %s", err)
	}
}
