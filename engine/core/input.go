package core

import "sync"

// Key code definitions, the subset the engine binds.
type KeyCode uint16

const (
	KEY_SPACE  KeyCode = 0x20
	KEY_LEFT   KeyCode = 0x25
	KEY_UP     KeyCode = 0x26
	KEY_RIGHT  KeyCode = 0x27
	KEY_DOWN   KeyCode = 0x28
	KEY_A      KeyCode = 0x41
	KEY_D      KeyCode = 0x44
	KEY_E      KeyCode = 0x45
	KEY_Q      KeyCode = 0x51
	KEY_S      KeyCode = 0x53
	KEY_W      KeyCode = 0x57
	KEY_ESCAPE KeyCode = 0x1B

	KEYS_MAX_KEYS KeyCode = 0xFF
)

type KeyEvent struct {
	KeyCode KeyCode
}

type keyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

// Input keeps the current and previous keyboard state. The window callback
// thread writes it, the game reads it during its update.
type Input struct {
	mu       sync.RWMutex
	current  keyboardState
	previous keyboardState
	bus      *EventBus
}

func NewInput(bus *EventBus) *Input {
	return &Input{bus: bus}
}

// Update copies current state to previous state.
func (in *Input) Update() {
	in.mu.Lock()
	in.previous = in.current
	in.mu.Unlock()
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.current.Keys[key]
}

func (in *Input) IsKeyUp(key KeyCode) bool {
	return !in.IsKeyDown(key)
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.previous.Keys[key]
}

// ProcessKey records a key change and posts it to the bus. Repeats of the
// same state are ignored.
func (in *Input) ProcessKey(key KeyCode, pressed bool) error {
	if key >= KEYS_MAX_KEYS {
		return nil
	}
	in.mu.Lock()
	changed := in.current.Keys[key] != pressed
	in.current.Keys[key] = pressed
	in.mu.Unlock()
	if !changed || in.bus == nil {
		return nil
	}

	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	return in.bus.Post(EventContext{
		Code: code,
		Data: &KeyEvent{KeyCode: key},
	})
}
