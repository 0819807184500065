package core

// Key code definitions. Values follow the virtual key codes so letters map
// to their upper case ASCII value.
type KeyCode uint16

const (
	KEY_UNKNOWN   KeyCode = 0x00
	KEY_BACKSPACE KeyCode = 0x08
	KEY_TAB       KeyCode = 0x09
	KEY_ENTER     KeyCode = 0x0D
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_LEFT      KeyCode = 0x25
	KEY_UP        KeyCode = 0x26
	KEY_RIGHT     KeyCode = 0x27
	KEY_DOWN      KeyCode = 0x28
	KEY_0         KeyCode = 0x30
	KEY_9         KeyCode = 0x39
	KEY_A         KeyCode = 0x41
	KEY_C         KeyCode = 0x43
	KEY_P         KeyCode = 0x50
	KEY_R         KeyCode = 0x52
	KEY_Z         KeyCode = 0x5A
	KEY_F1        KeyCode = 0x70
	KEY_F12       KeyCode = 0x7B

	KEYS_MAX_KEYS KeyCode = 0x100
)

// Keyboard state structure
type KeyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

// Input holds current and previous keyboard states. It is owned by a
// window and only touched from the thread pumping its messages.
type Input struct {
	current  KeyboardState
	previous KeyboardState
}

func NewInput() *Input {
	return &Input{}
}

// Update copies the current state into the previous one. Call once per
// frame, after every key of the frame was processed.
func (in *Input) Update() {
	in.previous = in.current
}

// ProcessKey records the key state and reports whether it changed. Codes
// outside the table are ignored.
func (in *Input) ProcessKey(key KeyCode, pressed bool) bool {
	if key == KEY_UNKNOWN || key >= KEYS_MAX_KEYS {
		return false
	}
	if in.current.Keys[key] == pressed {
		return false
	}
	in.current.Keys[key] = pressed
	return true
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && in.current.Keys[key]
}

func (in *Input) IsKeyUp(key KeyCode) bool {
	return !in.IsKeyDown(key)
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && in.previous.Keys[key]
}

// KeyPressedThisFrame is true on the first frame a key is held.
func (in *Input) KeyPressedThisFrame(key KeyCode) bool {
	return in.IsKeyDown(key) && !in.WasKeyDown(key)
}
