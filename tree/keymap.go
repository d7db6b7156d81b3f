package tree

// The keymap compiler is an external collaborator; the tree only
// consumes the compiled state machine.

// KeymapCompiler builds keymaps from their textual description.
type KeymapCompiler interface {
	// Compile parses a keymap. The returned keymap is immutable.
	Compile(keymap string) (Keymap, error)
}

// Keymap is a compiled keymap.
type Keymap interface {
	// NewState creates an independent modifier-tracking state machine.
	NewState() KeymapState
}

// KeymapState tracks modifier and layout state across key events.
type KeymapState interface {
	// Update feeds one key transition.
	Update(key uint32, down bool)

	// SerializeMods returns the effective modifier mask.
	SerializeMods() uint32

	// SerializeLayout returns the active layout index.
	SerializeLayout() uint32
}
