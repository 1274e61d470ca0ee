package chord

// KeyState tracks which of a chord's required keys are currently held.
// The held map always covers exactly the required keys.
type KeyState struct {
	required []string
	held     map[string]bool
}

func newKeyState(keys []string) *KeyState {
	ks := &KeyState{
		required: make([]string, 0, len(keys)),
		held:     make(map[string]bool, len(keys)),
	}
	for _, k := range keys {
		if _, dup := ks.held[k]; dup {
			continue
		}
		ks.required = append(ks.required, k)
		ks.held[k] = false
	}
	return ks
}

// Has reports whether key is part of the chord.
func (ks *KeyState) Has(key string) bool {
	_, ok := ks.held[key]
	return ok
}

// Keys returns the required keys in first-seen order.
func (ks *KeyState) Keys() []string {
	out := make([]string, len(ks.required))
	copy(out, ks.required)
	return out
}

// AllHeld reports whether every required key is down.
func (ks *KeyState) AllHeld() bool {
	for _, down := range ks.held {
		if !down {
			return false
		}
	}
	return true
}

// set records the state of key. Keys outside the chord are ignored.
func (ks *KeyState) set(key string, down bool) bool {
	if !ks.Has(key) {
		return false
	}
	ks.held[key] = down
	return true
}

func (ks *KeyState) reset() {
	for k := range ks.held {
		ks.held[k] = false
	}
}
