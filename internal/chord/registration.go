package chord

// ID identifies a registration. Issued ids start at 1 and are never reused.
type ID int64

// InvalidID is returned by Add when the registration was rejected.
const InvalidID ID = 0

// Registration is the record kept for one successful Add.
type Registration struct {
	id       ID
	state    *KeyState
	callback func()

	// wasFullyHeld latches after the callback fires and is cleared by any release,
	// turning the level "all keys held" into a single edge.
	wasFullyHeld bool
}

func newRegistration(id ID, keys []string, cb func()) *Registration {
	return &Registration{
		id:       id,
		state:    newKeyState(keys),
		callback: cb,
	}
}

// ID returns the registration id.
func (r *Registration) ID() ID { return r.id }

// Keys returns the keys the chord requires.
func (r *Registration) Keys() []string { return r.state.Keys() }

// State returns the registration's key state.
func (r *Registration) State() *KeyState { return r.state }

// Active reports whether the chord is currently fully held and has fired.
func (r *Registration) Active() bool { return r.wasFullyHeld }

// press marks key down and reports whether this press completed the chord.
func (r *Registration) press(key string) bool {
	if !r.state.set(key, true) {
		return false
	}
	if r.wasFullyHeld || !r.state.AllHeld() {
		return false
	}
	r.wasFullyHeld = true
	return true
}

// release marks key up and re-arms the chord.
func (r *Registration) release(key string) bool {
	if !r.state.set(key, false) {
		return false
	}
	r.wasFullyHeld = false
	return true
}

func (r *Registration) reset() {
	r.state.reset()
	r.wasFullyHeld = false
}
