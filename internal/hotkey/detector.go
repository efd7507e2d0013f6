package hotkey

import "time"

// Kind selects toggle or press-and-hold behaviour for a binding.
type Kind int

const (
	Press Kind = iota
	Hold
)

func (k Kind) String() string {
	if k == Hold {
		return "hold"
	}
	return "press"
}

// Phase marks the start or end of an activation. Press bindings only emit Start.
type Phase int

const (
	Start Phase = iota
	End
)

func (p Phase) String() string {
	if p == End {
		return "end"
	}
	return "start"
}

// Event is emitted when a binding activates or, for Hold, releases.
type Event struct {
	TriggeredAt time.Time
	Kind        Kind
	Phase       Phase
}

// DefaultDebounce is the minimum gap between two Press activations.
const DefaultDebounce = 500 * time.Millisecond

// Detector tracks pressed keys and decides when a binding fires.
// It is not safe for concurrent use; the polling loop owns it.
type Detector struct {
	target   KeySet
	kind     Kind
	debounce time.Duration

	pressed     KeySet
	active      bool
	lastTrigger time.Time
}

// NewDetector returns a detector for target. A negative debounce selects DefaultDebounce.
func NewDetector(target KeySet, kind Kind, debounce time.Duration) *Detector {
	if debounce < 0 {
		debounce = DefaultDebounce
	}
	return &Detector{
		target:   target,
		kind:     kind,
		debounce: debounce,
		pressed:  make(KeySet),
	}
}

// Active reports whether the combination is currently held.
func (d *Detector) Active() bool { return d.active }

// KeyDown records a press and returns an event if the binding fires.
func (d *Detector) KeyDown(code KeyCode, now time.Time) (Event, bool) {
	d.pressed[code] = struct{}{}
	if d.active || !d.target.SubsetOf(d.pressed) {
		return Event{}, false
	}
	if d.kind == Press && !d.lastTrigger.IsZero() && now.Sub(d.lastTrigger) <= d.debounce {
		return Event{}, false
	}
	d.active = true
	d.lastTrigger = now
	return Event{TriggeredAt: now, Kind: d.kind, Phase: Start}, true
}

// KeyUp records a release and returns an End event when a Hold binding breaks.
func (d *Detector) KeyUp(code KeyCode, now time.Time) (Event, bool) {
	delete(d.pressed, code)
	if !d.active || d.target.SubsetOf(d.pressed) {
		return Event{}, false
	}
	d.active = false
	if d.kind != Hold {
		return Event{}, false
	}
	return Event{TriggeredAt: now, Kind: Hold, Phase: End}, true
}

// Reset forgets all pressed keys. Used after the device set changes.
// An active combination is dropped without emitting End; the debounce
// timestamp survives.
func (d *Detector) Reset() {
	d.pressed = make(KeySet)
	d.active = false
}
