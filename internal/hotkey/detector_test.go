package hotkey

import (
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func countStarts(t *testing.T, d *Detector, order []KeyCode, at time.Time) int {
	t.Helper()
	n := 0
	for _, c := range order {
		if ev, ok := d.KeyDown(c, at); ok {
			if ev.Phase != Start {
				t.Fatalf("expected Start, got %v", ev.Phase)
			}
			n++
		}
	}
	return n
}

func releaseAll(d *Detector, keys []KeyCode, at time.Time) {
	for _, c := range keys {
		d.KeyUp(c, at)
	}
}

func TestDetectorOrderIndependent(t *testing.T) {
	target := NewKeySet(KeyLeftCtrl, KeyLeftShift, KeyV)
	forward := []KeyCode{KeyLeftCtrl, KeyLeftShift, KeyV}
	reverse := []KeyCode{KeyV, KeyLeftShift, KeyLeftCtrl}

	d := NewDetector(target, Press, DefaultDebounce)
	if n := countStarts(t, d, forward, t0); n != 1 {
		t.Fatalf("forward order: expected 1 start, got %d", n)
	}
	releaseAll(d, forward, t0)

	if n := countStarts(t, d, reverse, t0.Add(time.Second)); n != 1 {
		t.Fatalf("reverse order: expected 1 start, got %d", n)
	}
}

func TestDetectorPressDebounce(t *testing.T) {
	target := NewKeySet(KeyLeftCtrl, KeyV)
	keys := []KeyCode{KeyLeftCtrl, KeyV}
	d := NewDetector(target, Press, DefaultDebounce)

	if n := countStarts(t, d, keys, t0); n != 1 {
		t.Fatalf("expected first press to trigger, got %d", n)
	}
	releaseAll(d, keys, t0.Add(100*time.Millisecond))
	if n := countStarts(t, d, keys, t0.Add(400*time.Millisecond)); n != 0 {
		t.Fatalf("expected second press within 500ms to be debounced, got %d", n)
	}
	releaseAll(d, keys, t0.Add(450*time.Millisecond))
	// Exactly 500ms is still inside the window.
	if n := countStarts(t, d, keys, t0.Add(500*time.Millisecond)); n != 0 {
		t.Fatalf("expected press at exactly 500ms to be debounced, got %d", n)
	}
	releaseAll(d, keys, t0.Add(501*time.Millisecond))
	if n := countStarts(t, d, keys, t0.Add(601*time.Millisecond)); n != 1 {
		t.Fatalf("expected press after window to trigger, got %d", n)
	}
}

func TestDetectorPressEmitsNothingOnRelease(t *testing.T) {
	d := NewDetector(NewKeySet(KeyLeftAlt, KeyR), Press, DefaultDebounce)
	countStarts(t, d, []KeyCode{KeyLeftAlt, KeyR}, t0)
	if _, ok := d.KeyUp(KeyR, t0); ok {
		t.Fatalf("press binding must not emit on release")
	}
	if d.Active() {
		t.Fatalf("expected combination to be inactive after release")
	}
}

func TestDetectorHoldRelease(t *testing.T) {
	d := NewDetector(NewKeySet(KeyLeftCtrl, KeySpace), Hold, DefaultDebounce)
	if n := countStarts(t, d, []KeyCode{KeyLeftShift, KeyLeftCtrl, KeySpace}, t0); n != 1 {
		t.Fatalf("expected 1 start, got %d", n)
	}
	if _, ok := d.KeyUp(KeyLeftShift, t0); ok {
		t.Fatalf("releasing a non-target key must not end the hold")
	}
	ev, ok := d.KeyUp(KeySpace, t0.Add(time.Second))
	if !ok || ev.Phase != End || ev.Kind != Hold {
		t.Fatalf("expected Hold End, got %+v (ok=%v)", ev, ok)
	}
	if _, ok := d.KeyUp(KeyLeftCtrl, t0.Add(time.Second)); ok {
		t.Fatalf("expected exactly one End event")
	}
}

func TestDetectorHoldHasNoDebounce(t *testing.T) {
	keys := []KeyCode{KeyLeftCtrl, KeySpace}
	d := NewDetector(NewKeySet(keys...), Hold, DefaultDebounce)
	for i := 0; i < 3; i++ {
		at := t0.Add(time.Duration(i) * 10 * time.Millisecond)
		if n := countStarts(t, d, keys, at); n != 1 {
			t.Fatalf("iteration %d: expected 1 start, got %d", i, n)
		}
		releaseAll(d, keys, at)
	}
}

func TestDetectorRepeatDoesNotRetrigger(t *testing.T) {
	d := NewDetector(NewKeySet(KeyLeftCtrl, KeyV), Hold, 0)
	countStarts(t, d, []KeyCode{KeyLeftCtrl, KeyV}, t0)
	if _, ok := d.KeyDown(KeyV, t0.Add(time.Second)); ok {
		t.Fatalf("an already active combination must not fire again")
	}
}

func TestDetectorReset(t *testing.T) {
	d := NewDetector(NewKeySet(KeyLeftCtrl, KeyV), Hold, 0)
	countStarts(t, d, []KeyCode{KeyLeftCtrl, KeyV}, t0)
	d.Reset()
	if d.Active() {
		t.Fatalf("expected reset to clear active state")
	}
	if _, ok := d.KeyDown(KeyV, t0); ok {
		t.Fatalf("stale pressed keys should have been forgotten")
	}
}
