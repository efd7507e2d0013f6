package status

import (
	"github.com/gen2brain/beeep"
)

// Notifier shows desktop notifications for state changes and failures.
type Notifier struct {
	States bool // recording started/finished
	Errors bool // failed transcriptions

	notify func(title, message string) error
}

func NewNotifier(states, errors bool) *Notifier {
	return &Notifier{States: states, Errors: errors, notify: func(title, message string) error {
		return beeep.Notify(title, message, "")
	}}
}

// Publish shows the notification in the background; failures are dropped.
func (n *Notifier) Publish(ev Event) error {
	if ev.Kind != KindState {
		return nil
	}
	var msg string
	switch {
	case ev.State == Active && n.States:
		msg = "Recording started"
	case ev.State == Processing && n.States:
		msg = "Recording finished"
	case ev.State == Error && n.Errors:
		msg = ev.Tooltip
	default:
		return nil
	}
	notify := n.notify
	go func() { _ = notify("whspr", msg) }()
	return nil
}
