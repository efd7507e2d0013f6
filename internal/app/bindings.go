package app

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"whspr/internal/config"
	"whspr/internal/hotkey"
	"whspr/internal/logging"
)

func hotkeyOptions(cfg config.Config) hotkey.Options {
	return hotkey.Options{
		Debounce:       cfg.Debounce(),
		PollInterval:   cfg.PollInterval(),
		RescanInterval: cfg.RescanInterval(),
		Watcher:        hotkey.SystemWatcher(),
		Log:            logging.For("hotkey", cfg.HOTKEY_DEBUG),
	}
}

// bindings owns the press and hold listeners.
type bindings struct {
	sink      chan<- hotkey.Event
	opts      hotkey.Options
	optsDirty bool
	log       *zap.SugaredLogger

	press *hotkey.Listener
	hold  *hotkey.Listener
}

func newBindings(sink chan<- hotkey.Event, opts hotkey.Options, log *zap.SugaredLogger) *bindings {
	return &bindings{sink: sink, opts: opts, log: log}
}

// SetOptions changes the options used for listeners started afterwards.
// The next Apply restarts every listener.
func (b *bindings) SetOptions(opts hotkey.Options) {
	if opts.Debounce != b.opts.Debounce || opts.PollInterval != b.opts.PollInterval ||
		opts.RescanInterval != b.opts.RescanInterval {
		b.optsDirty = true
	}
	b.opts = opts
}

// Apply brings both listeners in line with cfg. An empty shortcut stops
// its listener. Missing keyboards are logged and not fatal.
func (b *bindings) Apply(cfg config.Config) error {
	dirty := b.optsDirty
	b.optsDirty = false
	var errs []error
	if err := b.apply(&b.press, cfg.PressShortcut, hotkey.Press, dirty); err != nil {
		errs = append(errs, fmt.Errorf("press shortcut: %w", err))
	}
	if err := b.apply(&b.hold, cfg.HoldShortcut, hotkey.Hold, dirty); err != nil {
		errs = append(errs, fmt.Errorf("hold shortcut: %w", err))
	}
	return errors.Join(errs...)
}

func (b *bindings) apply(slot **hotkey.Listener, shortcut string, kind hotkey.Kind, restart bool) error {
	if shortcut == "" {
		if *slot != nil {
			(*slot).Stop()
			*slot = nil
		}
		return nil
	}
	keys, err := hotkey.ParseShortcut(shortcut)
	if err != nil {
		return err
	}
	if l := *slot; l != nil && !restart {
		if l.Matches(keys, kind) {
			return nil
		}
		if err := l.Restart(keys, kind, b.sink); err != nil {
			if errors.Is(err, hotkey.ErrNoKeyboards) {
				b.log.Errorw("no keyboard devices found; shortcut disabled", "shortcut", shortcut, "kind", kind)
				return nil
			}
			return err
		}
		b.log.Infow("shortcut rebound", "shortcut", keys.String(), "kind", kind)
		return nil
	}
	if *slot != nil {
		(*slot).Stop()
		*slot = nil
	}
	l, err := hotkey.Spawn(keys, kind, b.sink, b.opts)
	if errors.Is(err, hotkey.ErrNoKeyboards) {
		b.log.Errorw("no keyboard devices found; shortcut disabled", "shortcut", shortcut, "kind", kind)
		return nil
	}
	if err != nil {
		return err
	}
	*slot = l
	b.log.Infow("shortcut bound", "shortcut", keys.String(), "kind", kind)
	return nil
}

// Running reports whether at least one listener is active.
func (b *bindings) Running() bool {
	return (b.press != nil && b.press.Running()) || (b.hold != nil && b.hold.Running())
}

// Stop stops both listeners and waits for them.
func (b *bindings) Stop() {
	if b.press != nil {
		b.press.Stop()
	}
	if b.hold != nil {
		b.hold.Stop()
	}
}
