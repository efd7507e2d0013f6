package inject

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"whspr/internal/config"
)

// Clipboard is the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// Keyboard sends a synthetic paste chord to the focused window.
type Keyboard interface {
	Paste(chord config.PasteChord) error
}

// Options controls how text is delivered.
type Options struct {
	Chord     config.PasteChord
	Delay     time.Duration // between clipboard write and paste
	Restore   bool          // put the previous clipboard back afterwards
	Normalize bool          // NFC and trim before pasting
	Paste     bool          // when false the text is only copied
}

// OptionsFromConfig maps config fields to Options.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	chord, err := config.ParsePasteKey(cfg.PasteKey)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Chord:     chord,
		Delay:     time.Duration(cfg.PasteDelayMs) * time.Millisecond,
		Restore:   cfg.RestoreClipboard,
		Normalize: cfg.NormalizeText,
		Paste:     cfg.Inject,
	}, nil
}

// restoreDelay gives the target application time to read the clipboard.
const restoreDelay = 120 * time.Millisecond

// Injector writes text to the clipboard and pastes it.
type Injector struct {
	clip  Clipboard
	kb    Keyboard
	opts  Options
	log   *zap.SugaredLogger
	sleep func(context.Context, time.Duration) error
}

// New returns an Injector. kb may be nil when Options.Paste is false.
func New(clip Clipboard, kb Keyboard, opts Options, log *zap.SugaredLogger) *Injector {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Injector{clip: clip, kb: kb, opts: opts, log: log, sleep: sleepCtx}
}

// Prepare returns the text that Inject would deliver.
func (i *Injector) Prepare(text string) string {
	if !i.opts.Normalize {
		return text
	}
	return strings.TrimSpace(norm.NFC.String(text))
}

// Inject delivers text to the focused application.
func (i *Injector) Inject(ctx context.Context, text string) error {
	text = i.Prepare(text)
	if text == "" {
		return nil
	}

	var orig string
	var haveOrig bool
	if i.opts.Restore && i.opts.Paste {
		if s, err := i.clip.ReadAll(); err == nil {
			orig, haveOrig = s, true
		} else {
			i.log.Debugw("clipboard read failed; not restoring", "error", err)
		}
	}

	if err := i.clip.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard write failed: %w", err)
	}
	if !i.opts.Paste {
		i.log.Debugw("copied transcript to clipboard", "chars", len(text))
		return nil
	}
	if i.kb == nil {
		return fmt.Errorf("no keyboard available for paste")
	}
	if err := i.sleep(ctx, i.opts.Delay); err != nil {
		return err
	}
	if err := i.kb.Paste(i.opts.Chord); err != nil {
		return fmt.Errorf("paste failed: %w", err)
	}
	i.log.Debugw("pasted transcript", "chars", len(text), "chord", i.opts.Chord)

	if haveOrig {
		if err := i.sleep(ctx, restoreDelay); err != nil {
			return err
		}
		if err := i.clip.WriteAll(orig); err != nil {
			i.log.Warnw("clipboard restore failed", "error", err)
		}
	}
	return nil
}

// SetOptions swaps the delivery options.
func (i *Injector) SetOptions(opts Options) { i.opts = opts }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
