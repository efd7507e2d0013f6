package inject

import (
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"

	"whspr/internal/config"
)

// SystemClipboard uses the desktop clipboard tools (wl-copy, xclip, xsel).
type SystemClipboard struct{}

func (SystemClipboard) ReadAll() (string, error) {
	if clipboard.Unsupported {
		return "", fmt.Errorf("no clipboard utility found")
	}
	return clipboard.ReadAll()
}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("no clipboard utility found")
	}
	return clipboard.WriteAll(text)
}

// uinputWarmup is how long a fresh uinput device needs before the
// compositor accepts its events.
const uinputWarmup = 2 * time.Second

// SystemKeyboard sends key chords through a virtual uinput keyboard.
type SystemKeyboard struct {
	mu      sync.Mutex
	kb      keybd_event.KeyBonding
	created time.Time
}

// NewSystemKeyboard creates the virtual keyboard. It needs write access
// to /dev/uinput.
func NewSystemKeyboard() (*SystemKeyboard, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("create virtual keyboard: %w", err)
	}
	return &SystemKeyboard{kb: kb, created: time.Now()}, nil
}

func (s *SystemKeyboard) Paste(chord config.PasteChord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wait := uinputWarmup - time.Since(s.created); wait > 0 {
		time.Sleep(wait)
	}
	s.kb.Clear()
	s.kb.HasCTRL(chord.Ctrl)
	s.kb.HasSHIFT(chord.Shift)
	s.kb.HasALT(chord.Alt)
	switch chord.Key {
	case "insert":
		s.kb.SetKeys(keybd_event.VK_INSERT)
	default:
		s.kb.SetKeys(keybd_event.VK_V)
	}
	return s.kb.Launching()
}
