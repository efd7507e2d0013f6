package hotkey

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// KeyCode is a physical key identifier using Linux input event codes.
type KeyCode uint16

const (
	KeyEsc        KeyCode = 1
	Key1          KeyCode = 2
	Key2          KeyCode = 3
	Key3          KeyCode = 4
	Key4          KeyCode = 5
	Key5          KeyCode = 6
	Key6          KeyCode = 7
	Key7          KeyCode = 8
	Key8          KeyCode = 9
	Key9          KeyCode = 10
	Key0          KeyCode = 11
	KeyMinus      KeyCode = 12
	KeyEqual      KeyCode = 13
	KeyBackspace  KeyCode = 14
	KeyTab        KeyCode = 15
	KeyQ          KeyCode = 16
	KeyW          KeyCode = 17
	KeyE          KeyCode = 18
	KeyR          KeyCode = 19
	KeyT          KeyCode = 20
	KeyY          KeyCode = 21
	KeyU          KeyCode = 22
	KeyI          KeyCode = 23
	KeyO          KeyCode = 24
	KeyP          KeyCode = 25
	KeyLeftBrace  KeyCode = 26
	KeyRightBrace KeyCode = 27
	KeyEnter      KeyCode = 28
	KeyLeftCtrl   KeyCode = 29
	KeyA          KeyCode = 30
	KeyS          KeyCode = 31
	KeyD          KeyCode = 32
	KeyF          KeyCode = 33
	KeyG          KeyCode = 34
	KeyH          KeyCode = 35
	KeyJ          KeyCode = 36
	KeyK          KeyCode = 37
	KeyL          KeyCode = 38
	KeySemicolon  KeyCode = 39
	KeyApostrophe KeyCode = 40
	KeyGrave      KeyCode = 41
	KeyLeftShift  KeyCode = 42
	KeyBackslash  KeyCode = 43
	KeyZ          KeyCode = 44
	KeyX          KeyCode = 45
	KeyC          KeyCode = 46
	KeyV          KeyCode = 47
	KeyB          KeyCode = 48
	KeyN          KeyCode = 49
	KeyM          KeyCode = 50
	KeyComma      KeyCode = 51
	KeyDot        KeyCode = 52
	KeySlash      KeyCode = 53
	KeyRightShift KeyCode = 54
	KeyLeftAlt    KeyCode = 56
	KeySpace      KeyCode = 57
	KeyCapsLock   KeyCode = 58
	KeyF1         KeyCode = 59
	KeyF2         KeyCode = 60
	KeyF3         KeyCode = 61
	KeyF4         KeyCode = 62
	KeyF5         KeyCode = 63
	KeyF6         KeyCode = 64
	KeyF7         KeyCode = 65
	KeyF8         KeyCode = 66
	KeyF9         KeyCode = 67
	KeyF10        KeyCode = 68
	KeyF11        KeyCode = 87
	KeyF12        KeyCode = 88
	KeyRightCtrl  KeyCode = 97
	KeyRightAlt   KeyCode = 100
	KeyHome       KeyCode = 102
	KeyUp         KeyCode = 103
	KeyPageUp     KeyCode = 104
	KeyLeft       KeyCode = 105
	KeyRight      KeyCode = 106
	KeyEnd        KeyCode = 107
	KeyDown       KeyCode = 108
	KeyPageDown   KeyCode = 109
	KeyInsert     KeyCode = 110
	KeyDelete     KeyCode = 111
	KeyLeftMeta   KeyCode = 125
	KeyRightMeta  KeyCode = 126
)

// ErrInvalidShortcut is returned when a shortcut string cannot be resolved.
var ErrInvalidShortcut = errors.New("invalid shortcut")

// Modifiers map to the left-hand physical key.
var keyTable = map[string]KeyCode{
	"SUPER": KeyLeftMeta, "META": KeyLeftMeta, "WIN": KeyLeftMeta, "WINDOWS": KeyLeftMeta, "CMD": KeyLeftMeta,
	"ALT": KeyLeftAlt, "LALT": KeyLeftAlt, "RALT": KeyRightAlt, "ALTGR": KeyRightAlt,
	"CTRL": KeyLeftCtrl, "CONTROL": KeyLeftCtrl, "LCTRL": KeyLeftCtrl, "RCTRL": KeyRightCtrl,
	"SHIFT": KeyLeftShift, "LSHIFT": KeyLeftShift, "RSHIFT": KeyRightShift,

	"A": KeyA, "B": KeyB, "C": KeyC, "D": KeyD, "E": KeyE, "F": KeyF, "G": KeyG,
	"H": KeyH, "I": KeyI, "J": KeyJ, "K": KeyK, "L": KeyL, "M": KeyM, "N": KeyN,
	"O": KeyO, "P": KeyP, "Q": KeyQ, "R": KeyR, "S": KeyS, "T": KeyT, "U": KeyU,
	"V": KeyV, "W": KeyW, "X": KeyX, "Y": KeyY, "Z": KeyZ,

	"0": Key0, "1": Key1, "2": Key2, "3": Key3, "4": Key4,
	"5": Key5, "6": Key6, "7": Key7, "8": Key8, "9": Key9,

	"F1": KeyF1, "F2": KeyF2, "F3": KeyF3, "F4": KeyF4, "F5": KeyF5, "F6": KeyF6,
	"F7": KeyF7, "F8": KeyF8, "F9": KeyF9, "F10": KeyF10, "F11": KeyF11, "F12": KeyF12,

	"SPACE": KeySpace, "ENTER": KeyEnter, "RETURN": KeyEnter,
	"ESC": KeyEsc, "ESCAPE": KeyEsc, "TAB": KeyTab, "BACKSPACE": KeyBackspace,
	"CAPSLOCK": KeyCapsLock,
	"DELETE": KeyDelete, "DEL": KeyDelete, "INSERT": KeyInsert, "INS": KeyInsert,
	"HOME": KeyHome, "END": KeyEnd,
	"PAGEUP": KeyPageUp, "PGUP": KeyPageUp, "PAGEDOWN": KeyPageDown, "PGDOWN": KeyPageDown,
	"UP": KeyUp, "DOWN": KeyDown, "LEFT": KeyLeft, "RIGHT": KeyRight,

	"MINUS": KeyMinus, "-": KeyMinus, "EQUAL": KeyEqual, "=": KeyEqual,
	"COMMA": KeyComma, ",": KeyComma, "DOT": KeyDot, "PERIOD": KeyDot, ".": KeyDot,
	"SLASH": KeySlash, "/": KeySlash, "BACKSLASH": KeyBackslash, "\\": KeyBackslash,
	"SEMICOLON": KeySemicolon, ";": KeySemicolon, "APOSTROPHE": KeyApostrophe, "'": KeyApostrophe,
	"GRAVE": KeyGrave, "`": KeyGrave,
	"LEFTBRACE": KeyLeftBrace, "[": KeyLeftBrace, "RIGHTBRACE": KeyRightBrace, "]": KeyRightBrace,
}

var keyNames = func() map[KeyCode]string {
	// Prefer the canonical spelling for each code when rendering.
	canonical := []string{
		"SUPER", "ALT", "RALT", "CTRL", "RCTRL", "SHIFT", "RSHIFT",
		"ENTER", "ESC", "DELETE", "INSERT", "PAGEUP", "PAGEDOWN",
		"MINUS", "EQUAL", "COMMA", "DOT", "SLASH", "BACKSLASH",
		"SEMICOLON", "APOSTROPHE", "GRAVE", "LEFTBRACE", "RIGHTBRACE",
	}
	names := make(map[KeyCode]string, len(keyTable))
	for _, n := range canonical {
		names[keyTable[n]] = n
	}
	for n, c := range keyTable {
		if _, ok := names[c]; !ok {
			names[c] = n
		}
	}
	return names
}()

// KeyName returns the display name of a key code.
func KeyName(c KeyCode) string {
	if n, ok := keyNames[c]; ok {
		return n
	}
	return fmt.Sprintf("KEY_%d", c)
}

// KeySet is an unordered set of physical keys.
type KeySet map[KeyCode]struct{}

// NewKeySet builds a set from codes.
func NewKeySet(codes ...KeyCode) KeySet {
	s := make(KeySet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s KeySet) Has(c KeyCode) bool {
	_, ok := s[c]
	return ok
}

// SubsetOf reports whether every key of s is in other.
func (s KeySet) SubsetOf(other KeySet) bool {
	if len(s) > len(other) {
		return false
	}
	for c := range s {
		if _, ok := other[c]; !ok {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold the same keys.
func (s KeySet) Equal(other KeySet) bool {
	return len(s) == len(other) && s.SubsetOf(other)
}

// Codes returns the keys in ascending order.
func (s KeySet) Codes() []KeyCode {
	out := make([]KeyCode, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s KeySet) String() string {
	parts := make([]string, 0, len(s))
	for _, c := range s.Codes() {
		parts = append(parts, KeyName(c))
	}
	return strings.Join(parts, "+")
}

// ParseShortcut accepts strings like "SUPER+ALT+R" or "ctrl+shift+v".
// Token order does not matter.
func ParseShortcut(s string) (KeySet, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: %q has no keys", ErrInvalidShortcut, s)
	}
	set := make(KeySet)
	for _, raw := range strings.Split(s, "+") {
		tok := strings.ToUpper(strings.TrimSpace(raw))
		if tok == "" {
			return nil, fmt.Errorf("%w: empty key in %q", ErrInvalidShortcut, s)
		}
		code, ok := keyTable[tok]
		if !ok {
			return nil, fmt.Errorf("%w: unknown key %q in %q", ErrInvalidShortcut, strings.TrimSpace(raw), s)
		}
		set[code] = struct{}{}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: %q has no keys", ErrInvalidShortcut, s)
	}
	return set, nil
}
