// Package emitter turns characters and named keys into output.
package emitter

import (
	"fmt"
	"io"
	"sync"

	"github.com/go-vgo/robotgo"

	"github.com/verte-zerg/autotype/internal/session"
)

// Keyboard injects key presses into the focused window.
type Keyboard struct {
	keyTap  func(key string) error
	typeStr func(s string)
}

// NewKeyboard returns an emitter backed by the OS input layer.
func NewKeyboard() *Keyboard {
	return &Keyboard{
		keyTap:  func(key string) error { return robotgo.KeyTap(key) },
		typeStr: func(s string) { robotgo.TypeStr(s) },
	}
}

// WriteCharacter types r. Printable ASCII goes through a key tap; other
// runes go through unicode input.
func (k *Keyboard) WriteCharacter(r rune) error {
	if r == ' ' {
		return k.tap("space")
	}
	if r > ' ' && r < 0x7f && !needsShift(r) {
		return k.tap(string(r))
	}
	k.typeStr(string(r))
	return nil
}

func (k *Keyboard) tap(key string) error {
	if err := k.keyTap(key); err != nil {
		return fmt.Errorf("failed to press %s: %w", key, err)
	}
	return nil
}

// PressNamedKey taps a named key such as enter, tab or backspace.
func (k *Keyboard) PressNamedKey(name string) error {
	switch name {
	case session.KeyEnter, session.KeyTab, session.KeyBackspace:
	default:
		return fmt.Errorf("unknown key %q", name)
	}
	return k.tap(name)
}

// needsShift reports runes that a plain key tap cannot produce.
func needsShift(r rune) bool {
	if r >= 'A' && r <= 'Z' {
		return true
	}
	switch r {
	case '!', '@', '#', '$', '%', '^', '&', '*', '(', ')', '_', '+',
		'{', '}', '|', ':', '"', '<', '>', '?', '~':
		return true
	}
	return false
}

// Writer renders keystrokes to an io.Writer. Backspace erases the last
// cell on a terminal.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteCharacter writes r.
func (e *Writer) WriteCharacter(r rune) error {
	return e.write(string(r))
}

// PressNamedKey writes the control sequence for name.
func (e *Writer) PressNamedKey(name string) error {
	switch name {
	case session.KeyEnter:
		return e.write("\n")
	case session.KeyTab:
		return e.write("\t")
	case session.KeyBackspace:
		return e.write("\b \b")
	default:
		return fmt.Errorf("unknown key %q", name)
	}
}

func (e *Writer) write(s string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := io.WriteString(e.w, s); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
