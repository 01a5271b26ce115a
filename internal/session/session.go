// Package session drives a typing run: it owns the control state machine,
// the emission loop, and the resume position.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/verte-zerg/autotype/internal/model"
)

// State is the control state of the controller.
type State int

// Control states.
const (
	Stopped State = iota
	Active
	Paused
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Active:
		return "active"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Named keys passed to KeyEmitter.PressNamedKey.
const (
	KeyEnter     = "enter"
	KeyTab       = "tab"
	KeyBackspace = "backspace"
)

var (
	// ErrInputUnavailable means the text source failed or returned blank text.
	ErrInputUnavailable = errors.New("no text to type")
	// ErrAlreadyRunning means Start was called while a run is live.
	ErrAlreadyRunning = errors.New("already typing")
	// ErrInvalidCommand means a control command does not apply to the current state.
	ErrInvalidCommand = errors.New("command not valid in current state")
	// ErrEmission means the key emitter failed mid-run.
	ErrEmission = errors.New("key emission failed")
)

// TextSource supplies the text to type.
type TextSource interface {
	Fetch(ctx context.Context) (string, error)
}

// KeyEmitter dispatches characters and named keys.
type KeyEmitter interface {
	WriteCharacter(r rune) error
	PressNamedKey(name string) error
}

// Checkpointer persists resume positions across processes.
type Checkpointer interface {
	LoadCheckpoint(ctx context.Context, textHash string) (model.Checkpoint, bool, error)
	SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error
	DeleteCheckpoint(ctx context.Context, textHash string) error
}

// TextHash identifies a normalized text for checkpointing.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
