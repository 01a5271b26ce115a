// Package control maps user commands onto a typing session.
package control

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Custom speed bounds accepted from the prompt.
const (
	MinWPM = 10
	MaxWPM = 250
)

var (
	// ErrUnknownCommand means the input is not a recognised command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrWPMRange means a custom speed falls outside [MinWPM, MaxWPM].
	ErrWPMRange = fmt.Errorf("wpm must be between %d and %d", MinWPM, MaxWPM)
)

// Preset is a named speed bound to a key.
type Preset struct {
	Key  string
	Name string
	WPM  float64
}

// Presets lists the speed presets in key order.
var Presets = []Preset{
	{Key: "1", Name: "slow", WPM: 50},
	{Key: "2", Name: "normal", WPM: 85},
	{Key: "3", Name: "fast", WPM: 120},
	{Key: "4", Name: "custom 100", WPM: 100},
	{Key: "5", Name: "custom 150", WPM: 150},
}

// PresetByKey looks up a preset.
func PresetByKey(key string) (Preset, bool) {
	for _, p := range Presets {
		if p.Key == key {
			return p, true
		}
	}
	return Preset{}, false
}

// Kind identifies a command.
type Kind int

// Commands.
const (
	Start Kind = iota
	Pause
	Resume
	Stop
	Reset
	Status
	Quit
)

// String returns the command name.
func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case Pause:
		return "pause"
	case Resume:
		return "resume"
	case Stop:
		return "stop"
	case Reset:
		return "reset"
	case Status:
		return "status"
	case Quit:
		return "quit"
	default:
		return "unknown"
	}
}

// Command is a parsed user command. WPM is zero when Start should reuse
// the last speed.
type Command struct {
	Kind Kind
	WPM  float64
}

// Parse reads one prompt line. An empty line starts at the current speed,
// 1 to 5 pick a preset, and any other number is a custom speed.
func Parse(line string) (Command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return Command{Kind: Start}, nil
	}
	word := fields[0]
	if p, ok := PresetByKey(word); ok && len(fields) == 1 {
		return Command{Kind: Start, WPM: p.WPM}, nil
	}
	if len(fields) == 1 {
		if wpm, ok, err := parseWPM(word); ok {
			if err != nil {
				return Command{}, err
			}
			return Command{Kind: Start, WPM: wpm}, nil
		}
	}

	switch word {
	case "start", "go":
		if len(fields) == 1 {
			return Command{Kind: Start}, nil
		}
		if p, ok := PresetByKey(fields[1]); ok {
			return Command{Kind: Start, WPM: p.WPM}, nil
		}
		wpm, ok, err := parseWPM(fields[1])
		if !ok {
			return Command{}, fmt.Errorf("%w: start %s", ErrUnknownCommand, fields[1])
		}
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: Start, WPM: wpm}, nil
	case "p", "pause":
		return Command{Kind: Pause}, nil
	case "r", "resume":
		return Command{Kind: Resume}, nil
	case "s", "stop":
		return Command{Kind: Stop}, nil
	case "reset":
		return Command{Kind: Reset}, nil
	case "?", "status":
		return Command{Kind: Status}, nil
	case "q", "quit", "exit":
		return Command{Kind: Quit}, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
}

// parseWPM reports ok when s is an integer, and an error when it is out of range.
func parseWPM(s string) (float64, bool, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, nil
	}
	if n < MinWPM || n > MaxWPM {
		return 0, true, fmt.Errorf("%w: got %d", ErrWPMRange, n)
	}
	return float64(n), true, nil
}

// Controller is the subset of session.Controller driven by commands.
type Controller interface {
	Start(ctx context.Context, wpm float64) error
	Pause() error
	Resume(ctx context.Context) error
	Stop() error
	Reset(ctx context.Context) error
}

// Dispatch applies cmd to ctrl. Status and Quit are handled by the caller.
func Dispatch(ctx context.Context, ctrl Controller, cmd Command) error {
	switch cmd.Kind {
	case Start:
		return ctrl.Start(ctx, cmd.WPM)
	case Pause:
		return ctrl.Pause()
	case Resume:
		return ctrl.Resume(ctx)
	case Stop:
		return ctrl.Stop()
	case Reset:
		return ctrl.Reset(ctx)
	case Status, Quit:
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrUnknownCommand, cmd.Kind)
	}
}
