package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/verte-zerg/autotype/internal/session"
	"github.com/verte-zerg/autotype/internal/textnorm"
)

const statusPreviewLimit = 80

// Session is the controller surface the prompt needs.
type Session interface {
	Controller
	Snapshot() session.Snapshot
	Wait() error
}

// Prompt is a line-oriented control loop for terminals without hotkeys.
type Prompt struct {
	Session   Session
	Source    session.TextSource
	In        io.Reader
	Out       io.Writer
	Variation float64
}

// Run reads commands until quit, EOF or ctx is done. A live run is stopped
// before Run returns.
func (p *Prompt) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(p.In)
	defer p.shutdown()

	p.help()
	p.status(ctx)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(p.Out, "\n>>> [1-5/enter/wpm]=start  p=pause  r=resume  s=stop  q=quit: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read command: %w", err)
			}
			return nil
		}
		cmd, err := Parse(scanner.Text())
		if err != nil {
			fmt.Fprintf(p.Out, "[error] %v\n", err)
			continue
		}
		switch cmd.Kind {
		case Quit:
			return nil
		case Status:
			p.status(ctx)
			continue
		}
		// Rejections other than a cancelled start reach the user through the status sink.
		if err := Dispatch(ctx, p.Session, cmd); errors.Is(err, context.Canceled) {
			fmt.Fprintln(p.Out, "[info] start cancelled")
		}
	}
}

func (p *Prompt) shutdown() {
	if p.Session.Snapshot().State == session.Stopped {
		return
	}
	_ = p.Session.Stop()
	_ = p.Session.Wait()
}

func (p *Prompt) help() {
	fmt.Fprintln(p.Out, strings.Repeat("=", 60))
	fmt.Fprintln(p.Out, "  manual mode")
	fmt.Fprintln(p.Out, strings.Repeat("=", 60))
	fmt.Fprintln(p.Out, "copy text, pick a speed, then focus the target window during the countdown.")
	fmt.Fprintln(p.Out, "speed presets:")
	for _, preset := range Presets {
		fmt.Fprintf(p.Out, "  %s = %s (%.0f wpm)\n", preset.Key, preset.Name, preset.WPM)
	}
	fmt.Fprintf(p.Out, "  [number] = custom wpm (%d-%d)\n", MinWPM, MaxWPM)
	fmt.Fprintln(p.Out, "  enter = current speed")
}

// status prints the state banner with a fresh look at the source text.
func (p *Prompt) status(ctx context.Context) {
	snap := p.Session.Snapshot()
	fmt.Fprintf(p.Out, "\nstatus: %s\n", snap.State)
	fmt.Fprintf(p.Out, "speed: %.0f wpm (±%.0f)\n", snap.BaseWPM, snap.BaseWPM*p.Variation)
	if snap.Total > 0 && snap.Position > 0 {
		fmt.Fprintf(p.Out, "position: %d/%d\n", snap.Position, snap.Total)
	}
	if p.Source == nil {
		return
	}
	raw, err := p.Source.Fetch(ctx)
	if err != nil {
		fmt.Fprintln(p.Out, "text: unreadable")
		return
	}
	text := textnorm.Normalize(raw)
	if text == "" {
		fmt.Fprintln(p.Out, "text: empty")
		return
	}
	sum := textnorm.Summarize(text)
	fmt.Fprintf(p.Out, "text: %d chars, %d words, %d lines\n", sum.Chars, sum.Words, sum.Lines)
	fmt.Fprintf(p.Out, "estimated time: %.1f seconds\n", sum.EstimatedSeconds(snap.BaseWPM))
	fmt.Fprintf(p.Out, "preview: %s\n", textnorm.Preview(text, statusPreviewLimit))
}
