package control

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/verte-zerg/autotype/internal/session"
)

// ConsoleSink prints session events as plain status lines.
func ConsoleSink(w io.Writer) session.StatusSink {
	var mu sync.Mutex
	return session.SinkFunc(func(ev session.Event) {
		mu.Lock()
		defer mu.Unlock()
		writeEvent(w, ev)
	})
}

func writeEvent(w io.Writer, ev session.Event) {
	switch ev.Kind {
	case session.EventReady:
		fmt.Fprintf(w, "[info] ready to type: %s chars, %s words, %s lines\n",
			humanize.Comma(int64(ev.Summary.Chars)),
			humanize.Comma(int64(ev.Summary.Words)),
			humanize.Comma(int64(ev.Summary.Lines)))
		fmt.Fprintf(w, "[info] estimated time at %.0f wpm: %.1f seconds\n", ev.BaseWPM, ev.Summary.EstimatedSeconds(ev.BaseWPM))
		fmt.Fprintf(w, "[info] preview: %s\n", ev.Preview)
		if ev.Position > 0 {
			fmt.Fprintf(w, "[info] resuming at character %d/%d\n", ev.Position+1, ev.Total)
		}
	case session.EventCountdown:
		fmt.Fprintf(w, "[info] typing starts in %d...\n", ev.Countdown)
	case session.EventStarted:
		fmt.Fprintf(w, "[info] typing %d characters at %.0f wpm, flow %s\n", ev.Total-ev.Position, ev.BaseWPM, ev.Flow)
	case session.EventProgress:
		fmt.Fprintf(w, "[progress] %.1f%% | current wpm: %.1f | flow: %s\n", ev.Percent, ev.WPM, ev.Flow)
	case session.EventPaused:
		fmt.Fprintf(w, "[info] typing paused at character %d/%d\n", ev.Position, ev.Total)
	case session.EventResumed:
		fmt.Fprintln(w, "[info] typing resumed")
	case session.EventStopped:
		fmt.Fprintf(w, "[info] typing stopped at character %d/%d\n", ev.Position, ev.Total)
	case session.EventCompleted:
		fmt.Fprintf(w, "[done] finished typing %d characters\n", ev.Typed)
		fmt.Fprintf(w, "[stats] total time: %.1fs | average wpm: %.1f | typos: %d\n", ev.Elapsed.Seconds(), ev.WPM, ev.Typos)
	case session.EventFailed:
		fmt.Fprintf(w, "[error] typing failed at character %d/%d: %v\n", ev.Position+1, ev.Total, ev.Err)
	case session.EventRejected:
		fmt.Fprintf(w, "[warn] %v\n", ev.Err)
	}
}
