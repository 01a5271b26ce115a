package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/autotype/internal/cadence"
	"github.com/verte-zerg/autotype/internal/model"
)

// run is the state of one emission attempt. Fields other than pausedAt and
// paused are owned by the loop goroutine.
type run struct {
	id     string
	hash   string
	text   []rune
	start  int
	params cadence.Params

	delay *cadence.Model
	flow  *cadence.Flow
	typo  *cadence.Typo

	startedAt time.Time
	pausedAt  time.Time
	paused    time.Duration

	typed     int
	typos     int
	flowChars map[cadence.FlowState]int
}

// activeElapsed excludes paused time. Caller holds c.mu.
func (r *run) activeElapsed(now time.Time) time.Duration {
	elapsed := now.Sub(r.startedAt) - r.paused
	if !r.pausedAt.IsZero() {
		elapsed -= now.Sub(r.pausedAt)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// WordsPerMinute uses the five-characters-per-word convention.
func WordsPerMinute(chars int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return (float64(chars) / 5) / elapsed.Minutes()
}

func (c *Controller) loop(ctx context.Context, r *run, done chan struct{}) {
	defer close(done)
	total := len(r.text)
	i := r.start
	var runErr error
	for ; i < total; i++ {
		c.mu.Lock()
		for c.state == Paused && !c.stopping {
			c.resumed.Wait()
		}
		if c.stopping {
			c.mu.Unlock()
			break
		}
		c.mu.Unlock()

		ch := r.text[i]
		if ch == '\r' {
			c.advance(i+1)
			continue
		}
		var prev rune
		if i > 0 {
			prev = r.text[i-1]
		}

		if flow, changed := r.flow.Tick(); changed {
			c.setFlow(r, flow, i)
		}
		if err := c.emit(ctx, r, ch, i); err != nil {
			runErr = fmt.Errorf("%w at offset %d: %v", ErrEmission, i, err)
			break
		}
		r.typed++
		r.flowChars[r.flow.State()]++

		// A cancelled sleep means Stop was requested; the next iteration exits.
		_ = c.opts.Sleep(ctx, r.delay.Delay(ch, prev, i, total, r.flow.State()))
		c.commit(ctx, r, i+1)
	}
	c.finish(r, i >= total && runErr == nil, runErr)
}

func (c *Controller) emit(ctx context.Context, r *run, ch rune, offset int) error {
	if detour, ok := r.typo.Maybe(ch); ok {
		if err := c.emitter.WriteCharacter(detour.Wrong); err != nil {
			return err
		}
		_ = c.opts.Sleep(ctx, detour.Notice)
		if err := c.emitter.PressNamedKey(KeyBackspace); err != nil {
			return err
		}
		_ = c.opts.Sleep(ctx, detour.Correct)
		r.typos++
		c.sink.Report(Event{
			Kind:     EventTypo,
			RunID:    r.id,
			State:    c.State(),
			Position: offset,
			Total:    len(r.text),
			Typos:    r.typos,
			Flow:     r.flow.State(),
		})
	}
	switch ch {
	case '\n':
		return c.emitter.PressNamedKey(KeyEnter)
	case '\t':
		return c.emitter.PressNamedKey(KeyTab)
	default:
		return c.emitter.WriteCharacter(ch)
	}
}

func (c *Controller) setFlow(r *run, flow cadence.FlowState, offset int) {
	c.mu.Lock()
	c.flow = flow
	state := c.state
	c.mu.Unlock()
	c.sink.Report(Event{Kind: EventFlowChanged, RunID: r.id, State: state, Position: offset, Total: len(r.text), Flow: flow})
}

// advance moves the shared position past a character that emits nothing.
func (c *Controller) advance(pos int) {
	c.mu.Lock()
	c.position = pos
	c.mu.Unlock()
}

// commit advances the shared position after a typed character and emits
// periodic progress.
func (c *Controller) commit(ctx context.Context, r *run, pos int) {
	now := c.opts.Now()
	c.mu.Lock()
	c.position = pos
	state := c.state
	elapsed := r.activeElapsed(now)
	c.mu.Unlock()

	total := len(r.text)
	if r.typed > 0 && r.typed%c.opts.ProgressEvery == 0 && pos < total {
		c.sink.Report(Event{
			Kind:     EventProgress,
			RunID:    r.id,
			State:    state,
			Position: pos,
			Total:    total,
			Typed:    r.typed,
			Typos:    r.typos,
			Percent:  percent(pos, total),
			WPM:      WordsPerMinute(r.typed, elapsed),
			BaseWPM:  r.params.BaseWPM,
			Flow:     r.flow.State(),
			Elapsed:  elapsed,
		})
	}
	if every := c.opts.CheckpointEvery; every > 0 && pos%every == 0 && pos < total {
		c.saveCheckpoint(context.WithoutCancel(ctx), r, pos)
	}
}

func (c *Controller) finish(r *run, completed bool, runErr error) {
	now := c.opts.Now()
	c.mu.Lock()
	// A Stop that lands during the final delay still counts as a stop.
	if c.stopping {
		completed = false
	}
	end := c.position
	reset := c.resetPending
	if completed || reset {
		c.position = 0
	}
	c.state = Stopped
	c.stopping = false
	c.resetPending = false
	c.err = runErr
	c.cancelLoop = nil
	pos := c.position
	elapsed := r.activeElapsed(now)
	c.mu.Unlock()

	total := len(r.text)
	stats := &model.RunStats{
		RunID:         r.id,
		StartedAt:     r.startedAt,
		EndedAt:       now,
		BaseWPM:       r.params.BaseWPM,
		StartPosition: r.start,
		EndPosition:   end,
		TotalChars:    total,
		TypedChars:    r.typed,
		Typos:         r.typos,
		DurationMs:    elapsed.Milliseconds(),
	}
	ev := Event{
		RunID:    r.id,
		State:    Stopped,
		Position: pos,
		Total:    total,
		Typed:    r.typed,
		Typos:    r.typos,
		Percent:  percent(pos, total),
		WPM:      WordsPerMinute(r.typed, elapsed),
		BaseWPM:  r.params.BaseWPM,
		Flow:     r.flow.State(),
		Elapsed:  elapsed,
		Err:      runErr,
		Stats:    stats,
		Flows:    flowStats(r.flowChars),
	}
	// Checkpoint I/O must not be cancelled by Stop.
	ctx := context.Background()
	switch {
	case completed:
		stats.Outcome = model.OutcomeCompleted
		stats.EndPosition = total
		ev.Kind = EventCompleted
		ev.Percent = 100
		c.deleteCheckpoint(ctx, r)
	case runErr != nil:
		stats.Outcome = model.OutcomeFailed
		stats.Error = runErr.Error()
		ev.Kind = EventFailed
		c.keepCheckpoint(ctx, r, pos)
	default:
		stats.Outcome = model.OutcomeStopped
		ev.Kind = EventStopped
		c.keepCheckpoint(ctx, r, pos)
	}
	c.sink.Report(ev)
}

func (c *Controller) saveCheckpoint(ctx context.Context, r *run, pos int) {
	if c.opts.Checkpoints == nil {
		return
	}
	cp := model.Checkpoint{
		TextHash:  r.hash,
		Position:  pos,
		Total:     len(r.text),
		UpdatedAt: c.opts.Now(),
	}
	if err := c.opts.Checkpoints.SaveCheckpoint(ctx, cp); err != nil {
		c.logger.Warn("failed to save checkpoint", zap.String("run_id", r.id), zap.Error(err))
	}
}

// keepCheckpoint saves pos, or drops the checkpoint when there is nothing
// left to resume.
func (c *Controller) keepCheckpoint(ctx context.Context, r *run, pos int) {
	if pos <= 0 || pos >= len(r.text) {
		c.deleteCheckpoint(ctx, r)
		return
	}
	c.saveCheckpoint(ctx, r, pos)
}

func (c *Controller) deleteCheckpoint(ctx context.Context, r *run) {
	if c.opts.Checkpoints == nil {
		return
	}
	if err := c.opts.Checkpoints.DeleteCheckpoint(ctx, r.hash); err != nil {
		c.logger.Warn("failed to delete checkpoint", zap.String("run_id", r.id), zap.Error(err))
	}
}

func flowStats(counts map[cadence.FlowState]int) []model.FlowStats {
	out := make([]model.FlowStats, 0, len(counts))
	for _, f := range cadence.FlowStates {
		if n := counts[f]; n > 0 {
			out = append(out, model.FlowStats{Flow: f.String(), Chars: n})
		}
	}
	return out
}

func percent(pos, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(pos) / float64(total) * 100
}
