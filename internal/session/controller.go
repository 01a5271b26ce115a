package session

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verte-zerg/autotype/internal/cadence"
	"github.com/verte-zerg/autotype/internal/textnorm"
)

const (
	defaultProgressEvery = 50
	previewLimit         = 100
)

// Options configures a Controller. Zero values fall back to defaults.
type Options struct {
	Params          cadence.Params
	Countdown       time.Duration
	ProgressEvery   int
	CheckpointEvery int

	Checkpoints Checkpointer
	Sink        StatusSink
	Logger      *zap.Logger

	// Rand overrides the per-run random source.
	Rand cadence.Rand
	// Sleep overrides the wait between keystrokes. It must return early
	// with ctx.Err() when ctx is cancelled.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now overrides the clock.
	Now func() time.Time
}

// Snapshot is a consistent view of the controller.
type Snapshot struct {
	State    State
	RunID    string
	Position int
	Total    int
	Flow     cadence.FlowState
	BaseWPM  float64
}

// Controller is the typing state machine. Control methods are safe to call
// from any goroutine; exactly one emission loop runs at a time.
type Controller struct {
	source  TextSource
	emitter KeyEmitter
	opts    Options
	logger  *zap.Logger
	sink    StatusSink

	mu       sync.Mutex
	resumed  *sync.Cond
	state    State
	position int
	text     []rune
	textStr  string
	hash     string
	lastWPM  float64
	flow     cadence.FlowState
	run      *run
	starting bool
	stopping bool
	err      error
	done     chan struct{}

	cancelStart context.CancelFunc
	cancelLoop  context.CancelFunc

	// resetPending defers a Reset issued while a stopped loop winds down.
	resetPending bool
}

// New returns a stopped controller.
func New(source TextSource, emitter KeyEmitter, opts Options) *Controller {
	if opts.Params.BaseWPM <= 0 {
		opts.Params = cadence.DefaultParams()
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = defaultProgressEvery
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := opts.Sink
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}
	c := &Controller{
		source:  source,
		emitter: emitter,
		opts:    opts,
		logger:  logger.Named("session"),
		sink:    sink,
		lastWPM: opts.Params.BaseWPM,
	}
	c.resumed = sync.NewCond(&c.mu)
	return c
}

// State returns the current control state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Position returns the offset of the next character to type.
func (c *Controller) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// Snapshot returns the state, position and flow under one lock.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		State:    c.state,
		Position: c.position,
		Total:    len(c.text),
		Flow:     c.flow,
		BaseWPM:  c.lastWPM,
	}
	if c.run != nil {
		snap.RunID = c.run.id
		snap.BaseWPM = c.run.params.BaseWPM
	}
	return snap
}

// Text returns the normalized text of the current or last run.
func (c *Controller) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.textStr
}

// DefaultWPM returns the speed used when Start is called without one.
func (c *Controller) DefaultWPM() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastWPM
}

// Start fetches and normalizes text, runs the pre-roll countdown, and
// spawns the emission loop. A wpm of zero reuses the last speed. Start
// resumes from the saved position when the text is unchanged.
func (c *Controller) Start(ctx context.Context, wpm float64) error {
	c.mu.Lock()
	if c.state != Stopped || c.starting {
		c.mu.Unlock()
		return c.reject(ErrAlreadyRunning)
	}
	c.starting = true
	startCtx, cancel := context.WithCancel(ctx)
	c.cancelStart = cancel
	if wpm <= 0 {
		wpm = c.lastWPM
	}
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		c.starting = false
		c.cancelStart = nil
		c.mu.Unlock()
	}()

	params := c.opts.Params.WithWPM(wpm)
	if err := params.Validate(); err != nil {
		return c.reject(fmt.Errorf("invalid typing parameters: %w", err))
	}

	raw, err := c.source.Fetch(startCtx)
	if err != nil {
		return c.reject(fmt.Errorf("%w: %v", ErrInputUnavailable, err))
	}
	text := textnorm.Normalize(raw)
	if strings.TrimSpace(text) == "" {
		return c.reject(fmt.Errorf("%w: text is empty or whitespace", ErrInputUnavailable))
	}

	if err := c.waitLoop(startCtx); err != nil {
		return c.reject(fmt.Errorf("start cancelled: %w", err))
	}

	runes := []rune(text)
	hash := TextHash(text)
	start := c.resumeOffset(startCtx, text, hash, len(runes))
	summary := textnorm.Summarize(text)
	preview := textnorm.Preview(text, previewLimit)
	c.sink.Report(Event{
		Kind:     EventReady,
		State:    Stopped,
		Position: start,
		Total:    len(runes),
		BaseWPM:  wpm,
		Summary:  summary,
		Preview:  preview,
	})

	if err := c.countdown(startCtx); err != nil {
		return c.reject(fmt.Errorf("start cancelled: %w", err))
	}

	r := c.newRun(runes, hash, start, params)

	c.mu.Lock()
	if err := startCtx.Err(); err != nil {
		c.mu.Unlock()
		return c.reject(fmt.Errorf("start cancelled: %w", err))
	}
	loopCtx, loopCancel := context.WithCancel(context.WithoutCancel(ctx))
	c.state = Active
	c.stopping = false
	c.err = nil
	c.text = runes
	c.textStr = text
	c.hash = hash
	c.position = start
	c.lastWPM = wpm
	c.flow = r.flow.State()
	c.run = r
	c.done = make(chan struct{})
	c.cancelLoop = loopCancel
	done := c.done
	c.mu.Unlock()

	c.sink.Report(Event{
		Kind:     EventStarted,
		RunID:    r.id,
		State:    Active,
		Position: start,
		Total:    len(runes),
		BaseWPM:  wpm,
		Flow:     r.flow.State(),
		Summary:  summary,
		Preview:  preview,
	})
	go c.loop(loopCtx, r, done)
	return nil
}

// Pause suspends an active run before its next character.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.state != Active {
		c.mu.Unlock()
		return c.reject(fmt.Errorf("%w: nothing to pause", ErrInvalidCommand))
	}
	c.state = Paused
	r := c.run
	r.pausedAt = c.opts.Now()
	ev := Event{Kind: EventPaused, RunID: r.id, State: Paused, Position: c.position, Total: len(c.text)}
	c.mu.Unlock()

	c.sink.Report(ev)
	return nil
}

// Resume continues a paused run. In any other state it starts a new run
// with the last used speed.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Paused {
		c.mu.Unlock()
		return c.Start(ctx, 0)
	}
	c.state = Active
	r := c.run
	r.paused += c.opts.Now().Sub(r.pausedAt)
	r.pausedAt = time.Time{}
	ev := Event{Kind: EventResumed, RunID: r.id, State: Active, Position: c.position, Total: len(c.text)}
	c.resumed.Broadcast()
	c.mu.Unlock()

	c.sink.Report(ev)
	return nil
}

// Stop ends the live run, keeping the position so a later Start on the
// same text continues from it. During a pre-roll it cancels the start.
func (c *Controller) Stop() error {
	c.mu.Lock()
	switch {
	case c.state == Active || c.state == Paused:
		c.state = Stopped
		c.stopping = true
		if c.cancelLoop != nil {
			c.cancelLoop()
		}
		c.resumed.Broadcast()
		c.mu.Unlock()
		return nil
	case c.starting && c.cancelStart != nil:
		c.cancelStart()
		c.mu.Unlock()
		return nil
	default:
		c.mu.Unlock()
		return c.reject(fmt.Errorf("%w: nothing to stop", ErrInvalidCommand))
	}
}

// Reset forgets the saved position. After a Stop whose loop has not yet
// exited, the reset is applied when the loop finishes.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Stopped || c.starting {
		c.mu.Unlock()
		return c.reject(fmt.Errorf("%w: stop typing before resetting", ErrInvalidCommand))
	}
	if c.stopping {
		c.resetPending = true
		c.mu.Unlock()
		return nil
	}
	c.position = 0
	hash := c.hash
	c.mu.Unlock()

	if c.opts.Checkpoints != nil && hash != "" {
		if err := c.opts.Checkpoints.DeleteCheckpoint(ctx, hash); err != nil {
			c.logger.Warn("failed to delete checkpoint", zap.Error(err))
		}
	}
	return nil
}

// Wait blocks until the current loop exits and returns its error.
func (c *Controller) Wait() error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) waitLoop(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resumeOffset picks the start position for text. An unchanged text keeps
// the in-memory position; a changed text falls back to a persisted
// checkpoint, then to zero.
func (c *Controller) resumeOffset(ctx context.Context, text, hash string, total int) int {
	c.mu.Lock()
	cached := c.textStr
	pos := c.position
	c.mu.Unlock()

	if cached == text {
		if pos >= total {
			return 0
		}
		return pos
	}
	if cached != "" && pos > 0 {
		c.logger.Info("text changed since last stop; not resuming", zap.Int("previous_position", pos))
	}
	if c.opts.Checkpoints == nil {
		return 0
	}
	cp, ok, err := c.opts.Checkpoints.LoadCheckpoint(ctx, hash)
	if err != nil {
		c.logger.Warn("failed to load checkpoint", zap.Error(err))
		return 0
	}
	if !ok || cp.Position <= 0 || cp.Position >= total {
		return 0
	}
	c.logger.Info("resuming from checkpoint", zap.Int("position", cp.Position), zap.Time("saved_at", cp.UpdatedAt))
	return cp.Position
}

func (c *Controller) countdown(ctx context.Context) error {
	remaining := c.opts.Countdown
	if remaining <= 0 {
		return ctx.Err()
	}
	for n := int(math.Ceil(remaining.Seconds())); n > 0; n-- {
		c.sink.Report(Event{Kind: EventCountdown, State: Stopped, Countdown: n})
		step := time.Second
		if remaining < step {
			step = remaining
		}
		if err := c.opts.Sleep(ctx, step); err != nil {
			return err
		}
		remaining -= step
	}
	return nil
}

func (c *Controller) newRun(text []rune, hash string, start int, params cadence.Params) *run {
	rnd := c.opts.Rand
	if rnd == nil {
		rnd = cadence.NewRand()
	}
	return &run{
		id:        uuid.NewString(),
		hash:      hash,
		text:      text,
		start:     start,
		params:    params,
		delay:     cadence.NewModel(params, rnd),
		flow:      cadence.NewFlow(rnd),
		typo:      cadence.NewTypo(rnd, params.TypoChance),
		startedAt: c.opts.Now(),
		flowChars: map[cadence.FlowState]int{},
	}
}

func (c *Controller) reject(err error) error {
	c.logger.Debug("rejected", zap.Error(err))
	c.sink.Report(Event{Kind: EventRejected, State: c.State(), Err: err})
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
