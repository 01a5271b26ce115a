package session_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/verte-zerg/autotype/internal/cadence"
	"github.com/verte-zerg/autotype/internal/model"
	"github.com/verte-zerg/autotype/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticSource struct {
	mu   sync.Mutex
	text string
	err  error
}

func (s *staticSource) Fetch(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text, s.err
}

func (s *staticSource) set(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
}

// recordingEmitter records emitted keys. hook runs after each successful
// character write with the running count.
type recordingEmitter struct {
	mu     sync.Mutex
	keys   []string
	chars  []rune
	failAt int
	hook   func(n int)
}

func (e *recordingEmitter) WriteCharacter(r rune) error {
	e.mu.Lock()
	if e.failAt > 0 && len(e.chars)+1 == e.failAt {
		e.mu.Unlock()
		return errors.New("display closed")
	}
	e.chars = append(e.chars, r)
	e.keys = append(e.keys, string(r))
	n := len(e.chars)
	hook := e.hook
	e.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (e *recordingEmitter) PressNamedKey(name string) error {
	e.mu.Lock()
	e.keys = append(e.keys, "<"+name+">")
	e.mu.Unlock()
	return nil
}

func (e *recordingEmitter) typed() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.chars)
}

func (e *recordingEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.chars)
}

func (e *recordingEmitter) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys = nil
	e.chars = nil
	e.hook = nil
}

type eventLog struct {
	mu     sync.Mutex
	events []session.Event
}

func (l *eventLog) Report(ev session.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) last(kind session.EventKind) (session.Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Kind == kind {
			return l.events[i], true
		}
	}
	return session.Event{}, false
}

type sleepLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepLog) all() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type memCheckpoints struct {
	mu  sync.Mutex
	cps map[string]model.Checkpoint
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{cps: map[string]model.Checkpoint{}}
}

func (m *memCheckpoints) LoadCheckpoint(_ context.Context, hash string) (model.Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.cps[hash]
	return cp, ok, nil
}

func (m *memCheckpoints) SaveCheckpoint(_ context.Context, cp model.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cps[cp.TextHash] = cp
	return nil
}

func (m *memCheckpoints) DeleteCheckpoint(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cps, hash)
	return nil
}

type harness struct {
	src    *staticSource
	em     *recordingEmitter
	events *eventLog
	sleeps *sleepLog
	ctrl   *session.Controller
}

func newHarness(t *testing.T, text string, mutate ...func(*session.Options)) *harness {
	t.Helper()
	params := cadence.DefaultParams()
	params.TypoChance = 0
	h := &harness{
		src:    &staticSource{text: text},
		em:     &recordingEmitter{},
		events: &eventLog{},
		sleeps: &sleepLog{},
	}
	opts := session.Options{
		Params: params,
		Sink:   h.events,
		Logger: zaptest.NewLogger(t),
		Rand:   cadence.NewSeededRand(1),
		Sleep:  h.sleeps.sleep,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	h.ctrl = session.New(h.src, h.em, opts)
	return h
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func text200() string {
	return strings.Repeat("abcdefghi ", 19) + "abcdefghij"
}

func TestCompletesShortText(t *testing.T) {
	h := newHarness(t, "Hi.")
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx, 85))
	require.NoError(t, h.ctrl.Wait())

	assert.Equal(t, "Hi.", h.em.typed())
	delays := h.sleeps.all()
	require.Len(t, delays, 3)
	for _, d := range delays {
		assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	}
	assert.Equal(t, session.Stopped, h.ctrl.State())
	assert.Equal(t, 0, h.ctrl.Position())

	ready, ok := h.events.last(session.EventReady)
	require.True(t, ok, "expected ready event")
	assert.Equal(t, 3, ready.Summary.Chars)
	assert.Equal(t, "Hi.", ready.Preview)

	ev, ok := h.events.last(session.EventCompleted)
	require.True(t, ok, "expected completed event")
	assert.Equal(t, 3, ev.Typed)
	require.NotNil(t, ev.Stats)
	assert.Equal(t, model.OutcomeCompleted, ev.Stats.Outcome)
}

func TestControlKeysAndCarriageReturn(t *testing.T) {
	h := newHarness(t, "a\r\n\tb")
	// Normalize keeps the tab indent on the second line.
	require.NoError(t, h.ctrl.Start(context.Background(), 0))
	require.NoError(t, h.ctrl.Wait())

	h.em.mu.Lock()
	keys := append([]string(nil), h.em.keys...)
	h.em.mu.Unlock()
	assert.Equal(t, []string{"a", "<enter>", "<tab>", "b"}, keys)
}

func TestPauseHoldsEmissionUntilResume(t *testing.T) {
	text := text200()
	require.Len(t, []rune(text), 200)
	h := newHarness(t, text)
	ctx := context.Background()

	pauseErr := make(chan error, 1)
	h.em.hook = func(n int) {
		if n == 50 {
			pauseErr <- h.ctrl.Pause()
		}
	}
	require.NoError(t, h.ctrl.Start(ctx, 0))
	require.NoError(t, <-pauseErr)

	waitFor(t, func() bool { return h.ctrl.Position() == 50 })
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, session.Paused, h.ctrl.State())
	assert.Equal(t, 50, h.em.count(), "no characters while paused")

	assert.ErrorIs(t, h.ctrl.Pause(), session.ErrInvalidCommand)

	require.NoError(t, h.ctrl.Resume(ctx))
	require.NoError(t, h.ctrl.Wait())

	got := h.em.typed()
	assert.Equal(t, text, got)
	assert.Equal(t, rune(text[50]), []rune(got)[50])
	_, ok := h.events.last(session.EventResumed)
	assert.True(t, ok)
}

func TestStopPreservesPositionAndStartResumes(t *testing.T) {
	text := text200()
	h := newHarness(t, text)
	ctx := context.Background()

	h.em.hook = func(n int) {
		if n == 30 {
			_ = h.ctrl.Stop()
		}
	}
	require.NoError(t, h.ctrl.Start(ctx, 0))
	require.NoError(t, h.ctrl.Wait())

	assert.Equal(t, session.Stopped, h.ctrl.State())
	assert.Equal(t, 30, h.ctrl.Position())
	assert.Equal(t, text[:30], h.em.typed())
	ev, ok := h.events.last(session.EventStopped)
	require.True(t, ok)
	assert.Equal(t, model.OutcomeStopped, ev.Stats.Outcome)

	h.em.reset()
	require.NoError(t, h.ctrl.Start(ctx, 0))
	require.NoError(t, h.ctrl.Wait())

	got := h.em.typed()
	require.NotEmpty(t, got)
	assert.Equal(t, text[30], got[0])
	assert.Equal(t, text[30:], got)
	assert.Equal(t, 0, h.ctrl.Position())
}

func TestStopWhilePaused(t *testing.T) {
	h := newHarness(t, text200())
	ctx := context.Background()

	h.em.hook = func(n int) {
		if n == 10 {
			_ = h.ctrl.Pause()
		}
	}
	require.NoError(t, h.ctrl.Start(ctx, 0))
	waitFor(t, func() bool { return h.ctrl.Position() == 10 })
	require.NoError(t, h.ctrl.Stop())
	require.NoError(t, h.ctrl.Wait())

	assert.Equal(t, session.Stopped, h.ctrl.State())
	assert.Equal(t, 10, h.ctrl.Position())
	assert.ErrorIs(t, h.ctrl.Stop(), session.ErrInvalidCommand)
}

func TestEmptyTextRejected(t *testing.T) {
	for _, text := range []string{"", "  \n\t  "} {
		h := newHarness(t, text)
		err := h.ctrl.Start(context.Background(), 0)
		assert.ErrorIs(t, err, session.ErrInputUnavailable)
		assert.Equal(t, session.Stopped, h.ctrl.State())
		assert.Equal(t, 0, h.em.count())
		_, ok := h.events.last(session.EventRejected)
		assert.True(t, ok)
	}

	h := newHarness(t, "")
	h.src.err = errors.New("clipboard locked")
	assert.ErrorIs(t, h.ctrl.Start(context.Background(), 0), session.ErrInputUnavailable)
	assert.Equal(t, 0, h.em.count())
}

func TestStartRejectedWhileRunning(t *testing.T) {
	h := newHarness(t, text200())
	ctx := context.Background()

	release := make(chan struct{})
	h.em.hook = func(n int) {
		if n == 1 {
			<-release
		}
	}
	require.NoError(t, h.ctrl.Start(ctx, 0))
	assert.Equal(t, session.Active, h.ctrl.State())
	assert.ErrorIs(t, h.ctrl.Start(ctx, 0), session.ErrAlreadyRunning)
	assert.ErrorIs(t, h.ctrl.Resume(ctx), session.ErrAlreadyRunning)
	close(release)
	require.NoError(t, h.ctrl.Wait())
}

func TestInvalidCommandsWhenStopped(t *testing.T) {
	h := newHarness(t, "abc")
	assert.ErrorIs(t, h.ctrl.Pause(), session.ErrInvalidCommand)
	assert.ErrorIs(t, h.ctrl.Stop(), session.ErrInvalidCommand)
	assert.Equal(t, session.Stopped, h.ctrl.State())
}

func TestResumeFromStoppedStarts(t *testing.T) {
	h := newHarness(t, "abc")
	require.NoError(t, h.ctrl.Resume(context.Background()))
	require.NoError(t, h.ctrl.Wait())
	assert.Equal(t, "abc", h.em.typed())
}

func TestEmissionFailureStopsRun(t *testing.T) {
	h := newHarness(t, text200())
	h.em.failAt = 10
	require.NoError(t, h.ctrl.Start(context.Background(), 0))

	err := h.ctrl.Wait()
	assert.ErrorIs(t, err, session.ErrEmission)
	assert.Equal(t, session.Stopped, h.ctrl.State())
	assert.Equal(t, 9, h.ctrl.Position())

	ev, ok := h.events.last(session.EventFailed)
	require.True(t, ok)
	assert.ErrorIs(t, ev.Err, session.ErrEmission)
	assert.Equal(t, model.OutcomeFailed, ev.Stats.Outcome)
}

func TestChangedTextStartsOver(t *testing.T) {
	h := newHarness(t, text200())
	ctx := context.Background()
	h.em.hook = func(n int) {
		if n == 20 {
			_ = h.ctrl.Stop()
		}
	}
	require.NoError(t, h.ctrl.Start(ctx, 0))
	require.NoError(t, h.ctrl.Wait())
	require.Equal(t, 20, h.ctrl.Position())

	h.em.reset()
	h.src.set("something else entirely")
	require.NoError(t, h.ctrl.Start(ctx, 0))
	require.NoError(t, h.ctrl.Wait())
	assert.Equal(t, "something else entirely", h.em.typed())
}

func TestCheckpointSurvivesNewController(t *testing.T) {
	text := text200()
	cps := newMemCheckpoints()
	withCheckpoints := func(o *session.Options) { o.Checkpoints = cps }

	first := newHarness(t, text, withCheckpoints)
	first.em.hook = func(n int) {
		if n == 42 {
			_ = first.ctrl.Stop()
		}
	}
	require.NoError(t, first.ctrl.Start(context.Background(), 0))
	require.NoError(t, first.ctrl.Wait())

	second := newHarness(t, text, withCheckpoints)
	require.NoError(t, second.ctrl.Start(context.Background(), 0))
	require.NoError(t, second.ctrl.Wait())
	assert.Equal(t, text[42:], second.em.typed())

	_, ok, err := cps.LoadCheckpoint(context.Background(), session.TextHash(text))
	require.NoError(t, err)
	assert.False(t, ok, "completion clears the checkpoint")
}

func TestResetForgetsPosition(t *testing.T) {
	h := newHarness(t, text200())
	ctx := context.Background()
	h.em.hook = func(n int) {
		if n == 5 {
			_ = h.ctrl.Stop()
		}
	}
	require.NoError(t, h.ctrl.Start(ctx, 0))
	require.NoError(t, h.ctrl.Wait())
	require.NoError(t, h.ctrl.Reset(ctx))
	assert.Equal(t, 0, h.ctrl.Position())
}

func TestResetWhileStoppedLoopDrains(t *testing.T) {
	text := text200()
	cps := newMemCheckpoints()
	h := newHarness(t, text, func(o *session.Options) {
		o.Checkpoints = cps
		o.CheckpointEvery = 5
	})
	ctx := context.Background()
	stopped := make(chan struct{})
	release := make(chan struct{})
	h.em.hook = func(n int) {
		if n == 5 {
			_ = h.ctrl.Stop()
			close(stopped)
			<-release
		}
	}
	require.NoError(t, h.ctrl.Start(ctx, 0))
	<-stopped
	require.NoError(t, h.ctrl.Reset(ctx))
	close(release)
	require.NoError(t, h.ctrl.Wait())

	assert.Equal(t, 0, h.ctrl.Position())
	_, ok, err := cps.LoadCheckpoint(ctx, session.TextHash(text))
	require.NoError(t, err)
	assert.False(t, ok, "reset drops the checkpoint")

	ev, ok := h.events.last(session.EventStopped)
	require.True(t, ok)
	assert.Equal(t, 0, ev.Position)
	require.NotNil(t, ev.Stats)
	assert.Equal(t, 5, ev.Stats.EndPosition)

	h.em.reset()
	require.NoError(t, h.ctrl.Start(ctx, 0))
	require.NoError(t, h.ctrl.Wait())
	assert.Equal(t, text, h.em.typed())
}

func TestStopDuringFinalDelayIsNotCompletion(t *testing.T) {
	cps := newMemCheckpoints()
	h := newHarness(t, "Hi.", func(o *session.Options) { o.Checkpoints = cps })
	ctx := context.Background()
	h.em.hook = func(n int) {
		if n == 3 {
			_ = h.ctrl.Stop()
		}
	}
	require.NoError(t, h.ctrl.Start(ctx, 0))
	require.NoError(t, h.ctrl.Wait())

	_, ok := h.events.last(session.EventCompleted)
	assert.False(t, ok, "stopped run must not report completion")
	ev, ok := h.events.last(session.EventStopped)
	require.True(t, ok)
	require.NotNil(t, ev.Stats)
	assert.Equal(t, model.OutcomeStopped, ev.Stats.Outcome)
	assert.Equal(t, 3, ev.Stats.EndPosition)

	_, ok, err := cps.LoadCheckpoint(ctx, session.TextHash("Hi."))
	require.NoError(t, err)
	assert.False(t, ok, "nothing left to resume")

	h.em.reset()
	require.NoError(t, h.ctrl.Start(ctx, 0))
	require.NoError(t, h.ctrl.Wait())
	assert.Equal(t, "Hi.", h.em.typed())
}

func TestCountdownReportsEachSecond(t *testing.T) {
	h := newHarness(t, "ok", func(o *session.Options) { o.Countdown = 3 * time.Second })
	require.NoError(t, h.ctrl.Start(context.Background(), 0))
	require.NoError(t, h.ctrl.Wait())

	var counts []int
	h.events.mu.Lock()
	for _, ev := range h.events.events {
		if ev.Kind == session.EventCountdown {
			counts = append(counts, ev.Countdown)
		}
	}
	h.events.mu.Unlock()
	assert.Equal(t, []int{3, 2, 1}, counts)
}

func TestStopCancelsCountdown(t *testing.T) {
	h := newHarness(t, "ok", func(o *session.Options) {
		o.Countdown = time.Minute
		o.Sleep = func(ctx context.Context, d time.Duration) error {
			<-ctx.Done()
			return ctx.Err()
		}
	})
	errc := make(chan error, 1)
	go func() { errc <- h.ctrl.Start(context.Background(), 0) }()

	waitFor(t, func() bool {
		_, ok := h.events.last(session.EventCountdown)
		return ok
	})
	require.NoError(t, h.ctrl.Stop())
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, session.Stopped, h.ctrl.State())
	assert.Equal(t, 0, h.em.count())
}

func TestProgressEvents(t *testing.T) {
	h := newHarness(t, text200(), func(o *session.Options) { o.ProgressEvery = 50 })
	require.NoError(t, h.ctrl.Start(context.Background(), 0))
	require.NoError(t, h.ctrl.Wait())

	var progress []session.Event
	h.events.mu.Lock()
	for _, ev := range h.events.events {
		if ev.Kind == session.EventProgress {
			progress = append(progress, ev)
		}
	}
	h.events.mu.Unlock()
	require.Len(t, progress, 3)
	assert.InDelta(t, 25.0, progress[0].Percent, 0.01)
	assert.Equal(t, 150, progress[2].Position)
}

func TestCarriageReturnDoesNotRepeatProgress(t *testing.T) {
	text := strings.Repeat("a", 50) + "\r" + strings.Repeat("b", 20)
	h := newHarness(t, text, func(o *session.Options) { o.ProgressEvery = 50 })
	require.NoError(t, h.ctrl.Start(context.Background(), 0))
	require.NoError(t, h.ctrl.Wait())

	var progress []session.Event
	h.events.mu.Lock()
	for _, ev := range h.events.events {
		if ev.Kind == session.EventProgress {
			progress = append(progress, ev)
		}
	}
	h.events.mu.Unlock()
	require.Len(t, progress, 1)
	assert.Equal(t, 50, progress[0].Typed)
	assert.Equal(t, strings.Repeat("a", 50)+strings.Repeat("b", 20), h.em.typed())
}

func TestTypoDetourPrecedesCharacter(t *testing.T) {
	h := newHarness(t, "abc", func(o *session.Options) { o.Params.TypoChance = 1 })
	require.NoError(t, h.ctrl.Start(context.Background(), 0))
	require.NoError(t, h.ctrl.Wait())

	h.em.mu.Lock()
	keys := append([]string(nil), h.em.keys...)
	h.em.mu.Unlock()
	require.Len(t, keys, 9)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, "<backspace>", keys[i*3+1])
		assert.Equal(t, want, keys[i*3+2])
	}
	ev, ok := h.events.last(session.EventCompleted)
	require.True(t, ok)
	assert.Equal(t, 3, ev.Typos)
	assert.Equal(t, 3, ev.Typed)
}
