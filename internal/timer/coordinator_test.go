package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/event"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type fakeTicker struct {
	c chan time.Time
}

func (f *fakeTicker) C() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop()               {}

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (f *tickerFactory) New(time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{c: make(chan time.Time)}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *tickerFactory) Tick(t *testing.T, i int) {
	t.Helper()
	var tk *fakeTicker
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		if len(f.tickers) > i {
			tk = f.tickers[i]
			return true
		}
		return false
	}, time.Second, time.Millisecond)
	select {
	case tk.c <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("tick not consumed")
	}
}

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(_ context.Context, e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) named(name string) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, e := range r.events {
		if e.Name() == name {
			out = append(out, e)
		}
	}
	return out
}

func newTestCoordinator() (*Coordinator, *fakeClock, *tickerFactory, *recorder) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	tickers := &tickerFactory{}
	rec := &recorder{}
	c := NewCoordinator(Config{
		Tick:          time.Second,
		Publisher:     rec,
		Now:           clock.Now,
		NewTickerFunc: tickers.New,
		Log:           zerolog.Nop(),
	})
	return c, clock, tickers, rec
}

func TestCoordinator_PauseResumeAccounting(t *testing.T) {
	c, clock, _, _ := newTestCoordinator()
	defer c.Shutdown()

	require.NoError(t, c.Start(Anchor{SessionID: "s1", Total: 300 * time.Second, StartedAt: clock.Now()}))

	clock.Advance(10 * time.Second)
	rem, err := c.Pause("s1")
	require.NoError(t, err)
	assert.Equal(t, 290*time.Second, rem)

	clock.Advance(30 * time.Second)
	rem, ok := c.Remaining("s1")
	require.True(t, ok)
	assert.Equal(t, 290*time.Second, rem, "paused clock must not move")

	_, err = c.Resume("s1")
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	rem, _ = c.Remaining("s1")
	assert.Equal(t, 280*time.Second, rem)
}

func TestCoordinator_MultiplePauseCycles(t *testing.T) {
	c, clock, _, _ := newTestCoordinator()
	defer c.Shutdown()

	require.NoError(t, c.Start(Anchor{SessionID: "s1", Total: 300 * time.Second, StartedAt: clock.Now()}))

	// pause 5..15 and 20..40: 30s paused in total
	clock.Advance(5 * time.Second)
	_, err := c.Pause("s1")
	require.NoError(t, err)
	clock.Advance(10 * time.Second)
	_, err = c.Resume("s1")
	require.NoError(t, err)
	clock.Advance(5 * time.Second)
	_, err = c.Pause("s1")
	require.NoError(t, err)
	clock.Advance(20 * time.Second)
	_, err = c.Resume("s1")
	require.NoError(t, err)
	clock.Advance(10 * time.Second)

	rem, _ := c.Remaining("s1")
	assert.Equal(t, 280*time.Second, rem)
}

func TestCoordinator_PauseIsolation(t *testing.T) {
	c, clock, _, _ := newTestCoordinator()
	defer c.Shutdown()

	require.NoError(t, c.Start(Anchor{SessionID: "a", Total: 300 * time.Second, StartedAt: clock.Now()}))
	require.NoError(t, c.Start(Anchor{SessionID: "b", Total: 300 * time.Second, StartedAt: clock.Now()}))

	clock.Advance(20 * time.Second)
	_, err := c.Pause("a")
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	_, err = c.Resume("a")
	require.NoError(t, err)

	remA, ok := c.Remaining("a")
	require.True(t, ok)
	remB, ok := c.Remaining("b")
	require.True(t, ok)
	assert.Equal(t, 4*time.Minute+40*time.Second, remA)
	assert.Equal(t, 4*time.Minute+10*time.Second, remB, "pausing a must not stop b")
}

func TestCoordinator_PauseResumeErrors(t *testing.T) {
	c, clock, _, _ := newTestCoordinator()
	defer c.Shutdown()

	_, err := c.Pause("missing")
	assert.ErrorIs(t, err, ErrTimerNotFound)

	require.NoError(t, c.Start(Anchor{SessionID: "s1", Total: time.Minute, StartedAt: clock.Now()}))
	assert.ErrorIs(t, c.Start(Anchor{SessionID: "s1", Total: time.Minute, StartedAt: clock.Now()}), ErrTimerExists)

	_, err = c.Resume("s1")
	assert.ErrorIs(t, err, ErrNotPaused)

	_, err = c.Pause("s1")
	require.NoError(t, err)
	_, err = c.Pause("s1")
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestCoordinator_TickBroadcastsWarningLevels(t *testing.T) {
	c, clock, tickers, rec := newTestCoordinator()
	defer c.Shutdown()

	require.NoError(t, c.Start(Anchor{SessionID: "s1", Total: 100 * time.Second, StartedAt: clock.Now()}))

	steps := map[time.Duration]model.WarningLevel{
		50 * time.Second: model.WarningLevelNormal,   // 50 left
		30 * time.Second: model.WarningLevelWarning,  // 20 left
		15 * time.Second: model.WarningLevelCritical, // 5 left
	}
	order := []time.Duration{50 * time.Second, 30 * time.Second, 15 * time.Second}

	for i, d := range order {
		clock.Advance(d)
		tickers.Tick(t, 0)
		require.Eventually(t, func() bool {
			return len(rec.named(model.EventNameTimerUpdate)) == i+1
		}, time.Second, time.Millisecond)
	}

	updates := rec.named(model.EventNameTimerUpdate)
	for i, d := range order {
		u := updates[i].(model.EventTimerUpdate)
		assert.Equal(t, steps[d], u.WarningLevel)
		assert.Equal(t, 100, u.TotalTime)
	}
	assert.Equal(t, 5, updates[2].(model.EventTimerUpdate).TimeRemaining)
}

func TestCoordinator_ExpiresExactlyOnce(t *testing.T) {
	c, clock, tickers, rec := newTestCoordinator()
	defer c.Shutdown()

	expired := make(chan string, 4)
	c.SetExpireHandler(func(ctx context.Context, sessionID string) {
		// the handler usually stops the timer itself
		c.Stop(sessionID)
		expired <- sessionID
	})

	require.NoError(t, c.Start(Anchor{SessionID: "s1", Total: 5 * time.Second, StartedAt: clock.Now()}))

	clock.Advance(6 * time.Second)
	tickers.Tick(t, 0)

	select {
	case id := <-expired:
		assert.Equal(t, "s1", id)
	case <-time.After(time.Second):
		t.Fatal("expire handler not called")
	}

	assert.Len(t, rec.named(model.EventNameTimeExpired), 1)
	assert.Equal(t, 0, c.Active())
	assert.False(t, c.Stop("s1"))

	select {
	case <-expired:
		t.Fatal("expired twice")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestCoordinator_PausedTimerDoesNotTick(t *testing.T) {
	c, clock, tickers, rec := newTestCoordinator()
	defer c.Shutdown()

	require.NoError(t, c.Start(Anchor{SessionID: "s1", Total: 5 * time.Second, StartedAt: clock.Now()}))
	_, err := c.Pause("s1")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	tickers.Tick(t, 0)
	tickers.Tick(t, 0)

	rem, ok := c.Remaining("s1")
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, rem)
	assert.Empty(t, rec.named(model.EventNameTimeExpired))
}

func TestCoordinator_StartFromRestoredAnchor(t *testing.T) {
	c, clock, _, _ := newTestCoordinator()
	defer c.Shutdown()

	started := clock.Now().Add(-100 * time.Second)
	pausedAt := clock.Now().Add(-10 * time.Second)

	require.NoError(t, c.Start(Anchor{
		SessionID: "s1",
		Total:     300 * time.Second,
		StartedAt: started,
		PausedFor: 20 * time.Second,
		PausedAt:  &pausedAt,
	}))

	st, ok := c.Snapshot("s1")
	require.True(t, ok)
	assert.Equal(t, StatusPaused, st.Status)
	// 90s elapsed until the pause, 20s of it was paused earlier
	assert.Equal(t, 230*time.Second, st.TimeRemaining)

	_, err := c.Resume("s1")
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	rem, _ := c.Remaining("s1")
	assert.Equal(t, 200*time.Second, rem)
}

func TestCoordinator_ShutdownRejectsNewTimers(t *testing.T) {
	c, clock, _, _ := newTestCoordinator()

	require.NoError(t, c.Start(Anchor{SessionID: "s1", Total: time.Minute, StartedAt: clock.Now()}))
	c.Shutdown()

	assert.Equal(t, 0, c.Active())
	assert.ErrorIs(t, c.Start(Anchor{SessionID: "s2", Total: time.Minute, StartedAt: clock.Now()}), ErrClosed)
}

func TestCoordinator_LazyExpire(t *testing.T) {
	c, clock, _, rec := newTestCoordinator()
	defer c.Shutdown()

	require.NoError(t, c.Start(Anchor{SessionID: "s1", Total: time.Minute, StartedAt: clock.Now()}))
	clock.Advance(2 * time.Minute)

	assert.True(t, c.Expire("s1", time.Minute))
	assert.Equal(t, 0, c.Active())

	expired := rec.named(model.EventNameTimeExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, model.EventTimeExpired{SessionID: "s1", TotalTime: 60}, expired[0])

	_, ok := c.Remaining("s1")
	assert.False(t, ok)
}
