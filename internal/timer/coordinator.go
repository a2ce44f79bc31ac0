package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/event"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
	"github.com/rs/zerolog"
)

var (
	ErrTimerExists   = errors.New("timer already running for session")
	ErrTimerNotFound = errors.New("no timer for session")
	ErrNotRunning    = errors.New("timer is not running")
	ErrNotPaused     = errors.New("timer is not paused")
	ErrClosed        = errors.New("timer coordinator is shut down")
)

// Ticker is the subset of time.Ticker the coordinator relies on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

// Publisher receives timer_update and time_expired events.
type Publisher interface {
	Publish(ctx context.Context, e event.Event)
}

// ExpireFunc is invoked once, off the tick goroutine's lock, when a countdown reaches zero.
type ExpireFunc func(ctx context.Context, sessionID string)

// Status of a live countdown.
type Status string

const (
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
)

// State is a snapshot of one session's countdown.
type State struct {
	SessionID      string
	StartTime      time.Time
	TotalTime      time.Duration
	TimeRemaining  time.Duration
	Status         Status
	PauseStartTime *time.Time
}

// Anchor describes where a countdown starts from. A zero PausedFor and nil
// PausedAt mean a fresh session; restored sessions carry their history.
type Anchor struct {
	SessionID string
	Total     time.Duration
	StartedAt time.Time
	PausedFor time.Duration
	PausedAt  *time.Time
}

type Config struct {
	Tick          time.Duration
	Publisher     Publisher
	Now           func() time.Time
	NewTickerFunc func(d time.Duration) Ticker
	Log           zerolog.Logger
}

// Coordinator owns one countdown per timed session.
type Coordinator struct {
	tick      time.Duration
	publisher Publisher
	now       func() time.Time
	newTicker func(d time.Duration) Ticker
	log       zerolog.Logger

	mu       sync.Mutex
	timers   map[string]*sessionTimer
	onExpire ExpireFunc
	closed   bool
	wg       sync.WaitGroup
}

type sessionTimer struct {
	mu      sync.Mutex
	state   State
	expired bool

	stop     chan struct{}
	stopOnce sync.Once
}

func (st *sessionTimer) halt() {
	st.stopOnce.Do(func() { close(st.stop) })
}

func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewTickerFunc == nil {
		cfg.NewTickerFunc = NewTicker
	}
	return &Coordinator{
		tick:      cfg.Tick,
		publisher: cfg.Publisher,
		now:       cfg.Now,
		newTicker: cfg.NewTickerFunc,
		log:       cfg.Log.With().Str("component", "timer_coordinator").Logger(),
		timers:    make(map[string]*sessionTimer),
	}
}

// SetExpireHandler installs the callback run when a countdown reaches zero.
func (c *Coordinator) SetExpireHandler(fn ExpireFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onExpire = fn
}

// Start begins a countdown. The start time is shifted by PausedFor so that
// remaining = total - (now - start) holds without further bookkeeping.
func (c *Coordinator) Start(a Anchor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if _, ok := c.timers[a.SessionID]; ok {
		return ErrTimerExists
	}

	st := &sessionTimer{
		state: State{
			SessionID: a.SessionID,
			StartTime: a.StartedAt.Add(a.PausedFor),
			TotalTime: a.Total,
			Status:    StatusRunning,
		},
		stop: make(chan struct{}),
	}
	st.state.TimeRemaining = RemainingAt(a.Total, a.StartedAt, a.PausedFor, a.PausedAt, c.now())
	if a.PausedAt != nil {
		p := *a.PausedAt
		st.state.Status = StatusPaused
		st.state.PauseStartTime = &p
	}

	c.timers[a.SessionID] = st
	c.wg.Add(1)
	go c.run(st)

	c.log.Debug().
		Str("session_id", a.SessionID).
		Dur("remaining", st.state.TimeRemaining).
		Str("status", string(st.state.Status)).
		Msg("Timer started")
	return nil
}

// Pause freezes the countdown and returns what was left.
func (c *Coordinator) Pause(sessionID string) (time.Duration, error) {
	st, ok := c.get(sessionID)
	if !ok {
		return 0, ErrTimerNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.state.Status != StatusRunning {
		return st.state.TimeRemaining, ErrNotRunning
	}
	now := c.now()
	st.state.TimeRemaining = remaining(st.state, now)
	st.state.Status = StatusPaused
	st.state.PauseStartTime = &now
	return st.state.TimeRemaining, nil
}

// Resume restarts a paused countdown from where it stopped.
func (c *Coordinator) Resume(sessionID string) (time.Duration, error) {
	st, ok := c.get(sessionID)
	if !ok {
		return 0, ErrTimerNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.state.Status != StatusPaused {
		return remaining(st.state, c.now()), ErrNotPaused
	}
	now := c.now()
	st.state.StartTime = now.Add(-(st.state.TotalTime - st.state.TimeRemaining))
	st.state.Status = StatusRunning
	st.state.PauseStartTime = nil
	return st.state.TimeRemaining, nil
}

// Stop tears down a countdown. It is a no-op for unknown sessions and does
// not wait for the tick goroutine, so it is safe to call from ExpireFunc.
func (c *Coordinator) Stop(sessionID string) bool {
	c.mu.Lock()
	st, ok := c.timers[sessionID]
	if ok {
		delete(c.timers, sessionID)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	st.halt()
	return true
}

// Expire ends a countdown that a caller found at zero before its tick did and
// broadcasts time_expired, unless a tick already broadcast it. Sessions without
// a registered timer get the broadcast too. Reports whether it published.
func (c *Coordinator) Expire(sessionID string, total time.Duration) bool {
	c.mu.Lock()
	st, ok := c.timers[sessionID]
	if ok {
		delete(c.timers, sessionID)
	}
	c.mu.Unlock()

	if ok {
		st.mu.Lock()
		already := st.expired
		st.expired = true
		st.mu.Unlock()
		st.halt()
		if already {
			return false
		}
	}

	c.publish(model.EventTimeExpired{SessionID: sessionID, TotalTime: Seconds(total)})
	return true
}

// Remaining returns the live countdown for a session.
func (c *Coordinator) Remaining(sessionID string) (time.Duration, bool) {
	st, ok := c.get(sessionID)
	if !ok {
		return 0, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	return remaining(st.state, c.now()), true
}

// Snapshot returns a copy of a session's countdown state.
func (c *Coordinator) Snapshot(sessionID string) (State, bool) {
	st, ok := c.get(sessionID)
	if !ok {
		return State{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.state
	s.TimeRemaining = remaining(st.state, c.now())
	return s, true
}

// Active returns the number of live countdowns.
func (c *Coordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.timers)
}

// Shutdown stops every countdown and waits for the tick goroutines.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	c.closed = true
	timers := c.timers
	c.timers = make(map[string]*sessionTimer)
	c.mu.Unlock()

	for _, st := range timers {
		st.halt()
	}
	c.wg.Wait()
}

func (c *Coordinator) get(sessionID string) (*sessionTimer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.timers[sessionID]
	return st, ok
}

func remaining(s State, now time.Time) time.Duration {
	if s.Status == StatusPaused {
		return s.TimeRemaining
	}
	r := s.TotalTime - now.Sub(s.StartTime)
	if r < 0 {
		return 0
	}
	if r > s.TotalTime {
		return s.TotalTime
	}
	return r
}

func (c *Coordinator) run(st *sessionTimer) {
	defer c.wg.Done()

	ticker := c.newTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-st.stop:
			return
		case <-ticker.C():
			if c.onTick(st) {
				c.expire(st)
				return
			}
		}
	}
}

// onTick recomputes the countdown and broadcasts it. It reports true exactly
// once, on the tick that first observes zero.
func (c *Coordinator) onTick(st *sessionTimer) bool {
	st.mu.Lock()
	if st.state.Status != StatusRunning || st.expired {
		st.mu.Unlock()
		return false
	}
	rem := remaining(st.state, c.now())
	st.state.TimeRemaining = rem
	fired := rem <= 0
	if fired {
		st.expired = true
	}
	update := model.EventTimerUpdate{
		SessionID:     st.state.SessionID,
		TimeRemaining: Seconds(rem),
		TotalTime:     Seconds(st.state.TotalTime),
		WarningLevel:  WarningLevelFor(rem, st.state.TotalTime),
	}
	st.mu.Unlock()

	c.publish(update)
	if fired {
		c.publish(model.EventTimeExpired{
			SessionID: update.SessionID,
			TotalTime: update.TotalTime,
		})
	}
	return fired
}

// expire runs the handler while the timer is still registered, so Expire
// can tell that the broadcast already happened.
func (c *Coordinator) expire(st *sessionTimer) {
	sessionID := st.state.SessionID

	c.mu.Lock()
	fn := c.onExpire
	c.mu.Unlock()

	c.log.Info().Str("session_id", sessionID).Msg("Session time expired")

	if fn != nil {
		fn(context.Background(), sessionID)
	}

	c.mu.Lock()
	if cur, ok := c.timers[sessionID]; ok && cur == st {
		delete(c.timers, sessionID)
	}
	c.mu.Unlock()
	st.halt()
}

func (c *Coordinator) publish(e event.Event) {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(context.Background(), e)
}
