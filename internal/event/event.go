package event

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultPoolSize   = 1000
	defaultTimeout    = 30 * time.Second
	defaultBufferSize = 32
)

// Event is anything published on the bus. SessionKey routes it to subscribers.
type Event interface {
	Name() string
	SessionKey() string
}

// Handler receives every published event, asynchronously.
type Handler func(ctx context.Context, e Event) error

// Envelope is the wire shape used when an event leaves the process.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Wrap builds the wire envelope for e.
func Wrap(e Event) Envelope {
	return Envelope{Event: e.Name(), Data: e}
}

// Subscription delivers one session's events until closed.
type Subscription struct {
	C <-chan Event

	ch        chan Event
	id        uint64
	sessionID string
	bus       *Bus
	once      sync.Once
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
	})
}

// Bus is an in-memory per-session publish/subscribe hub.
type Bus struct {
	mu       sync.RWMutex
	subs     map[string]map[uint64]*Subscription
	handlers []Handler
	nextID   uint64
	buffer   int

	pool chan struct{}
	wg   sync.WaitGroup
	log  zerolog.Logger
}

// NewBus creates a new event bus. Caller should call Stop for graceful shutdown the bus.
func NewBus(bufferSize int, log zerolog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Bus{
		subs:   make(map[string]map[uint64]*Subscription),
		buffer: bufferSize,
		pool:   make(chan struct{}, defaultPoolSize),
		log:    log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe attaches a buffered listener to one session's events.
func (b *Bus) Subscribe(sessionID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ch := make(chan Event, b.buffer)
	sub := &Subscription{C: ch, ch: ch, id: b.nextID, sessionID: sessionID, bus: b}

	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[uint64]*Subscription)
	}
	b.subs[sessionID][sub.id] = sub
	return sub
}

// Handle registers h for every event regardless of session.
func (b *Bus) Handle(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = append(b.handlers, h)
}

// Publish fans e out to the session's subscribers and the global handlers.
// A full subscriber buffer loses its oldest event, never the newest.
// Handlers are dispatched after the lock is released, since a saturated
// pool blocks dispatch until a slot frees up.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	for _, sub := range b.subs[e.SessionKey()] {
		deliver(sub.ch, e)
	}
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, h, e)
	}
}

func deliver(ch chan Event, e Event) {
	select {
	case ch <- e:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- e:
	default:
	}
}

// CloseSession closes every subscription of a session so readers see the end of the stream.
func (b *Bus) CloseSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs[sessionID] {
		close(sub.ch)
		delete(b.subs[sessionID], id)
	}
	delete(b.subs, sessionID)
}

// Subscribers returns how many listeners a session currently has.
func (b *Bus) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs[sessionID])
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[sub.sessionID]
	if !ok {
		return
	}
	if _, ok := set[sub.id]; !ok {
		return
	}
	close(sub.ch)
	delete(set, sub.id)
	if len(set) == 0 {
		delete(b.subs, sub.sessionID)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, e Event) {
	b.wg.Add(1)

	b.pool <- struct{}{}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultTimeout)
		defer func() {
			if r := recover(); r != nil {
				b.log.Error().
					Err(fmt.Errorf("%v, stack: %s", r, debug.Stack())).
					Str("event", e.Name()).
					Msg("Handler panic")
			}

			cancel()
			<-b.pool
			b.wg.Done()
		}()

		if err := h(ctx, e); err != nil {
			b.log.Error().Err(err).
				Str("event", e.Name()).
				Str("session_id", e.SessionKey()).
				Msg("Handle event failed")
		}
	}()
}

// Stop waits for all handlers to finish
func (b *Bus) Stop() {
	b.wg.Wait()
}
