package service

import "sync"

// sessionLocks serializes mutations per session in arrival order. Entries are
// dropped once nobody holds or waits for them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*ticketLock
}

type ticketLock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64
	serving uint64
	refs    int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*ticketLock)}
}

// Lock blocks until the caller's turn for sessionID and returns the release func.
func (l *sessionLocks) Lock(sessionID string) func() {
	l.mu.Lock()
	tl, ok := l.locks[sessionID]
	if !ok {
		tl = &ticketLock{}
		tl.cond = sync.NewCond(&tl.mu)
		l.locks[sessionID] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()
	ticket := tl.next
	tl.next++
	for tl.serving != ticket {
		tl.cond.Wait()
	}
	tl.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { l.release(sessionID, tl) })
	}
}

func (l *sessionLocks) release(sessionID string, tl *ticketLock) {
	tl.mu.Lock()
	tl.serving++
	tl.cond.Broadcast()
	tl.mu.Unlock()

	l.mu.Lock()
	tl.refs--
	if tl.refs == 0 {
		delete(l.locks, sessionID)
	}
	l.mu.Unlock()
}

func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
