// Package events is the process-wide broadcast bus. It decouples the
// transport layer, which detects authentication loss, from the stores that
// own user-facing state.
package events

import "sync"

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityError
)

// Notice is a transient user-facing message, the toast analog.
type Notice struct {
	Title       string
	Description string
	Severity    Severity
}

// Bus fans out the authentication-lost signal and notices to subscribers.
// Handlers run synchronously on the publisher's goroutine, outside the bus
// lock.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	authLost map[int]func()
	notices  map[int]func(Notice)
}

func NewBus() *Bus {
	return &Bus{
		authLost: make(map[int]func()),
		notices:  make(map[int]func(Notice)),
	}
}

// SubscribeAuthLost registers fn for the authentication-lost broadcast and
// returns a cancel func removing the subscription.
func (b *Bus) SubscribeAuthLost(fn func()) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.authLost[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.authLost, id)
		b.mu.Unlock()
	}
}

// PublishAuthLost broadcasts the no-payload authentication-lost signal.
func (b *Bus) PublishAuthLost() {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.authLost))
	for _, fn := range b.authLost {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (b *Bus) SubscribeNotices(fn func(Notice)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.notices[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.notices, id)
		b.mu.Unlock()
	}
}

func (b *Bus) Notify(n Notice) {
	b.mu.Lock()
	fns := make([]func(Notice), 0, len(b.notices))
	for _, fn := range b.notices {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(n)
	}
}
