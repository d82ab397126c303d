package pourflow

import (
	"errors"
	"sync"
)

// ErrChannelAnnouncerClosed is reported by the channel announcer's Dropped
// counter once it has been closed.
var ErrChannelAnnouncerClosed = errors.New("pourflow: channel announcer closed")

// AnnounceFunc receives one user-visible message.
type AnnounceFunc func(text string)

// NewCallbackAnnouncer adapts a function into an Announcer so callers can
// plug a display or speech engine without defining structs.
func NewCallbackAnnouncer(fn AnnounceFunc) Announcer {
	return callbackAnnouncer{fn: fn}
}

// NewChannelAnnouncer exposes announcements via a channel; it returns the
// announcer, the read-only channel, and a close function that the caller
// should invoke during shutdown. When the buffer is full the message is
// dropped rather than stalling a dispense.
func NewChannelAnnouncer(buffer int) (*ChannelAnnouncer, <-chan string, func()) {
	if buffer < 0 {
		buffer = 0
	}
	a := &ChannelAnnouncer{
		ch:     make(chan string, buffer),
		closed: make(chan struct{}),
	}
	return a, a.ch, a.close
}

type callbackAnnouncer struct {
	fn AnnounceFunc
}

func (a callbackAnnouncer) Announce(text string) {
	if a.fn != nil {
		a.fn(text)
	}
}

type ChannelAnnouncer struct {
	mu      sync.Mutex
	ch      chan string
	closed  chan struct{}
	once    sync.Once
	dropped int
	err     error
}

func (a *ChannelAnnouncer) Announce(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	select {
	case <-a.closed:
		a.dropped++
		a.err = ErrChannelAnnouncerClosed
		return
	default:
	}

	select {
	case a.ch <- text:
	default:
		a.dropped++
	}
}

// Dropped reports how many messages were lost and, once closed, why.
func (a *ChannelAnnouncer) Dropped() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped, a.err
}

func (a *ChannelAnnouncer) close() {
	a.once.Do(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		close(a.closed)
		close(a.ch)
	})
}
