package stream

import (
	"context"
	"sync"
	"sync/atomic"
)

// Listener kinds, as reported by Counts.
const (
	KindHTTP   = "http"
	KindWebRTC = "webrtc"
)

// ListenerBuffer is how many 20ms frames a listener may fall behind
// (~3 seconds) before frames are dropped for it.
const ListenerBuffer = 150

// Broadcaster fans the drone's PCM frames out to every connected listener.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	frames    atomic.Int64
}

// Listener receives PCM frames from the broadcaster. C is never closed;
// select on Done to notice unsubscription.
type Listener struct {
	Kind string
	C    chan []int16

	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Dropped returns how many frames were skipped because the listener was
// too slow.
func (l *Listener) Dropped() int64 {
	return l.dropped.Load()
}

func (l *Listener) offer(frame []int16) {
	select {
	case l.C <- frame:
	default:
		l.dropped.Add(1)
	}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[*Listener]struct{})}
}

// Subscribe registers a listener of the given kind.
func (b *Broadcaster) Subscribe(kind string) *Listener {
	l := &Listener{
		Kind: kind,
		C:    make(chan []int16, ListenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes l and closes its Done channel. Safe to call twice.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	delete(b.listeners, l)
	b.mu.Unlock()
	l.once.Do(func() { close(l.done) })
}

func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Counts returns the number of listeners per kind. HTTP and WebRTC are
// always present, possibly zero.
func (b *Broadcaster) Counts() map[string]int {
	counts := map[string]int{KindHTTP: 0, KindWebRTC: 0}
	b.mu.RLock()
	for l := range b.listeners {
		counts[l.Kind]++
	}
	b.mu.RUnlock()
	return counts
}

// Frames returns how many frames have been broadcast.
func (b *Broadcaster) Frames() int64 {
	return b.frames.Load()
}

// Run delivers every frame from source to all listeners until ctx is
// cancelled or source closes. A full listener loses the frame instead of
// holding up the others.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.mu.RLock()
			for l := range b.listeners {
				l.offer(frame)
			}
			b.mu.RUnlock()
			b.frames.Add(1)
		}
	}
}
