package progress

import "sync"

// Event carries a single build progress update.
type Event struct {
	Percentage int
	Message    string
}

// Publisher accepts progress events from the active build path.
type Publisher interface {
	Publish(percentage int, message string)
}

// Func adapts a plain function to a Publisher.
type Func func(percentage int, message string)

// Publish calls f.
func (f Func) Publish(percentage int, message string) {
	f(percentage, message)
}

// Discard swallows every event. Used when the caller supplies no sink.
var Discard Publisher = Func(func(int, string) {})

// Reporter delivers events over a buffered channel so the build can run on
// a different goroutine than the observer rendering updates. It is written
// to by a single producer; delivery preserves production order and never
// drops events. Percentages are clamped so consumers always observe a
// non-decreasing sequence.
type Reporter struct {
	mu     sync.Mutex
	events chan Event
	last   int
	closed bool
}

// NewReporter constructs a Reporter with the given channel buffer size.
// A non-positive buffer size falls back to a sensible default.
func NewReporter(buffer int) *Reporter {
	if buffer <= 0 {
		buffer = 64
	}
	return &Reporter{events: make(chan Event, buffer)}
}

// Events returns the channel the consumer drains. The channel is closed by
// Close once the build reaches a terminal state.
func (r *Reporter) Events() <-chan Event {
	return r.events
}

// Publish forwards an event to the consumer. Publishing after Close is a
// no-op rather than a panic so late path goroutines cannot crash the build.
func (r *Reporter) Publish(percentage int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if percentage < r.last {
		percentage = r.last
	}
	if percentage > 100 {
		percentage = 100
	}
	r.last = percentage
	r.events <- Event{Percentage: percentage, Message: message}
}

// Last reports the highest percentage published so far.
func (r *Reporter) Last() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Close marks the stream terminal and closes the event channel.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.events)
}
