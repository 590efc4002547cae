// File: event/sink.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package event

// NoWorker is the Worker value of a post without a target hint.
const NoWorker = -1

// PostOptions qualifies a single post.
type PostOptions struct {
	// Worker is the downstream worker hint, or NoWorker.
	Worker int
	// NoTrigger records the event without running downstream triggers.
	NoTrigger bool
}

// DefaultPost posts without a worker hint and with triggers.
var DefaultPost = PostOptions{Worker: NoWorker}

// Sink accepts inbound events. Post must return promptly; delivery and
// ordering past the sink are the implementation's concern.
type Sink interface {
	Post(ev Event, opts PostOptions)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event, opts PostOptions)

func (f SinkFunc) Post(ev Event, opts PostOptions) { f(ev, opts) }

// Discard is a sink that drops everything.
var Discard Sink = SinkFunc(func(Event, PostOptions) {})
