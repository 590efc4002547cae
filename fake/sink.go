// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"

	"github.com/momentics/hioload-ofd/event"
)

// Posted is one recorded post.
type Posted struct {
	Event event.Event
	Opts  event.PostOptions
}

// Sink records every post in order.
type Sink struct {
	mu    sync.Mutex
	posts []Posted
}

func (s *Sink) Post(ev event.Event, opts event.PostOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, Posted{Event: ev, Opts: opts})
}

// Posts returns a copy of the recorded posts.
func (s *Sink) Posts() []Posted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Posted(nil), s.posts...)
}

// OfKind returns the recorded posts of kind k.
func (s *Sink) OfKind(k event.Kind) []Posted {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Posted
	for _, p := range s.posts {
		if p.Event.Kind() == k {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of recorded posts.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

var _ event.Sink = (*Sink)(nil)
