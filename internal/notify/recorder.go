package notify

import (
	"context"
	"sync"
)

// Recorder keeps published messages in memory. Set Err to make every
// Publish fail.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

var _ Publisher = (*Recorder)(nil)

func (r *Recorder) Publish(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Messages returns a copy of what was published so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Types returns the routing keys published so far, in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Type
	}
	return out
}
