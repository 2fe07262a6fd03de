// Package simhal provides a software loopback Ring, standing in for real
// Sercos hardware in tests and the CLI demo mode. It does not simulate
// slave devices; it only hands every sent telegram straight back to the
// subscriber, the same way a closed ring with zero slaves in it would.
package simhal

import (
	"sync"

	sercos3 "github.com/sercos3/master"
)

func init() {
	sercos3.RegisterRing("sim", NewRing)
}

// Ring is an in-process loopback: Send makes the telegram immediately
// visible to whatever listener Subscribe registered, on the same goroutine.
type Ring struct {
	mu       sync.Mutex
	listener sercos3.TelegramListener
	sent     []sercos3.Telegram
}

// NewRing builds a loopback Ring. The channel name is accepted for
// interface-registry symmetry with real backends but otherwise unused.
func NewRing(channel string) (sercos3.Ring, error) {
	return &Ring{}, nil
}

func (r *Ring) Connect(...any) error { return nil }
func (r *Ring) Disconnect() error    { return nil }

// Send immediately loops the telegram back to the subscribed listener and
// records it, so tests can assert on what the master transmitted.
func (r *Ring) Send(t sercos3.Telegram) error {
	r.mu.Lock()
	r.sent = append(r.sent, t)
	listener := r.listener
	r.mu.Unlock()
	if listener != nil {
		listener.Handle(t)
	}
	return nil
}

func (r *Ring) Subscribe(listener sercos3.TelegramListener) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = listener
	return nil
}

// Sent returns every telegram handed to Send so far, in order.
func (r *Ring) Sent() []sercos3.Telegram {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sercos3.Telegram, len(r.sent))
	copy(out, r.sent)
	return out
}
