package sercos3

import (
	"log/slog"
	"sync"
)

type subscriber struct {
	id       uint64
	port     *Port // nil = all ports
	callback TelegramListener
}

// RingManager wraps the two-port Ring transport and fans received
// telegrams out to registered listeners. Single-writer: only the master
// core calls Send; the ring/IP-core delivers received telegrams via
// Handle.
type RingManager struct {
	logger *slog.Logger
	mu     sync.Mutex
	ring   Ring

	byKind    map[TelegramKind][]subscriber
	nextSubID uint64
}

func NewRingManager(ring Ring) *RingManager {
	return &RingManager{
		ring:   ring,
		logger: slog.Default().With("service", "[RING]"),
		byKind: make(map[TelegramKind][]subscriber),
	}
}

// Handle implements TelegramListener: dispatches a received telegram to
// every subscriber registered for its kind (and, if set, its port).
func (rm *RingManager) Handle(t Telegram) {
	rm.mu.Lock()
	subs := append([]subscriber(nil), rm.byKind[t.Kind]...)
	rm.mu.Unlock()

	for _, s := range subs {
		if s.port != nil && *s.port != t.Port {
			continue
		}
		s.callback.Handle(t)
	}
}

func (rm *RingManager) SetRing(ring Ring) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.ring = ring
}

func (rm *RingManager) Ring() Ring {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.ring
}

// Send transmits a telegram on the underlying ring.
func (rm *RingManager) Send(t Telegram) error {
	ring := rm.Ring()
	if ring == nil {
		return ErrNotConnected
	}
	err := ring.Send(t)
	if err != nil {
		rm.logger.Warn("error sending telegram", "telegram", t, "err", err)
	}
	return err
}

// Subscribe registers a listener for every telegram of the given kind,
// optionally restricted to one port. Returns a cancel func.
func (rm *RingManager) Subscribe(kind TelegramKind, port *Port, listener TelegramListener) (cancel func()) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	id := rm.nextSubID
	rm.nextSubID++
	rm.byKind[kind] = append(rm.byKind[kind], subscriber{id: id, port: port, callback: listener})

	return func() {
		rm.mu.Lock()
		defer rm.mu.Unlock()
		subs := rm.byKind[kind]
		for i, s := range subs {
			if s.id == id {
				rm.byKind[kind] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}
