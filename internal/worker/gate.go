package worker

import (
	"errors"
	"sync"
)

// ErrBusy is returned when every analysis slot is taken.
var ErrBusy = errors.New("server is busy, please retry")

// Gate bounds how many analyses run at once in this process. Acquisition never
// queues: the workflow blocks a request for the whole remote round-trip, so a
// waiting caller is turned away instead.
type Gate struct {
	slots chan struct{}
}

// NewGate returns a gate with size slots (at least one).
func NewGate(size int) *Gate {
	if size <= 0 {
		size = 1
	}
	return &Gate{slots: make(chan struct{}, size)}
}

// TryAcquire takes a slot or fails with ErrBusy. The returned release func is
// safe to call more than once.
func (g *Gate) TryAcquire() (func(), error) {
	select {
	case g.slots <- struct{}{}:
	default:
		return nil, ErrBusy
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-g.slots })
	}, nil
}

// InFlight reports the number of held slots.
func (g *Gate) InFlight() int {
	return len(g.slots)
}
