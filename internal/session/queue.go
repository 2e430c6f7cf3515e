package session

import "sync"

// Unit is one atomic queue entry: either a user message or the follow-up
// produced by a completed tool round. A unit's Entry is appended to the
// agent's history in one piece; rounds never interleave with later input.
type Unit struct {
	// Entry is the provider-native history entry built by the session's
	// adapter.
	Entry any
	// UserText holds the original text for user-originated units.
	UserText string
	// AutoContinue marks the unit enqueued after a tool round; the turn
	// it triggers runs without fresh user input.
	AutoContinue bool
}

// Queue is the session's FIFO of pending units. Enqueue never blocks; the
// turn loop waits on Signal and drains with Dequeue.
type Queue struct {
	mu     sync.Mutex
	units  []Unit
	signal chan struct{}
}

func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Enqueue appends a unit and nudges the turn loop.
func (q *Queue) Enqueue(unit Unit) {
	q.mu.Lock()
	q.units = append(q.units, unit)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Dequeue pops the oldest unit.
func (q *Queue) Dequeue() (Unit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.units) == 0 {
		return Unit{}, false
	}
	unit := q.units[0]
	q.units = q.units[1:]
	return unit, true
}

// Signal returns the channel the turn loop waits on. One token may cover
// several enqueued units; the loop drains until Dequeue misses.
func (q *Queue) Signal() <-chan struct{} {
	return q.signal
}

// Len reports the number of pending units.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.units)
}
