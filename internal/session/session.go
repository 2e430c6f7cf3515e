package session

import (
	"context"
	"sync"
	"time"

	"tether/internal/api"

	"github.com/google/uuid"
)

// Status is the session's turn state.
type Status string

const (
	// StatusIdle means no turn is active.
	StatusIdle Status = "idle"
	// StatusGenerating means the agent is producing a reply.
	StatusGenerating Status = "generating"
	// StatusExecuting means a tool round is in flight.
	StatusExecuting Status = "executing"
	// StatusClosed is terminal.
	StatusClosed Status = "closed"
)

// Session is one conversation's state. Provider is fixed at creation. All
// methods are safe for concurrent use; turn execution itself is serialized
// by the status flag.
type Session struct {
	ID        string
	Provider  string
	CreatedAt time.Time

	queue *Queue

	mu         sync.Mutex
	status     Status
	history    []api.Message
	notes      []string
	turnCancel context.CancelFunc
}

// New creates an idle session bound to the given provider.
func New(provider string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Provider:  provider,
		CreatedAt: time.Now(),
		queue:     NewQueue(),
		status:    StatusIdle,
	}
}

// Queue returns the session's pending unit queue.
func (s *Session) Queue() *Queue {
	return s.queue
}

// Status returns the current turn state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// TryBeginTurn claims the active-turn flag. It fails when a turn is
// already running or the session is closed; exactly one caller wins per
// idle period.
func (s *Session) TryBeginTurn(cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusIdle {
		return false
	}
	s.status = StatusGenerating
	s.turnCancel = cancel
	return true
}

// MarkExecuting transitions the active turn into the tool round phase.
func (s *Session) MarkExecuting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusGenerating {
		s.status = StatusExecuting
	}
}

// EndTurn releases the active-turn flag.
func (s *Session) EndTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusGenerating || s.status == StatusExecuting {
		s.status = StatusIdle
	}
	s.turnCancel = nil
}

// CancelTurn aborts the active turn, if any. Already-issued tool calls are
// not recalled; the turn loop discards their results.
func (s *Session) CancelTurn() bool {
	s.mu.Lock()
	cancel := s.turnCancel
	s.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Close cancels any active turn and marks the session terminal.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.turnCancel
	s.status = StatusClosed
	s.turnCancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	return s.Status() == StatusClosed
}

// AppendHistory records a transcript entry. Entries are immutable once
// appended.
func (s *Session) AppendHistory(msg api.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
}

// History returns a copy of the transcript.
func (s *Session) History() []api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Message, len(s.history))
	copy(out, s.history)
	return out
}

// AddNote queues a capability-change note for delivery with the next
// history entry the model sees.
func (s *Session) AddNote(note string) {
	if note == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, note)
}

// TakeNotes returns and clears the pending notes.
func (s *Session) TakeNotes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes := s.notes
	s.notes = nil
	return notes
}
