package session

import (
	"context"
	"sync"
	"testing"

	"tether/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	q.Enqueue(Unit{UserText: "first"})
	q.Enqueue(Unit{AutoContinue: true})
	q.Enqueue(Unit{UserText: "second"})

	unit, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "first", unit.UserText)

	unit, ok = q.Dequeue()
	require.True(t, ok)
	assert.True(t, unit.AutoContinue)

	unit, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "second", unit.UserText)

	_, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestQueueSignalCoalesces(t *testing.T) {
	q := NewQueue()
	q.Enqueue(Unit{UserText: "a"})
	q.Enqueue(Unit{UserText: "b"})

	// One token may cover both units; the loop drains until empty.
	<-q.Signal()
	assert.Equal(t, 2, q.Len())

	select {
	case <-q.Signal():
		t.Fatal("signal channel should hold at most one token")
	default:
	}
}

func TestTryBeginTurnIsExclusive(t *testing.T) {
	s := New("anthropic")

	require.True(t, s.TryBeginTurn(func() {}))
	assert.Equal(t, StatusGenerating, s.Status())

	// A second claim fails while the turn is active, in either phase.
	assert.False(t, s.TryBeginTurn(func() {}))
	s.MarkExecuting()
	assert.Equal(t, StatusExecuting, s.Status())
	assert.False(t, s.TryBeginTurn(func() {}))

	s.EndTurn()
	assert.Equal(t, StatusIdle, s.Status())
	assert.True(t, s.TryBeginTurn(func() {}))
}

func TestTryBeginTurnUnderContention(t *testing.T) {
	s := New("anthropic")

	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryBeginTurn(func() {}) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
}

func TestCancelTurn(t *testing.T) {
	s := New("anthropic")
	assert.False(t, s.CancelTurn())

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, s.TryBeginTurn(cancel))

	require.True(t, s.CancelTurn())
	assert.Error(t, ctx.Err())
}

func TestCloseRejectsNewTurns(t *testing.T) {
	s := New("anthropic")
	s.Close()

	assert.True(t, s.Closed())
	assert.False(t, s.TryBeginTurn(func() {}))
}

func TestHistoryIsCopied(t *testing.T) {
	s := New("anthropic")
	s.AppendHistory(api.Message{Role: api.RoleUser, Content: "hello"})

	history := s.History()
	history[0].Content = "mutated"

	assert.Equal(t, "hello", s.History()[0].Content)
}

func TestNotesAccumulateAndClear(t *testing.T) {
	s := New("anthropic")
	s.AddNote("Server capabilities changed. Tools: added unlock_chest.")
	s.AddNote("")

	notes := s.TakeNotes()
	require.Len(t, notes, 1)
	assert.Empty(t, s.TakeNotes())
}
