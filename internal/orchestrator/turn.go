package orchestrator

import (
	"context"
	"errors"
	"strings"

	"tether/internal/agent"
	"tether/internal/api"
	"tether/internal/protocol"
	"tether/internal/session"
	"tether/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// ErrTurnCancelled is delivered through the completion callback when a turn
// is aborted by a cancel request. It also answers any tool calls the model
// issued in the abandoned round.
var ErrTurnCancelled = errors.New("turn cancelled")

// runLoop is the session's turn loop goroutine. It drains the unit queue
// in FIFO order, one turn per unit.
func (m *Manager) runLoop(ctx context.Context, ms *managedSession) {
	defer close(ms.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ms.session.Queue().Signal():
			for {
				unit, ok := ms.session.Queue().Dequeue()
				if !ok {
					break
				}
				if ctx.Err() != nil {
					return
				}
				m.processTurn(ctx, ms, unit)
			}
		}
	}
}

// processTurn runs one full turn: claim the active-turn flag, refresh tool
// specs, generate, and if the reply requests tools, execute the round and
// enqueue the follow-up unit.
func (m *Manager) processTurn(loopCtx context.Context, ms *managedSession, unit session.Unit) {
	turnCtx, cancel := context.WithCancel(loopCtx)
	defer cancel()

	if !ms.session.TryBeginTurn(cancel) {
		logging.Warn("Orchestrator", "Session %s refused a turn in state %s", ms.session.ID, ms.session.Status())
		return
	}
	defer ms.session.EndTurn()

	sessionID := ms.session.ID

	snap, err := ms.conn.Snapshot(turnCtx)
	if err != nil {
		logging.Error("Orchestrator", err, "Session %s could not read capabilities", sessionID)
		m.completeWithError(sessionID, err)
		return
	}
	ms.recordSnapshot(snap)

	specs, err := ms.adapter.Tools.MapTools(snap)
	if err != nil {
		m.completeWithError(sessionID, err)
		return
	}

	ms.agentMu.Lock()
	ms.agent.SetTools(specs)
	// Notes recorded while the session was idle flush with whatever unit
	// comes next, not only with a tool round.
	if notes := ms.session.TakeNotes(); len(notes) > 0 {
		ms.agent.Append(ms.adapter.Content.ResultsMessage(nil, notes))
	}
	ms.agent.Append(unit.Entry)

	genCtx, genCancel := context.WithTimeout(turnCtx, m.cfg.AgentTimeout)
	reply, err := ms.agent.Generate(genCtx, &eventSink{manager: m, sessionID: sessionID})
	genCancel()
	ms.agentMu.Unlock()

	if err != nil {
		if turnCtx.Err() != nil {
			logging.Info("Orchestrator", "Session %s turn aborted", sessionID)
			m.completeWithError(sessionID, ErrTurnCancelled)
			return
		}
		m.completeWithError(sessionID, &api.AgentInvocationError{Provider: ms.session.Provider, Err: err})
		return
	}

	agentMsg := api.Message{
		Role:      api.RoleAgent,
		Content:   reply.Content,
		Thinking:  reply.Thinking,
		ToolCalls: reply.ToolCalls,
	}
	ms.session.AppendHistory(agentMsg)

	if !reply.HasToolCalls() {
		m.dispatch(func() {
			if m.callbacks.OnCompletion != nil {
				m.callbacks.OnCompletion(sessionID, agentMsg, nil)
			}
		})
		return
	}

	ms.session.MarkExecuting()
	results := m.executeRound(turnCtx, ms, snap, reply.ToolCalls)

	// Results arriving after cancellation are discarded, never appended.
	// The agent's own history already holds the issued tool calls, so each
	// one still gets an answering error result: a provider rejects any
	// follow-up request in which a tool call is left unanswered.
	if turnCtx.Err() != nil {
		logging.Info("Orchestrator", "Session %s round discarded after cancellation", sessionID)
		cancelled := make([]api.ToolResult, 0, len(reply.ToolCalls))
		for _, call := range reply.ToolCalls {
			cancelled = append(cancelled, ms.adapter.SyntheticErrorResult(call, ErrTurnCancelled))
		}
		ms.agentMu.Lock()
		ms.agent.Append(ms.adapter.Content.ResultsMessage(cancelled, nil))
		ms.agentMu.Unlock()
		m.completeWithError(sessionID, ErrTurnCancelled)
		return
	}

	texts := make([]string, 0, len(results))
	for _, result := range results {
		texts = append(texts, result.Text)
	}
	ms.session.AppendHistory(api.Message{Role: api.RoleTool, Content: strings.Join(texts, "\n")})

	entry := ms.adapter.Content.ResultsMessage(results, ms.session.TakeNotes())
	ms.session.Queue().Enqueue(session.Unit{Entry: entry, AutoContinue: true})
}

// executeRound runs one round's tool calls concurrently, bounded by the
// fan-out limit. Result order follows issue order regardless of completion
// order. Per-call failures become synthetic error results and never abort
// sibling calls.
func (m *Manager) executeRound(ctx context.Context, ms *managedSession, snap protocol.CapabilitySnapshot, calls []api.ToolCallDescriptor) []api.ToolResult {
	results := make([]api.ToolResult, len(calls))

	g := &errgroup.Group{}
	g.SetLimit(m.cfg.FanOutLimit)
	for i, call := range calls {
		m.dispatch(func() {
			if m.callbacks.OnToolCall != nil {
				m.callbacks.OnToolCall(ms.session.ID, call)
			}
		})
		g.Go(func() error {
			results[i] = m.executeCall(ctx, ms, snap, call)
			return nil
		})
	}
	g.Wait()
	return results
}

// executeCall translates, executes, and maps one tool call. Every failure
// path yields an in-band error result so the model can self-correct.
func (m *Manager) executeCall(ctx context.Context, ms *managedSession, snap protocol.CapabilitySnapshot, call api.ToolCallDescriptor) api.ToolResult {
	sessionID := ms.session.ID

	result, err := m.runCall(ctx, ms, snap, call)
	if err != nil {
		logging.Warn("Orchestrator", "Session %s call %s (%s) failed: %v", sessionID, call.ID, call.Name, err)
		result = ms.adapter.SyntheticErrorResult(call, err)
	}

	for _, artifact := range result.Artifacts {
		m.dispatch(func() {
			if m.callbacks.OnArtifact != nil {
				m.callbacks.OnArtifact(sessionID, artifact)
			}
		})
	}
	m.dispatch(func() {
		if m.callbacks.OnToolResult != nil {
			m.callbacks.OnToolResult(sessionID, result)
		}
	})
	return result
}

func (m *Manager) runCall(ctx context.Context, ms *managedSession, snap protocol.CapabilitySnapshot, call api.ToolCallDescriptor) (api.ToolResult, error) {
	req, err := ms.adapter.Translator.Translate(call, snap)
	if err != nil {
		return api.ToolResult{}, err
	}
	raw, err := ms.conn.Execute(ctx, req)
	if err != nil {
		return api.ToolResult{}, err
	}
	return ms.adapter.Content.MapResult(req, raw)
}

// completeWithError reports a turn-level failure. The session stays open
// for the next user message.
func (m *Manager) completeWithError(sessionID string, err error) {
	m.dispatch(func() {
		if m.callbacks.OnCompletion != nil {
			m.callbacks.OnCompletion(sessionID, api.Message{}, err)
		}
	})
}

// eventSink forwards streaming deltas to the async callback dispatcher.
type eventSink struct {
	manager   *Manager
	sessionID string
}

var _ agent.Events = (*eventSink)(nil)

func (s *eventSink) Thinking(delta string) {
	s.manager.dispatch(func() {
		if s.manager.callbacks.OnThinking != nil {
			s.manager.callbacks.OnThinking(s.sessionID, delta)
		}
	})
}

func (s *eventSink) Content(delta string) {
	s.manager.dispatch(func() {
		if s.manager.callbacks.OnContent != nil {
			s.manager.callbacks.OnContent(s.sessionID, delta)
		}
	})
}
