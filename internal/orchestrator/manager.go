package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tether/internal/adapter"
	"tether/internal/agent"
	"tether/internal/api"
	"tether/internal/protocol"
	"tether/internal/session"
	"tether/pkg/logging"
)

const (
	defaultFanOutLimit   = 4
	defaultAgentTimeout  = 5 * time.Minute
	defaultCallbackQueue = 256
)

// Config carries the manager's wiring parameters.
type Config struct {
	// Endpoint is the tool server address shared by all sessions.
	Endpoint string
	// Transport selects the protocol transport.
	Transport protocol.TransportType
	// CallTimeout bounds each protocol call.
	CallTimeout time.Duration
	// MaxAttempts bounds transport retries per protocol call.
	MaxAttempts uint
	// FanOutLimit caps concurrent tool calls within one round.
	FanOutLimit int
	// AgentTimeout bounds one model invocation.
	AgentTimeout time.Duration
	// SamplingConcurrency and SamplingTimeout shape the process-wide
	// throttle for server-initiated sampling.
	SamplingConcurrency int64
	SamplingTimeout     time.Duration
	// Providers maps provider name to its generation settings.
	Providers map[string]agent.Config
}

// Manager owns the session set. Sessions run fully parallel to each other;
// within one session the turn loop serializes everything.
type Manager struct {
	cfg       Config
	callbacks api.Callbacks
	throttle  *protocol.SamplingThrottle

	mu       sync.RWMutex
	sessions map[string]*managedSession

	callbackQueue chan func()
	quit          chan struct{}
	dispatcherWG  sync.WaitGroup

	// newConn builds the protocol connection for one session. Swapped in
	// tests.
	newConn func(ms *managedSession) Conn
}

type managedSession struct {
	session *session.Session
	conn    Conn
	agent   agent.Agent
	adapter *adapter.Adapter

	// agentMu serializes all agent access: the turn loop's generation,
	// tool spec updates, and system prompt changes.
	agentMu      sync.Mutex
	systemPrompt string

	txMu sync.Mutex
	tx   Transaction

	snapMu   sync.Mutex
	lastSnap protocol.CapabilitySnapshot
	hasSnap  bool

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// NewManager creates a manager and starts its callback dispatcher.
func NewManager(cfg Config, callbacks api.Callbacks) *Manager {
	if cfg.FanOutLimit <= 0 {
		cfg.FanOutLimit = defaultFanOutLimit
	}
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = defaultAgentTimeout
	}
	m := &Manager{
		cfg:           cfg,
		callbacks:     callbacks,
		throttle:      protocol.NewSamplingThrottle(cfg.SamplingConcurrency, cfg.SamplingTimeout),
		sessions:      make(map[string]*managedSession),
		callbackQueue: make(chan func(), defaultCallbackQueue),
		quit:          make(chan struct{}),
	}
	m.newConn = m.dialConn

	m.dispatcherWG.Add(1)
	go m.dispatchLoop()
	return m
}

// dialConn builds the real protocol client for a session, wiring the
// capability change handler and the sampling handler.
func (m *Manager) dialConn(ms *managedSession) Conn {
	return clientConn{protocol.New(m.cfg.Endpoint, m.cfg.Transport,
		protocol.WithTimeout(m.cfg.CallTimeout),
		protocol.WithMaxAttempts(m.cfg.MaxAttempts),
		protocol.WithChangeHandler(func(snap protocol.CapabilitySnapshot) {
			m.handleCapabilityChange(ms, snap)
		}),
		protocol.WithSampling(ms.agent, m.throttle),
	)}
}

// Open creates a session bound to the named provider, connects its
// protocol client, and starts its turn loop. Returns the session ID.
func (m *Manager) Open(ctx context.Context, provider string) (string, error) {
	cfg, ok := m.cfg.Providers[provider]
	if !ok {
		return "", fmt.Errorf("no configuration for provider %q", provider)
	}

	bundle, err := adapter.New(provider, cfg)
	if err != nil {
		return "", err
	}

	ms := &managedSession{
		session:      session.New(provider),
		agent:        bundle.Agent,
		adapter:      bundle.Adapter,
		systemPrompt: cfg.SystemPrompt,
		loopDone:     make(chan struct{}),
	}
	ms.conn = m.newConn(ms)

	if err := ms.conn.Connect(ctx); err != nil {
		return "", fmt.Errorf("failed to connect session to %s: %w", m.cfg.Endpoint, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	ms.loopCancel = cancel

	m.mu.Lock()
	m.sessions[ms.session.ID] = ms
	m.mu.Unlock()

	go m.runLoop(loopCtx, ms)

	logging.Info("Orchestrator", "Opened session %s (provider %s)", ms.session.ID, provider)
	return ms.session.ID, nil
}

// SendUserMessage enqueues a user message for the session. The message is
// recorded in the transcript immediately; the turn starts when the loop
// reaches the unit.
func (m *Manager) SendUserMessage(sessionID, text string) error {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	if ms.session.Closed() {
		return fmt.Errorf("session %s is closed", sessionID)
	}

	ms.session.AppendHistory(api.Message{Role: api.RoleUser, Content: text})
	ms.session.Queue().Enqueue(session.Unit{
		Entry:    ms.adapter.Content.UserMessage(text),
		UserText: text,
	})
	return nil
}

// CancelTurn aborts the session's active turn, if any. Results of
// already-issued tool calls are discarded when they arrive.
func (m *Manager) CancelTurn(sessionID string) error {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	if !ms.session.CancelTurn() {
		return fmt.Errorf("session %s has no active turn", sessionID)
	}
	return nil
}

// CloseSession tears one session down: active turn cancelled, loop
// stopped, protocol connection closed. An open transaction is implicitly
// aborted by the connection teardown.
func (m *Manager) CloseSession(sessionID string) error {
	m.mu.Lock()
	ms, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown session %s", sessionID)
	}

	ms.session.Close()
	ms.loopCancel()
	<-ms.loopDone

	err := ms.conn.Close()
	logging.Info("Orchestrator", "Closed session %s", sessionID)
	return err
}

// Shutdown closes all sessions and stops the callback dispatcher.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.CloseSession(id); err != nil {
			logging.Error("Orchestrator", err, "Failed to close session %s during shutdown", id)
		}
	}

	close(m.quit)
	m.dispatcherWG.Wait()
}

// Status reports the session's turn state.
func (m *Manager) Status(sessionID string) (session.Status, error) {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return "", err
	}
	return ms.session.Status(), nil
}

// History returns a copy of the session transcript.
func (m *Manager) History(sessionID string) ([]api.Message, error) {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return ms.session.History(), nil
}

// Capabilities returns the session's current capability snapshot.
func (m *Manager) Capabilities(ctx context.Context, sessionID string) (protocol.CapabilitySnapshot, error) {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return protocol.CapabilitySnapshot{}, err
	}
	return ms.conn.Snapshot(ctx)
}

// SystemPrompt returns the session's current system prompt.
func (m *Manager) SystemPrompt(sessionID string) (string, error) {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return "", err
	}
	ms.agentMu.Lock()
	defer ms.agentMu.Unlock()
	return ms.systemPrompt, nil
}

// SetSystemPrompt applies a new system prompt to the session, effective
// from the next generation.
func (m *Manager) SetSystemPrompt(sessionID, prompt string) error {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	ms.setSystemPrompt(prompt)
	return nil
}

// BroadcastSystemPrompt applies a new system prompt to every open session.
// Used by the prompt file watcher.
func (m *Manager) BroadcastSystemPrompt(prompt string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ms := range m.sessions {
		ms.setSystemPrompt(prompt)
	}
}

func (ms *managedSession) setSystemPrompt(prompt string) {
	ms.agentMu.Lock()
	defer ms.agentMu.Unlock()
	ms.systemPrompt = prompt
	ms.agent.SetSystemPrompt(prompt)
}

// BeginTransaction opens a transaction on the session. At most one may be
// open at a time.
func (m *Manager) BeginTransaction(sessionID string) error {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	ms.txMu.Lock()
	defer ms.txMu.Unlock()
	if ms.tx != nil {
		return &api.TransactionConflictError{Op: "begin", Message: "transaction already open"}
	}
	tx, err := ms.conn.BeginTransaction()
	if err != nil {
		return err
	}
	ms.tx = tx
	return nil
}

// StageSystemPrompt buffers a system prompt change into the session's open
// transaction. The change applies on commit, never before.
func (m *Manager) StageSystemPrompt(sessionID, prompt string) error {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	ms.txMu.Lock()
	defer ms.txMu.Unlock()
	if ms.tx == nil {
		return &api.TransactionConflictError{Op: "stage", Message: "no open transaction"}
	}
	return ms.tx.Stage(func() { ms.setSystemPrompt(prompt) })
}

// CommitTransaction applies the session's buffered mutations atomically.
func (m *Manager) CommitTransaction(sessionID string) error {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	ms.txMu.Lock()
	defer ms.txMu.Unlock()
	if ms.tx == nil {
		return &api.TransactionConflictError{Op: "commit", Message: "no open transaction"}
	}
	err = ms.tx.Commit()
	ms.tx = nil
	return err
}

// AbortTransaction discards the session's buffered mutations.
func (m *Manager) AbortTransaction(sessionID string) error {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	ms.txMu.Lock()
	defer ms.txMu.Unlock()
	if ms.tx == nil {
		return &api.TransactionConflictError{Op: "abort", Message: "no open transaction"}
	}
	err = ms.tx.Abort()
	ms.tx = nil
	return err
}

func (m *Manager) lookup(sessionID string) (*managedSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("unknown session %s", sessionID)
	}
	return ms, nil
}

// handleCapabilityChange runs on the protocol client's listener goroutine.
// It records a summary note for the model; the new tool specs themselves
// are picked up at the start of the next turn.
func (m *Manager) handleCapabilityChange(ms *managedSession, snap protocol.CapabilitySnapshot) {
	ms.snapMu.Lock()
	prev := ms.lastSnap
	had := ms.hasSnap
	ms.lastSnap = snap
	ms.hasSnap = true
	ms.snapMu.Unlock()

	if !had {
		return
	}
	if summary := adapter.SummarizeChange(prev, snap); summary != "" {
		logging.Debug("Orchestrator", "Session %s capability change: %s", ms.session.ID, summary)
		ms.session.AddNote(summary)
	}
}

// recordSnapshot tracks the snapshot a turn was built against so later
// change notifications diff from the view the model actually saw.
func (ms *managedSession) recordSnapshot(snap protocol.CapabilitySnapshot) {
	ms.snapMu.Lock()
	ms.lastSnap = snap
	ms.hasSnap = true
	ms.snapMu.Unlock()
}

// dispatch hands a callback to the async dispatcher. Delivery never blocks
// the turn loop; overflow is logged and dropped.
func (m *Manager) dispatch(fn func()) {
	select {
	case m.callbackQueue <- fn:
	default:
		logging.Warn("Orchestrator", "Callback queue full, dropping delivery")
	}
}

func (m *Manager) dispatchLoop() {
	defer m.dispatcherWG.Done()
	for {
		select {
		case fn := <-m.callbackQueue:
			m.deliver(fn)
		case <-m.quit:
			// Drain what is already queued.
			for {
				select {
				case fn := <-m.callbackQueue:
					m.deliver(fn)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) deliver(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Orchestrator", fmt.Errorf("%v", r), "Callback panicked")
		}
	}()
	fn()
}
