package protocol

import (
	"sync"

	"tether/internal/api"
	"tether/pkg/logging"
)

// Transaction buffers session-scoped mutations (system prompt changes,
// history notes) and applies them atomically on Commit or discards them on
// Abort. At most one transaction is open per client at a time; a nested
// Begin is rejected with a TransactionConflictError.
type Transaction struct {
	client *Client

	mu        sync.Mutex
	mutations []func()
	closed    bool
}

// BeginTransaction opens a transaction on this client.
func (c *Client) BeginTransaction() (*Transaction, error) {
	c.txMu.Lock()
	defer c.txMu.Unlock()
	if c.tx != nil {
		return nil, &api.TransactionConflictError{Op: "begin", Message: "a transaction is already open"}
	}
	tx := &Transaction{client: c}
	c.tx = tx
	logging.Debug("Protocol", "Transaction opened")
	return tx, nil
}

// InTransaction reports whether a transaction is currently open.
func (c *Client) InTransaction() bool {
	c.txMu.Lock()
	defer c.txMu.Unlock()
	return c.tx != nil
}

// Stage buffers a mutation for later commit. Mutations run in staging order.
func (t *Transaction) Stage(mutation func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return &api.TransactionConflictError{Op: "stage", Message: "transaction is no longer open"}
	}
	t.mutations = append(t.mutations, mutation)
	return nil
}

// Commit applies all buffered mutations in order and closes the transaction.
func (t *Transaction) Commit() error {
	t.client.txMu.Lock()
	defer t.client.txMu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.client.tx != t {
		return &api.TransactionConflictError{Op: "commit", Message: "no open transaction"}
	}
	for _, mutation := range t.mutations {
		mutation()
	}
	applied := len(t.mutations)
	t.mutations = nil
	t.closed = true
	t.client.tx = nil
	logging.Debug("Protocol", "Transaction committed with %d mutation(s)", applied)
	return nil
}

// Abort discards all buffered mutations and closes the transaction.
func (t *Transaction) Abort() error {
	t.client.txMu.Lock()
	defer t.client.txMu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.client.tx != t {
		return &api.TransactionConflictError{Op: "abort", Message: "no open transaction"}
	}
	t.discardLocked()
	t.client.tx = nil
	logging.Debug("Protocol", "Transaction aborted")
	return nil
}

// discard closes the transaction without touching client state. Used by
// Close for the implicit teardown abort, with txMu already held.
func (t *Transaction) discard() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.discardLocked()
}

func (t *Transaction) discardLocked() {
	t.mutations = nil
	t.closed = true
}
