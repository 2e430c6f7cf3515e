package orchestrator

import (
	"context"

	"tether/internal/api"
	"tether/internal/protocol"
)

// Conn is the slice of the protocol client the turn loop depends on.
type Conn interface {
	Connect(ctx context.Context) error
	Snapshot(ctx context.Context) (protocol.CapabilitySnapshot, error)
	Execute(ctx context.Context, req api.ProtocolRequest) (any, error)
	BeginTransaction() (Transaction, error)
	Close() error
}

// Transaction buffers mutations for atomic application.
type Transaction interface {
	Stage(mutation func()) error
	Commit() error
	Abort() error
}

// clientConn adapts *protocol.Client to Conn. Only BeginTransaction needs
// a wrapper, to lift the concrete transaction into the interface.
type clientConn struct {
	*protocol.Client
}

func (c clientConn) BeginTransaction() (Transaction, error) {
	tx, err := c.Client.BeginTransaction()
	if err != nil {
		return nil, err
	}
	return tx, nil
}
