package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnmappedCapabilityError(t *testing.T) {
	err := &UnmappedCapabilityError{Kind: "tool", Name: "unlock_chest"}
	assert.Contains(t, err.Error(), "unlock_chest")
	assert.True(t, IsUnmappedCapability(err))
	assert.True(t, IsUnmappedCapability(fmt.Errorf("translate: %w", err)))
	assert.False(t, IsUnmappedCapability(errors.New("other")))
}

func TestUnmappedCapabilityErrorListsAvailable(t *testing.T) {
	err := &UnmappedCapabilityError{Kind: "tool", Name: "gone", Available: []string{"open_door", "look"}}
	assert.Contains(t, err.Error(), "open_door")
	assert.Contains(t, err.Error(), "look")
}

func TestProtocolTransportErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ProtocolTransportError{Method: "tools/call", Attempts: 3, Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "3 attempt(s)")

	var transport *ProtocolTransportError
	assert.True(t, errors.As(fmt.Errorf("round: %w", err), &transport))
	assert.Equal(t, "tools/call", transport.Method)
}

func TestTransactionConflictError(t *testing.T) {
	err := &TransactionConflictError{Op: "begin", Message: "transaction already open"}
	assert.Contains(t, err.Error(), "begin")
	assert.Contains(t, err.Error(), "already open")
}

func TestAgentInvocationErrorUnwrap(t *testing.T) {
	cause := errors.New("stream reset")
	err := &AgentInvocationError{Provider: "anthropic", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "anthropic")
}
