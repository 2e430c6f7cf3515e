package api

import (
	"errors"
	"fmt"
)

// UnmappedCapabilityError indicates that a tool, prompt, or resource
// referenced by the model is not present in the current capability snapshot,
// either because the server revoked it or because the snapshot is stale.
type UnmappedCapabilityError struct {
	// Kind categorizes the capability ("tool", "prompt", "resource").
	Kind string

	// Name is the identifier that could not be resolved.
	Name string

	// Available lists the identifiers present in the snapshot the lookup ran
	// against, so the model can self-correct on the next turn.
	Available []string
}

func (e *UnmappedCapabilityError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("%s %q is not available; the capability set may have changed", e.Kind, e.Name)
	}
	return fmt.Sprintf("%s %q is not available; the capability set may have changed (currently available: %v)", e.Kind, e.Name, e.Available)
}

// IsUnmappedCapability reports whether err is or wraps an UnmappedCapabilityError.
func IsUnmappedCapability(err error) bool {
	var unmapped *UnmappedCapabilityError
	return errors.As(err, &unmapped)
}

// ProtocolTransportError indicates that a protocol call failed at the
// transport level after the bounded retry budget was exhausted.
type ProtocolTransportError struct {
	// Method is the protocol method that failed (e.g. "tools/call").
	Method string

	// Attempts is the number of attempts made before giving up.
	Attempts int

	// Err is the last underlying transport error.
	Err error
}

func (e *ProtocolTransportError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Method, e.Attempts, e.Err)
}

func (e *ProtocolTransportError) Unwrap() error {
	return e.Err
}

// TransactionConflictError indicates a transaction lifecycle violation:
// commit or abort without an open transaction, or a nested begin.
type TransactionConflictError struct {
	// Op is the offending operation ("begin", "commit", "abort").
	Op string

	// Message describes the conflict.
	Message string
}

func (e *TransactionConflictError) Error() string {
	return fmt.Sprintf("transaction %s: %s", e.Op, e.Message)
}

// UnsupportedContentError indicates result content that cannot be represented
// in model-visible history. Callers route the payload to an artifact instead
// of failing the call.
type UnsupportedContentError struct {
	// MediaKind is the declared or inferred media kind of the payload.
	MediaKind string
}

func (e *UnsupportedContentError) Error() string {
	return fmt.Sprintf("unsupported content of kind %q routed to artifact", e.MediaKind)
}

// AgentInvocationError indicates that the underlying model invocation failed.
// The turn is aborted and the error is surfaced through the completion
// callback; the session remains usable for the next user message.
type AgentInvocationError struct {
	// Provider names the provider family whose invocation failed.
	Provider string

	// Err is the underlying provider error.
	Err error
}

func (e *AgentInvocationError) Error() string {
	return fmt.Sprintf("agent invocation failed (provider %s): %v", e.Provider, e.Err)
}

func (e *AgentInvocationError) Unwrap() error {
	return e.Err
}
