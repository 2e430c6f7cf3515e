// Package api defines the shared vocabulary of the tether core: message and
// tool-call types exchanged between the orchestrator, the provider adapters,
// and the protocol client, the callback surface exposed to UI consumers, and
// the error taxonomy used across package boundaries.
//
// No other internal package may define its own copy of these types. Packages
// communicate through api values rather than importing each other directly,
// which keeps the orchestrator, adapter, and protocol layers independently
// testable.
//
// # Error taxonomy
//
// The five error types in this package classify every failure mode the turn
// loop has to handle:
//
//   - UnmappedCapabilityError: a tool, prompt, or resource referenced by the
//     model is absent from the current capability snapshot. Recoverable; the
//     orchestrator feeds it back to the model as an error tool-result.
//   - ProtocolTransportError: the server could not be reached after bounded
//     retries. Recoverable per call.
//   - TransactionConflictError: commit/abort without an open transaction, or
//     a nested begin. Fatal to the requesting call only.
//   - UnsupportedContentError: result content that cannot be represented in
//     model history. Fails closed to an artifact, never fatal.
//   - AgentInvocationError: the underlying model invocation failed. Aborts
//     the current turn; the session stays usable.
//
// No error class terminates a session.
package api
