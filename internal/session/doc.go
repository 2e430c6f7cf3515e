// Package session holds per-conversation state: the provider-independent
// transcript, the pending unit queue, and the turn status flag that
// enforces one active turn per session. The orchestrator owns the turn
// loop; this package only guards the state it mutates.
package session
