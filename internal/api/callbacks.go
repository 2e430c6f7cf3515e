package api

// Callbacks is the consumer-facing event surface of a session. All fields are
// optional; nil callbacks are skipped. Delivery is buffered and asynchronous:
// a slow or failing consumer never blocks the turn loop, and delivery
// failures are logged rather than propagated back into turn state.
//
// OnArtifact deliberately bypasses model context: artifacts are visible to
// the consumer only and never appear in session history.
type Callbacks struct {
	// OnThinking receives reasoning deltas as the model streams them.
	OnThinking func(sessionID, delta string)

	// OnContent receives content deltas as the model streams them.
	OnContent func(sessionID, delta string)

	// OnToolCall fires when the orchestrator begins executing a tool call.
	OnToolCall func(sessionID string, call ToolCallDescriptor)

	// OnToolResult receives the plain-text rendering of each tool result as
	// it is committed to history.
	OnToolResult func(sessionID string, result ToolResult)

	// OnCompletion fires when a turn finishes. err is non-nil when the turn
	// was aborted by an agent invocation failure; final is the zero Message
	// in that case.
	OnCompletion func(sessionID string, final Message, err error)

	// OnArtifact receives non-text payloads routed around model context.
	OnArtifact func(sessionID string, artifact Artifact)
}
