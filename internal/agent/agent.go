package agent

import (
	"context"

	"tether/internal/api"
)

// Config carries the provider-independent generation settings for one
// session's agent.
type Config struct {
	// Model names the provider model to invoke.
	Model string
	// MaxTokens bounds the response length per generation.
	MaxTokens int
	// SystemPrompt is the initial system prompt. It can be replaced later
	// via SetSystemPrompt.
	SystemPrompt string
}

// Reply is the outcome of one generation. Raw holds the provider-native
// assistant message; implementations append it to their own history before
// returning, so callers only inspect the decoded fields.
type Reply struct {
	Thinking  string
	Content   string
	ToolCalls []api.ToolCallDescriptor
	Raw       any
}

// HasToolCalls reports whether the reply requests tool execution, which
// keeps the turn open for another round.
func (r *Reply) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Events receives streaming deltas during generation. Callbacks run on the
// generation goroutine; implementations must hand off quickly.
type Events interface {
	Thinking(delta string)
	Content(delta string)
}

// NopEvents discards all deltas. Used for generations with no observer,
// such as sampling.
type NopEvents struct{}

func (NopEvents) Thinking(string) {}
func (NopEvents) Content(string)  {}

// Agent generates model replies for one session. Implementations are not
// safe for concurrent use; the orchestrator serializes all access through
// the session's turn loop.
type Agent interface {
	// SetSystemPrompt replaces the system prompt for subsequent
	// generations. Already-recorded history is unaffected.
	SetSystemPrompt(prompt string)

	// SetTools replaces the advertised tool specs. The value is the
	// provider-native spec list produced by the paired ToolMapper.
	SetTools(tools any)

	// Append records provider-native history entries built by the paired
	// adapter: user messages, tool result rounds, capability notes.
	Append(entries ...any)

	// Generate runs one model invocation over the recorded history,
	// streaming deltas to events. The assistant message is appended to
	// history before Generate returns, including when the reply requests
	// tool calls.
	Generate(ctx context.Context, events Events) (*Reply, error)

	// Sample serves a server-initiated sampling request. Sampling runs
	// against the request's own messages and never reads or writes the
	// session history.
	Sample(ctx context.Context, req api.SamplingRequest) (api.SamplingResult, error)
}
