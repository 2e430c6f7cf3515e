package api

// Role tags a message in session history.
type Role string

const (
	// RoleUser marks input originating from the user.
	RoleUser Role = "user"
	// RoleAgent marks model output (content, thinking, tool calls).
	RoleAgent Role = "agent"
	// RoleTool marks tool results and capability-change notes fed back to the model.
	RoleTool Role = "tool"
)

// Message is one entry of session history. Messages are immutable once
// appended; the orchestrator never mutates a message after emitting it.
type Message struct {
	Role      Role
	Content   string
	Thinking  string
	ToolCalls []ToolCallDescriptor
}

// ToolCallDescriptor identifies a single tool invocation requested by the
// model. ID correlates the eventual result back to this call.
type ToolCallDescriptor struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Protocol request methods understood by the protocol client.
const (
	MethodToolsCall     = "tools/call"
	MethodPromptsGet    = "prompts/get"
	MethodResourcesRead = "resources/read"
	MethodToolsList     = "tools/list"
	MethodPromptsList   = "prompts/list"
	MethodResourcesList = "resources/list"
)

// ProtocolRequest is a translated, protocol-compliant request produced by a
// CallTranslator. Revision records the capability cache revision the
// translation was made against; a server that has moved on since then rejects
// the call, which surfaces as a recoverable per-call error.
type ProtocolRequest struct {
	Method    string
	Name      string
	URI       string
	Arguments map[string]any
	CallID    string
	Revision  uint64
}

// ToolResult is the outcome of one protocol request within a round. Fragment
// carries the provider-native history component built by the ContentMapper;
// Text is the plain rendering used for callbacks and synthetic errors.
// Artifacts listed here have already been emitted via the artifact callback
// and never enter model-visible history.
type ToolResult struct {
	CallID    string
	Name      string
	Text      string
	IsError   bool
	Fragment  any
	Artifacts []Artifact
}

// Artifact media kinds.
const (
	ArtifactImage   = "image"
	ArtifactAudio   = "audio"
	ArtifactBlob    = "blob"
	ArtifactUnknown = "unknown"
)

// Artifact is a non-text result payload routed to the UI and excluded from
// model context. Data holds the base64 payload when the server inlined one.
type Artifact struct {
	MediaKind string
	MIMEType  string
	Name      string
	Data      string
	Size      int
}

// SamplingMessage is one entry of a server-initiated sampling request.
type SamplingMessage struct {
	Role Role
	Text string
}

// SamplingRequest is a server-initiated model invocation, inverted relative
// to the session's own turns: the server asks the client to run the model.
type SamplingRequest struct {
	System    string
	Messages  []SamplingMessage
	MaxTokens int
}

// SamplingResult carries the model's answer to a sampling request.
type SamplingResult struct {
	Text  string
	Model string
}
