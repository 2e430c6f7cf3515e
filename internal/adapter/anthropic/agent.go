package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"tether/internal/adapter"
	"tether/internal/agent"
	"tether/internal/api"
	"tether/pkg/logging"

	"github.com/anthropics/anthropic-sdk-go"
)

const providerName = "anthropic"

const (
	defaultMaxTokens         = 4096
	defaultSamplingMaxTokens = 1024
)

func init() {
	adapter.Register(providerName, func(cfg agent.Config) (adapter.Bundle, error) {
		if cfg.Model == "" {
			return adapter.Bundle{}, fmt.Errorf("anthropic provider requires a model")
		}
		return adapter.Bundle{
			Agent: NewAgent(cfg),
			Adapter: &adapter.Adapter{
				Tools:      &ToolMapper{},
				Translator: &CallTranslator{},
				Content:    &ContentMapper{},
			},
		}, nil
	})
}

// Agent drives Anthropic's Messages API for one session. Not safe for
// concurrent use; the turn loop serializes access.
type Agent struct {
	client       anthropic.Client
	model        string
	maxTokens    int64
	systemPrompt string
	tools        []anthropic.ToolUnionParam
	history      []anthropic.MessageParam
}

// NewAgent creates an agent reading credentials from the environment
// (ANTHROPIC_API_KEY).
func NewAgent(cfg agent.Config) *Agent {
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Agent{
		client:       anthropic.NewClient(),
		model:        cfg.Model,
		maxTokens:    maxTokens,
		systemPrompt: cfg.SystemPrompt,
	}
}

func (a *Agent) SetSystemPrompt(prompt string) {
	a.systemPrompt = prompt
}

// SetTools replaces the advertised specs. The value must be the
// []anthropic.ToolUnionParam built by this provider's ToolMapper.
func (a *Agent) SetTools(tools any) {
	specs, ok := tools.([]anthropic.ToolUnionParam)
	if !ok {
		logging.Error("Agent", fmt.Errorf("unexpected tool spec type %T", tools), "Ignoring tool update")
		return
	}
	a.tools = specs
}

// Append records history entries built by this provider's ContentMapper.
func (a *Agent) Append(entries ...any) {
	for _, entry := range entries {
		msg, ok := entry.(anthropic.MessageParam)
		if !ok {
			logging.Error("Agent", fmt.Errorf("unexpected history entry type %T", entry), "Dropping entry")
			continue
		}
		a.history = append(a.history, msg)
	}
}

// Generate runs one streaming model invocation over the recorded history.
func (a *Agent) Generate(ctx context.Context, events agent.Events) (*agent.Reply, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  a.history,
		Tools:     a.tools,
	}
	if a.systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: a.systemPrompt}}
	}

	stream := a.client.Messages.NewStreaming(ctx, params)
	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, &api.AgentInvocationError{Provider: providerName, Err: err}
		}
		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			switch d := delta.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				events.Content(d.Text)
			case anthropic.ThinkingDelta:
				events.Thinking(d.Thinking)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, &api.AgentInvocationError{Provider: providerName, Err: err}
	}

	reply, err := a.decode(message)
	if err != nil {
		return nil, err
	}

	a.history = append(a.history, message.ToParam())
	reply.Raw = message.ToParam()
	return reply, nil
}

// decode extracts the reply fields from the accumulated message.
func (a *Agent) decode(message anthropic.Message) (*agent.Reply, error) {
	reply := &agent.Reply{}
	for _, block := range message.Content {
		switch typed := block.AsAny().(type) {
		case anthropic.TextBlock:
			reply.Content += typed.Text
		case anthropic.ThinkingBlock:
			reply.Thinking += typed.Thinking
		case anthropic.ToolUseBlock:
			args := make(map[string]any)
			if raw := typed.JSON.Input.Raw(); raw != "" && raw != "null" {
				if err := json.Unmarshal([]byte(raw), &args); err != nil {
					return nil, &api.AgentInvocationError{
						Provider: providerName,
						Err:      fmt.Errorf("malformed tool input for %s: %w", typed.Name, err),
					}
				}
			}
			reply.ToolCalls = append(reply.ToolCalls, api.ToolCallDescriptor{
				ID:        typed.ID,
				Name:      typed.Name,
				Arguments: args,
			})
		}
	}
	return reply, nil
}

// Sample serves a server-initiated sampling request against its own
// message list. Session history stays untouched.
func (a *Agent) Sample(ctx context.Context, req api.SamplingRequest) (api.SamplingResult, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		block := anthropic.NewTextBlock(msg.Text)
		if msg.Role == api.RoleAgent {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultSamplingMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return api.SamplingResult{}, &api.AgentInvocationError{Provider: providerName, Err: err}
	}

	var text string
	for _, block := range message.Content {
		if typed, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += typed.Text
		}
	}
	return api.SamplingResult{Text: text, Model: string(message.Model)}, nil
}
