package protocol

import (
	"context"
	"fmt"
	"time"

	"tether/internal/api"
	"tether/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/semaphore"
)

const (
	defaultSamplingTimeout     = 60 * time.Second
	defaultSamplingConcurrency = 10
)

// Sampler runs a model invocation on behalf of the server. Implemented by
// the session's agent; sampling calls never touch session history.
type Sampler interface {
	Sample(ctx context.Context, req api.SamplingRequest) (api.SamplingResult, error)
}

// SamplingThrottle caps concurrent server-initiated sampling requests across
// all sessions of the process and bounds each request with a timeout.
type SamplingThrottle struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewSamplingThrottle creates a throttle with the given concurrency cap and
// per-request timeout. Zero values select the defaults.
func NewSamplingThrottle(maxConcurrency int64, timeout time.Duration) *SamplingThrottle {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultSamplingConcurrency
	}
	if timeout <= 0 {
		timeout = defaultSamplingTimeout
	}
	return &SamplingThrottle{
		sem:     semaphore.NewWeighted(maxConcurrency),
		timeout: timeout,
	}
}

// samplingHandler adapts a Sampler to the mcp-go sampling handler contract.
// The request direction is inverted relative to the session's own calls: the
// server asks the client to run the model.
type samplingHandler struct {
	sampler  Sampler
	throttle *SamplingThrottle
}

func newSamplingHandler(sampler Sampler, throttle *SamplingThrottle) *samplingHandler {
	if throttle == nil {
		throttle = NewSamplingThrottle(0, 0)
	}
	return &samplingHandler{sampler: sampler, throttle: throttle}
}

func (h *samplingHandler) CreateMessage(ctx context.Context, request mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error) {
	if err := h.throttle.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("sampling rejected: %w", err)
	}
	defer h.throttle.sem.Release(1)

	sampleCtx, cancel := context.WithTimeout(ctx, h.throttle.timeout)
	defer cancel()

	req, err := samplingRequestFromParams(request)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := h.sampler.Sample(sampleCtx, req)
	if err != nil {
		logging.Error("Sampling", err, "Sampling request failed")
		return nil, fmt.Errorf("sampling failed: %w", err)
	}
	logging.Debug("Sampling", "Sampling request served in %s", time.Since(start))

	return &mcp.CreateMessageResult{
		SamplingMessage: mcp.SamplingMessage{
			Role:    mcp.RoleAssistant,
			Content: mcp.TextContent{Type: "text", Text: result.Text},
		},
		Model: result.Model,
	}, nil
}

// samplingRequestFromParams validates and converts the protocol-level
// request. Only text content is accepted.
func samplingRequestFromParams(request mcp.CreateMessageRequest) (api.SamplingRequest, error) {
	if len(request.Messages) == 0 {
		return api.SamplingRequest{}, fmt.Errorf("sampling expects at least one message")
	}

	messages := make([]api.SamplingMessage, 0, len(request.Messages))
	for _, msg := range request.Messages {
		text, ok := msg.Content.(mcp.TextContent)
		if !ok {
			return api.SamplingRequest{}, fmt.Errorf("sampling expects text content only")
		}
		role := api.RoleUser
		if msg.Role == mcp.RoleAssistant {
			role = api.RoleAgent
		}
		messages = append(messages, api.SamplingMessage{Role: role, Text: text.Text})
	}

	return api.SamplingRequest{
		System:    request.SystemPrompt,
		Messages:  messages,
		MaxTokens: request.MaxTokens,
	}, nil
}
