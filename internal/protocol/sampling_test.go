package protocol

import (
	"context"
	"errors"
	"testing"

	"tether/internal/api"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSampler struct {
	gotReq api.SamplingRequest
	result api.SamplingResult
	err    error
}

func (s *stubSampler) Sample(ctx context.Context, req api.SamplingRequest) (api.SamplingResult, error) {
	s.gotReq = req
	return s.result, s.err
}

func sampleRequest(messages ...mcp.SamplingMessage) mcp.CreateMessageRequest {
	req := mcp.CreateMessageRequest{}
	req.Messages = messages
	req.SystemPrompt = "You are a terse narrator."
	req.MaxTokens = 256
	return req
}

func TestSamplingRequestConversion(t *testing.T) {
	req := sampleRequest(
		mcp.SamplingMessage{Role: mcp.RoleUser, Content: mcp.TextContent{Type: "text", Text: "describe the room"}},
		mcp.SamplingMessage{Role: mcp.RoleAssistant, Content: mcp.TextContent{Type: "text", Text: "a dusty cellar"}},
	)

	converted, err := samplingRequestFromParams(req)
	require.NoError(t, err)

	assert.Equal(t, "You are a terse narrator.", converted.System)
	assert.Equal(t, 256, converted.MaxTokens)
	require.Len(t, converted.Messages, 2)
	assert.Equal(t, api.RoleUser, converted.Messages[0].Role)
	assert.Equal(t, "describe the room", converted.Messages[0].Text)
	assert.Equal(t, api.RoleAgent, converted.Messages[1].Role)
	assert.Equal(t, "a dusty cellar", converted.Messages[1].Text)
}

func TestSamplingRequiresMessages(t *testing.T) {
	_, err := samplingRequestFromParams(sampleRequest())
	assert.Error(t, err)
}

func TestSamplingRejectsNonTextContent(t *testing.T) {
	req := sampleRequest(mcp.SamplingMessage{
		Role:    mcp.RoleUser,
		Content: mcp.ImageContent{Type: "image", Data: "aGk=", MIMEType: "image/png"},
	})

	_, err := samplingRequestFromParams(req)
	assert.Error(t, err)
}

func TestCreateMessageReturnsAssistantText(t *testing.T) {
	sampler := &stubSampler{result: api.SamplingResult{Text: "the cellar smells of rain", Model: "claude-sonnet-4-20250514"}}
	handler := newSamplingHandler(sampler, nil)

	result, err := handler.CreateMessage(context.Background(), sampleRequest(
		mcp.SamplingMessage{Role: mcp.RoleUser, Content: mcp.TextContent{Type: "text", Text: "describe the room"}},
	))
	require.NoError(t, err)

	assert.Equal(t, mcp.RoleAssistant, result.Role)
	text, ok := result.Content.(mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "the cellar smells of rain", text.Text)
	assert.Equal(t, "claude-sonnet-4-20250514", result.Model)

	// The sampler sees the converted request, not raw protocol params.
	assert.Equal(t, "You are a terse narrator.", sampler.gotReq.System)
}

func TestCreateMessagePropagatesSamplerFailure(t *testing.T) {
	sampler := &stubSampler{err: errors.New("model unavailable")}
	handler := newSamplingHandler(sampler, nil)

	_, err := handler.CreateMessage(context.Background(), sampleRequest(
		mcp.SamplingMessage{Role: mcp.RoleUser, Content: mcp.TextContent{Type: "text", Text: "hello"}},
	))
	assert.Error(t, err)
}

func TestSamplingThrottleDefaults(t *testing.T) {
	throttle := NewSamplingThrottle(0, 0)
	assert.Equal(t, defaultSamplingTimeout, throttle.timeout)

	require.True(t, throttle.sem.TryAcquire(defaultSamplingConcurrency))
	assert.False(t, throttle.sem.TryAcquire(1))
	throttle.sem.Release(defaultSamplingConcurrency)
}
