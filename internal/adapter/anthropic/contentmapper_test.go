package anthropic

import (
	"encoding/base64"
	"testing"

	"tether/internal/api"
	"tether/internal/protocol"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolCallRequest() api.ProtocolRequest {
	return api.ProtocolRequest{Method: api.MethodToolsCall, Name: "open_door", CallID: "call-1"}
}

func TestMapTextResult(t *testing.T) {
	mapper := &ContentMapper{}

	result, err := mapper.MapResult(toolCallRequest(), &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "the door creaks open"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "call-1", result.CallID)
	assert.Equal(t, "the door creaks open", result.Text)
	assert.False(t, result.IsError)
	assert.Empty(t, result.Artifacts)
	assert.IsType(t, anthropic.ContentBlockParamUnion{}, result.Fragment)
}

func TestMapErrorResultKeepsFlag(t *testing.T) {
	mapper := &ContentMapper{}

	result, err := mapper.MapResult(toolCallRequest(), &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "the door is locked"}},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestImageContentBecomesArtifact(t *testing.T) {
	mapper := &ContentMapper{}

	result, err := mapper.MapResult(toolCallRequest(), &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: "here is the map"},
			mcp.ImageContent{Type: "image", Data: base64.StdEncoding.EncodeToString([]byte("png-bytes")), MIMEType: "image/png"},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, api.ArtifactImage, result.Artifacts[0].MediaKind)
	assert.Equal(t, "image/png", result.Artifacts[0].MIMEType)
	// The model sees a placeholder, never the payload.
	assert.Contains(t, result.Text, "image artifact produced")
	assert.NotContains(t, result.Text, result.Artifacts[0].Data)
}

func TestTextualBlobIsDecodedIntoText(t *testing.T) {
	mapper := &ContentMapper{}

	blob := base64.StdEncoding.EncodeToString([]byte(`{"rooms": 3}`))
	result, err := mapper.MapResult(
		api.ProtocolRequest{Method: api.MethodResourcesRead, URI: "map://cellar", CallID: "call-2"},
		&mcp.ReadResourceResult{
			Contents: []mcp.ResourceContents{
				mcp.BlobResourceContents{URI: "map://cellar", MIMEType: "application/json", Blob: blob},
			},
		})
	require.NoError(t, err)

	assert.Contains(t, result.Text, `"rooms": 3`)
	assert.Empty(t, result.Artifacts)
}

func TestBinaryBlobBecomesArtifact(t *testing.T) {
	mapper := &ContentMapper{}

	blob := base64.StdEncoding.EncodeToString([]byte{0x1f, 0x8b, 0x08})
	result, err := mapper.MapResult(
		api.ProtocolRequest{Method: api.MethodResourcesRead, URI: "dump://state", CallID: "call-3"},
		&mcp.ReadResourceResult{
			Contents: []mcp.ResourceContents{
				mcp.BlobResourceContents{URI: "dump://state", MIMEType: "application/gzip", Blob: blob},
			},
		})
	require.NoError(t, err)

	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, api.ArtifactBlob, result.Artifacts[0].MediaKind)
	assert.NotContains(t, result.Text, "\x1f")
}

func TestMapPromptResult(t *testing.T) {
	mapper := &ContentMapper{}

	result, err := mapper.MapResult(
		api.ProtocolRequest{Method: api.MethodPromptsGet, Name: "hint", CallID: "call-4"},
		&mcp.GetPromptResult{
			Description: "A gentle hint",
			Messages: []mcp.PromptMessage{
				{Role: mcp.RoleUser, Content: mcp.TextContent{Type: "text", Text: "try the rusty key"}},
			},
		})
	require.NoError(t, err)

	assert.Contains(t, result.Text, "A gentle hint")
	assert.Contains(t, result.Text, "try the rusty key")
}

func TestMapUnexpectedResultType(t *testing.T) {
	mapper := &ContentMapper{}
	_, err := mapper.MapResult(toolCallRequest(), "not a protocol result")
	assert.Error(t, err)
}

func TestResultsMessageBuildsSyntheticBlocks(t *testing.T) {
	mapper := &ContentMapper{}

	results := []api.ToolResult{
		{CallID: "call-1", Text: "ok", Fragment: anthropic.NewToolResultBlock("call-1", "ok", false)},
		{CallID: "call-2", Text: "Error: tool not found", IsError: true},
	}

	msg, ok := mapper.ResultsMessage(results, []string{"Server capabilities changed."}).(anthropic.MessageParam)
	require.True(t, ok)
	assert.Len(t, msg.Content, 3)
}

func TestMapToolsCoversAllCapabilityKinds(t *testing.T) {
	mapper := &ToolMapper{}

	raw, err := mapper.MapTools(protocol.CapabilitySnapshot{
		Tools: []mcp.Tool{{
			Name:        "open_door",
			Description: "Open a door",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{"direction": map[string]any{"type": "string"}},
				Required:   []string{"direction"},
			},
		}},
		Prompts: []mcp.Prompt{{
			Name:      "hint",
			Arguments: []mcp.PromptArgument{{Name: "topic", Required: true}},
		}},
		Resources: []mcp.Resource{{URI: "map://cellar"}},
	})
	require.NoError(t, err)

	specs, ok := raw.([]anthropic.ToolUnionParam)
	require.True(t, ok)
	require.Len(t, specs, 3)

	assert.Equal(t, "open_door", specs[0].OfTool.Name)
	assert.Equal(t, []string{"direction"}, specs[0].OfTool.InputSchema.Required)
	assert.Equal(t, "prompt_hint", specs[1].OfTool.Name)
	assert.Equal(t, []string{"topic"}, specs[1].OfTool.InputSchema.Required)
	assert.Equal(t, "read_resource", specs[2].OfTool.Name)
}
