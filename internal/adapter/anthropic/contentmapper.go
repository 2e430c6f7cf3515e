package anthropic

import (
	"encoding/base64"
	"fmt"
	"strings"

	"tether/internal/api"
	"tether/pkg/logging"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/mark3labs/mcp-go/mcp"
)

// ContentMapper converts protocol results into Anthropic history fragments
// and UI artifacts.
type ContentMapper struct{}

// MapResult splits a raw protocol result into model-visible text and
// artifacts. Binary and unrecognized content never enters the text side;
// it is routed to artifacts with a placeholder note in the text so the
// model knows something was produced.
func (m *ContentMapper) MapResult(req api.ProtocolRequest, raw any) (api.ToolResult, error) {
	result := api.ToolResult{CallID: req.CallID, Name: req.Name}

	switch typed := raw.(type) {
	case *mcp.CallToolResult:
		result.IsError = typed.IsError
		m.mapContents(&result, typed.Content)
	case *mcp.GetPromptResult:
		m.mapPrompt(&result, typed)
	case *mcp.ReadResourceResult:
		for _, contents := range typed.Contents {
			m.mapResourceContents(&result, contents)
		}
	case *mcp.ListToolsResult:
		names := make([]string, 0, len(typed.Tools))
		for _, t := range typed.Tools {
			names = append(names, t.Name)
		}
		appendText(&result, "Available tools: "+strings.Join(names, ", "))
	case *mcp.ListPromptsResult:
		names := make([]string, 0, len(typed.Prompts))
		for _, p := range typed.Prompts {
			names = append(names, p.Name)
		}
		appendText(&result, "Available prompts: "+strings.Join(names, ", "))
	case *mcp.ListResourcesResult:
		uris := make([]string, 0, len(typed.Resources))
		for _, r := range typed.Resources {
			uris = append(uris, r.URI)
		}
		appendText(&result, "Available resources: "+strings.Join(uris, ", "))
	default:
		return api.ToolResult{}, fmt.Errorf("unexpected protocol result type %T", raw)
	}

	if result.Text == "" && len(result.Artifacts) == 0 {
		result.Text = "(empty result)"
	}
	result.Fragment = anthropic.NewToolResultBlock(req.CallID, result.Text, result.IsError)
	return result, nil
}

func (m *ContentMapper) mapContents(result *api.ToolResult, contents []mcp.Content) {
	for _, content := range contents {
		switch typed := content.(type) {
		case mcp.TextContent:
			appendText(result, typed.Text)
		case mcp.ImageContent:
			m.addArtifact(result, api.Artifact{
				MediaKind: api.ArtifactImage,
				MIMEType:  typed.MIMEType,
				Name:      result.Name,
				Data:      typed.Data,
			})
		case mcp.AudioContent:
			m.addArtifact(result, api.Artifact{
				MediaKind: api.ArtifactAudio,
				MIMEType:  typed.MIMEType,
				Name:      result.Name,
				Data:      typed.Data,
			})
		case mcp.EmbeddedResource:
			m.mapResourceContents(result, typed.Resource)
		case mcp.ResourceLink:
			appendText(result, fmt.Sprintf("Resource available: %s (%s)", typed.Name, typed.URI))
		default:
			logging.Warn("Adapter", "Unrecognized content type %T routed to artifact", content)
			m.addArtifact(result, api.Artifact{
				MediaKind: api.ArtifactUnknown,
				Name:      result.Name,
			})
		}
	}
}

func (m *ContentMapper) mapPrompt(result *api.ToolResult, prompt *mcp.GetPromptResult) {
	if prompt.Description != "" {
		appendText(result, prompt.Description)
	}
	for _, msg := range prompt.Messages {
		if text, ok := msg.Content.(mcp.TextContent); ok {
			appendText(result, fmt.Sprintf("[%s] %s", msg.Role, text.Text))
			continue
		}
		logging.Warn("Adapter", "Non-text prompt content %T routed to artifact", msg.Content)
		m.addArtifact(result, api.Artifact{MediaKind: api.ArtifactUnknown, Name: result.Name})
	}
}

// mapResourceContents decodes textual blobs into model-visible text and
// routes everything else to artifacts.
func (m *ContentMapper) mapResourceContents(result *api.ToolResult, contents mcp.ResourceContents) {
	switch typed := contents.(type) {
	case mcp.TextResourceContents:
		appendText(result, typed.Text)
	case mcp.BlobResourceContents:
		if isTextualMIME(typed.MIMEType) {
			if decoded, err := base64.StdEncoding.DecodeString(typed.Blob); err == nil {
				appendText(result, string(decoded))
				return
			}
			logging.Warn("Adapter", "Textual blob %s failed base64 decoding, routing to artifact", typed.URI)
		}
		m.addArtifact(result, api.Artifact{
			MediaKind: api.ArtifactBlob,
			MIMEType:  typed.MIMEType,
			Name:      typed.URI,
			Data:      typed.Blob,
		})
	default:
		m.addArtifact(result, api.Artifact{MediaKind: api.ArtifactUnknown, Name: result.Name})
	}
}

func (m *ContentMapper) addArtifact(result *api.ToolResult, artifact api.Artifact) {
	artifact.Size = base64.StdEncoding.DecodedLen(len(artifact.Data))
	result.Artifacts = append(result.Artifacts, artifact)
	appendText(result, fmt.Sprintf("[%s artifact produced: %s]", artifact.MediaKind, artifact.MIMEType))
}

func appendText(result *api.ToolResult, text string) {
	if text == "" {
		return
	}
	if result.Text != "" {
		result.Text += "\n"
	}
	result.Text += text
}

// isTextualMIME reports whether a blob with this MIME type is safe to
// decode into model context.
func isTextualMIME(mime string) bool {
	if strings.HasPrefix(mime, "text/") {
		return true
	}
	switch mime {
	case "application/json", "application/xml", "application/yaml":
		return true
	}
	return false
}

// UserMessage builds the history entry for one user text message.
func (m *ContentMapper) UserMessage(text string) any {
	return anthropic.NewUserMessage(anthropic.NewTextBlock(text))
}

// ResultsMessage builds the single history entry for one round. Tool
// result blocks come first in issue order, then one text block per
// capability note.
func (m *ContentMapper) ResultsMessage(results []api.ToolResult, notes []string) any {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(results)+len(notes))
	for _, result := range results {
		if fragment, ok := result.Fragment.(anthropic.ContentBlockParamUnion); ok {
			blocks = append(blocks, fragment)
			continue
		}
		// Synthetic error results carry no prebuilt fragment.
		blocks = append(blocks, anthropic.NewToolResultBlock(result.CallID, result.Text, result.IsError))
	}
	for _, note := range notes {
		blocks = append(blocks, anthropic.NewTextBlock(note))
	}
	return anthropic.NewUserMessage(blocks...)
}
