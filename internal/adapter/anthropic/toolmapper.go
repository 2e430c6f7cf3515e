package anthropic

import (
	"fmt"
	"strings"

	"tether/internal/protocol"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	// promptToolPrefix marks the synthetic tools that expose server
	// prompts. The translator strips it to recover the prompt name.
	promptToolPrefix = "prompt_"
	// resourceToolName is the single synthetic tool that exposes
	// resource reads.
	resourceToolName = "read_resource"
)

// ToolMapper renders a capability snapshot as Anthropic tool specs.
type ToolMapper struct{}

// MapTools returns []anthropic.ToolUnionParam covering the snapshot's
// tools, one synthetic tool per prompt, and a read_resource tool when the
// server advertises resources.
func (m *ToolMapper) MapTools(snap protocol.CapabilitySnapshot) (any, error) {
	specs := make([]anthropic.ToolUnionParam, 0, len(snap.Tools)+len(snap.Prompts)+1)

	for _, tool := range snap.Tools {
		specs = append(specs, toolSpec(tool.Name, tool.Description, anthropic.ToolInputSchemaParam{
			Properties: tool.InputSchema.Properties,
			Required:   tool.InputSchema.Required,
		}))
	}

	for _, prompt := range snap.Prompts {
		specs = append(specs, promptSpec(prompt))
	}

	if len(snap.Resources) > 0 {
		specs = append(specs, resourceSpec(snap.Resources))
	}

	return specs, nil
}

func toolSpec(name, description string, schema anthropic.ToolInputSchemaParam) anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        name,
			Description: anthropic.String(description),
			InputSchema: schema,
		},
	}
}

func promptSpec(prompt mcp.Prompt) anthropic.ToolUnionParam {
	properties := make(map[string]any, len(prompt.Arguments))
	var required []string
	for _, arg := range prompt.Arguments {
		properties[arg.Name] = map[string]any{
			"type":        "string",
			"description": arg.Description,
		}
		if arg.Required {
			required = append(required, arg.Name)
		}
	}

	description := prompt.Description
	if description == "" {
		description = fmt.Sprintf("Retrieve the %s prompt from the server.", prompt.Name)
	}

	return toolSpec(promptToolPrefix+prompt.Name, description, anthropic.ToolInputSchemaParam{
		Properties: properties,
		Required:   required,
	})
}

func resourceSpec(resources []mcp.Resource) anthropic.ToolUnionParam {
	uris := make([]string, 0, len(resources))
	for _, r := range resources {
		uris = append(uris, r.URI)
	}

	return toolSpec(resourceToolName,
		"Read a resource from the server. Available URIs: "+strings.Join(uris, ", "),
		anthropic.ToolInputSchemaParam{
			Properties: map[string]any{
				"uri": map[string]any{
					"type":        "string",
					"description": "URI of the resource to read",
				},
			},
			Required: []string{"uri"},
		})
}
