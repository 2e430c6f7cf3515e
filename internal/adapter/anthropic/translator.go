package anthropic

import (
	"fmt"
	"strings"

	"tether/internal/api"
	"tether/internal/protocol"
)

// CallTranslator resolves model-requested tool calls against a capability
// snapshot and builds the matching protocol request.
type CallTranslator struct{}

// Translate routes the call: read_resource goes to resources/read, the
// prompt_ synthetic tools go to prompts/get, everything else is a plain
// tool call. The returned request carries the snapshot revision so a
// server-side transition between translation and execution surfaces as a
// per-call error instead of silently targeting the wrong state.
func (t *CallTranslator) Translate(call api.ToolCallDescriptor, snap protocol.CapabilitySnapshot) (api.ProtocolRequest, error) {
	switch {
	case call.Name == resourceToolName:
		return t.translateResource(call, snap)
	case strings.HasPrefix(call.Name, promptToolPrefix):
		return t.translatePrompt(call, snap)
	default:
		return t.translateTool(call, snap)
	}
}

func (t *CallTranslator) translateTool(call api.ToolCallDescriptor, snap protocol.CapabilitySnapshot) (api.ProtocolRequest, error) {
	if _, ok := snap.FindTool(call.Name); !ok {
		return api.ProtocolRequest{}, &api.UnmappedCapabilityError{
			Kind:      "tool",
			Name:      call.Name,
			Available: snap.ToolNames(),
		}
	}
	return api.ProtocolRequest{
		Method:    api.MethodToolsCall,
		Name:      call.Name,
		Arguments: call.Arguments,
		CallID:    call.ID,
		Revision:  snap.Revision,
	}, nil
}

func (t *CallTranslator) translatePrompt(call api.ToolCallDescriptor, snap protocol.CapabilitySnapshot) (api.ProtocolRequest, error) {
	name := strings.TrimPrefix(call.Name, promptToolPrefix)
	if _, ok := snap.FindPrompt(name); !ok {
		available := make([]string, 0, len(snap.Prompts))
		for _, p := range snap.Prompts {
			available = append(available, promptToolPrefix+p.Name)
		}
		return api.ProtocolRequest{}, &api.UnmappedCapabilityError{
			Kind:      "prompt",
			Name:      name,
			Available: available,
		}
	}
	return api.ProtocolRequest{
		Method:    api.MethodPromptsGet,
		Name:      name,
		Arguments: call.Arguments,
		CallID:    call.ID,
		Revision:  snap.Revision,
	}, nil
}

func (t *CallTranslator) translateResource(call api.ToolCallDescriptor, snap protocol.CapabilitySnapshot) (api.ProtocolRequest, error) {
	uri, _ := call.Arguments["uri"].(string)
	if uri == "" {
		return api.ProtocolRequest{}, fmt.Errorf("read_resource requires a uri argument")
	}
	if _, ok := snap.FindResource(uri); !ok {
		available := make([]string, 0, len(snap.Resources))
		for _, r := range snap.Resources {
			available = append(available, r.URI)
		}
		return api.ProtocolRequest{}, &api.UnmappedCapabilityError{
			Kind:      "resource",
			Name:      uri,
			Available: available,
		}
	}
	return api.ProtocolRequest{
		Method:   api.MethodResourcesRead,
		URI:      uri,
		CallID:   call.ID,
		Revision: snap.Revision,
	}, nil
}
