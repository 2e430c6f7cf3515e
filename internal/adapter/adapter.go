package adapter

import (
	"fmt"
	"sort"
	"strings"

	"tether/internal/api"
	"tether/internal/protocol"
)

// ToolMapper renders the server's capability snapshot as provider-native
// tool specs.
type ToolMapper interface {
	// MapTools returns the provider-native spec list for the snapshot's
	// tools, plus the synthetic entries that expose prompts and resources
	// as callable tools.
	MapTools(snap protocol.CapabilitySnapshot) (any, error)
}

// CallTranslator turns a model-requested tool call into a protocol request.
type CallTranslator interface {
	// Translate resolves the call against the snapshot. A call naming a
	// capability absent from the snapshot fails with
	// api.UnmappedCapabilityError; the turn continues with that error as
	// the call's result.
	Translate(call api.ToolCallDescriptor, snap protocol.CapabilitySnapshot) (api.ProtocolRequest, error)
}

// ContentMapper turns protocol results into provider-native history
// fragments and builds the provider-native history entries the agent
// records.
type ContentMapper interface {
	// MapResult converts a raw protocol result into a ToolResult whose
	// Fragment is ready for history and whose Artifacts are bound for the
	// UI. Content kinds the provider cannot represent fail closed: they
	// become artifacts and never reach model-visible history.
	MapResult(req api.ProtocolRequest, raw any) (api.ToolResult, error)

	// UserMessage builds the history entry for a user's text.
	UserMessage(text string) any

	// ResultsMessage builds the single history entry for one round of
	// tool results, with any pending capability notes attached. All of a
	// round's results travel in one entry so history never interleaves
	// rounds.
	ResultsMessage(results []api.ToolResult, notes []string) any
}

// Adapter bundles one provider's three translation components.
type Adapter struct {
	Tools      ToolMapper
	Translator CallTranslator
	Content    ContentMapper
}

// SyntheticErrorResult builds the in-history result for a call that failed
// before or during execution. The turn survives; the model sees the error
// text as the call's outcome.
func (a *Adapter) SyntheticErrorResult(call api.ToolCallDescriptor, err error) api.ToolResult {
	text := fmt.Sprintf("Error: %v", err)
	return api.ToolResult{
		CallID:   call.ID,
		Name:     call.Name,
		Text:     text,
		IsError:  true,
		Fragment: nil,
	}
}

// SummarizeChange describes a capability transition as a short note for the
// model. Returns "" when nothing effectively changed.
func SummarizeChange(before, after protocol.CapabilitySnapshot) string {
	var parts []string
	if p := diffLine("Tools", before.ToolNames(), after.ToolNames()); p != "" {
		parts = append(parts, p)
	}
	if p := diffLine("Prompts", promptNames(before), promptNames(after)); p != "" {
		parts = append(parts, p)
	}
	if p := diffLine("Resources", resourceNames(before), resourceNames(after)); p != "" {
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Server capabilities changed. " + strings.Join(parts, " ")
}

func diffLine(kind string, before, after []string) string {
	added := subtract(after, before)
	removed := subtract(before, after)
	if len(added) == 0 && len(removed) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(kind + ":")
	if len(added) > 0 {
		b.WriteString(" added " + strings.Join(added, ", "))
	}
	if len(removed) > 0 {
		if len(added) > 0 {
			b.WriteString(";")
		}
		b.WriteString(" removed " + strings.Join(removed, ", "))
	}
	b.WriteString(".")
	return b.String()
}

func subtract(a, b []string) []string {
	seen := make(map[string]bool, len(b))
	for _, name := range b {
		seen[name] = true
	}
	var out []string
	for _, name := range a {
		if !seen[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func promptNames(snap protocol.CapabilitySnapshot) []string {
	names := make([]string, 0, len(snap.Prompts))
	for _, p := range snap.Prompts {
		names = append(names, p.Name)
	}
	return names
}

func resourceNames(snap protocol.CapabilitySnapshot) []string {
	names := make([]string, 0, len(snap.Resources))
	for _, r := range snap.Resources {
		names = append(names, r.URI)
	}
	return names
}
