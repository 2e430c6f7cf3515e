package protocol

import (
	"reflect"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
)

// CapabilitySnapshot is an immutable view of the server's advertised
// capabilities at a given revision. The revision increases monotonically and
// only when the capability set actually changed, so replaying the same
// change notification twice leaves the snapshot identical to replaying it
// once.
type CapabilitySnapshot struct {
	Tools     []mcp.Tool
	Prompts   []mcp.Prompt
	Resources []mcp.Resource
	Revision  uint64
}

// ToolNames returns the names of all tools in the snapshot.
func (s CapabilitySnapshot) ToolNames() []string {
	names := make([]string, 0, len(s.Tools))
	for _, tool := range s.Tools {
		names = append(names, tool.Name)
	}
	return names
}

// FindTool returns the tool with the given name, if present.
func (s CapabilitySnapshot) FindTool(name string) (mcp.Tool, bool) {
	for _, tool := range s.Tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return mcp.Tool{}, false
}

// FindPrompt returns the prompt with the given name, if present.
func (s CapabilitySnapshot) FindPrompt(name string) (mcp.Prompt, bool) {
	for _, prompt := range s.Prompts {
		if prompt.Name == name {
			return prompt, true
		}
	}
	return mcp.Prompt{}, false
}

// FindResource returns the resource with the given URI, if present.
func (s CapabilitySnapshot) FindResource(uri string) (mcp.Resource, bool) {
	for _, resource := range s.Resources {
		if resource.URI == uri {
			return resource, true
		}
	}
	return mcp.Resource{}, false
}

// capabilityCache holds the current capability lists behind a RWMutex.
// Writers are serialized by the notification listener goroutine; the mutex
// protects concurrent readers taking snapshots mid-refresh.
type capabilityCache struct {
	mu        sync.RWMutex
	tools     []mcp.Tool
	prompts   []mcp.Prompt
	resources []mcp.Resource
	populated bool
	revision  uint64
}

func (c *capabilityCache) snapshot() CapabilitySnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CapabilitySnapshot{
		Tools:     append([]mcp.Tool(nil), c.tools...),
		Prompts:   append([]mcp.Prompt(nil), c.prompts...),
		Resources: append([]mcp.Resource(nil), c.resources...),
		Revision:  c.revision,
	}
}

func (c *capabilityCache) isPopulated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.populated
}

// setTools replaces the tool list and reports whether the cache changed.
// The revision is bumped only on an effective change.
func (c *capabilityCache) setTools(tools []mcp.Tool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.populated && reflect.DeepEqual(c.tools, tools) {
		return false
	}
	c.tools = append([]mcp.Tool(nil), tools...)
	c.revision++
	return true
}

func (c *capabilityCache) setPrompts(prompts []mcp.Prompt) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.populated && reflect.DeepEqual(c.prompts, prompts) {
		return false
	}
	c.prompts = append([]mcp.Prompt(nil), prompts...)
	c.revision++
	return true
}

func (c *capabilityCache) setResources(resources []mcp.Resource) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.populated && reflect.DeepEqual(c.resources, resources) {
		return false
	}
	c.resources = append([]mcp.Resource(nil), resources...)
	c.revision++
	return true
}

func (c *capabilityCache) markPopulated() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.populated = true
}
