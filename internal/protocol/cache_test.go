package protocol

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
)

func TestCapabilityCacheRevisionBumpsOnChange(t *testing.T) {
	cache := &capabilityCache{}

	changed := cache.setTools([]mcp.Tool{{Name: "open_door"}})
	cache.markPopulated()
	assert.True(t, changed)

	snap := cache.snapshot()
	assert.Equal(t, uint64(1), snap.Revision)

	changed = cache.setTools([]mcp.Tool{{Name: "open_door"}, {Name: "look"}})
	assert.True(t, changed)
	assert.Equal(t, uint64(2), cache.snapshot().Revision)
}

func TestCapabilityCacheReplayIsIdempotent(t *testing.T) {
	cache := &capabilityCache{}
	tools := []mcp.Tool{{Name: "open_door", Description: "Opens the door"}}

	cache.setTools(tools)
	cache.markPopulated()
	first := cache.snapshot()

	// Replaying the same list (same notification delivered twice) must not
	// change the cache state.
	changed := cache.setTools(tools)
	assert.False(t, changed)

	second := cache.snapshot()
	assert.Equal(t, first.Revision, second.Revision)
	assert.Equal(t, first.Tools, second.Tools)
}

func TestCapabilityCacheKindsBumpIndependently(t *testing.T) {
	cache := &capabilityCache{}
	cache.setTools([]mcp.Tool{{Name: "a"}})
	cache.setPrompts([]mcp.Prompt{{Name: "p"}})
	cache.setResources([]mcp.Resource{{URI: "file:///r"}})
	cache.markPopulated()

	assert.Equal(t, uint64(3), cache.snapshot().Revision)

	assert.False(t, cache.setPrompts([]mcp.Prompt{{Name: "p"}}))
	assert.True(t, cache.setResources(nil))
	assert.Equal(t, uint64(4), cache.snapshot().Revision)
}

func TestSnapshotLookupHelpers(t *testing.T) {
	snap := CapabilitySnapshot{
		Tools:     []mcp.Tool{{Name: "open_door"}, {Name: "look"}},
		Prompts:   []mcp.Prompt{{Name: "greeting"}},
		Resources: []mcp.Resource{{URI: "file:///map.txt"}},
	}

	tool, ok := snap.FindTool("look")
	assert.True(t, ok)
	assert.Equal(t, "look", tool.Name)

	_, ok = snap.FindTool("unlock_chest")
	assert.False(t, ok)

	_, ok = snap.FindPrompt("greeting")
	assert.True(t, ok)

	_, ok = snap.FindResource("file:///map.txt")
	assert.True(t, ok)

	assert.Equal(t, []string{"open_door", "look"}, snap.ToolNames())
}

func TestSnapshotIsACopy(t *testing.T) {
	cache := &capabilityCache{}
	cache.setTools([]mcp.Tool{{Name: "a"}})
	cache.markPopulated()

	snap := cache.snapshot()
	snap.Tools[0].Name = "mutated"

	assert.Equal(t, "a", cache.snapshot().Tools[0].Name)
}
