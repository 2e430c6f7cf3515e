package adapter

import (
	"errors"
	"testing"

	"tether/internal/agent"
	"tether/internal/api"
	"tether/internal/protocol"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotWithTools(names ...string) protocol.CapabilitySnapshot {
	snap := protocol.CapabilitySnapshot{}
	for _, name := range names {
		snap.Tools = append(snap.Tools, mcp.Tool{Name: name})
	}
	return snap
}

func TestSummarizeChangeReportsAddedAndRemoved(t *testing.T) {
	before := snapshotWithTools("open_door", "look")
	after := snapshotWithTools("look", "unlock_chest")

	summary := SummarizeChange(before, after)
	assert.Contains(t, summary, "added unlock_chest")
	assert.Contains(t, summary, "removed open_door")
}

func TestSummarizeChangeEmptyWhenUnchanged(t *testing.T) {
	snap := snapshotWithTools("open_door")
	assert.Empty(t, SummarizeChange(snap, snap))
}

func TestSummarizeChangeCoversPromptsAndResources(t *testing.T) {
	before := protocol.CapabilitySnapshot{
		Prompts: []mcp.Prompt{{Name: "hint"}},
	}
	after := protocol.CapabilitySnapshot{
		Resources: []mcp.Resource{{URI: "map://cellar"}},
	}

	summary := SummarizeChange(before, after)
	assert.Contains(t, summary, "removed hint")
	assert.Contains(t, summary, "added map://cellar")
}

func TestSyntheticErrorResult(t *testing.T) {
	a := &Adapter{}
	call := api.ToolCallDescriptor{ID: "call-7", Name: "open_door"}

	result := a.SyntheticErrorResult(call, errors.New("no such tool"))
	assert.Equal(t, "call-7", result.CallID)
	assert.Equal(t, "open_door", result.Name)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text, "no such tool")
}

func TestRegistryUnknownProvider(t *testing.T) {
	_, err := New("no-such-provider", agent.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-provider")
}

func TestRegistryRoundTrip(t *testing.T) {
	Register("test-provider", func(cfg agent.Config) (Bundle, error) {
		return Bundle{Adapter: &Adapter{}}, nil
	})

	bundle, err := New("test-provider", agent.Config{Model: "test"})
	require.NoError(t, err)
	assert.NotNil(t, bundle.Adapter)
	assert.Contains(t, Providers(), "test-provider")
}
