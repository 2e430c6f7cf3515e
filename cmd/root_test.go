package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", GetVersion())
}

func TestChatCommandIsRegistered(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"chat"})
	require.NoError(t, err)
	assert.Equal(t, "chat", cmd.Name())

	flag := cmd.Flags().Lookup("endpoint")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
}

func TestVersionCommandIsRegistered(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"version"})
	require.NoError(t, err)
	assert.Equal(t, "version", cmd.Name())
}
