package watcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryFlagging(t *testing.T) {
	registry := NewFalsePositiveRegistry(RemoveOne)

	require.False(t, registry.Flagged("Raleigh East"))

	registry.Flag("Raleigh East")
	require.True(t, registry.Flagged("Raleigh East"))
	require.False(t, registry.Flagged("Durham South"))

	// flagging twice is idempotent
	registry.Flag("Raleigh East")
	require.Equal(t, 1, registry.Len())
}

func TestRegistryRemoveOnePolicy(t *testing.T) {
	registry := NewFalsePositiveRegistry(RemoveOne)
	registry.Flag("Raleigh East")
	registry.Flag("Durham South")

	registry.Clear("Raleigh East")
	require.False(t, registry.Flagged("Raleigh East"))
	require.True(t, registry.Flagged("Durham South"))
}

func TestRegistryFlushAllPolicy(t *testing.T) {
	registry := NewFalsePositiveRegistry(FlushAll)
	registry.Flag("Raleigh East")
	registry.Flag("Durham South")

	registry.Clear("Raleigh East")
	require.Equal(t, 0, registry.Len())
}

func TestRegistryDefaultPolicy(t *testing.T) {
	registry := NewFalsePositiveRegistry("")
	registry.Flag("a")
	registry.Flag("b")
	registry.Clear("a")
	require.True(t, registry.Flagged("b"))
}
