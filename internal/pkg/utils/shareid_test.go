package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateShareID(t *testing.T) {
	id, err := GenerateShareID()
	require.NoError(t, err)
	assert.Len(t, id, ShareIDLength)

	for _, c := range id {
		assert.True(t, strings.ContainsRune(shareIDAlphabet, c), "unexpected character %q", c)
	}
}

func TestGenerateShareIDUniqueness(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id, err := GenerateShareID()
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate share id %s", id)
		seen[id] = true
	}
}
