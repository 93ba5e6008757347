package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateJoinCodeShapeAndAlphabet(t *testing.T) {
	code := generateJoinCode()
	require.Len(t, code, 6)
	for _, r := range code {
		require.True(t, strings.ContainsRune(joinCodeAlphabet, r), "unexpected character %q", r)
	}
}

func TestGenerateJoinCodeExcludesAmbiguousCharacters(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := generateJoinCode()
		require.NotContains(t, code, "0")
		require.NotContains(t, code, "O")
		require.NotContains(t, code, "1")
		require.NotContains(t, code, "I")
	}
}

func TestGenerateJoinCodeVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[generateJoinCode()] = true
	}
	require.Greater(t, len(seen), 1, "expected join codes to vary across calls")
}
