package cli

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSettingsShow(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.settings.settings.LLM.APIKey = "sk-1234567890abcdef"

	out, err := executeCommand("settings")

	require.NoError(t, err)
	assert.Contains(t, out, "[embedding]")
	assert.Contains(t, out, "[validation]")
	assert.Contains(t, out, "api_key: sk-1...cdef")
	assert.Contains(t, out, "api_key: (not set)")
	assert.NotContains(t, out, "sk-1234567890abcdef")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsShow_InvalidConfig(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.settings.validateErr = errors.New("llm.api_key is required")

	out, err := executeCommand("settings", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "Warning: llm.api_key is required")
	assert.Contains(t, out, "querynest settings wizard")
}

func TestSettingsShow_JSON(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("settings", "show", "--format", "json")
	require.NoError(t, err)

	var groups map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &groups))
	assert.Equal(t, "local", groups["embedding"]["provider"])
	assert.Contains(t, groups, "chunker")
	assert.Contains(t, groups["retrieval"], "top_k")
}

func TestSettingsSet(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("settings", "set", "retrieval.top_k", "8")
	require.NoError(t, err)
	assert.Equal(t, "retrieval.top_k = 8\n", out)
	assert.Equal(t, "8", ts.settings.set["retrieval.top_k"])

	out, err = executeCommand("settings", "set", "llm.api_key", "sk-abcdefghijklmnop")
	require.NoError(t, err)
	assert.Equal(t, "llm.api_key = sk-a...mnop\n", out)

	ts.settings.err = errors.New("invalid value")
	_, err = executeCommand("settings", "set", "retrieval.top_k", "zero")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set retrieval.top_k")
}

func TestSettingsKeys(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("settings", "keys")

	require.NoError(t, err)
	assert.Equal(t, "embedding.provider\nretrieval.top_k\n", out)
}
