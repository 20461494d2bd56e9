package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobals(t *testing.T) {
	t.Helper()
	oldTimeout, oldFormat, oldConfig := timeout, format, configPath
	t.Cleanup(func() {
		timeout, format, configPath = oldTimeout, oldFormat, oldConfig
	})
}

func TestParseGlobalFlags(t *testing.T) {
	resetGlobals(t)

	rest, err := parseGlobalFlags([]string{"get", "-t", "5s", "QmHash", "--format", "json", "-c", "dev.yaml"})
	require.NoError(t, err)
	assert.Equal(t, []string{"get", "QmHash"}, rest)
	assert.Equal(t, 5*time.Second, timeout)
	assert.Equal(t, "json", format)
	assert.Equal(t, "dev.yaml", configPath)
}

func TestParseGlobalFlagsRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unparsable timeout", []string{"-t", "soon"}},
		{"negative timeout", []string{"--timeout", "-1s"}},
		{"missing value", []string{"save", "-c"}},
		{"unknown format", []string{"-f", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetGlobals(t)
			_, err := parseGlobalFlags(tt.args)
			assert.Error(t, err)
			assert.Equal(t, 30*time.Second, timeout, "default timeout kept")
		})
	}
}
