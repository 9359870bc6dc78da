package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRejectsShellMetacharacters(t *testing.T) {
	runner := NewSimpleRunner()
	ctx := context.Background()

	tests := []struct {
		name    string
		command string
		args    []string
	}{
		{"semicolon in argument", "echo", []string{"hello; rm -rf /"}},
		{"pipe in argument", "echo", []string{"a | b"}},
		{"backtick in argument", "echo", []string{"`whoami`"}},
		{"dollar in argument", "echo", []string{"$(whoami)"}},
		{"redirect in argument", "echo", []string{"> /etc/passwd"}},
		{"path traversal in argument", "cat", []string{"../../etc/passwd"}},
		{"space in command", "echo hello", nil},
		{"empty command", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runner.Run(ctx, tt.command, tt.args)
			require.Error(t, err)
		})
	}
}

func TestRunAllowsTraversalInsideURLs(t *testing.T) {
	runner := NewSimpleRunner()
	err := runner.validateArgument("https://example.com/a/../b")
	assert.NoError(t, err)
}

func TestRunCapturesStdout(t *testing.T) {
	runner := NewSimpleRunner()
	out, err := runner.Run(context.Background(), "echo", []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestRunReportsFailure(t *testing.T) {
	runner := NewSimpleRunner()
	_, err := runner.Run(context.Background(), "false", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution failed")
}

func TestInstalled(t *testing.T) {
	runner := NewSimpleRunner()
	assert.True(t, runner.Installed("sh"))
	assert.False(t, runner.Installed("definitely-not-a-real-tool-xyz"))
}
