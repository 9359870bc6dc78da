package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
)

// SimpleRunner executes system commands with captured output. Arguments are
// validated against shell metacharacters before execution; commands never go
// through a shell.
type SimpleRunner struct {
	logger *logger.Logger
}

// NewSimpleRunner creates a new SimpleRunner instance
func NewSimpleRunner() *SimpleRunner {
	return &SimpleRunner{
		logger: logger.NewLogger(logrus.InfoLevel),
	}
}

// Run executes a command and returns its stdout. Stderr is folded into the
// returned error on failure.
func (r *SimpleRunner) Run(ctx context.Context, command string, args []string) ([]byte, error) {
	if err := r.validateCommand(command); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	for i, arg := range args {
		if err := r.validateArgument(arg); err != nil {
			return nil, fmt.Errorf("invalid argument at index %d (%s): %w", i, arg, err)
		}
	}

	r.logger.WithFields(logger.Fields{
		"command": command,
		"args":    args,
	}).Debug("Executing command")

	cmd := exec.CommandContext(ctx, command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errorMsg := fmt.Sprintf("execution failed: %v", err)
		if stderr.Len() > 0 {
			errorMsg = fmt.Sprintf("%s\nstderr: %s", errorMsg, stderr.String())
		}

		r.logger.WithError(err).WithField("command", command).Error("Command execution failed")
		return stdout.Bytes(), fmt.Errorf("%s", errorMsg)
	}

	return stdout.Bytes(), nil
}

// Installed reports whether the named tool is resolvable on PATH
func (r *SimpleRunner) Installed(command string) bool {
	_, err := exec.LookPath(command)
	return err == nil
}

// validateCommand validates that a command is safe to execute
func (r *SimpleRunner) validateCommand(command string) error {
	if command == "" {
		return fmt.Errorf("command is empty")
	}
	if strings.ContainsAny(command, " \t;&|`$") {
		return fmt.Errorf("unsafe characters in command: %s", command)
	}
	return nil
}

// validateArgument validates that a command argument is safe
func (r *SimpleRunner) validateArgument(arg string) error {
	if arg == "" {
		return nil // empty arguments are allowed
	}

	// Shell metacharacters that could enable command injection
	dangerous := []string{";", "&", "|", "`", "$", "(", ")", "\n", "\r", "<", ">"}
	for _, char := range dangerous {
		if strings.Contains(arg, char) {
			return fmt.Errorf("argument contains dangerous character: %s", char)
		}
	}

	// Path traversal is fine inside URLs, not in file paths
	if strings.Contains(arg, "..") && !strings.Contains(arg, "://") {
		return fmt.Errorf("path traversal detected in argument")
	}

	return nil
}
