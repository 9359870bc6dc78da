package runner

import "context"

// CommandRunner executes an external scanning tool and returns its stdout.
// Implementations must honor context cancellation and deadlines; a timeout is
// surfaced as a normal execution error, not a distinct category.
type CommandRunner interface {
	Run(ctx context.Context, command string, args []string) ([]byte, error)
	Installed(command string) bool
}
