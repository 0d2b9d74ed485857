package commandmanager

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CommandConfig describes one command to run on a host.
type CommandConfig struct {
	Command string
	Args    []string
	// Sudo escalates the command unless the session already runs as root.
	Sudo bool
	// Env entries are KEY=VALUE pairs passed through an env(1) prefix.
	Env []string
	// AllowFailure reports nonzero exit codes in the result instead of an error.
	AllowFailure bool
}

// CommandResult encapsulates the results from a command execution.
type CommandResult struct {
	Command   string
	STDOUT    string
	STDERR    string
	ExitCode  int
	Duration  time.Duration
	Timestamp time.Time
}

// CommandManager runs commands on a single host.
type CommandManager interface {
	Run(ctx context.Context, config CommandConfig) (CommandResult, error)
}

// ExitError is returned when a command exits nonzero and failure was not allowed.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Argv renders the full argument vector including env and sudo prefixes.
func (c CommandConfig) Argv(sudo bool, sudoPassword string) []string {
	argv := append([]string{c.Command}, c.Args...)
	if len(c.Env) > 0 {
		argv = append(append([]string{"env"}, c.Env...), argv...)
	}
	if sudo {
		if sudoPassword != "" {
			argv = append([]string{"sudo", "-S", "-p", ""}, argv...)
		} else {
			argv = append([]string{"sudo", "-n"}, argv...)
		}
	}
	return argv
}
