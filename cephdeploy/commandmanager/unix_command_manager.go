package commandmanager

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"mvdan.cc/sh/v3/syntax"

	"github.com/varadakari/ceph-deploy/cephdeploy/common"
	"github.com/varadakari/ceph-deploy/cephdeploy/sshmanager"
)

var (
	ErrSudoIncorrectPassword = errors.New("sudo: incorrect password provided")
	ErrSudoNotInSudoers      = errors.New("sudo: user is not in the sudoers file")
	ErrSudoPasswordRequired  = errors.New("sudo: a password is required, pass --sudo-password")
)

// UnixCommandManager runs commands locally for localhost and over the shared
// SSH connection for everything else.
type UnixCommandManager struct {
	Hostname string
	Conn     *sshmanager.Connection
	common.Credentials
	Log logrus.FieldLogger
}

func (u *UnixCommandManager) log() logrus.FieldLogger {
	return common.LoggerOrDiscard(u.Log)
}

func (u *UnixCommandManager) argv(config CommandConfig) []string {
	sudo := config.Sudo && !u.IsRoot()
	return config.Argv(sudo, u.SudoPassword)
}

func (u *UnixCommandManager) sudoStdin(config CommandConfig) *strings.Reader {
	if config.Sudo && !u.IsRoot() && u.SudoPassword != "" {
		return strings.NewReader(u.SudoPassword + "\n")
	}
	return nil
}

// CommandLine quotes argv for the remote shell.
func CommandLine(argv []string) (string, error) {
	quoted := make([]string, 0, len(argv))
	for _, arg := range argv {
		q, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("cannot quote argument %q: %w", arg, err)
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, " "), nil
}

func (u *UnixCommandManager) RunLocal(ctx context.Context, config CommandConfig) (CommandResult, error) {
	argv := u.argv(config)
	cmdStr, err := CommandLine(argv)
	if err != nil {
		return CommandResult{}, err
	}
	u.log().Infof("Running command: %s", cmdStr)

	start := time.Now()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if stdin := u.sudoStdin(config); stdin != nil {
		cmd.Stdin = stdin
	}
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return CommandResult{Command: cmdStr, Timestamp: start}, ctx.Err()
	}

	result := CommandResult{
		Command:   cmdStr,
		STDOUT:    stdout.String(),
		STDERR:    stderr.String(),
		ExitCode:  getExitCode(runErr),
		Duration:  time.Since(start),
		Timestamp: start,
	}
	return u.finish(config, result, runErr)
}

func (u *UnixCommandManager) RunRemote(ctx context.Context, config CommandConfig) (CommandResult, error) {
	if u.Conn == nil {
		return CommandResult{}, errors.New("SSH connection is not initialized")
	}

	cmdStr, err := CommandLine(u.argv(config))
	if err != nil {
		return CommandResult{}, err
	}
	u.log().Infof("Running command: %s", cmdStr)

	session, err := u.Conn.NewSession(ctx)
	if err != nil {
		return CommandResult{}, err
	}
	defer session.Close()

	if stdin := u.sudoStdin(config); stdin != nil {
		session.Stdin = stdin
	}
	var stdout, stderr strings.Builder
	session.Stdout = &stdout
	session.Stderr = &stderr

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmdStr)
	}()

	select {
	case runErr := <-done:
		result := CommandResult{
			Command:   cmdStr,
			STDOUT:    stdout.String(),
			STDERR:    stderr.String(),
			ExitCode:  getExitCode(runErr),
			Duration:  time.Since(start),
			Timestamp: start,
		}
		return u.finish(config, result, runErr)

	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		u.log().Errorf("Command %q over SSH was cancelled", cmdStr)
		return CommandResult{Command: cmdStr, Timestamp: start}, ctx.Err()
	}
}

// finish logs output and maps the raw run error onto the result contract.
func (u *UnixCommandManager) finish(config CommandConfig, result CommandResult, runErr error) (CommandResult, error) {
	logLines(u.log().Debug, result.STDOUT)
	logLines(u.log().Warn, result.STDERR)

	if err := sudoError(config, result); err != nil {
		return result, err
	}

	if runErr != nil && !isExitError(runErr) {
		return result, runErr
	}

	if result.ExitCode != 0 {
		if config.AllowFailure {
			u.log().Debugf("Command exited with status %d, continuing", result.ExitCode)
			return result, nil
		}
		return result, &ExitError{
			Command:  result.Command,
			ExitCode: result.ExitCode,
			Stderr:   result.STDERR,
		}
	}

	return result, nil
}

func (u *UnixCommandManager) Run(ctx context.Context, config CommandConfig) (CommandResult, error) {
	if u.isLocal() {
		return u.RunLocal(ctx, config)
	}
	return u.RunRemote(ctx, config)
}

func (u *UnixCommandManager) isLocal() bool {
	return u.Hostname == "localhost" || u.Hostname == "127.0.0.1"
}

func sudoError(config CommandConfig, result CommandResult) error {
	if !config.Sudo || result.ExitCode == 0 {
		return nil
	}
	output := result.STDOUT + result.STDERR
	switch {
	case strings.Contains(output, "incorrect password"):
		return ErrSudoIncorrectPassword
	case strings.Contains(output, "is not in the sudoers file"):
		return ErrSudoNotInSudoers
	case strings.Contains(output, "a password is required"):
		return ErrSudoPasswordRequired
	}
	return nil
}

func logLines(logf func(args ...interface{}), output string) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			logf(line)
		}
	}
}

func isExitError(err error) bool {
	var localErr *exec.ExitError
	var remoteErr *ssh.ExitError
	return errors.As(err, &localErr) || errors.As(err, &remoteErr)
}

func getExitCode(err error) int {
	var localErr *exec.ExitError
	if errors.As(err, &localErr) {
		return localErr.ExitCode()
	}
	var remoteErr *ssh.ExitError
	if errors.As(err, &remoteErr) {
		return remoteErr.ExitStatus()
	}
	return 0
}
