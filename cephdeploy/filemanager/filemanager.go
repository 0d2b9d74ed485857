package filemanager

import (
	"context"
	"errors"
	"os"
	"strings"

	cm "github.com/varadakari/ceph-deploy/cephdeploy/commandmanager"
)

// FileManager writes and inspects files on a host.
type FileManager interface {
	// WriteFile replaces path with data, creating it with mode. Root-owned
	// destinations are fine: the content is staged then installed under sudo.
	WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode) error
	Exists(ctx context.Context, path string) (bool, error)
}

// Stager puts content somewhere on the host the login user can read.
type Stager interface {
	Stage(ctx context.Context, data []byte) (string, error)
}

func handleCommandResult(result cm.CommandResult, err error) error {
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return errors.New(strings.TrimSpace(result.STDERR))
	}
	return nil
}
