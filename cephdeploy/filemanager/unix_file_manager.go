package filemanager

import (
	"context"
	"fmt"
	"os"

	cm "github.com/varadakari/ceph-deploy/cephdeploy/commandmanager"
)

type UnixFileManager struct {
	CommandManager cm.CommandManager
	Stager         Stager
}

func (ufm *UnixFileManager) WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode) error {
	if ufm.Stager == nil {
		return fmt.Errorf("no stager configured for writing %s", path)
	}

	staged, err := ufm.Stager.Stage(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", path, err)
	}

	result, err := ufm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "install",
		Args:    []string{"-D", "-m", fmt.Sprintf("%04o", mode.Perm()), staged, path},
		Sudo:    true,
	})
	// The staged copy belongs to the login user, so no sudo.
	_, _ = ufm.CommandManager.Run(ctx, cm.CommandConfig{
		Command:      "rm",
		Args:         []string{"-f", staged},
		AllowFailure: true,
	})
	if err := handleCommandResult(result, err); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (ufm *UnixFileManager) Exists(ctx context.Context, path string) (bool, error) {
	result, err := ufm.CommandManager.Run(ctx, cm.CommandConfig{
		Command:      "test",
		Args:         []string{"-e", path},
		AllowFailure: true,
	})
	if err != nil {
		return false, err
	}
	return result.ExitCode == 0, nil
}
