package packagemanager

import (
	"context"
	"strings"

	cm "github.com/varadakari/ceph-deploy/cephdeploy/commandmanager"
)

// Unattended keeps apt and debconf from prompting.
var Unattended = []string{"DEBIAN_FRONTEND=noninteractive", "DEBIAN_PRIORITY=critical"}

type AptPackageManager struct {
	CommandManager cm.CommandManager
}

func (apm *AptPackageManager) Update(ctx context.Context) error {
	_, err := apm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apt-get",
		Sudo:    true,
		Args:    []string{"-q", "update"},
	})
	return err
}

// Install installs pkgs in one transaction, keeping new config files.
func (apm *AptPackageManager) Install(ctx context.Context, pkgs ...string) error {
	args := []string{
		"-q",
		"-o", "Dpkg::Options::=--force-confnew",
		"--no-install-recommends",
		"--assume-yes",
		"install",
		"--",
	}
	_, err := apm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apt-get",
		Sudo:    true,
		Env:     Unattended,
		Args:    append(args, pkgs...),
	})
	return err
}

func (apm *AptPackageManager) InstallFile(ctx context.Context, path string) error {
	_, err := apm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "dpkg",
		Sudo:    true,
		Env:     Unattended,
		Args:    []string{"-i", path},
	})
	return err
}

func (apm *AptPackageManager) Remove(ctx context.Context, purge bool, pkgs ...string) error {
	args := []string{"-q", "remove", "-f", "--assume-yes"}
	if purge {
		args = append(args, "--purge")
	}
	_, err := apm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apt-get",
		Sudo:    true,
		Env:     []string{"DEBIAN_FRONTEND=noninteractive"},
		Args:    append(args, pkgs...),
	})
	return err
}

func (apm *AptPackageManager) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	output, err := apm.CommandManager.Run(ctx, cm.CommandConfig{
		Command:      "dpkg-query",
		Args:         []string{"-W", "-f=${Status}", pkg},
		AllowFailure: true,
	})
	if err != nil {
		return false, err
	}
	if output.ExitCode != 0 {
		return false, nil
	}
	return strings.Contains(output.STDOUT, "install ok installed"), nil
}

func (apm *AptPackageManager) EnsurePackagePresent(ctx context.Context, pkg string) error {
	installed, err := apm.IsInstalled(ctx, pkg)
	if err != nil {
		return err
	}
	if installed {
		return nil
	}
	return apm.Install(ctx, pkg)
}
