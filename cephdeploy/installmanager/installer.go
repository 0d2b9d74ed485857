package installmanager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	cm "github.com/varadakari/ceph-deploy/cephdeploy/commandmanager"
	"github.com/varadakari/ceph-deploy/cephdeploy/common"
	"github.com/varadakari/ceph-deploy/cephdeploy/repomanager"
)

const prerequisitePackage = "ca-certificates"

// Installer provisions Ceph packages on one Debian-family host. Every step is
// issued sequentially on the host's single connection.
type Installer struct {
	Commands cm.CommandManager
	Packages PackageManager
	Repos    RepoWriter
	// Files is optional. When set it is used to warn about missing key files.
	Files FileChecker
	// Codename is the distro release written into source list entries.
	Codename string
	Log      logrus.FieldLogger
}

func (i *Installer) log(step string) logrus.FieldLogger {
	return common.LoggerOrDiscard(i.Log).WithField("step", step)
}

// InstallOfficial installs from the upstream stable, testing or dev repositories.
func (i *Installer) InstallOfficial(ctx context.Context, src repomanager.Official, adjustRepos bool) error {
	addr, err := repomanager.Resolve(src)
	if err != nil {
		return err
	}
	i.log("install").Infof("Installing %s version %s on %s", src.Kind, src.Version, src.Codename)
	return i.installFromRepo(ctx, addr, adjustRepos, true)
}

// InstallMirror installs from a mirror of the upstream repository.
func (i *Installer) InstallMirror(ctx context.Context, src repomanager.Mirror, adjustRepos bool) error {
	addr, err := repomanager.Resolve(src)
	if err != nil {
		return err
	}
	i.log("install").Infof("Installing from mirror %s", addr.RepoURL)
	return i.installFromRepo(ctx, addr, adjustRepos, src.InstallPackages)
}

// InstallRepo registers a third-party repository and optionally installs Ceph from it.
func (i *Installer) InstallRepo(ctx context.Context, src repomanager.NamedRepo, adjustRepos bool) error {
	addr, err := repomanager.Resolve(src)
	if err != nil {
		return err
	}
	if addr.SourceListFile == repomanager.DefaultSourceList {
		i.log("repo").Warnf("Repository %s has no name, it replaces any existing %s", addr.RepoURL, addr.SourceListFile)
	}
	i.log("repo").Infof("Adding repository %q from %s", src.Name, addr.RepoURL)
	return i.installFromRepo(ctx, addr, adjustRepos, src.InstallPackages)
}

func (i *Installer) installFromRepo(ctx context.Context, addr repomanager.RepoAddress, adjustRepos, installPackages bool) error {
	if adjustRepos {
		if err := i.adjustRepos(ctx, addr); err != nil {
			return err
		}
	}

	if err := i.Packages.Update(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRepoUpdate, err)
	}

	if !installPackages {
		i.log("install").Info("Repository configured, skipping package installation")
		return nil
	}

	if err := i.Packages.Install(ctx, installSet()...); err != nil {
		return fmt.Errorf("failed to install ceph packages: %w", err)
	}
	return nil
}

func (i *Installer) adjustRepos(ctx context.Context, addr repomanager.RepoAddress) error {
	if err := i.Packages.EnsurePackagePresent(ctx, prerequisitePackage); err != nil {
		i.log("prerequisites").WithError(err).Warnf("Could not install %s, continuing", prerequisitePackage)
	}

	if addr.KeyURL != "" {
		i.fetchKey(ctx, addr)
	} else if i.Files != nil {
		if ok, err := i.Files.Exists(ctx, addr.KeyFile); err == nil && !ok {
			i.log("key-import").Warnf("Key file %s not found on host", addr.KeyFile)
		}
	}

	if _, err := i.Commands.Run(ctx, cm.CommandConfig{
		Command: "apt-key",
		Args:    []string{"add", addr.KeyFile},
		Sudo:    true,
	}); err != nil {
		return fmt.Errorf("%w %s: %w", ErrKeyImport, addr.KeyFile, err)
	}

	if err := i.Repos.SetPriority(ctx, addr.PriorityDomain); err != nil {
		return fmt.Errorf("failed to pin %s: %w", addr.PriorityDomain, err)
	}
	if err := i.Repos.WriteSourceList(ctx, addr.RepoURL, i.Codename, addr.SourceListFile); err != nil {
		return fmt.Errorf("failed to write %s: %w", addr.SourceListFile, err)
	}
	return nil
}

// fetchKey downloads the signing key. Failure is tolerated: the key may
// already be on the host and the import step decides.
func (i *Installer) fetchKey(ctx context.Context, addr repomanager.RepoAddress) {
	result, err := i.Commands.Run(ctx, cm.CommandConfig{
		Command:      "wget",
		Args:         []string{"-O", addr.KeyFile, addr.KeyURL},
		AllowFailure: true,
	})
	log := i.log("key-fetch")
	switch {
	case err != nil:
		log.WithError(err).Warnf("Could not fetch %s, continuing", addr.KeyURL)
	case result.ExitCode != 0:
		log.WithFields(logrus.Fields{
			"exit_code": result.ExitCode,
			"stderr":    strings.TrimSpace(result.STDERR),
		}).Warnf("Could not fetch %s, continuing", addr.KeyURL)
	}
}

// InstallLocal installs every file in a directory on the host with dpkg,
// libraries first. Only a failure to list the directory is fatal.
func (i *Installer) InstallLocal(ctx context.Context, src repomanager.LocalDirectory) (*LocalInstallReport, error) {
	result, err := i.Commands.Run(ctx, cm.CommandConfig{
		Command:      "ls",
		Args:         []string{src.Path + "/"},
		AllowFailure: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrListDirectory, src.Path, err)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("%w %s: %s", ErrListDirectory, src.Path, strings.TrimSpace(result.STDERR))
	}

	var files []string
	for _, line := range strings.Split(result.STDOUT, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}

	report := &LocalInstallReport{Path: src.Path}
	for _, file := range OrderLocalPackages(files) {
		path := src.Path + "/" + file
		if err := i.Packages.InstallFile(ctx, path); err != nil {
			i.log("local-install").WithError(err).Warnf("Failed to install %s, continuing", path)
			report.Failed = append(report.Failed, FailedPackage{File: file, Error: err.Error()})
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			continue
		}
		report.Installed = append(report.Installed, file)
	}

	return report, nil
}

// OrderLocalPackages returns files grouped by the first LocalInstallOrder
// fragment they contain, followed by files matching none, each exactly once.
func OrderLocalPackages(files []string) []string {
	ordered := make([]string, 0, len(files))
	remaining := files

	for _, fragment := range LocalInstallOrder {
		var matched, rest []string
		for _, file := range remaining {
			if strings.Contains(file, fragment) {
				matched = append(matched, file)
			} else {
				rest = append(rest, file)
			}
		}
		ordered = append(ordered, matched...)
		remaining = rest
	}

	return append(ordered, remaining...)
}

// Uninstall removes CorePackages, discarding their configuration when purge is set.
func (i *Installer) Uninstall(ctx context.Context, purge bool) error {
	action := "Removing"
	if purge {
		action = "Purging"
	}
	i.log("uninstall").Infof("%s %s", action, strings.Join(CorePackages, " "))

	pkgs := append([]string(nil), CorePackages...)
	if err := i.Packages.Remove(ctx, purge, pkgs...); err != nil {
		return fmt.Errorf("failed to remove ceph packages: %w", err)
	}
	return nil
}
