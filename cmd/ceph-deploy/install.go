package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/varadakari/ceph-deploy/cephdeploy/config"
	"github.com/varadakari/ceph-deploy/cephdeploy/host"
	"github.com/varadakari/ceph-deploy/cephdeploy/keyring"
	"github.com/varadakari/ceph-deploy/cephdeploy/repomanager"
)

// DefaultRelease is installed when neither --release nor cephdeploy.conf names one.
const DefaultRelease = "firefly"

type installFlags struct {
	Release       string
	Testing       bool
	Dev           string
	NoAdjustRepos bool
}

func newInstallCmd(a *app) *cobra.Command {
	var f installFlags

	cmd := &cobra.Command{
		Use:   "install [flags] HOST...",
		Short: "Install Ceph from the upstream stable, testing or dev repositories",
		Long: `Install configures the Ceph apt repository on every host, imports its
signing key and installs the Ceph packages. Without a version flag the
default repository of cephdeploy.conf is used when one is defined,
otherwise the stable release.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := a.installPlan(f)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), "install", args, plan)
		},
	}

	cmd.Flags().StringVar(&f.Release, "release", "", "Stable release name (default "+DefaultRelease+")")
	cmd.Flags().BoolVar(&f.Testing, "testing", false, "Install the testing release")
	cmd.Flags().StringVar(&f.Dev, "dev", "", "Install a development build of this branch or tag")
	cmd.Flags().BoolVar(&f.NoAdjustRepos, "no-adjust-repos", false, "Do not touch apt sources or keys, only install packages")
	cmd.MarkFlagsMutuallyExclusive("release", "testing", "dev")
	return cmd
}

// installPlan picks the install source before any host is contacted so a bad
// configuration fails without side effects.
func (a *app) installPlan(f installFlags) (hostAction, error) {
	adjust := a.cfg.AdjustRepos && !f.NoAdjustRepos

	explicit := f.Release != "" || f.Testing || f.Dev != ""
	if repo, ok := a.cfg.DefaultRepo(); ok && !explicit {
		return a.repoPlan(repo, true, adjust)
	}

	kind, version := repomanager.Stable, f.Release
	switch {
	case f.Testing:
		kind, version = repomanager.Testing, ""
	case f.Dev != "":
		kind, version = repomanager.Dev, f.Dev
	case version == "":
		version = a.cfg.Release
		if version == "" {
			version = DefaultRelease
		}
	}

	return func(ctx context.Context, h *host.Host, rep *HostReport) error {
		src := repomanager.Official{
			Kind:        kind,
			Version:     version,
			Codename:    h.Distro.Codename,
			MachineType: h.Distro.MachineType,
		}
		rep.Source = fmt.Sprintf("%s %s", kind, version)
		return h.Installer().InstallOfficial(ctx, src, adjust)
	}, nil
}

type mirrorFlags struct {
	RepoURL    string
	GPGURL     string
	GPGKeyFile string
	NoInstall  bool
}

func newMirrorCmd(a *app) *cobra.Command {
	var f mirrorFlags

	cmd := &cobra.Command{
		Use:   "mirror --repo-url URL (--gpg-url URL | --gpg-key-file PATH) HOST...",
		Short: "Install Ceph from a mirror of the upstream repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := a.mirrorPlan(f)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), "mirror", args, plan)
		},
	}

	cmd.Flags().StringVar(&f.RepoURL, "repo-url", "", "Base URL of the mirror")
	cmd.Flags().StringVar(&f.GPGURL, "gpg-url", "", "URL of the mirror signing key, file:// for a key already on the hosts")
	cmd.Flags().StringVar(&f.GPGKeyFile, "gpg-key-file", "", "Local signing key to upload to every host")
	cmd.Flags().BoolVar(&f.NoInstall, "no-install", false, "Only configure the repository")
	_ = cmd.MarkFlagRequired("repo-url")
	cmd.MarkFlagsMutuallyExclusive("gpg-url", "gpg-key-file")
	cmd.MarkFlagsOneRequired("gpg-url", "gpg-key-file")
	return cmd
}

func (a *app) mirrorPlan(f mirrorFlags) (hostAction, error) {
	src := repomanager.Mirror{RepoURL: f.RepoURL, GPGKeyURL: f.GPGURL, InstallPackages: !f.NoInstall}
	if _, err := repomanager.Resolve(src); err != nil {
		return nil, err
	}

	key, keys, err := loadKeyFile(f.GPGKeyFile)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		a.log.Infof("Using signing key %s", k)
	}

	return func(ctx context.Context, h *host.Host, rep *HostReport) error {
		src := src
		if key != nil {
			keyURL, err := h.UploadKey(ctx, f.GPGKeyFile, key)
			if err != nil {
				return fmt.Errorf("failed to upload signing key: %w", err)
			}
			src.GPGKeyURL = keyURL
			rep.Keys = keys
		}
		rep.Source = src.RepoURL
		return h.Installer().InstallMirror(ctx, src, a.cfg.AdjustRepos)
	}, nil
}

// loadKeyFile reads and checks an operator supplied key. An empty path is not an error.
func loadKeyFile(path string) ([]byte, []keyring.KeyInfo, error) {
	if path == "" {
		return nil, nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	keys, err := keyring.Inspect(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, keys, nil
}

type repoFlags struct {
	Name        string
	RepoURL     string
	GPGURL      string
	InstallCeph bool
}

func newRepoCmd(a *app) *cobra.Command {
	var f repoFlags

	cmd := &cobra.Command{
		Use:   "repo [--name NAME] [--repo-url URL --gpg-url URL] HOST...",
		Short: "Add a named repository, optionally installing Ceph from it",
		Long: `Repo registers an apt repository under /etc/apt/sources.list.d. When
--name matches a section of cephdeploy.conf its baseurl, gpgkey,
install_ceph and extra-repos are used; flags override them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := a.namedRepoPlan(f, cmd.Flags().Changed("install-ceph"))
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), "repo", args, plan)
		},
	}

	cmd.Flags().StringVar(&f.Name, "name", "", "Repository name, also the source list file name")
	cmd.Flags().StringVar(&f.RepoURL, "repo-url", "", "Base URL of the repository")
	cmd.Flags().StringVar(&f.GPGURL, "gpg-url", "", "URL of the repository signing key")
	cmd.Flags().BoolVar(&f.InstallCeph, "install-ceph", false, "Install the Ceph packages from this repository")
	return cmd
}

func (a *app) namedRepoPlan(f repoFlags, installSet bool) (hostAction, error) {
	repo := config.Repo{Name: f.Name}
	if f.Name != "" {
		if configured, err := a.cfg.Repo(f.Name); err == nil {
			repo = configured
		} else if f.RepoURL == "" {
			return nil, err
		}
	}
	if f.RepoURL != "" {
		repo.BaseURL = f.RepoURL
	}
	if f.GPGURL != "" {
		repo.GPGKey = f.GPGURL
	}
	if installSet {
		repo.InstallCeph = f.InstallCeph
	}
	if repo.BaseURL == "" {
		return nil, errors.New("repository has no base URL, pass --repo-url or a configured --name")
	}
	return a.repoPlan(repo, repo.InstallCeph, a.cfg.AdjustRepos)
}

// repoPlan configures repo, then each of its extra repositories without
// installing anything from them.
func (a *app) repoPlan(repo config.Repo, install, adjust bool) (hostAction, error) {
	extras, err := a.cfg.Extras(repo)
	if err != nil {
		return nil, err
	}

	sources := []repomanager.NamedRepo{{
		Name: repo.Name, BaseURL: repo.BaseURL, GPGKeyURL: repo.GPGKey, InstallPackages: install,
	}}
	for _, extra := range extras {
		sources = append(sources, repomanager.NamedRepo{
			Name: extra.Name, BaseURL: extra.BaseURL, GPGKeyURL: extra.GPGKey,
		})
	}
	for _, src := range sources {
		if _, err := repomanager.Resolve(src); err != nil {
			return nil, fmt.Errorf("repository %q: %w", src.Name, err)
		}
	}

	return func(ctx context.Context, h *host.Host, rep *HostReport) error {
		rep.Source = repo.Name
		installer := h.Installer()
		for _, src := range sources {
			if err := installer.InstallRepo(ctx, src, adjust); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func newLocalCmd(a *app) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "local --path DIR HOST...",
		Short: "Install Ceph from .deb files already present on the hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), "local", args, func(ctx context.Context, h *host.Host, rep *HostReport) error {
				rep.Source = path
				report, err := h.Installer().InstallLocal(ctx, repomanager.LocalDirectory{Path: path})
				rep.Local = report
				return err
			})
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Directory on the hosts holding the .deb files")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func newUninstallCmd(a *app, purge bool) *cobra.Command {
	use, short := "uninstall", "Remove the Ceph packages, keeping their configuration"
	if purge {
		use, short = "purge", "Remove the Ceph packages and their configuration"
	}

	return &cobra.Command{
		Use:   use + " HOST...",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), use, args, func(ctx context.Context, h *host.Host, rep *HostReport) error {
				return h.Installer().Uninstall(ctx, purge)
			})
		},
	}
}
