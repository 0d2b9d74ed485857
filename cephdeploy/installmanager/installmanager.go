package installmanager

import (
	"context"
	"errors"
)

var (
	ErrListDirectory = errors.New("cannot list local package directory")
	ErrKeyImport     = errors.New("failed to import repository key")
	ErrRepoUpdate    = errors.New("failed to refresh package metadata")
)

// CorePackages is the Ceph package set installed and removed as a unit.
var CorePackages = []string{
	"ceph",
	"ceph-mds",
	"ceph-common",
	"ceph-fs-common",
	"radosgw",
}

// ExtraPackages are installed alongside CorePackages but never removed.
// ceph only recommends gdisk, which OSD preparation needs.
var ExtraPackages = []string{"gdisk"}

// LocalInstallOrder lists filename fragments in dependency order. Local
// .deb files are installed with dpkg, which resolves nothing itself.
var LocalInstallOrder = []string{
	"librados",
	"librbd",
	"libcephfs1",
	"python-ceph",
	"ceph-common",
	"ceph_",
}

// PackageManager is the subset of apt the installer drives.
type PackageManager interface {
	Update(ctx context.Context) error
	Install(ctx context.Context, pkgs ...string) error
	InstallFile(ctx context.Context, path string) error
	Remove(ctx context.Context, purge bool, pkgs ...string) error
	EnsurePackagePresent(ctx context.Context, pkg string) error
}

// RepoWriter registers a repository with the host's package manager.
type RepoWriter interface {
	WriteSourceList(ctx context.Context, repoURL, codename, filename string) error
	SetPriority(ctx context.Context, domain string) error
}

// FileChecker reports whether a file exists on the host.
type FileChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// LocalInstallReport records the outcome of every dpkg run of InstallLocal.
type LocalInstallReport struct {
	Path      string          `yaml:"path"`
	Installed []string        `yaml:"installed"`
	Failed    []FailedPackage `yaml:"failed,omitempty"`
}

type FailedPackage struct {
	File  string `yaml:"file"`
	Error string `yaml:"error"`
}

func installSet() []string {
	pkgs := make([]string, 0, len(CorePackages)+len(ExtraPackages))
	pkgs = append(pkgs, CorePackages...)
	return append(pkgs, ExtraPackages...)
}
